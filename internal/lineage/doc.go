// Package lineage builds and delivers run events for pipeline steps.
//
// Events follow the OpenLineage run-event shape: a START, COMPLETE or FAIL
// event per step, naming the run, the job and the datasets it touched, with
// facets attached to each dataset. The governance facet carries the merged
// governance record resolved for a dataset; test steps additionally attach an
// assertions facet with per-test outcomes.
//
// Delivery is an observability side channel, not a correctness gate: the
// HTTP emitter retries transient failures with bounded backoff and callers
// drop undeliverable events with a warning instead of failing the step.
package lineage
