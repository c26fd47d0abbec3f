package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tidemark-data/tidemark/internal/config"
	"github.com/tidemark-data/tidemark/internal/executor"
	"github.com/tidemark-data/tidemark/internal/governance"
	"github.com/tidemark-data/tidemark/internal/lineage"
	"github.com/tidemark-data/tidemark/internal/runner"
	"github.com/tidemark-data/tidemark/internal/validate"
)

// buildRunner assembles the pipeline runner from the loaded configuration.
// With lineage disabled the runner executes steps without emitting events.
func buildRunner(cfg *config.Config, logger *slog.Logger) (*runner.Runner, error) {
	exec := executor.New(executor.Config{
		Logger:      logger,
		Timeout:     cfg.Executor.Timeout,
		GracePeriod: cfg.Executor.GracePeriod,
		TailLines:   cfg.Executor.TailLines,
	})

	var resolver *governance.Resolver
	var emitter lineage.Emitter
	if !cfg.Lineage.Disabled {
		var err error
		resolver, err = governance.LoadFile(cfg.GovernancePath(), logger)
		if err != nil {
			return nil, fmt.Errorf("loading governance: %w", err)
		}
		emitter = lineage.NewHTTPEmitter(lineage.HTTPEmitterConfig{
			BaseURL: cfg.Lineage.URL,
			Logger:  logger,
		})
	}

	return runner.New(runner.Config{
		Executor:  exec,
		Resolver:  resolver,
		Emitter:   emitter,
		Namespace: cfg.Namespace(),
		Logger:    logger,
	}), nil
}

// ingestStep builds the ingestion step for a job, discovering input streams
// from the tool's run directory and declaring raw tables as outputs.
func ingestStep(cfg *config.Config, job string, logger *slog.Logger) *runner.Step {
	if job == "" {
		job = cfg.Ingest.DefaultJob
	}

	runDir := cfg.Ingest.RunDir
	if !filepath.IsAbs(runDir) {
		runDir = filepath.Join(cfg.Ingest.ProjectDir, runDir)
	}
	inputs, err := runner.DiscoverStreams(runDir)
	if err != nil {
		logger.Warn("stream discovery failed", "run_dir", runDir, "error", err)
	}

	return runner.IngestStep(cfg.Ingest.Binary, cfg.Ingest.ProjectDir, job, inputs, rawTables(cfg))
}

// validateStep builds the in-process raw-data freshness check, gated on the
// ingestion step.
func validateStep(cfg *config.Config, logger *slog.Logger) *runner.Step {
	check := func(ctx context.Context) ([]lineage.TestResult, error) {
		db, err := validate.Open(cfg.Warehouse.DSN())
		if err != nil {
			return nil, err
		}
		defer db.Close()

		results, err := validate.New(db, cfg.Warehouse.Schema, logger).Check(ctx, cfg.Warehouse.Tables)
		if err != nil {
			return nil, err
		}

		tests := make([]lineage.TestResult, 0, len(results))
		for _, res := range results {
			tr := lineage.TestResult{Name: "freshness." + res.Table, Success: res.OK()}
			if !tr.Success {
				tr.FailureDetail = res.Detail()
			}
			tests = append(tests, tr)
		}
		return tests, nil
	}
	return runner.CheckStep("validate-raw", check, []string{"ingest"}, rawTables(cfg))
}

// transformSteps builds one step per configured layer, chained in order
// behind the given dependency.
func transformSteps(cfg *config.Config, after string) []*runner.Step {
	steps := make([]*runner.Step, 0, len(cfg.Transform.Layers))
	prev := after
	var prevDatasets []string

	for _, layer := range cfg.Transform.Layers {
		var deps []string
		if prev != "" {
			deps = []string{prev}
		}
		step := runner.TransformStep(
			cfg.Transform.Binary, cfg.Transform.ProjectDir, cfg.Transform.ProfilesDir,
			layer.Name, deps, prevDatasets, layer.Datasets,
		)
		steps = append(steps, step)
		prev = step.ID
		prevDatasets = layer.Datasets
	}
	return steps
}

// testStep builds the always-run transformation test step covering every
// layer's datasets.
func testStep(cfg *config.Config) *runner.Step {
	var outputs []string
	for _, layer := range cfg.Transform.Layers {
		outputs = append(outputs, layer.Datasets...)
	}
	return runner.TestStep(cfg.Transform.Binary, cfg.Transform.ProjectDir, cfg.Transform.ProfilesDir, outputs)
}

// rawTables returns the dataset identifiers of the warehouse raw tables.
func rawTables(cfg *config.Config) []string {
	ids := make([]string, 0, len(cfg.Warehouse.Tables))
	for _, table := range cfg.Warehouse.Tables {
		ids = append(ids, cfg.Warehouse.Schema+"."+table)
	}
	return ids
}

// executeRun runs the plan, prints the summary and maps a failed run to a
// non-zero exit.
func executeRun(cmd *cobra.Command, plan *runner.Plan) error {
	cfg := ConfigFrom(cmd.Context())
	logger := LoggerFrom(cmd.Context())

	r, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	run, err := r.Run(cmd.Context(), plan)
	if err != nil {
		return err
	}

	runner.WriteSummary(cmd.OutOrStdout(), run)
	if run.Failed() {
		return fmt.Errorf("run %s finished with status %s", run.ID, run.Status)
	}
	return nil
}
