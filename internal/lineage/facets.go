package lineage

import (
	"fmt"
	"unicode"

	"github.com/tidemark-data/tidemark/internal/governance"
)

// Facet keys and schema references. The schema URLs are versioned and stable;
// consumers key on them to interpret custom facets.
const (
	GovernanceFacetKey = "governance"
	AssertionsFacetKey = "assertions"
	ErrorFacetKey      = "errorMessage"

	governanceSchemaURL = "https://raw.githubusercontent.com/tidemark-data/tidemark/main/schemas/GovernanceDatasetFacet.json"
	assertionsSchemaURL = "https://raw.githubusercontent.com/tidemark-data/tidemark/main/schemas/AssertionsDatasetFacet.json"
	errorSchemaURL      = "https://openlineage.io/spec/facets/1-0-0/ErrorMessageRunFacet.json"
)

// FacetEncodingError reports a governance value that cannot be represented in
// the wire encoding, such as an embedded control character.
type FacetEncodingError struct {
	Field string
	Value string
}

func (e *FacetEncodingError) Error() string {
	return fmt.Sprintf("facet field %s contains unencodable data", e.Field)
}

// TestResult is one parsed test outcome from a test-kind step.
type TestResult struct {
	Name          string `json:"name"`
	Success       bool   `json:"success"`
	FailureDetail string `json:"failureDetail,omitempty"`
}

// GovernanceFacet converts a resolved governance record into its wire form.
// Null fields are omitted entirely; the facet always carries the producer and
// schema reference. It fails only when a string field holds data the wire
// encoding cannot carry.
func GovernanceFacet(res governance.Resolved) (map[string]any, error) {
	facet := map[string]any{
		"_producer":  Producer,
		"_schemaURL": governanceSchemaURL,
	}

	if err := putString(facet, "license", res.License); err != nil {
		return nil, err
	}
	if err := putString(facet, "attribution", res.Attribution); err != nil {
		return nil, err
	}
	if len(res.Ownership) > 0 {
		owners := make([]map[string]any, len(res.Ownership))
		for i, o := range res.Ownership {
			if !encodable(o.Name) {
				return nil, &FacetEncodingError{Field: "ownership.name", Value: o.Name}
			}
			owners[i] = map[string]any{"name": o.Name, "type": string(o.Type)}
		}
		facet["ownership"] = owners
	}
	if res.AccessLevel != nil {
		facet["access_level"] = string(*res.AccessLevel)
	}
	if res.AccessRequirements != nil {
		facet["access_requirements"] = string(*res.AccessRequirements)
	}
	if res.Classification != nil {
		facet["classification"] = string(*res.Classification)
	}
	if len(res.Tags) > 0 {
		for _, tag := range res.Tags {
			if !encodable(tag) {
				return nil, &FacetEncodingError{Field: "tags", Value: tag}
			}
		}
		facet["tags"] = res.Tags
	}
	if res.RetentionDays != nil {
		facet["retention_days"] = *res.RetentionDays
	}
	if err := putString(facet, "documentation_url", res.DocumentationURL); err != nil {
		return nil, err
	}
	if err := putString(facet, "source_system", res.SourceSystem); err != nil {
		return nil, err
	}

	return facet, nil
}

// AssertionsFacet converts parsed test results into the assertions facet.
func AssertionsFacet(results []TestResult) map[string]any {
	return map[string]any{
		"_producer":  Producer,
		"_schemaURL": assertionsSchemaURL,
		"assertions": results,
	}
}

// ErrorFacet wraps a failure message for FAIL events.
func ErrorFacet(message string) map[string]any {
	return map[string]any{
		"_producer":           Producer,
		"_schemaURL":          errorSchemaURL,
		"message":             message,
		"programmingLanguage": "shell",
	}
}

func putString(facet map[string]any, key string, val *string) error {
	if val == nil {
		return nil
	}
	if !encodable(*val) {
		return &FacetEncodingError{Field: key, Value: *val}
	}
	facet[key] = *val
	return nil
}

// encodable rejects strings with embedded control characters, which have no
// representation in the wire schema.
func encodable(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
