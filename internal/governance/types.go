// Package governance resolves dataset identifiers to merged governance
// records. A governance file declares a defaults record plus pattern-scoped
// partial overrides; resolution overlays every matching pattern's fields on
// top of the defaults, most specific last.
package governance

import "fmt"

// AccessLevel describes how widely a dataset may be shared.
type AccessLevel string

const (
	AccessLevelOpen       AccessLevel = "open"
	AccessLevelInternal   AccessLevel = "internal"
	AccessLevelRestricted AccessLevel = "restricted"
	AccessLevelSecret     AccessLevel = "secret"
)

// AccessRequirements describes who qualifies for access.
type AccessRequirements string

const (
	AccessRequirementsAll      AccessRequirements = "all"
	AccessRequirementsPartner  AccessRequirements = "partner"
	AccessRequirementsContract AccessRequirements = "contract"
)

// Classification is the data-sensitivity class of a dataset.
type Classification string

const (
	ClassificationGreen  Classification = "green"
	ClassificationYellow Classification = "yellow"
	ClassificationRed    Classification = "red"
	ClassificationPII    Classification = "pii"
)

// OwnerType classifies an ownership entry.
type OwnerType string

const (
	OwnerTypeDataOwner OwnerType = "DATA_OWNER"
	OwnerTypeSteward   OwnerType = "STEWARD"
	OwnerTypeProducer  OwnerType = "PRODUCER"
)

// Owner is a single ownership entry on a governance record.
type Owner struct {
	Name string    `koanf:"name" json:"name"`
	Type OwnerType `koanf:"type" json:"type"`
}

// Record holds the governance metadata for a dataset. All fields are
// optional; pointer and slice fields distinguish "not set" from a set value
// so that partial overrides merge field-by-field.
type Record struct {
	License            *string             `koanf:"license"`
	Attribution        *string             `koanf:"attribution"`
	Ownership          []Owner             `koanf:"ownership"`
	AccessLevel        *AccessLevel        `koanf:"access_level"`
	AccessRequirements *AccessRequirements `koanf:"access_requirements"`
	Classification     *Classification     `koanf:"classification"`
	Tags               []string            `koanf:"tags"`
	RetentionDays      *int                `koanf:"retention_days"`
	DocumentationURL   *string             `koanf:"documentation_url"`
	SourceSystem       *string             `koanf:"source_system"`
}

// DefaultPattern is the matched-pattern value reported when no source
// pattern matched and the defaults record was used verbatim.
const DefaultPattern = "default"

// Resolved is the fully merged governance record for one dataset identifier,
// together with the pattern that produced it. It is immutable once created.
type Resolved struct {
	Record

	// Dataset is the identifier that was resolved.
	Dataset string
	// Pattern is the source pattern that matched, or DefaultPattern.
	Pattern string
}

// ConfigError reports a malformed governance file. It is fatal at load time;
// no pipeline step runs with a broken governance configuration.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("governance config: %s: %v", e.Reason, e.Err)
	}
	return "governance config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
