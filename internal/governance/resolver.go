package governance

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// rule is one loaded source entry: a compiled pattern, the decoded partial
// record, and the set of fields the entry actually declared. Presence is
// tracked separately from the record so an explicit null clears the default
// instead of inheriting it.
type rule struct {
	pattern *pattern
	record  Record
	present map[string]bool
}

// Resolver matches dataset identifiers against the loaded rule set and merges
// the matching partial records over the defaults. It performs no writes after
// Load, so a single instance is safe to share across concurrent resolutions;
// reloading means constructing a new instance.
type Resolver struct {
	defaults Record
	rules    []rule
	logger   *slog.Logger
}

// recordFields lists the valid field keys of a governance record.
var recordFields = map[string]bool{
	"license":             true,
	"attribution":         true,
	"ownership":           true,
	"access_level":        true,
	"access_requirements": true,
	"classification":      true,
	"tags":                true,
	"retention_days":      true,
	"documentation_url":   true,
	"source_system":       true,
}

// LoadFile reads and loads a governance file from disk.
func LoadFile(path string, logger *slog.Logger) (*Resolver, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &ConfigError{Reason: "reading " + path, Err: err}
	}
	return Load(k.Raw(), logger)
}

// Load builds a Resolver from a parsed governance document. The document must
// contain only the top-level keys "defaults" and "sources"; every record is
// validated against the closed enum sets, and unknown record keys are
// rejected rather than silently ignored.
func Load(doc map[string]any, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for key := range doc {
		if key != "defaults" && key != "sources" {
			return nil, configErrorf("unknown top-level key %q", key)
		}
	}

	defaults, _, err := decodeRecord(doc["defaults"], "defaults")
	if err != nil {
		return nil, err
	}

	var rules []rule
	if rawSources, ok := doc["sources"]; ok && rawSources != nil {
		sources, ok := rawSources.(map[string]any)
		if !ok {
			return nil, configErrorf("sources must be a mapping of pattern to record")
		}

		for key, rawRecord := range sources {
			p, err := compilePattern(key)
			if err != nil {
				return nil, err
			}
			rec, present, err := decodeRecord(rawRecord, "sources."+key)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule{pattern: p, record: rec, present: present})
		}
	}

	// Map iteration order is random; keep the rule order stable so ties
	// resolve identically across loads.
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].pattern.raw < rules[j].pattern.raw
	})

	return &Resolver{defaults: defaults, rules: rules, logger: logger}, nil
}

// decodeRecord decodes a raw YAML mapping into a Record and reports which
// field keys were present (including keys set to an explicit null).
func decodeRecord(raw any, where string) (Record, map[string]bool, error) {
	var rec Record
	present := make(map[string]bool)

	if raw == nil {
		return rec, present, nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return rec, nil, configErrorf("%s must be a mapping", where)
	}

	for key := range m {
		if !recordFields[key] {
			return rec, nil, configErrorf("%s: unknown key %q", where, key)
		}
		present[key] = true
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rec,
		TagName:     "koanf",
		ErrorUnused: true,
	})
	if err != nil {
		return rec, nil, &ConfigError{Reason: where, Err: err}
	}
	if err := dec.Decode(m); err != nil {
		return rec, nil, &ConfigError{Reason: where, Err: err}
	}

	if err := validateRecord(&rec, where); err != nil {
		return rec, nil, err
	}
	return rec, present, nil
}

func validateRecord(rec *Record, where string) error {
	if rec.AccessLevel != nil {
		switch *rec.AccessLevel {
		case AccessLevelOpen, AccessLevelInternal, AccessLevelRestricted, AccessLevelSecret:
		default:
			return configErrorf("%s: invalid access_level %q", where, *rec.AccessLevel)
		}
	}
	if rec.AccessRequirements != nil {
		switch *rec.AccessRequirements {
		case AccessRequirementsAll, AccessRequirementsPartner, AccessRequirementsContract:
		default:
			return configErrorf("%s: invalid access_requirements %q", where, *rec.AccessRequirements)
		}
	}
	if rec.Classification != nil {
		switch *rec.Classification {
		case ClassificationGreen, ClassificationYellow, ClassificationRed, ClassificationPII:
		default:
			return configErrorf("%s: invalid classification %q", where, *rec.Classification)
		}
	}
	for i, owner := range rec.Ownership {
		switch owner.Type {
		case OwnerTypeDataOwner, OwnerTypeSteward, OwnerTypeProducer:
		default:
			return configErrorf("%s: ownership[%d]: invalid type %q", where, i, owner.Type)
		}
	}
	if rec.RetentionDays != nil && *rec.RetentionDays < 0 {
		return configErrorf("%s: retention_days must not be negative", where)
	}
	return nil
}

// Resolve merges the defaults with every matching source record for the given
// dataset identifier, overlaying in ascending specificity so the most specific
// record wins each field it declares while broader patterns still contribute
// theirs. It never fails: with no matching pattern the result is the defaults
// verbatim under the "default" pattern. Resolving the same identifier twice
// yields identical results.
func (r *Resolver) Resolve(dataset string) Resolved {
	var matched []rule
	patterns := make([]*pattern, 0, len(r.rules))
	for _, ru := range r.rules {
		if ru.pattern.matches(dataset) {
			matched = append(matched, ru)
			patterns = append(patterns, ru.pattern)
		}
	}
	if len(matched) == 0 {
		return Resolved{Record: cloneRecord(r.defaults), Dataset: dataset, Pattern: DefaultPattern}
	}

	best, ambiguous := bestMatch(dataset, patterns)
	if ambiguous {
		r.logger.Warn("governance pattern tie-break applied",
			"dataset", dataset, "pattern", best.raw)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return lessSpecific(matched[i].pattern, matched[j].pattern)
	})

	merged := cloneRecord(r.defaults)
	for _, ru := range matched {
		merged = merge(merged, ru.record, ru.present)
	}
	return Resolved{Record: merged, Dataset: dataset, Pattern: best.raw}
}

// lessSpecific orders matching patterns for overlaying: wildcards before
// exact keys, broader wildcards before narrower ones.
func lessSpecific(p, q *pattern) bool {
	if p.exact() != q.exact() {
		return q.exact()
	}
	return q.moreSpecificThan(p)
}

// Defaults returns a copy of the defaults record.
func (r *Resolver) Defaults() Record { return cloneRecord(r.defaults) }

// merge overlays the declared fields of override on top of defaults. Fields
// the override never mentioned keep the default value; fields it declared are
// taken as-is, including explicit nulls and whole-list replacements.
func merge(defaults, override Record, present map[string]bool) Record {
	out := cloneRecord(defaults)
	for key := range present {
		switch key {
		case "license":
			out.License = clonePtr(override.License)
		case "attribution":
			out.Attribution = clonePtr(override.Attribution)
		case "ownership":
			out.Ownership = cloneOwners(override.Ownership)
		case "access_level":
			out.AccessLevel = clonePtr(override.AccessLevel)
		case "access_requirements":
			out.AccessRequirements = clonePtr(override.AccessRequirements)
		case "classification":
			out.Classification = clonePtr(override.Classification)
		case "tags":
			out.Tags = cloneStrings(override.Tags)
		case "retention_days":
			out.RetentionDays = clonePtr(override.RetentionDays)
		case "documentation_url":
			out.DocumentationURL = clonePtr(override.DocumentationURL)
		case "source_system":
			out.SourceSystem = clonePtr(override.SourceSystem)
		default:
			panic(fmt.Sprintf("unhandled governance field %q", key))
		}
	}
	return out
}

func cloneRecord(rec Record) Record {
	return Record{
		License:            clonePtr(rec.License),
		Attribution:        clonePtr(rec.Attribution),
		Ownership:          cloneOwners(rec.Ownership),
		AccessLevel:        clonePtr(rec.AccessLevel),
		AccessRequirements: clonePtr(rec.AccessRequirements),
		Classification:     clonePtr(rec.Classification),
		Tags:               cloneStrings(rec.Tags),
		RetentionDays:      clonePtr(rec.RetentionDays),
		DocumentationURL:   clonePtr(rec.DocumentationURL),
		SourceSystem:       clonePtr(rec.SourceSystem),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneOwners(s []Owner) []Owner {
	if s == nil {
		return nil
	}
	out := make([]Owner, len(s))
	copy(out, s)
	return out
}
