package governance

import (
	"regexp"
	"strings"
)

// pattern is a source key compiled for matching. Exact keys carry no regexp;
// wildcard keys are compiled once at load so Resolve stays cheap.
type pattern struct {
	raw string
	// re is nil for exact keys.
	re *regexp.Regexp
	// literalPrefix counts the literal characters before the first '*'.
	// It drives the "longest matching wildcard" precedence rule.
	literalPrefix int
}

// compilePattern validates and compiles a source key. A '*' must be either a
// whole dot-separated component or the trailing part of one; each '*' matches
// one or more characters and may span component boundaries.
func compilePattern(raw string) (*pattern, error) {
	if raw == "" {
		return nil, configErrorf("empty source pattern")
	}

	if !strings.Contains(raw, "*") {
		return &pattern{raw: raw, literalPrefix: len(raw)}, nil
	}

	for _, part := range strings.Split(raw, ".") {
		idx := strings.Index(part, "*")
		if idx == -1 {
			continue
		}
		if idx != len(part)-1 {
			return nil, configErrorf("pattern %q: '*' must end its component", raw)
		}
	}

	var sb strings.Builder
	sb.WriteString("^")
	for i, seg := range strings.Split(raw, "*") {
		if i > 0 {
			sb.WriteString(".+")
		}
		sb.WriteString(regexp.QuoteMeta(seg))
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, &ConfigError{Reason: "pattern " + raw, Err: err}
	}

	return &pattern{
		raw:           raw,
		re:            re,
		literalPrefix: strings.Index(raw, "*"),
	}, nil
}

func (p *pattern) exact() bool { return p.re == nil }

func (p *pattern) matches(id string) bool {
	if p.exact() {
		return p.raw == id
	}
	return p.re.MatchString(id)
}

// moreSpecificThan reports whether p wins over q under the precedence rules:
// longer literal prefix before the first '*', then longer total key, then
// lexicographically smaller key. Exact matches are handled before this is
// consulted.
func (p *pattern) moreSpecificThan(q *pattern) bool {
	if p.literalPrefix != q.literalPrefix {
		return p.literalPrefix > q.literalPrefix
	}
	if len(p.raw) != len(q.raw) {
		return len(p.raw) > len(q.raw)
	}
	return p.raw < q.raw
}

// tiedWith reports whether the choice between p and q fell through to the
// deterministic tie-break, which is worth a warning for operator visibility.
func (p *pattern) tiedWith(q *pattern) bool {
	return p.literalPrefix == q.literalPrefix
}

// bestMatch returns the most specific compiled pattern matching id. An exact
// key wins outright. The second return value reports whether a tie-break
// beyond the literal-prefix rule was needed among the matching wildcards.
func bestMatch(id string, patterns []*pattern) (*pattern, bool) {
	var best *pattern
	ambiguous := false

	for _, p := range patterns {
		if !p.matches(id) {
			continue
		}
		if p.exact() {
			return p, false
		}
		switch {
		case best == nil:
			best = p
		case p.moreSpecificThan(best):
			ambiguous = p.tiedWith(best)
			best = p
		default:
			if best.tiedWith(p) {
				ambiguous = true
			}
		}
	}

	return best, ambiguous
}

// Match returns the best-matching key for a dataset identifier, or false when
// nothing matches. It is a pure function over its inputs: exact keys beat
// wildcards, wildcards are ranked by literal prefix length before the first
// '*', ties break on total length and then lexicographic order.
func Match(identifier string, keys []string) (string, bool) {
	patterns := make([]*pattern, 0, len(keys))
	for _, key := range keys {
		p, err := compilePattern(key)
		if err != nil {
			continue
		}
		patterns = append(patterns, p)
	}

	best, _ := bestMatch(identifier, patterns)
	if best == nil {
		return "", false
	}
	return best.raw, true
}
