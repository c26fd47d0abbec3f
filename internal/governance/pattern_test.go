package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Valid(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		matches []string
		misses  []string
	}{
		{
			name:    "exact key",
			raw:     "datasets.weather.gold.hourly",
			matches: []string{"datasets.weather.gold.hourly"},
			misses:  []string{"datasets.weather.gold.hourly2", "datasets.weather.gold"},
		},
		{
			name:    "whole component wildcard",
			raw:     "datasets.weather.gold.*",
			matches: []string{"datasets.weather.gold.hourly", "datasets.weather.gold.a.b"},
			misses:  []string{"datasets.weather.gold.", "datasets.weather.gold"},
		},
		{
			name:    "trailing partial wildcard",
			raw:     "datasets.weather.raw_*",
			matches: []string{"datasets.weather.raw_obs", "datasets.weather.raw_obs.v2"},
			misses:  []string{"datasets.weather.raw_"},
		},
		{
			name:    "wildcard in the middle",
			raw:     "datasets.*.gold",
			matches: []string{"datasets.weather.gold", "datasets.a.b.gold"},
			misses:  []string{"datasets..gold", "datasets.gold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := compilePattern(tt.raw)
			require.NoError(t, err)

			for _, id := range tt.matches {
				assert.True(t, p.matches(id), "expected %q to match %q", tt.raw, id)
			}
			for _, id := range tt.misses {
				assert.False(t, p.matches(id), "expected %q not to match %q", tt.raw, id)
			}
		})
	}
}

func TestCompilePattern_Invalid(t *testing.T) {
	for _, raw := range []string{"", "datasets.*x.gold", "datasets.we*ther.gold"} {
		t.Run(raw, func(t *testing.T) {
			_, err := compilePattern(raw)
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestMatch_Precedence(t *testing.T) {
	tests := []struct {
		name string
		id   string
		keys []string
		want string
		ok   bool
	}{
		{
			name: "exact beats wildcard",
			id:   "a.b.c",
			keys: []string{"a.b.*", "a.b.c"},
			want: "a.b.c",
			ok:   true,
		},
		{
			name: "longer literal prefix wins",
			id:   "a.b.c",
			keys: []string{"a.*", "a.b.*"},
			want: "a.b.*",
			ok:   true,
		},
		{
			name: "equal prefix falls to longer key",
			id:   "a.b.c",
			keys: []string{"a.*", "a.*.c"},
			want: "a.*.c",
			ok:   true,
		},
		{
			name: "partial component prefix counts",
			id:   "a.bb.c",
			keys: []string{"a.*.c", "a.b*.c"},
			want: "a.b*.c",
			ok:   true,
		},
		{
			name: "full tie breaks lexicographically",
			id:   "a.q.x.q.y.q",
			keys: []string{"a.*.y.*", "a.*.x.*"},
			want: "a.*.x.*",
			ok:   true,
		},
		{
			name: "no match",
			id:   "x.y.z",
			keys: []string{"a.*", "a.b.c"},
			want: "",
			ok:   false,
		},
		{
			name: "invalid keys are skipped",
			id:   "a.b.c",
			keys: []string{"a.*x", "a.*"},
			want: "a.*",
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Match(tt.id, tt.keys)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBestMatch_TieBreakFlag(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		keys      []string
		want      string
		ambiguous bool
	}{
		{
			name:      "tie decides the winner",
			id:        "a.b.c",
			keys:      []string{"a.*", "a.*.c"},
			want:      "a.*.c",
			ambiguous: true,
		},
		{
			name:      "tie decides the winner, reversed order",
			id:        "a.b.c",
			keys:      []string{"a.*.c", "a.*"},
			want:      "a.*.c",
			ambiguous: true,
		},
		{
			name:      "prefix decides past a tie among shorter prefixes",
			id:        "a.b.c",
			keys:      []string{"a.*", "a.*.c", "a.b.*"},
			want:      "a.b.*",
			ambiguous: false,
		},
		{
			name:      "prefix decides with the winner first",
			id:        "a.b.c",
			keys:      []string{"a.b.*", "a.*", "a.*.c"},
			want:      "a.b.*",
			ambiguous: false,
		},
		{
			name:      "exact match is never ambiguous",
			id:        "a.b.c",
			keys:      []string{"a.*", "a.*.c", "a.b.c"},
			want:      "a.b.c",
			ambiguous: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns := make([]*pattern, 0, len(tt.keys))
			for _, key := range tt.keys {
				p, err := compilePattern(key)
				require.NoError(t, err)
				patterns = append(patterns, p)
			}

			best, ambiguous := bestMatch(tt.id, patterns)
			require.NotNil(t, best)
			assert.Equal(t, tt.want, best.raw)
			// The flag marks ties that decided the winner. A tie among less
			// specific wildcards warrants no warning when the literal-prefix
			// rule picked the winner outright.
			assert.Equal(t, tt.ambiguous, ambiguous)
		})
	}
}

func TestMatch_WildcardRequiresOneChar(t *testing.T) {
	_, ok := Match("a.b.", []string{"a.b.*"})
	assert.False(t, ok, "a '*' must match at least one character")
}
