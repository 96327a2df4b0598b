package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionRangeMatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expr    string
		match   []string
		noMatch []string
	}{
		{"[,]", []string{"0.0.1", "1.0", "99.1.2"}, nil},
		{"1.2", []string{"1.2", "1.2.0", "1.2.7"}, []string{"1.1.9", "1.3.0", "1.20"}},
		{"[1.0,2.0)", []string{"1.0", "1.0.0", "1.9.9"}, []string{"0.9", "2.0", "2.0.1"}},
		{"(1.0,2.0]", []string{"1.0.1", "2.0", "2.0.5"}, []string{"1.0", "1.0.0", "2.1"}},
		{"[1.5,]", []string{"1.5", "3.0"}, []string{"1.4.9"}},
		{"(,1.5)", []string{"0.1", "1.4.99"}, []string{"1.5", "1.5.0", "2.0"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()
			r, err := ParseVersionRange(tc.expr)
			require.NoError(t, err)
			for _, s := range tc.match {
				v, err := ParseVersion(s)
				require.NoError(t, err)
				assert.True(t, r.Matches(v), "%s should match %s", tc.expr, s)
			}
			for _, s := range tc.noMatch {
				v, err := ParseVersion(s)
				require.NoError(t, err)
				assert.False(t, r.Matches(v), "%s should not match %s", tc.expr, s)
			}
		})
	}
}

func TestParseVersionRangeInvalid(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"", "  ", "[1.0]", "[a,2.0)", "[1.0,b]", "x.y"} {
		_, err := ParseVersionRange(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseVersionTrims(t *testing.T) {
	t.Parallel()

	v, err := ParseVersion(" 1.2.3 ")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v.String())
}
