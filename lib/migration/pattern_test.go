package migration

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePattern(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{`(app:user:\d+):address`, "app:user:*"},
		{`^(app:user:\d+):address$`, "app:user:*"},
		{`(app:user:[12]):username`, "app:user:*"},
		{`(app:post:\d+):lastModifiedTimestamp`, "app:post:*"},
		{`(app:user:\d+):(address|phone)`, "app:user:*"},
		{`(ab+c)`, "ab*"},
		{`(abc?)`, "ab*"},
		{`(abc*)`, "ab*"},
		{`(abc{0,1})`, "ab*"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ResolvePattern(regexp.MustCompile(tt.expr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePatternErrors(t *testing.T) {
	tests := []string{
		`app:user:\d+:address`,     // no group
		`user:(\d+)`,               // group does not open the expression
		`(\d+):address`,            // no literal prefix
		`(?:app:user):address`,     // non-capturing group
		`(a?bc)`,                   // prefix becomes empty
		`(app:user|app:admin):\d+`, // alternation inside the group
		`(app:user):\d+|other`,     // top level alternation
		`(app:user)?:x`,            // optional group
		`(app:user)*:x`,            // group repeated zero or more times
		`(app:user){0,1}:x`,        // group with zero minimum repetitions
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := ResolvePattern(regexp.MustCompile(expr))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPattern)

			var patternErr *PatternError
			require.ErrorAs(t, err, &patternErr)
			assert.Equal(t, expr, patternErr.Expr)
		})
	}

	_, err := ResolvePattern(nil)
	assert.ErrorIs(t, err, ErrPattern)
}

func TestResolvePatternIsSuperset(t *testing.T) {
	keys := []string{"app:user:1:address", "app:user:22:address", "app:user:x:address", "app:post:1:address"}
	expr := regexp.MustCompile(`(app:user:\d+):address`)

	pattern, err := ResolvePattern(expr)
	require.NoError(t, err)
	prefix := pattern[:len(pattern)-1]

	for _, key := range keys {
		if expr.MatchString(key) {
			assert.True(t, len(key) >= len(prefix) && key[:len(prefix)] == prefix,
				"key %s matches the expression but not the pattern %s", key, pattern)
		}
	}
}
