package values_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		version    string
		constraint string
		want       bool
	}{
		{"greater or equal partial", "7.4.1", ">=7.4", true},
		{"bare partial version is not a different major", "8.0", "7.4", false},
		{"operator version reduced to lower bound", "^7.4", "^7.4 || ^8.0", true},
		{"less than", "7.4", "<7.3", false},
		{"exact", "1.0.0", "1.0.0", true},
		{"exact mismatch", "1.0.1", "=1.0.0", false},
		{"caret same major", "1.9.0", "^1.2", true},
		{"caret next major", "2.0.0", "^1.2", false},
		{"caret zero major stays in minor", "0.3.0", "^0.2.3", false},
		{"caret zero major", "0.2.9", "^0.2.3", true},
		{"tilde", "1.2.9", "~1.2.0", true},
		{"tilde next minor", "1.3.0", "~1.2.0", false},
		{"and by whitespace", "1.5.0", ">=1.2 <2.0", true},
		{"and by whitespace upper bound", "2.1.0", ">=1.2 <2.0", false},
		{"and by comma", "1.5.0", ">=1.2, <2.0", true},
		{"or second branch", "8.1.0", "^7.4 || ^8.0", true},
		{"or no branch", "9.0.0", "^7.4 || ^8.0", false},
		{"not equal", "1.0.0", "!=1.0.0", false},
		{"wildcard", "3.2.1", "*", true},
		{"latest keyword", "3.2.1", "latest", true},
		{"empty constraint", "3.2.1", "", true},
		{"leading v", "v1.2.3", "^1.0", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := values.Matches(tc.version, tc.constraint)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatches_Errors(t *testing.T) {
	t.Parallel()

	t.Run("malformed constraint", func(t *testing.T) {
		_, err := values.Matches("1.0.0", "invalid")
		require.Error(t, err)
		assert.True(t, errors.Is(err, values.ErrConstraintSyntax))

		var syntaxErr *values.ConstraintSyntaxError
		require.True(t, errors.As(err, &syntaxErr))
		assert.Equal(t, "invalid", syntaxErr.Constraint)
	})

	t.Run("invalid version", func(t *testing.T) {
		_, err := values.Matches("not-a-version", "*")
		require.Error(t, err)
		assert.True(t, errors.Is(err, values.ErrInvalidVersion))
	})

	t.Run("range as version", func(t *testing.T) {
		_, err := values.Matches("^7.4 || ^8.0", "*")
		assert.True(t, errors.Is(err, values.ErrInvalidVersion))
	})
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.1", -1},
		{"1.0.1", "1.0.0", 1},
		{"1.0", "1.0.0", 0},
		{"1.0.0-beta", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"10.0.0", "9.9.9", 1},
	}

	for _, tc := range tests {
		t.Run(tc.a+"_"+tc.b, func(t *testing.T) {
			got, err := values.CompareVersions(tc.a, tc.b)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := values.CompareVersions("x", "1.0.0")
	assert.Error(t, err)
}

func TestParseConstraint(t *testing.T) {
	t.Parallel()

	c, err := values.ParseConstraint("^1.0")
	require.NoError(t, err)
	assert.Equal(t, "^1.0", c.String())
	assert.True(t, c.Check("1.4.0"))
	assert.False(t, c.Check("2.0.0"))
	assert.False(t, c.Check("garbage"))

	anyVersion, err := values.ParseConstraint("")
	require.NoError(t, err)
	assert.Equal(t, values.AnyVersion, anyVersion.String())
}

func TestNormalizeVersion(t *testing.T) {
	t.Parallel()

	got, err := values.NormalizeVersion("v1.2")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got)

	assert.True(t, values.IsValidVersion("2.0.0-rc.1"))
	assert.False(t, values.IsValidVersion("two"))
}
