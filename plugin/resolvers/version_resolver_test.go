package resolvers_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/resolvers"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

func TestSemverResolver_Resolve(t *testing.T) {
	t.Parallel()

	resolver := resolvers.NewSemverResolver()

	// Constraint grammar is covered in the values package; these cases are
	// about picking from a catalog's version list.
	tests := []struct {
		name       string
		constraint string
		available  []string
		expected   string
	}{
		{
			name:       "catalog order does not matter",
			constraint: "^2.3",
			available:  []string{"2.4.1", "2.3.0", "3.0.0", "2.10.0", "2.9.7"},
			expected:   "2.10.0",
		},
		{
			name:       "returned as written in the catalog",
			constraint: "~1.4",
			available:  []string{"v1.4.0", "v1.4.2", "v1.5.0"},
			expected:   "v1.4.2",
		},
		{
			name:       "short release tags",
			constraint: ">=3",
			available:  []string{"2.9", "3.1", "3.0"},
			expected:   "3.1",
		},
		{
			name:       "unparseable catalog entries skipped",
			constraint: "latest",
			available:  []string{"nightly", "1.2.0", "^9.0", "1.3.0"},
			expected:   "1.3.0",
		},
		{
			name:       "stable preferred over newer release candidate",
			constraint: "",
			available:  []string{"4.0.0-rc.2", "3.8.1"},
			expected:   "3.8.1",
		},
		{
			name:       "release candidate when asked for explicitly",
			constraint: ">=4.0.0-rc.1",
			available:  []string{"4.0.0-rc.1", "4.0.0-rc.2", "3.8.1"},
			expected:   "4.0.0-rc.2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolver.Resolve(tc.constraint, tc.available)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSemverResolver_Errors(t *testing.T) {
	t.Parallel()

	resolver := resolvers.NewSemverResolver()

	_, err := resolver.Resolve("^3.0", []string{"2.4.1", "2.10.0"})
	assert.True(t, errors.Is(err, entities.ErrVersionNotFound))

	_, err = resolver.Resolve("^1.0", nil)
	assert.True(t, errors.Is(err, entities.ErrVersionNotFound))

	_, err = resolver.Resolve("one point two", []string{"1.2.0"})
	assert.True(t, errors.Is(err, values.ErrConstraintSyntax))
}
