package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

func TestNewVersion(t *testing.T) {
	t.Parallel()

	digest, err := values.ParseDigest("sha256:abc")
	require.NoError(t, err)

	v, err := NewVersion(values.KindTool, "phpstan", "1.10.3",
		WithArtifactURL("https://example.org/phpstan/1.10.3/phpstan.phar"),
		WithSignatureURL("https://example.org/phpstan/1.10.3/phpstan.phar.asc"),
		WithDigest(digest),
		WithRequirements(values.NewRequirementList(values.Requirement{Name: "php", Constraint: "^8.1"})),
	)
	require.NoError(t, err)

	assert.Equal(t, "phpstan", v.Name())
	assert.Equal(t, "1.10.3", v.Version())
	assert.Equal(t, values.KindTool, v.Kind())
	assert.Equal(t, "phpstan.phar", v.ArtifactName())
	assert.True(t, v.IsSigned())
	require.NotNil(t, v.Digest())
	assert.Equal(t, "sha256:abc", v.Digest().String())
	assert.True(t, v.Requirements().Has("php"))
	assert.Equal(t, "phpstan@1.10.3", v.String())
	assert.Empty(t, v.Plugin())

	owned := v.ForPlugin("phpstan-plugin")
	assert.Equal(t, "phpstan-plugin", owned.Plugin())
	assert.Empty(t, v.Plugin(), "ForPlugin must not mutate the original")
}

func TestNewVersion_Defaults(t *testing.T) {
	t.Parallel()

	v, err := NewVersion(values.KindPlugin, "psalm", "5.0.0", WithDigest(values.Digest{}))
	require.NoError(t, err)
	assert.Nil(t, v.Digest())
	assert.False(t, v.IsSigned())
	assert.Equal(t, "psalm", v.ArtifactName())
}

func TestNewVersion_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    values.Kind
		plugin  string
		version string
	}{
		{"bad kind", values.Kind("library"), "foo", "1.0.0"},
		{"bad name", values.KindPlugin, "../foo", "1.0.0"},
		{"bad version", values.KindPlugin, "foo", "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewVersion(tt.kind, tt.plugin, tt.version)
			assert.Error(t, err)
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	t.Parallel()

	a, _ := NewVersion(values.KindPlugin, "foo", "1.0.0")
	b, _ := NewVersion(values.KindPlugin, "foo", "1.0.1")

	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)
}
