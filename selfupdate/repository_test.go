package selfupdate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/plugin"
	"github.com/reglet-dev/reglet-toolchain/plugin/dto"
	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
	"github.com/reglet-dev/reglet-toolchain/selfupdate"
)

func release(t *testing.T, version string, opts ...selfupdate.VersionOption) *selfupdate.Version {
	t.Helper()
	v, err := selfupdate.NewVersion(version, "https://get.example.org/reglet-"+version, opts...)
	require.NoError(t, err)
	return v
}

func signed() selfupdate.VersionOption {
	return selfupdate.WithSignatureURL("https://get.example.org/reglet.asc")
}

func newRepo(checker *plugin.MockPlatformChecker) *selfupdate.VersionRepository {
	return selfupdate.NewVersionRepository(checker, selfupdate.WithLogger(plugin.NewTestLogger()))
}

func TestFindMatchingVersion_SignedOnly(t *testing.T) {
	t.Parallel()

	repo := newRepo(&plugin.MockPlatformChecker{})
	repo.AddVersion(release(t, "1.0.0", signed()))
	repo.AddVersion(release(t, "2.0.0"))

	v, err := repo.FindMatchingVersion("", true)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version())

	v, err = repo.FindMatchingVersion("", false)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v.Version())
}

func TestFindMatchingVersion_PlatformGating(t *testing.T) {
	t.Parallel()

	checker := &plugin.MockPlatformChecker{Available: map[string]string{"php": "8.2.0"}}
	repo := newRepo(checker)
	repo.AddVersion(release(t, "1.0.0", signed(),
		selfupdate.WithRequirements(values.NewRequirementList(values.Requirement{Name: "php", Constraint: ">=8.1"}))))
	repo.AddVersion(release(t, "3.0.0", signed(),
		selfupdate.WithRequirements(values.NewRequirementList(
			values.Requirement{Name: "php", Constraint: ">=8.1"},
			values.Requirement{Name: "ext-nonexistent", Constraint: "*"},
		))))

	v, err := repo.FindMatchingVersion("", true)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.Version())
	assert.Equal(t, []string{"php", "php", "ext-nonexistent"}, checker.Queries,
		"each requirement of each candidate is checked once")
}

func TestFindMatchingVersion_Constraint(t *testing.T) {
	t.Parallel()

	repo := newRepo(&plugin.MockPlatformChecker{})
	for _, v := range []string{"1.2.0", "1.9.3", "2.0.0", "v1.10.0"} {
		repo.AddVersion(release(t, v, signed()))
	}

	v, err := repo.FindMatchingVersion("^1.0", true)
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", v.Version())
	assert.Equal(t, "1.10.0", v.Normalized())

	v, err = repo.FindMatchingVersion("<1.5", true)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v.Version())

	_, err = repo.FindMatchingVersion("not a constraint", true)
	assert.True(t, errors.Is(err, values.ErrConstraintSyntax))
}

func TestFindMatchingVersion_TieBreak(t *testing.T) {
	t.Parallel()

	repo := newRepo(&plugin.MockPlatformChecker{})
	repo.AddVersion(release(t, "1.0.0+build.9", signed()))
	repo.AddVersion(release(t, "1.0.0+build.10", signed()))
	repo.AddVersion(release(t, "1.0.0-rc.1", signed()))

	v, err := repo.FindMatchingVersion("", true)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0+build.10", v.Version())
}

func TestFindMatchingVersion_Prereleases(t *testing.T) {
	t.Parallel()

	t.Run("only prereleases published", func(t *testing.T) {
		repo := newRepo(&plugin.MockPlatformChecker{})
		repo.AddVersion(release(t, "2.0.0-rc.1", signed()))

		v, err := repo.FindMatchingVersion("", true)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0-rc.1", v.Version())
	})

	t.Run("newer prerelease wins without constraint", func(t *testing.T) {
		repo := newRepo(&plugin.MockPlatformChecker{})
		repo.AddVersion(release(t, "1.9.0", signed()))
		repo.AddVersion(release(t, "2.0.0-rc.9", signed()))
		repo.AddVersion(release(t, "2.0.0-rc.10", signed()))

		v, err := repo.FindMatchingVersion("", true)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0-rc.10", v.Version())
	})

	t.Run("constraint excludes prereleases", func(t *testing.T) {
		repo := newRepo(&plugin.MockPlatformChecker{})
		repo.AddVersion(release(t, "1.9.0", signed()))
		repo.AddVersion(release(t, "2.0.0-rc.1", signed()))

		v, err := repo.FindMatchingVersion("*", true)
		require.NoError(t, err)
		assert.Equal(t, "1.9.0", v.Version())
	})
}

func TestFindMatchingVersion_NotFound(t *testing.T) {
	t.Parallel()

	repo := newRepo(&plugin.MockPlatformChecker{})
	repo.AddVersion(release(t, "2.0.0"))

	_, err := repo.FindMatchingVersion("", true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrVersionNotFound))

	var notFound *selfupdate.SelfUpdateVersionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "*", notFound.Constraint)

	_, err = repo.FindMatchingVersion("^3", false)
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "^3", notFound.Constraint)
}

func TestAddVersion_KeepsDuplicates(t *testing.T) {
	t.Parallel()

	repo := newRepo(&plugin.MockPlatformChecker{})
	repo.AddVersion(release(t, "1.0.0"))
	repo.AddVersion(release(t, "1.0.0", signed()))

	assert.Len(t, repo.Versions(), 2)

	v, err := repo.FindMatchingVersion("1.0.0", true)
	require.NoError(t, err)
	assert.True(t, v.IsSigned())
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	doc := &dto.SelfUpdateCatalogDTO{Versions: []dto.ReleaseDTO{
		{
			Version:      "1.4.0",
			URL:          "https://get.example.org/reglet-1.4.0",
			Signature:    "https://get.example.org/reglet-1.4.0.asc",
			Hash:         "sha256:ABCDEF",
			Requirements: map[string]string{"os": "linux"},
		},
		{Version: "garbage", URL: "https://get.example.org/x"},
		{Version: "1.5.0", URL: "https://get.example.org/reglet-1.5.0", Hash: "md5:00"},
	}}

	repo := newRepo(&plugin.MockPlatformChecker{Available: map[string]string{"os": ""}})
	err := selfupdate.LoadCatalog(doc, repo)
	require.Error(t, err)
	assert.ErrorContains(t, err, "garbage")
	assert.ErrorContains(t, err, "1.5.0")

	require.Len(t, repo.Versions(), 1)
	v, err := repo.FindMatchingVersion("", true)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", v.Version())
	require.NotNil(t, v.Digest())
	assert.Equal(t, "sha256:abcdef", v.Digest().String())
}
