package keystore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/trust/keystore"
)

func TestCollection(t *testing.T) {
	t.Parallel()

	c := keystore.NewCollection("F1", "f2", "F1")
	assert.Equal(t, []string{"F1", "F2"}, c.ToArray())

	t.Run("IdempotentAdd", func(t *testing.T) {
		assert.False(t, c.Add("f1"))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("NormalizedContains", func(t *testing.T) {
		c := keystore.NewCollection("ABCD EF01 2345")
		assert.True(t, c.Contains("abcdef012345"))
	})

	t.Run("RemoveMissingIsNoop", func(t *testing.T) {
		c := keystore.NewCollection("F1")
		assert.False(t, c.Remove("F9"))
		assert.True(t, c.Remove("F1"))
		assert.Zero(t, c.Len())
	})

	t.Run("ToArrayIsCopy", func(t *testing.T) {
		arr := c.ToArray()
		arr[0] = "MUTATED"
		assert.True(t, c.Contains("F1"))
	})

	t.Run("EmptyIgnored", func(t *testing.T) {
		c := keystore.NewCollection()
		assert.False(t, c.Add("   "))
	})
}

func TestFileStorage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "trusted-keys.json")

	t.Run("MissingFileIsEmpty", func(t *testing.T) {
		s, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		assert.Zero(t, s.Len())
		assert.Equal(t, path, s.Path())
	})

	t.Run("AddPersists", func(t *testing.T) {
		s, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		require.NoError(t, s.Add("F1"))

		reloaded, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		assert.True(t, reloaded.Contains("F1"))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("AddTwiceDoesNotDuplicate", func(t *testing.T) {
		s, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		before := len(s.ToArray())
		require.NoError(t, s.Add("F1"))
		assert.Len(t, s.ToArray(), before)

		reloaded, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		assert.Len(t, reloaded.ToArray(), before)
	})

	t.Run("RemovePersists", func(t *testing.T) {
		s, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		require.NoError(t, s.Remove("F1"))
		require.NoError(t, s.Remove("F1"))

		reloaded, err := keystore.NewFileStorage(keystore.WithPath(path))
		require.NoError(t, err)
		assert.False(t, reloaded.Contains("F1"))
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "trusted-keys.json", entries[0].Name())
	})
}

func TestFileStorage_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trusted-keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o600))

	_, err := keystore.NewFileStorage(keystore.WithPath(path))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	s, err := keystore.NewFileStorage(keystore.WithPath(path))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestFileStorage_ReadsExistingArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trusted-keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`["aa bb", "CC", "AABB"]`), 0o600))

	s, err := keystore.NewFileStorage(keystore.WithPath(path))
	require.NoError(t, err)
	assert.Equal(t, []string{"AABB", "CC"}, s.ToArray())
}

func TestFileStorage_FailedRemoveKeepsOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trusted-keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`["AA", "BB", "CC"]`), 0o600))
	s, err := keystore.NewFileStorage(keystore.WithPath(path))
	require.NoError(t, err)

	// A non-empty directory at the target makes the final rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o750))

	require.Error(t, s.Remove("AA"))
	assert.Equal(t, []string{"AA", "BB", "CC"}, s.ToArray())

	require.Error(t, s.Add("DD"))
	assert.Equal(t, []string{"AA", "BB", "CC"}, s.ToArray())
}

func TestFileStorage_Permissions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "private", "trusted-keys.json")
	s, err := keystore.NewFileStorage(
		keystore.WithPath(path),
		keystore.WithDirPermissions(0o700),
		keystore.WithFilePermissions(0o640),
	)
	require.NoError(t, err)
	require.NoError(t, s.Add("AA"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	info, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
