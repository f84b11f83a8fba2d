package services

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

func TestHashValidator(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tool.phar")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	svc := NewHashValidator(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	t.Run("NoDigestPasses", func(t *testing.T) {
		assert.NoError(t, svc.ValidateHash(path, nil))
		assert.NoError(t, svc.ValidateHash(filepath.Join(t.TempDir(), "missing"), nil))
	})

	t.Run("Match", func(t *testing.T) {
		for _, raw := range []string{
			"sha1:2aae6c35c94fcfb415dbe95f408b9ce91ee846ed",
			"sha256:B94D27B9934D3E08A52E52D7DA7DABFAC484EFE37A5380EE9088F7ACE2EFCDE9",
		} {
			d, err := values.ParseDigest(raw)
			require.NoError(t, err)
			assert.NoError(t, svc.ValidateHash(path, &d), raw)
		}
	})

	t.Run("Mismatch", func(t *testing.T) {
		d, err := values.NewDigest("sha256", "deadbeef")
		require.NoError(t, err)

		err = svc.ValidateHash(path, &d)
		require.Error(t, err)
		assert.True(t, errors.Is(err, entities.ErrIntegrityCheckFailed))

		var mismatch *entities.HashMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, path, mismatch.Path)
		assert.Equal(t, "sha256", mismatch.Actual.Algorithm())
		assert.Contains(t, err.Error(), path)
	})

	t.Run("MissingFile", func(t *testing.T) {
		d, err := values.NewDigest("sha512", "abc")
		require.NoError(t, err)
		err = svc.ValidateHash(filepath.Join(t.TempDir(), "missing"), &d)
		require.Error(t, err)
		assert.False(t, errors.Is(err, entities.ErrIntegrityCheckFailed))
	})
}
