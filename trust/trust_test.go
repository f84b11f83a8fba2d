package trust_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-toolchain/trust"
	"github.com/reglet-dev/reglet-toolchain/trust/keystore"
)

const fpA = "0123456789ABCDEF0123456789ABCDEF01234567"

func TestTrustedKeysStrategy(t *testing.T) {
	t.Parallel()

	s := trust.NewTrustedKeysStrategy(keystore.NewCollection(fpA))

	ok, err := s.IsTrusted(context.Background(), fpA)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsTrusted(context.Background(), "FFFF")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicyStrategy(t *testing.T) {
	t.Parallel()

	ok, err := trust.AllowAll().IsTrusted(context.Background(), fpA)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = trust.DenyAll().IsTrusted(context.Background(), fpA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInteractiveStrategy(t *testing.T) {
	t.Parallel()

	t.Run("known key is trusted without prompting", func(t *testing.T) {
		t.Parallel()
		p := &trust.StaticPrompter{Interactive: true}
		s := trust.NewInteractiveStrategy(trust.NewTrustedKeysStrategy(keystore.NewCollection(fpA)), p, nil)

		ok, err := s.IsTrusted(context.Background(), fpA)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, p.Prompts)
	})

	t.Run("non-interactive session declines unknown key", func(t *testing.T) {
		t.Parallel()
		p := &trust.StaticPrompter{Interactive: false, Answer: true}
		s := trust.NewInteractiveStrategy(trust.DenyAll(), p, nil)

		ok, err := s.IsTrusted(context.Background(), fpA)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, p.Prompts)
	})

	t.Run("operator accepts", func(t *testing.T) {
		t.Parallel()
		store := keystore.NewCollection()
		p := &trust.StaticPrompter{Interactive: true, Answer: true}
		var out bytes.Buffer
		s := trust.NewInteractiveStrategy(trust.NewTrustedKeysStrategy(store), p, &out,
			trust.WithKeysPath("/home/op/.reglet/trusted-keys.json"))

		ok, err := s.IsTrusted(context.Background(), "0123 4567 89ab cdef 0123 4567 89ab cdef 0123 4567")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, p.Prompts, 1)
		assert.Contains(t, out.String(), fpA)
		assert.Contains(t, out.String(), "/home/op/.reglet/trusted-keys.json")
		assert.Equal(t, 0, store.Len(), "session grants are never persisted")
	})

	t.Run("operator declines", func(t *testing.T) {
		t.Parallel()
		p := &trust.StaticPrompter{Interactive: true, Answer: false}
		var out bytes.Buffer
		s := trust.NewInteractiveStrategy(trust.DenyAll(), p, &out)

		ok, err := s.IsTrusted(context.Background(), fpA)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, out.String())
	})

	t.Run("prompt failure is an error", func(t *testing.T) {
		t.Parallel()
		p := &trust.StaticPrompter{Interactive: true, Err: trust.ErrPromptAborted}
		s := trust.NewInteractiveStrategy(trust.DenyAll(), p, nil)

		ok, err := s.IsTrusted(context.Background(), fpA)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, trust.ErrPromptAborted))
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &trust.StaticPrompter{Interactive: true, Answer: true}
		s := trust.NewInteractiveStrategy(trust.DenyAll(), p, nil)

		ok, err := s.IsTrusted(ctx, fpA)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, p.Prompts)
	})
}
