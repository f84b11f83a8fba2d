// Package trust decides whether an artifact signing key is trusted.
package trust

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/reglet-dev/reglet-toolchain/trust/keystore"
)

// Strategy decides whether a key fingerprint is trusted.
type Strategy interface {
	IsTrusted(ctx context.Context, fingerprint string) (bool, error)
}

// KeyStore is the read side of a trusted key store.
type KeyStore interface {
	Contains(fingerprint string) bool
}

// TrustedKeysStrategy trusts exactly the keys in a key store.
type TrustedKeysStrategy struct {
	store KeyStore
}

// NewTrustedKeysStrategy creates a strategy backed by store.
func NewTrustedKeysStrategy(store KeyStore) *TrustedKeysStrategy {
	return &TrustedKeysStrategy{store: store}
}

// IsTrusted reports whether the store contains fingerprint.
func (s *TrustedKeysStrategy) IsTrusted(_ context.Context, fingerprint string) (bool, error) {
	return s.store.Contains(fingerprint), nil
}

// PolicyStrategy answers every question the same way. Meant for CI.
type PolicyStrategy struct {
	allow bool
}

// AllowAll trusts every key.
func AllowAll() *PolicyStrategy { return &PolicyStrategy{allow: true} }

// DenyAll trusts no key.
func DenyAll() *PolicyStrategy { return &PolicyStrategy{allow: false} }

// IsTrusted returns the fixed policy answer.
func (s *PolicyStrategy) IsTrusted(context.Context, string) (bool, error) {
	return s.allow, nil
}

// InteractiveStrategy asks the operator about keys the inner strategy does
// not trust. A granted key is trusted for this session only: the strategy
// never writes to the key store.
type InteractiveStrategy struct {
	inner    Strategy
	prompter Prompter
	output   io.Writer
	hint     string
	logger   *slog.Logger
}

// InteractiveOption configures an InteractiveStrategy.
type InteractiveOption func(*InteractiveStrategy)

// WithKeysPath names the trusted keys file in the advisory message.
func WithKeysPath(path string) InteractiveOption {
	return func(s *InteractiveStrategy) { s.hint = path }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) InteractiveOption {
	return func(s *InteractiveStrategy) { s.logger = l }
}

// NewInteractiveStrategy wraps inner with an operator prompt.
func NewInteractiveStrategy(inner Strategy, prompter Prompter, output io.Writer, opts ...InteractiveOption) *InteractiveStrategy {
	s := &InteractiveStrategy{
		inner:    inner,
		prompter: prompter,
		output:   output,
		logger:   slog.Default(),
	}
	if s.output == nil {
		s.output = io.Discard
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsTrusted consults the inner strategy first and only prompts for unknown
// keys. The prompt defaults to no. Cancellation and prompter failures are
// returned as errors.
func (s *InteractiveStrategy) IsTrusted(ctx context.Context, fingerprint string) (bool, error) {
	trusted, err := s.inner.IsTrusted(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	if trusted {
		return true, nil
	}

	if !s.prompter.IsInteractive() {
		s.logger.Debug("not prompting for key trust in non-interactive session", "fingerprint", fingerprint)
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fp := keystore.NormalizeFingerprint(fingerprint)
	ok, err := s.prompter.Confirm(ctx,
		"Trust signing key?",
		fmt.Sprintf("The artifact is signed with the unknown key %s.\nDo you want to trust this key for this session?", fp),
	)
	if err != nil {
		return false, fmt.Errorf("trust prompt for key %s: %w", fp, err)
	}
	if !ok {
		s.logger.Info("key declined by operator", "fingerprint", fp)
		return false, nil
	}

	s.advise(fp)
	return true, nil
}

func (s *InteractiveStrategy) advise(fp string) {
	where := "your trusted keys file"
	if s.hint != "" {
		where = s.hint
	}
	_, _ = fmt.Fprintf(s.output,
		"Key %s is trusted for this session only.\nTo trust it permanently, add %q to %s.\n",
		fp, fp, where)
}
