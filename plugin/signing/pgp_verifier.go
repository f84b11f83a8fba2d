// Package signing verifies detached OpenPGP signatures on downloaded artifacts.
package signing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"golang.org/x/crypto/openpgp"
	pgperrors "golang.org/x/crypto/openpgp/errors"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/trust"
)

// LoadKeyring reads an armored public keyring.
func LoadKeyring(r io.Reader) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	return keyring, nil
}

// LoadKeyringFile reads an armored public keyring from path.
func LoadKeyringFile(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadKeyring(f)
}

// Fingerprint returns the upper-case hex fingerprint of an entity's primary key.
func Fingerprint(e *openpgp.Entity) string {
	return strings.ToUpper(hex.EncodeToString(e.PrimaryKey.Fingerprint[:]))
}

// PGPVerifier implements ports.SignatureVerifier with detached armored
// OpenPGP signatures. A valid signature is only accepted when the trust
// strategy trusts the signer.
type PGPVerifier struct {
	keyring  openpgp.EntityList
	strategy trust.Strategy
	logger   *slog.Logger
}

var _ ports.SignatureVerifier = (*PGPVerifier)(nil)

// Option configures a PGPVerifier.
type Option func(*PGPVerifier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *PGPVerifier) { v.logger = l }
}

// NewPGPVerifier creates a verifier checking signatures against keyring.
func NewPGPVerifier(keyring openpgp.EntityList, strategy trust.Strategy, opts ...Option) *PGPVerifier {
	v := &PGPVerifier{
		keyring:  keyring,
		strategy: strategy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature at signaturePath over the file at artifactPath.
// Unknown signers, bad signatures and untrusted keys all yield an
// *entities.UntrustedSignatureError.
func (v *PGPVerifier) Verify(ctx context.Context, artifactPath, signaturePath string) (*ports.SignatureResult, error) {
	artifact, err := os.Open(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = artifact.Close() }()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature: %w", err)
	}
	defer func() { _ = sig.Close() }()

	signer, err := openpgp.CheckArmoredDetachedSignature(v.keyring, artifact, sig)
	if err != nil {
		if errors.Is(err, pgperrors.ErrUnknownIssuer) {
			v.logger.Warn("artifact signed by unknown key", "artifact", artifactPath)
		}
		return nil, &entities.UntrustedSignatureError{Path: artifactPath, Err: err}
	}

	fp := Fingerprint(signer)
	trusted, err := v.strategy.IsTrusted(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("trust decision for key %s: %w", fp, err)
	}
	if !trusted {
		return nil, &entities.UntrustedSignatureError{
			Path:        artifactPath,
			Fingerprint: fp,
			Err:         errors.New("key is not trusted"),
		}
	}

	v.logger.Debug("signature verified", "artifact", artifactPath, "fingerprint", fp)
	return &ports.SignatureResult{
		Fingerprint: fp,
		Signer:      primaryIdentity(signer),
		Verified:    true,
	}, nil
}

func primaryIdentity(e *openpgp.Entity) string {
	names := make([]string, 0, len(e.Identities))
	for name := range e.Identities {
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	slices.Sort(names)
	return names[0]
}
