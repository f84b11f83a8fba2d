package ports

import (
	"context"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// HashValidator checks a downloaded file against its declared digest.
type HashValidator interface {
	// ValidateHash passes when expected is nil.
	ValidateHash(path string, expected *values.Digest) error
}

// SignatureVerifier checks a detached signature and the trust of its signer.
type SignatureVerifier interface {
	Verify(ctx context.Context, artifactPath, signaturePath string) (*SignatureResult, error)
}

// SignatureResult contains signature verification details.
type SignatureResult struct {
	Fingerprint string
	Signer      string
	Verified    bool
}
