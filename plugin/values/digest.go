package values

import (
	"crypto/sha1" //nolint:gosec // catalogs still publish sha1 sums
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Supported digest algorithms.
const (
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
	AlgorithmSHA384 = "sha384"
	AlgorithmSHA512 = "sha512"
)

// Digest is a hash descriptor: an algorithm and the expected hex value.
type Digest struct {
	algorithm string
	value     string // lower-case hex
}

// NewDigest creates a digest from algorithm and hex value.
func NewDigest(algorithm, hexValue string) (Digest, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if _, err := newHash(algorithm); err != nil {
		return Digest{}, err
	}
	hexValue = strings.ToLower(strings.TrimSpace(hexValue))
	if hexValue == "" {
		return Digest{}, fmt.Errorf("empty %s digest value", algorithm)
	}

	return Digest{
		algorithm: algorithm,
		value:     hexValue,
	}, nil
}

// ParseDigest parses a digest string (e.g., "sha256:abc123...").
func ParseDigest(s string) (Digest, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Digest{}, fmt.Errorf("invalid digest format: %s", s)
	}
	return NewDigest(parts[0], parts[1])
}

// String returns the canonical digest string.
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.algorithm, d.value)
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Value returns the hex-encoded hash value.
func (d Digest) Value() string {
	return d.value
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.algorithm == "" && d.value == ""
}

// Equals checks equality with another digest.
func (d Digest) Equals(other Digest) bool {
	return d.algorithm == other.algorithm && d.value == other.value
}

// ComputeDigest streams r through the named algorithm.
func ComputeDigest(algorithm string, r io.Reader) (Digest, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return Digest{
		algorithm: algorithm,
		value:     hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// ComputeFileDigest hashes the file at path with the named algorithm.
func ComputeFileDigest(algorithm, path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer func() { _ = f.Close() }()

	return ComputeDigest(algorithm, f)
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmSHA1:
		return sha1.New(), nil //nolint:gosec
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA384:
		return sha512.New384(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
}
