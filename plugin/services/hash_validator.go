// Package services holds domain services shared by task execution.
package services

import (
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// HashValidator verifies downloaded files against their declared digest.
type HashValidator struct {
	logger *slog.Logger
}

// HashValidatorOption configures a HashValidator.
type HashValidatorOption func(*HashValidator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HashValidatorOption {
	return func(v *HashValidator) { v.logger = l }
}

// NewHashValidator creates a hash validator.
func NewHashValidator(opts ...HashValidatorOption) *HashValidator {
	v := &HashValidator{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateHash recomputes the digest of path with the algorithm of expected.
// A nil expected digest means the release declares none and always passes.
func (v *HashValidator) ValidateHash(path string, expected *values.Digest) error {
	if expected == nil || expected.IsZero() {
		v.logger.Debug("no digest declared, skipping integrity check", "path", path)
		return nil
	}

	actual, err := values.ComputeFileDigest(expected.Algorithm(), path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}

	if !actual.Equals(*expected) {
		return &entities.HashMismatchError{
			Path:     path,
			Expected: *expected,
			Actual:   actual,
		}
	}

	v.logger.Debug("digest verified", "path", path, "digest", actual.String())
	return nil
}
