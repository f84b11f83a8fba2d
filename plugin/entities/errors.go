package entities

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// Sentinel errors for common error patterns.
// These allow both errors.Is() checks and errors.As() for detailed information.
var (
	// ErrVersionNotFound is returned when no release satisfies a constraint.
	ErrVersionNotFound = errors.New("version not found")

	// ErrIntegrityCheckFailed is returned when digest verification fails.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")

	// ErrUntrustedSignature is returned when an artifact is signed by a key
	// the trust strategy does not accept.
	ErrUntrustedSignature = errors.New("untrusted signature")

	// ErrUnsignedArtifact is returned when a signature is required but the
	// release does not publish one.
	ErrUnsignedArtifact = errors.New("artifact is not signed")

	// ErrNoSignatureVerifier is returned when a release is signed but no
	// keyring is available to check the signature.
	ErrNoSignatureVerifier = errors.New("no keyring to verify signatures")

	// ErrRequirementNotFulfilled is returned when a release needs a platform
	// capability that is not available.
	ErrRequirementNotFulfilled = errors.New("platform requirement not fulfilled")
)

// PluginVersionNotFoundError indicates no plugin release matched.
type PluginVersionNotFoundError struct {
	Name       string
	Constraint string
}

func (e *PluginVersionNotFoundError) Error() string {
	return fmt.Sprintf("no version of plugin %s matches constraint %q", e.Name, e.Constraint)
}

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, entities.ErrVersionNotFound)
func (e *PluginVersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}

// ToolVersionNotFoundError indicates no tool release matched.
type ToolVersionNotFoundError struct {
	Plugin     string
	Tool       string
	Constraint string
}

func (e *ToolVersionNotFoundError) Error() string {
	return fmt.Sprintf("no version of tool %s (plugin %s) matches constraint %q", e.Tool, e.Plugin, e.Constraint)
}

// Is implements error matching for errors.Is() checks.
func (e *ToolVersionNotFoundError) Is(target error) bool {
	return target == ErrVersionNotFound
}

// HashMismatchError indicates a downloaded file does not match its digest.
type HashMismatchError struct {
	Path     string
	Expected values.Digest
	Actual   values.Digest
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf(
		"integrity check failed for %s: expected %s, got %s",
		e.Path,
		e.Expected.String(),
		e.Actual.String(),
	)
}

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, entities.ErrIntegrityCheckFailed)
func (e *HashMismatchError) Is(target error) bool {
	return target == ErrIntegrityCheckFailed
}

// UntrustedSignatureError indicates the signer key was not accepted.
type UntrustedSignatureError struct {
	Path        string
	Fingerprint string
	Err         error
}

func (e *UntrustedSignatureError) Error() string {
	msg := fmt.Sprintf("signature of %s", e.Path)
	if e.Fingerprint != "" {
		msg += fmt.Sprintf(" made with untrusted key %s", e.Fingerprint)
	} else {
		msg += " could not be verified"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UntrustedSignatureError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is() checks.
func (e *UntrustedSignatureError) Is(target error) bool {
	return target == ErrUntrustedSignature
}

// UnfulfilledRequirementError indicates a release cannot run on this platform.
type UnfulfilledRequirementError struct {
	Name        string
	Version     string
	Requirement string
	Constraint  string
}

func (e *UnfulfilledRequirementError) Error() string {
	return fmt.Sprintf("%s %s requires %s %s, which is not available", e.Name, e.Version, e.Requirement, e.Constraint)
}

// Is implements error matching for errors.Is() checks.
func (e *UnfulfilledRequirementError) Is(target error) bool {
	return target == ErrRequirementNotFulfilled
}
