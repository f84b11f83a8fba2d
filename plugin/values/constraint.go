package values

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// AnyVersion is the constraint accepted for "no particular version".
const AnyVersion = "*"

var (
	// ErrConstraintSyntax is returned when a constraint string cannot be parsed.
	ErrConstraintSyntax = errors.New("invalid version constraint")

	// ErrInvalidVersion is returned when a version string is not a semantic version.
	ErrInvalidVersion = errors.New("invalid version")
)

// ConstraintSyntaxError reports a malformed constraint string.
type ConstraintSyntaxError struct {
	Err        error
	Constraint string
}

func (e *ConstraintSyntaxError) Error() string {
	return fmt.Sprintf("invalid version constraint %q: %v", e.Constraint, e.Err)
}

func (e *ConstraintSyntaxError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, values.ErrConstraintSyntax).
func (e *ConstraintSyntaxError) Is(target error) bool {
	return target == ErrConstraintSyntax
}

// InvalidVersionError reports a version string that is not a semantic version.
type InvalidVersionError struct {
	Err     error
	Version string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: %v", e.Version, e.Err)
}

func (e *InvalidVersionError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, values.ErrInvalidVersion).
func (e *InvalidVersionError) Is(target error) bool {
	return target == ErrInvalidVersion
}

// Constraint is a parsed version range expression.
// Supports exact versions, comparison operators, caret and tilde ranges,
// wildcards, AND (whitespace or comma) and OR ("||").
type Constraint struct {
	raw         string
	constraints *semver.Constraints
}

// ParseConstraint parses a constraint string. The empty string and "latest"
// are treated as "*".
func ParseConstraint(raw string) (*Constraint, error) {
	expr := strings.TrimSpace(raw)
	if expr == "" || expr == "latest" {
		expr = AnyVersion
	}

	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, &ConstraintSyntaxError{Constraint: raw, Err: err}
	}
	return &Constraint{raw: expr, constraints: c}, nil
}

// String returns the constraint expression.
func (c *Constraint) String() string {
	return c.raw
}

// Check reports whether the version satisfies the constraint.
// Versions that cannot be parsed never satisfy a constraint.
func (c *Constraint) Check(version string) bool {
	v, err := parseVersion(version)
	if err != nil {
		return false
	}
	return c.constraints.Check(v)
}

// Matches reports whether version satisfies constraint.
//
// A version argument carrying a range operator (for example "^7.4") is
// reduced to its lower bound before matching.
func Matches(version, constraint string) (bool, error) {
	c, err := ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	v, err := parseVersion(version)
	if err != nil {
		return false, err
	}
	return c.constraints.Check(v), nil
}

// CompareVersions compares two versions semantically.
// Returns -1 if a < b, 0 if a == b and 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// NormalizeVersion returns the canonical major.minor.patch[-pre][+meta] form.
func NormalizeVersion(version string) (string, error) {
	v, err := parseVersion(version)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// IsValidVersion reports whether version parses as a semantic version.
func IsValidVersion(version string) bool {
	_, err := parseVersion(version)
	return err == nil
}

func parseVersion(version string) (*semver.Version, error) {
	trimmed := strings.TrimSpace(version)
	if strings.ContainsAny(trimmed, " |,") {
		return nil, &InvalidVersionError{Version: version, Err: errors.New("ranges are not versions")}
	}
	trimmed = strings.TrimLeft(trimmed, "^~<>=!")
	trimmed = strings.TrimPrefix(trimmed, "v")

	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return nil, &InvalidVersionError{Version: version, Err: err}
	}
	return v, nil
}
