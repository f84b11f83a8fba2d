package resolvers

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// SemverResolver picks the highest version from a list using Masterminds/semver.
type SemverResolver struct{}

// NewSemverResolver creates a new SemverResolver.
func NewSemverResolver() *SemverResolver {
	return &SemverResolver{}
}

// Resolve converts a version constraint to an exact version from the available options.
// It returns the highest version that satisfies the constraint, as written in
// available. "latest" and the empty constraint accept any version.
func (r *SemverResolver) Resolve(constraint string, available []string) (string, error) {
	c, err := values.ParseConstraint(constraint)
	if err != nil {
		return "", err
	}

	var valid []*semver.Version
	for _, vStr := range available {
		if !c.Check(vStr) {
			continue
		}
		v, err := semver.NewVersion(vStr)
		if err != nil {
			continue // Skip invalid versions in availability list
		}
		valid = append(valid, v)
	}

	if len(valid) == 0 {
		return "", fmt.Errorf("no version satisfies constraint %q from available options: %w", constraint, entities.ErrVersionNotFound)
	}

	// Collection sorts ascending, so the last element is the highest.
	sort.Stable(semver.Collection(valid))
	highest := valid[len(valid)-1]

	return highest.Original(), nil
}
