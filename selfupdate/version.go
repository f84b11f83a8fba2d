// Package selfupdate selects the release of the toolchain itself to update to.
package selfupdate

import (
	"fmt"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// Version is one release of the toolchain. Versions are built when the
// release catalog is loaded and never mutated.
type Version struct {
	version      string
	normalized   string
	url          string
	signatureURL string
	digest       *values.Digest
	requirements values.RequirementList
}

// VersionOption configures a Version.
type VersionOption func(*Version)

// WithSignatureURL sets the detached signature locator.
func WithSignatureURL(url string) VersionOption {
	return func(v *Version) { v.signatureURL = url }
}

// WithRequirements sets the platform requirements.
func WithRequirements(reqs values.RequirementList) VersionOption {
	return func(v *Version) { v.requirements = reqs }
}

// WithDigest sets the expected content hash.
func WithDigest(d values.Digest) VersionOption {
	return func(v *Version) {
		if !d.IsZero() {
			v.digest = &d
		}
	}
}

// NewVersion creates a release downloadable from url.
func NewVersion(version, url string, opts ...VersionOption) (*Version, error) {
	normalized, err := values.NormalizeVersion(version)
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, fmt.Errorf("release %s has no artifact URL", version)
	}
	v := &Version{version: version, normalized: normalized, url: url}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Version returns the version as published.
func (v *Version) Version() string { return v.version }

// Normalized returns the canonical semantic version.
func (v *Version) Normalized() string { return v.normalized }

// URL returns the artifact locator.
func (v *Version) URL() string { return v.url }

// SignatureURL returns the signature locator, or "".
func (v *Version) SignatureURL() string { return v.signatureURL }

// IsSigned reports whether the release has a signature locator.
func (v *Version) IsSigned() bool { return v.signatureURL != "" }

// Digest returns the expected hash, or nil.
func (v *Version) Digest() *values.Digest { return v.digest }

// Requirements returns the platform requirements.
func (v *Version) Requirements() values.RequirementList { return v.requirements }

func (v *Version) String() string { return v.version }
