package entities

import (
	"fmt"
	"path"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// Version is a single installable release of a plugin or tool.
// Versions are produced when a catalog is loaded and never mutated.
type Version struct {
	version      string
	kind         values.Kind
	name         values.Name
	plugin       string
	artifact     string
	url          string
	signatureURL string
	digest       *values.Digest
	requirements values.RequirementList
}

// VersionOption configures a Version during construction.
type VersionOption func(*Version)

// WithArtifactURL sets the artifact locator.
func WithArtifactURL(url string) VersionOption {
	return func(v *Version) {
		v.url = url
	}
}

// WithSignatureURL sets the detached signature locator.
func WithSignatureURL(url string) VersionOption {
	return func(v *Version) {
		v.signatureURL = url
	}
}

// WithDigest sets the expected content hash.
func WithDigest(d values.Digest) VersionOption {
	return func(v *Version) {
		if d.IsZero() {
			v.digest = nil
			return
		}
		v.digest = &d
	}
}

// WithRequirements sets the platform requirements.
func WithRequirements(reqs values.RequirementList) VersionOption {
	return func(v *Version) {
		v.requirements = reqs
	}
}

// WithArtifactName overrides the file name used in the artifact store.
func WithArtifactName(name string) VersionOption {
	return func(v *Version) {
		v.artifact = name
	}
}

// WithOwner records the plugin owning a tool version.
func WithOwner(plugin string) VersionOption {
	return func(v *Version) {
		v.plugin = plugin
	}
}

// NewVersion creates a Version for the named plugin or tool.
func NewVersion(kind values.Kind, name, version string, opts ...VersionOption) (*Version, error) {
	if _, err := values.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	n, err := values.NewName(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s name: %w", kind, err)
	}
	if !values.IsValidVersion(version) {
		return nil, &values.InvalidVersionError{Version: version, Err: fmt.Errorf("%s %s", kind, name)}
	}

	v := &Version{
		version: version,
		kind:    kind,
		name:    n,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Version returns the version string as published.
func (v *Version) Version() string {
	return v.version
}

// Kind returns whether this is a plugin or a tool release.
func (v *Version) Kind() values.Kind {
	return v.kind
}

// Name returns the plugin or tool name.
func (v *Version) Name() string {
	return v.name.String()
}

// Plugin returns the owning plugin name for tools, empty for plugins.
func (v *Version) Plugin() string {
	return v.plugin
}

// ArtifactName returns the file name of the artifact.
// Defaults to the last element of the artifact URL, or the name when no
// URL is set.
func (v *Version) ArtifactName() string {
	if v.artifact != "" {
		return v.artifact
	}
	if v.url != "" {
		if base := path.Base(v.url); base != "." && base != "/" {
			return base
		}
	}
	return v.name.String()
}

// URL returns the artifact locator.
func (v *Version) URL() string {
	return v.url
}

// SignatureURL returns the detached signature locator, if any.
func (v *Version) SignatureURL() string {
	return v.signatureURL
}

// IsSigned reports whether the release publishes a signature.
func (v *Version) IsSigned() bool {
	return v.signatureURL != ""
}

// Digest returns the expected content hash, or nil if none was declared.
func (v *Version) Digest() *values.Digest {
	return v.digest
}

// Requirements returns the platform requirements.
func (v *Version) Requirements() values.RequirementList {
	return v.requirements
}

// Compare compares this version semantically with other.
func (v *Version) Compare(other *Version) (int, error) {
	return values.CompareVersions(v.version, other.version)
}

// ForPlugin returns a copy of a tool version bound to its owning plugin.
func (v *Version) ForPlugin(plugin string) *Version {
	c := *v
	c.plugin = plugin
	return &c
}

// String returns "name@version".
func (v *Version) String() string {
	return v.name.String() + "@" + v.version
}
