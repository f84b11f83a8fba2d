package selfupdate

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/reglet-dev/reglet-toolchain/plugin/dto"
	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// SelfUpdateVersionNotFoundError reports that no release qualifies.
type SelfUpdateVersionNotFoundError struct {
	Constraint string
	SignedOnly bool
}

func (e *SelfUpdateVersionNotFoundError) Error() string {
	msg := fmt.Sprintf("no self-update version matches constraint %q", e.Constraint)
	if e.SignedOnly {
		msg += " among signed releases"
	}
	return msg
}

// Is implements error matching for errors.Is() checks.
func (e *SelfUpdateVersionNotFoundError) Is(target error) bool {
	return target == entities.ErrVersionNotFound
}

// VersionRepository is the in-memory release catalog of the toolchain.
type VersionRepository struct {
	checker  ports.PlatformChecker
	versions []*Version
	logger   *slog.Logger
}

// Option configures a VersionRepository.
type Option func(*VersionRepository)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *VersionRepository) { r.logger = l }
}

// NewVersionRepository creates an empty catalog gated by checker.
func NewVersionRepository(checker ports.PlatformChecker, opts ...Option) *VersionRepository {
	r := &VersionRepository{
		checker: checker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddVersion appends a release. Duplicates are kept and compete
// independently during selection.
func (r *VersionRepository) AddVersion(v *Version) {
	r.versions = append(r.versions, v)
}

// Versions returns the releases in insertion order.
func (r *VersionRepository) Versions() []*Version {
	return slices.Clone(r.versions)
}

// FindMatchingVersion returns the greatest release that runs on this
// platform, satisfies constraint ("" for any) and, when signedOnly is set,
// has a signature.
func (r *VersionRepository) FindMatchingVersion(constraint string, signedOnly bool) (*Version, error) {
	// No constraint means every release competes, prereleases included.
	var c *values.Constraint
	if constraint != "" {
		parsed, err := values.ParseConstraint(constraint)
		if err != nil {
			return nil, err
		}
		c = parsed
	}

	var best *Version
	for _, v := range r.versions {
		if !r.installable(v) {
			continue
		}
		if c != nil && !c.Check(v.normalized) {
			continue
		}
		if signedOnly && !v.IsSigned() {
			continue
		}
		if best == nil || greater(v, best) {
			best = v
		}
	}

	if best == nil {
		shown := constraint
		if shown == "" {
			shown = values.AnyVersion
		}
		return nil, &SelfUpdateVersionNotFoundError{Constraint: shown, SignedOnly: signedOnly}
	}

	r.logger.Debug("selected self-update version", "version", best.version, "constraint", constraint)
	return best, nil
}

// installable queries the checker once per requirement.
func (r *VersionRepository) installable(v *Version) bool {
	ok := true
	for _, req := range v.requirements.All() {
		if !r.checker.IsFulfilled(req.Name, req.Constraint) {
			r.logger.Debug("self-update version not installable",
				"version", v.version, "requirement", req.Name, "constraint", req.Constraint)
			ok = false
		}
	}
	return ok
}

func greater(a, b *Version) bool {
	cmp, err := values.CompareVersions(a.normalized, b.normalized)
	if err == nil && cmp != 0 {
		return cmp > 0
	}
	return naturalLess(b.normalized, a.normalized)
}

// LoadCatalog adds every release of doc to repo. Malformed releases are
// reported together.
func LoadCatalog(doc *dto.SelfUpdateCatalogDTO, repo *VersionRepository) error {
	if doc == nil {
		return errors.New("nil self-update catalog")
	}

	var errs []error
	for i := range doc.Versions {
		rel := &doc.Versions[i]

		opts := []VersionOption{
			WithSignatureURL(rel.Signature),
			WithRequirements(rel.ToRequirements()),
		}
		if rel.Hash != "" {
			d, err := rel.ToDigest()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			opts = append(opts, WithDigest(d))
		}

		v, err := NewVersion(rel.Version, rel.URL, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", rel.Version, err))
			continue
		}
		repo.AddVersion(v)
	}
	return errors.Join(errs...)
}
