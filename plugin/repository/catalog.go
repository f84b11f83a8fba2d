// Package repository implements plugin repository adapters.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-toolchain/plugin/dto"
	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/resolvers"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// CatalogRepository implements ports.Repository over an in-memory catalog.
type CatalogRepository struct {
	name     string
	plugins  map[string][]*entities.Version
	tools    map[toolKey][]*entities.Version
	checker  ports.PlatformChecker
	resolver *resolvers.SemverResolver
	logger   *slog.Logger
}

type toolKey struct {
	plugin string
	tool   string
}

// CatalogOption configures a CatalogRepository.
type CatalogOption func(*CatalogRepository)

// WithPlatformChecker hides releases whose requirements are not fulfilled.
func WithPlatformChecker(c ports.PlatformChecker) CatalogOption {
	return func(r *CatalogRepository) { r.checker = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CatalogOption {
	return func(r *CatalogRepository) { r.logger = l }
}

// NewCatalogRepository creates an empty catalog.
func NewCatalogRepository(name string, opts ...CatalogOption) *CatalogRepository {
	r := &CatalogRepository{
		name:     name,
		plugins:  make(map[string][]*entities.Version),
		tools:    make(map[toolKey][]*entities.Version),
		resolver: resolvers.NewSemverResolver(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the repository name.
func (r *CatalogRepository) Name() string {
	return r.name
}

// AddPluginVersion adds a plugin release.
func (r *CatalogRepository) AddPluginVersion(v *entities.Version) error {
	if v.Kind() != values.KindPlugin {
		return fmt.Errorf("%s is a %s release, not a plugin", v, v.Kind())
	}
	r.plugins[v.Name()] = append(r.plugins[v.Name()], v)
	return nil
}

// AddToolVersion adds a tool release owned by plugin.
func (r *CatalogRepository) AddToolVersion(plugin string, v *entities.Version) error {
	if v.Kind() != values.KindTool {
		return fmt.Errorf("%s is a %s release, not a tool", v, v.Kind())
	}
	k := toolKey{plugin: plugin, tool: v.Name()}
	r.tools[k] = append(r.tools[k], v.ForPlugin(plugin))
	return nil
}

// FindPluginVersion returns the highest plugin release matching constraint.
func (r *CatalogRepository) FindPluginVersion(_ context.Context, name, constraint string) (*entities.Version, error) {
	v, err := r.find(r.plugins[name], constraint)
	if errors.Is(err, entities.ErrVersionNotFound) {
		return nil, &entities.PluginVersionNotFoundError{Name: name, Constraint: constraint}
	}
	return v, err
}

// FindToolVersion returns the highest tool release matching constraint.
func (r *CatalogRepository) FindToolVersion(_ context.Context, pluginName, toolName, constraint string) (*entities.Version, error) {
	v, err := r.find(r.tools[toolKey{plugin: pluginName, tool: toolName}], constraint)
	if errors.Is(err, entities.ErrVersionNotFound) {
		return nil, &entities.ToolVersionNotFoundError{Plugin: pluginName, Tool: toolName, Constraint: constraint}
	}
	return v, err
}

func (r *CatalogRepository) find(candidates []*entities.Version, constraint string) (*entities.Version, error) {
	available := make([]string, 0, len(candidates))
	byVersion := make(map[string]*entities.Version, len(candidates))
	for _, v := range candidates {
		if !r.installable(v) {
			continue
		}
		available = append(available, v.Version())
		byVersion[v.Version()] = v
	}

	chosen, err := r.resolver.Resolve(constraint, available)
	if err != nil {
		return nil, err
	}
	return byVersion[chosen], nil
}

func (r *CatalogRepository) installable(v *entities.Version) bool {
	if r.checker == nil {
		return true
	}
	for _, req := range v.Requirements().All() {
		if !r.checker.IsFulfilled(req.Name, req.Constraint) {
			r.logger.Debug("skipping release with unfulfilled requirement",
				"release", v.String(), "requirement", req.Name, "constraint", req.Constraint)
			return false
		}
	}
	return true
}

// LoadCatalog builds a CatalogRepository from a parsed catalog document.
func LoadCatalog(doc *dto.CatalogDTO, name string, opts ...CatalogOption) (*CatalogRepository, error) {
	if name == "" {
		name = doc.Name
	}
	repo := NewCatalogRepository(name, opts...)

	for _, p := range doc.Plugins {
		for _, rel := range p.Versions {
			v, err := releaseToVersion(values.KindPlugin, p.Name, rel)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %w", name, err)
			}
			if err := repo.AddPluginVersion(v); err != nil {
				return nil, err
			}
		}
		for _, t := range p.Tools {
			for _, rel := range t.Versions {
				v, err := releaseToVersion(values.KindTool, t.Name, rel)
				if err != nil {
					return nil, fmt.Errorf("catalog %s: plugin %s: %w", name, p.Name, err)
				}
				if err := repo.AddToolVersion(p.Name, v); err != nil {
					return nil, err
				}
			}
		}
	}
	return repo, nil
}

func releaseToVersion(kind values.Kind, name string, rel dto.ReleaseDTO) (*entities.Version, error) {
	digest, err := rel.ToDigest()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, name, err)
	}
	return entities.NewVersion(kind, name, rel.Version,
		entities.WithArtifactURL(rel.URL),
		entities.WithSignatureURL(rel.Signature),
		entities.WithDigest(digest),
		entities.WithRequirements(rel.ToRequirements()),
	)
}
