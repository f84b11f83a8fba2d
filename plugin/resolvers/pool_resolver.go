package resolvers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
)

// PoolResolver resolves versions against an ordered pool of repositories.
// Repositories are consulted in priority order and the first match wins;
// there is no search for the best match across repositories.
type PoolResolver struct {
	repositories []ports.Repository
	logger       *slog.Logger
}

// PoolResolverOption configures a PoolResolver.
type PoolResolverOption func(*PoolResolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PoolResolverOption {
	return func(r *PoolResolver) { r.logger = l }
}

// NewPoolResolver creates a resolver over repositories, highest priority first.
func NewPoolResolver(repositories []ports.Repository, opts ...PoolResolverOption) *PoolResolver {
	r := &PoolResolver{
		repositories: append([]ports.Repository(nil), repositories...),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolvePluginVersion returns the first plugin release matching constraint.
func (r *PoolResolver) ResolvePluginVersion(ctx context.Context, name, constraint string) (*entities.Version, error) {
	for _, repo := range r.repositories {
		v, err := repo.FindPluginVersion(ctx, name, constraint)
		if err == nil {
			r.logger.Debug("resolved plugin", "plugin", name, "constraint", constraint, "version", v.Version(), "repository", repo.Name())
			return v, nil
		}
		if !errors.Is(err, entities.ErrVersionNotFound) {
			return nil, fmt.Errorf("repository %s: %w", repo.Name(), err)
		}
	}
	return nil, &entities.PluginVersionNotFoundError{Name: name, Constraint: constraint}
}

// ResolveToolVersion returns the first tool release matching constraint.
func (r *PoolResolver) ResolveToolVersion(ctx context.Context, pluginName, toolName, constraint string) (*entities.Version, error) {
	for _, repo := range r.repositories {
		v, err := repo.FindToolVersion(ctx, pluginName, toolName, constraint)
		if err == nil {
			r.logger.Debug("resolved tool", "plugin", pluginName, "tool", toolName, "constraint", constraint, "version", v.Version(), "repository", repo.Name())
			return v, nil
		}
		if !errors.Is(err, entities.ErrVersionNotFound) {
			return nil, fmt.Errorf("repository %s: %w", repo.Name(), err)
		}
	}
	return nil, &entities.ToolVersionNotFoundError{Plugin: pluginName, Tool: toolName, Constraint: constraint}
}
