// Package ports defines the interfaces the toolchain core consumes.
package ports

import (
	"context"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
)

// VersionResolver turns a (name, constraint) pair into a concrete release.
// Implementations fail with an error matching entities.ErrVersionNotFound
// when nothing satisfies the constraint.
type VersionResolver interface {
	ResolvePluginVersion(ctx context.Context, name, constraint string) (*entities.Version, error)
	ResolveToolVersion(ctx context.Context, pluginName, toolName, constraint string) (*entities.Version, error)
}

// Repository is one source of available plugin and tool releases.
// A miss is reported with an error matching entities.ErrVersionNotFound;
// any other error aborts resolution.
type Repository interface {
	// Name identifies the repository in logs.
	Name() string

	FindPluginVersion(ctx context.Context, name, constraint string) (*entities.Version, error)
	FindToolVersion(ctx context.Context, pluginName, toolName, constraint string) (*entities.Version, error)
}

// PlatformChecker reports whether the running platform fulfills a
// requirement such as ("php", "^8.1") or ("ext-json", "*").
type PlatformChecker interface {
	IsFulfilled(name, constraint string) bool
}
