package resolvers

import (
	"context"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// InstalledResolver resolves only against what is already installed.
// It validates that a locked installation still satisfies a possibly changed
// constraint without consulting any remote repository.
type InstalledResolver struct {
	installed *entities.InstalledRepository
}

// NewInstalledResolver creates a resolver over an installed snapshot.
func NewInstalledResolver(installed *entities.InstalledRepository) *InstalledResolver {
	if installed == nil {
		installed = entities.NewInstalledRepository()
	}
	return &InstalledResolver{installed: installed}
}

// ResolvePluginVersion returns the installed plugin version if it matches.
func (r *InstalledResolver) ResolvePluginVersion(_ context.Context, name, constraint string) (*entities.Version, error) {
	p := r.installed.Plugin(name)
	if p == nil {
		return nil, &entities.PluginVersionNotFoundError{Name: name, Constraint: constraint}
	}
	ok, err := values.Matches(p.Version().Version(), constraint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &entities.PluginVersionNotFoundError{Name: name, Constraint: constraint}
	}
	return p.Version(), nil
}

// ResolveToolVersion returns the installed tool version if it matches.
func (r *InstalledResolver) ResolveToolVersion(_ context.Context, pluginName, toolName, constraint string) (*entities.Version, error) {
	notFound := &entities.ToolVersionNotFoundError{Plugin: pluginName, Tool: toolName, Constraint: constraint}

	v := r.installed.Tool(pluginName, toolName)
	if v == nil {
		return nil, notFound
	}
	ok, err := values.Matches(v.Version(), constraint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound
	}
	return v, nil
}
