package entities

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// InstalledPlugin is an installed plugin with the tools it owns.
type InstalledPlugin struct {
	version *Version
	tools   map[string]*Version
}

// Version returns the installed plugin version.
func (p *InstalledPlugin) Version() *Version {
	return p.version
}

// Tool returns the installed version of the named tool, or nil.
func (p *InstalledPlugin) Tool(name string) *Version {
	return p.tools[name]
}

// ToolNames returns the installed tool names, sorted.
func (p *InstalledPlugin) ToolNames() []string {
	return slices.Sorted(maps.Keys(p.tools))
}

// InstalledRepository is the snapshot of everything currently installed.
// It is the "installed" side of a plan and is mutated only by task execution.
//
// Invariants:
// - every tool belongs to exactly one installed plugin
// - tool versions record their owning plugin
type InstalledRepository struct {
	Updated time.Time
	plugins map[string]*InstalledPlugin
}

// NewInstalledRepository creates an empty snapshot.
func NewInstalledRepository() *InstalledRepository {
	return &InstalledRepository{
		plugins: make(map[string]*InstalledPlugin),
	}
}

// Plugin returns the installed plugin record, or nil.
func (r *InstalledRepository) Plugin(name string) *InstalledPlugin {
	return r.plugins[name]
}

// HasPlugin reports whether the plugin is installed.
func (r *InstalledRepository) HasPlugin(name string) bool {
	_, ok := r.plugins[name]
	return ok
}

// AddPlugin adds or replaces an installed plugin version.
// Tools of a replaced plugin are kept.
func (r *InstalledRepository) AddPlugin(v *Version) {
	if r.plugins == nil {
		r.plugins = make(map[string]*InstalledPlugin)
	}
	if existing, ok := r.plugins[v.Name()]; ok {
		existing.version = v
		return
	}
	r.plugins[v.Name()] = &InstalledPlugin{
		version: v,
		tools:   make(map[string]*Version),
	}
}

// RemovePlugin removes a plugin and all of its tools.
func (r *InstalledRepository) RemovePlugin(name string) {
	delete(r.plugins, name)
}

// PluginNames returns installed plugin names, sorted.
func (r *InstalledRepository) PluginNames() []string {
	return slices.Sorted(maps.Keys(r.plugins))
}

// Tool returns the installed tool version, or nil.
func (r *InstalledRepository) Tool(plugin, tool string) *Version {
	p, ok := r.plugins[plugin]
	if !ok {
		return nil
	}
	return p.tools[tool]
}

// AddTool adds or replaces a tool under an installed plugin.
func (r *InstalledRepository) AddTool(plugin string, v *Version) error {
	p, ok := r.plugins[plugin]
	if !ok {
		return fmt.Errorf("cannot add tool %s: plugin %s is not installed", v.Name(), plugin)
	}
	if v.Plugin() != plugin {
		v = v.ForPlugin(plugin)
	}
	p.tools[v.Name()] = v
	return nil
}

// RemoveTool removes a tool; it is a no-op if the tool is not installed.
func (r *InstalledRepository) RemoveTool(plugin, tool string) {
	if p, ok := r.plugins[plugin]; ok {
		delete(p.tools, tool)
	}
}

// Len returns the number of installed plugins.
func (r *InstalledRepository) Len() int {
	return len(r.plugins)
}

// Clone returns an independent copy. Versions are immutable and shared.
func (r *InstalledRepository) Clone() *InstalledRepository {
	c := &InstalledRepository{
		Updated: r.Updated,
		plugins: make(map[string]*InstalledPlugin, len(r.plugins)),
	}
	for name, p := range r.plugins {
		c.plugins[name] = &InstalledPlugin{
			version: p.version,
			tools:   maps.Clone(p.tools),
		}
	}
	return c
}
