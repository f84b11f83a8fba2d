// Package entities contains domain entities for the toolchain domain model.
package entities

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// ToolRequirement is a desired tool owned by a plugin.
type ToolRequirement struct {
	// Name is the tool name (e.g., "phpstan")
	Name string

	// Constraint is the version constraint (e.g., "^1.10"); "*" when unset
	Constraint string

	// Force is set when the version was pinned explicitly by configuration
	// rather than inherited. A forced requirement reinstalls on equal versions.
	Force bool
}

// PluginRequirement is a desired plugin and the tools it should provide.
type PluginRequirement struct {
	Name       string
	Constraint string
	Force      bool
	Tools      []ToolRequirement
}

// Tool returns the desired tool requirement by name.
func (p *PluginRequirement) Tool(name string) (ToolRequirement, bool) {
	for _, t := range p.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolRequirement{}, false
}

// DesiredState is the ordered set of plugins a configuration wants installed.
// Declaration order is preserved; it drives plan ordering.
type DesiredState struct {
	plugins []PluginRequirement
}

// NewDesiredState creates a desired state from the given requirements.
func NewDesiredState(reqs ...PluginRequirement) (*DesiredState, error) {
	d := &DesiredState{}
	for _, r := range reqs {
		if err := d.Add(r); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Add appends a plugin requirement.
// Names must be valid and unique, also among a plugin's tools.
func (d *DesiredState) Add(req PluginRequirement) error {
	if _, err := values.NewName(req.Name); err != nil {
		return fmt.Errorf("invalid plugin requirement: %w", err)
	}
	if d.Has(req.Name) {
		return fmt.Errorf("plugin %q declared more than once", req.Name)
	}
	if req.Constraint == "" {
		req.Constraint = values.AnyVersion
	}
	if _, err := values.ParseConstraint(req.Constraint); err != nil {
		return fmt.Errorf("plugin %q: %w", req.Name, err)
	}

	tools := make([]ToolRequirement, 0, len(req.Tools))
	seen := make(map[string]bool, len(req.Tools))
	for _, t := range req.Tools {
		if _, err := values.NewName(t.Name); err != nil {
			return fmt.Errorf("plugin %q: invalid tool requirement: %w", req.Name, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("plugin %q: tool %q declared more than once", req.Name, t.Name)
		}
		seen[t.Name] = true
		if t.Constraint == "" {
			t.Constraint = values.AnyVersion
		}
		if _, err := values.ParseConstraint(t.Constraint); err != nil {
			return fmt.Errorf("plugin %q tool %q: %w", req.Name, t.Name, err)
		}
		tools = append(tools, t)
	}
	req.Tools = tools

	d.plugins = append(d.plugins, req)
	return nil
}

// Plugins returns the requirements in declaration order.
func (d *DesiredState) Plugins() []PluginRequirement {
	return slices.Clone(d.plugins)
}

// Plugin returns the requirement for name.
func (d *DesiredState) Plugin(name string) (PluginRequirement, bool) {
	for _, p := range d.plugins {
		if p.Name == name {
			return p, true
		}
	}
	return PluginRequirement{}, false
}

// Has reports whether name is desired.
func (d *DesiredState) Has(name string) bool {
	_, ok := d.Plugin(name)
	return ok
}

// Len returns the number of desired plugins.
func (d *DesiredState) Len() int {
	return len(d.plugins)
}

// ParseDeclaration parses a "name" or "name@constraint" declaration.
// A constraint written in the declaration pins the version and sets force.
//
// Supported formats:
//   - "phpstan"             -> constraint "*", force=false
//   - "phpstan@^1.10"       -> constraint "^1.10", force=true
//   - "phpstan@latest"      -> constraint "*", force=false
func ParseDeclaration(declaration string) (name, constraint string, force bool, err error) {
	declaration = strings.TrimSpace(declaration)
	if declaration == "" {
		return "", "", false, fmt.Errorf("empty declaration")
	}

	name = declaration
	constraint = values.AnyVersion
	if idx := strings.Index(declaration, "@"); idx != -1 {
		name = strings.TrimSpace(declaration[:idx])
		c := strings.TrimSpace(declaration[idx+1:])
		if c == "" {
			return "", "", false, fmt.Errorf("declaration %q: empty version", declaration)
		}
		if c != "latest" && c != values.AnyVersion {
			constraint = c
			force = true
		}
	}

	if _, err := values.NewName(name); err != nil {
		return "", "", false, fmt.Errorf("declaration %q: %w", declaration, err)
	}
	return name, constraint, force, nil
}

// ParsePluginEntry parses one plugin entry of a configuration manifest.
// Supported forms for the value:
//   - nil or ""                      -> any version
//   - "^1.2"                         -> explicit version (forced)
//   - map with "version" and "tools" -> expanded form; tools map names to
//     a version string or nil
func ParsePluginEntry(name string, entry interface{}) (PluginRequirement, error) {
	if name == "" {
		return PluginRequirement{}, fmt.Errorf("plugin name cannot be empty")
	}
	req := PluginRequirement{Name: name, Constraint: values.AnyVersion}

	switch v := entry.(type) {
	case nil:
	case string:
		req.Constraint, req.Force = explicitConstraint(v)

	case map[string]interface{}:
		if raw, ok := v["version"]; ok {
			s, ok := raw.(string)
			if !ok {
				return PluginRequirement{}, fmt.Errorf("plugin %q: version must be a string, got %T", name, raw)
			}
			req.Constraint, req.Force = explicitConstraint(s)
		}
		if raw, ok := v["tools"]; ok && raw != nil {
			tools, err := parseToolEntries(name, raw)
			if err != nil {
				return PluginRequirement{}, err
			}
			req.Tools = tools
		}

	default:
		return PluginRequirement{}, fmt.Errorf("plugin %q: invalid entry type %T", name, entry)
	}

	return req, nil
}

func parseToolEntries(plugin string, raw interface{}) ([]ToolRequirement, error) {
	switch v := raw.(type) {
	case []interface{}:
		tools := make([]ToolRequirement, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("plugin %q: tool declaration must be a string, got %T", plugin, item)
			}
			name, constraint, force, err := ParseDeclaration(s)
			if err != nil {
				return nil, fmt.Errorf("plugin %q: %w", plugin, err)
			}
			tools = append(tools, ToolRequirement{Name: name, Constraint: constraint, Force: force})
		}
		return tools, nil

	case map[string]interface{}:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		slices.Sort(names)

		tools := make([]ToolRequirement, 0, len(v))
		for _, name := range names {
			t := ToolRequirement{Name: name, Constraint: values.AnyVersion}
			switch c := v[name].(type) {
			case nil:
			case string:
				t.Constraint, t.Force = explicitConstraint(c)
			default:
				return nil, fmt.Errorf("plugin %q: tool %q version must be a string, got %T", plugin, name, c)
			}
			tools = append(tools, t)
		}
		return tools, nil

	default:
		return nil, fmt.Errorf("plugin %q: invalid tools type %T", plugin, raw)
	}
}

func explicitConstraint(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "latest" || s == values.AnyVersion {
		return values.AnyVersion, false
	}
	return s, true
}
