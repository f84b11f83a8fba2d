// Package planner diffs desired against installed state into ordered tasks.
package planner

import (
	"fmt"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// TaskKind is the kind of reconciliation action a Task performs.
type TaskKind int

const (
	KindInstall TaskKind = iota
	KindKeep
	KindRemove
	KindUpgrade
	KindDowngrade
	KindReinstall
)

func (k TaskKind) String() string {
	switch k {
	case KindInstall:
		return "install"
	case KindKeep:
		return "keep"
	case KindRemove:
		return "remove"
	case KindUpgrade:
		return "upgrade"
	case KindDowngrade:
		return "downgrade"
	case KindReinstall:
		return "reinstall"
	default:
		return fmt.Sprintf("TaskKind(%d)", int(k))
	}
}

// Task is one planned action for one plugin or tool. Immutable.
type Task struct {
	kind      TaskKind
	subject   values.Kind
	plugin    string
	tool      string
	desired   *entities.Version
	installed *entities.Version
	force     bool
}

func newPluginTask(kind TaskKind, name string, desired, installed *entities.Version, force bool) Task {
	return Task{
		kind:      kind,
		subject:   values.KindPlugin,
		plugin:    name,
		desired:   desired,
		installed: installed,
		force:     force,
	}
}

func newToolTask(kind TaskKind, plugin, tool string, desired, installed *entities.Version, force bool) Task {
	return Task{
		kind:      kind,
		subject:   values.KindTool,
		plugin:    plugin,
		tool:      tool,
		desired:   desired,
		installed: installed,
		force:     force,
	}
}

// Kind returns the task kind.
func (t Task) Kind() TaskKind { return t.kind }

// Subject reports whether the task is about a plugin or a tool.
func (t Task) Subject() values.Kind { return t.subject }

// PluginName returns the plugin name; for tools, the owning plugin.
func (t Task) PluginName() string { return t.plugin }

// ToolName returns the tool name, empty for plugin tasks.
func (t Task) ToolName() string { return t.tool }

// Name returns the name of the task subject.
func (t Task) Name() string {
	if t.subject == values.KindTool {
		return t.tool
	}
	return t.plugin
}

// Desired returns the resolved version; nil for removals.
func (t Task) Desired() *entities.Version { return t.desired }

// Installed returns the installed version; nil for installs.
func (t Task) Installed() *entities.Version { return t.installed }

// Force reports whether configuration pinned the version explicitly.
func (t Task) Force() bool { return t.force }

// PurposeDescription explains why the task exists. The wording is stable and
// used as dry-run output.
func (t Task) PurposeDescription() string {
	switch t.kind {
	case KindInstall:
		return fmt.Sprintf("Will install %s %s in version %s", t.subject, t.Name(), t.desired.Version())
	case KindKeep:
		return fmt.Sprintf("Will keep %s %s in version %s", t.subject, t.Name(), t.installed.Version())
	case KindRemove:
		return fmt.Sprintf("Will remove %s %s in version %s", t.subject, t.Name(), t.installed.Version())
	case KindUpgrade:
		return fmt.Sprintf("Will upgrade %s %s from version %s to version %s",
			t.subject, t.Name(), t.installed.Version(), t.desired.Version())
	case KindDowngrade:
		return fmt.Sprintf("Will downgrade %s %s from version %s to version %s",
			t.subject, t.Name(), t.installed.Version(), t.desired.Version())
	case KindReinstall:
		return fmt.Sprintf("Will reinstall %s %s in version %s", t.subject, t.Name(), t.desired.Version())
	default:
		return fmt.Sprintf("unknown task kind %s for %s %s", t.kind, t.subject, t.Name())
	}
}

// ExecutionDescription describes the mechanical action Execute performs.
func (t Task) ExecutionDescription() string {
	var s string
	switch t.kind {
	case KindInstall, KindReinstall:
		s = fmt.Sprintf("Download %s %s %s from %s", t.subject, t.Name(), t.desired.Version(), t.desired.URL())
	case KindUpgrade, KindDowngrade:
		s = fmt.Sprintf("Download %s %s %s from %s, replacing %s",
			t.subject, t.Name(), t.desired.Version(), t.desired.URL(), t.installed.Version())
	case KindKeep:
		s = fmt.Sprintf("Nothing to do for %s %s %s", t.subject, t.Name(), t.installed.Version())
	case KindRemove:
		s = fmt.Sprintf("Remove %s %s", t.subject, t.Name())
	default:
		return fmt.Sprintf("unknown task kind %s", t.kind)
	}
	if t.subject == values.KindTool {
		s += " for plugin " + t.plugin
	}
	return s
}

// String returns the purpose description.
func (t Task) String() string {
	return t.PurposeDescription()
}
