package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// UpdatePlanner computes the tasks converging installed state to desired state.
type UpdatePlanner struct {
	resolver ports.VersionResolver
	checker  ports.PlatformChecker
	only     []string
	logger   *slog.Logger
}

// Option configures an UpdatePlanner.
type Option func(*UpdatePlanner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *UpdatePlanner) { p.logger = l }
}

// WithPlatformChecker validates resolved versions against the platform.
func WithPlatformChecker(c ports.PlatformChecker) Option {
	return func(p *UpdatePlanner) { p.checker = c }
}

// WithOnly restricts planning to plugins whose names match one of the glob
// patterns. Everything else installed is kept as is.
func WithOnly(patterns ...string) Option {
	return func(p *UpdatePlanner) { p.only = append(p.only, patterns...) }
}

// NewUpdatePlanner creates a planner resolving through resolver.
func NewUpdatePlanner(resolver ports.VersionResolver, opts ...Option) *UpdatePlanner {
	p := &UpdatePlanner{
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan diffs desired against installed.
//
// Desired plugins come first in declaration order, each followed by its tool
// tasks; removals of undesired plugins follow, sorted by name. All resolution
// failures are reported together and no partial plan is returned.
func (p *UpdatePlanner) Plan(ctx context.Context, desired *entities.DesiredState, installed *entities.InstalledRepository) ([]Task, error) {
	if installed == nil {
		installed = entities.NewInstalledRepository()
	}
	if desired == nil {
		desired = &entities.DesiredState{}
	}
	if err := p.validatePatterns(); err != nil {
		return nil, err
	}

	var (
		tasks []Task
		errs  []error
	)

	for _, req := range desired.Plugins() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.selected(req.Name) {
			tasks = append(tasks, keepInstalled(req.Name, installed)...)
			continue
		}
		planned, err := p.planPlugin(ctx, req, installed)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, planned...)
	}

	for _, name := range installed.PluginNames() {
		if desired.Has(name) {
			continue
		}
		if !p.selected(name) {
			tasks = append(tasks, keepInstalled(name, installed)...)
			continue
		}
		tasks = append(tasks, removePlugin(name, installed)...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	p.logger.Debug("plan computed", "tasks", len(tasks))
	return tasks, nil
}

func (p *UpdatePlanner) planPlugin(ctx context.Context, req entities.PluginRequirement, installed *entities.InstalledRepository) ([]Task, error) {
	var errs []error

	v, err := p.resolver.ResolvePluginVersion(ctx, req.Name, req.Constraint)
	if err == nil {
		err = p.checkRequirements(v)
	}
	if err != nil {
		errs = append(errs, err)
	}

	var current *entities.Version
	ip := installed.Plugin(req.Name)
	if ip != nil {
		current = ip.Version()
	}

	tasks := make([]Task, 0, 1+len(req.Tools))
	if v != nil {
		kind, err := decide(v, current, req.Force)
		if err != nil {
			errs = append(errs, err)
		} else {
			tasks = append(tasks, newPluginTask(kind, req.Name, v, current, req.Force))
		}
	}

	for _, t := range req.Tools {
		tv, err := p.resolver.ResolveToolVersion(ctx, req.Name, t.Name, t.Constraint)
		if err == nil {
			err = p.checkRequirements(tv)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tv = tv.ForPlugin(req.Name)

		currentTool := installed.Tool(req.Name, t.Name)
		kind, err := decide(tv, currentTool, t.Force)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, newToolTask(kind, req.Name, t.Name, tv, currentTool, t.Force))
	}

	if ip != nil {
		for _, name := range ip.ToolNames() {
			if _, ok := req.Tool(name); ok {
				continue
			}
			tasks = append(tasks, newToolTask(KindRemove, req.Name, name, nil, ip.Tool(name), false))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tasks, nil
}

func (p *UpdatePlanner) checkRequirements(v *entities.Version) error {
	if p.checker == nil {
		return nil
	}
	for _, req := range v.Requirements().All() {
		if !p.checker.IsFulfilled(req.Name, req.Constraint) {
			return &entities.UnfulfilledRequirementError{
				Name:        v.Name(),
				Version:     v.Version(),
				Requirement: req.Name,
				Constraint:  req.Constraint,
			}
		}
	}
	return nil
}

func (p *UpdatePlanner) selected(name string) bool {
	if len(p.only) == 0 {
		return true
	}
	return slices.ContainsFunc(p.only, func(pattern string) bool {
		ok, _ := doublestar.Match(pattern, name)
		return ok
	})
}

func (p *UpdatePlanner) validatePatterns() error {
	for _, pattern := range p.only {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid plugin pattern %q", pattern)
		}
	}
	return nil
}

// decide picks the task kind for a resolved version against what is installed.
func decide(desired, installed *entities.Version, force bool) (TaskKind, error) {
	if installed == nil {
		return KindInstall, nil
	}
	if desired.Version() == installed.Version() {
		if force {
			return KindReinstall, nil
		}
		return KindKeep, nil
	}

	cmp, err := values.CompareVersions(desired.Version(), installed.Version())
	if err != nil {
		return 0, err
	}
	switch {
	case cmp > 0:
		return KindUpgrade, nil
	case cmp < 0:
		return KindDowngrade, nil
	case force:
		return KindReinstall, nil
	default:
		// "1.0" and "1.0.0" are the same release.
		return KindKeep, nil
	}
}

func keepInstalled(name string, installed *entities.InstalledRepository) []Task {
	ip := installed.Plugin(name)
	if ip == nil {
		return nil
	}
	tasks := []Task{newPluginTask(KindKeep, name, ip.Version(), ip.Version(), false)}
	for _, tool := range ip.ToolNames() {
		v := ip.Tool(tool)
		tasks = append(tasks, newToolTask(KindKeep, name, tool, v, v, false))
	}
	return tasks
}

func removePlugin(name string, installed *entities.InstalledRepository) []Task {
	ip := installed.Plugin(name)
	tasks := make([]Task, 0, 1+len(ip.ToolNames()))
	for _, tool := range ip.ToolNames() {
		tasks = append(tasks, newToolTask(KindRemove, name, tool, nil, ip.Tool(tool), false))
	}
	return append(tasks, newPluginTask(KindRemove, name, nil, ip.Version(), false))
}
