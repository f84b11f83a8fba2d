// Package plugin orchestrates the plugin and tool lifecycle: it loads the
// installed state, plans against the desired state, executes the plan and
// persists the result.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/planner"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/repository"
	"github.com/reglet-dev/reglet-toolchain/plugin/services"
)

// LifecycleService coordinates the planner with the installed-state store
// and the download/verification adapters.
type LifecycleService struct {
	planner           *planner.UpdatePlanner
	store             ports.InstalledStore
	downloader        ports.Downloader
	artifacts         *repository.FSArtifactStore
	hashValidator     ports.HashValidator
	signatureVerifier ports.SignatureVerifier
	requireSignature  bool
	logger            *slog.Logger
}

// LifecycleOption configures a LifecycleService.
type LifecycleOption func(*LifecycleService)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LifecycleOption {
	return func(s *LifecycleService) { s.logger = l }
}

// WithHashValidator replaces the default hash validator.
func WithHashValidator(v ports.HashValidator) LifecycleOption {
	return func(s *LifecycleService) { s.hashValidator = v }
}

// WithSignatureVerifier enables signature verification of signed releases.
func WithSignatureVerifier(v ports.SignatureVerifier) LifecycleOption {
	return func(s *LifecycleService) { s.signatureVerifier = v }
}

// WithRequireSignature rejects releases that cannot be signature-verified.
func WithRequireSignature(require bool) LifecycleOption {
	return func(s *LifecycleService) { s.requireSignature = require }
}

// NewLifecycleService creates a lifecycle service.
// All arguments are required.
func NewLifecycleService(
	p *planner.UpdatePlanner,
	store ports.InstalledStore,
	downloader ports.Downloader,
	artifacts *repository.FSArtifactStore,
	opts ...LifecycleOption,
) *LifecycleService {
	s := &LifecycleService{
		planner:    p,
		store:      store,
		downloader: downloader,
		artifacts:  artifacts,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hashValidator == nil {
		s.hashValidator = services.NewHashValidator(services.WithLogger(s.logger))
	}
	return s
}

// Installed returns the persisted installed state.
func (s *LifecycleService) Installed(ctx context.Context) (*entities.InstalledRepository, error) {
	installed, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading installed state: %w", err)
	}
	return installed, nil
}

// Plan computes the tasks that would bring the installed state to desired.
// Nothing is downloaded or written.
func (s *LifecycleService) Plan(ctx context.Context, desired *entities.DesiredState) ([]planner.Task, error) {
	installed, err := s.Installed(ctx)
	if err != nil {
		return nil, err
	}
	return s.planner.Plan(ctx, desired, installed)
}

// ApplyResult reports what Apply did.
type ApplyResult struct {
	// Planned is the full plan.
	Planned []planner.Task
	// Executed holds the tasks that completed, in order.
	Executed []planner.Task
	// Installed is the installed state after the last completed task.
	Installed *entities.InstalledRepository
}

// Changed reports whether any executed task modified the installed state.
func (r *ApplyResult) Changed() bool {
	for _, t := range r.Executed {
		if t.Kind() != planner.KindKeep {
			return true
		}
	}
	return false
}

// Apply plans and executes in order. The installed state is saved after
// every task that changes it, so a failure leaves the store describing
// exactly the tasks that completed. Execution stops at the first failure.
func (s *LifecycleService) Apply(ctx context.Context, desired *entities.DesiredState) (*ApplyResult, error) {
	if s.downloader == nil || s.artifacts == nil {
		return nil, errors.New("lifecycle service has no downloader or artifact store")
	}

	installed, err := s.Installed(ctx)
	if err != nil {
		return nil, err
	}

	tasks, err := s.planner.Plan(ctx, desired, installed)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{Planned: tasks, Installed: installed}
	ec := &planner.ExecutionContext{
		Installed:         installed,
		Downloader:        s.downloader,
		Store:             s.artifacts,
		HashValidator:     s.hashValidator,
		SignatureVerifier: s.signatureVerifier,
		RequireSignature:  s.requireSignature,
		Logger:            s.logger,
	}

	for _, task := range tasks {
		s.logger.Info(task.ExecutionDescription())

		if err := task.Execute(ctx, ec); err != nil {
			return result, fmt.Errorf("%s: %w", task.PurposeDescription(), err)
		}
		result.Executed = append(result.Executed, task)

		if task.Kind() == planner.KindKeep {
			continue
		}
		if err := s.store.Save(ctx, installed); err != nil {
			return result, fmt.Errorf("saving installed state: %w", err)
		}
	}

	s.logger.Info("toolchain up to date", "tasks", len(tasks), "changed", result.Changed())
	return result, nil
}
