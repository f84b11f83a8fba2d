// Package toolchain wires configuration, catalogs, trust and storage into a
// ready-to-use plugin lifecycle.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/reglet-dev/reglet-toolchain/config"
	"github.com/reglet-dev/reglet-toolchain/parser"
	"github.com/reglet-dev/reglet-toolchain/platform"
	"github.com/reglet-dev/reglet-toolchain/plugin"
	"github.com/reglet-dev/reglet-toolchain/plugin/download"
	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/filesystem"
	"github.com/reglet-dev/reglet-toolchain/plugin/oci"
	"github.com/reglet-dev/reglet-toolchain/plugin/planner"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/repository"
	"github.com/reglet-dev/reglet-toolchain/plugin/resolvers"
	"github.com/reglet-dev/reglet-toolchain/plugin/services"
	"github.com/reglet-dev/reglet-toolchain/plugin/signing"
	"github.com/reglet-dev/reglet-toolchain/registry"
	"github.com/reglet-dev/reglet-toolchain/selfupdate"
	"github.com/reglet-dev/reglet-toolchain/trust"
	"github.com/reglet-dev/reglet-toolchain/trust/keystore"
	"github.com/reglet-dev/reglet-toolchain/validation"
)

// Toolchain is the assembled plugin manager for one configuration.
type Toolchain struct {
	cfg        *config.Config
	downloader ports.Downloader
	checker    ports.PlatformChecker
	store      ports.InstalledStore
	artifacts  *repository.FSArtifactStore
	validator  *validation.SchemaValidator
	verifier   ports.SignatureVerifier
	prompter   trust.Prompter
	output     io.Writer
	logger     *slog.Logger
}

// Option configures a Toolchain.
type Option func(*Toolchain)

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(t *Toolchain) { t.logger = l }
}

// WithDownloader replaces the default scheme multiplexer (http, https,
// file and oci).
func WithDownloader(d ports.Downloader) Option {
	return func(t *Toolchain) { t.downloader = d }
}

// WithPlatformChecker replaces the runtime platform checker.
func WithPlatformChecker(c ports.PlatformChecker) Option {
	return func(t *Toolchain) { t.checker = c }
}

// WithInstalledStore replaces the installed.lock store.
func WithInstalledStore(s ports.InstalledStore) Option {
	return func(t *Toolchain) { t.store = s }
}

// WithSignatureVerifier replaces the keyring-based verifier.
func WithSignatureVerifier(v ports.SignatureVerifier) Option {
	return func(t *Toolchain) { t.verifier = v }
}

// WithPrompter sets the prompter used by the interactive trust mode.
func WithPrompter(p trust.Prompter) Option {
	return func(t *Toolchain) { t.prompter = p }
}

// WithOutput sets where trust advisories are written. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(t *Toolchain) { t.output = w }
}

// New assembles a toolchain from cfg.
//
// The signature verifier is built from the keyring at cfg.KeyringPath. When
// no keyring exists, signed releases are rejected with an untrusted
// signature error; unsigned ones are accepted unless cfg.RequireSignature
// is set.
func New(cfg *config.Config, opts ...Option) (*Toolchain, error) {
	if cfg == nil {
		return nil, errors.New("toolchain: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Toolchain{
		cfg:    cfg,
		output: os.Stderr,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.downloader == nil {
		t.downloader = defaultDownloader(t.logger)
	}
	if t.checker == nil {
		t.checker = platform.NewChecker()
	}
	if t.store == nil {
		t.store = filesystem.NewInstalledStore(cfg.InstalledPath, filesystem.WithLogger(t.logger))
	}
	if t.prompter == nil {
		t.prompter = trust.NewTerminalPrompter()
	}

	artifacts, err := repository.NewFSArtifactStore(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}
	t.artifacts = artifacts
	t.validator = validation.NewSchemaValidator(registry.NewDefaultRegistry())

	if t.verifier == nil {
		v, err := t.keyringVerifier()
		if err != nil {
			return nil, err
		}
		if v != nil {
			t.verifier = v
		}
	}

	return t, nil
}

func defaultDownloader(logger *slog.Logger) *download.Mux {
	auth := oci.NewEnvAuthProvider()
	mux := download.NewDefaultMux(
		download.WithAuthProvider(auth),
		download.WithHTTPLogger(logger),
	)
	mux.Handle(oci.Scheme, oci.NewDownloader(
		oci.WithAuthProvider(auth),
		oci.WithLogger(logger),
	))
	return mux
}

// keyringVerifier returns nil without error when there is no keyring.
func (t *Toolchain) keyringVerifier() (*signing.PGPVerifier, error) {
	keyring, err := signing.LoadKeyringFile(t.cfg.KeyringPath)
	if errors.Is(err, fs.ErrNotExist) {
		t.logger.Debug("no keyring, signed releases will be rejected", "path", t.cfg.KeyringPath)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	strategy, err := t.Strategy()
	if err != nil {
		return nil, err
	}
	return signing.NewPGPVerifier(keyring, strategy, signing.WithLogger(t.logger)), nil
}

// Strategy builds the trust strategy selected by the trust_mode setting.
func (t *Toolchain) Strategy() (trust.Strategy, error) {
	switch t.cfg.TrustMode {
	case config.TrustAllow:
		return trust.AllowAll(), nil
	case config.TrustDeny:
		return trust.DenyAll(), nil
	}

	keys, err := keystore.NewFileStorage(
		keystore.WithPath(t.cfg.TrustedKeysPath),
		keystore.WithDirPermissions(0o700),
		keystore.WithFilePermissions(0o600),
	)
	if err != nil {
		return nil, fmt.Errorf("loading trusted keys: %w", err)
	}
	known := trust.NewTrustedKeysStrategy(keys)
	if t.cfg.TrustMode == config.TrustKeys {
		return known, nil
	}
	return trust.NewInteractiveStrategy(known, t.prompter, t.output,
		trust.WithKeysPath(keys.Path()),
		trust.WithLogger(t.logger),
	), nil
}

// Repositories downloads and parses every configured catalog, in priority
// order.
func (t *Toolchain) Repositories(ctx context.Context) ([]ports.Repository, error) {
	repos := make([]ports.Repository, 0, len(t.cfg.Repositories))
	for _, locator := range t.cfg.Repositories {
		data, err := t.fetch(ctx, locator)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", locator, err)
		}
		doc, err := t.parser(locator).ParseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", locator, err)
		}

		name := doc.Name
		if name == "" {
			name = locator
		}
		repo, err := repository.LoadCatalog(doc, name,
			repository.WithPlatformChecker(t.checker),
			repository.WithLogger(t.logger),
		)
		if err != nil {
			return nil, err
		}
		t.logger.Debug("loaded catalog", "repository", name, "locator", locator)
		repos = append(repos, repo)
	}
	return repos, nil
}

// Lifecycle builds a lifecycle service resolving against the configured
// catalogs. Extra planner options are appended to the configured ones.
func (t *Toolchain) Lifecycle(ctx context.Context, opts ...planner.Option) (*plugin.LifecycleService, error) {
	repos, err := t.Repositories(ctx)
	if err != nil {
		return nil, err
	}

	plannerOpts := []planner.Option{
		planner.WithLogger(t.logger),
		planner.WithPlatformChecker(t.checker),
	}
	if len(t.cfg.Only) > 0 {
		plannerOpts = append(plannerOpts, planner.WithOnly(t.cfg.Only...))
	}
	plannerOpts = append(plannerOpts, opts...)

	resolver := resolvers.NewPoolResolver(repos, resolvers.WithLogger(t.logger))
	lifecycleOpts := []plugin.LifecycleOption{
		plugin.WithLogger(t.logger),
		plugin.WithRequireSignature(t.cfg.RequireSignature),
	}
	if t.verifier != nil {
		lifecycleOpts = append(lifecycleOpts, plugin.WithSignatureVerifier(t.verifier))
	}

	return plugin.NewLifecycleService(
		planner.NewUpdatePlanner(resolver, plannerOpts...),
		t.store,
		t.downloader,
		t.artifacts,
		lifecycleOpts...,
	), nil
}

// Plan returns the tasks converging the installed state to the configured
// plugins without changing anything.
func (t *Toolchain) Plan(ctx context.Context) ([]planner.Task, error) {
	desired, err := t.cfg.DesiredState()
	if err != nil {
		return nil, err
	}
	svc, err := t.Lifecycle(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Plan(ctx, desired)
}

// Apply installs, upgrades and removes plugins until the installed state
// matches the configuration.
func (t *Toolchain) Apply(ctx context.Context) (*plugin.ApplyResult, error) {
	desired, err := t.cfg.DesiredState()
	if err != nil {
		return nil, err
	}
	svc, err := t.Lifecycle(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Apply(ctx, desired)
}

// FindSelfUpdate selects the newest release of the toolchain itself that
// satisfies constraint and runs on this platform. Unsigned releases are
// skipped when signed_only is set.
func (t *Toolchain) FindSelfUpdate(ctx context.Context, constraint string) (*selfupdate.Version, error) {
	locator := t.cfg.SelfUpdateCatalog
	if locator == "" {
		return nil, errors.New("no self-update catalog configured")
	}

	data, err := t.fetch(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("self-update catalog %s: %w", locator, err)
	}
	doc, err := t.parser(locator).ParseSelfUpdateCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("self-update catalog %s: %w", locator, err)
	}

	repo := selfupdate.NewVersionRepository(t.checker, selfupdate.WithLogger(t.logger))
	if err := selfupdate.LoadCatalog(doc, repo); err != nil {
		return nil, err
	}
	return repo.FindMatchingVersion(constraint, t.cfg.SignedOnly)
}

// DownloadSelfUpdate downloads release v to dest after checking its digest
// and, when signed, its signature. Nothing is left at dest on failure.
func (t *Toolchain) DownloadSelfUpdate(ctx context.Context, v *selfupdate.Version, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	staged := dest + ".partial"
	stagedSignature := staged + ".asc"
	defer func() {
		_ = os.Remove(staged)
		_ = os.Remove(stagedSignature)
	}()

	if err := t.downloader.DownloadFile(ctx, v.URL(), staged); err != nil {
		return fmt.Errorf("download %s: %w", v, err)
	}
	if err := services.NewHashValidator(services.WithLogger(t.logger)).ValidateHash(staged, v.Digest()); err != nil {
		return err
	}

	switch {
	case v.IsSigned() && t.verifier == nil:
		return fmt.Errorf("self-update %s: %w", v, &entities.UntrustedSignatureError{
			Path: v.SignatureURL(),
			Err:  entities.ErrNoSignatureVerifier,
		})
	case v.IsSigned():
		if err := t.downloader.DownloadFile(ctx, v.SignatureURL(), stagedSignature); err != nil {
			return fmt.Errorf("download signature of %s: %w", v, err)
		}
		result, err := t.verifier.Verify(ctx, staged, stagedSignature)
		if err != nil {
			return fmt.Errorf("self-update %s: %w", v, err)
		}
		t.logger.Info("signature verified", "version", v.String(), "fingerprint", result.Fingerprint)
	case t.cfg.RequireSignature:
		return fmt.Errorf("self-update %s: %w", v, entities.ErrUnsignedArtifact)
	}

	if err := os.Rename(staged, dest); err != nil {
		return fmt.Errorf("install self-update: %w", err)
	}
	return nil
}

// fetch downloads a catalog document into memory.
func (t *Toolchain) fetch(ctx context.Context, locator string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "reglet-catalog-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "catalog")
	if err := t.downloader.DownloadFile(ctx, locator, path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (t *Toolchain) parser(locator string) parser.CatalogParser {
	// Queries and fragments would hide the extension.
	path := locator
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return parser.ForPath(path, parser.WithValidator(t.validator))
}
