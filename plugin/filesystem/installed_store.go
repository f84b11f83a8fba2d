// Package filesystem provides file-based stores for installed state.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/gofrs/flock"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
)

// DefaultInstalledFile is the file name of the installed-state lock.
const DefaultInstalledFile = "installed.lock"

const lockRetryDelay = 50 * time.Millisecond

// InstalledStore implements ports.InstalledStore with a YAML file.
// Load and Save hold an advisory lock on a sibling ".flock" file so
// concurrent toolchain processes do not interleave writes.
type InstalledStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.InstalledStore = (*InstalledStore)(nil)

// StoreOption configures an InstalledStore.
type StoreOption func(*InstalledStore)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *InstalledStore) { s.logger = l }
}

// WithClock overrides the clock used to stamp saves.
func WithClock(now func() time.Time) StoreOption {
	return func(s *InstalledStore) { s.now = now }
}

// NewInstalledStore creates a store for the file at path.
func NewInstalledStore(path string, opts ...StoreOption) *InstalledStore {
	s := &InstalledStore{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the lock file path.
func (s *InstalledStore) Path() string {
	return s.path
}

// Load reads the installed state. A missing or empty file yields an empty
// snapshot.
func (s *InstalledStore) Load(ctx context.Context) (*entities.InstalledRepository, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dir, base := filepath.Dir(s.path), filepath.Base(s.path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.NewInstalledRepository(), nil
		}
		return nil, fmt.Errorf("failed to open directory %q: %w", dir, err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entities.NewInstalledRepository(), nil
		}
		return nil, fmt.Errorf("failed to read %q: %w", base, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return entities.NewInstalledRepository(), nil
	}

	var out InstalledFile
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding installed state YAML: %w", err)
	}

	repo, err := out.ToEntity()
	if err != nil {
		return nil, fmt.Errorf("invalid installed state: %w", err)
	}

	s.logger.Debug("loaded installed state", "path", s.path, "plugins", repo.Len())
	return repo, nil
}

// Save writes the installed state atomically and stamps repo.Updated.
func (s *InstalledStore) Save(ctx context.Context, repo *entities.InstalledRepository) error {
	if repo == nil {
		return errors.New("cannot save nil installed state")
	}

	dir, base := filepath.Dir(s.path), filepath.Base(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	repo.Updated = s.now().UTC()
	data, err := yaml.Marshal(FromEntity(repo))
	if err != nil {
		return fmt.Errorf("encoding installed state: %w", err)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("opening directory for write %q: %w", dir, err)
	}
	defer func() { _ = root.Close() }()

	tmp := "." + base + ".tmp"
	if err := root.WriteFile(tmp, data, 0o644); err != nil {
		_ = root.Remove(tmp)
		return fmt.Errorf("writing %q: %w", tmp, err)
	}
	if err := root.Rename(tmp, base); err != nil {
		_ = root.Remove(tmp)
		return fmt.Errorf("replacing %q: %w", base, err)
	}

	s.logger.Debug("saved installed state", "path", s.path, "plugins", repo.Len())
	return nil
}

func (s *InstalledStore) lock(ctx context.Context, exclusive bool) (func(), error) {
	if _, err := os.Stat(filepath.Dir(s.path)); errors.Is(err, fs.ErrNotExist) {
		// Nothing to protect until the directory exists.
		return func() {}, nil
	}

	fl := flock.New(s.path + ".flock")
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("locking %q: %w", s.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("could not lock %q", s.path)
	}
	return func() { _ = fl.Unlock() }, nil
}
