package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// fileStorageConfig holds configuration for the FileStorage.
type fileStorageConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStorageConfig() fileStorageConfig {
	home, _ := os.UserHomeDir()
	return fileStorageConfig{
		path:     filepath.Join(home, ".reglet", "trusted-keys.json"),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

// FileStorageOption configures a FileStorage instance.
type FileStorageOption func(*fileStorageConfig)

// WithPath sets the path to the trusted keys file.
func WithPath(path string) FileStorageOption {
	return func(c *fileStorageConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithFilePermissions sets the file permissions for the trusted keys file.
func WithFilePermissions(perm os.FileMode) FileStorageOption {
	return func(c *fileStorageConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the permissions of a created parent directory.
func WithDirPermissions(perm os.FileMode) FileStorageOption {
	return func(c *fileStorageConfig) {
		c.dirPerm = perm
	}
}

// FileStorage is a Collection persisted as a JSON array of fingerprints.
//
// Every mutation rewrites the whole file atomically before returning.
// There is no cross-process locking: two processes mutating the same file
// can lose each other's updates.
type FileStorage struct {
	config     fileStorageConfig
	collection *Collection
}

// NewFileStorage loads the trusted keys file. A missing or empty file is an
// empty set; a malformed file is an error.
func NewFileStorage(opts ...FileStorageOption) (*FileStorage, error) {
	cfg := defaultFileStorageConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &FileStorage{config: cfg, collection: NewCollection()}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Add trusts fp and persists the set. Adding a known key does not write.
func (s *FileStorage) Add(fp string) error {
	if !s.collection.Add(fp) {
		return nil
	}
	if err := s.save(); err != nil {
		s.collection.Remove(fp)
		return err
	}
	return nil
}

// Remove distrusts fp and persists the set. Removing an unknown key is a no-op.
func (s *FileStorage) Remove(fp string) error {
	previous := s.collection.ToArray()
	if !s.collection.Remove(fp) {
		return nil
	}
	if err := s.save(); err != nil {
		s.collection = NewCollection(previous...)
		return err
	}
	return nil
}

// Contains reports whether fp is trusted.
func (s *FileStorage) Contains(fp string) bool {
	return s.collection.Contains(fp)
}

// ToArray returns the trusted fingerprints in insertion order.
func (s *FileStorage) ToArray() []string {
	return s.collection.ToArray()
}

// Len returns the number of trusted fingerprints.
func (s *FileStorage) Len() int {
	return s.collection.Len()
}

// Path returns the path to the backing file.
func (s *FileStorage) Path() string {
	return s.config.path
}

func (s *FileStorage) load() error {
	data, err := os.ReadFile(s.config.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read trusted keys: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var fps []string
	if err := json.Unmarshal(data, &fps); err != nil {
		return fmt.Errorf("failed to parse trusted keys %s: %w", s.config.path, err)
	}
	for _, fp := range fps {
		s.collection.Add(fp)
	}
	return nil
}

// save writes to a temp file in the same directory and renames it over the
// target so readers never see a truncated file.
func (s *FileStorage) save() error {
	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("failed to create trusted keys directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to write trusted keys: %w", err)
	}

	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.collection.ToArray()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode trusted keys: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), s.config.filePerm); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.config.path); err != nil {
		return fmt.Errorf("failed to write trusted keys: %w", err)
	}
	renamed = true
	return nil
}
