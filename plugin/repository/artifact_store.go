package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// signatureSuffix is appended to the artifact file name for its signature.
const signatureSuffix = ".asc"

// FSArtifactStore lays out downloaded artifacts on disk as
// <root>/<plugins|tools>/<name>/<version>/<file>.
type FSArtifactStore struct {
	root string // ~/.reglet/toolchain/artifacts
}

// StoredArtifact describes one version directory in the store.
type StoredArtifact struct {
	Kind    values.Kind
	Name    string
	Version string
}

// NewFSArtifactStore creates a filesystem artifact store.
func NewFSArtifactStore(root string) (*FSArtifactStore, error) {
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".reglet", "toolchain", "artifacts")
	}

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	return &FSArtifactStore{root: filepath.Clean(root)}, nil
}

// Root returns the store directory.
func (s *FSArtifactStore) Root() string {
	return s.root
}

// VersionDir returns the directory holding the artifact of v.
func (s *FSArtifactStore) VersionDir(v *entities.Version) (string, error) {
	return s.safeJoin(v.Kind().Dir(), v.Name(), v.Version())
}

// ArtifactPath returns where the artifact of v is stored.
func (s *FSArtifactStore) ArtifactPath(v *entities.Version) (string, error) {
	return s.safeJoin(v.Kind().Dir(), v.Name(), v.Version(), v.ArtifactName())
}

// SignaturePath returns where the detached signature of v is stored.
func (s *FSArtifactStore) SignaturePath(v *entities.Version) (string, error) {
	p, err := s.ArtifactPath(v)
	if err != nil {
		return "", err
	}
	return p + signatureSuffix, nil
}

// Exists reports whether the artifact of v is present.
func (s *FSArtifactStore) Exists(v *entities.Version) bool {
	p, err := s.ArtifactPath(v)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Remove deletes the version directory of v and the name directory once empty.
func (s *FSArtifactStore) Remove(v *entities.Version) error {
	dir, err := s.VersionDir(v)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", v, err)
	}

	// Only succeeds when empty.
	_ = os.Remove(filepath.Dir(dir))
	return nil
}

// List returns all stored versions of the given kind, sorted by name and version.
func (s *FSArtifactStore) List(kind values.Kind) ([]StoredArtifact, error) {
	base := filepath.Join(s.root, kind.Dir())
	names, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []StoredArtifact
	for _, n := range names {
		if !n.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(base, n.Name()))
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			if !v.IsDir() || !values.IsValidVersion(v.Name()) {
				continue // Skip foreign entries
			}
			out = append(out, StoredArtifact{Kind: kind, Name: n.Name(), Version: v.Name()})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		c, _ := values.CompareVersions(out[i].Version, out[j].Version)
		return c < 0
	})
	return out, nil
}

func (s *FSArtifactStore) safeJoin(elems ...string) (string, error) {
	for _, e := range elems {
		// Security: Reject absolute paths and separators before filepath.Join
		if e == "" || filepath.IsAbs(e) || strings.ContainsAny(e, `/\`) || e == ".." || e == "." {
			return "", fmt.Errorf("security violation: invalid path element %q", e)
		}
	}

	fullPath := filepath.Clean(filepath.Join(append([]string{s.root}, elems...)...))

	// Security: Verify the resolved path is still within the root directory
	if !strings.HasPrefix(fullPath, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("security violation: path traversal detected for %q", filepath.Join(elems...))
	}
	return fullPath, nil
}
