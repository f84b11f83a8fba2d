package filesystem

import (
	"fmt"
	"time"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// installedFileVersion is the current format version of installed.lock.
const installedFileVersion = 1

// InstalledFile represents the YAML structure of installed.lock.
type InstalledFile struct {
	Updated time.Time                `yaml:"updated"`
	Plugins map[string]InstalledLock `yaml:"plugins"`
	Version int                      `yaml:"lockfile_version"`
}

// InstalledLock pins one installed plugin and its tools.
type InstalledLock struct {
	ArtifactLock `yaml:",inline"`
	Tools        map[string]ArtifactLock `yaml:"tools,omitempty"`
}

// ArtifactLock describes one installed artifact.
type ArtifactLock struct {
	Version   string `yaml:"version"`
	URL       string `yaml:"url,omitempty"`
	Signature string `yaml:"signature,omitempty"`
	Digest    string `yaml:"hash,omitempty"`
	Artifact  string `yaml:"artifact,omitempty"`
}

// ToEntity converts the file representation to the domain snapshot.
func (f *InstalledFile) ToEntity() (*entities.InstalledRepository, error) {
	if f.Version > installedFileVersion {
		return nil, fmt.Errorf("unsupported lockfile_version %d", f.Version)
	}

	repo := entities.NewInstalledRepository()
	repo.Updated = f.Updated

	for name, lock := range f.Plugins {
		pv, err := lock.toVersion(values.KindPlugin, name)
		if err != nil {
			return nil, err
		}
		repo.AddPlugin(pv)

		for toolName, toolLock := range lock.Tools {
			tv, err := toolLock.toVersion(values.KindTool, toolName)
			if err != nil {
				return nil, fmt.Errorf("plugin %s: %w", name, err)
			}
			if err := repo.AddTool(name, tv); err != nil {
				return nil, err
			}
		}
	}
	return repo, nil
}

// FromEntity converts a domain snapshot to its file representation.
func FromEntity(repo *entities.InstalledRepository) *InstalledFile {
	if repo == nil {
		return nil
	}

	f := &InstalledFile{
		Updated: repo.Updated,
		Version: installedFileVersion,
		Plugins: make(map[string]InstalledLock, repo.Len()),
	}

	for _, name := range repo.PluginNames() {
		p := repo.Plugin(name)
		lock := InstalledLock{ArtifactLock: lockOf(p.Version())}
		for _, toolName := range p.ToolNames() {
			if lock.Tools == nil {
				lock.Tools = make(map[string]ArtifactLock)
			}
			lock.Tools[toolName] = lockOf(p.Tool(toolName))
		}
		f.Plugins[name] = lock
	}
	return f
}

func lockOf(v *entities.Version) ArtifactLock {
	l := ArtifactLock{
		Version:   v.Version(),
		URL:       v.URL(),
		Signature: v.SignatureURL(),
		Artifact:  v.ArtifactName(),
	}
	if d := v.Digest(); d != nil {
		l.Digest = d.String()
	}
	return l
}

func (l ArtifactLock) toVersion(kind values.Kind, name string) (*entities.Version, error) {
	opts := []entities.VersionOption{
		entities.WithArtifactURL(l.URL),
		entities.WithSignatureURL(l.Signature),
		entities.WithArtifactName(l.Artifact),
	}
	if l.Digest != "" {
		d, err := values.ParseDigest(l.Digest)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", kind, name, err)
		}
		opts = append(opts, entities.WithDigest(d))
	}
	return entities.NewVersion(kind, name, l.Version, opts...)
}
