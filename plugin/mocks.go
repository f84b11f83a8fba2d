package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/reglet-dev/reglet-toolchain/plugin/entities"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// MockRepository implements ports.Repository over fixed version lists.
// The first listed version satisfying a constraint is returned.
type MockRepository struct {
	RepoName string
	Plugins  map[string][]*entities.Version
	// Tools is keyed by "plugin/tool".
	Tools map[string][]*entities.Version
	Err   error

	Calls int
}

func (m *MockRepository) Name() string {
	if m.RepoName == "" {
		return "mock"
	}
	return m.RepoName
}

func (m *MockRepository) FindPluginVersion(ctx context.Context, name, constraint string) (*entities.Version, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if v := firstMatch(m.Plugins[name], constraint); v != nil {
		return v, nil
	}
	return nil, &entities.PluginVersionNotFoundError{Name: name, Constraint: constraint}
}

func (m *MockRepository) FindToolVersion(ctx context.Context, pluginName, toolName, constraint string) (*entities.Version, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if v := firstMatch(m.Tools[pluginName+"/"+toolName], constraint); v != nil {
		return v, nil
	}
	return nil, &entities.ToolVersionNotFoundError{Plugin: pluginName, Tool: toolName, Constraint: constraint}
}

func firstMatch(versions []*entities.Version, constraint string) *entities.Version {
	for _, v := range versions {
		if ok, err := values.Matches(v.Version(), constraint); err == nil && ok {
			return v
		}
	}
	return nil
}

// MockPlatformChecker implements ports.PlatformChecker.
// Requirements not listed in Available are unfulfilled.
type MockPlatformChecker struct {
	Available map[string]string
	Queries   []string
}

func (m *MockPlatformChecker) IsFulfilled(name, constraint string) bool {
	m.Queries = append(m.Queries, name)
	version, ok := m.Available[name]
	if !ok {
		return false
	}
	if version == "" {
		return true
	}
	match, err := values.Matches(version, constraint)
	return err == nil && match
}

// MockDownloader implements ports.Downloader by serving in-memory content.
type MockDownloader struct {
	mu        sync.Mutex
	Files     map[string][]byte
	Documents map[string]any
	Err       error
	Requested []string
}

func (m *MockDownloader) DownloadFile(ctx context.Context, url, dest string) error {
	m.mu.Lock()
	m.Requested = append(m.Requested, url)
	m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	data, ok := m.Files[url]
	if !ok {
		return fmt.Errorf("mock download: %s not found", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o600)
}

func (m *MockDownloader) DownloadJSON(ctx context.Context, url string, v any) error {
	if m.Err != nil {
		return m.Err
	}
	doc, ok := m.Documents[url]
	if !ok {
		return fmt.Errorf("mock download: %s not found", url)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// MockSignatureVerifier implements ports.SignatureVerifier.
type MockSignatureVerifier struct {
	Result *ports.SignatureResult
	Err    error
	Calls  int
}

func (m *MockSignatureVerifier) Verify(ctx context.Context, artifactPath, signaturePath string) (*ports.SignatureResult, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return &ports.SignatureResult{Fingerprint: "MOCK", Verified: true}, nil
	}
	return m.Result, nil
}

// MockInstalledStore implements ports.InstalledStore in memory.
type MockInstalledStore struct {
	Installed *entities.InstalledRepository
	LoadErr   error
	SaveErr   error
	Saves     int
}

func (m *MockInstalledStore) Load(ctx context.Context) (*entities.InstalledRepository, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.Installed == nil {
		return entities.NewInstalledRepository(), nil
	}
	return m.Installed.Clone(), nil
}

func (m *MockInstalledStore) Save(ctx context.Context, installed *entities.InstalledRepository) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.Installed = installed.Clone()
	return nil
}

func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
