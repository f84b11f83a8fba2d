package oci

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
)

// Scheme is the locator scheme handled by Downloader.
const Scheme = "oci"

// Media types of toolchain layers.
const (
	MediaTypeArtifact = "application/vnd.reglet.toolchain.artifact.v1"
	MediaTypeCatalog  = "application/vnd.reglet.toolchain.catalog.v1+json"
)

// TargetFunc opens the repository named by ref.
type TargetFunc func(ctx context.Context, ref registry.Reference) (oras.ReadOnlyTarget, error)

// Downloader implements ports.Downloader for oci://registry/repository:tag
// locators. The artifact is the manifest layer with MediaTypeArtifact, or
// the only layer.
type Downloader struct {
	auth      ports.AuthProvider
	target    TargetFunc
	plainHTTP bool
	logger    *slog.Logger
}

var _ ports.Downloader = (*Downloader)(nil)

// Option configures a Downloader.
type Option func(*Downloader)

// WithAuthProvider sets registry credentials.
func WithAuthProvider(p ports.AuthProvider) Option {
	return func(d *Downloader) { d.auth = p }
}

// WithPlainHTTP talks to registries over plain HTTP.
func WithPlainHTTP(plain bool) Option {
	return func(d *Downloader) { d.plainHTTP = plain }
}

// WithTarget overrides how repositories are opened.
func WithTarget(fn TargetFunc) Option {
	return func(d *Downloader) { d.target = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader creates an OCI downloader.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.target == nil {
		d.target = d.remoteTarget
	}
	return d
}

// DownloadFile writes the artifact layer of locator to dest.
func (d *Downloader) DownloadFile(ctx context.Context, locator, dest string) error {
	rc, layer, err := d.fetchLayer(ctx, locator, MediaTypeArtifact)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := io.Copy(f, io.LimitReader(rc, layer.Size))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n != layer.Size {
		err = fmt.Errorf("short read: got %d of %d bytes", n, layer.Size)
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("write layer %s: %w", layer.Digest, err)
	}

	d.logger.Debug("pulled oci artifact", "ref", locator, "digest", layer.Digest, "size", layer.Size)
	return nil
}

// DownloadJSON decodes the catalog layer of locator into v.
func (d *Downloader) DownloadJSON(ctx context.Context, locator string, v any) error {
	rc, layer, err := d.fetchLayer(ctx, locator, MediaTypeCatalog)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := json.NewDecoder(io.LimitReader(rc, layer.Size)).Decode(v); err != nil {
		return fmt.Errorf("decode layer %s: %w", layer.Digest, err)
	}
	return nil
}

func (d *Downloader) fetchLayer(ctx context.Context, locator, mediaType string) (io.ReadCloser, ocispec.Descriptor, error) {
	ref, err := ParseLocator(locator)
	if err != nil {
		return nil, ocispec.Descriptor{}, err
	}

	src, err := d.target(ctx, ref)
	if err != nil {
		return nil, ocispec.Descriptor{}, fmt.Errorf("create repository: %w", err)
	}

	// Pull manifest and layers
	store := memory.New()
	manifestDesc, err := oras.Copy(ctx, src, ref.Reference, store, ref.Reference, oras.CopyOptions{})
	if err != nil {
		return nil, ocispec.Descriptor{}, fmt.Errorf("pull artifact: %w", err)
	}

	manifestRC, err := store.Fetch(ctx, manifestDesc)
	if err != nil {
		return nil, ocispec.Descriptor{}, fmt.Errorf("fetch manifest: %w", err)
	}
	defer func() { _ = manifestRC.Close() }()

	var manifest ocispec.Manifest
	if err := json.NewDecoder(manifestRC).Decode(&manifest); err != nil {
		return nil, ocispec.Descriptor{}, fmt.Errorf("invalid manifest JSON: %w", err)
	}

	layer, err := selectLayer(manifest.Layers, mediaType)
	if err != nil {
		return nil, ocispec.Descriptor{}, fmt.Errorf("%s: %w", locator, err)
	}

	rc, err := store.Fetch(ctx, layer)
	if err != nil {
		return nil, ocispec.Descriptor{}, fmt.Errorf("fetch layer: %w", err)
	}
	return rc, layer, nil
}

func (d *Downloader) remoteTarget(ctx context.Context, ref registry.Reference) (oras.ReadOnlyTarget, error) {
	repo, err := remote.NewRepository(ref.Registry + "/" + ref.Repository)
	if err != nil {
		return nil, err
	}
	repo.PlainHTTP = d.plainHTTP

	if d.auth != nil {
		username, password, err := d.auth.GetCredentials(ctx, ref.Registry)
		if err == nil && username != "" {
			repo.Client = &auth.Client{
				Client: retry.DefaultClient,
				Cache:  auth.NewCache(),
				Credential: auth.StaticCredential(ref.Registry, auth.Credential{
					Username: username,
					Password: password,
				}),
			}
		}
	}
	return repo, nil
}

// ParseLocator parses an oci:// locator. A tag or digest is required.
func ParseLocator(locator string) (registry.Reference, error) {
	raw, ok := strings.CutPrefix(locator, Scheme+"://")
	if !ok {
		return registry.Reference{}, fmt.Errorf("not an oci locator: %s", locator)
	}
	ref, err := registry.ParseReference(raw)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("invalid oci reference %q: %w", raw, err)
	}
	if ref.Reference == "" {
		return registry.Reference{}, fmt.Errorf("oci reference %q has no tag or digest", raw)
	}
	return ref, nil
}

func selectLayer(layers []ocispec.Descriptor, mediaType string) (ocispec.Descriptor, error) {
	for _, l := range layers {
		if l.MediaType == mediaType {
			return l, nil
		}
	}
	if len(layers) == 1 {
		return layers[0], nil
	}
	return ocispec.Descriptor{}, fmt.Errorf("no %s layer among %d layers", mediaType, len(layers))
}
