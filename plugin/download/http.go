// Package download fetches artifacts, signatures and catalog documents.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/reglet-dev/reglet-toolchain/netutil"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
)

const (
	// DefaultMaxArtifactSize bounds a single artifact download.
	DefaultMaxArtifactSize int64 = 512 << 20
	// DefaultMaxDocumentSize bounds a catalog document.
	DefaultMaxDocumentSize int64 = 16 << 20
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPDownloader implements ports.Downloader over HTTP(S).
type HTTPDownloader struct {
	client          *http.Client
	auth            ports.AuthProvider
	logger          *slog.Logger
	userAgent       string
	maxArtifactSize int64
	maxDocumentSize int64
}

var _ ports.Downloader = (*HTTPDownloader)(nil)

// HTTPOption configures an HTTPDownloader.
type HTTPOption func(*HTTPDownloader)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(d *HTTPDownloader) { d.client = c }
}

// WithAuthProvider sets basic-auth credentials per host.
func WithAuthProvider(p ports.AuthProvider) HTTPOption {
	return func(d *HTTPDownloader) { d.auth = p }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(d *HTTPDownloader) { d.userAgent = ua }
}

// WithMaxSize sets the artifact and document size limits.
func WithMaxSize(artifact, document int64) HTTPOption {
	return func(d *HTTPDownloader) {
		if artifact > 0 {
			d.maxArtifactSize = artifact
		}
		if document > 0 {
			d.maxDocumentSize = document
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(d *HTTPDownloader) { d.logger = l }
}

// NewHTTPDownloader creates a downloader with a retrying TLS 1.2+ transport.
func NewHTTPDownloader(opts ...HTTPOption) *HTTPDownloader {
	d := &HTTPDownloader{
		logger:          slog.Default(),
		userAgent:       "reglet-toolchain",
		maxArtifactSize: DefaultMaxArtifactSize,
		maxDocumentSize: DefaultMaxDocumentSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = netutil.TLSConfig()
		d.client = &http.Client{
			Timeout:   10 * time.Minute,
			Transport: netutil.NewRetryTransport(base, netutil.WithRetryLogger(d.logger)),
		}
	}
	return d
}

// DownloadFile writes the resource at url to dest. A partial file is
// removed on failure.
func (d *HTTPDownloader) DownloadFile(ctx context.Context, url, dest string) error {
	body, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	n, err := writeFile(dest, netutil.LimitReader(body, d.maxArtifactSize))
	if err != nil {
		return fmt.Errorf("download %s: %w", netutil.StripCredentials(url), err)
	}

	d.logger.Debug("downloaded file", "url", netutil.StripCredentials(url), "size", netutil.FormatSize(n))
	return nil
}

// DownloadJSON decodes the JSON document at url into v.
func (d *HTTPDownloader) DownloadJSON(ctx context.Context, url string, v any) error {
	body, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(netutil.LimitReader(body, d.maxDocumentSize)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", netutil.StripCredentials(url), err)
	}
	return nil
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download URL: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	if d.auth != nil && !netutil.HasCredentials(url) {
		user, pass, err := d.auth.GetCredentials(ctx, req.URL.Host)
		if err != nil {
			return nil, fmt.Errorf("credentials for %s: %w", req.URL.Host, err)
		}
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", netutil.StripCredentials(url), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: netutil.StripCredentials(url), StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// writeFile streams r into a temporary sibling of dest and renames it into
// place once complete.
func writeFile(dest string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("creating directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return n, err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return n, err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		cleanup()
		return n, err
	}
	return n, nil
}
