package download

import (
	"context"
	"fmt"
	"strings"

	"github.com/reglet-dev/reglet-toolchain/netutil"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
)

// Mux dispatches downloads by URL scheme. Locators without a scheme are
// treated as local paths.
type Mux struct {
	schemes map[string]ports.Downloader
}

var _ ports.Downloader = (*Mux)(nil)

// NewMux creates an empty multiplexer.
func NewMux() *Mux {
	return &Mux{schemes: make(map[string]ports.Downloader)}
}

// NewDefaultMux wires HTTP(S), file and bare paths.
func NewDefaultMux(httpOpts ...HTTPOption) *Mux {
	m := NewMux()
	h := NewHTTPDownloader(httpOpts...)
	m.Handle("http", h)
	m.Handle("https", h)
	m.Handle("file", NewFileDownloader())
	return m
}

// Handle registers d for scheme.
func (m *Mux) Handle(scheme string, d ports.Downloader) {
	m.schemes[strings.ToLower(scheme)] = d
}

// DownloadFile dispatches to the downloader registered for the scheme of locator.
func (m *Mux) DownloadFile(ctx context.Context, locator, dest string) error {
	d, err := m.route(locator)
	if err != nil {
		return err
	}
	return d.DownloadFile(ctx, locator, dest)
}

// DownloadJSON dispatches to the downloader registered for the scheme of locator.
func (m *Mux) DownloadJSON(ctx context.Context, locator string, v any) error {
	d, err := m.route(locator)
	if err != nil {
		return err
	}
	return d.DownloadJSON(ctx, locator, v)
}

func (m *Mux) route(locator string) (ports.Downloader, error) {
	scheme := netutil.Scheme(locator)
	d, ok := m.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("no downloader for scheme %q", scheme)
	}
	return d, nil
}
