package download

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/reglet-dev/reglet-toolchain/netutil"
	"github.com/reglet-dev/reglet-toolchain/plugin/ports"
)

// FileDownloader implements ports.Downloader for local paths and file:// URLs.
type FileDownloader struct {
	maxSize int64
}

var _ ports.Downloader = (*FileDownloader)(nil)

// NewFileDownloader creates a FileDownloader.
func NewFileDownloader() *FileDownloader {
	return &FileDownloader{maxSize: DefaultMaxArtifactSize}
}

// DownloadFile copies the local file to dest.
func (d *FileDownloader) DownloadFile(ctx context.Context, locator, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(netutil.LocalPath(locator))
	if err != nil {
		return fmt.Errorf("open %s: %w", locator, err)
	}
	defer func() { _ = src.Close() }()

	if _, err := writeFile(dest, netutil.LimitReader(src, d.maxSize)); err != nil {
		return fmt.Errorf("copy %s: %w", locator, err)
	}
	return nil
}

// DownloadJSON decodes the local JSON file into v.
func (d *FileDownloader) DownloadJSON(ctx context.Context, locator string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(netutil.LocalPath(locator))
	if err != nil {
		return fmt.Errorf("open %s: %w", locator, err)
	}
	defer func() { _ = src.Close() }()

	if err := json.NewDecoder(netutil.LimitReader(src, DefaultMaxDocumentSize)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", locator, err)
	}
	return nil
}
