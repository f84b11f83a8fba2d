package ports

import "context"

// Downloader fetches artifacts and catalog documents.
type Downloader interface {
	// DownloadFile writes the resource at url to dest.
	DownloadFile(ctx context.Context, url, dest string) error

	// DownloadJSON decodes the JSON document at url into v.
	DownloadJSON(ctx context.Context, url string, v any) error
}
