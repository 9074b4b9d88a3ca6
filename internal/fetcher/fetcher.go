// Package fetcher downloads filing documents over HTTP with per-host rate
// limiting, retry, and adaptive backoff for SEC endpoints.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote documents.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadString fetches the URL and returns the whole body as a string.
	DownloadString(ctx context.Context, url string) (string, error)
}
