package downloader

import (
	"context"
)

// Downloader fetches remote media to local transient storage.
type Downloader interface {
	// DownloadToFile streams the URL into destPath in fixed-size chunks
	// and returns the number of bytes written and the content type.
	DownloadToFile(ctx context.Context, url, destPath string) (int64, string, error)

	// Probe checks URL accessibility without downloading full content.
	Probe(ctx context.Context, url string) (*ProbeResult, error)
}

// ProbeResult contains information about a media URL.
type ProbeResult struct {
	ContentType   string
	ContentLength int64
	Accessible    bool
	Error         string
}
