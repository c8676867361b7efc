package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/vidstash/vidstash/internal/domain"
)

// copyChunkSize bounds per-read memory during media downloads.
const copyChunkSize = 256 * 1024

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Probe) with overall timeout
	client *http.Client
	// streamClient is used for streaming downloads without overall timeout
	streamClient *http.Client
	userAgent    string
	readTimeout  time.Duration
}

// NewHTTPDownloader creates a new HTTP media downloader. probeTimeout
// bounds HEAD requests; readTimeout is the per-read stall limit during
// streaming downloads.
func NewHTTPDownloader(userAgent string, probeTimeout, readTimeout time.Duration) *HTTPDownloader {
	streamTransport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: probeTimeout,
		},
		// No overall timeout on the stream client; large files are
		// bounded by the per-read stall check instead.
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		userAgent:   userAgent,
		readTimeout: readTimeout,
	}
}

// DownloadToFile streams the URL into destPath in fixed-size chunks.
// The whole body is never held in memory. On any error the partial file
// is removed before returning.
func (d *HTTPDownloader) DownloadToFile(ctx context.Context, url, destPath string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,image/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized:
		return 0, "", domain.ErrURLExpired
	case http.StatusNotFound, http.StatusGone:
		return 0, "", domain.ErrNotFoundUpstream
	case http.StatusTooManyRequests:
		return 0, "", domain.ErrRateLimited
	default:
		return 0, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, "", fmt.Errorf("create file: %w", err)
	}

	written, err := d.copyChunked(ctx, out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return 0, "", fmt.Errorf("stream to file: %w", err)
	}

	return written, resp.Header.Get("Content-Type"), nil
}

// copyChunked copies src to dst in fixed-size chunks, checking for
// cancellation and read stalls between chunks.
func (d *HTTPDownloader) copyChunked(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64
	lastRead := time.Now()

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			lastRead = time.Now()
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
		if n == 0 && d.readTimeout > 0 && time.Since(lastRead) > d.readTimeout {
			return written, fmt.Errorf("download stalled: no data received for %v", d.readTimeout)
		}
	}
}

// Probe checks URL accessibility without downloading full content.
func (d *HTTPDownloader) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return &ProbeResult{
			Accessible: false,
			Error:      err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Accessible:    resp.StatusCode == http.StatusOK,
	}

	if !result.Accessible {
		result.Error = fmt.Sprintf("status code %d", resp.StatusCode)
	}

	return result, nil
}
