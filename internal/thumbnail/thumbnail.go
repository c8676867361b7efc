package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/domain"
	"github.com/vidstash/vidstash/internal/downloader"
	"github.com/vidstash/vidstash/internal/storage"
	"github.com/vidstash/vidstash/pkg/ffmpeg"
)

// Acquirer produces a durable thumbnail URL for a bookmark. It walks a
// fallback ladder: download the provider's thumbnail hint, retry that
// once after a short wait, then fall back to extracting a frame from
// the already-downloaded video. Every rung is allowed to fail; a run
// without a thumbnail is degraded, not broken.
type Acquirer struct {
	downloader downloader.Downloader
	blobs      storage.BlobStore
	extractor  ffmpeg.FrameExtractor
	cfg        config.ThumbnailConfig
	signTTL    time.Duration
	tempDir    string
	logger     *slog.Logger
}

// New creates an Acquirer. extractor may be nil when ffmpeg is not
// available; the frame-extraction rung is then skipped.
func New(
	dl downloader.Downloader,
	blobs storage.BlobStore,
	extractor ffmpeg.FrameExtractor,
	cfg config.ThumbnailConfig,
	signTTL time.Duration,
	tempDir string,
	logger *slog.Logger,
) *Acquirer {
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 5 * time.Second
	}
	if cfg.FrameOffset <= 0 {
		cfg.FrameOffset = 2 * time.Second
	}
	return &Acquirer{
		downloader: dl,
		blobs:      blobs,
		extractor:  extractor,
		cfg:        cfg,
		signTTL:    signTTL,
		tempDir:    tempDir,
		logger:     logger,
	}
}

// Acquire returns a signed durable URL for the bookmark's thumbnail.
// hintURL is the provider's thumbnail link and may be empty.
// localVideoPath points at the downloaded video and may be empty when
// the media transfer failed or was skipped.
func (a *Acquirer) Acquire(ctx context.Context, hintURL, localVideoPath string, userID string, bookmarkID domain.BookmarkID) (string, error) {
	key := storage.ThumbnailKey(userID, bookmarkID.String())

	if hintURL != "" {
		url, err := a.fromHint(ctx, hintURL, key)
		if err == nil {
			return url, nil
		}
		a.logger.Warn("thumbnail hint download failed, will retry",
			"bookmark_id", bookmarkID,
			"error", err,
		)

		// CDN thumbnails are sometimes generated lazily; give the
		// provider a moment before the second attempt.
		select {
		case <-time.After(a.cfg.RetryWait):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		url, err = a.fromHint(ctx, hintURL, key)
		if err == nil {
			return url, nil
		}
		a.logger.Warn("thumbnail hint retry failed",
			"bookmark_id", bookmarkID,
			"error", err,
		)
	}

	if localVideoPath != "" && a.extractor != nil {
		url, err := a.fromFrame(ctx, localVideoPath, key)
		if err == nil {
			return url, nil
		}
		a.logger.Warn("thumbnail frame extraction failed",
			"bookmark_id", bookmarkID,
			"error", err,
		)
	}

	return "", domain.NewBookmarkError(bookmarkID, "acquire thumbnail", domain.ErrNoThumbnail)
}

// fromHint downloads the provider thumbnail and uploads it.
func (a *Acquirer) fromHint(ctx context.Context, hintURL, key string) (string, error) {
	f, err := os.CreateTemp(a.tempDir, "thumb-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()
	f.Close()
	defer os.Remove(tempPath)

	dlCtx := ctx
	if a.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, a.cfg.DownloadTimeout)
		defer cancel()
	}

	size, contentType, err := a.downloader.DownloadToFile(dlCtx, hintURL, tempPath)
	if err != nil {
		return "", fmt.Errorf("download thumbnail: %w", err)
	}
	if size == 0 {
		return "", fmt.Errorf("download thumbnail: %w", domain.ErrEmptyPayload)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return a.upload(ctx, tempPath, key, contentType, size)
}

// fromFrame extracts a frame from the local video and uploads it.
func (a *Acquirer) fromFrame(ctx context.Context, videoPath, key string) (string, error) {
	f, err := os.CreateTemp(a.tempDir, "frame-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	framePath := f.Name()
	f.Close()
	defer os.Remove(framePath)

	if err := a.extractor.ExtractFrame(ctx, videoPath, a.cfg.FrameOffset.Seconds(), framePath); err != nil {
		return "", fmt.Errorf("extract frame: %w", err)
	}

	stat, err := os.Stat(framePath)
	if err != nil {
		return "", fmt.Errorf("stat frame: %w", err)
	}

	return a.upload(ctx, framePath, key, "image/jpeg", stat.Size())
}

func (a *Acquirer) upload(ctx context.Context, path, key, contentType string, size int64) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open thumbnail file: %w", err)
	}
	defer src.Close()

	if err := a.blobs.Upload(ctx, key, contentType, src, size); err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}

	url, err := a.blobs.SignedURL(ctx, key, a.signTTL)
	if err != nil {
		return "", fmt.Errorf("sign thumbnail URL: %w", err)
	}

	return url, nil
}
