package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/downloader"
	"github.com/vidstash/vidstash/internal/storage"
)

// Transferer moves a remote media file into durable blob storage via a
// local temp file: stream down, stream up, sign. The temp file is handed
// back to the caller so thumbnail extraction can reuse the bytes; the
// caller owns deleting it.
type Transferer struct {
	downloader downloader.Downloader
	blobs      storage.BlobStore
	cfg        config.TransferConfig
	signTTL    time.Duration
	tempDir    string
	logger     *slog.Logger
}

// New creates a Transferer.
func New(
	dl downloader.Downloader,
	blobs storage.BlobStore,
	cfg config.TransferConfig,
	signTTL time.Duration,
	tempDir string,
	logger *slog.Logger,
) *Transferer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	return &Transferer{
		downloader: dl,
		blobs:      blobs,
		cfg:        cfg,
		signTTL:    signTTL,
		tempDir:    tempDir,
		logger:     logger,
	}
}

// Transfer streams sourceURL into blob storage under key and returns the
// signed durable URL plus the local temp path of the downloaded bytes.
// The download is retried with exponential backoff; each retry starts
// from a clean file. If the download succeeds but the upload does not,
// the temp path is still returned so the caller can salvage the bytes.
func (t *Transferer) Transfer(ctx context.Context, sourceURL, key string) (string, string, error) {
	f, err := os.CreateTemp(t.tempDir, "transfer-*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()
	f.Close()

	contentType, err := t.downloadWithRetry(ctx, sourceURL, tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", "", fmt.Errorf("download media: %w", err)
	}
	if contentType == "" {
		contentType = "video/mp4"
	}

	src, err := os.Open(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", "", fmt.Errorf("open downloaded file: %w", err)
	}
	defer src.Close()

	stat, err := src.Stat()
	if err != nil {
		os.Remove(tempPath)
		return "", "", fmt.Errorf("stat downloaded file: %w", err)
	}

	if err := t.blobs.Upload(ctx, key, contentType, src, stat.Size()); err != nil {
		return "", tempPath, fmt.Errorf("upload to blob storage: %w", err)
	}

	durableURL, err := t.blobs.SignedURL(ctx, key, t.signTTL)
	if err != nil {
		return "", tempPath, fmt.Errorf("sign durable URL: %w", err)
	}

	t.logger.Info("media transferred",
		"key", key,
		"size_bytes", stat.Size(),
	)

	return durableURL, tempPath, nil
}

// downloadWithRetry pulls sourceURL into destPath, retrying transport
// failures with delays doubling from the configured base. DownloadToFile
// removes its partial output on failure, so every attempt starts clean.
func (t *Transferer) downloadWithRetry(ctx context.Context, sourceURL, destPath string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.cfg.RetryBaseDelay
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0
	bo.MaxInterval = t.cfg.RetryBaseDelay * 8
	bo.MaxElapsedTime = 0

	var contentType string
	attempt := 0

	operation := func() error {
		attempt++
		_, ct, err := t.downloader.DownloadToFile(ctx, sourceURL, destPath)
		if err != nil {
			t.logger.Warn("download attempt failed",
				"url", sourceURL,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		contentType = ct
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(t.cfg.MaxAttempts-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("after %d attempts: %w", attempt, err)
	}

	return contentType, nil
}
