package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vidstash/vidstash/internal/config"
)

// BlobStore persists media bytes durably and hands out signed retrieval
// URLs. Provider CDN links die quickly; these are the long-lived copies.
type BlobStore interface {
	// Upload stores size bytes from r under key.
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) error

	// SignedURL returns a time-bounded retrieval URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// HTTPBlobStore implements BlobStore against an S3-compatible object
// gateway: PUT uploads an object, POST /sign issues a presigned URL.
type HTTPBlobStore struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
}

// NewHTTPBlobStore creates a blob store client.
func NewHTTPBlobStore(cfg config.BlobConfig) *HTTPBlobStore {
	return &HTTPBlobStore{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		bucket:  cfg.Bucket,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Upload stores an object under key.
func (s *HTTPBlobStore) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// signResponse is the gateway's presign reply.
type signResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// SignedURL requests a presigned retrieval URL for key.
func (s *HTTPBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, "sign")

	form := url.Values{}
	form.Set("key", key)
	form.Set("ttl_seconds", strconv.FormatInt(int64(ttl.Seconds()), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = form.Encode()
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sign failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var signed signResponse
	if err := json.Unmarshal(respBody, &signed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if signed.URL == "" {
		return "", fmt.Errorf("gateway returned empty signed URL")
	}

	return signed.URL, nil
}

// VideoKey builds the storage key for a bookmark's video.
func VideoKey(userID, bookmarkID string) string {
	return fmt.Sprintf("%s/%s/video.mp4", userID, bookmarkID)
}

// ThumbnailKey builds the storage key for a bookmark's thumbnail.
func ThumbnailKey(userID, bookmarkID string) string {
	return fmt.Sprintf("%s/%s/thumbnail.jpg", userID, bookmarkID)
}
