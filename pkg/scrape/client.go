package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/domain"
)

// Client interfaces with the external scraper service for post metadata.
type Client interface {
	// Scrape fetches and normalizes metadata for a supported video URL.
	Scrape(ctx context.Context, url string) (*domain.VideoMetadata, error)
}

// HTTPClient implements Client using HTTP requests to the scraper service.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new scraper service client.
func NewClient(cfg config.ScraperConfig) *HTTPClient {
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// scrapeRequest is the request body for the scraper service.
type scrapeRequest struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

// Scrape fetches metadata for url. The raw payload shape differs per
// platform; everything is normalized into domain.VideoMetadata here so
// nothing downstream ever sees a provider shape.
func (c *HTTPClient) Scrape(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	platform := domain.DetectPlatform(url)
	if platform == domain.PlatformUnknown {
		return nil, fmt.Errorf("scrape %q: %w", url, domain.ErrUnsupportedPlatform)
	}

	body, err := json.Marshal(scrapeRequest{URL: url, Platform: string(platform)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("scrape %q: %w", url, domain.ErrNotFoundUpstream)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("scrape %q: %w", url, domain.ErrRateLimited)
	default:
		return nil, fmt.Errorf("scraper error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, fmt.Errorf("scrape %q: %w", url, domain.ErrEmptyPayload)
	}

	meta, err := normalize(platform, respBody)
	if err != nil {
		return nil, err
	}

	return meta, nil
}

// normalize maps a raw provider payload into the fixed metadata shape.
func normalize(platform domain.Platform, payload []byte) (*domain.VideoMetadata, error) {
	var meta *domain.VideoMetadata
	var err error

	switch platform {
	case domain.PlatformInstagram:
		meta, err = normalizeInstagram(payload)
	case domain.PlatformTikTok:
		meta, err = normalizeTikTok(payload)
	case domain.PlatformYouTube:
		meta, err = normalizeYouTube(payload)
	default:
		return nil, domain.ErrUnsupportedPlatform
	}
	if err != nil {
		return nil, fmt.Errorf("normalize %s payload: %w", platform, err)
	}

	// A payload that decodes but carries nothing usable is as bad as an
	// empty one; retrying will not fix it.
	if meta.Title == "" && meta.Description == "" && meta.VideoURL == "" && meta.ThumbnailURL == "" {
		return nil, fmt.Errorf("normalize %s payload: %w", platform, domain.ErrEmptyPayload)
	}

	meta.Platform = platform
	return meta, nil
}

// instagramPayload is the scraper's reel/post shape.
type instagramPayload struct {
	Caption string `json:"caption"`
	Owner   struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
	} `json:"owner"`
	LikeCount     *int64  `json:"like_count"`
	CommentCount  *int64  `json:"comment_count"`
	VideoViewsRaw *int64  `json:"video_view_count"`
	DisplayURL    string  `json:"display_url"`
	VideoURL      string  `json:"video_url"`
	VideoDuration float64 `json:"video_duration"`
	TakenAtUnix   int64   `json:"taken_at_timestamp"`
	Comments      []struct {
		Text      string `json:"text"`
		Owner     string `json:"owner"`
		LikeCount int    `json:"like_count"`
	} `json:"comments"`
}

func normalizeInstagram(payload []byte) (*domain.VideoMetadata, error) {
	var p instagramPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	meta := &domain.VideoMetadata{
		Title:        firstLine(p.Caption),
		Description:  p.Caption,
		Author:       p.Owner.Username,
		Hashtags:     extractHashtags(p.Caption),
		ViewCount:    p.VideoViewsRaw,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		ThumbnailURL: p.DisplayURL,
		VideoURL:     p.VideoURL,
		DurationSec:  int(p.VideoDuration),
	}
	if p.TakenAtUnix > 0 {
		t := time.Unix(p.TakenAtUnix, 0).UTC()
		meta.PublishedAt = &t
	}
	for _, c := range p.Comments {
		meta.TopComments = append(meta.TopComments, domain.Comment{
			Text:   c.Text,
			Author: c.Owner,
			Likes:  c.LikeCount,
		})
	}
	return meta, nil
}

// tiktokPayload is the scraper's item shape.
type tiktokPayload struct {
	Desc   string `json:"desc"`
	Author struct {
		UniqueID string `json:"unique_id"`
		Nickname string `json:"nickname"`
	} `json:"author"`
	Stats struct {
		PlayCount    *int64 `json:"play_count"`
		DiggCount    *int64 `json:"digg_count"`
		CommentCount *int64 `json:"comment_count"`
	} `json:"stats"`
	Video struct {
		Cover    string `json:"cover"`
		PlayAddr string `json:"play_addr"`
		Duration int    `json:"duration"`
	} `json:"video"`
	CreateTime int64 `json:"create_time"`
	Comments   []struct {
		Text  string `json:"text"`
		User  string `json:"user"`
		Likes int    `json:"likes"`
	} `json:"comments"`
}

func normalizeTikTok(payload []byte) (*domain.VideoMetadata, error) {
	var p tiktokPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	meta := &domain.VideoMetadata{
		Title:        firstLine(p.Desc),
		Description:  p.Desc,
		Author:       p.Author.UniqueID,
		Hashtags:     extractHashtags(p.Desc),
		ViewCount:    p.Stats.PlayCount,
		LikeCount:    p.Stats.DiggCount,
		CommentCount: p.Stats.CommentCount,
		ThumbnailURL: p.Video.Cover,
		VideoURL:     p.Video.PlayAddr,
		DurationSec:  p.Video.Duration,
	}
	if p.CreateTime > 0 {
		t := time.Unix(p.CreateTime, 0).UTC()
		meta.PublishedAt = &t
	}
	for _, c := range p.Comments {
		meta.TopComments = append(meta.TopComments, domain.Comment{
			Text:   c.Text,
			Author: c.User,
			Likes:  c.Likes,
		})
	}
	return meta, nil
}

// youtubePayload is the scraper's video shape.
type youtubePayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Channel     string   `json:"channel"`
	Tags        []string `json:"tags"`
	ViewCount   *int64   `json:"view_count"`
	LikeCount   *int64   `json:"like_count"`
	Thumbnail   string   `json:"thumbnail"`
	VideoURL    string   `json:"video_url"`
	DurationSec int      `json:"duration_seconds"`
	PublishedAt string   `json:"published_at"`
	Comments    []struct {
		Text   string `json:"text"`
		Author string `json:"author"`
		Likes  int    `json:"likes"`
	} `json:"comments"`
}

func normalizeYouTube(payload []byte) (*domain.VideoMetadata, error) {
	var p youtubePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	hashtags := p.Tags
	if len(hashtags) == 0 {
		hashtags = extractHashtags(p.Description)
	}

	meta := &domain.VideoMetadata{
		Title:        p.Title,
		Description:  p.Description,
		Author:       p.Channel,
		Hashtags:     hashtags,
		ViewCount:    p.ViewCount,
		LikeCount:    p.LikeCount,
		ThumbnailURL: p.Thumbnail,
		VideoURL:     p.VideoURL,
		DurationSec:  p.DurationSec,
	}
	if p.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
			utc := t.UTC()
			meta.PublishedAt = &utc
		}
	}
	for _, c := range p.Comments {
		meta.TopComments = append(meta.TopComments, domain.Comment{
			Text:   c.Text,
			Author: c.Author,
			Likes:  c.Likes,
		})
	}
	return meta, nil
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// extractHashtags pulls #tags out of caption text, lowercased, deduped,
// in order of first appearance.
func extractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var tags []string
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// firstLine returns the first non-empty line of a caption, trimmed, for
// use as a title on platforms that have no title field.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 120 {
				// Cut on a rune boundary; captions are rarely ASCII.
				cut := 120
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				line = line[:cut]
			}
			return line
		}
	}
	return ""
}
