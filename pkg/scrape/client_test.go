package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/domain"
)

func testClient(baseURL string) *HTTPClient {
	return NewClient(config.ScraperConfig{
		BaseURL: baseURL,
		APIKey:  "scraper-key",
		Timeout: 5 * time.Second,
	})
}

func TestScrape_Instagram(t *testing.T) {
	var gotReq scrapeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scrape" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer scraper-key" {
			t.Errorf("auth = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"caption": "Morning surf session 🌊\n#surfing #hawaii #Surfing",
			"owner": {"username": "wavehunter", "full_name": "Wave Hunter"},
			"like_count": 4200,
			"comment_count": 89,
			"video_view_count": 51000,
			"display_url": "https://cdn.example.com/thumb.jpg",
			"video_url": "https://cdn.example.com/reel.mp4",
			"video_duration": 34.5,
			"taken_at_timestamp": 1735689600,
			"comments": [{"text": "insane!", "owner": "fan1", "like_count": 12}]
		}`))
	}))
	defer server.Close()

	meta, err := testClient(server.URL).Scrape(context.Background(), "https://www.instagram.com/reel/Cxyz123/")
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if gotReq.Platform != "instagram" {
		t.Errorf("request platform = %q", gotReq.Platform)
	}
	if meta.Platform != domain.PlatformInstagram {
		t.Errorf("platform = %q", meta.Platform)
	}
	if meta.Author != "wavehunter" {
		t.Errorf("author = %q", meta.Author)
	}
	if meta.Title != "Morning surf session 🌊" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.VideoURL != "https://cdn.example.com/reel.mp4" {
		t.Errorf("video URL = %q", meta.VideoURL)
	}
	if meta.ThumbnailURL != "https://cdn.example.com/thumb.jpg" {
		t.Errorf("thumbnail URL = %q", meta.ThumbnailURL)
	}
	if meta.DurationSec != 34 {
		t.Errorf("duration = %d", meta.DurationSec)
	}
	if meta.LikeCount == nil || *meta.LikeCount != 4200 {
		t.Errorf("like count = %v", meta.LikeCount)
	}
	// Hashtags are lowercased and deduped, in first-appearance order.
	want := []string{"surfing", "hawaii"}
	if len(meta.Hashtags) != len(want) {
		t.Fatalf("hashtags = %v, want %v", meta.Hashtags, want)
	}
	for i := range want {
		if meta.Hashtags[i] != want[i] {
			t.Errorf("hashtags[%d] = %q, want %q", i, meta.Hashtags[i], want[i])
		}
	}
	if meta.PublishedAt == nil || meta.PublishedAt.Year() != 2025 {
		t.Errorf("published at = %v", meta.PublishedAt)
	}
	if len(meta.TopComments) != 1 || meta.TopComments[0].Author != "fan1" {
		t.Errorf("comments = %+v", meta.TopComments)
	}
}

func TestScrape_TikTok(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"desc": "POV: first day at the gym #gym #fitness",
			"author": {"unique_id": "liftlife", "nickname": "Lift Life"},
			"stats": {"play_count": 900000, "digg_count": 120000, "comment_count": 3400},
			"video": {"cover": "https://cdn.example.com/cover.jpg", "play_addr": "https://cdn.example.com/item.mp4", "duration": 21},
			"create_time": 1735689600
		}`))
	}))
	defer server.Close()

	meta, err := testClient(server.URL).Scrape(context.Background(), "https://www.tiktok.com/@liftlife/video/7312345")
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if meta.Platform != domain.PlatformTikTok {
		t.Errorf("platform = %q", meta.Platform)
	}
	if meta.Author != "liftlife" {
		t.Errorf("author = %q", meta.Author)
	}
	if meta.ViewCount == nil || *meta.ViewCount != 900000 {
		t.Errorf("view count = %v", meta.ViewCount)
	}
	if meta.DurationSec != 21 {
		t.Errorf("duration = %d", meta.DurationSec)
	}
	if len(meta.Hashtags) != 2 || meta.Hashtags[0] != "gym" {
		t.Errorf("hashtags = %v", meta.Hashtags)
	}
}

func TestScrape_TitleTruncatedOnRuneBoundary(t *testing.T) {
	// One ASCII byte followed by three-byte runes, so a byte-120 cut
	// would land mid-rune.
	caption := "a" + strings.Repeat("日", 60)
	payload, err := json.Marshal(map[string]interface{}{
		"desc":   caption,
		"author": map[string]string{"unique_id": "longposter"},
		"video":  map[string]string{"play_addr": "https://cdn.example.com/long.mp4"},
	})
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	meta, err := testClient(server.URL).Scrape(context.Background(), "https://www.tiktok.com/@longposter/video/1")
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if len(meta.Title) == 0 || len(meta.Title) > 120 {
		t.Errorf("title length = %d bytes", len(meta.Title))
	}
	if !utf8.ValidString(meta.Title) {
		t.Errorf("title is not valid UTF-8: %q", meta.Title)
	}
	if !strings.HasSuffix(meta.Title, "日") {
		t.Errorf("title = %q, should end on a whole rune", meta.Title)
	}
}

func TestScrape_YouTube(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"title": "How CPUs Actually Work",
			"description": "A deep dive into modern processors.",
			"channel": "TechExplained",
			"tags": ["cpu", "hardware"],
			"view_count": 2400000,
			"thumbnail": "https://i.ytimg.example.com/hq.jpg",
			"video_url": "https://cdn.example.com/yt.mp4",
			"duration_seconds": 754,
			"published_at": "2025-06-15T12:00:00Z"
		}`))
	}))
	defer server.Close()

	meta, err := testClient(server.URL).Scrape(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if meta.Platform != domain.PlatformYouTube {
		t.Errorf("platform = %q", meta.Platform)
	}
	if meta.Title != "How CPUs Actually Work" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Author != "TechExplained" {
		t.Errorf("author = %q", meta.Author)
	}
	if len(meta.Hashtags) != 2 || meta.Hashtags[1] != "hardware" {
		t.Errorf("hashtags = %v", meta.Hashtags)
	}
	if meta.PublishedAt == nil || meta.PublishedAt.Month() != time.June {
		t.Errorf("published at = %v", meta.PublishedAt)
	}
}

func TestScrape_UnsupportedPlatform(t *testing.T) {
	_, err := testClient("http://unused.example.com").Scrape(context.Background(), "https://vimeo.com/12345")
	if !errors.Is(err, domain.ErrUnsupportedPlatform) {
		t.Errorf("err = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestScrape_EmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(""))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Scrape(context.Background(), "https://www.tiktok.com/@x/video/1")
	if !errors.Is(err, domain.ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestScrape_PayloadWithNothingUsable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stats": {}}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Scrape(context.Background(), "https://www.tiktok.com/@x/video/1")
	if !errors.Is(err, domain.ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestScrape_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Scrape(context.Background(), "https://www.youtube.com/watch?v=x")
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestScrape_UpstreamNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Scrape(context.Background(), "https://www.instagram.com/reel/gone123/")
	if !errors.Is(err, domain.ErrNotFoundUpstream) {
		t.Errorf("err = %v, want ErrNotFoundUpstream", err)
	}
}

func TestScrape_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Scrape(context.Background(), "https://www.instagram.com/reel/busy123/")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}
