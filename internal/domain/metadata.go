package domain

import (
	"regexp"
	"time"
)

// Platform identifies the source network of a bookmarked URL.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformUnknown   Platform = "unknown"
)

// Comment is one top-level comment captured by the scraper.
type Comment struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Likes  int    `json:"likes"`
}

// VideoMetadata is the normalized shape every platform payload is mapped
// into at the scraper client boundary. Count fields are pointers because
// providers frequently omit them.
type VideoMetadata struct {
	Platform     Platform   `json:"platform"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Author       string     `json:"author"`
	Hashtags     []string   `json:"hashtags,omitempty"`
	ViewCount    *int64     `json:"view_count,omitempty"`
	LikeCount    *int64     `json:"like_count,omitempty"`
	CommentCount *int64     `json:"comment_count,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	VideoURL     string     `json:"video_url,omitempty"`
	DurationSec  int        `json:"duration_seconds,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	TopComments  []Comment  `json:"top_comments,omitempty"`
}

// Copy returns a deep copy of the metadata. Pipeline stages that derive
// artifacts from metadata fields work on copies so the bag embedded in the
// final persistence write is never aliased by stage-local mutation.
func (m *VideoMetadata) Copy() *VideoMetadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.Hashtags != nil {
		out.Hashtags = append([]string(nil), m.Hashtags...)
	}
	if m.TopComments != nil {
		out.TopComments = append([]Comment(nil), m.TopComments...)
	}
	if m.ViewCount != nil {
		v := *m.ViewCount
		out.ViewCount = &v
	}
	if m.LikeCount != nil {
		v := *m.LikeCount
		out.LikeCount = &v
	}
	if m.CommentCount != nil {
		v := *m.CommentCount
		out.CommentCount = &v
	}
	if m.PublishedAt != nil {
		t := *m.PublishedAt
		out.PublishedAt = &t
	}
	return &out
}

var (
	instagramPattern = regexp.MustCompile(`(?:www\.)?instagram\.com/(?:reel|reels|p|tv)/[\w-]+`)
	tiktokPattern    = regexp.MustCompile(`(?:www\.|vm\.|vt\.)?tiktok\.com/`)
	youtubePattern   = regexp.MustCompile(`(?:www\.|m\.)?(?:youtube\.com/(?:watch|shorts|embed)|youtu\.be/)`)
)

// DetectPlatform routes a source URL to its upstream integration.
func DetectPlatform(url string) Platform {
	switch {
	case instagramPattern.MatchString(url):
		return PlatformInstagram
	case tiktokPattern.MatchString(url):
		return PlatformTikTok
	case youtubePattern.MatchString(url):
		return PlatformYouTube
	default:
		return PlatformUnknown
	}
}
