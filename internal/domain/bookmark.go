package domain

import (
	"time"
)

// BookmarkID is a unique identifier for a bookmark.
type BookmarkID string

// String returns the string representation of the BookmarkID.
func (id BookmarkID) String() string {
	return string(id)
}

// ProcessingStatus represents the current enrichment state of a bookmark.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Bookmark represents one saved social-media video and its derived artifacts.
// Identity fields (ID, UserID, URL) are immutable after creation; everything
// else is filled in progressively by the enrichment pipeline.
type Bookmark struct {
	ID     BookmarkID
	UserID string
	URL    string

	Status ProcessingStatus

	// Metadata is populated once by the scraper client and read-only
	// afterwards. Later stages copy fields out rather than writing back.
	Metadata *VideoMetadata

	// Media artifacts. Each is independently optional; empty until a
	// durable copy has been produced.
	CloudVideoURL     string
	CloudThumbnailURL string

	// Analysis artifacts from the multimodal analyzer.
	VideoTranscript    string
	VisualAnalysis     string
	TranscriptLanguage string

	// Enrichment artifacts from the content classifier.
	AutoDescription string
	AutoTags        []string
	AutoCategories  []string
	SmartTitle      string
	RelevanceScore  float64

	// Diagnostics. ErrorMessage holds the last fatal error and is
	// cleared when a run starts.
	ErrorMessage          string
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnrichmentResult is the consolidated output of one pipeline run. It is
// written to the record store in a single update so readers never observe
// a half-enriched bookmark.
type EnrichmentResult struct {
	Metadata           *VideoMetadata
	CloudVideoURL      string
	CloudThumbnailURL  string
	VideoTranscript    string
	VisualAnalysis     string
	TranscriptLanguage string
	AutoDescription    string
	AutoTags           []string
	AutoCategories     []string
	SmartTitle         string
	RelevanceScore     float64
}

// Terminal reports whether the status is an end state for a pipeline run.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
