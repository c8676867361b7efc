package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/vidstash/vidstash/internal/domain"
	"github.com/vidstash/vidstash/internal/repository"
	"github.com/vidstash/vidstash/internal/storage"
	"github.com/vidstash/vidstash/internal/thumbnail"
	"github.com/vidstash/vidstash/internal/transfer"
	"github.com/vidstash/vidstash/pkg/classify"
	"github.com/vidstash/vidstash/pkg/scrape"
	"github.com/vidstash/vidstash/pkg/videoai"
)

// RunRequest describes one enrichment run.
type RunRequest struct {
	BookmarkID domain.BookmarkID
	UserID     string
	URL        string
	Options    domain.EnrichmentOptions
}

// Pipeline orchestrates the enrichment stages for a single bookmark.
// Stages degrade independently: a failed stage is logged and skipped,
// and the run still completes with whatever artifacts were produced.
// Only two things fail a run outright: the run-start record write and
// a panic.
type Pipeline struct {
	bookmarks  repository.BookmarkRepository
	scraper    scrape.Client
	transferer *transfer.Transferer
	thumbnails *thumbnail.Acquirer
	analyzer   videoai.Client
	classifier classify.Client
	logger     *slog.Logger
}

// New creates a Pipeline. analyzer and classifier may be nil when the
// corresponding services are not configured; their stages are then
// skipped as if the flags were off.
func New(
	bookmarks repository.BookmarkRepository,
	scraper scrape.Client,
	transferer *transfer.Transferer,
	thumbnails *thumbnail.Acquirer,
	analyzer videoai.Client,
	classifier classify.Client,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		bookmarks:  bookmarks,
		scraper:    scraper,
		transferer: transferer,
		thumbnails: thumbnails,
		analyzer:   analyzer,
		classifier: classifier,
		logger:     logger,
	}
}

// Run executes one enrichment run and returns the terminal status of
// the bookmark. The record store sees exactly two writes: the status
// flip at the start and one consolidated artifact write at the end.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (status domain.ProcessingStatus, err error) {
	log := p.logger.With("bookmark_id", req.BookmarkID, "user_id", req.UserID)
	start := time.Now()

	// Record-store writes go through a context detached from run
	// cancellation: a shutdown that tears down ctx mid-run must still
	// land a terminal status, never strand the record in processing.
	store := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("pipeline panic: %v", r)
			log.Error("pipeline run panicked", "panic", r)
			if markErr := p.bookmarks.MarkFailed(store, req.BookmarkID, msg); markErr != nil {
				log.Error("failed to record panic", "error", markErr)
			}
			status = domain.StatusFailed
			err = domain.NewBookmarkError(req.BookmarkID, "pipeline run", fmt.Errorf("%s", msg))
		}
	}()

	// Run-start write. If the record store cannot even acknowledge the
	// run, nothing else may happen: no client calls, no artifacts.
	if beginErr := p.bookmarks.BeginProcessing(store, req.BookmarkID); beginErr != nil {
		log.Error("run-start write failed", "error", beginErr)
		if markErr := p.bookmarks.MarkFailed(store, req.BookmarkID, beginErr.Error()); markErr != nil {
			log.Error("failed to mark bookmark failed", "error", markErr)
		}
		return domain.StatusFailed, domain.NewBookmarkError(req.BookmarkID, "begin processing", beginErr)
	}

	result := &domain.EnrichmentResult{}

	// Stage: metadata.
	if req.Options.FetchMetadata {
		meta, scrapeErr := p.scraper.Scrape(ctx, req.URL)
		if scrapeErr != nil {
			log.Warn("metadata fetch failed", "error", scrapeErr)
		} else {
			result.Metadata = meta
			log.Info("metadata fetched", "platform", meta.Platform, "author", meta.Author)
		}
	}

	// Stage: media transfer. Needs a video URL from metadata; without
	// one there is nothing to move.
	var localVideoPath string
	if req.Options.UploadMedia && result.Metadata != nil && result.Metadata.VideoURL != "" {
		key := storage.VideoKey(req.UserID, req.BookmarkID.String())
		durableURL, tempPath, xferErr := p.transferer.Transfer(ctx, result.Metadata.VideoURL, key)
		if tempPath != "" {
			localVideoPath = tempPath
			defer os.Remove(tempPath)
		}
		if xferErr != nil {
			log.Warn("media transfer failed", "error", xferErr)
		} else {
			result.CloudVideoURL = durableURL
		}
	}

	// Stage: video analysis. Only meaningful against a durable copy.
	if req.Options.AnalyzeVideo && p.analyzer != nil && result.CloudVideoURL != "" {
		analysis, aiErr := p.analyzer.Analyze(ctx, videoai.AnalysisRequest{
			VideoURL:    result.CloudVideoURL,
			UserContext: req.Options.UserContext,
		})
		if aiErr != nil {
			log.Warn("video analysis failed", "error", aiErr)
		} else {
			result.VideoTranscript = analysis.Transcript
			result.VisualAnalysis = analysis.VisualDescription
			result.TranscriptLanguage = analysis.DetectedLanguage
		}
	}

	// Stage: thumbnail. Independent of the transfer outcome; the ladder
	// can still use the hint even when the video never made it up, and
	// the local bytes even when the hint is dead.
	if result.Metadata != nil && (result.Metadata.ThumbnailURL != "" || localVideoPath != "") {
		thumbURL, thumbErr := p.thumbnails.Acquire(ctx, result.Metadata.ThumbnailURL, localVideoPath, req.UserID, req.BookmarkID)
		if thumbErr != nil {
			log.Warn("thumbnail acquisition failed", "error", thumbErr)
		} else {
			result.CloudThumbnailURL = thumbURL
		}
	}

	// Stage: classification. Works on whatever the earlier stages
	// produced; metadata is the only hard input.
	if req.Options.ClassifyContent && p.classifier != nil && result.Metadata != nil {
		classification, clsErr := p.classifier.Classify(ctx, classify.Request{
			Metadata:          result.Metadata.Copy(),
			Transcript:        result.VideoTranscript,
			VisualDescription: result.VisualAnalysis,
			UserContext:       req.Options.UserContext,
		})
		if clsErr != nil {
			log.Warn("classification failed", "error", clsErr)
		} else {
			result.AutoDescription = classification.Description
			result.AutoTags = classification.Tags
			result.AutoCategories = classification.Categories
			result.SmartTitle = classification.SmartTitle
			result.RelevanceScore = classification.RelevanceScore
		}
	}

	// A narrower re-run must not erase artifacts earlier runs persisted;
	// fields this run did not produce carry forward from the record.
	if prior, getErr := p.bookmarks.Get(store, req.BookmarkID); getErr == nil {
		mergePrior(result, prior)
	} else if !errors.Is(getErr, domain.ErrBookmarkNotFound) {
		log.Warn("could not load prior artifacts", "error", getErr)
	}

	// Run-end write: one consolidated update. Partial results become
	// visible here and nowhere earlier.
	if completeErr := p.bookmarks.CompleteEnrichment(store, req.BookmarkID, result); completeErr != nil {
		log.Error("run-end write failed", "error", completeErr)
		if markErr := p.bookmarks.MarkFailed(store, req.BookmarkID, completeErr.Error()); markErr != nil {
			log.Error("failed to mark bookmark failed", "error", markErr)
		}
		return domain.StatusFailed, domain.NewBookmarkError(req.BookmarkID, "complete enrichment", completeErr)
	}

	log.Info("enrichment run completed",
		"duration", time.Since(start).Round(time.Millisecond),
		"has_metadata", result.Metadata != nil,
		"has_video", result.CloudVideoURL != "",
		"has_thumbnail", result.CloudThumbnailURL != "",
		"has_transcript", result.VideoTranscript != "",
		"has_classification", result.AutoDescription != "",
	)

	return domain.StatusCompleted, nil
}

// mergePrior fills result fields this run left empty from the record's
// previously persisted artifacts, so skipped stages keep their output.
func mergePrior(result *domain.EnrichmentResult, prior *domain.Bookmark) {
	if result.Metadata == nil {
		result.Metadata = prior.Metadata
	}
	if result.CloudVideoURL == "" {
		result.CloudVideoURL = prior.CloudVideoURL
	}
	if result.CloudThumbnailURL == "" {
		result.CloudThumbnailURL = prior.CloudThumbnailURL
	}
	if result.VideoTranscript == "" {
		result.VideoTranscript = prior.VideoTranscript
	}
	if result.VisualAnalysis == "" {
		result.VisualAnalysis = prior.VisualAnalysis
	}
	if result.TranscriptLanguage == "" {
		result.TranscriptLanguage = prior.TranscriptLanguage
	}
	// Classification carries as a unit; a fresh classification
	// supersedes every prior classifier field.
	if result.AutoDescription == "" && result.SmartTitle == "" && len(result.AutoTags) == 0 {
		result.AutoDescription = prior.AutoDescription
		result.AutoTags = prior.AutoTags
		result.AutoCategories = prior.AutoCategories
		result.SmartTitle = prior.SmartTitle
		result.RelevanceScore = prior.RelevanceScore
	}
}
