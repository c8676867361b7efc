package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/domain"
	"github.com/vidstash/vidstash/internal/repository"
)

// BookmarkHandler handles bookmark-related HTTP requests.
type BookmarkHandler struct {
	bookmarks  repository.BookmarkRepository
	jobs       repository.JobRepository
	maxRetries int
	logger     *slog.Logger
}

// NewBookmarkHandler creates a new bookmark handler.
func NewBookmarkHandler(
	bookmarks repository.BookmarkRepository,
	jobs repository.JobRepository,
	maxRetries int,
	logger *slog.Logger,
) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarks:  bookmarks,
		jobs:       jobs,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// CreateRequest is the JSON request body for bookmark submission.
// Stage flags default to true when omitted.
type CreateRequest struct {
	URL             string `json:"url"`
	UserID          string `json:"user_id"`
	FetchMetadata   *bool  `json:"extract_metadata,omitempty"`
	UploadMedia     *bool  `json:"upload_to_cloud,omitempty"`
	AnalyzeVideo    *bool  `json:"analyze_video,omitempty"`
	ClassifyContent *bool  `json:"process_ai,omitempty"`
	UserContext     string `json:"user_context,omitempty"`
}

func (r *CreateRequest) options() domain.EnrichmentOptions {
	orTrue := func(b *bool) bool { return b == nil || *b }
	return domain.EnrichmentOptions{
		FetchMetadata:   orTrue(r.FetchMetadata),
		UploadMedia:     orTrue(r.UploadMedia),
		AnalyzeVideo:    orTrue(r.AnalyzeVideo),
		ClassifyContent: orTrue(r.ClassifyContent),
		UserContext:     r.UserContext,
	}
}

// CreateResponse is the JSON response after submission.
type CreateResponse struct {
	BookmarkID string `json:"bookmark_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Platform   string `json:"platform"`
}

// BookmarkResponse represents a bookmark in list/get responses.
type BookmarkResponse struct {
	BookmarkID         string                `json:"bookmark_id"`
	UserID             string                `json:"user_id"`
	URL                string                `json:"url"`
	Status             string                `json:"status"`
	Metadata           *domain.VideoMetadata `json:"metadata,omitempty"`
	CloudVideoURL      string                `json:"cloud_video_url,omitempty"`
	CloudThumbnailURL  string                `json:"cloud_thumbnail_url,omitempty"`
	VideoTranscript    string                `json:"video_transcript,omitempty"`
	VisualAnalysis     string                `json:"visual_analysis,omitempty"`
	TranscriptLanguage string                `json:"transcript_language,omitempty"`
	AutoDescription    string                `json:"auto_description,omitempty"`
	AutoTags           []string              `json:"auto_tags,omitempty"`
	AutoCategories     []string              `json:"auto_categories,omitempty"`
	SmartTitle         string                `json:"smart_title,omitempty"`
	RelevanceScore     float64               `json:"relevance_score,omitempty"`
	Error              string                `json:"error,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	CompletedAt        *time.Time            `json:"completed_at,omitempty"`
}

// StatusResponse is returned for status polls.
type StatusResponse struct {
	BookmarkID string `json:"bookmark_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// ListResponse contains a paginated bookmark list.
type ListResponse struct {
	Bookmarks []BookmarkResponse `json:"bookmarks"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

func toBookmarkResponse(b *domain.Bookmark) BookmarkResponse {
	return BookmarkResponse{
		BookmarkID:         b.ID.String(),
		UserID:             b.UserID,
		URL:                b.URL,
		Status:             string(b.Status),
		Metadata:           b.Metadata,
		CloudVideoURL:      b.CloudVideoURL,
		CloudThumbnailURL:  b.CloudThumbnailURL,
		VideoTranscript:    b.VideoTranscript,
		VisualAnalysis:     b.VisualAnalysis,
		TranscriptLanguage: b.TranscriptLanguage,
		AutoDescription:    b.AutoDescription,
		AutoTags:           b.AutoTags,
		AutoCategories:     b.AutoCategories,
		SmartTitle:         b.SmartTitle,
		RelevanceScore:     b.RelevanceScore,
		Error:              b.ErrorMessage,
		CreatedAt:          b.CreatedAt,
		CompletedAt:        b.ProcessingCompletedAt,
	}
}

// Create handles POST /api/v1/bookmarks
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	platform := domain.DetectPlatform(req.URL)
	if platform == domain.PlatformUnknown {
		h.writeError(w, http.StatusBadRequest, "unsupported platform URL")
		return
	}

	now := time.Now()
	bookmark := &domain.Bookmark{
		ID:        domain.BookmarkID(uuid.New().String()),
		UserID:    req.UserID,
		URL:       req.URL,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.bookmarks.Create(r.Context(), bookmark); err != nil {
		h.logger.Error("create bookmark failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create bookmark")
		return
	}

	job := domain.NewJob(domain.JobID(uuid.New().String()), bookmark.ID, req.options(), h.maxRetries)
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("enqueue job failed", "error", err, "bookmark_id", bookmark.ID)
		h.writeError(w, http.StatusInternalServerError, "failed to enqueue enrichment")
		return
	}

	if err := h.bookmarks.UpdateStatus(r.Context(), bookmark.ID, domain.StatusQueued); err != nil {
		h.logger.Error("queue status write failed", "error", err, "bookmark_id", bookmark.ID)
	}

	h.writeJSON(w, http.StatusAccepted, CreateResponse{
		BookmarkID: bookmark.ID.String(),
		JobID:      job.ID.String(),
		Status:     string(domain.StatusQueued),
		Platform:   string(platform),
	})
}

// List handles GET /api/v1/bookmarks
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := 50
	offset := 0
	var status *domain.ProcessingStatus

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.ProcessingStatus(s)
		status = &st
	}

	bookmarks, err := h.bookmarks.List(r.Context(), userID, status, limit, offset)
	if err != nil {
		h.logger.Error("list failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}

	total, err := h.bookmarks.Count(r.Context(), userID, status)
	if err != nil {
		h.logger.Error("count failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}

	response := ListResponse{
		Bookmarks: make([]BookmarkResponse, 0, len(bookmarks)),
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}
	for _, b := range bookmarks {
		response.Bookmarks = append(response.Bookmarks, toBookmarkResponse(b))
	}

	h.writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/bookmarks/{bookmarkID}
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookmark, ok := h.fetch(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toBookmarkResponse(bookmark))
}

// GetStatus handles GET /api/v1/bookmarks/{bookmarkID}/status
func (h *BookmarkHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	bookmark, ok := h.fetch(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, StatusResponse{
		BookmarkID: bookmark.ID.String(),
		Status:     string(bookmark.Status),
		Error:      bookmark.ErrorMessage,
	})
}

// Reprocess handles POST /api/v1/bookmarks/{bookmarkID}/reprocess
func (h *BookmarkHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	bookmark, ok := h.fetch(w, r)
	if !ok {
		return
	}

	pending, err := h.jobs.HasPending(r.Context(), bookmark.ID)
	if err != nil {
		h.logger.Error("pending check failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to check queue")
		return
	}
	if pending {
		h.writeError(w, http.StatusConflict, "bookmark already queued for processing")
		return
	}

	var req CreateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job := domain.NewJob(domain.JobID(uuid.New().String()), bookmark.ID, req.options(), h.maxRetries)
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("enqueue job failed", "error", err, "bookmark_id", bookmark.ID)
		h.writeError(w, http.StatusInternalServerError, "failed to enqueue enrichment")
		return
	}

	if err := h.bookmarks.UpdateStatus(r.Context(), bookmark.ID, domain.StatusQueued); err != nil {
		h.logger.Error("queue status write failed", "error", err, "bookmark_id", bookmark.ID)
	}

	h.writeJSON(w, http.StatusAccepted, CreateResponse{
		BookmarkID: bookmark.ID.String(),
		JobID:      job.ID.String(),
		Status:     string(domain.StatusQueued),
	})
}

// Delete handles DELETE /api/v1/bookmarks/{bookmarkID}
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	bookmarkID := chi.URLParam(r, "bookmarkID")
	if bookmarkID == "" {
		h.writeError(w, http.StatusBadRequest, "missing bookmark ID")
		return
	}

	if err := h.bookmarks.Delete(r.Context(), domain.BookmarkID(bookmarkID)); err != nil {
		if errors.Is(err, domain.ErrBookmarkNotFound) {
			h.writeError(w, http.StatusNotFound, "bookmark not found")
			return
		}
		h.logger.Error("delete failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete bookmark")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BookmarkHandler) fetch(w http.ResponseWriter, r *http.Request) (*domain.Bookmark, bool) {
	bookmarkID := chi.URLParam(r, "bookmarkID")
	if bookmarkID == "" {
		h.writeError(w, http.StatusBadRequest, "missing bookmark ID")
		return nil, false
	}

	bookmark, err := h.bookmarks.Get(r.Context(), domain.BookmarkID(bookmarkID))
	if err != nil {
		if errors.Is(err, domain.ErrBookmarkNotFound) {
			h.writeError(w, http.StatusNotFound, "bookmark not found")
			return nil, false
		}
		h.logger.Error("get failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get bookmark")
		return nil, false
	}
	return bookmark, true
}

func (h *BookmarkHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *BookmarkHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
