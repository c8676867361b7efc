package repository

import (
	"context"

	"github.com/vidstash/vidstash/internal/domain"
)

// BookmarkRepository handles bookmark persistence. The pipeline touches it
// exactly twice per run: BeginProcessing at run start and either
// CompleteEnrichment or MarkFailed at run end.
type BookmarkRepository interface {
	// Create persists a new bookmark record.
	Create(ctx context.Context, b *domain.Bookmark) error

	// Get retrieves a bookmark by ID.
	Get(ctx context.Context, id domain.BookmarkID) (*domain.Bookmark, error)

	// List returns bookmarks for a user, optionally filtered by status.
	List(ctx context.Context, userID string, status *domain.ProcessingStatus, limit, offset int) ([]*domain.Bookmark, error)

	// Count returns the number of bookmarks for a user.
	Count(ctx context.Context, userID string, status *domain.ProcessingStatus) (int, error)

	// UpdateStatus changes bookmark status outside of a pipeline run
	// (pending -> queued on enqueue).
	UpdateStatus(ctx context.Context, id domain.BookmarkID, status domain.ProcessingStatus) error

	// BeginProcessing flips the record to processing, clears the error
	// message and stamps processing_started_at. This is the run-start write.
	BeginProcessing(ctx context.Context, id domain.BookmarkID) error

	// CompleteEnrichment writes every artifact of a run plus the completed
	// status in a single update. This is the only write that exposes
	// enrichment results.
	CompleteEnrichment(ctx context.Context, id domain.BookmarkID, result *domain.EnrichmentResult) error

	// MarkFailed records a fatal run failure.
	MarkFailed(ctx context.Context, id domain.BookmarkID, errMsg string) error

	// Delete removes a bookmark.
	Delete(ctx context.Context, id domain.BookmarkID) error
}

// JobRepository manages the job queue.
type JobRepository interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue retrieves the next pending job (FIFO).
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Update modifies job state.
	Update(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// GetByBookmarkID finds the job associated with a bookmark.
	GetByBookmarkID(ctx context.Context, bookmarkID domain.BookmarkID) (*domain.Job, error)

	// HasPending reports whether a bookmark has a queued or retrying job.
	HasPending(ctx context.Context, bookmarkID domain.BookmarkID) (bool, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)
}

// QueueStats contains job queue statistics.
type QueueStats struct {
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Retrying   int
}
