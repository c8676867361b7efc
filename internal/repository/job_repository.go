package repository

import (
	"context"
	"sync"

	"github.com/vidstash/vidstash/internal/domain"
)

// InMemoryJobRepository implements JobRepository using in-memory storage.
// Jobs are transient scheduling state; the durable record is the bookmark.
type InMemoryJobRepository struct {
	mu         sync.RWMutex
	jobs       map[domain.JobID]*domain.Job
	byBookmark map[domain.BookmarkID]domain.JobID
	queue      []domain.JobID // FIFO queue of pending job IDs
}

// NewInMemoryJobRepository creates a new in-memory job repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:       make(map[domain.JobID]*domain.Job),
		byBookmark: make(map[domain.BookmarkID]domain.JobID),
		queue:      make([]domain.JobID, 0),
	}
}

// Enqueue adds a job to the queue.
func (r *InMemoryJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
	r.byBookmark[job.BookmarkID] = job.ID
	r.queue = append(r.queue, job.ID)

	return nil
}

// Dequeue retrieves the next pending job (FIFO).
func (r *InMemoryJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, jobID := range r.queue {
		job, ok := r.jobs[jobID]
		if !ok {
			continue
		}

		if job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusRetrying {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return job, nil
		}
	}

	return nil, domain.ErrNoJobs
}

// Update modifies job state. A retrying job goes back on the queue.
func (r *InMemoryJobRepository) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}

	r.jobs[job.ID] = job

	if job.Status == domain.JobStatusRetrying {
		r.queue = append(r.queue, job.ID)
	}

	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return job, nil
}

// GetByBookmarkID finds the most recent job for a bookmark.
func (r *InMemoryJobRepository) GetByBookmarkID(ctx context.Context, bookmarkID domain.BookmarkID) (*domain.Job, error) {
	r.mu.RLock()
	jobID, ok := r.byBookmark[bookmarkID]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return r.Get(ctx, jobID)
}

// HasPending reports whether a bookmark has a queued or retrying job.
// The enqueue path uses this to keep at most one run in flight per id.
func (r *InMemoryJobRepository) HasPending(ctx context.Context, bookmarkID domain.BookmarkID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobID, ok := r.byBookmark[bookmarkID]
	if !ok {
		return false, nil
	}
	job, ok := r.jobs[jobID]
	if !ok {
		return false, nil
	}
	switch job.Status {
	case domain.JobStatusQueued, domain.JobStatusRetrying, domain.JobStatusProcessing:
		return true, nil
	}
	return false, nil
}

// Stats returns queue statistics.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (*QueueStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &QueueStats{}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobStatusQueued:
			stats.Queued++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusRetrying:
			stats.Retrying++
		}
	}

	return stats, nil
}

// Clear removes all jobs (useful for testing).
func (r *InMemoryJobRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = make(map[domain.JobID]*domain.Job)
	r.byBookmark = make(map[domain.BookmarkID]domain.JobID)
	r.queue = make([]domain.JobID, 0)
}
