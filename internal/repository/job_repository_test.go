package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/vidstash/vidstash/internal/domain"
)

func TestInMemoryJobRepository_EnqueueDequeue(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	job1 := domain.NewJob("job-1", "bm-1", domain.EnrichmentOptions{FetchMetadata: true}, 3)
	job2 := domain.NewJob("job-2", "bm-2", domain.EnrichmentOptions{}, 3)

	if err := repo.Enqueue(ctx, job1); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := repo.Enqueue(ctx, job2); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// FIFO order.
	got, err := repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.ID != "job-1" {
		t.Errorf("dequeued %s, want job-1", got.ID)
	}
	if !got.Options.FetchMetadata {
		t.Error("options should travel with the job")
	}

	got, err = repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.ID != "job-2" {
		t.Errorf("dequeued %s, want job-2", got.ID)
	}

	if _, err := repo.Dequeue(ctx); !errors.Is(err, domain.ErrNoJobs) {
		t.Errorf("empty queue should return ErrNoJobs, got %v", err)
	}
}

func TestInMemoryJobRepository_RetryingRequeued(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	job := domain.NewJob("job-1", "bm-1", domain.EnrichmentOptions{}, 3)
	if err := repo.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dequeued, err := repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	dequeued.MarkFailed("transient")
	if dequeued.Status != domain.JobStatusRetrying {
		t.Fatalf("status = %q, want retrying", dequeued.Status)
	}
	if err := repo.Update(ctx, dequeued); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// The retrying job must come back around.
	again, err := repo.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue after retry failed: %v", err)
	}
	if again.ID != "job-1" {
		t.Errorf("requeued job = %s, want job-1", again.ID)
	}
}

func TestInMemoryJobRepository_Update_NotFound(t *testing.T) {
	repo := NewInMemoryJobRepository()
	job := domain.NewJob("ghost", "bm-1", domain.EnrichmentOptions{}, 1)

	if err := repo.Update(context.Background(), job); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestInMemoryJobRepository_HasPending(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	pending, err := repo.HasPending(ctx, "bm-1")
	if err != nil {
		t.Fatalf("HasPending failed: %v", err)
	}
	if pending {
		t.Error("unknown bookmark should not be pending")
	}

	job := domain.NewJob("job-1", "bm-1", domain.EnrichmentOptions{}, 3)
	repo.Enqueue(ctx, job)

	pending, _ = repo.HasPending(ctx, "bm-1")
	if !pending {
		t.Error("queued job should be pending")
	}

	dequeued, _ := repo.Dequeue(ctx)
	dequeued.MarkProcessing()
	repo.Update(ctx, dequeued)

	pending, _ = repo.HasPending(ctx, "bm-1")
	if !pending {
		t.Error("processing job should still count as pending")
	}

	dequeued.MarkCompleted()
	repo.Update(ctx, dequeued)

	pending, _ = repo.HasPending(ctx, "bm-1")
	if pending {
		t.Error("completed job should not be pending")
	}
}

func TestInMemoryJobRepository_Stats(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	j1 := domain.NewJob("job-1", "bm-1", domain.EnrichmentOptions{}, 3)
	j2 := domain.NewJob("job-2", "bm-2", domain.EnrichmentOptions{}, 3)
	repo.Enqueue(ctx, j1)
	repo.Enqueue(ctx, j2)

	d, _ := repo.Dequeue(ctx)
	d.MarkCompleted()
	repo.Update(ctx, d)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Queued != 1 {
		t.Errorf("queued = %d, want 1", stats.Queued)
	}
	if stats.Completed != 1 {
		t.Errorf("completed = %d, want 1", stats.Completed)
	}
}

func TestInMemoryJobRepository_GetByBookmarkID(t *testing.T) {
	repo := NewInMemoryJobRepository()
	ctx := context.Background()

	job := domain.NewJob("job-1", "bm-1", domain.EnrichmentOptions{}, 3)
	repo.Enqueue(ctx, job)

	got, err := repo.GetByBookmarkID(ctx, "bm-1")
	if err != nil {
		t.Fatalf("GetByBookmarkID failed: %v", err)
	}
	if got.ID != "job-1" {
		t.Errorf("job = %s, want job-1", got.ID)
	}

	if _, err := repo.GetByBookmarkID(ctx, "bm-x"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}
