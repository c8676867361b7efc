package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vidstash/vidstash/internal/domain"
	"github.com/vidstash/vidstash/internal/pipeline"
	"github.com/vidstash/vidstash/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockBookmarkRepo serves a fixed set of bookmarks.
type mockBookmarkRepo struct {
	mu        sync.Mutex
	bookmarks map[domain.BookmarkID]*domain.Bookmark
}

func newMockBookmarkRepo(bookmarks ...*domain.Bookmark) *mockBookmarkRepo {
	m := &mockBookmarkRepo{bookmarks: make(map[domain.BookmarkID]*domain.Bookmark)}
	for _, b := range bookmarks {
		m.bookmarks[b.ID] = b
	}
	return m
}

func (m *mockBookmarkRepo) Create(ctx context.Context, b *domain.Bookmark) error { return nil }
func (m *mockBookmarkRepo) Get(ctx context.Context, id domain.BookmarkID) (*domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookmarks[id]; ok {
		return b, nil
	}
	return nil, domain.ErrBookmarkNotFound
}
func (m *mockBookmarkRepo) List(ctx context.Context, userID string, status *domain.ProcessingStatus, limit, offset int) ([]*domain.Bookmark, error) {
	return nil, nil
}
func (m *mockBookmarkRepo) Count(ctx context.Context, userID string, status *domain.ProcessingStatus) (int, error) {
	return 0, nil
}
func (m *mockBookmarkRepo) UpdateStatus(ctx context.Context, id domain.BookmarkID, status domain.ProcessingStatus) error {
	return nil
}
func (m *mockBookmarkRepo) BeginProcessing(ctx context.Context, id domain.BookmarkID) error {
	return nil
}
func (m *mockBookmarkRepo) CompleteEnrichment(ctx context.Context, id domain.BookmarkID, result *domain.EnrichmentResult) error {
	return nil
}
func (m *mockBookmarkRepo) MarkFailed(ctx context.Context, id domain.BookmarkID, errMsg string) error {
	return nil
}
func (m *mockBookmarkRepo) Delete(ctx context.Context, id domain.BookmarkID) error { return nil }

// mockRunner records run requests and returns a scripted outcome.
type mockRunner struct {
	mu       sync.Mutex
	requests []pipeline.RunRequest
	err      error
	done     chan struct{}
}

func (r *mockRunner) Run(ctx context.Context, req pipeline.RunRequest) (domain.ProcessingStatus, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.done != nil {
		select {
		case r.done <- struct{}{}:
		default:
		}
	}
	if r.err != nil {
		return domain.StatusFailed, r.err
	}
	return domain.StatusCompleted, nil
}

func (r *mockRunner) requestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func testBookmark() *domain.Bookmark {
	return &domain.Bookmark{
		ID:     domain.BookmarkID("bm1"),
		UserID: "u1",
		URL:    "https://www.tiktok.com/@x/video/1",
		Status: domain.StatusQueued,
	}
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the pool to pick up the job")
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	jobs := repository.NewInMemoryJobRepository()
	bookmarks := newMockBookmarkRepo(testBookmark())
	runner := &mockRunner{done: make(chan struct{}, 1)}

	opts := domain.EnrichmentOptions{FetchMetadata: true, UploadMedia: true, UserContext: "ctx"}
	job := domain.NewJob("job1", "bm1", opts, 3)
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{Workers: 1, PollInterval: 10 * time.Millisecond}, jobs, bookmarks, runner, testLogger())
	pool.Start()
	defer pool.Stop(time.Second)

	waitFor(t, runner.done)

	// Give the completion bookkeeping a moment to land.
	deadline := time.Now().Add(time.Second)
	for {
		got, err := jobs.Get(context.Background(), "job1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == domain.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %q, want completed", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	runner.mu.Lock()
	req := runner.requests[0]
	runner.mu.Unlock()
	if req.BookmarkID != "bm1" || req.UserID != "u1" {
		t.Errorf("run request = %+v", req)
	}
	if req.URL != "https://www.tiktok.com/@x/video/1" {
		t.Errorf("run URL = %q", req.URL)
	}
	if !req.Options.UploadMedia || req.Options.UserContext != "ctx" {
		t.Errorf("job options did not reach the runner: %+v", req.Options)
	}
}

func TestPool_RetriesFailedJob(t *testing.T) {
	jobs := repository.NewInMemoryJobRepository()
	bookmarks := newMockBookmarkRepo(testBookmark())
	runner := &mockRunner{err: errors.New("fatal run"), done: make(chan struct{}, 8)}

	job := domain.NewJob("job1", "bm1", domain.EnrichmentOptions{}, 2)
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{Workers: 1, PollInterval: 5 * time.Millisecond}, jobs, bookmarks, runner, testLogger())
	pool.Start()
	defer pool.Stop(time.Second)

	// 1 initial attempt + 1 retry, then permanently failed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := jobs.Get(context.Background(), "job1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == domain.JobStatusFailed {
			if got.Attempts != 2 {
				t.Errorf("attempts = %d, want 2", got.Attempts)
			}
			if got.LastError != "fatal run" {
				t.Errorf("last error = %q", got.LastError)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never failed permanently, status = %q", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if runner.requestCount() != 2 {
		t.Errorf("runner calls = %d, want 2", runner.requestCount())
	}
}

func TestPool_MissingBookmarkFailsJob(t *testing.T) {
	jobs := repository.NewInMemoryJobRepository()
	bookmarks := newMockBookmarkRepo() // empty
	runner := &mockRunner{}

	job := domain.NewJob("job1", "bm-gone", domain.EnrichmentOptions{}, 1)
	if err := jobs.Enqueue(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	pool := NewPool(Config{Workers: 1, PollInterval: 5 * time.Millisecond}, jobs, bookmarks, runner, testLogger())
	pool.Start()
	defer pool.Stop(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := jobs.Get(context.Background(), "job1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == domain.JobStatusFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %q, want failed", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if runner.requestCount() != 0 {
		t.Errorf("runner calls = %d, want 0 for a missing bookmark", runner.requestCount())
	}
}

func TestPool_StopIsGraceful(t *testing.T) {
	jobs := repository.NewInMemoryJobRepository()
	bookmarks := newMockBookmarkRepo()
	pool := NewPool(Config{Workers: 3, PollInterval: 10 * time.Millisecond}, jobs, bookmarks, &mockRunner{}, testLogger())

	pool.Start()
	if err := pool.Stop(time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPool_DefaultConfig(t *testing.T) {
	pool := NewPool(Config{}, repository.NewInMemoryJobRepository(), newMockBookmarkRepo(), &mockRunner{}, testLogger())
	if pool.workers != 2 {
		t.Errorf("workers = %d, want default 2", pool.workers)
	}
	if pool.pollInterval != 5*time.Second {
		t.Errorf("poll interval = %v, want default 5s", pool.pollInterval)
	}
}
