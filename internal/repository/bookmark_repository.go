package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidstash/vidstash/internal/domain"
)

const bookmarkSchema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	metadata TEXT,
	cloud_video_url TEXT NOT NULL DEFAULT '',
	cloud_thumbnail_url TEXT NOT NULL DEFAULT '',
	video_transcript TEXT NOT NULL DEFAULT '',
	visual_analysis TEXT NOT NULL DEFAULT '',
	transcript_language TEXT NOT NULL DEFAULT '',
	auto_description TEXT NOT NULL DEFAULT '',
	auto_tags TEXT,
	auto_categories TEXT,
	smart_title TEXT NOT NULL DEFAULT '',
	relevance_score REAL NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	processing_started_at TIMESTAMP,
	processing_completed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookmarks_user ON bookmarks(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bookmarks_status ON bookmarks(status);
`

// SQLiteBookmarkRepository implements BookmarkRepository on SQLite.
type SQLiteBookmarkRepository struct {
	db *sql.DB
}

// NewSQLiteBookmarkRepository opens (or creates) the bookmark database at
// path and ensures the schema exists.
func NewSQLiteBookmarkRepository(path string) (*SQLiteBookmarkRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time; serialize access through a
	// single connection to avoid SQLITE_BUSY under the worker pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(bookmarkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteBookmarkRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *SQLiteBookmarkRepository) Close() error {
	return r.db.Close()
}

// Create persists a new bookmark record.
func (r *SQLiteBookmarkRepository) Create(ctx context.Context, b *domain.Bookmark) error {
	metadata, err := marshalNullable(b.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tags, err := marshalNullable(b.AutoTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	categories, err := marshalNullable(b.AutoCategories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bookmarks (
			id, user_id, url, status, metadata,
			cloud_video_url, cloud_thumbnail_url,
			video_transcript, visual_analysis, transcript_language,
			auto_description, auto_tags, auto_categories, smart_title, relevance_score,
			error_message, processing_started_at, processing_completed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.UserID, b.URL, string(b.Status), metadata,
		b.CloudVideoURL, b.CloudThumbnailURL,
		b.VideoTranscript, b.VisualAnalysis, b.TranscriptLanguage,
		b.AutoDescription, tags, categories, b.SmartTitle, b.RelevanceScore,
		b.ErrorMessage, b.ProcessingStartedAt, b.ProcessingCompletedAt,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

// Get retrieves a bookmark by ID.
func (r *SQLiteBookmarkRepository) Get(ctx context.Context, id domain.BookmarkID) (*domain.Bookmark, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, url, status, metadata,
			cloud_video_url, cloud_thumbnail_url,
			video_transcript, visual_analysis, transcript_language,
			auto_description, auto_tags, auto_categories, smart_title, relevance_score,
			error_message, processing_started_at, processing_completed_at,
			created_at, updated_at
		FROM bookmarks WHERE id = ?`, id.String())

	return scanBookmark(row)
}

// List returns bookmarks for a user, newest first.
func (r *SQLiteBookmarkRepository) List(ctx context.Context, userID string, status *domain.ProcessingStatus, limit, offset int) ([]*domain.Bookmark, error) {
	query := `
		SELECT id, user_id, url, status, metadata,
			cloud_video_url, cloud_thumbnail_url,
			video_transcript, visual_analysis, transcript_language,
			auto_description, auto_tags, auto_categories, smart_title, relevance_score,
			error_message, processing_started_at, processing_completed_at,
			created_at, updated_at
		FROM bookmarks WHERE user_id = ?`
	args := []any{userID}

	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var result []*domain.Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// Count returns the number of bookmarks for a user.
func (r *SQLiteBookmarkRepository) Count(ctx context.Context, userID string, status *domain.ProcessingStatus) (int, error) {
	query := "SELECT COUNT(*) FROM bookmarks WHERE user_id = ?"
	args := []any{userID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return count, nil
}

// UpdateStatus changes bookmark status outside of a pipeline run.
func (r *SQLiteBookmarkRepository) UpdateStatus(ctx context.Context, id domain.BookmarkID, status domain.ProcessingStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE bookmarks SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res)
}

// BeginProcessing is the run-start write: status flip, error cleared,
// start timestamp recorded.
func (r *SQLiteBookmarkRepository) BeginProcessing(ctx context.Context, id domain.BookmarkID) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET status = ?, error_message = '', processing_started_at = ?,
			processing_completed_at = NULL, updated_at = ?
		WHERE id = ?`,
		string(domain.StatusProcessing), now, now, id.String())
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	return requireRow(res)
}

// CompleteEnrichment is the single consolidated run-end write.
func (r *SQLiteBookmarkRepository) CompleteEnrichment(ctx context.Context, id domain.BookmarkID, result *domain.EnrichmentResult) error {
	metadata, err := marshalNullable(result.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tags, err := marshalNullable(result.AutoTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	categories, err := marshalNullable(result.AutoCategories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET status = ?, metadata = ?,
			cloud_video_url = ?, cloud_thumbnail_url = ?,
			video_transcript = ?, visual_analysis = ?, transcript_language = ?,
			auto_description = ?, auto_tags = ?, auto_categories = ?,
			smart_title = ?, relevance_score = ?,
			processing_completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(domain.StatusCompleted), metadata,
		result.CloudVideoURL, result.CloudThumbnailURL,
		result.VideoTranscript, result.VisualAnalysis, result.TranscriptLanguage,
		result.AutoDescription, tags, categories,
		result.SmartTitle, result.RelevanceScore,
		now, now, id.String())
	if err != nil {
		return fmt.Errorf("complete enrichment: %w", err)
	}
	return requireRow(res)
}

// MarkFailed records a fatal run failure.
func (r *SQLiteBookmarkRepository) MarkFailed(ctx context.Context, id domain.BookmarkID, errMsg string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookmarks
		SET status = ?, error_message = ?, processing_completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(domain.StatusFailed), errMsg, now, now, id.String())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireRow(res)
}

// Delete removes a bookmark.
func (r *SQLiteBookmarkRepository) Delete(ctx context.Context, id domain.BookmarkID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (*domain.Bookmark, error) {
	var (
		b           domain.Bookmark
		id, status  string
		metadata    sql.NullString
		tags        sql.NullString
		categories  sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&id, &b.UserID, &b.URL, &status, &metadata,
		&b.CloudVideoURL, &b.CloudThumbnailURL,
		&b.VideoTranscript, &b.VisualAnalysis, &b.TranscriptLanguage,
		&b.AutoDescription, &tags, &categories, &b.SmartTitle, &b.RelevanceScore,
		&b.ErrorMessage, &startedAt, &completedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBookmarkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bookmark: %w", err)
	}

	b.ID = domain.BookmarkID(id)
	b.Status = domain.ProcessingStatus(status)

	if metadata.Valid && metadata.String != "" {
		var m domain.VideoMetadata
		if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		b.Metadata = &m
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &b.AutoTags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &b.AutoCategories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		b.ProcessingStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.ProcessingCompletedAt = &t
	}

	return &b, nil
}

// marshalNullable returns NULL for nil values so absent artifacts stay
// absent in the row instead of becoming "null" strings.
func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case *domain.VideoMetadata:
		if val == nil {
			return nil, nil
		}
	case []string:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrBookmarkNotFound
	}
	return nil
}
