package domain

import "errors"

// Domain errors.
var (
	// ErrBookmarkNotFound is returned when a bookmark cannot be found.
	ErrBookmarkNotFound = errors.New("bookmark not found")

	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobs is returned when there are no jobs to process.
	ErrNoJobs = errors.New("no jobs available")

	// ErrInvalidURL is returned when the source URL is empty or malformed.
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrUnsupportedPlatform is returned when the URL matches none of the
	// supported platforms.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrAlreadyQueued is returned when a bookmark already has a pending run.
	ErrAlreadyQueued = errors.New("bookmark already queued for processing")

	// ErrEmptyPayload is returned when an upstream responds with an
	// empty or unusable payload. Retrying will not fix it.
	ErrEmptyPayload = errors.New("upstream returned empty payload")

	// ErrURLExpired is returned when a media URL has expired or is
	// protected against hotlinking.
	ErrURLExpired = errors.New("media URL has expired")

	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFoundUpstream is returned for a 404 from a media host.
	ErrNotFoundUpstream = errors.New("media not found upstream")

	// ErrNoThumbnail is returned when every rung of the thumbnail
	// ladder has been exhausted.
	ErrNoThumbnail = errors.New("no thumbnail could be produced")
)

// BookmarkError wraps an error with bookmark context.
type BookmarkError struct {
	BookmarkID BookmarkID
	Op         string
	Err        error
}

func (e *BookmarkError) Error() string {
	if e.BookmarkID != "" {
		return e.Op + " [" + e.BookmarkID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *BookmarkError) Unwrap() error {
	return e.Err
}

// NewBookmarkError creates a new BookmarkError.
func NewBookmarkError(id BookmarkID, op string, err error) *BookmarkError {
	return &BookmarkError{
		BookmarkID: id,
		Op:         op,
		Err:        err,
	}
}
