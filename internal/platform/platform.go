// Package platform defines the boundary between the engagement engine and the
// social platform client that backs it.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/STRATINT/engager/internal/models"
)

// Searcher starts a search for a query and returns its first page.
type Searcher interface {
	// Search returns the first page of results for query, or nil when the
	// platform has nothing to return.
	Search(ctx context.Context, query string) (Page, error)
}

// Page is one page of search results.
type Page interface {
	// Candidates returns the posts on this page in platform order.
	Candidates() []models.Candidate

	// Next fetches the following page. It returns (nil, nil) once results are
	// exhausted.
	Next(ctx context.Context) (Page, error)
}

// Actor performs engagement actions for the authenticated account.
type Actor interface {
	Like(ctx context.Context, postID string) error
	Follow(ctx context.Context, userID string) error
}

// ErrActionUnavailable is returned by an Actor that has no way to perform the
// requested action.
var ErrActionUnavailable = errors.New("action unavailable")

// RateLimitError reports a throttling response from the platform.
type RateLimitError struct {
	Err error
	// RetryAfter is the platform's hint, zero when none was given.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %v (retry after %v)", e.Err, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is, or wraps, a RateLimitError.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var rl *RateLimitError
	return errors.As(err, &rl)
}

// NewRateLimitError wraps err as a rate-limit signal.
func NewRateLimitError(err error, retryAfter time.Duration) error {
	return &RateLimitError{Err: err, RetryAfter: retryAfter}
}
