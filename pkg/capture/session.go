package capture

import (
	"context"
	"errors"
	"fmt"
)

// Run-level failures. Check with errors.Is.
var (
	// ErrSessionLaunch indicates the browser session could not start.
	ErrSessionLaunch = errors.New("browser session launch failed")
	// ErrNavigation indicates the results feed could not be reached in time.
	ErrNavigation = errors.New("search page navigation failed")
	// ErrBlocked indicates a challenge or consent wall replaced the feed.
	ErrBlocked = fmt.Errorf("%w: blocked by challenge page", ErrNavigation)
)

// ErrStaleDetail is returned by DetailWebsite when the detail view on screen
// does not belong to the entry that was opened.
var ErrStaleDetail = errors.New("detail view does not match entry")

// Session is one browser session driven against the results page. Indexes
// refer to the entry list as it is at call time: implementations re-query
// the entries on every call and never hold element handles across calls.
// A Session is not safe for concurrent use.
type Session interface {
	// Navigate loads url.
	Navigate(ctx context.Context, url string) error

	// WaitFeed blocks until the results feed is present.
	WaitFeed(ctx context.Context) error

	// ScrollFeed scrolls the results feed to its bottom once.
	ScrollFeed(ctx context.Context) error

	// EntryCount returns the number of result entries currently rendered.
	EntryCount(ctx context.Context) (int, error)

	// EntryName returns the display name of entry index.
	EntryName(ctx context.Context, index int) (string, error)

	// EntryRating returns the rating text of entry index, "" when absent.
	EntryRating(ctx context.Context, index int) (string, error)

	// OpenEntry opens the detail view of entry index.
	OpenEntry(ctx context.Context, index int) error

	// DetailWebsite returns the outbound website of the detail view titled
	// name, "" when the listing links none. It fails with ErrStaleDetail
	// when no such view is showing.
	DetailWebsite(ctx context.Context, name string) (string, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Launcher starts sessions.
type Launcher interface {
	Launch(ctx context.Context, cfg Config, fp Fingerprint) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, cfg Config, fp Fingerprint) (Session, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, cfg Config, fp Fingerprint) (Session, error) {
	return f(ctx, cfg, fp)
}
