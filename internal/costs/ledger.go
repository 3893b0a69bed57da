package costs

import (
	"context"
	"time"
)

// Ledger is the append-only record of priced operations. Two backends exist:
// a per-project JSON-lines stream and a SQLite table. Append failures must
// not abort the LLM call being recorded; callers log the error and continue.
type Ledger interface {
	// Append records one entry. The entry's ID and timestamp are filled in
	// when missing. Invalid entries are rejected with ErrInvalidInput.
	Append(ctx context.Context, e Entry) error

	// Summary folds all entries for the project. Unknown projects yield a
	// zero summary, not an error.
	Summary(ctx context.Context, projectID string) (Summary, error)

	// Timeline returns the project's entries ascending by timestamp with
	// cumulative cost.
	Timeline(ctx context.Context, projectID string) ([]TimelineEntry, error)

	// Entries returns entries for the given projects (nil or empty means
	// all), filtered to the inclusive [from, to] range. Zero time bounds
	// mean unfiltered on that side.
	Entries(ctx context.Context, projectIDs []string, from, to time.Time) ([]Entry, error)

	// ProjectIDs returns the distinct project IDs present in the ledger,
	// including IDs whose project has since been permanently deleted.
	ProjectIDs(ctx context.Context) ([]string, error)

	Close() error
}

// inRange reports whether ts falls within the inclusive [from, to] window;
// zero bounds are open.
func inRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}
