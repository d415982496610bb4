// Package tracker provides the boundary to the external issue tracker.
// The orchestrator consumes a small interface: list open work items in
// priority order, read one item, comment, and close. A GitHub-backed
// implementation shells out to the gh CLI; a YAML fixture implementation
// supports offline runs and tests.
package tracker

import (
	"context"
	"fmt"
	"time"
)

// Issue is a work item as reported by the tracker. Immutable once
// observed; open/closed state is owned by the tracker.
type Issue struct {
	Number int      `json:"number" yaml:"number"`
	Title  string   `json:"title" yaml:"title"`
	Labels []string `json:"labels" yaml:"labels"`
	State  string   `json:"state" yaml:"state"`
}

// IsOpen reports whether the tracker considers the issue open.
func (i *Issue) IsOpen() bool {
	return i.State == "open" || i.State == "OPEN"
}

// HasLabel reports whether the issue carries the given label exactly.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Tracker is the issue-tracker interface consumed by the lock manager
// and the session validation step.
type Tracker interface {
	// ListOpenIssues returns open work items sorted by priority,
	// highest first.
	ListOpenIssues(ctx context.Context) ([]Issue, error)

	// GetIssue reads a single item's current state.
	GetIssue(ctx context.Context, number int) (*Issue, error)

	// Comment posts a comment on the item. Used for claim acknowledgements.
	Comment(ctx context.Context, number int, body string) error

	// AddLabel attaches a label to the item. Used to flag blocked items.
	AddLabel(ctx context.Context, number int, label string) error
}

// StatusError is a tracker failure carrying the HTTP-like status code
// that classification keys on.
type StatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration // server-supplied wait for rate limits, if any
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker status %d: %s", e.Code, e.Message)
}
