// Package board mirrors work-item status to a project board. The board
// is a downstream convenience sink: every notification is best-effort
// and failures never propagate to the caller.
package board

import (
	"context"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

// Status is a board column.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Board receives status transitions for work items.
type Board interface {
	// Notify records that the item moved to the given status. Returns
	// an error only for logging by the Sink wrapper; callers should go
	// through a Sink.
	Notify(ctx context.Context, itemID int, status Status) error
}

// Sink wraps a Board so that notification failures are logged at warn
// and swallowed. This is the type the orchestrator holds.
type Sink struct {
	board  Board
	logger *logging.Logger
}

// NewSink creates a best-effort wrapper around board. A nil board
// yields a sink that discards every notification.
func NewSink(board Board, logger *logging.Logger) *Sink {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Sink{board: board, logger: logger}
}

// Notify forwards to the underlying board, logging failures instead of
// returning them.
func (s *Sink) Notify(ctx context.Context, itemID int, status Status) {
	if s.board == nil {
		return
	}
	if err := s.board.Notify(ctx, itemID, status); err != nil {
		s.logger.Warn("board notification failed",
			"item", itemID, "status", string(status), "error", err)
	}
}

// statusLabel maps a board status to the tracker label that represents
// it.
func statusLabel(status Status) string {
	return "status:" + string(status)
}

// LabelBoard mirrors status onto the issue tracker as status:* labels.
type LabelBoard struct {
	tracker tracker.Tracker
}

// NewLabelBoard creates a board backed by tracker labels.
func NewLabelBoard(t tracker.Tracker) *LabelBoard {
	return &LabelBoard{tracker: t}
}

// Notify replaces the item's status label.
func (b *LabelBoard) Notify(ctx context.Context, itemID int, status Status) error {
	return b.tracker.AddLabel(ctx, itemID, statusLabel(status))
}
