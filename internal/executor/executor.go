// Package executor provides the task-execution backend boundary. The
// orchestrator hands a claimed work item to an Executor and gets back a
// response plus the activity metrics the health monitor scores.
package executor

import (
	"context"
	"time"
)

// Task is a unit of work derived from a claimed item.
type Task struct {
	ItemID    int
	Title     string
	Prompt    string
	SessionID string
}

// Result captures what an execution produced. ToolInvocations and
// FilesChanged feed the productivity score.
type Result struct {
	Response        string        `json:"response"`
	ToolInvocations int           `json:"tool_invocations"`
	FilesChanged    int           `json:"files_changed"`
	Duration        time.Duration `json:"duration"`
}

// Executor runs one task to completion. A non-nil error carries the raw
// failure text for downstream classification.
type Executor interface {
	Execute(ctx context.Context, task Task) (*Result, error)
}

// CredentialRotator swaps the executor's credential for a fresh one.
// Consumed by the retry layer when a failure classifies as an expired
// token.
type CredentialRotator interface {
	Rotate(ctx context.Context) error
}
