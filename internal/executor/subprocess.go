package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
)

// agentResult is the JSON document a well-behaved agent command writes
// to stdout on success.
type agentResult struct {
	Response        string `json:"response"`
	ToolInvocations int    `json:"tool_invocations"`
	FilesChanged    int    `json:"files_changed"`
}

// Subprocess runs a configurable agent command once per task. The task
// prompt goes to the command's stdin; the item number, title and session
// ID are exported in the environment. Stdout is expected to be the
// agentResult JSON document; plain-text stdout is accepted as a bare
// response with zero metrics.
type Subprocess struct {
	command string
	args    []string
	workDir string
	timeout time.Duration
	logger  *logging.Logger
}

// SubprocessOption configures a Subprocess executor.
type SubprocessOption func(*Subprocess)

// WithArgs sets extra arguments passed to the agent command.
func WithArgs(args ...string) SubprocessOption {
	return func(s *Subprocess) { s.args = args }
}

// WithWorkDir sets the directory the agent command runs in.
func WithWorkDir(dir string) SubprocessOption {
	return func(s *Subprocess) { s.workDir = dir }
}

// WithTimeout bounds each execution. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) SubprocessOption {
	return func(s *Subprocess) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) SubprocessOption {
	return func(s *Subprocess) { s.logger = logger }
}

// NewSubprocess creates a subprocess executor for the given agent
// command.
func NewSubprocess(command string, opts ...SubprocessOption) *Subprocess {
	s := &Subprocess{
		command: command,
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs the agent command for one task. On failure the returned
// error carries the command's combined stderr text so the caller can
// classify it.
func (s *Subprocess) Execute(ctx context.Context, task Task) (*Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Dir = s.workDir
	cmd.Stdin = strings.NewReader(task.Prompt)
	cmd.Env = append(os.Environ(),
		"WORK_ITEM_ID="+strconv.Itoa(task.ItemID),
		"WORK_ITEM_TITLE="+task.Title,
		"WORK_SESSION_ID="+task.SessionID,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("starting agent command", "command", s.command, "item", task.ItemID)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewExecutorError(
				fmt.Sprintf("agent command timed out after %s", elapsed.Round(time.Second)),
				errors.ErrTimeout).
				WithSessionID(task.SessionID).
				WithOutput(detail)
		}
		return nil, errors.NewExecutorError("agent command failed", err).
			WithSessionID(task.SessionID).
			WithOutput(detail)
	}

	result := parseAgentOutput(stdout.Bytes())
	result.Duration = elapsed
	s.logger.Debug("agent command finished",
		"item", task.ItemID,
		"duration", elapsed.Round(time.Millisecond),
		"tools", result.ToolInvocations,
		"files", result.FilesChanged)
	return result, nil
}

// parseAgentOutput decodes the agent's stdout. Output that is not the
// expected JSON document is treated as a plain-text response.
func parseAgentOutput(out []byte) *Result {
	trimmed := bytes.TrimSpace(out)

	var doc agentResult
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			return &Result{
				Response:        doc.Response,
				ToolInvocations: doc.ToolInvocations,
				FilesChanged:    doc.FilesChanged,
			}
		}
	}
	return &Result{Response: string(trimmed)}
}
