package tracker

import (
	"context"
	"encoding/json"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
)

// httpStatusRegex extracts the status code from gh CLI error output,
// e.g. "HTTP 404: Not Found (https://api.github.com/...)".
var httpStatusRegex = regexp.MustCompile(`HTTP (\d{3})`)

// retryAfterRegex extracts a Retry-After value in seconds from gh CLI
// rate-limit error output.
var retryAfterRegex = regexp.MustCompile(`(?i)retry.after[:\s]+(\d+)`)

// GitHub is a Tracker backed by the gh CLI.
type GitHub struct {
	repo    string // "owner/repo"
	timeout time.Duration
	logger  *logging.Logger

	// runner executes a gh invocation and returns combined output.
	// Overridable in tests.
	runner func(ctx context.Context, args ...string) ([]byte, error)
}

// NewGitHub creates a GitHub tracker for the given repository.
// Each gh invocation is bounded by timeout.
func NewGitHub(repo string, timeout time.Duration, logger *logging.Logger) *GitHub {
	if logger == nil {
		logger = logging.NopLogger()
	}
	g := &GitHub{
		repo:    repo,
		timeout: timeout,
		logger:  logger,
	}
	g.runner = g.runGH
	return g
}

// ghIssue matches gh's --json output shape.
type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func (gi *ghIssue) toIssue() Issue {
	labels := make([]string, 0, len(gi.Labels))
	for _, l := range gi.Labels {
		labels = append(labels, l.Name)
	}
	return Issue{
		Number: gi.Number,
		Title:  gi.Title,
		State:  strings.ToLower(gi.State),
		Labels: labels,
	}
}

// ListOpenIssues lists open issues and sorts them by priority label.
func (g *GitHub) ListOpenIssues(ctx context.Context) ([]Issue, error) {
	out, err := g.runner(ctx, "issue", "list",
		"--repo", g.repo,
		"--state", "open",
		"--limit", "200",
		"--json", "number,title,state,labels")
	if err != nil {
		return nil, parseGHError(err, out)
	}

	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, errors.NewTrackerError("unexpected gh output", err)
	}

	issues := make([]Issue, 0, len(raw))
	for i := range raw {
		issues = append(issues, raw[i].toIssue())
	}
	SortByPriority(issues)
	return issues, nil
}

// GetIssue reads a single issue's current state.
func (g *GitHub) GetIssue(ctx context.Context, number int) (*Issue, error) {
	out, err := g.runner(ctx, "issue", "view", strconv.Itoa(number),
		"--repo", g.repo,
		"--json", "number,title,state,labels")
	if err != nil {
		return nil, parseGHError(err, out)
	}

	var raw ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, errors.NewTrackerError("unexpected gh output", err)
	}
	issue := raw.toIssue()
	return &issue, nil
}

// Comment posts a comment on the issue.
func (g *GitHub) Comment(ctx context.Context, number int, body string) error {
	out, err := g.runner(ctx, "issue", "comment", strconv.Itoa(number),
		"--repo", g.repo,
		"--body", body)
	if err != nil {
		return parseGHError(err, out)
	}
	g.logger.Debug("posted issue comment", "item", number)
	return nil
}

// AddLabel attaches a label to the issue.
func (g *GitHub) AddLabel(ctx context.Context, number int, label string) error {
	out, err := g.runner(ctx, "issue", "edit", strconv.Itoa(number),
		"--repo", g.repo,
		"--add-label", label)
	if err != nil {
		return parseGHError(err, out)
	}
	return nil
}

// runGH executes gh with a bounded timeout.
func (g *GitHub) runGH(ctx context.Context, args ...string) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "gh", args...)
	return cmd.CombinedOutput()
}

// parseGHError converts a gh CLI failure into a StatusError so that the
// classifier can key on the HTTP status. Output without a recognizable
// status yields code 0, which classifies as abort.
func parseGHError(err error, output []byte) error {
	msg := strings.TrimSpace(string(output))
	if msg == "" {
		msg = err.Error()
	}

	se := &StatusError{Code: 0, Message: msg}
	if m := httpStatusRegex.FindStringSubmatch(msg); m != nil {
		se.Code, _ = strconv.Atoi(m[1])
	}
	if m := retryAfterRegex.FindStringSubmatch(msg); m != nil {
		if secs, convErr := strconv.Atoi(m[1]); convErr == nil {
			se.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return se
}
