package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/executor"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/health"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/ledger"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/lock"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/retry"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

// BlockedLabel marks items the executor refused.
const BlockedLabel = "blocked"

// SessionResult is what one session reports back for one round.
type SessionResult struct {
	SessionID string
	Round     int
	ItemID    int // 0 when no item was claimed
	Title     string
	Outcome   Outcome
	Detail    string
	Health    *health.Report
	Err       error
}

// Session is one concurrent worker. It holds no claim between rounds:
// each Run claims, works and releases.
type Session struct {
	id      string
	locks   *lock.Manager
	exec    executor.Executor
	runner  *retry.Runner
	tracker tracker.Tracker
	monitor *health.Monitor
	logger  *logging.Logger
}

// NewSession creates a worker session.
func NewSession(id string, locks *lock.Manager, exec executor.Executor, runner *retry.Runner, trk tracker.Tracker, monitor *health.Monitor, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Session{
		id:      id,
		locks:   locks,
		exec:    exec,
		runner:  runner,
		tracker: trk,
		monitor: monitor,
		logger:  logger.WithSession(id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run performs one claim-execute-validate-release cycle and reports the
// outcome.
func (s *Session) Run(ctx context.Context, round int) SessionResult {
	res := SessionResult{SessionID: s.id, Round: round}
	logger := s.logger.WithRound(round)

	claim, err := s.locks.Claim(ctx, s.id)
	if err != nil {
		if errors.Is(err, errors.ErrNoWork) {
			logger.Info("no eligible work")
			res.Outcome = OutcomeNoWork
			return res
		}
		logger.Error("claim failed", "error", err)
		res.Outcome = OutcomeError
		res.Err = err
		return res
	}

	res.ItemID = claim.ItemID
	res.Title = claim.Title
	logger = logger.WithItem(claim.ItemID)

	result, execErr := s.execute(ctx, claim)
	if execErr != nil {
		return s.finishFailed(ctx, logger, res, execErr)
	}

	wasClosed, valErr := s.validate(ctx, claim.ItemID)
	if valErr != nil {
		logger.Error("validation failed", "error", valErr)
		res.Outcome = OutcomeError
		res.Err = valErr
		if rErr := s.release(ctx, logger, claim.ItemID, false); rErr != nil {
			res.Err = rErr
		}
		return res
	}

	if rErr := s.release(ctx, logger, claim.ItemID, wasClosed); rErr != nil {
		res.Outcome = OutcomeError
		res.Err = rErr
		return res
	}

	closed := 0
	if wasClosed {
		closed = 1
		res.Outcome = OutcomeSuccess
	} else {
		res.Outcome = OutcomeFailed
		res.Detail = fmt.Sprintf("item #%d is still open after execution", claim.ItemID)
		logger.Warn("item not closed by execution", "item", claim.ItemID)
	}

	if s.monitor != nil && result != nil {
		report := s.monitor.Check(result, closed)
		res.Health = &report
	}
	return res
}

// execute runs the claimed item through the retry runner.
func (s *Session) execute(ctx context.Context, claim *ledger.Claim) (*executor.Result, error) {
	task := executor.Task{
		ItemID:    claim.ItemID,
		Title:     claim.Title,
		Prompt:    buildPrompt(claim),
		SessionID: s.id,
	}

	var result *executor.Result
	err := s.runner.Do(ctx, claim.ItemID, func(ctx context.Context) error {
		r, execErr := s.exec.Execute(ctx, task)
		if execErr != nil {
			return execErr
		}
		result = r
		return nil
	})
	return result, err
}

// finishFailed releases the claim after a failed execution and maps the
// failure to an outcome. A refused item is labelled blocked for human
// review before release.
func (s *Session) finishFailed(ctx context.Context, logger *logging.Logger, res SessionResult, execErr error) SessionResult {
	if errors.Is(execErr, errors.ErrItemBlocked) {
		logger.Warn("item refused by executor, parking for review",
			"item", res.ItemID, "error", execErr)
		if lErr := s.tracker.AddLabel(ctx, res.ItemID, BlockedLabel); lErr != nil {
			logger.Warn("failed to label blocked item", "item", res.ItemID, "error", lErr)
		}
		if cErr := s.tracker.Comment(ctx, res.ItemID,
			"Execution was refused; this item needs human review."); cErr != nil {
			logger.Warn("failed to comment on blocked item", "item", res.ItemID, "error", cErr)
		}
		res.Outcome = OutcomeBlocked
		res.Detail = execErr.Error()
	} else {
		logger.Error("execution failed", "item", res.ItemID, "error", execErr)
		res.Outcome = OutcomeFailed
		res.Detail = execErr.Error()
		res.Err = execErr
	}

	if rErr := s.release(ctx, logger, res.ItemID, false); rErr != nil {
		res.Outcome = OutcomeError
		res.Err = rErr
	}
	return res
}

// validate asks the tracker whether the item actually closed.
func (s *Session) validate(ctx context.Context, itemID int) (bool, error) {
	issue, err := s.tracker.GetIssue(ctx, itemID)
	if err != nil {
		return false, err
	}
	return !issue.IsOpen(), nil
}

// release returns the claim. A fatal failure, meaning the ledger itself
// is corrupted, is propagated so the whole run can stop; any other
// failure is logged and the outcome already decided for the round
// stands.
func (s *Session) release(ctx context.Context, logger *logging.Logger, itemID int, wasClosed bool) error {
	if err := s.locks.Release(ctx, itemID, s.id, wasClosed); err != nil {
		logger.Error("release failed", "item", itemID, "error", err)
		if errors.IsFatal(err) {
			return err
		}
	}
	return nil
}

// buildPrompt renders the work instruction handed to the executor.
func buildPrompt(claim *ledger.Claim) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work on item #%d: %s\n\n", claim.ItemID, claim.Title)
	b.WriteString("Resolve the item completely and close it in the tracker when done.\n")
	b.WriteString("If the item cannot be resolved, explain why and leave it open.\n")
	if claim.FailureCount > 0 {
		fmt.Fprintf(&b, "\nPrevious attempts on this item failed %d time(s); review earlier comments before starting.\n",
			claim.FailureCount)
	}
	return b.String()
}
