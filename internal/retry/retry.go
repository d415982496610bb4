package retry

import (
	"context"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/classify"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/executor"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

// maxAttempts is the hard bound on attempts per operation: the original
// try plus at most one recovery attempt.
const maxAttempts = 2

// defaultWait applies to wait-then-retry verdicts that carry no
// suggested duration.
const defaultWait = 30 * time.Second

// Op is one externally-failing operation, typically a task execution or
// a tracker call.
type Op func(ctx context.Context) error

// Runner executes operations with bounded, classification-driven
// recovery.
type Runner struct {
	rotator executor.CredentialRotator
	resync  func(ctx context.Context) error
	manager *Manager
	logger  *logging.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRotator sets the credential rotator invoked for expired-token
// verdicts.
func WithRotator(r executor.CredentialRotator) RunnerOption {
	return func(rn *Runner) { rn.rotator = r }
}

// WithResync sets the hook invoked for stale-local-state verdicts
// before the retry attempt.
func WithResync(fn func(ctx context.Context) error) RunnerOption {
	return func(rn *Runner) { rn.resync = fn }
}

// WithManager sets the retry state manager receiving attempt records.
func WithManager(m *Manager) RunnerOption {
	return func(rn *Runner) { rn.manager = m }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) RunnerOption {
	return func(rn *Runner) { rn.logger = l }
}

// NewRunner creates a retry runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		rotator: executor.NopRotator{},
		manager: NewManager(),
		logger:  logging.NopLogger(),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manager returns the runner's retry state manager.
func (r *Runner) Manager() *Manager {
	return r.manager
}

// Do runs op for the given item, applying at most one recovery attempt.
// The attempt loop is the only retry mechanism; recovery actions never
// re-enter Do.
//
// Fatal verdicts propagate unchanged except for a content-filter
// refusal, which returns an error matching errors.ErrItemBlocked so the
// session can park the item for human review.
func (r *Runner) Do(ctx context.Context, itemID int, op Op) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			r.manager.RecordSuccess(itemID)
			return nil
		}
		lastErr = err

		verdict := Verdict(err)
		r.manager.RecordFailure(itemID, verdict.Action, err.Error())
		r.logger.Warn("operation failed",
			"item", itemID,
			"attempt", attempt,
			"action", string(verdict.Action),
			"error", err)

		if verdict.Action == classify.ActionContentFilter {
			return errors.Wrap(errors.ErrItemBlocked, verdict.Message)
		}
		if !verdict.Recoverable {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		if recErr := r.recover(ctx, verdict); recErr != nil {
			return recErr
		}
	}

	return errors.NewExecutorError("recovery attempt failed",
		errors.Join(errors.ErrRetriesExhausted, lastErr)).
		WithRetryable(false)
}

// recover performs the pre-retry action for a recoverable verdict.
func (r *Runner) recover(ctx context.Context, verdict *classify.ClassifiedError) error {
	switch verdict.Action {
	case classify.ActionRotateToken:
		return r.rotator.Rotate(ctx)
	case classify.ActionPullRetry:
		if r.resync == nil {
			return nil
		}
		return r.resync(ctx)
	case classify.ActionWaitRetry:
		wait := verdict.RetryAfter
		if wait <= 0 {
			wait = defaultWait
		}
		r.logger.Info("waiting before retry", "wait", wait)
		return r.sleep(ctx, wait)
	default:
		return nil
	}
}

// Verdict classifies an arbitrary failure from the tracker or executor
// boundary. An error that is already a verdict passes through.
func Verdict(err error) *classify.ClassifiedError {
	var ce *classify.ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	var se *tracker.StatusError
	if errors.As(err, &se) {
		return classify.Tracker(se.Code, se.Message, se.RetryAfter)
	}

	var te *errors.TrackerError
	if errors.As(err, &te) {
		return classify.Tracker(te.StatusCode, te.Error(), 0)
	}

	var ee *errors.ExecutorError
	if errors.As(err, &ee) {
		return classify.Executor(ee.Error())
	}

	return classify.Executor(err.Error())
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
