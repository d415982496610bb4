package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/executor"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/health"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/lock"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/retry"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

// DefaultSessions is the number of concurrent sessions per round.
const DefaultSessions = 3

// StopReason explains why a run ended.
type StopReason string

const (
	// StopBacklogEmpty: the termination controller saw enough
	// consecutive empty rounds.
	StopBacklogEmpty StopReason = "backlog_empty"
	// StopBudgetExhausted: the round budget ran out. This exit is
	// silent: it carries no claim about the backlog.
	StopBudgetExhausted StopReason = "budget_exhausted"
	// StopCanceled: the run context was canceled.
	StopCanceled StopReason = "canceled"
	// StopLedgerFailure: the claim ledger could not be read or
	// written. Continuing would risk duplicate or lost claims, so the
	// whole run stops.
	StopLedgerFailure StopReason = "ledger_failure"
)

// RoundReport is the outcome vector of one round.
type RoundReport struct {
	Round   int
	Results []SessionResult
	Elapsed time.Duration
}

// Outcomes returns just the outcome vector.
func (r *RoundReport) Outcomes() []Outcome {
	out := make([]Outcome, len(r.Results))
	for i := range r.Results {
		out[i] = r.Results[i].Outcome
	}
	return out
}

// Summary is the full run report.
type Summary struct {
	Rounds     []RoundReport
	Reason     StopReason
	Elapsed    time.Duration
	RetryState map[int]*retry.ItemState
}

// Counts tallies outcomes across all rounds.
func (s *Summary) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, round := range s.Rounds {
		for _, res := range round.Results {
			counts[res.Outcome]++
		}
	}
	return counts
}

// Callbacks holds optional hooks for run progress.
type Callbacks struct {
	// OnRoundStart is called before a round's sessions launch.
	OnRoundStart func(round int)

	// OnRoundComplete is called with the round's outcome vector.
	OnRoundComplete func(report RoundReport)

	// OnStop is called once when the run ends.
	OnStop func(reason StopReason)
}

// Coordinator runs rounds of concurrent sessions until the termination
// controller stops the run or the round budget is spent. The claim
// ledger is the only shared mutable resource between sessions; the
// coordinator itself only joins round barriers.
type Coordinator struct {
	sessions    []*Session
	runner      *retry.Runner
	termination *TerminationController
	maxRounds   int
	logger      *logging.Logger

	mu        sync.RWMutex
	callbacks *Callbacks
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*coordinatorConfig)

type coordinatorConfig struct {
	sessions       int
	maxRounds      int
	emptyThreshold int
	monitor        *health.Monitor
	logger         *logging.Logger
}

// WithSessions sets the number of concurrent sessions per round.
func WithSessions(n int) CoordinatorOption {
	return func(c *coordinatorConfig) { c.sessions = n }
}

// WithMaxRounds bounds the number of rounds. Zero means unbounded.
func WithMaxRounds(n int) CoordinatorOption {
	return func(c *coordinatorConfig) { c.maxRounds = n }
}

// WithEmptyRoundThreshold sets how many consecutive empty rounds end
// the run.
func WithEmptyRoundThreshold(n int) CoordinatorOption {
	return func(c *coordinatorConfig) { c.emptyThreshold = n }
}

// WithMonitor sets the health monitor shared by all sessions.
func WithMonitor(m *health.Monitor) CoordinatorOption {
	return func(c *coordinatorConfig) { c.monitor = m }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(l *logging.Logger) CoordinatorOption {
	return func(c *coordinatorConfig) { c.logger = l }
}

// NewCoordinator builds a coordinator and its worker sessions. Session
// identifiers are fresh UUIDs, stable for the lifetime of the run.
func NewCoordinator(locks *lock.Manager, exec executor.Executor, runner *retry.Runner, trk tracker.Tracker, opts ...CoordinatorOption) *Coordinator {
	cfg := coordinatorConfig{
		sessions: DefaultSessions,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sessions < 1 {
		cfg.sessions = 1
	}

	sessions := make([]*Session, cfg.sessions)
	for i := range sessions {
		sessions[i] = NewSession(uuid.NewString(), locks, exec, runner, trk, cfg.monitor, cfg.logger)
	}

	return &Coordinator{
		sessions:    sessions,
		runner:      runner,
		termination: NewTerminationController(cfg.emptyThreshold, cfg.logger),
		maxRounds:   cfg.maxRounds,
		logger:      cfg.logger,
	}
}

// SetCallbacks sets progress hooks. Safe to call before Run.
func (c *Coordinator) SetCallbacks(cb *Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = cb
}

// Termination exposes the termination controller, mainly for status
// reporting.
func (c *Coordinator) Termination() *TerminationController {
	return c.termination
}

// Run executes rounds until termination. The context cancels between
// rounds and propagates into in-flight sessions; there is no mid-round
// preemption beyond that.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	defer func() {
		summary.Elapsed = time.Since(start)
		summary.RetryState = c.runner.Manager().Snapshot()
		c.notifyStop(summary.Reason)
	}()

	for round := 1; c.maxRounds == 0 || round <= c.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			summary.Reason = StopCanceled
			return summary, err
		}

		c.notifyRoundStart(round)
		report := c.runRound(ctx, round)
		summary.Rounds = append(summary.Rounds, report)
		c.notifyRoundComplete(report)

		if err := fatalFailure(report.Results); err != nil {
			c.logger.Error("aborting run", "round", round, "error", err)
			summary.Reason = StopLedgerFailure
			return summary, errors.NewCoordinatorError("ledger failure aborted the run", err).
				WithRound(round)
		}

		if c.termination.Observe(report.Outcomes()) {
			summary.Reason = StopBacklogEmpty
			return summary, nil
		}
	}

	summary.Reason = StopBudgetExhausted
	return summary, nil
}

// fatalFailure scans a round's results for a failure that must end the
// run, such as ledger corruption reported by a claim or release.
func fatalFailure(results []SessionResult) error {
	for _, res := range results {
		if res.Err != nil && errors.IsFatal(res.Err) {
			return res.Err
		}
	}
	return nil
}

// runRound launches every session and joins the round barrier.
func (c *Coordinator) runRound(ctx context.Context, round int) RoundReport {
	start := time.Now()
	c.logger.Info("round starting", "round", round, "sessions", len(c.sessions))

	results := make([]SessionResult, len(c.sessions))
	var wg sync.WaitGroup
	for i, session := range c.sessions {
		wg.Add(1)
		go func(i int, session *Session) {
			defer wg.Done()
			results[i] = session.Run(ctx, round)
		}(i, session)
	}
	wg.Wait()

	report := RoundReport{Round: round, Results: results, Elapsed: time.Since(start)}
	c.logger.Info("round complete",
		"round", round,
		"elapsed", report.Elapsed.Round(time.Millisecond),
		"outcomes", outcomeStrings(report.Outcomes()))
	return report
}

func (c *Coordinator) notifyRoundStart(round int) {
	c.mu.RLock()
	cb := c.callbacks
	c.mu.RUnlock()
	if cb != nil && cb.OnRoundStart != nil {
		cb.OnRoundStart(round)
	}
}

func (c *Coordinator) notifyRoundComplete(report RoundReport) {
	c.mu.RLock()
	cb := c.callbacks
	c.mu.RUnlock()
	if cb != nil && cb.OnRoundComplete != nil {
		cb.OnRoundComplete(report)
	}
}

func (c *Coordinator) notifyStop(reason StopReason) {
	c.mu.RLock()
	cb := c.callbacks
	c.mu.RUnlock()
	if cb != nil && cb.OnStop != nil {
		cb.OnStop(reason)
	}
}

func outcomeStrings(outcomes []Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.String()
	}
	return out
}
