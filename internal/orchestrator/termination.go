package orchestrator

import (
	"sync"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
)

// DefaultEmptyRoundThreshold is how many consecutive all-no-work rounds
// are required before the run is declared complete.
const DefaultEmptyRoundThreshold = 3

// State is the termination controller's lifecycle state. Transitions
// are monotonic: once Stopped, the controller never resumes.
type State int

const (
	// StateRunning: the last round produced evidence of remaining work.
	StateRunning State = iota
	// StateTerminating: one or more consecutive empty rounds observed,
	// but not yet enough to stop.
	StateTerminating
	// StateStopped: the empty-round threshold was reached.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TerminationController decides when the run is over. It reduces each
// round's outcome vector: a round where every session reported no work
// increments the empty streak, any other round resets it. The stop
// signal fires exactly once, when the streak first reaches the
// threshold.
//
// An Error outcome never counts as empty-backlog evidence: a round
// containing errors resets the streak even if every other session
// found nothing.
type TerminationController struct {
	mu        sync.Mutex
	state     State
	streak    int
	threshold int
	logger    *logging.Logger
}

// NewTerminationController creates a controller with the given
// empty-round threshold. A threshold below 1 uses the default.
func NewTerminationController(threshold int, logger *logging.Logger) *TerminationController {
	if threshold < 1 {
		threshold = DefaultEmptyRoundThreshold
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &TerminationController{threshold: threshold, logger: logger}
}

// Observe reduces one round's outcome vector. Returns true exactly once,
// on the observation that moves the controller to Stopped.
func (t *TerminationController) Observe(outcomes []Outcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateStopped {
		return false
	}

	if allNoWork(outcomes) {
		t.streak++
	} else {
		t.streak = 0
	}

	switch {
	case t.streak >= t.threshold:
		t.state = StateStopped
		t.logger.Info("backlog presumed empty",
			"empty_rounds", t.streak, "threshold", t.threshold)
		return true
	case t.streak > 0:
		t.state = StateTerminating
	default:
		t.state = StateRunning
	}
	return false
}

// State returns the controller's current state.
func (t *TerminationController) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Streak returns the current consecutive empty-round count.
func (t *TerminationController) Streak() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streak
}

// allNoWork reports whether every outcome in the vector is NoWork. An
// empty vector is not evidence of anything.
func allNoWork(outcomes []Outcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o != OutcomeNoWork {
			return false
		}
	}
	return true
}
