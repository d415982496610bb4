// Package orchestrator runs concurrent work-claiming sessions in
// rounds. Each round starts N sessions, each session claims one item,
// executes it, validates the result against the tracker and releases
// the claim. The round's outcome vector drives termination: enough
// consecutive rounds of uniform "no work" ends the run.
package orchestrator

// Outcome is a session's report for one round. It is the only channel
// from session to coordinator.
type Outcome int

const (
	// OutcomeSuccess: the item was executed and the tracker confirms it
	// closed.
	OutcomeSuccess Outcome = iota
	// OutcomeFailed: the item was executed but is still open, or
	// execution failed after recovery.
	OutcomeFailed
	// OutcomeNoWork: nothing was eligible to claim.
	OutcomeNoWork
	// OutcomeBlocked: the executor refused the item; it is parked for
	// human review.
	OutcomeBlocked
	// OutcomeError: infrastructure failure outside the item itself.
	// Never evidence of an empty backlog.
	OutcomeError
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeNoWork:
		return "no_work"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}
