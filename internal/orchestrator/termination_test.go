package orchestrator

import "testing"

func TestObserveStreakAndStop(t *testing.T) {
	c := NewTerminationController(3, nil)

	empty := []Outcome{OutcomeNoWork, OutcomeNoWork}
	busy := []Outcome{OutcomeSuccess, OutcomeNoWork}

	if c.Observe(empty) {
		t.Fatal("stopped after 1 empty round")
	}
	if c.State() != StateTerminating {
		t.Errorf("state = %s, want terminating", c.State())
	}

	if c.Observe(busy) {
		t.Fatal("stopped after mixed round")
	}
	if c.State() != StateRunning || c.Streak() != 0 {
		t.Errorf("state = %s streak = %d, want running/0 after reset", c.State(), c.Streak())
	}

	c.Observe(empty)
	c.Observe(empty)
	if !c.Observe(empty) {
		t.Fatal("no stop signal at threshold")
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
}

func TestObserveErrorIsNotEmptyEvidence(t *testing.T) {
	c := NewTerminationController(2, nil)

	withError := []Outcome{OutcomeNoWork, OutcomeError}
	c.Observe([]Outcome{OutcomeNoWork})
	if c.Observe(withError) {
		t.Fatal("stopped on a round containing an error")
	}
	if c.Streak() != 0 {
		t.Errorf("streak = %d, want 0: errors reset the streak", c.Streak())
	}
}

func TestObserveSignalsExactlyOnce(t *testing.T) {
	c := NewTerminationController(1, nil)

	empty := []Outcome{OutcomeNoWork}
	if !c.Observe(empty) {
		t.Fatal("no stop signal at threshold 1")
	}
	for i := 0; i < 3; i++ {
		if c.Observe(empty) {
			t.Fatal("stop signalled more than once")
		}
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped to be terminal", c.State())
	}
}

func TestObserveEmptyVector(t *testing.T) {
	c := NewTerminationController(1, nil)
	if c.Observe(nil) {
		t.Error("empty outcome vector treated as empty backlog")
	}
	if c.State() != StateRunning {
		t.Errorf("state = %s, want running", c.State())
	}
}

func TestObserveBlockedResetsStreak(t *testing.T) {
	c := NewTerminationController(3, nil)

	c.Observe([]Outcome{OutcomeNoWork})
	c.Observe([]Outcome{OutcomeNoWork})
	c.Observe([]Outcome{OutcomeBlocked, OutcomeNoWork})
	if c.Streak() != 0 {
		t.Errorf("streak = %d, want 0", c.Streak())
	}
}
