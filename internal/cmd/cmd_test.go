package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/orchestrator"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/retry"
)

func TestCommandRegistration(t *testing.T) {
	want := []string{"run", "claims", "release", "config"}
	for _, name := range want {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	summary := &orchestrator.Summary{
		Reason:  orchestrator.StopBacklogEmpty,
		Elapsed: 90 * time.Second,
		Rounds: []orchestrator.RoundReport{
			{
				Round: 1,
				Results: []orchestrator.SessionResult{
					{SessionID: "a", ItemID: 1, Outcome: orchestrator.OutcomeSuccess},
					{SessionID: "b", Outcome: orchestrator.OutcomeNoWork},
				},
			},
		},
		RetryState: map[int]*retry.ItemState{
			1: {ItemID: 1, Attempts: 1, Succeeded: true},
		},
	}

	out := renderSummary(summary)
	for _, want := range []string{"Run summary", "backlog empty", "1 rounds", "#1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := truncate(long, 20); len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("line one\nline two", 50); strings.Contains(got, "\n") {
		t.Errorf("truncate() kept newline: %q", got)
	}
}
