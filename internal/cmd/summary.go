package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/orchestrator"
)

// renderSummary formats the end-of-run report.
func renderSummary(summary *orchestrator.Summary) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Run summary"))
	sb.WriteString("\n\n")

	counts := summary.Counts()
	sb.WriteString(fmt.Sprintf("%s  %s\n",
		headerStyle.Render("Stopped:"), stopReasonText(summary.Reason)))
	sb.WriteString(fmt.Sprintf("%s  %d rounds in %s\n\n",
		headerStyle.Render("Rounds: "),
		len(summary.Rounds),
		summary.Elapsed.Round(time.Second)))

	sb.WriteString(headerStyle.Render("Outcomes"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %s %d\n",
		successStyle.Render("closed:  "), counts[orchestrator.OutcomeSuccess]))
	sb.WriteString(fmt.Sprintf("  %s %d\n",
		failedStyle.Render("failed:  "), counts[orchestrator.OutcomeFailed]))
	sb.WriteString(fmt.Sprintf("  %s %d\n",
		blockedStyle.Render("blocked: "), counts[orchestrator.OutcomeBlocked]))
	sb.WriteString(fmt.Sprintf("  %s %d\n",
		mutedStyle.Render("no work: "), counts[orchestrator.OutcomeNoWork]))
	if counts[orchestrator.OutcomeError] > 0 {
		sb.WriteString(fmt.Sprintf("  %s %d\n",
			warnStyle.Render("errors:  "), counts[orchestrator.OutcomeError]))
	}

	if items := renderItemHistory(summary); items != "" {
		sb.WriteString("\n")
		sb.WriteString(headerStyle.Render("Items"))
		sb.WriteString("\n")
		sb.WriteString(items)
	}

	if warnings := renderHealthWarnings(summary); warnings != "" {
		sb.WriteString("\n")
		sb.WriteString(headerStyle.Render("Health warnings"))
		sb.WriteString("\n")
		sb.WriteString(warnings)
	}

	return sb.String()
}

func stopReasonText(reason orchestrator.StopReason) string {
	switch reason {
	case orchestrator.StopBacklogEmpty:
		return successStyle.Render("backlog empty")
	case orchestrator.StopBudgetExhausted:
		return mutedStyle.Render("round budget exhausted")
	case orchestrator.StopCanceled:
		return warnStyle.Render("canceled")
	case orchestrator.StopLedgerFailure:
		return failedStyle.Render("ledger failure")
	default:
		return string(reason)
	}
}

// renderItemHistory lists per-item retry bookkeeping.
func renderItemHistory(summary *orchestrator.Summary) string {
	if len(summary.RetryState) == 0 {
		return ""
	}

	ids := make([]int, 0, len(summary.RetryState))
	for id := range summary.RetryState {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var sb strings.Builder
	for _, id := range ids {
		state := summary.RetryState[id]
		line := fmt.Sprintf("  #%-5d attempts=%d", id, state.Attempts)
		if state.Succeeded {
			line += "  " + successStyle.Render("ok")
		} else if state.LastError != "" {
			line += "  " + failedStyle.Render(truncate(state.LastError, 60))
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderHealthWarnings(summary *orchestrator.Summary) string {
	var sb strings.Builder
	for _, round := range summary.Rounds {
		for _, res := range round.Results {
			if res.Health == nil {
				continue
			}
			for _, warning := range res.Health.Warnings {
				sb.WriteString(fmt.Sprintf("  round %d, item #%d: %s\n",
					round.Round, res.ItemID, warnStyle.Render(warning)))
			}
			if !res.Health.Productive {
				sb.WriteString(fmt.Sprintf("  round %d, item #%d: %s\n",
					round.Round, res.ItemID,
					warnStyle.Render(fmt.Sprintf("unproductive (score %.3f)", res.Health.ProductivityScore))))
			}
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
