package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/config"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/health"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/orchestrator"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/retry"
)

var (
	runSessions  int
	runMaxRounds int
	runWatch     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator against the configured backlog",
	Long: `Run rounds of concurrent sessions until the backlog stays empty.

Each round starts the configured number of sessions. A session claims
the highest-priority open item, hands it to the agent command, verifies
the item closed in the tracker, and releases the claim. The run stops
after enough consecutive rounds in which every session found no work,
or when the round budget is spent.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runSessions, "sessions", "n", 0, "concurrent sessions per round (overrides config)")
	runCmd.Flags().IntVar(&runMaxRounds, "max-rounds", -1, "round budget, 0 = unbounded (overrides config)")
	runCmd.Flags().BoolVar(&runWatch, "watch-config", false, "reload the config file on change (takes effect next run)")
}

func runRun(cmd *cobra.Command, args []string) error {
	comp, err := build()
	if err != nil {
		return err
	}
	defer comp.close()

	cfg := comp.cfg
	if runSessions > 0 {
		cfg.Coordinator.Sessions = runSessions
	}
	if runMaxRounds >= 0 {
		cfg.Coordinator.MaxRounds = runMaxRounds
	}

	if runWatch {
		watcher, wErr := config.NewWatcher(viper.ConfigFileUsed(), func(next *config.Config) {
			comp.logger.Info("configuration change recorded, applies to the next run")
		}, comp.logger)
		if wErr != nil {
			comp.logger.Warn("config watching unavailable", "error", wErr)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	runner := retry.NewRunner(
		retry.WithRotator(buildRotator(cfg, comp.logger)),
		retry.WithLogger(comp.logger))

	monitor := health.NewMonitor(
		health.WithMinScore(cfg.Health.MinScore),
		health.WithToolFloor(cfg.Health.ToolFloor),
		health.WithLogger(comp.logger))

	coord := orchestrator.NewCoordinator(
		comp.locks,
		buildExecutor(cfg, comp.logger),
		runner,
		comp.tracker,
		orchestrator.WithSessions(cfg.Coordinator.Sessions),
		orchestrator.WithMaxRounds(cfg.Coordinator.MaxRounds),
		orchestrator.WithEmptyRoundThreshold(cfg.Coordinator.EmptyRoundThreshold),
		orchestrator.WithMonitor(monitor),
		orchestrator.WithCoordinatorLogger(comp.logger))

	coord.SetCallbacks(&orchestrator.Callbacks{
		OnRoundStart: func(round int) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n",
				headerStyle.Render(fmt.Sprintf("round %d", round)))
		},
		OnRoundComplete: func(report orchestrator.RoundReport) {
			for _, res := range report.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", renderResult(res))
			}
		},
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := coord.Run(ctx)
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))

	if runErr != nil && ctx.Err() != nil {
		// Interrupted runs still printed their summary; exit quietly.
		return nil
	}
	return runErr
}

// renderResult formats one session result line for round output.
func renderResult(res orchestrator.SessionResult) string {
	switch res.Outcome {
	case orchestrator.OutcomeSuccess:
		return successStyle.Render(fmt.Sprintf("closed #%d %s", res.ItemID, res.Title))
	case orchestrator.OutcomeFailed:
		return failedStyle.Render(fmt.Sprintf("failed #%d %s", res.ItemID, res.Title))
	case orchestrator.OutcomeBlocked:
		return blockedStyle.Render(fmt.Sprintf("blocked #%d %s", res.ItemID, res.Title))
	case orchestrator.OutcomeError:
		return warnStyle.Render(fmt.Sprintf("error: %v", res.Err))
	default:
		return mutedStyle.Render("no work")
	}
}
