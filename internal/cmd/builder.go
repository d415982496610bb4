package cmd

import (
	"fmt"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/board"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/config"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/executor"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/ledger"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/lock"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

// components holds everything a command needs, built from the loaded
// configuration.
type components struct {
	cfg     *config.Config
	logger  *logging.Logger
	store   ledger.Store
	tracker tracker.Tracker
	locks   *lock.Manager
}

// build assembles the component graph. The caller owns close().
func build() (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		dir := cfg.Logging.Dir
		if dir == "" {
			dir = cfg.Ledger.Dir
		}
		logger, err = logging.NewLogger(dir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open run log: %w", err)
		}
	}

	store, err := buildStore(cfg)
	if err != nil {
		logger.Close()
		return nil, err
	}

	trk, err := buildTracker(cfg, logger)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	filter, err := tracker.NewFilter(cfg.Tracker.MetaLabels, cfg.Tracker.MetaTitlePrefixes)
	if err != nil {
		store.Close()
		logger.Close()
		return nil, fmt.Errorf("invalid meta label pattern: %w", err)
	}

	sink := board.NewSink(board.NewLabelBoard(trk), logger)
	locks := lock.NewManager(store, trk, filter,
		lock.WithTTL(cfg.Lock.TTL()),
		lock.WithFailureThreshold(cfg.Lock.FailureThreshold),
		lock.WithLockWait(cfg.Lock.Wait()),
		lock.WithReclaimFailed(cfg.Lock.ReclaimFailed),
		lock.WithBoard(sink),
		lock.WithLogger(logger))

	return &components{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		tracker: trk,
		locks:   locks,
	}, nil
}

func (c *components) close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.logger != nil {
		c.logger.Close()
	}
}

func buildStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "sqlite":
		return ledger.NewSQLiteStore(cfg.Ledger.SQLitePath)
	default:
		return ledger.NewFileStore(cfg.Ledger.Dir)
	}
}

func buildTracker(cfg *config.Config, logger *logging.Logger) (tracker.Tracker, error) {
	switch cfg.Tracker.Backend {
	case "fixture":
		return tracker.LoadFixture(cfg.Tracker.FixturePath)
	default:
		return tracker.NewGitHub(cfg.Tracker.Repo, cfg.Tracker.Timeout(), logger), nil
	}
}

// buildExecutor assembles the agent subprocess executor.
func buildExecutor(cfg *config.Config, logger *logging.Logger) executor.Executor {
	return executor.NewSubprocess(cfg.Executor.Command,
		executor.WithArgs(cfg.Executor.Args...),
		executor.WithWorkDir(cfg.Executor.WorkDir),
		executor.WithTimeout(cfg.Executor.Timeout()),
		executor.WithLogger(logger))
}

// buildRotator picks the credential rotator. Without a configured
// rotation command, expired-credential failures abort instead of
// retrying.
func buildRotator(cfg *config.Config, logger *logging.Logger) executor.CredentialRotator {
	if cfg.Executor.RotateCommand == "" {
		return executor.NopRotator{}
	}
	return executor.NewScriptRotator(cfg.Executor.RotateCommand, cfg.Executor.RotateArgs,
		cfg.Executor.Timeout(), logger)
}
