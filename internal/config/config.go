// Package config loads and validates the orchestrator configuration
// via viper. Defaults cover a working single-host setup; a YAML file in
// the user's config directory or the working directory overrides them.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete orchestrator configuration.
type Config struct {
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Lock        LockConfig        `mapstructure:"lock"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Tracker     TrackerConfig     `mapstructure:"tracker"`
	Health      HealthConfig      `mapstructure:"health"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// LedgerConfig controls where claims are persisted.
type LedgerConfig struct {
	// Backend selects the claim store: "file" or "sqlite"
	Backend string `mapstructure:"backend"`
	// Dir is the directory holding the file backend's state
	Dir string `mapstructure:"dir"`
	// SQLitePath is the database path for the sqlite backend
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LockConfig controls claim arbitration.
type LockConfig struct {
	// TTLMinutes is how long a claim may sit unreleased before its session
	// is presumed dead (default: 30)
	TTLMinutes int `mapstructure:"ttl_minutes"`
	// FailureThreshold is the failure count at which an item is deprioritized (default: 3)
	FailureThreshold int `mapstructure:"failure_threshold"`
	// WaitSeconds bounds how long a claim attempt waits for the ledger's
	// exclusive section (default: 10)
	WaitSeconds int `mapstructure:"wait_seconds"`
	// ReclaimFailed allows deprioritized items to be claimed again (default: false)
	ReclaimFailed bool `mapstructure:"reclaim_failed"`
}

// CoordinatorConfig controls the round loop.
type CoordinatorConfig struct {
	// Sessions is the number of concurrent sessions per round (default: 3)
	Sessions int `mapstructure:"sessions"`
	// MaxRounds bounds the run, 0 = unbounded (default: 0)
	MaxRounds int `mapstructure:"max_rounds"`
	// EmptyRoundThreshold is how many consecutive all-empty rounds end the
	// run (default: 3)
	EmptyRoundThreshold int `mapstructure:"empty_round_threshold"`
}

// ExecutorConfig controls the agent subprocess.
type ExecutorConfig struct {
	// Command is the agent executable
	Command string `mapstructure:"command"`
	// Args are extra arguments passed to the agent
	Args []string `mapstructure:"args"`
	// WorkDir is the directory the agent runs in (default: current directory)
	WorkDir string `mapstructure:"work_dir"`
	// TimeoutMinutes bounds one execution, 0 = unbounded (default: 30)
	TimeoutMinutes int `mapstructure:"timeout_minutes"`
	// RotateCommand refreshes the agent credential; empty disables rotation
	RotateCommand string `mapstructure:"rotate_command"`
	// RotateArgs are arguments for the rotation command
	RotateArgs []string `mapstructure:"rotate_args"`
}

// TrackerConfig controls the issue-tracker boundary.
type TrackerConfig struct {
	// Backend selects the tracker: "github" or "fixture"
	Backend string `mapstructure:"backend"`
	// Repo is the "owner/repo" the github backend targets
	Repo string `mapstructure:"repo"`
	// FixturePath is the YAML backlog for the fixture backend
	FixturePath string `mapstructure:"fixture_path"`
	// MetaLabels are glob patterns for administrative labels to skip
	MetaLabels []string `mapstructure:"meta_labels"`
	// MetaTitlePrefixes are title prefixes marking administrative items
	MetaTitlePrefixes []string `mapstructure:"meta_title_prefixes"`
	// TimeoutSeconds bounds each tracker call (default: 60)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HealthConfig controls productivity scoring.
type HealthConfig struct {
	// MinScore below which heavy tool use without results is flagged (default: 0.1)
	MinScore float64 `mapstructure:"min_score"`
	// ToolFloor above which a low score counts as unproductive (default: 30)
	ToolFloor int `mapstructure:"tool_floor"`
}

// LoggingConfig controls the run log.
type LoggingConfig struct {
	// Enabled controls whether the run log is written (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is "debug", "info", "warn" or "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the run directory for logs; empty uses the ledger dir
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the log size before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated logs to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// TTL returns the lock TTL as a duration.
func (c *LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Wait returns the lock wait bound as a duration.
func (c *LockConfig) Wait() time.Duration {
	return time.Duration(c.WaitSeconds) * time.Second
}

// Timeout returns the execution bound as a duration.
func (c *ExecutorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Timeout returns the tracker call bound as a duration.
func (c *TrackerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns a Config with working default values.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Backend:    "file",
			Dir:        ".fleet",
			SQLitePath: ".fleet/claims.db",
		},
		Lock: LockConfig{
			TTLMinutes:       30,
			FailureThreshold: 3,
			WaitSeconds:      10,
			ReclaimFailed:    false,
		},
		Coordinator: CoordinatorConfig{
			Sessions:            3,
			MaxRounds:           0,
			EmptyRoundThreshold: 3,
		},
		Executor: ExecutorConfig{
			Command:        "claude",
			Args:           []string{},
			WorkDir:        "",
			TimeoutMinutes: 30,
			RotateCommand:  "",
			RotateArgs:     []string{},
		},
		Tracker: TrackerConfig{
			Backend:           "github",
			Repo:              "",
			FixturePath:       "",
			MetaLabels:        []string{"meta", "epic:*", "status:*"},
			MetaTitlePrefixes: []string{"[meta]", "[epic]"},
			TimeoutSeconds:    60,
		},
		Health: HealthConfig{
			MinScore:  0.1,
			ToolFloor: 30,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("ledger.backend", defaults.Ledger.Backend)
	viper.SetDefault("ledger.dir", defaults.Ledger.Dir)
	viper.SetDefault("ledger.sqlite_path", defaults.Ledger.SQLitePath)

	viper.SetDefault("lock.ttl_minutes", defaults.Lock.TTLMinutes)
	viper.SetDefault("lock.failure_threshold", defaults.Lock.FailureThreshold)
	viper.SetDefault("lock.wait_seconds", defaults.Lock.WaitSeconds)
	viper.SetDefault("lock.reclaim_failed", defaults.Lock.ReclaimFailed)

	viper.SetDefault("coordinator.sessions", defaults.Coordinator.Sessions)
	viper.SetDefault("coordinator.max_rounds", defaults.Coordinator.MaxRounds)
	viper.SetDefault("coordinator.empty_round_threshold", defaults.Coordinator.EmptyRoundThreshold)

	viper.SetDefault("executor.command", defaults.Executor.Command)
	viper.SetDefault("executor.args", defaults.Executor.Args)
	viper.SetDefault("executor.work_dir", defaults.Executor.WorkDir)
	viper.SetDefault("executor.timeout_minutes", defaults.Executor.TimeoutMinutes)
	viper.SetDefault("executor.rotate_command", defaults.Executor.RotateCommand)
	viper.SetDefault("executor.rotate_args", defaults.Executor.RotateArgs)

	viper.SetDefault("tracker.backend", defaults.Tracker.Backend)
	viper.SetDefault("tracker.repo", defaults.Tracker.Repo)
	viper.SetDefault("tracker.fixture_path", defaults.Tracker.FixturePath)
	viper.SetDefault("tracker.meta_labels", defaults.Tracker.MetaLabels)
	viper.SetDefault("tracker.meta_title_prefixes", defaults.Tracker.MetaTitlePrefixes)
	viper.SetDefault("tracker.timeout_seconds", defaults.Tracker.TimeoutSeconds)

	viper.SetDefault("health.min_score", defaults.Health.MinScore)
	viper.SetDefault("health.tool_floor", defaults.Health.ToolFloor)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config and validates
// it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the user's config directory for the orchestrator.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fleet")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleet"
	}
	return filepath.Join(home, ".config", "fleet")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
