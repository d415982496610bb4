package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // config field path, e.g. "coordinator.sessions"
	Value   any
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLedgerBackends returns the supported claim store backends.
func ValidLedgerBackends() []string {
	return []string{"file", "sqlite"}
}

// ValidTrackerBackends returns the supported tracker backends.
func ValidTrackerBackends() []string {
	return []string{"github", "fixture"}
}

// ValidLogLevels returns the supported log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config and returns all validation errors found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLedger()...)
	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateCoordinator()...)
	errors = append(errors, c.validateExecutor()...)
	errors = append(errors, c.validateTracker()...)
	errors = append(errors, c.validateHealth()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateLedger() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLedgerBackends(), c.Ledger.Backend) {
		errors = append(errors, ValidationError{
			Field:   "ledger.backend",
			Value:   c.Ledger.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLedgerBackends(), ", ")),
		})
	}
	if c.Ledger.Backend == "file" && c.Ledger.Dir == "" {
		errors = append(errors, ValidationError{
			Field:   "ledger.dir",
			Value:   c.Ledger.Dir,
			Message: "required for the file backend",
		})
	}
	if c.Ledger.Backend == "sqlite" && c.Ledger.SQLitePath == "" {
		errors = append(errors, ValidationError{
			Field:   "ledger.sqlite_path",
			Value:   c.Ledger.SQLitePath,
			Message: "required for the sqlite backend",
		})
	}

	return errors
}

func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	if c.Lock.TTLMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.ttl_minutes",
			Value:   c.Lock.TTLMinutes,
			Message: "must be positive",
		})
	}
	if c.Lock.FailureThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "lock.failure_threshold",
			Value:   c.Lock.FailureThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Lock.WaitSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.wait_seconds",
			Value:   c.Lock.WaitSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateCoordinator() []ValidationError {
	var errors []ValidationError

	if c.Coordinator.Sessions < 1 {
		errors = append(errors, ValidationError{
			Field:   "coordinator.sessions",
			Value:   c.Coordinator.Sessions,
			Message: "must be at least 1",
		})
	}
	if c.Coordinator.MaxRounds < 0 {
		errors = append(errors, ValidationError{
			Field:   "coordinator.max_rounds",
			Value:   c.Coordinator.MaxRounds,
			Message: "must be non-negative (0 = unbounded)",
		})
	}
	if c.Coordinator.EmptyRoundThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "coordinator.empty_round_threshold",
			Value:   c.Coordinator.EmptyRoundThreshold,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateExecutor() []ValidationError {
	var errors []ValidationError

	if c.Executor.Command == "" {
		errors = append(errors, ValidationError{
			Field:   "executor.command",
			Value:   c.Executor.Command,
			Message: "required",
		})
	}
	if c.Executor.TimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.timeout_minutes",
			Value:   c.Executor.TimeoutMinutes,
			Message: "must be non-negative (0 = unbounded)",
		})
	}

	return errors
}

func (c *Config) validateTracker() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidTrackerBackends(), c.Tracker.Backend) {
		errors = append(errors, ValidationError{
			Field:   "tracker.backend",
			Value:   c.Tracker.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTrackerBackends(), ", ")),
		})
	}
	if c.Tracker.Backend == "github" && c.Tracker.Repo == "" {
		errors = append(errors, ValidationError{
			Field:   "tracker.repo",
			Value:   c.Tracker.Repo,
			Message: "required for the github backend (owner/repo)",
		})
	}
	if c.Tracker.Backend == "github" && c.Tracker.Repo != "" && !strings.Contains(c.Tracker.Repo, "/") {
		errors = append(errors, ValidationError{
			Field:   "tracker.repo",
			Value:   c.Tracker.Repo,
			Message: "must be in owner/repo form",
		})
	}
	if c.Tracker.Backend == "fixture" && c.Tracker.FixturePath == "" {
		errors = append(errors, ValidationError{
			Field:   "tracker.fixture_path",
			Value:   c.Tracker.FixturePath,
			Message: "required for the fixture backend",
		})
	}
	if c.Tracker.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "tracker.timeout_seconds",
			Value:   c.Tracker.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateHealth() []ValidationError {
	var errors []ValidationError

	if c.Health.MinScore < 0 {
		errors = append(errors, ValidationError{
			Field:   "health.min_score",
			Value:   c.Health.MinScore,
			Message: "must be non-negative",
		})
	}
	if c.Health.ToolFloor < 0 {
		errors = append(errors, ValidationError{
			Field:   "health.tool_floor",
			Value:   c.Health.ToolFloor,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 1 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be at least 1",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
