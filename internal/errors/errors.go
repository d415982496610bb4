// Package errors provides centralized error definitions and error handling
// utilities for the orchestrator. It defines domain-specific errors, error
// constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - LedgerError: errors related to the claim ledger store
//   - TrackerError: errors from the external issue tracker
//   - ExecutorError: errors from the task-execution backend
//   - CoordinatorError: errors related to session coordination
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewLedgerError("failed to persist claims", baseErr).WithPath(path)
//	err := errors.NewTrackerError("listing issues failed", baseErr).WithStatus(429)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNoWork) { ... }
//
//	var trackerErr *errors.TrackerError
//	if errors.As(err, &trackerErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Claim and ledger sentinel errors
var (
	// ErrNoWork indicates that no eligible work item is currently available.
	ErrNoWork = New("no work available")
	// ErrNotClaimOwner indicates that the session does not own the claim.
	ErrNotClaimOwner = New("session does not own claim")
	// ErrClaimNotFound indicates that no claim exists for the item.
	ErrClaimNotFound = New("claim not found")
	// ErrLedgerCorrupted indicates that ledger state could not be read or
	// written. Claim uniqueness can no longer be trusted; callers must abort.
	ErrLedgerCorrupted = New("ledger state corrupted")
	// ErrLockTimeout indicates the ledger's exclusive section could not be
	// acquired within the configured bound. Treated as transient.
	ErrLockTimeout = New("ledger lock acquisition timed out")
)

// Execution sentinel errors
var (
	// ErrItemBlocked indicates that a work item was blocked by the executor's
	// content filter and needs human review.
	ErrItemBlocked = New("item blocked pending human review")
	// ErrRetriesExhausted indicates that the bounded retry allowance was used up.
	ErrRetriesExhausted = New("retries exhausted")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// OrchestratorError is the base interface for all orchestrator errors.
// It extends the standard error interface with methods for classification.
type OrchestratorError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LedgerError represents errors related to the claim ledger store.
// Ledger errors are critical: a store that cannot be read or written
// invalidates the claim-uniqueness invariant.
//
// Example:
//
//	err := errors.NewLedgerError("failed to persist claims", baseErr).WithPath(path)
type LedgerError struct {
	baseError
	Path string
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(message string, cause error) *LedgerError {
	return &LedgerError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityCritical,
			retryable: false,
		},
	}
}

// WithPath adds the ledger store path to the error context.
func (e *LedgerError) WithPath(path string) *LedgerError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *LedgerError) Error() string {
	prefix := "ledger error"
	if e.Path != "" {
		prefix = fmt.Sprintf("ledger error [path=%s]", e.Path)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target. The corruption sentinel
// matches only when it is actually in the cause chain: not every ledger
// error is corruption.
func (e *LedgerError) Is(target error) bool {
	if _, ok := target.(*LedgerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TrackerError represents errors from the external issue tracker.
//
// Example:
//
//	err := errors.NewTrackerError("listing issues failed", baseErr).WithStatus(429)
type TrackerError struct {
	baseError
	StatusCode int
	ItemID     int
}

// NewTrackerError creates a new TrackerError.
func NewTrackerError(message string, cause error) *TrackerError {
	return &TrackerError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithStatus adds the HTTP-like status code to the error context.
func (e *TrackerError) WithStatus(code int) *TrackerError {
	e.StatusCode = code
	return e
}

// WithItem adds the work item number to the error context.
func (e *TrackerError) WithItem(itemID int) *TrackerError {
	e.ItemID = itemID
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TrackerError) WithRetryable(r bool) *TrackerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TrackerError) Error() string {
	var parts []string
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.ItemID != 0 {
		parts = append(parts, fmt.Sprintf("item=%d", e.ItemID))
	}

	prefix := "tracker error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("tracker error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TrackerError) Is(target error) bool {
	if _, ok := target.(*TrackerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ExecutorError represents errors from the task-execution backend.
//
// Example:
//
//	err := errors.NewExecutorError("agent command failed", baseErr).WithOutput(stderr)
type ExecutorError struct {
	baseError
	SessionID string
	Output    string // Captured command output
}

// NewExecutorError creates a new ExecutorError.
func NewExecutorError(message string, cause error) *ExecutorError {
	return &ExecutorError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithSessionID adds a session ID to the error context.
func (e *ExecutorError) WithSessionID(id string) *ExecutorError {
	e.SessionID = id
	return e
}

// WithOutput adds captured command output to the error context.
func (e *ExecutorError) WithOutput(output string) *ExecutorError {
	e.Output = output
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ExecutorError) WithRetryable(r bool) *ExecutorError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ExecutorError) Error() string {
	prefix := "executor error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("executor error [session=%s]", e.SessionID)
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\noutput: %s", msg, e.Output)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *ExecutorError) Is(target error) bool {
	if _, ok := target.(*ExecutorError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CoordinatorError represents errors related to session coordination.
//
// Example:
//
//	err := errors.NewCoordinatorError("session run failed", baseErr).WithRound(3)
type CoordinatorError struct {
	baseError
	SessionID string
	Round     int
}

// NewCoordinatorError creates a new CoordinatorError.
func NewCoordinatorError(message string, cause error) *CoordinatorError {
	return &CoordinatorError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
		Round: -1, // -1 indicates not set
	}
}

// WithSessionID adds a session ID to the error context.
func (e *CoordinatorError) WithSessionID(id string) *CoordinatorError {
	e.SessionID = id
	return e
}

// WithRound adds the round number to the error context.
func (e *CoordinatorError) WithRound(round int) *CoordinatorError {
	e.Round = round
	return e
}

// WithSeverity sets the error severity.
func (e *CoordinatorError) WithSeverity(s Severity) *CoordinatorError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *CoordinatorError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Round >= 0 {
		parts = append(parts, fmt.Sprintf("round=%d", e.Round))
	}

	prefix := "coordinator error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("coordinator error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *CoordinatorError) Is(target error) bool {
	if _, ok := target.(*CoordinatorError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var orchErr OrchestratorError
	if As(err, &orchErr) {
		return orchErr.IsRetryable()
	}

	if Is(err, ErrTimeout) || Is(err, ErrLockTimeout) {
		return true
	}

	return false
}

// IsFatal returns true if the error must terminate the whole orchestrator
// run rather than just the affected session. Ledger corruption is the only
// such condition.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrLedgerCorrupted)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
