// Package classify maps raw failures from the orchestrator's two external
// dependencies (the issue tracker and the task-execution backend) into
// typed recoverable/fatal decisions with a suggested recovery action.
//
// Classification is total and pure: every input maps to some verdict
// (unknown inputs map to abort), no mutable state is consulted, and
// identical input always yields identical output.
package classify

import (
	"fmt"
	"strings"
	"time"
)

// Action is the recovery action suggested for a classified failure.
type Action string

const (
	// ActionAbort propagates the failure unchanged; nothing can be retried.
	ActionAbort Action = "abort"
	// ActionCheckAuth indicates the credential is invalid or missing.
	ActionCheckAuth Action = "check_auth"
	// ActionCheckPermissions indicates the credential lacks access rights.
	ActionCheckPermissions Action = "check_permissions"
	// ActionFixInput indicates the request itself is malformed.
	ActionFixInput Action = "fix_input"
	// ActionPullRetry indicates local state is behind; synchronize then retry once.
	ActionPullRetry Action = "pull_retry"
	// ActionWaitRetry indicates a transient condition; wait then retry once.
	ActionWaitRetry Action = "wait_retry"
	// ActionRotateToken indicates an expired credential; rotate and retry once.
	ActionRotateToken Action = "rotate_token"
	// ActionContentFilter indicates the executor refused the work; the item
	// is marked blocked for human review, never retried.
	ActionContentFilter Action = "content_filter"
)

// Backoff durations for tracker server errors.
const (
	backoff500 = 30 * time.Second
	backoff502 = 10 * time.Second
	backoff503 = 30 * time.Second

	// defaultRateLimitWait applies when the tracker rate-limits the client
	// without supplying a Retry-After duration.
	defaultRateLimitWait = 60 * time.Second
)

// ClassifiedError is the typed verdict derived from a raw failure.
type ClassifiedError struct {
	Code        string
	Message     string
	Recoverable bool
	Action      Action
	RetryAfter  time.Duration // 0 when no wait is suggested
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Action, e.Message)
}

// Tracker classifies a failure from the issue tracker by status code.
// retryAfter is the server-supplied wait duration for rate limits, if any.
func Tracker(status int, msg string, retryAfter time.Duration) *ClassifiedError {
	switch status {
	case 400:
		return &ClassifiedError{Code: "tracker_bad_request", Message: msg, Recoverable: false, Action: ActionFixInput}
	case 401:
		return &ClassifiedError{Code: "tracker_unauthorized", Message: msg, Recoverable: false, Action: ActionCheckAuth}
	case 403:
		return &ClassifiedError{Code: "tracker_forbidden", Message: msg, Recoverable: false, Action: ActionCheckPermissions}
	case 404:
		return &ClassifiedError{Code: "tracker_not_found", Message: msg, Recoverable: false, Action: ActionFixInput}
	case 409:
		return &ClassifiedError{Code: "tracker_conflict", Message: msg, Recoverable: true, Action: ActionPullRetry}
	case 422:
		return &ClassifiedError{Code: "tracker_unprocessable", Message: msg, Recoverable: false, Action: ActionFixInput}
	case 429:
		wait := retryAfter
		if wait <= 0 {
			wait = defaultRateLimitWait
		}
		return &ClassifiedError{Code: "tracker_rate_limited", Message: msg, Recoverable: true, Action: ActionWaitRetry, RetryAfter: wait}
	case 500:
		return &ClassifiedError{Code: "tracker_server_error", Message: msg, Recoverable: true, Action: ActionWaitRetry, RetryAfter: backoff500}
	case 502:
		return &ClassifiedError{Code: "tracker_bad_gateway", Message: msg, Recoverable: true, Action: ActionWaitRetry, RetryAfter: backoff502}
	case 503:
		return &ClassifiedError{Code: "tracker_unavailable", Message: msg, Recoverable: true, Action: ActionWaitRetry, RetryAfter: backoff503}
	default:
		return &ClassifiedError{Code: "tracker_unknown", Message: msg, Recoverable: false, Action: ActionAbort}
	}
}

// Phrase tables for executor failures. Matching is case-insensitive
// substring containment, checked in table order: content filter first,
// then credentials, then overload.
var (
	contentFilterPhrases = []string{
		"content filter",
		"content_filter",
		"blocked by",
		"request blocked",
		"output blocked",
		"refused to",
	}

	credentialPhrases = []string{
		"authentication",
		"unauthorized",
		"invalid api key",
		"token expired",
		"credentials",
		"oauth",
	}

	overloadPhrases = []string{
		"overloaded",
		"rate limit",
		"too many requests",
		"server error",
		"internal error",
		"service unavailable",
		"capacity",
		"timeout",
		"timed out",
	}
)

// Executor classifies a failure from the task-execution backend by
// message pattern.
func Executor(msg string) *ClassifiedError {
	lower := strings.ToLower(msg)

	for _, p := range contentFilterPhrases {
		if strings.Contains(lower, p) {
			return &ClassifiedError{Code: "executor_content_filter", Message: msg, Recoverable: false, Action: ActionContentFilter}
		}
	}
	for _, p := range credentialPhrases {
		if strings.Contains(lower, p) {
			return &ClassifiedError{Code: "executor_auth", Message: msg, Recoverable: true, Action: ActionRotateToken}
		}
	}
	for _, p := range overloadPhrases {
		if strings.Contains(lower, p) {
			return &ClassifiedError{Code: "executor_overloaded", Message: msg, Recoverable: true, Action: ActionWaitRetry}
		}
	}

	return &ClassifiedError{Code: "executor_unknown", Message: msg, Recoverable: false, Action: ActionAbort}
}
