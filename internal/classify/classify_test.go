package classify

import (
	"testing"
	"time"
)

func TestTrackerTable(t *testing.T) {
	tests := []struct {
		status          int
		wantAction      Action
		wantRecoverable bool
		wantRetryAfter  time.Duration
	}{
		{400, ActionFixInput, false, 0},
		{401, ActionCheckAuth, false, 0},
		{403, ActionCheckPermissions, false, 0},
		{404, ActionFixInput, false, 0},
		{409, ActionPullRetry, true, 0},
		{422, ActionFixInput, false, 0},
		{429, ActionWaitRetry, true, 60 * time.Second},
		{500, ActionWaitRetry, true, 30 * time.Second},
		{502, ActionWaitRetry, true, 10 * time.Second},
		{503, ActionWaitRetry, true, 30 * time.Second},
		{418, ActionAbort, false, 0},
		{0, ActionAbort, false, 0},
	}

	for _, tt := range tests {
		got := Tracker(tt.status, "msg", 0)
		if got.Action != tt.wantAction {
			t.Errorf("Tracker(%d).Action = %s, want %s", tt.status, got.Action, tt.wantAction)
		}
		if got.Recoverable != tt.wantRecoverable {
			t.Errorf("Tracker(%d).Recoverable = %v, want %v", tt.status, got.Recoverable, tt.wantRecoverable)
		}
		if got.RetryAfter != tt.wantRetryAfter {
			t.Errorf("Tracker(%d).RetryAfter = %s, want %s", tt.status, got.RetryAfter, tt.wantRetryAfter)
		}
	}
}

func TestTrackerHonorsServerRetryAfter(t *testing.T) {
	got := Tracker(429, "slow down", 90*time.Second)
	if got.RetryAfter != 90*time.Second {
		t.Errorf("RetryAfter = %s, want server-supplied 90s", got.RetryAfter)
	}

	// Server value only applies to rate limits; 500 keeps its fixed backoff.
	got = Tracker(500, "boom", 90*time.Second)
	if got.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %s, want fixed 30s", got.RetryAfter)
	}
}

func TestExecutorTable(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		wantAction Action
		wantCode   string
	}{
		{"content filter", "Request blocked by content filter policy", ActionContentFilter, "executor_content_filter"},
		{"blocked phrase", "output blocked for safety reasons", ActionContentFilter, "executor_content_filter"},
		{"refusal", "the model refused to process this task", ActionContentFilter, "executor_content_filter"},
		{"auth failure", "Authentication failed: token expired", ActionRotateToken, "executor_auth"},
		{"unauthorized", "401 Unauthorized", ActionRotateToken, "executor_auth"},
		{"bad key", "invalid api key provided", ActionRotateToken, "executor_auth"},
		{"overloaded", "Error: overloaded_error", ActionWaitRetry, "executor_overloaded"},
		{"rate limited", "rate limit exceeded, retry later", ActionWaitRetry, "executor_overloaded"},
		{"server error", "upstream server error (529)", ActionWaitRetry, "executor_overloaded"},
		{"timeout", "request timeout after 120s", ActionWaitRetry, "executor_overloaded"},
		{"unknown", "segfault in plugin", ActionAbort, "executor_unknown"},
		{"empty", "", ActionAbort, "executor_unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Executor(tt.msg)
			if got.Action != tt.wantAction {
				t.Errorf("Executor(%q).Action = %s, want %s", tt.msg, got.Action, tt.wantAction)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Executor(%q).Code = %s, want %s", tt.msg, got.Code, tt.wantCode)
			}
		})
	}
}

func TestExecutorContentFilterWinsOverOverlap(t *testing.T) {
	// A message matching both tables must classify as content filter:
	// blocked items need human review, not a retry.
	got := Executor("request blocked by content filter after rate limit")
	if got.Action != ActionContentFilter {
		t.Errorf("Action = %s, want content_filter", got.Action)
	}
}

func TestClassificationIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		a := Executor("rate limit exceeded")
		b := Executor("rate limit exceeded")
		if *a != *b {
			t.Fatalf("Executor() not deterministic: %+v vs %+v", a, b)
		}

		ta := Tracker(503, "unavailable", 0)
		tb := Tracker(503, "unavailable", 0)
		if *ta != *tb {
			t.Fatalf("Tracker() not deterministic: %+v vs %+v", ta, tb)
		}
	}
}

func TestClassifiedErrorMessage(t *testing.T) {
	err := Tracker(429, "slow down", 0)
	want := "tracker_rate_limited (wait_retry): slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestExecutorRecoverableFlags(t *testing.T) {
	if Executor("content filter").Recoverable {
		t.Error("content filter must not be recoverable")
	}
	if !Executor("token expired").Recoverable {
		t.Error("credential expiry is recoverable (once)")
	}
	if !Executor("overloaded").Recoverable {
		t.Error("overload is recoverable")
	}
	if Executor("garbage").Recoverable {
		t.Error("unknown errors are not recoverable")
	}
}
