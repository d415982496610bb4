package ledger

import "time"

// Claim records that one session currently owns one work item.
// At most one active claim may exist per item; the lock manager
// enforces this under the store's exclusive section.
type Claim struct {
	ItemID       int        `json:"item_id"`
	SessionID    string     `json:"session_id"`
	Title        string     `json:"title"`
	ClaimedAt    time.Time  `json:"claimed_at"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// IsStale reports whether the claim is older than ttl at the given time.
// A stale claim is presumed abandoned: the owning session is treated as
// dead regardless of what it was doing when it stopped reporting.
func (c *Claim) IsStale(ttl time.Duration, now time.Time) bool {
	return now.Sub(c.ClaimedAt) > ttl
}

// MarkFailed records a failed release: the claim is kept for history,
// failed_at is set and the failure count incremented.
func (c *Claim) MarkFailed(now time.Time) {
	t := now
	c.FailedAt = &t
	c.FailureCount++
}

// Clone returns a deep copy of the claim.
func (c *Claim) Clone() *Claim {
	cp := *c
	if c.FailedAt != nil {
		t := *c.FailedAt
		cp.FailedAt = &t
	}
	return &cp
}

// CloneAll returns a deep copy of a claim map. Used to hand snapshots to
// callers without sharing internal pointers.
func CloneAll(claims map[int]*Claim) map[int]*Claim {
	out := make(map[int]*Claim, len(claims))
	for id, c := range claims {
		out[id] = c.Clone()
	}
	return out
}
