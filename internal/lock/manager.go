// Package lock arbitrates which session works on which item. All claim
// decisions happen under the ledger store's exclusive section, so two
// sessions racing for the same backlog observe each other's claims; the
// item is handed out exactly once.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/board"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/ledger"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/tracker"
)

const (
	// DefaultTTL is how long a claim may sit unreleased before its
	// session is presumed dead and the claim reclaimed.
	DefaultTTL = 30 * time.Minute

	// DefaultFailureThreshold is the failure count at which an item is
	// deprioritized: skipped for claiming, never deleted.
	DefaultFailureThreshold = 3

	// DefaultLockWait bounds how long Claim waits for the exclusive
	// section before treating the contention as transient.
	DefaultLockWait = 10 * time.Second
)

// Manager hands out exclusive claims on open work items.
type Manager struct {
	store   ledger.Store
	tracker tracker.Tracker
	filter  *tracker.Filter
	board   *board.Sink
	logger  *logging.Logger

	ttl              time.Duration
	failureThreshold int
	lockWait         time.Duration
	reclaimFailed    bool

	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the stale-claim TTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithFailureThreshold sets the failure count at which items are
// deprioritized.
func WithFailureThreshold(n int) Option {
	return func(m *Manager) { m.failureThreshold = n }
}

// WithLockWait bounds the wait for the ledger's exclusive section.
func WithLockWait(d time.Duration) Option {
	return func(m *Manager) { m.lockWait = d }
}

// WithReclaimFailed allows deprioritized items to be claimed again.
func WithReclaimFailed(v bool) Option {
	return func(m *Manager) { m.reclaimFailed = v }
}

// WithBoard sets the status sink notified on claim transitions.
func WithBoard(sink *board.Sink) Option {
	return func(m *Manager) { m.board = sink }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// withClock overrides the clock in tests.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a claim manager over the given store and tracker.
func NewManager(store ledger.Store, trk tracker.Tracker, filter *tracker.Filter, opts ...Option) *Manager {
	m := &Manager{
		store:            store,
		tracker:          trk,
		filter:           filter,
		logger:           logging.NopLogger(),
		ttl:              DefaultTTL,
		failureThreshold: DefaultFailureThreshold,
		lockWait:         DefaultLockWait,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.board == nil {
		m.board = board.NewSink(nil, m.logger)
	}
	return m
}

// Claim picks the highest-priority eligible open item and claims it for
// sessionID. Returns errors.ErrNoWork when nothing is eligible right
// now, including when the exclusive section cannot be entered within
// the wait bound. Ledger read or write failures are fatal and
// propagate.
//
// The tracker acknowledgement comment and board notification happen
// after the exclusive section is released; they are best-effort.
func (m *Manager) Claim(ctx context.Context, sessionID string) (*ledger.Claim, error) {
	claim, err := m.claimLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if cErr := m.tracker.Comment(ctx, claim.ItemID,
		fmt.Sprintf("Claimed by session `%s`.", sessionID)); cErr != nil {
		m.logger.Warn("claim acknowledgement comment failed",
			"item", claim.ItemID, "error", cErr)
	}
	m.board.Notify(ctx, claim.ItemID, board.StatusInProgress)

	return claim, nil
}

// claimLocked performs the claim decision inside the exclusive section.
func (m *Manager) claimLocked(ctx context.Context, sessionID string) (*ledger.Claim, error) {
	if err := m.store.Lock(m.lockWait); err != nil {
		if errors.Is(err, errors.ErrLockTimeout) {
			m.logger.Warn("ledger lock contended, retrying next round",
				"session", sessionID, "wait", m.lockWait)
			return nil, errors.ErrNoWork
		}
		return nil, err
	}
	defer m.store.Unlock()

	claims, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	dirty := m.sweepStale(claims)

	issues, err := m.tracker.ListOpenIssues(ctx)
	if err != nil {
		if dirty {
			if sErr := m.store.Save(claims); sErr != nil {
				return nil, sErr
			}
		}
		return nil, err
	}

	for i := range issues {
		issue := &issues[i]
		if !m.eligible(issue, claims) {
			continue
		}

		claim := &ledger.Claim{
			ItemID:    issue.Number,
			SessionID: sessionID,
			Title:     issue.Title,
			ClaimedAt: m.now(),
		}
		if prior, ok := claims[issue.Number]; ok {
			claim.FailureCount = prior.FailureCount
		}
		claims[issue.Number] = claim

		if err := m.store.Save(claims); err != nil {
			return nil, err
		}
		m.logger.Info("claimed item",
			"item", issue.Number, "title", issue.Title, "session", sessionID)
		return claim.Clone(), nil
	}

	if dirty {
		if err := m.store.Save(claims); err != nil {
			return nil, err
		}
	}
	return nil, errors.ErrNoWork
}

// eligible reports whether the issue can be claimed right now.
func (m *Manager) eligible(issue *tracker.Issue, claims map[int]*ledger.Claim) bool {
	if !issue.IsOpen() {
		return false
	}
	if m.filter != nil && m.filter.IsMeta(issue) {
		return false
	}

	claim, ok := claims[issue.Number]
	if !ok {
		return true
	}
	if claim.FailedAt == nil {
		// Actively claimed by a live session.
		return false
	}
	if claim.FailureCount >= m.failureThreshold && !m.reclaimFailed {
		return false
	}
	return true
}

// sweepStale removes claims older than the TTL. Returns true when any
// claim was removed. Only claims without FailedAt are swept: the TTL
// presumes an abandoned live session, while a failed claim is a
// deliberate record whose failure count drives deprioritization. The
// cost is that a failed claim never ages out on its own; reclaiming
// those goes through the failure threshold or WithReclaimFailed.
func (m *Manager) sweepStale(claims map[int]*ledger.Claim) bool {
	now := m.now()
	removed := false
	for id, claim := range claims {
		if claim.FailedAt == nil && claim.IsStale(m.ttl, now) {
			m.logger.Warn("reclaiming stale claim, session presumed dead",
				"item", id, "session", claim.SessionID,
				"claimed_at", claim.ClaimedAt)
			delete(claims, id)
			removed = true
		}
	}
	return removed
}

// Release ends the session's claim on an item. When the item was closed
// the claim is deleted; otherwise the claim is kept with its failure
// recorded, which feeds deprioritization. The board notification
// happens outside the exclusive section.
func (m *Manager) Release(ctx context.Context, itemID int, sessionID string, wasClosed bool) error {
	if err := m.releaseLocked(itemID, sessionID, wasClosed); err != nil {
		return err
	}

	status := board.StatusDone
	if !wasClosed {
		status = board.StatusTodo
	}
	m.board.Notify(ctx, itemID, status)
	return nil
}

func (m *Manager) releaseLocked(itemID int, sessionID string, wasClosed bool) error {
	if err := m.store.Lock(m.lockWait); err != nil {
		return err
	}
	defer m.store.Unlock()

	claims, err := m.store.Load()
	if err != nil {
		return err
	}

	claim, ok := claims[itemID]
	if !ok {
		return errors.Wrapf(errors.ErrClaimNotFound, "item %d", itemID)
	}
	if claim.SessionID != sessionID {
		return errors.Wrapf(errors.ErrNotClaimOwner,
			"item %d is claimed by %s", itemID, claim.SessionID)
	}

	if wasClosed {
		delete(claims, itemID)
		m.logger.Info("released claim, item closed", "item", itemID, "session", sessionID)
	} else {
		claim.MarkFailed(m.now())
		m.logger.Info("released claim, item still open",
			"item", itemID, "session", sessionID, "failures", claim.FailureCount)
	}

	return m.store.Save(claims)
}

// ActiveClaims returns a consistent snapshot of the ledger.
func (m *Manager) ActiveClaims() (map[int]*ledger.Claim, error) {
	if err := m.store.Lock(m.lockWait); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	return m.store.Load()
}

// Cleanup sweeps stale claims outside the claim path. Returns the IDs
// of removed claims.
func (m *Manager) Cleanup(ctx context.Context) ([]int, error) {
	removed, err := m.cleanupLocked()
	if err != nil {
		return nil, err
	}
	for _, id := range removed {
		m.board.Notify(ctx, id, board.StatusTodo)
	}
	return removed, nil
}

func (m *Manager) cleanupLocked() ([]int, error) {
	if err := m.store.Lock(m.lockWait); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	claims, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	now := m.now()
	var removed []int
	for id, claim := range claims {
		if claim.FailedAt == nil && claim.IsStale(m.ttl, now) {
			m.logger.Warn("reclaiming stale claim, session presumed dead",
				"item", id, "session", claim.SessionID)
			delete(claims, id)
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := m.store.Save(claims); err != nil {
		return nil, err
	}
	return removed, nil
}
