// Package retry bounds recovery from external failures. A failed
// operation gets at most one additional attempt, chosen by the
// classification verdict; everything else propagates. The package also
// tracks per-item attempt history for the end-of-run summary.
package retry

import (
	"sync"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/classify"
)

// ItemState tracks recovery attempts for one work item.
type ItemState struct {
	ItemID    int               `json:"item_id"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
	Actions   []classify.Action `json:"actions,omitempty"` // recovery action per failed attempt
	Succeeded bool              `json:"succeeded,omitempty"`
}

// Manager tracks retry state per item. Safe for concurrent use.
type Manager struct {
	mu     sync.RWMutex
	states map[int]*ItemState
}

// NewManager creates an empty retry manager.
func NewManager() *Manager {
	return &Manager{states: make(map[int]*ItemState)}
}

func (m *Manager) getOrCreate(itemID int) *ItemState {
	state, ok := m.states[itemID]
	if !ok {
		state = &ItemState{ItemID: itemID}
		m.states[itemID] = state
	}
	return state
}

// RecordFailure records a failed attempt and the recovery action chosen
// for it.
func (m *Manager) RecordFailure(itemID int, action classify.Action, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(itemID)
	state.Attempts++
	state.LastError = errMsg
	state.Actions = append(state.Actions, action)
}

// RecordSuccess marks the item's operation as eventually succeeded.
func (m *Manager) RecordSuccess(itemID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getOrCreate(itemID)
	state.Attempts++
	state.Succeeded = true
}

// State returns a copy of the item's retry state, or nil if the item
// was never attempted.
func (m *Manager) State(itemID int) *ItemState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[itemID]
	if !ok {
		return nil
	}
	cp := *state
	cp.Actions = append([]classify.Action(nil), state.Actions...)
	return &cp
}

// FailedItems returns the IDs of items whose last recorded attempt
// failed.
func (m *Manager) FailedItems() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var failed []int
	for id, state := range m.states {
		if !state.Succeeded {
			failed = append(failed, id)
		}
	}
	return failed
}

// Snapshot returns a copy of all item states, keyed by item ID.
func (m *Manager) Snapshot() map[int]*ItemState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int]*ItemState, len(m.states))
	for id, state := range m.states {
		cp := *state
		cp.Actions = append([]classify.Action(nil), state.Actions...)
		out[id] = &cp
	}
	return out
}

// Reset clears the state for one item.
func (m *Manager) Reset(itemID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, itemID)
}
