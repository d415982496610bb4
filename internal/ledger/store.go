package ledger

import (
	"fmt"
	"time"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
)

// Store is the injectable persistence layer for the claim ledger.
//
// Every claim-mutating operation follows the same discipline: acquire the
// exclusive section with Lock, Load the full claim map, mutate it, Save it
// back, then Unlock. Load and Save outside the exclusive section are only
// safe for read-only snapshots.
//
// The exclusive section is exclusive on two axes: across processes via
// the store's own mechanism (flock, immediate transaction) and across
// goroutines sharing one store handle via a one-slot semaphore. The
// second axis matters because all concurrent sessions in one run share a
// single store.
type Store interface {
	// Lock acquires the exclusive section, waiting at most wait before
	// giving up. A zero wait blocks indefinitely. Returns
	// errors.ErrLockTimeout when the bound is exceeded. Unlock must be
	// called by the goroutine that acquired the section.
	Lock(wait time.Duration) error

	// Unlock releases the exclusive section.
	Unlock() error

	// Load reads the full claim map. A store with no prior state returns
	// an empty map, not an error.
	Load() (map[int]*Claim, error)

	// Save writes the full claim map, replacing previous state.
	Save(claims map[int]*Claim) error

	// Close releases store resources. The store must not be used afterwards.
	Close() error
}

// corrupt wraps a store failure as a fatal ledger error. Every load/save
// failure goes through here; the resulting error matches
// errors.ErrLedgerCorrupted and must abort the run.
func corrupt(path, message string, cause error) error {
	if cause == nil {
		cause = errors.ErrLedgerCorrupted
	} else {
		cause = fmt.Errorf("%w: %w", errors.ErrLedgerCorrupted, cause)
	}
	return errors.NewLedgerError(message, cause).WithPath(path)
}

// acquireSection takes a one-slot semaphore, waiting at most wait. A
// zero wait blocks until the slot frees up.
func acquireSection(sem chan struct{}, wait time.Duration) error {
	if wait <= 0 {
		sem <- struct{}{}
		return nil
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-time.After(wait):
		return errors.ErrLockTimeout
	}
}
