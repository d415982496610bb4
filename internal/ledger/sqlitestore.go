package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/errors"
)

const claimsSchema = `
CREATE TABLE IF NOT EXISTS claims (
	item_id       INTEGER PRIMARY KEY,
	session_id    TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	claimed_at    TIMESTAMP NOT NULL,
	failed_at     TIMESTAMP,
	failure_count INTEGER NOT NULL DEFAULT 0
);`

// SQLiteStore persists the ledger in a single SQLite table. The exclusive
// section maps onto an immediate transaction: the write lock is taken at
// Lock time and held until Unlock commits, so concurrent processes
// serialize exactly as with the flock-based FileStore.
//
// The transaction only excludes other processes; sem excludes the other
// session goroutines sharing this handle. The tx field is touched only
// while sem is held.
type SQLiteStore struct {
	path string
	db   *sql.DB
	sem  chan struct{}
	tx   *sql.Tx // non-nil while the exclusive section is held
}

// NewSQLiteStore opens (creating if needed) the ledger database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// _txlock=immediate makes BeginTx take the write lock up front.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=100", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// A single connection keeps the transaction/section mapping simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(claimsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create claims table: %w", err)
	}

	return &SQLiteStore{path: path, db: db, sem: make(chan struct{}, 1)}, nil
}

// Lock acquires the exclusive section, waiting at most wait. A zero
// wait blocks until available. The wait bound covers both the
// in-process semaphore and the database write lock.
func (s *SQLiteStore) Lock(wait time.Duration) error {
	var deadline time.Time
	if wait > 0 {
		deadline = time.Now().Add(wait)
	}

	if err := acquireSection(s.sem, wait); err != nil {
		return fmt.Errorf("%w: waited %s for %s", errors.ErrLockTimeout, wait, s.path)
	}

	ctx := context.Background()
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	for {
		tx, err := s.db.BeginTx(ctx, nil)
		if err == nil {
			s.tx = tx
			return nil
		}
		if ctx.Err() != nil {
			<-s.sem
			return fmt.Errorf("%w: waited %s for %s", errors.ErrLockTimeout, wait, s.path)
		}
		if !isBusy(err) {
			<-s.sem
			return corrupt(s.path, "begin immediate transaction", err)
		}
		select {
		case <-ctx.Done():
			<-s.sem
			return fmt.Errorf("%w: waited %s for %s", errors.ErrLockTimeout, wait, s.path)
		case <-time.After(lockPollInterval):
		}
	}
}

// Unlock commits the transaction, publishing any Save performed inside
// the exclusive section. Must be called by the goroutine holding the
// section; a no-op when nothing is held.
func (s *SQLiteStore) Unlock() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	<-s.sem
	if err != nil {
		return corrupt(s.path, "commit ledger transaction", err)
	}
	return nil
}

// Load reads the full claim map, inside the exclusive section if held.
func (s *SQLiteStore) Load() (map[int]*Claim, error) {
	q := `SELECT item_id, session_id, title, claimed_at, failed_at, failure_count FROM claims`

	var rows *sql.Rows
	var err error
	if s.tx != nil {
		rows, err = s.tx.Query(q)
	} else {
		rows, err = s.db.Query(q)
	}
	if err != nil {
		return nil, corrupt(s.path, "query claims", err)
	}
	defer rows.Close()

	claims := make(map[int]*Claim)
	for rows.Next() {
		var c Claim
		var failedAt sql.NullTime
		if err := rows.Scan(&c.ItemID, &c.SessionID, &c.Title, &c.ClaimedAt, &failedAt, &c.FailureCount); err != nil {
			return nil, corrupt(s.path, "scan claim row", err)
		}
		if failedAt.Valid {
			t := failedAt.Time
			c.FailedAt = &t
		}
		claims[c.ItemID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, corrupt(s.path, "iterate claim rows", err)
	}
	return claims, nil
}

// Save replaces the stored claim set. Must be called inside the exclusive
// section; the replacement becomes visible when Unlock commits.
func (s *SQLiteStore) Save(claims map[int]*Claim) error {
	if s.tx == nil {
		return corrupt(s.path, "save outside exclusive section", errors.New("no transaction held"))
	}

	if _, err := s.tx.Exec(`DELETE FROM claims`); err != nil {
		return corrupt(s.path, "clear claims", err)
	}

	stmt, err := s.tx.Prepare(`INSERT INTO claims (item_id, session_id, title, claimed_at, failed_at, failure_count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return corrupt(s.path, "prepare insert", err)
	}
	defer stmt.Close()

	for _, c := range claims {
		var failedAt any
		if c.FailedAt != nil {
			failedAt = *c.FailedAt
		}
		if _, err := stmt.Exec(c.ItemID, c.SessionID, c.Title, c.ClaimedAt, failedAt, c.FailureCount); err != nil {
			return corrupt(s.path, "insert claim", err)
		}
	}
	return nil
}

// Close rolls back any open section and closes the database.
func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
		<-s.sem
	}
	return s.db.Close()
}

// isBusy reports whether the error is SQLite's database-locked condition.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
