// Package ledger defines the durable claim ledger: the record of which
// work item is held by which session, with per-item failure history.
//
// The ledger is the single shared mutable resource in the orchestrator.
// It is accessed through an injectable Store that pairs load/save with a
// cross-process exclusive section, so that concurrent processes on the
// same host can perform atomic read-modify-write cycles. Two store
// implementations are provided:
//
//   - FileStore: a JSON state file guarded by an flock(2) lock file,
//     written atomically via temp-file-and-rename.
//   - SQLiteStore: a single-table SQLite database using immediate
//     transactions as the exclusive section.
//
// Store read/write failures are reported as ledger corruption and must
// abort the run: once claim state cannot be trusted, double-claiming
// becomes possible.
package ledger
