// Package storage persists notification instances, the reconcile audit log
// and the alert dedup marks.
//
// Drivers:
//   - "memory": process-local maps, for tests and dry runs
//   - "sqlite": SQLite file via modernc.org/sqlite (no cgo)
//   - "postgres": PostgreSQL via pgx
//   - "diskv": one file per record under a directory tree
//
// Rows are never deleted; disabling flips Enabled.
package storage
