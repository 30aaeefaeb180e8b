package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: row not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values:
//   - "memory" (default when empty)
//   - "sqlite": Path is the database file
//   - "postgres": DSN is a libpq-style connection string or URL
//   - "diskv": Path is the base directory
//
// Driver "none" disables storage; Open then returns a nil Store.
type Config struct {
	Driver       string
	Path         string
	DSN          string
	BusyTimeout  time.Duration // sqlite only; 0 means default
	MaxConns     int32         // postgres only; 0 means pgx default
	CacheSizeMax uint64        // diskv only; bytes of read cache
}

// AuditEntry records one reconcile run. Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time
	RunID     string
	GuildID   string
	ChannelID string
	Action    string
	Created   int
	Updated   int
	Enabled   int
	Disabled  int
	Failed    int
	Error     string
	TookMS    int64
	MetaJSON  string
}
