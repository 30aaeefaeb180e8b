package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

//go:generate mockgen -source=open.go -destination=storagemock/store.go -package=storagemock

// Store is the persistence API used by the reconcile engine, the board and
// the dispatcher. Lists are ordered by ascending row id and include disabled
// rows unless stated otherwise.
type Store interface {
	// Create inserts an enabled row and returns its id.
	Create(ctx context.Context, f schedule.Fields) (int64, error)
	// Update rewrites every field of row id except its batch.
	Update(ctx context.Context, id int64, f schedule.Fields) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Get(ctx context.Context, id int64) (schedule.Row, error)
	ListByBatch(ctx context.Context, b schedule.Batch) ([]schedule.Row, error)
	// ListEnabled returns enabled rows across all batches.
	ListEnabled(ctx context.Context) ([]schedule.Row, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, log)
	case "diskv", "file":
		return openDiskv(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
