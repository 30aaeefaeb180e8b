package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	now func() time.Time

	opCount    atomic.Uint64
	pruneEvery uint64
}

const instanceColumns = `id, guild_id, channel_id, event_type, instance, hour, minute, window_day, timezone,
	start_at, repeat_minutes, mention, alert_profile, alert_offsets, title, description, image_url,
	thumbnail_url, enabled, created_at, updated_at`

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, now: time.Now, pruneEvery: 500}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/sqlite.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, f schedule.Fields) (int64, error) {
	now := formatTime(s.now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO instances(guild_id, channel_id, event_type, instance, hour, minute, window_day, timezone,
			start_at, repeat_minutes, mention, alert_profile, alert_offsets, title, description, image_url,
			thumbnail_url, enabled, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)`,
		f.Batch.GuildID, f.Batch.ChannelID, f.Key.EventType, f.Key.Instance, f.Hour, f.Minute, f.Day, f.Timezone,
		formatTime(f.StartAt), f.RepeatMinutes, f.Mention.String(), f.Alert.Name, encodeOffsets(f.Alert.Offsets),
		f.Payload.Title, f.Payload.Description, f.Payload.ImageURL, f.Payload.ThumbnailURL, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) Update(ctx context.Context, id int64, f schedule.Fields) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE instances SET event_type=?, instance=?, hour=?, minute=?, window_day=?, timezone=?, start_at=?,
			repeat_minutes=?, mention=?, alert_profile=?, alert_offsets=?, title=?, description=?, image_url=?,
			thumbnail_url=?, updated_at=?
		 WHERE id=?`,
		f.Key.EventType, f.Key.Instance, f.Hour, f.Minute, f.Day, f.Timezone, formatTime(f.StartAt),
		f.RepeatMinutes, f.Mention.String(), f.Alert.Name, encodeOffsets(f.Alert.Offsets), f.Payload.Title,
		f.Payload.Description, f.Payload.ImageURL, f.Payload.ThumbnailURL, formatTime(s.now()), id,
	)
	return affectedOne(res, err)
}

func (s *sqliteStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE instances SET enabled=?, updated_at=? WHERE id=?`, v, formatTime(s.now()), id)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id int64) (schedule.Row, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id)
	r, err := scanSQLiteRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Row{}, ErrNotFound
	}
	return r, err
}

func (s *sqliteStore) ListByBatch(ctx context.Context, b schedule.Batch) ([]schedule.Row, error) {
	return s.query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE guild_id = ? AND channel_id = ? ORDER BY id`,
		b.GuildID, b.ChannelID)
}

func (s *sqliteStore) ListEnabled(ctx context.Context) ([]schedule.Row, error) {
	return s.query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE enabled = 1 ORDER BY id`)
}

func (s *sqliteStore) query(ctx context.Context, q string, args ...any) ([]schedule.Row, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Row
	for rows.Next() {
		r, err := scanSQLiteRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRow(sc rowScanner) (schedule.Row, error) {
	var (
		r                             schedule.Row
		startAt, createdAt, updatedAt string
		mention, offsets              string
		enabled                       int
	)
	err := sc.Scan(&r.ID, &r.Batch.GuildID, &r.Batch.ChannelID, &r.Key.EventType, &r.Key.Instance,
		&r.Hour, &r.Minute, &r.Day, &r.Timezone, &startAt, &r.RepeatMinutes, &mention, &r.Alert.Name, &offsets,
		&r.Payload.Title, &r.Payload.Description, &r.Payload.ImageURL, &r.Payload.ThumbnailURL,
		&enabled, &createdAt, &updatedAt)
	if err != nil {
		return schedule.Row{}, err
	}
	r.StartAt = parseTime(startAt)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.Mention = decodeMention(mention)
	r.Alert.Offsets = decodeOffsets(offsets)
	r.Enabled = enabled != 0
	return r, nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, run_id, guild_id, channel_id, action, created, updated, enabled, disabled, failed, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		formatTime(e.At), e.RunID, e.GuildID, e.ChannelID, e.Action, e.Created, e.Updated, e.Enabled,
		e.Disabled, e.Failed, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneExpired(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) pruneExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, s.now().UnixMilli())
	return err
}
