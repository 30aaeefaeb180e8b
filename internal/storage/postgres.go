package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	st := &postgresStore{pool: pool, log: log}
	if err := st.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store ready", logx.String("host", pcfg.ConnConfig.Host))
	return st, nil
}

func (s *postgresStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/postgres.sql")
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, string(b))
	return err
}

func (s *postgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *postgresStore) Create(ctx context.Context, f schedule.Fields) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO instances(guild_id, channel_id, event_type, instance, hour, minute, window_day, timezone,
			start_at, repeat_minutes, mention, alert_profile, alert_offsets, title, description, image_url,
			thumbnail_url, enabled)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,TRUE)
		 RETURNING id`,
		f.Batch.GuildID, f.Batch.ChannelID, f.Key.EventType, f.Key.Instance, f.Hour, f.Minute, f.Day, f.Timezone,
		f.StartAt.UTC(), f.RepeatMinutes, f.Mention.String(), f.Alert.Name, toInt32s(f.Alert.Offsets),
		f.Payload.Title, f.Payload.Description, f.Payload.ImageURL, f.Payload.ThumbnailURL,
	).Scan(&id)
	return id, err
}

func (s *postgresStore) Update(ctx context.Context, id int64, f schedule.Fields) error {
	ct, err := s.pool.Exec(ctx,
		`UPDATE instances SET event_type=$1, instance=$2, hour=$3, minute=$4, window_day=$5, timezone=$6,
			start_at=$7, repeat_minutes=$8, mention=$9, alert_profile=$10, alert_offsets=$11, title=$12,
			description=$13, image_url=$14, thumbnail_url=$15, updated_at=NOW()
		 WHERE id=$16`,
		f.Key.EventType, f.Key.Instance, f.Hour, f.Minute, f.Day, f.Timezone, f.StartAt.UTC(), f.RepeatMinutes,
		f.Mention.String(), f.Alert.Name, toInt32s(f.Alert.Offsets), f.Payload.Title, f.Payload.Description,
		f.Payload.ImageURL, f.Payload.ThumbnailURL, id,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	ct, err := s.pool.Exec(ctx, `UPDATE instances SET enabled=$1, updated_at=NOW() WHERE id=$2`, enabled, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id int64) (schedule.Row, error) {
	r, err := scanPostgresRow(s.pool.QueryRow(ctx, `SELECT `+instanceColumns+` FROM instances WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Row{}, ErrNotFound
	}
	return r, err
}

func (s *postgresStore) ListByBatch(ctx context.Context, b schedule.Batch) ([]schedule.Row, error) {
	return s.query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE guild_id = $1 AND channel_id = $2 ORDER BY id`,
		b.GuildID, b.ChannelID)
}

func (s *postgresStore) ListEnabled(ctx context.Context) ([]schedule.Row, error) {
	return s.query(ctx, `SELECT `+instanceColumns+` FROM instances WHERE enabled ORDER BY id`)
}

func (s *postgresStore) query(ctx context.Context, q string, args ...any) ([]schedule.Row, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Row
	for rows.Next() {
		r, err := scanPostgresRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanPostgresRow(sc rowScanner) (schedule.Row, error) {
	var (
		r       schedule.Row
		mention string
		offsets []int32
	)
	err := sc.Scan(&r.ID, &r.Batch.GuildID, &r.Batch.ChannelID, &r.Key.EventType, &r.Key.Instance,
		&r.Hour, &r.Minute, &r.Day, &r.Timezone, &r.StartAt, &r.RepeatMinutes, &mention, &r.Alert.Name, &offsets,
		&r.Payload.Title, &r.Payload.Description, &r.Payload.ImageURL, &r.Payload.ThumbnailURL,
		&r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return schedule.Row{}, err
	}
	r.Mention = decodeMention(mention)
	for _, o := range offsets {
		r.Alert.Offsets = append(r.Alert.Offsets, int(o))
	}
	return r, nil
}

func (s *postgresStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit(at, run_id, guild_id, channel_id, action, created, updated, enabled, disabled, failed, err, took_ms, meta)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.At.UTC(), e.RunID, e.GuildID, e.ChannelID, e.Action, e.Created, e.Updated, e.Enabled, e.Disabled,
		e.Failed, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

func (s *postgresStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dedup(key, until) VALUES($1,$2)
		 ON CONFLICT (key) DO UPDATE SET until = EXCLUDED.until`,
		key, until.UTC(),
	)
	return err
}

func (s *postgresStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var until time.Time
	err := s.pool.QueryRow(ctx, `SELECT until FROM dedup WHERE key = $1`, key).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return until, true, nil
}

func toInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
