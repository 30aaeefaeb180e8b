package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"eventbot/internal/schedule"
	logx "eventbot/pkg/logx"
)

// diskvStore keeps one JSON file per record.
//
// Keys (dash separated, mapped to directories):
//   - rows-<guild>-<channel>-<id>
//   - audit-<yyyymmdd>-<unixnano>
//   - dedup-<fnv64 of key>
//
// The id index is rebuilt from the key space on open.
type diskvStore struct {
	d   *diskv.Diskv
	log logx.Logger
	now func() time.Time

	mu     sync.Mutex
	nextID int64
	index  map[int64]string
}

type diskvRow struct {
	ID            int64     `json:"id"`
	GuildID       string    `json:"guild_id"`
	ChannelID     string    `json:"channel_id"`
	EventType     string    `json:"event_type"`
	Instance      string    `json:"instance"`
	Hour          int       `json:"hour"`
	Minute        int       `json:"minute"`
	Day           int       `json:"window_day,omitempty"`
	Timezone      string    `json:"timezone"`
	StartAt       time.Time `json:"start_at"`
	RepeatMinutes int       `json:"repeat_minutes"`
	Mention       string    `json:"mention"`
	AlertProfile  string    `json:"alert_profile"`
	AlertOffsets  []int     `json:"alert_offsets,omitempty"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	ThumbnailURL  string    `json:"thumbnail_url,omitempty"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type dedupRecord struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

func openDiskv(cfg Config, log logx.Logger) (Store, error) {
	base := strings.TrimSpace(cfg.Path)
	if base == "" {
		return nil, errors.New("storage.path is required for diskv driver")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	cache := cfg.CacheSizeMax
	if cache == 0 {
		cache = 1024 * 1024
	}
	st := &diskvStore{
		d: diskv.New(diskv.Options{
			BasePath:          base,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      cache,
		}),
		log:   log,
		now:   time.Now,
		index: map[int64]string{},
	}
	for key := range st.d.KeysPrefix("rows-", nil) {
		id, err := idFromKey(key)
		if err != nil {
			log.Warn("diskv: skipping unrecognised key", logx.String("key", key))
			continue
		}
		st.index[id] = key
		if id > st.nextID {
			st.nextID = id
		}
	}
	return st, nil
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, "-")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}

func rowKey(b schedule.Batch, id int64) string {
	return fmt.Sprintf("rows-%s-%s-%d", b.GuildID, b.ChannelID, id)
}

func idFromKey(key string) (int64, error) {
	i := strings.LastIndexByte(key, '-')
	if i < 0 {
		return 0, fmt.Errorf("no id in %q", key)
	}
	return strconv.ParseInt(key[i+1:], 10, 64)
}

func checkBatch(b schedule.Batch) error {
	for _, s := range []string{b.GuildID, b.ChannelID} {
		if s == "" || strings.ContainsAny(s, "-/\\") {
			return fmt.Errorf("diskv: unsupported batch id %q", s)
		}
	}
	return nil
}

func (s *diskvStore) Close() error { return nil }

func (s *diskvStore) Create(ctx context.Context, f schedule.Fields) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkBatch(f.Batch); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	now := s.now().UTC()
	rec := toDiskvRow(schedule.Row{ID: id, Fields: f, Enabled: true, CreatedAt: now, UpdatedAt: now})
	key := rowKey(f.Batch, id)
	if err := s.write(key, rec); err != nil {
		return 0, err
	}
	s.index[id] = key
	return id, nil
}

func (s *diskvStore) Update(ctx context.Context, id int64, f schedule.Fields) error {
	return s.modify(ctx, id, func(r *schedule.Row) {
		batch := r.Batch
		r.Fields = f
		r.Batch = batch
	})
}

func (s *diskvStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.modify(ctx, id, func(r *schedule.Row) { r.Enabled = enabled })
}

func (s *diskvStore) modify(ctx context.Context, id int64, fn func(*schedule.Row)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	r, err := s.read(key)
	if err != nil {
		return err
	}
	fn(&r)
	r.UpdatedAt = s.now().UTC()
	return s.write(key, toDiskvRow(r))
}

func (s *diskvStore) Get(ctx context.Context, id int64) (schedule.Row, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Row{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.index[id]
	if !ok {
		return schedule.Row{}, ErrNotFound
	}
	return s.read(key)
}

func (s *diskvStore) ListByBatch(ctx context.Context, b schedule.Batch) ([]schedule.Row, error) {
	if err := checkBatch(b); err != nil {
		return nil, nil
	}
	return s.scan(ctx, fmt.Sprintf("rows-%s-%s-", b.GuildID, b.ChannelID), func(schedule.Row) bool { return true })
}

func (s *diskvStore) ListEnabled(ctx context.Context) ([]schedule.Row, error) {
	return s.scan(ctx, "rows-", func(r schedule.Row) bool { return r.Enabled })
}

func (s *diskvStore) scan(ctx context.Context, prefix string, keep func(schedule.Row) bool) ([]schedule.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []schedule.Row
	for key := range s.d.KeysPrefix(prefix, ctx.Done()) {
		r, err := s.read(key)
		if err != nil {
			s.log.Warn("diskv: unreadable row", logx.String("key", key), logx.Err(err))
			continue
		}
		if keep(r) {
			out = append(out, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *diskvStore) read(key string) (schedule.Row, error) {
	b, err := s.d.Read(key)
	if err != nil {
		return schedule.Row{}, err
	}
	var rec diskvRow
	if err := json.Unmarshal(b, &rec); err != nil {
		return schedule.Row{}, err
	}
	return rec.row(), nil
}

func (s *diskvStore) write(key string, rec diskvRow) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.d.Write(key, b)
}

func (s *diskvStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = s.now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("audit-%s-%d", e.At.UTC().Format("20060102"), e.At.UnixNano())
	return s.d.Write(key, b)
}

func (s *diskvStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	b, err := json.Marshal(dedupRecord{Key: key, Until: until.UnixMilli()})
	if err != nil {
		return err
	}
	return s.d.Write(dedupKey(key), b)
}

func (s *diskvStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	dk := dedupKey(key)
	if !s.d.Has(dk) {
		return time.Time{}, false, nil
	}
	b, err := s.d.Read(dk)
	if err != nil {
		return time.Time{}, false, err
	}
	var rec dedupRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.Key != key {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(rec.Until), true, nil
}

func dedupKey(key string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("dedup-%016x", h.Sum64())
}

func toDiskvRow(r schedule.Row) diskvRow {
	return diskvRow{
		ID:            r.ID,
		GuildID:       r.Batch.GuildID,
		ChannelID:     r.Batch.ChannelID,
		EventType:     r.Key.EventType,
		Instance:      r.Key.Instance,
		Hour:          r.Hour,
		Minute:        r.Minute,
		Day:           r.Day,
		Timezone:      r.Timezone,
		StartAt:       r.StartAt.UTC(),
		RepeatMinutes: r.RepeatMinutes,
		Mention:       r.Mention.String(),
		AlertProfile:  r.Alert.Name,
		AlertOffsets:  r.Alert.Offsets,
		Title:         r.Payload.Title,
		Description:   r.Payload.Description,
		ImageURL:      r.Payload.ImageURL,
		ThumbnailURL:  r.Payload.ThumbnailURL,
		Enabled:       r.Enabled,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (rec diskvRow) row() schedule.Row {
	return schedule.Row{
		ID: rec.ID,
		Fields: schedule.Fields{
			Batch:         schedule.Batch{GuildID: rec.GuildID, ChannelID: rec.ChannelID},
			Key:           schedule.InstanceKey{EventType: rec.EventType, Instance: rec.Instance},
			Hour:          rec.Hour,
			Minute:        rec.Minute,
			Day:           rec.Day,
			Timezone:      rec.Timezone,
			StartAt:       rec.StartAt,
			RepeatMinutes: rec.RepeatMinutes,
			Mention:       decodeMention(rec.Mention),
			Alert:         schedule.AlertProfile{Name: rec.AlertProfile, Offsets: rec.AlertOffsets},
			Payload: schedule.Payload{
				Title:        rec.Title,
				Description:  rec.Description,
				ImageURL:     rec.ImageURL,
				ThumbnailURL: rec.ThumbnailURL,
			},
		},
		Enabled:   rec.Enabled,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
