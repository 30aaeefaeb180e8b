package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"eventbot/internal/schedule"
)

// Memory is an in-process Store. The zero value is not usable; call NewMemory.
type Memory struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64
	rows   map[int64]schedule.Row
	audit  []AuditEntry
	dedup  map[string]time.Time
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		now:   time.Now,
		rows:  map[int64]schedule.Row{},
		dedup: map[string]time.Time{},
	}
}

func (m *Memory) Create(ctx context.Context, f schedule.Fields) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.nextID++
	now := m.now()
	m.rows[m.nextID] = schedule.Row{ID: m.nextID, Fields: cloneFields(f), Enabled: true, CreatedAt: now, UpdatedAt: now}
	return m.nextID, nil
}

func (m *Memory) Update(ctx context.Context, id int64, f schedule.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	r, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	batch := r.Batch
	r.Fields = cloneFields(f)
	r.Batch = batch
	r.UpdatedAt = m.now()
	m.rows[id] = r
	return nil
}

func (m *Memory) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	r, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	r.Enabled = enabled
	r.UpdatedAt = m.now()
	m.rows[id] = r
	return nil
}

func (m *Memory) Get(ctx context.Context, id int64) (schedule.Row, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Row{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return schedule.Row{}, ErrNotFound
	}
	r.Fields = cloneFields(r.Fields)
	return r, nil
}

func (m *Memory) ListByBatch(ctx context.Context, b schedule.Batch) ([]schedule.Row, error) {
	return m.list(ctx, func(r schedule.Row) bool { return r.Batch == b })
}

func (m *Memory) ListEnabled(ctx context.Context) ([]schedule.Row, error) {
	return m.list(ctx, func(r schedule.Row) bool { return r.Enabled })
}

func (m *Memory) list(ctx context.Context, keep func(schedule.Row) bool) ([]schedule.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []schedule.Row
	for _, r := range m.rows {
		if keep(r) {
			r.Fields = cloneFields(r.Fields)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Seed inserts a row verbatim, keeping its id, flags and timestamps. It is
// meant for fixtures that need legacy or disabled rows.
func (m *Memory) Seed(r schedule.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextID++
		r.ID = m.nextID
	} else if r.ID > m.nextID {
		m.nextID = r.ID
	}
	r.Fields = cloneFields(r.Fields)
	m.rows[r.ID] = r
}

func (m *Memory) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = m.now()
	}
	m.audit = append(m.audit, e)
	return nil
}

// Audits returns a copy of the audit log.
func (m *Memory) Audits() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.audit...)
}

func (m *Memory) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedup[key] = until
	return nil
}

func (m *Memory) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.dedup[strings.TrimSpace(key)]
	return until, ok, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func cloneFields(f schedule.Fields) schedule.Fields {
	f.Alert.Offsets = append([]int(nil), f.Alert.Offsets...)
	return f
}
