package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventbot/internal/batchlock"
	"eventbot/internal/board"
	"eventbot/internal/catalog"
	"eventbot/internal/recurrence"
	"eventbot/internal/schedule"
	"eventbot/internal/storage"
	"eventbot/internal/templates"
	logx "eventbot/pkg/logx"
)

// Config tunes a run.
type Config struct {
	// DefaultTimezone applies when a request leaves Timezone empty.
	DefaultTimezone string
	// Concurrency bounds parallel store calls. Values below 1 mean 1.
	Concurrency int
	// CallTimeout bounds each collaborator call. 0 disables the bound.
	CallTimeout time.Duration
}

// Request is one reconcile invocation for a batch.
type Request struct {
	GuildID   string
	ChannelID string
	Desired   schedule.DesiredSet
	Timezone  string
	Mention   schedule.Mention
	Alert     schedule.AlertProfile
}

type Option func(*Engine)

func WithNotifier(n board.Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLocker(l batchlock.Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

func WithLogger(log logx.Logger) Option { return func(e *Engine) { e.log = log } }

// Engine runs reconciles. It is safe for concurrent use; runs on the same
// batch are serialized only when a Locker is configured.
type Engine struct {
	cfg      Config
	cat      *catalog.Catalog
	calc     *recurrence.Calculator
	store    storage.Store
	lookup   templates.Lookup
	notifier board.Notifier
	locker   batchlock.Locker
	log      logx.Logger
}

func New(cfg Config, cat *catalog.Catalog, calc *recurrence.Calculator, store storage.Store, lookup templates.Lookup, opts ...Option) *Engine {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if calc == nil {
		calc = recurrence.New(cat)
	}
	e := &Engine{
		cfg:    cfg,
		cat:    cat,
		calc:   calc,
		store:  store,
		lookup: lookup,
		locker: batchlock.Noop{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	return e
}

type result struct {
	rowID int64
	err   error
	// updated marks a re-enable whose Update landed before SetEnabled failed.
	updated bool
}

// Reconcile converges the batch to req.Desired.
//
// A *schedule.ValidationError or a missing store aborts the run before any
// write, as does a failed baseline load. Everything after that is best
// effort: failed instances are listed in Report.Errors and the board is
// notified exactly once.
func (e *Engine) Reconcile(ctx context.Context, req Request) (Report, error) {
	if e.store == nil {
		return Report{}, &NotFoundError{Collaborator: "store"}
	}
	started := time.Now()

	req, err := e.normalize(req)
	if err != nil {
		return Report{}, err
	}

	rep := Report{RunID: uuid.NewString(), GuildID: req.GuildID, ChannelID: req.ChannelID}
	log := e.log.With(
		logx.String("run_id", rep.RunID),
		logx.String("guild", req.GuildID),
		logx.String("channel", req.ChannelID),
	)

	release, err := e.locker.Lock(ctx, req.GuildID+":"+req.ChannelID)
	if err != nil {
		return Report{}, fmt.Errorf("lock batch: %w", err)
	}
	defer release()

	base, err := NewLoader(e.store, e.cat, log).Load(ctx, req.GuildID, req.ChannelID)
	if err != nil {
		return Report{}, fmt.Errorf("load baseline: %w", err)
	}

	ops := plan(base, req.Desired)
	fields, prepErrs, err := e.materializeAll(ctx, req, ops)
	if err != nil {
		return Report{}, err
	}

	results := e.execute(ctx, ops, fields, prepErrs)

	for i, o := range ops {
		def, _ := e.cat.Get(o.key.EventType)
		res := results[i]
		if res.err != nil {
			ie := &InstanceError{Key: o.key, Action: o.action, Err: res.err, FieldsUpdated: res.updated}
			var ce *CollaboratorError
			if errors.As(res.err, &ce) {
				ie.Err = ce.Err
			}
			rep.Errors = append(rep.Errors, ie)
			log.Warn("instance failed",
				logx.String("key", o.key.String()),
				logx.String("action", string(o.action)),
				logx.Bool("fields_updated", ie.FieldsUpdated),
				logx.Err(ie.Err),
			)
			continue
		}
		c := Change{Key: o.key, Action: o.action, DisplayName: def.InstanceName(o.key.Instance), RowID: res.rowID}
		rep.add(c)
		log.Info("instance "+string(o.action),
			logx.String("key", o.key.String()),
			logx.Int64("row_id", c.RowID),
		)
	}

	rep.RefreshErr = e.notify(ctx, req.GuildID, req.ChannelID)
	if rep.RefreshErr != nil {
		log.Warn("board refresh failed", logx.Err(rep.RefreshErr))
	}

	rep.Took = time.Since(started)
	e.audit(ctx, log, &rep)

	log.Info("reconcile done",
		logx.Int("created", rep.Created),
		logx.Int("updated", rep.Updated),
		logx.Int("enabled", rep.Enabled),
		logx.Int("disabled", rep.Disabled),
		logx.Int("failed", rep.Failed()),
		logx.Int("orphans", len(base.Orphans)),
		logx.Duration("took", rep.Took),
	)
	return rep, nil
}

// normalize checks the batch-wide parts of req.
func (e *Engine) normalize(req Request) (Request, error) {
	req.GuildID = strings.TrimSpace(req.GuildID)
	req.ChannelID = strings.TrimSpace(req.ChannelID)
	if req.GuildID == "" {
		return req, &schedule.ValidationError{Field: "guild_id", Reason: "required"}
	}
	if req.ChannelID == "" {
		return req, &schedule.ValidationError{Field: "channel_id", Reason: "required"}
	}

	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = e.cfg.DefaultTimezone
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return req, &schedule.ValidationError{Field: "timezone", Value: req.Timezone, Expected: "an IANA zone name", Reason: err.Error()}
	}

	if req.Mention.Kind == "" {
		req.Mention = schedule.Mention{Kind: schedule.MentionNone}
	}
	if err := req.Mention.Validate(); err != nil {
		return req, err
	}
	if req.Alert.IsZero() {
		req.Alert = schedule.AlertProfile{Name: schedule.DefaultAlertProfile}
	}
	if err := req.Alert.Validate(); err != nil {
		return req, err
	}
	if err := schedule.ValidateSet(e.cat, req.Desired); err != nil {
		return req, err
	}
	return req, nil
}

// materializeAll computes fields for every op that writes them. Validation
// errors abort; other failures are attached to their op.
func (e *Engine) materializeAll(ctx context.Context, req Request, ops []op) ([]schedule.Fields, []error, error) {
	m := NewMaterializer(e.calc, templates.Memoize(e.lookup), e.cfg.CallTimeout)
	batch := schedule.Batch{GuildID: req.GuildID, ChannelID: req.ChannelID}

	fields := make([]schedule.Fields, len(ops))
	errs := make([]error, len(ops))
	for i, o := range ops {
		if o.action == ActionDisabled {
			continue
		}
		def, _ := e.cat.Get(o.key.EventType)
		f, err := m.Materialize(ctx, MaterializeInput{
			Def:      def,
			Batch:    batch,
			Desired:  o.desired,
			Timezone: req.Timezone,
			Mention:  req.Mention,
			Alert:    req.Alert,
		})
		if schedule.IsValidation(err) {
			return nil, nil, err
		}
		fields[i], errs[i] = f, err
	}
	return fields, errs, nil
}

// execute applies ops with at most cfg.Concurrency calls in flight. Results
// are indexed like ops.
func (e *Engine) execute(ctx context.Context, ops []op, fields []schedule.Fields, prepErrs []error) []result {
	results := make([]result, len(ops))
	sem := make(chan struct{}, e.cfg.Concurrency)
	var wg sync.WaitGroup

	for i := range ops {
		if prepErrs[i] != nil {
			results[i] = result{rowID: ops[i].row.ID, err: prepErrs[i]}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.apply(ctx, ops[i], fields[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (e *Engine) apply(ctx context.Context, o op, f schedule.Fields) result {
	switch o.action {
	case ActionCreated:
		var id int64
		err := e.call(ctx, func(ctx context.Context) error {
			var err error
			id, err = e.store.Create(ctx, f)
			return err
		})
		return result{rowID: id, err: err}

	case ActionUpdated:
		err := e.call(ctx, func(ctx context.Context) error { return e.store.Update(ctx, o.row.ID, f) })
		return result{rowID: o.row.ID, err: err}

	case ActionEnabled:
		if err := e.call(ctx, func(ctx context.Context) error { return e.store.Update(ctx, o.row.ID, f) }); err != nil {
			return result{rowID: o.row.ID, err: err}
		}
		err := e.call(ctx, func(ctx context.Context) error { return e.store.SetEnabled(ctx, o.row.ID, true) })
		return result{rowID: o.row.ID, err: err, updated: err != nil}

	case ActionDisabled:
		err := e.call(ctx, func(ctx context.Context) error { return e.store.SetEnabled(ctx, o.row.ID, false) })
		return result{rowID: o.row.ID, err: err}
	}
	return result{err: fmt.Errorf("unknown action %q", o.action)}
}

func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// notify runs even when the caller's context is already done.
func (e *Engine) notify(ctx context.Context, guildID, channelID string) error {
	if e.notifier == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	timeout := e.cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.notifier.OnBatchChanged(ctx, guildID, channelID)
}

func (e *Engine) audit(ctx context.Context, log logx.Logger, rep *Report) {
	entry := storage.AuditEntry{
		At:        time.Now(),
		RunID:     rep.RunID,
		GuildID:   rep.GuildID,
		ChannelID: rep.ChannelID,
		Action:    "reconcile",
		Created:   rep.Created,
		Updated:   rep.Updated,
		Enabled:   rep.Enabled,
		Disabled:  rep.Disabled,
		Failed:    rep.Failed(),
		TookMS:    rep.Took.Milliseconds(),
	}
	if len(rep.Errors) > 0 {
		msgs := make([]string, 0, len(rep.Errors))
		for _, ie := range rep.Errors {
			msgs = append(msgs, ie.Error())
		}
		entry.Error = strings.Join(msgs, "; ")
	}
	if len(rep.PerEvent) > 0 {
		counts := make(map[string]int, len(rep.PerEvent))
		for ev, cs := range rep.PerEvent {
			counts[ev] = len(cs)
		}
		if b, err := json.Marshal(map[string]any{"per_event": counts}); err == nil {
			entry.MetaJSON = string(b)
		}
	}
	err := e.call(context.WithoutCancel(ctx), func(ctx context.Context) error { return e.store.AppendAudit(ctx, entry) })
	if err != nil {
		log.Warn("audit append failed", logx.Err(err))
	}
}
