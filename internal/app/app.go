// Package app wires the daemon: config, logging, storage, Discord, the
// batch-changed bus, the board, the dispatcher and the HTTP feed.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"eventbot/internal/adapters/discord"
	"eventbot/internal/board"
	"eventbot/internal/config"
	"eventbot/internal/dispatch"
	"eventbot/internal/feed"
	"eventbot/internal/runtime/supervisor"
	logx "eventbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	core     *Core
	discord  *discord.Client
	bus      *gochannel.GoChannel
	board    *board.Refresher
	dispatch *dispatch.Service
	feed     *feed.Service
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	// The channel sink needs the Discord client, which needs a logger;
	// start without a sender and attach it below.
	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	log = log.With(logx.String("comp", "app"))

	dc, err := discord.New(discord.Config{Token: cfg.Discord.Token}, log.With(logx.String("comp", "discord")))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(dc)

	bus := board.NewBus(log.With(logx.String("comp", "bus")))
	core, err := OpenCore(ctx, cfg, board.NewPublisher(bus), log)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	if core.Store == nil {
		_ = bus.Close()
		return nil, fmt.Errorf("storage.driver=none is not supported by the daemon")
	}

	dcfg, _ := mapDispatchConfig(cfg)
	fcfg, _ := mapFeedConfig(cfg)

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		core:     core,
		discord:  dc,
		bus:      bus,
		board:    board.NewRefresher(core.Store, core.Catalog, dc, log.With(logx.String("comp", "board"))),
		dispatch: dispatch.New(dcfg, core.Store, core.Catalog, dc, log.With(logx.String("comp", "dispatch"))),
		feed:     feed.New(fcfg, core.Store, core.Catalog, log.With(logx.String("comp", "feed"))),
	}, nil
}

// Core exposes the engine for in-process callers.
func (a *App) Core() *Core { return a.core }

// Done is closed when the supervisor context is canceled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return Validate(cfg) })

	if err := a.discord.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	cfg := a.cfgm.Get()
	if cfg.Board.Enabled {
		if err := a.board.Start(a.sup.Context(), a.bus); err != nil {
			return err
		}
	}
	if cfg.Dispatch.Enabled {
		if err := a.dispatch.Start(a.sup.Context(), a.bus); err != nil {
			return err
		}
	}
	if err := a.feed.Start(a.sup.Context()); err != nil {
		return err
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Bool("board", cfg.Board.Enabled),
		logx.Bool("dispatch", cfg.Dispatch.Enabled),
		logx.Bool("feed", cfg.Feed.Enabled),
	)
	return nil
}

// applyConfig applies the sections that can change at runtime. Storage,
// catalog, templates, reconcile and the Discord token need a restart.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(mapLogConfig(next))

	for _, s := range sections {
		switch s {
		case "storage", "catalog", "templates", "reconcile":
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		case "discord":
			if prev.Discord.Token != next.Discord.Token {
				a.log.Warn("discord token changed; restart required")
			}
		case "board":
			a.toggle(ctx, "board", next.Board.Enabled,
				func(c context.Context) error { return a.board.Start(c, a.bus) },
				a.board.Stop)
		case "dispatch":
			a.toggle(ctx, "dispatch", next.Dispatch.Enabled,
				func(c context.Context) error { return a.dispatch.Start(c, a.bus) },
				a.dispatch.Stop)
		case "feed":
			fc, err := mapFeedConfig(next)
			if err != nil {
				a.log.Warn("invalid feed config; keeping previous", logx.Err(err))
				continue
			}
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			_ = a.feed.Stop(stopCtx)
			cancel()
			a.feed = feed.New(fc, a.core.Store, a.core.Catalog, a.log.With(logx.String("comp", "feed")))
			if err := a.feed.Start(ctx); err != nil {
				a.log.Warn("feed restart failed", logx.Err(err))
			}
		}
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) toggle(ctx context.Context, name string, enabled bool, start func(context.Context) error, stop func(context.Context) error) {
	if enabled {
		if err := start(ctx); err != nil {
			a.log.Warn("start failed", logx.String("name", name), logx.Err(err))
		}
		return
	}
	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := stop(stopCtx); err != nil {
		a.log.Warn("stop failed", logx.String("name", name), logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("feed", time.Second, a.feed.Stop)
	step("dispatch", 2*time.Second, a.dispatch.Stop)
	step("board", time.Second, a.board.Stop)
	step("bus", time.Second, func(context.Context) error { return a.bus.Close() })
	step("discord", 2*time.Second, func(context.Context) error { return a.discord.Close() })
	step("storage", time.Second, func(context.Context) error { return a.core.Close() })
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}
