package app

import (
	"context"
	"fmt"
	"strings"

	"eventbot/internal/batchlock"
	"eventbot/internal/board"
	"eventbot/internal/catalog"
	"eventbot/internal/config"
	"eventbot/internal/reconcile"
	"eventbot/internal/recurrence"
	"eventbot/internal/storage"
	"eventbot/internal/templates"
	logx "eventbot/pkg/logx"
)

// Core is what both the daemon and the admin CLI need: the catalog, the
// store and a reconcile engine.
type Core struct {
	Catalog *catalog.Catalog
	Store   storage.Store
	Engine  *reconcile.Engine
}

// OpenCore builds Core from cfg. notifier may be nil, in which case batch
// changes are only logged.
func OpenCore(ctx context.Context, cfg *config.Config, notifier board.Notifier, log logx.Logger) (*Core, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	sc, _ := mapStorageConfig(cfg)
	store, err := storage.Open(ctx, sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	lc, _ := mapLockConfig(cfg)
	locker, err := batchlock.New(lc, log.With(logx.String("comp", "batchlock")))
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	if notifier == nil {
		notifier = board.LogNotifier{Log: log.With(logx.String("comp", "board"))}
	}
	rc, _ := mapReconcileConfig(cfg)
	eng := reconcile.New(rc, cat, recurrence.New(cat), store, templateLookup(cfg),
		reconcile.WithNotifier(notifier),
		reconcile.WithLocker(locker),
		reconcile.WithLogger(log.With(logx.String("comp", "reconcile"))),
	)
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	return &Core{Catalog: cat, Store: store, Engine: eng}, nil
}

func (c *Core) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

func templateLookup(cfg *config.Config) templates.Lookup {
	if dir := strings.TrimSpace(cfg.Templates.Dir); dir != "" {
		return templates.Dir{Path: dir}
	}
	return templates.Static{}
}
