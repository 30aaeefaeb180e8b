package app

import (
	"fmt"
	"strings"
	"time"

	"eventbot/internal/batchlock"
	"eventbot/internal/config"
	"eventbot/internal/dispatch"
	"eventbot/internal/feed"
	"eventbot/internal/reconcile"
	"eventbot/internal/storage"
	logx "eventbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Channel: logx.ChannelConfig{
			Enabled:    cfg.Logging.Discord.Enabled,
			ChannelID:  strings.TrimSpace(cfg.Discord.LogChannelID),
			MinLevel:   cfg.Logging.Discord.MinLevel,
			RatePerSec: cfg.Logging.Discord.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "memory", "none":
		return storage.Config{Driver: driver}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, fmt.Errorf("storage.dsn is required when storage.driver=postgres")
		}
		return storage.Config{Driver: driver, DSN: strings.TrimSpace(sc.DSN), MaxConns: sc.MaxConns}, nil
	case "diskv", "file":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=diskv")
		}
		return storage.Config{Driver: driver, Path: path, CacheSizeMax: sc.CacheSizeMax}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapReconcileConfig(cfg *config.Config) (reconcile.Config, error) {
	rc := cfg.Reconcile
	if rc.Concurrency < 0 {
		return reconcile.Config{}, fmt.Errorf("reconcile.concurrency must be >= 0")
	}
	if tz := strings.TrimSpace(rc.DefaultTimezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return reconcile.Config{}, fmt.Errorf("reconcile.default_timezone: invalid %q: %w", tz, err)
		}
	}
	timeout, err := config.ParseDurationOrDefault("reconcile.call_timeout", rc.CallTimeout, 10*time.Second)
	if err != nil {
		return reconcile.Config{}, err
	}
	return reconcile.Config{
		DefaultTimezone: strings.TrimSpace(rc.DefaultTimezone),
		Concurrency:     rc.Concurrency,
		CallTimeout:     timeout,
	}, nil
}

func mapLockConfig(cfg *config.Config) (batchlock.Config, error) {
	lc := cfg.Reconcile.BatchLock
	ttl, err := config.ParseDurationField("reconcile.batch_lock.ttl", lc.TTL)
	if err != nil {
		return batchlock.Config{}, err
	}
	wait, err := config.ParseDurationField("reconcile.batch_lock.wait", lc.Wait)
	if err != nil {
		return batchlock.Config{}, err
	}
	return batchlock.Config{
		Driver:   lc.Driver,
		Addr:     strings.TrimSpace(lc.Addr),
		Password: lc.Password,
		DB:       lc.DB,
		TTL:      ttl,
		Wait:     wait,
	}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	dc := cfg.Dispatch
	if dc.RatePerSec < 0 || dc.Burst < 0 {
		return dispatch.Config{}, fmt.Errorf("dispatch.rate_per_sec and dispatch.burst must be >= 0")
	}
	out := dispatch.Config{Enabled: dc.Enabled, RatePerSec: dc.RatePerSec, Burst: dc.Burst}
	var err error
	if out.SendTimeout, err = config.ParseDurationField("dispatch.send_timeout", dc.SendTimeout); err != nil {
		return dispatch.Config{}, err
	}
	if out.ResyncEvery, err = config.ParseDurationField("dispatch.resync_every", dc.ResyncEvery); err != nil {
		return dispatch.Config{}, err
	}
	if out.Grace, err = config.ParseDurationField("dispatch.grace", dc.Grace); err != nil {
		return dispatch.Config{}, err
	}
	return out, nil
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	fc := cfg.Feed
	out := feed.Config{
		Enabled:       fc.Enabled,
		Addr:          strings.TrimSpace(fc.Addr),
		Token:         strings.TrimSpace(fc.Token),
		AllowInsecure: fc.AllowInsecure,
		Pprof:         fc.Pprof,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("feed.read_timeout", fc.ReadTimeout, 10*time.Second); err != nil {
		return feed.Config{}, err
	}
	// pprof profiles run longer than a normal response.
	if out.WriteTimeout, err = config.ParseDurationField("feed.write_timeout", fc.WriteTimeout); err != nil {
		return feed.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("feed.idle_timeout", fc.IdleTimeout, time.Minute); err != nil {
		return feed.Config{}, err
	}
	return out, nil
}

// Validate checks every section the way a start or a hot reload would.
func Validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapReconcileConfig(cfg); err != nil {
		return err
	}
	if _, err := mapLockConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if _, err := mapFeedConfig(cfg); err != nil {
		return err
	}
	if cfg.Logging.Discord.Enabled && strings.TrimSpace(cfg.Discord.LogChannelID) == "" {
		return fmt.Errorf("logging.discord.enabled requires discord.log_channel_id")
	}
	return nil
}
