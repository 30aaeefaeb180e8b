package config

import (
	"reflect"

	logx "eventbot/pkg/logx"
)

// SummarizeChange lists the changed top-level sections plus log fields that
// never include secrets.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var changed []string
	var attrs []logx.Field

	if oldCfg.Discord != newCfg.Discord {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_changed", oldCfg.Discord.Token != newCfg.Discord.Token),
			logx.Bool("discord.log_channel_set", newCfg.Discord.LogChannelID != ""),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.discord", newCfg.Logging.Discord.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Catalog != newCfg.Catalog {
		changed = append(changed, "catalog")
	}
	if oldCfg.Templates != newCfg.Templates {
		changed = append(changed, "templates")
	}
	if !reflect.DeepEqual(redactLock(oldCfg.Reconcile), redactLock(newCfg.Reconcile)) {
		changed = append(changed, "reconcile")
		attrs = append(attrs,
			logx.Int("reconcile.concurrency", newCfg.Reconcile.Concurrency),
			logx.String("reconcile.batch_lock", newCfg.Reconcile.BatchLock.Driver),
		)
	}
	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs, logx.Bool("dispatch.enabled", newCfg.Dispatch.Enabled))
	}
	if oldCfg.Board != newCfg.Board {
		changed = append(changed, "board")
		attrs = append(attrs, logx.Bool("board.enabled", newCfg.Board.Enabled))
	}
	if oldCfg.Feed != newCfg.Feed {
		changed = append(changed, "feed")
		attrs = append(attrs,
			logx.Bool("feed.enabled", newCfg.Feed.Enabled),
			logx.String("feed.addr", newCfg.Feed.Addr),
			logx.Bool("feed.token_set", newCfg.Feed.Token != ""),
		)
	}
	return changed, attrs
}

// redactLock keeps password changes visible without comparing the value
// itself in logs.
func redactLock(r ReconcileConfig) ReconcileConfig {
	if r.BatchLock.Password != "" {
		r.BatchLock.Password = "set"
	}
	return r
}
