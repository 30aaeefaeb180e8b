package config

// Config is the daemon and CLI configuration file. JSON and YAML are both
// accepted; unknown keys are rejected.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Catalog   CatalogConfig   `json:"catalog,omitempty"`
	Templates TemplatesConfig `json:"templates,omitempty"`
	Reconcile ReconcileConfig `json:"reconcile"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Board     BoardConfig     `json:"board"`
	Feed      FeedConfig      `json:"feed,omitempty"`
}

// DiscordConfig holds the bot credentials. The token may be left empty and
// supplied through DISCORD_TOKEN instead.
type DiscordConfig struct {
	Token        string `json:"token,omitempty"`
	LogChannelID string `json:"log_channel_id,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingDiscord mirrors log lines into discord.log_channel_id.
type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./eventbot.db" }
type StorageConfig struct {
	Driver       string `json:"driver"`
	Path         string `json:"path,omitempty"`
	DSN          string `json:"dsn,omitempty"`
	BusyTimeout  string `json:"busy_timeout,omitempty"` // sqlite
	MaxConns     int32  `json:"max_conns,omitempty"`    // postgres
	CacheSizeMax uint64 `json:"cache_size_max,omitempty"`
}

// CatalogConfig optionally replaces the built-in event catalog.
type CatalogConfig struct {
	Path string `json:"path,omitempty"`
}

// TemplatesConfig points at a directory of <event_type>.yaml files.
type TemplatesConfig struct {
	Dir string `json:"dir,omitempty"`
}

type ReconcileConfig struct {
	DefaultTimezone string          `json:"default_timezone,omitempty"`
	Concurrency     int             `json:"concurrency,omitempty"`
	CallTimeout     string          `json:"call_timeout,omitempty"`
	BatchLock       BatchLockConfig `json:"batch_lock,omitempty"`
}

// BatchLockConfig serializes runs on one batch across processes.
// Driver is "none" (default) or "redis".
type BatchLockConfig struct {
	Driver   string `json:"driver,omitempty"`
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	TTL      string `json:"ttl,omitempty"`
	Wait     string `json:"wait,omitempty"`
}

type DispatchConfig struct {
	Enabled     bool    `json:"enabled"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	Burst       int     `json:"burst,omitempty"`
	SendTimeout string  `json:"send_timeout,omitempty"`
	ResyncEvery string  `json:"resync_every,omitempty"`
	Grace       string  `json:"grace,omitempty"`
}

type BoardConfig struct {
	Enabled bool `json:"enabled"`
}

// FeedConfig controls the HTTP calendar feed.
//
// Binding to a non-loopback address requires a token or allow_insecure.
type FeedConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8089"
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
