package config

// Config is the whole slotwatch configuration file (JSON or YAML).
//
// Durations are Go duration strings ("10s", "15m"). Secret fields accept a
// literal value, "env:NAME" or "keyring:KEY" (see ResolveSecret).
type Config struct {
	Logging      LoggingConfig      `json:"logging"`
	SchedulerAPI SchedulerAPIConfig `json:"scheduler_api"`
	Watch        WatchConfig        `json:"watch"`
	Poll         PollConfig         `json:"poll"`
	Notifier     NotifierConfig     `json:"notifier"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
	Metrics      MetricsConfig      `json:"metrics"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// Format of the console sink: "text" (default) or "json".
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerAPIConfig points at the public appointment scheduler.
//
// Defaults (when fields are omitted/zero):
//   - base_url: https://ttp.cbp.dhs.gov/schedulerapi/
//   - timeout: "10s"
//   - limit: 5
//   - minimum: 1
//   - service_name: "Global Entry"
//   - locations_cache_ttl: "360h"
type SchedulerAPIConfig struct {
	BaseURL           string `json:"base_url,omitempty"`
	Timeout           string `json:"timeout,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	Minimum           int    `json:"minimum,omitempty"`
	ServiceName       string `json:"service_name,omitempty"`
	LocationsCacheTTL string `json:"locations_cache_ttl,omitempty"`
}

// WatchConfig selects what to watch and how slot times are displayed.
//
// Locations are used as-is; Cities are resolved through the locations
// endpoint at startup. Both may be set.
type WatchConfig struct {
	Locations []LocationConfig `json:"locations,omitempty"`
	Cities    []string         `json:"cities,omitempty"`

	// Timezone is the display zone (IANA). Default: America/Chicago.
	Timezone string `json:"timezone,omitempty"`
	// ZoneLabel replaces the zone abbreviation in rendered times.
	ZoneLabel string `json:"zone_label,omitempty"`
	// SourceTimezone is the zone offset-less timestamps are read in.
	// Default: same as Timezone.
	SourceTimezone string `json:"source_timezone,omitempty"`

	HistorySize int `json:"history_size,omitempty"` // default 5
	// YearWindow is "current" (default) or "next" (current and next year).
	YearWindow string `json:"year_window,omitempty"`
}

type LocationConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PollConfig controls round pacing.
//
// Interval is either a Go duration ("15m", "every 15m") or a 5-field cron
// expression ("*/15 * * * *"). RetryInterval is used after a failed round.
type PollConfig struct {
	Interval      string `json:"interval,omitempty"`       // default "15m"
	RetryInterval string `json:"retry_interval,omitempty"` // default "1m"
	// Parallel > 1 polls that many locations concurrently per cycle.
	Parallel int `json:"parallel,omitempty"`
}

// NotifierConfig controls delivery. Channels lists the enabled channels by
// name ("email", "sms", "telegram"); empty means log only.
type NotifierConfig struct {
	Channels      []string `json:"channels,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	RatePerSec    int      `json:"rate_per_sec,omitempty"`
	RetryMax      int      `json:"retry_max,omitempty"`
	RetryBase     string   `json:"retry_base,omitempty"`
	RetryMaxDelay string   `json:"retry_max_delay,omitempty"`

	Email    EmailConfig    `json:"email"`
	SMS      SMSConfig      `json:"sms"`
	Telegram TelegramConfig `json:"telegram"`
}

type EmailConfig struct {
	SMTPHost string   `json:"smtp_host,omitempty"`
	SMTPPort int      `json:"smtp_port,omitempty"`
	From     string   `json:"from,omitempty"`
	To       []string `json:"to,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"` // secret
}

type SMSConfig struct {
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"` // secret
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"` // secret
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// StorageConfig controls the optional announcement journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./slotwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls the status HTTP server (/metrics, /healthz, /history).
// Prefer binding to localhost.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
}
