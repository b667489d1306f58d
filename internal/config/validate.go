package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate performs static checks that do not need the network or secrets.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "text", "json":
	default:
		add(fmt.Errorf("logging.format: unknown value %q (want text or json)", cfg.Logging.Format))
	}

	_, err := ParseDurationField("scheduler_api.timeout", cfg.SchedulerAPI.Timeout)
	add(err)
	_, err = ParseDurationField("scheduler_api.locations_cache_ttl", cfg.SchedulerAPI.LocationsCacheTTL)
	add(err)
	_, err = ParseDurationField("poll.retry_interval", cfg.Poll.RetryInterval)
	add(err)
	_, err = ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	add(err)
	_, err = ParseDurationField("notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay)
	add(err)

	w := cfg.Watch
	for i, l := range w.Locations {
		if l.ID <= 0 {
			add(fmt.Errorf("watch.locations[%d]: id must be > 0", i))
		}
	}
	if w.HistorySize < 0 {
		add(errors.New("watch.history_size: must be >= 0"))
	}
	for _, tz := range []struct{ path, name string }{
		{"watch.timezone", w.Timezone},
		{"watch.source_timezone", w.SourceTimezone},
	} {
		if strings.TrimSpace(tz.name) == "" {
			continue
		}
		if _, err := time.LoadLocation(strings.TrimSpace(tz.name)); err != nil {
			add(fmt.Errorf("%s: %w", tz.path, err))
		}
	}
	switch strings.ToLower(strings.TrimSpace(w.YearWindow)) {
	case "", "current", "next":
	default:
		add(fmt.Errorf("watch.year_window: unknown value %q (want current or next)", w.YearWindow))
	}

	if cfg.Poll.Parallel < 0 {
		add(errors.New("poll.parallel: must be >= 0"))
	}

	for _, ch := range cfg.Notifier.Channels {
		switch strings.ToLower(strings.TrimSpace(ch)) {
		case "email", "sms", "telegram":
		default:
			add(fmt.Errorf("notifier.channels: unknown channel %q", ch))
		}
	}
	if cfg.Notifier.RetryMax < 0 {
		add(errors.New("notifier.retry_max: must be >= 0"))
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}

	return errors.Join(errs...)
}
