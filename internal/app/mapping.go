package app

import (
	"fmt"
	"strings"
	"time"

	"slotwatch/internal/config"
	"slotwatch/internal/notify"
	"slotwatch/internal/poller"
	"slotwatch/internal/schedapi"
	"slotwatch/internal/storage"
	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"
)

const DefaultTimezone = "America/Chicago"

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			path = "./slotwatch"
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapSchedAPIConfig(cfg *config.Config) (schedapi.Config, error) {
	sa := cfg.SchedulerAPI
	timeout, err := config.ParseDurationOrDefault("scheduler_api.timeout", sa.Timeout, schedapi.DefaultTimeout)
	if err != nil {
		return schedapi.Config{}, err
	}
	ttl, err := config.ParseDurationOrDefault("scheduler_api.locations_cache_ttl", sa.LocationsCacheTTL, schedapi.DefaultLocationTTL)
	if err != nil {
		return schedapi.Config{}, err
	}
	return schedapi.Config{
		BaseURL:     sa.BaseURL,
		ServiceName: sa.ServiceName,
		Limit:       sa.Limit,
		Minimum:     sa.Minimum,
		Timeout:     timeout,
		LocationTTL: ttl,
	}, nil
}

// mapTrackerOptions builds the normalizer, year window and capacity.
func mapTrackerOptions(cfg *config.Config) ([]tracker.Option, error) {
	w := cfg.Watch
	zone := strings.TrimSpace(w.Timezone)
	if zone == "" {
		zone = DefaultTimezone
	}
	source := strings.TrimSpace(w.SourceTimezone)
	if source == "" {
		source = zone
	}
	norm, err := tracker.LoadNormalizer(zone, source, strings.TrimSpace(w.ZoneLabel))
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	window, err := tracker.ParseYearWindow(strings.ToLower(strings.TrimSpace(w.YearWindow)))
	if err != nil {
		return nil, fmt.Errorf("watch.year_window: %w", err)
	}
	capacity := w.HistorySize
	if capacity <= 0 {
		capacity = tracker.DefaultHistorySize
	}
	return []tracker.Option{
		tracker.WithNormalizer(norm),
		tracker.WithYearWindow(window),
		tracker.WithCapacity(capacity),
	}, nil
}

func mapPollConfig(cfg *config.Config) (poller.Config, error) {
	raw := strings.TrimSpace(cfg.Poll.Interval)
	if raw == "" {
		raw = poller.DefaultInterval.String()
	}
	sched, err := poller.ParseSchedule(raw)
	if err != nil {
		return poller.Config{}, fmt.Errorf("poll.interval: %w", err)
	}
	retry, err := config.ParseDurationOrDefault("poll.retry_interval", cfg.Poll.RetryInterval, poller.DefaultRetryInterval)
	if err != nil {
		return poller.Config{}, err
	}
	return poller.Config{Schedule: sched, RetryInterval: retry, Parallel: cfg.Poll.Parallel}, nil
}

// mapNotifierConfig resolves secrets and builds the enabled channels.
func mapNotifierConfig(cfg *config.Config) (notify.Config, []notify.Channel, error) {
	n, err := config.ResolveSecrets(cfg.Notifier)
	if err != nil {
		return notify.Config{}, nil, err
	}
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notify.Config{}, nil, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, nil, err
	}
	ncfg := notify.Config{
		Subject:       n.Subject,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}

	seen := map[string]bool{}
	var channels []notify.Channel
	for _, raw := range n.Channels {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true

		var ch notify.Channel
		switch name {
		case "email":
			ch, err = notify.NewEmailChannel(notify.EmailConfig{
				Host:     n.Email.SMTPHost,
				Port:     n.Email.SMTPPort,
				From:     n.Email.From,
				To:       n.Email.To,
				Username: n.Email.Username,
				Password: n.Email.Password,
			})
		case "sms":
			ch, err = notify.NewSMSChannel(notify.SMSConfig{
				AccountSID: n.SMS.AccountSID,
				AuthToken:  n.SMS.AuthToken,
				From:       n.SMS.From,
				To:         n.SMS.To,
			})
		case "telegram":
			ch, err = notify.NewTelegramChannel(notify.TelegramConfig{
				Token:    n.Telegram.Token,
				ChatID:   n.Telegram.ChatID,
				ThreadID: n.Telegram.ThreadID,
			})
		default:
			err = fmt.Errorf("unknown channel %q", raw)
		}
		if err != nil {
			return notify.Config{}, nil, fmt.Errorf("notifier.%s: %w", name, err)
		}
		channels = append(channels, ch)
	}
	return ncfg, channels, nil
}
