package config

import (
	"encoding/json"
	"hash/fnv"
	"reflect"
	"sort"
	"strings"

	logx "slotwatch/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.String("logging.format", newCfg.Logging.Format),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.SchedulerAPI, newCfg.SchedulerAPI) {
		changed = append(changed, "scheduler_api")
		attrs = append(attrs,
			logx.String("scheduler_api.base_url", strings.TrimSpace(newCfg.SchedulerAPI.BaseURL)),
			logx.String("scheduler_api.timeout", strings.TrimSpace(newCfg.SchedulerAPI.Timeout)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Watch, newCfg.Watch) {
		changed = append(changed, "watch")
		attrs = append(attrs,
			logx.Int("watch.locations", len(newCfg.Watch.Locations)),
			logx.Strings("watch.cities", newCfg.Watch.Cities),
			logx.String("watch.timezone", strings.TrimSpace(newCfg.Watch.Timezone)),
			logx.Int("watch.history_size", newCfg.Watch.HistorySize),
			logx.String("watch.year_window", newCfg.Watch.YearWindow),
		)
	}

	if !reflect.DeepEqual(oldCfg.Poll, newCfg.Poll) {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.interval", strings.TrimSpace(newCfg.Poll.Interval)),
			logx.String("poll.retry_interval", strings.TrimSpace(newCfg.Poll.RetryInterval)),
			logx.Int("poll.parallel", newCfg.Poll.Parallel),
		)
	}

	// Compare secrets by hash so a rotated token still counts as a change.
	if notifierHash(oldCfg.Notifier) != notifierHash(newCfg.Notifier) {
		n := newCfg.Notifier
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Strings("notifier.channels", n.Channels),
			logx.Int("notifier.rate_per_sec", n.RatePerSec),
			logx.Int("notifier.retry_max", n.RetryMax),
			logx.Int("notifier.email_recipients", len(n.Email.To)),
			logx.Bool("notifier.email_password_set", n.Email.Password != ""),
			logx.Bool("notifier.sms_token_set", n.SMS.AuthToken != ""),
			logx.Bool("notifier.telegram_token_set", n.Telegram.Token != ""),
		)
	}

	// Storage (nil means disabled)
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if s := oldCfg.Storage; s != nil {
		oDriver = strings.TrimSpace(s.Driver)
		oBusy = strings.TrimSpace(s.BusyTimeout)
		oPathSet = strings.TrimSpace(s.Path) != ""
	}
	if s := newCfg.Storage; s != nil {
		nDriver = strings.TrimSpace(s.Driver)
		nBusy = strings.TrimSpace(s.BusyTimeout)
		nPathSet = strings.TrimSpace(s.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newCfg.Metrics.Addr)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func notifierHash(n NotifierConfig) uint64 {
	b, err := json.Marshal(n)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// hashBytes returns a stable 64-bit hash of bytes. Empty input returns 0.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
