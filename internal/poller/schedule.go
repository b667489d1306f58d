package poller

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecInterval SpecKind = iota + 1
	SpecCron
)

func (k SpecKind) String() string {
	switch k {
	case SpecInterval:
		return "interval"
	case SpecCron:
		return "cron"
	default:
		return "unknown"
	}
}

// Schedule is a parsed poll interval.
type Schedule struct {
	Kind   SpecKind
	Raw    string
	Source string // "duration", "hhmm" or "cron"
	Every  time.Duration
	cron   cron.Schedule
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule accepts:
//   - Interval duration: "15m", "1h30m", "every 15m", "interval:45s"
//   - Interval HH:MM: "00:15" (15 minutes), "02:30" (2 hours 30 minutes)
//   - Cron: "*/15 * * * *", "@hourly", "@every 15m", "cron:0 * * * *"
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("empty schedule")
	}
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "cron:"):
		return parseCron(raw, strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(lower, "interval:"):
		return parseInterval(raw, strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(lower, "every "):
		return parseInterval(raw, strings.TrimSpace(s[len("every "):]))
	case strings.HasPrefix(s, "@") || len(strings.Fields(s)) == 5:
		return parseCron(raw, s)
	default:
		return parseInterval(raw, s)
	}
}

func parseCron(raw, spec string) (Schedule, error) {
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron %q: %w", spec, err)
	}
	return Schedule{Kind: SpecCron, Raw: raw, Source: "cron", cron: sched}, nil
}

func parseInterval(raw, s string) (Schedule, error) {
	if strings.Contains(s, ":") {
		h, m, err := parseHHMM(s)
		if err != nil {
			return Schedule{}, err
		}
		d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval %q must be > 0", s)
		}
		return Schedule{Kind: SpecInterval, Raw: raw, Source: "hhmm", Every: d}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid schedule %q: want a duration, HH:MM or cron expression", raw)
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval %q must be > 0", s)
	}
	return Schedule{Kind: SpecInterval, Raw: raw, Source: "duration", Every: d}, nil
}

// Next returns the next firing time strictly after now.
func (s Schedule) Next(now time.Time) time.Time {
	if s.Kind == SpecCron && s.cron != nil {
		return s.cron.Next(now)
	}
	return now.Add(s.Every)
}

func (s Schedule) String() string {
	if s.Kind == SpecCron {
		return "cron(" + strings.TrimSpace(s.Raw) + ")"
	}
	return s.Every.String()
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
