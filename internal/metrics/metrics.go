package metrics

import (
	"sync/atomic"
	"time"

	"slotwatch/internal/tracker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exports tracker and poller activity. It implements
// tracker.Observer.
type Metrics struct {
	reg *prometheus.Registry

	rounds        *prometheus.CounterVec
	announcements *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	historySize   *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge

	lastCycleUnix atomic.Int64
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotwatch_rounds_total",
			Help: "Rounds processed by location and result.",
		}, []string{"location", "result"}),
		announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotwatch_announcements_total",
			Help: "Novel slots handed to the notifier.",
		}, []string{"location"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slotwatch_slots_skipped_total",
			Help: "Fetched slots that did not produce a notification, by reason.",
		}, []string{"location", "reason"}),
		historySize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slotwatch_history_size",
			Help: "Retained slots per location.",
		}, []string{"location"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slotwatch_cycle_duration_seconds",
			Help:    "Time to poll every location once.",
			Buckets: prometheus.DefBuckets,
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slotwatch_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished.",
		}),
	}
	m.reg.MustRegister(
		m.rounds,
		m.announcements,
		m.skipped,
		m.historySize,
		m.cycleDuration,
		m.lastCycle,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) RoundFinished(loc tracker.Location, failed bool, _ int, historySize int) {
	result := "ok"
	if failed {
		result = "failed"
	}
	m.rounds.WithLabelValues(loc.String(), result).Inc()
	m.historySize.WithLabelValues(loc.String()).Set(float64(historySize))
}

func (m *Metrics) Announced(a tracker.Announcement) {
	m.announcements.WithLabelValues(a.Location.String()).Inc()
}

func (m *Metrics) SlotSkipped(loc tracker.Location, reason tracker.SkipReason) {
	m.skipped.WithLabelValues(loc.String(), string(reason)).Inc()
}

// CycleFinished records one poll cycle.
func (m *Metrics) CycleFinished(took time.Duration, at time.Time) {
	m.cycleDuration.Observe(took.Seconds())
	m.lastCycle.Set(float64(at.Unix()))
	m.lastCycleUnix.Store(at.Unix())
}

// LastCycle returns when the last cycle finished (zero if none yet).
func (m *Metrics) LastCycle() time.Time {
	u := m.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}
