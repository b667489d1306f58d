package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval      = 15 * time.Minute
	DefaultRetryInterval = time.Minute
)

// Processor runs one round for a location. *tracker.Tracker satisfies it.
type Processor interface {
	Process(ctx context.Context, loc tracker.Location) (failed bool)
}

// Config controls cycle pacing.
type Config struct {
	Schedule      Schedule
	RetryInterval time.Duration
	// Parallel > 1 runs up to that many rounds at once.
	Parallel int
}

// CycleResult summarizes one pass over all locations.
type CycleResult struct {
	Started  time.Time
	Duration time.Duration
	Rounds   int
	Failed   int
	NextWait time.Duration
}

// Loop polls every location once per cycle, forever.
//
// After a cycle in which any round failed the loop sleeps RetryInterval,
// otherwise until the schedule's next firing.
type Loop struct {
	proc      Processor
	locations []tracker.Location
	log       logx.Logger
	now       func() time.Time

	mu  sync.Mutex
	cfg Config

	onCycle func(CycleResult)
	wake    chan struct{}
	cycles  atomic.Int64
}

type Option func(*Loop)

func WithLogger(log logx.Logger) Option { return func(l *Loop) { l.log = log } }

func WithClock(now func() time.Time) Option { return func(l *Loop) { l.now = now } }

// WithOnCycle installs a hook called after every cycle (metrics, watchdog).
func WithOnCycle(fn func(CycleResult)) Option { return func(l *Loop) { l.onCycle = fn } }

func New(proc Processor, locations []tracker.Location, cfg Config, opts ...Option) *Loop {
	l := &Loop{
		proc:      proc,
		locations: append([]tracker.Location(nil), locations...),
		log:       logx.Nop(),
		now:       time.Now,
		wake:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(l)
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	l.cfg = withDefaults(cfg)
	return l
}

func withDefaults(cfg Config) Config {
	if cfg.Schedule.Kind == 0 {
		cfg.Schedule = Schedule{Kind: SpecInterval, Source: "duration", Every: DefaultInterval}
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	return cfg
}

// Apply replaces pacing at runtime. A sleeping loop recomputes its wait.
func (l *Loop) Apply(cfg Config) {
	l.mu.Lock()
	l.cfg = withDefaults(cfg)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Cycles returns how many cycles have completed.
func (l *Loop) Cycles() int64 { return l.cycles.Load() }

// Cycle runs one round per location and reports whether any failed.
func (l *Loop) Cycle(ctx context.Context) (anyFailed bool) {
	cfg := l.config()
	start := l.now()

	var failed atomic.Int64
	if cfg.Parallel <= 1 {
		for _, loc := range l.locations {
			if ctx.Err() != nil {
				break
			}
			if l.proc.Process(ctx, loc) {
				failed.Add(1)
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Parallel)
		for _, loc := range l.locations {
			loc := loc
			g.Go(func() error {
				if l.proc.Process(gctx, loc) {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	res := CycleResult{
		Started:  start,
		Duration: l.now().Sub(start),
		Rounds:   len(l.locations),
		Failed:   int(failed.Load()),
	}
	res.NextWait = l.nextWait(cfg, res.Failed > 0)
	l.cycles.Add(1)

	l.log.Debug("cycle finished",
		logx.Int("rounds", res.Rounds),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Duration),
		logx.Duration("next_wait", res.NextWait),
	)
	if l.onCycle != nil {
		l.onCycle(res)
	}
	return res.Failed > 0
}

func (l *Loop) nextWait(cfg Config, anyFailed bool) time.Duration {
	if anyFailed {
		return cfg.RetryInterval
	}
	now := l.now()
	d := cfg.Schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Run cycles until ctx is done. The first cycle starts immediately.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("poller started",
		logx.Int("locations", len(l.locations)),
		logx.String("interval", l.config().Schedule.String()),
	)
	for {
		anyFailed := l.Cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !l.sleep(ctx, anyFailed) {
			return nil
		}
	}
}

// sleep waits out the current pacing. A config Apply restarts the wait with
// the new values. Returns false when ctx is done.
func (l *Loop) sleep(ctx context.Context, anyFailed bool) bool {
	for {
		wait := l.nextWait(l.config(), anyFailed)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
			return true
		case <-l.wake:
			t.Stop()
			l.log.Debug("poll pacing changed; rescheduling")
		}
	}
}
