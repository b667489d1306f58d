package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"slotwatch/internal/config"
	"slotwatch/internal/metrics"
	"slotwatch/internal/notify"
	"slotwatch/internal/poller"
	"slotwatch/internal/runtime/supervisor"
	"slotwatch/internal/schedapi"
	"slotwatch/internal/storage"
	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"
	"slotwatch/pkg/systemd"
)

// Options are process-level knobs that do not belong in the config file.
type Options struct {
	// PickCities is consulted when the config names no locations.
	PickCities CityPicker
	// HTTPClient overrides the scheduler API client (tests).
	HTTPClient *http.Client
}

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store    storage.Store
	recorder *storage.Recorder

	client    *schedapi.Client
	tracker   *tracker.Tracker
	notif     *notify.Dispatcher
	loop      *poller.Loop
	metrics   *metrics.Metrics
	status    *metrics.Server
	locations []tracker.Location
}

// New loads the config, resolves locations and wires every component.
// Nothing runs until Start.
func New(ctx context.Context, cfgPath string, opts Options) (*App, error) {
	if err := config.LoadDotEnv(filepath.Join(filepath.Dir(cfgPath), ".env")); err != nil {
		return nil, err
	}
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgm: cfgm, log: log, logs: logSvc, metrics: metrics.New()}
	if err := a.wire(ctx, cfg, opts); err != nil {
		if a.store != nil {
			_ = a.store.Close()
		}
		logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config, opts Options) error {
	log := a.log

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return err
		}
		a.store = st
		a.recorder = storage.NewRecorder(st, log.With(logx.String("comp", "journal")))
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	apiCfg, err := mapSchedAPIConfig(cfg)
	if err != nil {
		return err
	}
	a.client = schedapi.NewClient(apiCfg, opts.HTTPClient, log.With(logx.String("comp", "schedapi")))

	a.locations, err = resolveLocations(ctx, cfg.Watch, a.client, opts.PickCities, log)
	if err != nil {
		return err
	}

	ncfg, channels, err := mapNotifierConfig(cfg)
	if err != nil {
		return err
	}
	a.notif = notify.New(ncfg, log.With(logx.String("comp", "notify")), channels...)

	topts, err := mapTrackerOptions(cfg)
	if err != nil {
		return err
	}
	topts = append(topts,
		tracker.WithLogger(log.With(logx.String("comp", "tracker"))),
		tracker.WithObserver(a.metrics),
	)
	if a.recorder != nil {
		topts = append(topts, tracker.WithObserver(a.recorder))
	}
	src := schedapi.NewSource(a.client, log.With(logx.String("comp", "source")))
	a.tracker = tracker.New(src, a.notif, topts...)

	pcfg, err := mapPollConfig(cfg)
	if err != nil {
		return err
	}
	a.loop = poller.New(a.tracker, a.locations, pcfg,
		poller.WithLogger(log.With(logx.String("comp", "poller"))),
		poller.WithOnCycle(a.onCycle),
	)

	stale := 3 * pcfg.RetryInterval
	if pcfg.Schedule.Kind == poller.SpecInterval {
		stale = 2*pcfg.Schedule.Every + pcfg.RetryInterval
	}
	a.status = metrics.NewServer(a.metrics, metrics.Sources{
		Histories:     a.tracker.Snapshot,
		Notifications: a.notif.Snapshot,
		Journal:       a.store,
		Stale:         stale,
	}, log)

	names := make([]string, len(a.locations))
	for i, l := range a.locations {
		names[i] = l.String()
	}
	log.Info("watching",
		logx.Strings("locations", names),
		logx.Strings("channels", a.notif.Channels()),
		logx.String("interval", pcfg.Schedule.String()),
	)
	return nil
}

func (a *App) onCycle(r poller.CycleResult) {
	a.metrics.CycleFinished(r.Duration, r.Started.Add(r.Duration))
	_, _ = systemd.Watchdog()
	_, _ = systemd.Status(fmt.Sprintf("%d/%d rounds ok; next poll in %s", r.Rounds-r.Failed, r.Rounds, r.NextWait.Round(time.Second)))
}

// Locations returns the resolved watch list.
func (a *App) Locations() []tracker.Location {
	return append([]tracker.Location(nil), a.locations...)
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	c := a.sup.Context()

	cfg := a.cfgm.Get()
	a.status.Apply(c, cfg.Metrics.Enabled, cfg.Metrics.Addr)

	if a.recorder != nil {
		a.sup.Go("journal", a.recorder.Run)
	}
	a.sup.GoRestart("poller", a.loop.Run, supervisor.WithRestartBackoff(time.Second, time.Minute))

	if iv := systemd.WatchdogInterval(); iv > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			t := time.NewTicker(iv)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return nil
				case <-t.C:
					_, _ = systemd.Watchdog()
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(4)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(c, last, newCfg)
				last = newCfg
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	}
	a.log.Info("app started", logx.Int("locations", len(a.locations)))
	return nil
}

// applyConfig hot-applies logging, notifier, poll pacing and the status
// server. Other sections need a restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(newCfg))
		case "notifier":
			ncfg, channels, err := mapNotifierConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
				continue
			}
			a.notif.Apply(ncfg, channels)
		case "poll":
			pcfg, err := mapPollConfig(newCfg)
			if err != nil {
				a.log.Warn("invalid poll config; keeping previous", logx.Err(err))
				continue
			}
			a.loop.Apply(pcfg)
		case "metrics":
			a.status.Apply(ctx, newCfg.Metrics.Enabled, newCfg.Metrics.Addr)
		default:
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts everything down, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	_, _ = systemd.Stopping()
	a.log.Info("shutting down")
	a.sup.Cancel()

	a.status.Stop(ctx)
	err := a.sup.Wait(ctx)
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.log.Warn("storage close failed", logx.Err(cerr))
		}
	}
	a.log.Info("stopped")
	a.logs.Close()
	return err
}
