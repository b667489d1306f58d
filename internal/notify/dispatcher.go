package notify

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	logx "slotwatch/pkg/logx"

	"golang.org/x/time/rate"
)

// Dispatcher fans a message out to every configured channel.
//
// It is the only Notifier the tracker sees: validation errors are returned,
// transport errors are retried per channel, logged and dropped.
// With no channels configured it only logs.
//
// It is safe for concurrent use.
type Dispatcher struct {
	mu       sync.Mutex
	cfg      Config
	limiter  *rate.Limiter
	channels []Channel
	log      logx.Logger

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger, channels ...Channel) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{log: log}
	d.applyLocked(cfg, channels)
	return d
}

// Apply swaps config and channels at runtime (config reload).
func (d *Dispatcher) Apply(cfg Config, channels []Channel) {
	d.mu.Lock()
	d.applyLocked(cfg, channels)
	d.mu.Unlock()
}

func (d *Dispatcher) applyLocked(cfg Config, channels []Channel) {
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	d.cfg = cfg
	// Burst = rate so a round with a handful of new slots is not throttled.
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	d.channels = append([]Channel(nil), channels...)
}

// Channels returns the names of the active channels.
func (d *Dispatcher) Channels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.channels))
	for i, c := range d.channels {
		out[i] = c.Name()
	}
	return out
}

func (d *Dispatcher) Notify(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	d.mu.Lock()
	cfg := d.cfg
	lim := d.limiter
	channels := d.channels
	d.mu.Unlock()

	d.log.Info("🔔 notification", logx.String("message", message))
	if len(channels) == 0 {
		d.appendHistory(cfg.HistorySize, "log", message)
		return nil
	}

	for _, ch := range channels {
		if err := d.sendWithRetry(ctx, cfg, lim, ch, message); err != nil {
			d.log.Error("notification not delivered", logx.String("channel", ch.Name()), logx.Err(err))
			continue
		}
		d.log.Info("notification sent", logx.String("channel", ch.Name()))
		d.appendHistory(cfg.HistorySize, ch.Name(), message)
	}
	return nil
}

// Snapshot returns recently delivered messages, oldest first.
func (d *Dispatcher) Snapshot() []HistoryItem {
	d.hmu.Lock()
	defer d.hmu.Unlock()
	return append([]HistoryItem(nil), d.history...)
}

func (d *Dispatcher) appendHistory(limit int, channel, text string) {
	d.hmu.Lock()
	d.history = append(d.history, HistoryItem{At: time.Now(), Channel: channel, Text: text})
	if len(d.history) > limit {
		d.history = d.history[len(d.history)-limit:]
	}
	d.hmu.Unlock()
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, cfg Config, lim *rate.Limiter, ch Channel, body string) error {
	attempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := ch.Send(callCtx, cfg.Subject, body)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		d.log.Debug("notify send failed", logx.String("channel", ch.Name()), logx.Err(err),
			logx.Int("attempt", attempt), logx.Int("max", attempts))

		if attempt >= attempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: %d attempt(s): %w", ch.Name(), attempts, lastErr)
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1; the delay is for the next attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
