package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "slotwatch/pkg/logx"
)

type fakeChannel struct {
	name string
	fail int // fail the first n sends

	mu       sync.Mutex
	calls    int
	subjects []string
	bodies   []string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return errors.New("transport down")
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func fastConfig() Config {
	return Config{RatePerSec: 1000, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond}
}

func TestNotifyRejectsEmptyMessage(t *testing.T) {
	ch := &fakeChannel{name: "a"}
	d := New(fastConfig(), logx.Nop(), ch)

	for _, msg := range []string{"", "   "} {
		if err := d.Notify(context.Background(), msg); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Notify(%q) err = %v, want ErrEmptyMessage", msg, err)
		}
	}
	if ch.calls != 0 {
		t.Fatalf("channel called %d times", ch.calls)
	}
}

func TestNotifyFansOutWithDefaultSubject(t *testing.T) {
	a := &fakeChannel{name: "email"}
	b := &fakeChannel{name: "sms"}
	d := New(fastConfig(), logx.Nop(), a, b)

	if err := d.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	for _, ch := range []*fakeChannel{a, b} {
		if len(ch.bodies) != 1 || ch.bodies[0] != "hello" {
			t.Fatalf("%s bodies = %v", ch.name, ch.bodies)
		}
		if ch.subjects[0] != DefaultSubject {
			t.Fatalf("%s subject = %q", ch.name, ch.subjects[0])
		}
	}
	if got := d.Channels(); len(got) != 2 || got[0] != "email" || got[1] != "sms" {
		t.Fatalf("Channels() = %v", got)
	}
}

func TestNotifyRetriesTransportErrors(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMax = 2
	ch := &fakeChannel{name: "flaky", fail: 2}
	d := New(cfg, logx.Nop(), ch)

	if err := d.Notify(context.Background(), "msg"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if ch.calls != 3 {
		t.Fatalf("calls = %d, want 3", ch.calls)
	}
	if len(d.Snapshot()) != 1 {
		t.Fatalf("history = %v", d.Snapshot())
	}
}

func TestNotifyAbsorbsPersistentFailure(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryMax = 1
	bad := &fakeChannel{name: "bad", fail: 100}
	good := &fakeChannel{name: "good"}
	d := New(cfg, logx.Nop(), bad, good)

	if err := d.Notify(context.Background(), "msg"); err != nil {
		t.Fatalf("Notify err = %v, want nil", err)
	}
	if bad.calls != 2 {
		t.Fatalf("bad calls = %d, want 2", bad.calls)
	}
	if len(good.bodies) != 1 {
		t.Fatalf("good channel not reached after a failing one")
	}
	h := d.Snapshot()
	if len(h) != 1 || h[0].Channel != "good" {
		t.Fatalf("history = %+v", h)
	}
}

func TestNotifyLogOnly(t *testing.T) {
	d := New(Config{}, logx.Nop())
	if err := d.Notify(context.Background(), "just log"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	h := d.Snapshot()
	if len(h) != 1 || h[0].Channel != "log" || h[0].Text != "just log" {
		t.Fatalf("history = %+v", h)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	cfg := fastConfig()
	cfg.HistorySize = 2
	d := New(cfg, logx.Nop())
	for _, m := range []string{"one", "two", "three"} {
		_ = d.Notify(context.Background(), m)
	}
	h := d.Snapshot()
	if len(h) != 2 || h[0].Text != "two" || h[1].Text != "three" {
		t.Fatalf("history = %+v", h)
	}
}

func TestApplySwapsChannels(t *testing.T) {
	a := &fakeChannel{name: "a"}
	b := &fakeChannel{name: "b"}
	d := New(fastConfig(), logx.Nop(), a)
	d.Apply(fastConfig(), []Channel{b})

	_ = d.Notify(context.Background(), "x")
	if a.calls != 0 || b.calls != 1 {
		t.Fatalf("a=%d b=%d", a.calls, b.calls)
	}
}

func TestRetryDelayIsCapped(t *testing.T) {
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		if d := retryDelay(cfg, attempt); d < 0 || d > time.Second {
			t.Fatalf("retryDelay(%d) = %v", attempt, d)
		}
	}
}
