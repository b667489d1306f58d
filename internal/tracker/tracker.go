package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	logx "slotwatch/pkg/logx"
)

// Tracker decides which fetched slots are new for each location and hands
// them to the Notifier.
//
// Each location owns its History. Process may be called concurrently for
// different locations; calls for the same location are serialized.
type Tracker struct {
	src      Source
	notifier Notifier
	norm     *Normalizer
	log      logx.Logger

	capacity  int
	window    YearWindow
	now       func() time.Time
	observers []Observer

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	loc  Location
	hist *History
}

type Option func(*Tracker)

// WithCapacity sets the per-location History capacity.
func WithCapacity(n int) Option { return func(t *Tracker) { t.capacity = n } }

// WithYearWindow selects the accepted years.
func WithYearWindow(w YearWindow) Option { return func(t *Tracker) { t.window = w } }

// WithNormalizer overrides the default (UTC) normalizer.
func WithNormalizer(n *Normalizer) Option { return func(t *Tracker) { t.norm = n } }

func WithLogger(log logx.Logger) Option { return func(t *Tracker) { t.log = log } }

// WithClock overrides time.Now (used for the year filter).
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		if o != nil {
			t.observers = append(t.observers, o)
		}
	}
}

func New(src Source, notifier Notifier, opts ...Option) *Tracker {
	t := &Tracker{
		src:      src,
		notifier: notifier,
		capacity: DefaultHistorySize,
		window:   YearCurrent,
		now:      time.Now,
		entries:  map[string]*entry{},
	}
	for _, o := range opts {
		o(t)
	}
	if t.norm == nil {
		t.norm = NewNormalizer(time.UTC, nil, "")
	}
	if t.log.IsZero() {
		t.log = logx.Nop()
	}
	if t.capacity <= 0 {
		t.capacity = DefaultHistorySize
	}
	return t
}

// ParseYearWindow maps a config value to a YearWindow. Empty means current.
func ParseYearWindow(s string) (YearWindow, error) {
	switch YearWindow(s) {
	case "", YearCurrent:
		return YearCurrent, nil
	case YearCurrentNext:
		return YearCurrentNext, nil
	default:
		return "", fmt.Errorf("invalid year window %q (use %q or %q)", s, YearCurrent, YearCurrentNext)
	}
}

// Process runs one round for loc and reports whether the round failed.
//
// A failed round (source failure or zero slots) leaves History untouched.
func (t *Tracker) Process(ctx context.Context, loc Location) (failed bool) {
	log := t.log.With(logx.String("location", loc.String()), logx.String("location_id", loc.ID))

	slots, ok := t.src.Fetch(ctx, loc)
	if !ok || len(slots) == 0 {
		log.Info("no appointments found")
		t.roundFinished(loc, true, 0, t.historyLen(loc.ID))
		return true
	}

	e := t.entry(loc)
	e.mu.Lock()
	defer e.mu.Unlock()

	years := t.acceptedYears()
	novel := 0
	for _, s := range slots {
		n, err := t.norm.Normalize(s.Start)
		if err != nil {
			log.Warn("skipping slot with bad start time", logx.Err(err))
			t.skipped(loc, SkipMalformed)
			continue
		}
		if _, ok := years[n.At.Year()]; !ok {
			log.Debug("skipping slot outside year window", logx.String("slot", n.Text))
			t.skipped(loc, SkipYear)
			continue
		}
		if e.hist.Contains(n.Text) {
			t.skipped(loc, SkipSeen)
			continue
		}

		novel++
		msg := fmt.Sprintf("New appointment available on %s in %s", n.Text, loc.String())
		if err := t.notifier.Notify(ctx, msg); err != nil {
			// Validation only; the slot still counts as handled.
			log.Error("notify rejected message", logx.Err(err))
		}
		retained := e.hist.Admit(n)
		t.announced(Announcement{Location: loc, Slot: n, Message: msg, At: t.now(), Retained: retained})
	}

	log.Info("updated appointments", logx.Strings("history", e.hist.Texts()), logx.Int("novel", novel))
	t.roundFinished(loc, false, novel, e.hist.Len())
	return false
}

// History returns the retained timestamps for a location id, sorted ascending.
func (t *Tracker) History(id string) ([]Normalized, error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hist.Entries(), nil
}

// LocationHistory pairs a Location with its retained timestamps.
type LocationHistory struct {
	Location Location     `json:"location"`
	Capacity int          `json:"capacity"`
	Entries  []Normalized `json:"entries"`
}

// Snapshot returns every known History, ordered by location name.
func (t *Tracker) Snapshot() []LocationHistory {
	t.mu.Lock()
	es := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		es = append(es, e)
	}
	t.mu.Unlock()

	out := make([]LocationHistory, 0, len(es))
	for _, e := range es {
		e.mu.Lock()
		out = append(out, LocationHistory{Location: e.loc, Capacity: e.hist.Cap(), Entries: e.hist.Entries()})
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location.String() != out[j].Location.String() {
			return out[i].Location.String() < out[j].Location.String()
		}
		return out[i].Location.ID < out[j].Location.ID
	})
	return out
}

func (t *Tracker) entry(loc Location) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[loc.ID]
	if !ok {
		e = &entry{loc: loc, hist: NewHistory(t.capacity)}
		t.entries[loc.ID] = e
	}
	return e
}

func (t *Tracker) historyLen(id string) int {
	h, err := t.History(id)
	if errors.Is(err, ErrUnknownLocation) {
		return 0
	}
	return len(h)
}

func (t *Tracker) acceptedYears() map[int]struct{} {
	y := t.now().In(t.norm.Location()).Year()
	years := map[int]struct{}{y: {}}
	if t.window == YearCurrentNext {
		years[y+1] = struct{}{}
	}
	return years
}

func (t *Tracker) roundFinished(loc Location, failed bool, novel, size int) {
	for _, o := range t.observers {
		o.RoundFinished(loc, failed, novel, size)
	}
}

func (t *Tracker) announced(a Announcement) {
	for _, o := range t.observers {
		o.Announced(a)
	}
}

func (t *Tracker) skipped(loc Location, r SkipReason) {
	for _, o := range t.observers {
		o.SlotSkipped(loc, r)
	}
}
