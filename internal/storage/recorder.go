package storage

import (
	"context"
	"time"

	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"

	"github.com/google/uuid"
)

const recorderQueue = 256

// Recorder journals tracker announcements in the background.
//
// It implements tracker.Observer. Announced only enqueues; Run performs the
// writes. When the queue is full the entry is dropped and logged.
type Recorder struct {
	store Store
	log   logx.Logger
	queue chan Entry
}

func NewRecorder(store Store, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, log: log, queue: make(chan Entry, recorderQueue)}
}

func (r *Recorder) RoundFinished(tracker.Location, bool, int, int) {}

func (r *Recorder) SlotSkipped(tracker.Location, tracker.SkipReason) {}

func (r *Recorder) Announced(a tracker.Announcement) {
	e := Entry{
		ID:           uuid.NewString(),
		At:           a.At,
		LocationID:   a.Location.ID,
		LocationName: a.Location.Name,
		Slot:         a.Slot.Text,
		SlotAt:       a.Slot.At,
		Message:      a.Message,
		Retained:     a.Retained,
	}
	select {
	case r.queue <- e:
	default:
		r.log.Warn("journal queue full; dropping entry", logx.String("slot", e.Slot))
	}
}

// Run drains the queue until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-r.queue:
			r.write(ctx, e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	if err := r.store.Append(ctx, e); err != nil {
		r.log.Warn("journal append failed", logx.Err(err), logx.String("slot", e.Slot))
	}
}
