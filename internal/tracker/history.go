package tracker

import (
	"container/heap"
	"sort"
)

// DefaultHistorySize is the per-location capacity used when none is configured.
const DefaultHistorySize = 5

// History keeps the soonest K timestamps already announced for one location.
//
// It is a fixed-capacity max-heap: the root is the worst (latest) retained
// entry, so admission is a peek plus at most one replace. This is not a
// "last K seen" cache; later slots lose to sooner ones.
type History struct {
	cap   int
	items maxHeap
	index map[string]struct{}
}

// NewHistory returns an empty History. capacity <= 0 uses DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		cap:   capacity,
		items: make(maxHeap, 0, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

func (h *History) Len() int { return len(h.items) }
func (h *History) Cap() int { return h.cap }

// Contains reports whether text is currently retained.
func (h *History) Contains(text string) bool {
	_, ok := h.index[text]
	return ok
}

// Worst returns the latest retained entry.
func (h *History) Worst() (Normalized, bool) {
	if len(h.items) == 0 {
		return Normalized{}, false
	}
	return h.items[0], true
}

// Admit inserts n under the bounded policy and reports whether it is now
// retained. When full, n replaces the worst entry only if it is strictly
// sooner. Admitting an entry that is already retained is a no-op.
func (h *History) Admit(n Normalized) bool {
	if h.Contains(n.Text) {
		return true
	}
	if len(h.items) < h.cap {
		heap.Push(&h.items, n)
		h.index[n.Text] = struct{}{}
		return true
	}
	worst := h.items[0]
	if !n.Less(worst) {
		return false
	}
	delete(h.index, worst.Text)
	h.items[0] = n
	heap.Fix(&h.items, 0)
	h.index[n.Text] = struct{}{}
	return true
}

// Entries returns the retained timestamps sorted ascending.
func (h *History) Entries() []Normalized {
	out := append([]Normalized(nil), h.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Texts returns the retained timestamp texts sorted ascending.
func (h *History) Texts() []string {
	entries := h.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

type maxHeap []Normalized

func (m maxHeap) Len() int           { return len(m) }
func (m maxHeap) Less(i, j int) bool { return m[j].Less(m[i]) }
func (m maxHeap) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }
func (m *maxHeap) Push(x any)        { *m = append(*m, x.(Normalized)) }
func (m *maxHeap) Pop() any {
	old := *m
	n := len(old)
	it := old[n-1]
	*m = old[:n-1]
	return it
}
