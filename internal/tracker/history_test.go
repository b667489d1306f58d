package tracker

import (
	"reflect"
	"testing"
	"time"
)

func ts(day int) Normalized {
	at := time.Date(2025, time.March, day, 8, 0, 0, 0, time.UTC)
	return Normalized{Text: at.Format(DisplayLayout) + " UTC", At: at}
}

func TestHistoryAdmitWithSpareCapacity(t *testing.T) {
	h := NewHistory(3)
	for _, d := range []int{9, 2, 5} {
		if !h.Admit(ts(d)) {
			t.Fatalf("Admit(%d) rejected with spare capacity", d)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("Len = %d", h.Len())
	}
	w, ok := h.Worst()
	if !ok || w.Text != ts(9).Text {
		t.Fatalf("Worst = %v, want day 9", w)
	}
}

func TestHistoryReplacesWorstOnlyWhenSooner(t *testing.T) {
	h := NewHistory(1)
	h.Admit(ts(5))

	if !h.Admit(ts(2)) {
		t.Fatal("sooner entry should replace the worst")
	}
	if h.Contains(ts(5).Text) {
		t.Fatal("evicted entry still indexed")
	}
	if h.Admit(ts(9)) {
		t.Fatal("later entry admitted into a full history")
	}
	if h.Admit(ts(2)) != true || h.Len() != 1 {
		t.Fatal("re-admitting a retained entry should be a no-op")
	}
	if got := h.Texts(); !reflect.DeepEqual(got, []string{ts(2).Text}) {
		t.Fatalf("Texts = %q", got)
	}
}

func TestHistoryLaterThanWorstIsRejected(t *testing.T) {
	h := NewHistory(1)
	h.Admit(ts(5))
	same := Normalized{Text: ts(5).Text + " dup", At: ts(5).At.Add(time.Minute)}
	if h.Admit(same) {
		t.Fatal("entry later than worst should not be admitted")
	}
}

func TestHistoryEntriesSorted(t *testing.T) {
	h := NewHistory(5)
	for _, d := range []int{14, 3, 27, 8, 1, 20, 2} {
		h.Admit(ts(d))
	}
	want := []string{ts(1).Text, ts(2).Text, ts(3).Text, ts(8).Text, ts(14).Text}
	if got := h.Texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Texts = %q, want %q", got, want)
	}
}

func TestNewHistoryDefaultCapacity(t *testing.T) {
	if c := NewHistory(0).Cap(); c != DefaultHistorySize {
		t.Fatalf("Cap = %d, want %d", c, DefaultHistorySize)
	}
}
