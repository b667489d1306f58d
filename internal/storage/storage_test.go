package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("file driver without path accepted")
	}
}

func testStoreRoundTrip(t *testing.T, cfg Config) {
	t.Helper()
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, slot := range []string{"2025-04-02 09:00 CST", "2025-04-01 09:00 CST", "2025-04-03 09:00 CST"} {
		e := Entry{
			ID:           slot,
			At:           base.Add(time.Duration(i) * time.Minute),
			LocationID:   "7820",
			LocationName: "Austin",
			Slot:         slot,
			Message:      "New appointment available on " + slot + " in Austin",
			Retained:     i != 2,
		}
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent len = %d", len(got))
	}
	if got[0].Slot != "2025-04-03 09:00 CST" || got[1].Slot != "2025-04-01 09:00 CST" {
		t.Fatalf("Recent order = %q, %q", got[0].Slot, got[1].Slot)
	}
	if got[0].Retained || !got[1].Retained {
		t.Fatalf("retained flags = %v %v", got[0].Retained, got[1].Retained)
	}
	if !got[0].At.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("At = %v", got[0].At)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Append(ctx, Entry{ID: "x"}); err == nil {
		t.Fatal("Append after Close succeeded")
	}
}

func TestFileStore(t *testing.T) {
	testStoreRoundTrip(t, Config{Driver: "file", Path: filepath.Join(t.TempDir(), "slotwatch")})
}

func TestSQLiteStore(t *testing.T) {
	testStoreRoundTrip(t, Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "slotwatch.db"), BusyTimeout: time.Second})
}

func TestRecorderJournalsAnnouncements(t *testing.T) {
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "j")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	rec := NewRecorder(st, logx.Nop())
	var _ tracker.Observer = rec

	at := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	rec.Announced(tracker.Announcement{
		Location: tracker.Location{ID: "5300", Name: "Dallas"},
		Slot:     tracker.Normalized{Text: "2025-04-01 09:00 CST", At: at},
		Message:  "New appointment available on 2025-04-01 09:00 CST in Dallas",
		At:       at,
		Retained: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Run flushes queued entries on shutdown.
	if err := rec.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].LocationID != "5300" || got[0].ID == "" || !got[0].SlotAt.Equal(at) {
		t.Fatalf("journal = %+v", got)
	}
}
