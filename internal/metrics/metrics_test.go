package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slotwatch/internal/notify"
	"slotwatch/internal/storage"
	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	res := rec.Result()
	b, _ := io.ReadAll(res.Body)
	return res, string(b)
}

func TestMetricsEndpointReportsObserverEvents(t *testing.T) {
	m := New()
	austin := tracker.Location{ID: "7820", Name: "Austin"}
	var _ tracker.Observer = m

	m.RoundFinished(austin, false, 2, 2)
	m.RoundFinished(austin, true, 0, 2)
	m.Announced(tracker.Announcement{Location: austin})
	m.SlotSkipped(austin, tracker.SkipYear)

	_, body := get(t, NewServer(m, Sources{}, logx.Nop()).Router(), "/metrics")
	for _, want := range []string{
		`slotwatch_rounds_total{location="Austin",result="ok"} 1`,
		`slotwatch_rounds_total{location="Austin",result="failed"} 1`,
		`slotwatch_announcements_total{location="Austin"} 1`,
		`slotwatch_slots_skipped_total{location="Austin",reason="year"} 1`,
		`slotwatch_history_size{location="Austin"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestHealthz(t *testing.T) {
	m := New()
	s := NewServer(m, Sources{Stale: time.Hour}, logx.Nop())
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if res, _ := get(t, s.Router(), "/healthz"); res.StatusCode != http.StatusOK {
		t.Fatalf("before first cycle: %d", res.StatusCode)
	}
	m.CycleFinished(time.Second, now.Add(-2*time.Hour))
	res, body := get(t, s.Router(), "/healthz")
	if res.StatusCode != http.StatusServiceUnavailable || !strings.Contains(body, "stale") {
		t.Fatalf("stale: %d %s", res.StatusCode, body)
	}
	m.CycleFinished(time.Second, now.Add(-time.Minute))
	if res, _ := get(t, s.Router(), "/healthz"); res.StatusCode != http.StatusOK {
		t.Fatalf("fresh: %d", res.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	at := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	src := Sources{
		Histories: func() []tracker.LocationHistory {
			return []tracker.LocationHistory{{
				Location: tracker.Location{ID: "7820", Name: "Austin"},
				Capacity: 5,
				Entries:  []tracker.Normalized{{Text: "2025-04-01 09:00 CST", At: at}},
			}}
		},
		Notifications: func() []notify.HistoryItem {
			return []notify.HistoryItem{{At: at, Channel: "log", Text: "hello"}}
		},
	}
	res, body := get(t, NewServer(New(), src, logx.Nop()).Router(), "/history")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var out struct {
		Locations []struct {
			Location tracker.Location `json:"location"`
			Capacity int              `json:"capacity"`
		} `json:"locations"`
		Notifications []notify.HistoryItem `json:"notifications"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v\n%s", err, body)
	}
	if len(out.Locations) != 1 || out.Locations[0].Location.Name != "Austin" || out.Locations[0].Capacity != 5 {
		t.Fatalf("locations = %+v", out.Locations)
	}
	if len(out.Notifications) != 1 || out.Notifications[0].Text != "hello" {
		t.Fatalf("notifications = %+v", out.Notifications)
	}
}

func TestJournalEndpoint(t *testing.T) {
	s := NewServer(New(), Sources{}, logx.Nop())
	if res, _ := get(t, s.Router(), "/journal"); res.StatusCode != http.StatusNotFound {
		t.Fatalf("disabled journal: %d", res.StatusCode)
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "j")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	_ = st.Append(context.Background(), storage.Entry{ID: "a", Slot: "2025-04-01 09:00 CST"})

	s = NewServer(New(), Sources{Journal: st}, logx.Nop())
	res, body := get(t, s.Router(), "/journal?limit=5")
	if res.StatusCode != http.StatusOK || !strings.Contains(body, "2025-04-01 09:00 CST") {
		t.Fatalf("journal: %d %s", res.StatusCode, body)
	}
	if res, _ := get(t, s.Router(), "/journal?limit=0"); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", res.StatusCode)
	}
}

func TestServerApplyLifecycle(t *testing.T) {
	s := NewServer(New(), Sources{}, logx.Nop())
	ctx := context.Background()

	s.Apply(ctx, true, "127.0.0.1:0")
	addr := s.Addr()
	if addr == "" {
		t.Fatal("server not started")
	}
	res, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}

	s.Apply(ctx, false, "")
	if s.Addr() != "" {
		t.Fatal("server still running")
	}
}
