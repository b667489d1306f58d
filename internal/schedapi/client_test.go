package schedapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, srv.Client(), logx.Nop())
}

func TestSlotsQueryAndDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/slots" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("orderBy") != "soonest" || q.Get("limit") != "5" || q.Get("locationId") != "5140" || q.Get("minimum") != "1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"locationId":5140,"startTimestamp":"2025-03-01T09:00","endTimestamp":"2025-03-01T09:15","active":true,"duration":15},
			{"locationId":5140,"endTimestamp":"2025-03-02T09:15","active":true,"duration":15}
		]`))
	})

	got, err := c.Slots(context.Background(), "5140")
	if err != nil {
		t.Fatalf("Slots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Start != "2025-03-01T09:00" || got[0].Duration != 15 || !got[0].Active {
		t.Fatalf("slot 0 = %+v", got[0])
	}
	if got[1].Start != "" {
		t.Fatalf("missing startTimestamp should decode as empty, got %q", got[1].Start)
	}
}

func TestSourceMapsFailuresToNotOK(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{name: "server error", h: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{name: "bad json", h: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"oops"`)) }},
		{name: "empty", h: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[]`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewSource(newTestClient(t, tt.h), logx.Nop())
			slots, ok := src.Fetch(context.Background(), tracker.Location{ID: "1", Name: "X"})
			if ok || slots != nil {
				t.Fatalf("Fetch = (%v, %v), want (nil, false)", slots, ok)
			}
		})
	}
}

func TestSourceTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	src := NewSource(NewClient(Config{BaseURL: url, Timeout: time.Second}, nil, logx.Nop()), logx.Nop())
	if _, ok := src.Fetch(context.Background(), tracker.Location{ID: "1"}); ok {
		t.Fatal("expected failure on closed server")
	}
}

func TestLocationsCachedAndLookup(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		if q.Get("serviceName") != "Global Entry" || q.Get("operational") != "true" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[
			{"id":5140,"name":"Austin-Bergstrom","city":"Austin ","state":"TX","tzData":"America/Chicago"},
			{"id":5300,"name":"Dallas Fort Worth","city":"Dallas","state":"TX"},
			{"id":9999,"name":"Nowhere","city":""}
		]`))
	})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	l, err := c.LookupCity(context.Background(), "  AUSTIN")
	if err != nil {
		t.Fatalf("LookupCity: %v", err)
	}
	if loc := l.Location(); loc.ID != "5140" || loc.Name != "Austin" {
		t.Fatalf("Location() = %+v", loc)
	}

	if _, err := c.LookupCity(context.Background(), "Springfield"); !errors.Is(err, tracker.ErrUnknownLocation) {
		t.Fatalf("unknown city err = %v", err)
	}
	if _, err := c.LookupCity(context.Background(), " "); !errors.Is(err, ErrBadLookup) {
		t.Fatalf("blank city err = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("locations fetched %d times, want 1 (cached)", hits.Load())
	}

	now = now.Add(DefaultLocationTTL + time.Minute)
	locs, err := c.Locations(context.Background())
	if err != nil {
		t.Fatalf("Locations: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("locations = %d, want 2 (blank city dropped)", len(locs))
	}
	if hits.Load() != 2 {
		t.Fatalf("expected refetch after TTL, hits = %d", hits.Load())
	}
}
