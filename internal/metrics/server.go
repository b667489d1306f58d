package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"slotwatch/internal/notify"
	"slotwatch/internal/storage"
	"slotwatch/internal/tracker"
	logx "slotwatch/pkg/logx"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultAddr = "127.0.0.1:9464"

// Sources feeds the JSON endpoints. Nil fields are served as empty.
type Sources struct {
	Histories     func() []tracker.LocationHistory
	Notifications func() []notify.HistoryItem
	Journal       storage.Store
	// Stale is how long without a finished cycle before /healthz fails.
	// Zero disables the check.
	Stale time.Duration
}

// Server is the status HTTP listener: /metrics, /healthz, /history and
// /journal. Apply starts, moves or stops it.
type Server struct {
	m   *Metrics
	src Sources
	log logx.Logger
	now func() time.Time

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	addr string
}

func NewServer(m *Metrics, src Sources, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{m: m, src: src, log: log.With(logx.String("comp", "status")), now: time.Now}
}

// Router builds the handler tree.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.m.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/history", s.historyHandler).Methods(http.MethodGet)
	r.HandleFunc("/journal", s.journalHandler).Methods(http.MethodGet)
	return handlers.RecoveryHandler()(r)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	last := s.m.LastCycle()
	body := map[string]any{"status": "ok"}
	if !last.IsZero() {
		body["last_cycle"] = last.UTC().Format(time.RFC3339)
	}
	status := http.StatusOK
	if s.src.Stale > 0 && !last.IsZero() && s.now().Sub(last) > s.src.Stale {
		body["status"] = "stale"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func (s *Server) historyHandler(w http.ResponseWriter, _ *http.Request) {
	body := struct {
		Locations     []tracker.LocationHistory `json:"locations"`
		Notifications []notify.HistoryItem      `json:"notifications"`
	}{
		Locations:     []tracker.LocationHistory{},
		Notifications: []notify.HistoryItem{},
	}
	if s.src.Histories != nil {
		body.Locations = s.src.Histories()
	}
	if s.src.Notifications != nil {
		body.Notifications = s.src.Notifications()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) journalHandler(w http.ResponseWriter, r *http.Request) {
	if s.src.Journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "journal disabled"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}
	entries, err := s.src.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.log.Warn("journal read failed", logx.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal read failed"})
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Apply starts or stops the listener according to enabled/addr.
func (s *Server) Apply(ctx context.Context, enabled bool, addr string) {
	if addr == "" {
		addr = DefaultAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.addr == addr {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(addr)
}

func (s *Server) startLocked(addr string) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Warn("status listen failed", logx.String("addr", addr), logx.Err(err))
		return
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func(addr string) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("status server error", logx.String("addr", addr), logx.Err(err))
		}
	}(s.addr)
	s.log.Info("status server listening", logx.String("addr", s.addr))
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, addr := s.srv, s.addr
	s.srv, s.ln, s.addr = nil, nil, ""

	if ctx == nil || ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("status shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	s.log.Info("status server stopped", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
