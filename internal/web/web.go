// Package web serves the aggregation output to rendering collaborators:
// the event list as JSON, per-source health, and an iCalendar export. The
// pipeline itself stays pure; the only cache lives here, time-bounded.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"townfeed/internal/config"
	"townfeed/internal/export"
	appLog "townfeed/internal/log"
	"townfeed/internal/model"
)

// Runner produces aggregation snapshots. Satisfied by
// *aggregate.Aggregator; tests substitute their own.
type Runner interface {
	Run(ctx context.Context) model.Snapshot
}

// Server exposes the latest snapshot over HTTP, recomputing it when the
// cached one is older than the configured TTL.
type Server struct {
	cfg    *config.Config
	runner Runner
	mux    *http.ServeMux

	mu        sync.Mutex
	cached    model.Snapshot
	refreshed time.Time

	// refreshMu serializes recomputation: a burst of requests against an
	// expired cache runs one aggregation pass, not one per request.
	refreshMu sync.Mutex
}

// NewServer constructs a Server around the given snapshot producer.
func NewServer(cfg *config.Config, runner Runner) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
	return s
}

// Handler returns the HTTP handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.BasicAuth != nil && s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != "" {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Refresh forces a new aggregation pass and caches its snapshot. Used by
// the serve-mode cron schedule so requests rarely pay for a pass.
func (s *Server) Refresh(ctx context.Context) model.Snapshot {
	snap := s.runner.Run(ctx)
	s.mu.Lock()
	s.cached = snap
	s.refreshed = time.Now()
	s.mu.Unlock()
	return snap
}

// snapshot returns the cached snapshot, recomputing when stale.
func (s *Server) snapshot(ctx context.Context) model.Snapshot {
	if snap, ok := s.freshSnapshot(); ok {
		return snap
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	// Another request may have refreshed while we waited.
	if snap, ok := s.freshSnapshot(); ok {
		return snap
	}
	return s.Refresh(ctx)
}

func (s *Server) freshSnapshot() (model.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached.PassID != "" && time.Since(s.refreshed) < s.cfg.SnapshotTTL {
		return s.cached, true
	}
	return model.Snapshot{}, false
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="townfeed", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r.Context())
	writeJSON(w, struct {
		PassID      string        `json:"pass_id"`
		GeneratedAt time.Time     `json:"generated_at"`
		Events      []model.Event `json:"events"`
	}{snap.PassID, snap.GeneratedAt, snap.Events})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r.Context())
	writeJSON(w, struct {
		PassID      string               `json:"pass_id"`
		GeneratedAt time.Time            `json:"generated_at"`
		Stats       model.Stats          `json:"stats"`
		Health      []model.HealthRecord `json:"health"`
	}{snap.PassID, snap.GeneratedAt, snap.Stats(), snap.Health})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r.Context())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	_, _ = w.Write(export.Calendar(snap.Events, "Local Events"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("write json response", err)
	}
}
