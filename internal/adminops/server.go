// Package adminops is an operator surface layered on top of the
// signaling core: a read-only websocket event stream and a manual
// cleanup trigger, gated by a single operator bearer token.
package adminops

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"

	"rtc-signal/internal/keepalive"
	"rtc-signal/internal/metrics"
	"rtc-signal/internal/recovery"
	"rtc-signal/internal/session"
	"rtc-signal/internal/store"
)

// Server holds the admin surface's dependencies.
type Server struct {
	store    store.Store
	clock    session.Clock
	logger   logging.LeveledLogger
	secret   string
	hub      *Hub
	upgrader websocket.Upgrader
}

// New constructs a Server. If secret is empty, the admin routes
// respond 403 to every request rather than running unauthenticated.
func New(s store.Store, clock session.Clock, logger logging.LeveledLogger, secret string) *Server {
	return &Server{
		store:  s,
		clock:  clock,
		logger: logger,
		secret: secret,
		hub:    NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Hub exposes the event fan-out so httpapi-level request handling can
// publish lifecycle events without importing adminops internals.
func (s *Server) Hub() *Hub { return s.hub }

// RegisterRoutes mounts the admin endpoints on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/stream", s.handleStream)
	mux.HandleFunc("/admin/cleanup", s.handleCleanup)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.secret == "" {
		return false
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return false
	}
	_, err := validateAdminToken(token, s.secret)
	return err == nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("adminops: upgrade failed: %v", err)
		return
	}
	c := s.hub.add(conn)
	monitor := keepalive.NewMonitor(conn, s.logger, keepalive.DefaultConfig())
	monitor.Start()
	defer func() {
		monitor.Stop()
		s.hub.remove(c)
		recovery.SafeCloser(s.logger, conn.Close, "admin stream connection")
	}()

	// The stream is read-only from the dashboard's perspective; this
	// read loop exists only to notice the client going away or go stale.
	for monitor.IsAlive() {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	result, err := session.Cleanup(r.Context(), s.store, s.clock)
	took := time.Since(start)
	if err != nil {
		s.logger.Errorf("adminops: manual cleanup failed: %v", err)
		http.Error(w, "cleanup failed", http.StatusInternalServerError)
		return
	}

	metrics.RecordCleanup(result.Deleted, took)
	s.hub.Broadcast(Event{Kind: EventSessionExpired, Timestamp: time.Now()})

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"scanned": result.Scanned,
		"deleted": result.Deleted,
		"took_ms": took.Milliseconds(),
	})
}
