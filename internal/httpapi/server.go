// Package httpapi serves the signaling rendezvous HTTP surface:
// POST /ident, POST /poll, and the CORS preflight they require.
package httpapi

import (
	"net/http"
	"time"

	"github.com/pion/logging"
	"github.com/urfave/negroni/v3"

	"rtc-signal/internal/adminops"
	"rtc-signal/internal/metrics"
	"rtc-signal/internal/session"
	"rtc-signal/internal/store"
)

// Server holds the dependencies the handlers need, threaded in
// explicitly rather than read off package-level globals.
type Server struct {
	store  store.Store
	clock  session.Clock
	logger logging.LeveledLogger
	hub    *adminops.Hub
}

// New constructs a Server. hub may be nil, in which case lifecycle
// events are simply not published anywhere.
func New(s store.Store, clock session.Clock, logger logging.LeveledLogger, hub *adminops.Hub) *Server {
	return &Server{store: s, clock: clock, logger: logger, hub: hub}
}

// publish fans a lifecycle event out to the admin stream, if one is
// wired. Safe to call with no hub configured.
func (s *Server) publish(event adminops.Event) {
	if s.hub == nil {
		return
	}
	event.Timestamp = time.Now()
	s.hub.Broadcast(event)
}

// Handler assembles the negroni middleware stack around the mux:
// logging, panic recovery, request-ID stamping, CORS, and a
// per-request timeout, in that order.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ident", s.handleIdent)
	mux.HandleFunc("/poll", s.handlePoll)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/health", s.handleHealth)

	var handler http.Handler = mux
	handler = requestTimeout(10 * time.Second)(handler)
	handler = cors(handler)
	handler = requestID(s.logger)(handler)

	n := negroni.New()
	n.Use(negroni.NewLogger())
	n.Use(negroni.NewRecovery())
	n.UseHandler(handler)
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(metrics.Get().ToJSON())
}
