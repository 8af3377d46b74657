// Package web serves a display's local status page, the now-showing feed
// for the kiosk browser, and an operator advance endpoint.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/status"
)

// Option configures a Server.
type Option func(*Server)

// WithAdvance enables POST /advance, which calls fn the same way the push
// button does.
func WithAdvance(fn func()) Option {
	return func(s *Server) { s.advance = fn }
}

// WithLogger sets the logger for request errors and advance requests.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// Server is the display status server.
type Server struct {
	http    *http.Server
	tracker *status.Tracker
	advance func()
	log     zerolog.Logger
}

// New creates a Server on addr reporting the tracker's state.
func New(addr string, tracker *status.Tracker, opts ...Option) *Server {
	s := &Server{tracker: tracker, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.page)
	r.Get("/index.html", s.page)
	r.Get("/index.json", s.statusJSON)
	r.Get("/now.json", s.now)
	r.Post("/advance", s.handleAdvance)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes, for mounting in tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.http.Serve(ln)
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) page(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.tracker.Snapshot()); err != nil {
		s.log.Warn().Err(err).Msg("render status page")
	}
}

func (s *Server) statusJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, status.FormatJSON(s.tracker.Snapshot()))
}

// now is polled by the kiosk browser, so it must never be cached.
func (s *Server) now(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status.FormatNow(s.tracker.Snapshot()))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if s.advance == nil {
		http.NotFound(w, r)
		return
	}
	s.log.Info().Str("remote", r.RemoteAddr).Msg("advance requested over http")
	s.advance()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
