// Package api serves the content store over HTTP for the admin pages and
// the display clients.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/metrics"
	"github.com/sweeney/community-signage/internal/store"
)

// Options configures the API server.
type Options struct {
	Addr      string
	AssetsDir string

	// WriteLimit requests per WriteWindow are allowed per client IP on
	// mutating routes. Zero disables the limit.
	WriteLimit  int
	WriteWindow time.Duration

	Logger zerolog.Logger
}

// Server serves the content API.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	assetsDir  string
	log        zerolog.Logger
}

// New creates a Server backed by st.
func New(st *store.Store, opts Options) *Server {
	s := &Server{
		store:     st,
		assetsDir: opts.AssetsDir,
		log:       opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	if s.assetsDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.assetsDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleListEvents)
		r.Get("/announcements", s.handleListAnnouncements)
		r.Get("/settings", s.handleGetSettings)
		r.Get("/export", s.handleExport)
		r.Get("/download/csv", s.handleDownloadCSV)
		r.Get("/music/list", s.handleListMusic)
		r.Get("/revision", s.handleRevision)
		r.Get("/network-info", s.handleNetworkInfo)

		r.Group(func(r chi.Router) {
			if opts.WriteLimit > 0 {
				r.Use(writeRateLimit(opts.WriteLimit, opts.WriteWindow))
			}
			r.Post("/events", s.handleAddEvent)
			r.Delete("/events", s.handleClearEvents)
			r.Put("/events/{index}", s.handleUpdateEvent)
			r.Delete("/events/{index}", s.handleDeleteEvent)

			r.Post("/announcements", s.handleAddAnnouncement)
			r.Put("/announcements/{index}", s.handleUpdateAnnouncement)
			r.Delete("/announcements/{index}", s.handleDeleteAnnouncement)

			r.Put("/settings", s.handlePutSettings)
			r.Post("/import", s.handleImport)
		})
	})

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// accessLog logs each request and counts it by route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.APIRequestsTotal.WithLabelValues(route, metrics.StatusClass(status)).Inc()

		ev := s.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeRateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}
