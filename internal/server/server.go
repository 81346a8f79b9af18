// Package server exposes an objfs.Filesystem over HTTP.
//
// Routes:
//
//	GET    /v1/files/*            read an object (?metadata=true for metadata only)
//	PUT    /v1/files/*            write an object (?update=true keeps the current ACL)
//	HEAD   /v1/files/*            existence check
//	DELETE /v1/files/*            delete an object
//	GET    /v1/list               list a directory (?dir=&recursive=)
//	POST   /v1/dirs/*             create a directory marker
//	DELETE /v1/dirs/*             delete a directory and everything under it
//	POST   /v1/copy, /v1/rename   {"from": "...", "to": "..."}
//	GET    /v1/visibility/*       read visibility
//	PUT    /v1/visibility/*       {"visibility": "public"|"private"}
//	GET    /v1/url/*              public URL, or a signed one with ?ttl=
//	GET    /healthz, /metrics
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/koustreak/bucketfs/internal/objfs"
	"github.com/koustreak/bucketfs/internal/obs/metrics"
	"github.com/koustreak/bucketfs/internal/obs/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

// Server routes HTTP requests to a Filesystem.
type Server struct {
	fs       objfs.Filesystem
	log      *logger.Logger
	gatherer prometheus.Gatherer
	httpm    *metrics.HTTPMetrics
	tp       trace.TracerProvider
	now      func() time.Time
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l.Named("http") }
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHTTPMetrics instruments every request with m.
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) { s.httpm = m }
}

// WithTracerProvider opens a server span per request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) { s.tp = tp }
}

// WithClock overrides the clock used to turn ?ttl= into an expiration.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the router for fs.
func New(fs objfs.Filesystem, opts ...Option) *Server {
	s := &Server{
		fs:  fs,
		log: logger.Global().Named("http"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.httpm != nil {
		r.Use(s.httpm.Middleware)
	}
	if s.tp != nil {
		r.Use(tracing.Middleware(s.tp))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/files/*", s.handleRead)
		r.Head("/files/*", s.handleHas)
		r.Put("/files/*", s.handleWrite)
		r.Delete("/files/*", s.handleDelete)

		r.Get("/list", s.handleList)

		r.Post("/dirs/*", s.handleCreateDir)
		r.Delete("/dirs/*", s.handleDeleteDir)

		r.Post("/copy", s.handleCopy)
		r.Post("/rename", s.handleRename)

		r.Get("/visibility/*", s.handleGetVisibility)
		r.Put("/visibility/*", s.handleSetVisibility)

		r.Get("/url/*", s.handleURL)
	})
	return r
}

// RoutePattern returns the chi route pattern matched by a served request.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// requestLogger writes one access log line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqLog := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

		reqLog.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
