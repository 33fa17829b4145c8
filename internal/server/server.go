package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tardrop/internal/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// Header read and idle timeouts. There is deliberately no read or
	// write timeout on the body: uploads from a slow sender may take as
	// long as they take, and the engine serializes them anyway.
	HTTPReadHeaderTimeout = 10 * time.Second
	HTTPIdleTimeout       = 60 * time.Second

	// UploadRateLimit is uploads per minute per client IP.
	UploadRateLimit = 12
)

// Server wires the deployment engine to the HTTP listener.
type Server struct {
	Engine   *engine.Engine
	Logger   *slog.Logger
	TestMode bool
}

// NewServer creates a server around a constructed engine instance.
func NewServer(eng *engine.Engine, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Engine:   eng,
		Logger:   logger,
		TestMode: testMode,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", req.Method,
					"path", req.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, req)
		})
	})

	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(UploadRateLimit, s.Logger))
	}

	r.Post("/", s.HandleUpload)

	// Everything else is uniformly rejected: the receiver has no
	// network-facing read capability.
	r.NotFound(s.HandleReject)
	r.MethodNotAllowed(s.HandleReject)
	r.Get("/", s.HandleReject)

	return r
}

// Start starts the HTTP server.
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("starting server", "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: HTTPReadHeaderTimeout,
		IdleTimeout:       HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}
