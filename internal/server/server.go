// package server contains routing, middleware & handlers for the depicts analysis API
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the analysis service.
// Implementations handle specific endpoints (analysis jobs, results, suggestions).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server wraps http.Server with graceful shutdown tied to a context.
type Server struct {
	http   *http.Server
	logger *log.Logger
}

// New creates a Server listening on addr.
func New(addr string, handler http.Handler, logger *log.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves requests until the context is cancelled, then drains
// in-flight requests before returning.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
