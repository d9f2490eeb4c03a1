// Package server provides an importable static file server for the TodoMVC
// application under test. E2E suites start it once, run every scenario
// against it, and shut it down afterwards.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8000" or ":0" for random port)
	Root         string        // Directory to serve; empty serves the bundled TodoMVC page
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout
	Logger       *log.Logger   // Access log; nil discards
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves the application under test over HTTP.
// A Server may be started again after Shutdown; every Start binds a new
// listener and http.Server.
type Server struct {
	cfg        Config
	handler    http.Handler
	httpServer *http.Server
	logger     *log.Logger
	listener   net.Listener
	addr       string
	mu         sync.Mutex
	running    bool
	done       chan error
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))

	if cfg.Root == "" {
		r.Get("/", serveTodoPage)
		r.Get("/index.html", serveTodoPage)
	} else {
		info, err := os.Stat(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("invalid root %q: %w", cfg.Root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("invalid root %q: not a directory", cfg.Root)
		}
		r.Handle("/*", http.FileServer(http.Dir(cfg.Root)))
	}

	return &Server{
		cfg:     cfg,
		handler: r,
		logger:  logger,
	}, nil
}

func serveTodoPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(TodoPage))
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	// Create listener to get actual port
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	// An http.Server cannot serve again once shut down.
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true
	s.done = make(chan error, 1)

	go func(hs *http.Server, done chan<- error) {
		err := hs.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str("addr", ln.Addr().String()).Msg("server stopped unexpectedly")
			done <- err
		}
		close(done)
	}(s.httpServer, s.done)

	s.logger.Info().Str("addr", s.addr).Msg("server listening")
	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.addr
}

// URL returns the base URL browsers should load, using localhost for
// wildcard listen addresses. Returns empty string if server is not running.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Done returns a channel that yields the serve error, if any, and is closed
// when the server stops. Nil before Start.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// accessLog logs one line per request.
func accessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
