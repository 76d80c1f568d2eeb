// Package server is the local preview server started by the serve stage.
//
// It serves the build destination as static files with the livereload client
// injected into HTML pages, the livereload event stream and script, and
// optionally the Prometheus metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/livereload"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Server serves one destination directory. Start is idempotent so every build
// that reaches the serve stage can call it.
type Server struct {
	cfg     config.ServerConfig
	hub     *livereload.Hub
	metrics http.Handler
	mpath   string
	ln      net.Listener

	once     sync.Once
	startErr error
	mu       sync.Mutex
	srv      *http.Server
	addr     string
}

// Option customizes a Server.
type Option func(*Server)

// WithListener serves on a pre-bound listener instead of Host:Port.
func WithListener(ln net.Listener) Option {
	return func(s *Server) { s.ln = ln }
}

// WithLiveReload mounts hub and injects the client script into HTML pages.
func WithLiveReload(hub *livereload.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithMetrics mounts h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.mpath = path
		s.metrics = h
	}
}

// New creates a stopped Server.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start binds the listener and serves root in the background. Later calls
// return the result of the first one.
func (s *Server) Start(root string) error {
	s.once.Do(func() { s.startErr = s.start(root) })
	return s.startErr
}

func (s *Server) start(root string) error {
	ln := s.ln
	if ln == nil {
		addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryNetwork, "preview server listen").
				WithContext("addr", addr).Build()
		}
	}
	// No write timeout: the livereload stream is long-lived.
	srv := &http.Server{
		Handler:           s.Handler(root),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("preview server error", logfields.Error(err))
		}
	}()
	slog.Info("Preview server started", slog.String("url", "http://"+s.addr+"/"), logfields.Path(root))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the route set for root.
func (s *Server) Handler(root string) http.Handler {
	mux := http.NewServeMux()
	var files http.Handler = http.FileServer(http.Dir(root))
	if s.hub != nil {
		mux.Handle(livereload.EventsPath, cors(s.hub))
		mux.Handle(livereload.ScriptPath, cors(livereload.ScriptHandler()))
		files = livereload.Inject(files)
	}
	if s.metrics != nil {
		mux.Handle(s.mpath, s.metrics)
	}
	mux.Handle("/", noCache(files))
	return chain(slog.Default(), mux)
}

// Shutdown stops the server and disconnects livereload clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Shutdown()
	}
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("preview server shutdown: %w", err)
	}
	slog.Info("Preview server stopped")
	return nil
}
