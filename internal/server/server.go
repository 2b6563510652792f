// Package server exposes the viewer, its selection endpoints and the index
// API over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/apiview/internal/journal"
	"github.com/ziadkadry99/apiview/internal/loader"
	"github.com/ziadkadry99/apiview/internal/session"
	"github.com/ziadkadry99/apiview/internal/viewer"
)

// Config holds server configuration.
type Config struct {
	Port     int
	SiteName string
	AllowAll bool // allow all CORS origins (dev mode)
}

// LoaderFunc creates an unmounted index loader. The server calls it once at
// Mount and again on every reload.
type LoaderFunc func() *loader.Loader

// Server serves the viewer for one index source.
type Server struct {
	cfg       Config
	logger    *slog.Logger
	newLoader LoaderFunc
	sessions  *session.Manager
	journal   *journal.Store
	renderer  *viewer.Renderer
	router    chi.Router

	mu         sync.RWMutex
	loader     *loader.Loader
	mountCtx   context.Context
	httpServer *http.Server
	stopped    bool
}

// New creates a server. journalStore may be nil to disable the journal
// endpoint.
func New(cfg Config, newLoader LoaderFunc, sessions *session.Manager, journalStore *journal.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := viewer.NewRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "API documents"
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		newLoader: newLoader,
		sessions:  sessions,
		journal:   journalStore,
		renderer:  renderer,
		mountCtx:  context.Background(),
	}
	s.router = s.buildRouter()
	return s, nil
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// The session socket outlives any request timeout.
	r.Get("/ws/session", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Get("/api/index", s.handleIndex)
		r.With(RequireJSON).Post("/api/index/reload", s.handleReload)
		r.Get("/api/select", s.handleSelect)
		r.Get("/-/overview", s.handleOverview)
		if s.journal != nil {
			journal.RegisterRoutes(r, s.journal)
		}

		r.Get("/", s.handleViewer)
		r.Get("/{groupID}", s.handleViewer)
		r.Get("/{groupID}/*", s.handleViewer)
	})

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Mount starts loading the index. ctx bounds this and every later reload.
func (s *Server) Mount(ctx context.Context) {
	s.mu.Lock()
	s.mountCtx = ctx
	s.mu.Unlock()
	s.Reload()
}

// Reload discards the current index and sessions and loads the index again.
func (s *Server) Reload() {
	l := s.newLoader()

	s.mu.Lock()
	old := s.loader
	s.loader = l
	ctx := s.mountCtx
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	// Sessions resolve against the index they were created with.
	s.sessions.Reset()

	l.Subscribe(func(res loader.Result) {
		if done, ok := res.(loader.Done); ok {
			s.logger.Info("viewer ready", "source", l.Source(), "groups", len(done.Index))
		}
	})
	l.Mount(ctx)
}

// result returns the current load state.
func (s *Server) result() loader.Result {
	s.mu.RLock()
	l := s.loader
	s.mu.RUnlock()
	if l == nil {
		return loader.Loading{}
	}
	return l.Result()
}

// Loader returns the current loader, nil before Mount.
func (s *Server) Loader() *loader.Loader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loader
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("apiview server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and closes the loader. A later
// Serve returns right away.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	l := s.loader
	s.mu.Unlock()

	if l != nil {
		l.Close()
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
