// Package api is the REST control plane for camera registration and
// tracking session lifecycle, plus the detection ingest and live/persisted
// track read surface.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/db"
	"github.com/banshee-data/tracksight/internal/httputil"
	"github.com/banshee-data/tracksight/internal/session"
	"github.com/banshee-data/tracksight/internal/stream"
	"github.com/banshee-data/tracksight/internal/version"
)

// Server hosts the HTTP API.
type Server struct {
	address  string
	db       *db.DB
	manager  *session.Manager
	hub      *stream.Hub
	defaults *config.TrackingParams

	server    *http.Server
	startedAt time.Time
}

// ServerConfig contains the dependencies for the API server. Hub may be nil
// to disable the live websocket endpoint; AdminDebug mounts the tsweb /debug
// surface on the same mux.
type ServerConfig struct {
	Address    string
	DB         *db.DB
	Manager    *session.Manager
	Hub        *stream.Hub
	Defaults   *config.TrackingParams
	AdminDebug bool
}

// NewServer creates the API server with its routes configured.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Defaults == nil {
		cfg.Defaults = config.DefaultTrackingParams()
	}
	s := &Server{
		address:   cfg.Address,
		db:        cfg.DB,
		manager:   cfg.Manager,
		hub:       cfg.Hub,
		defaults:  cfg.Defaults,
		startedAt: time.Now(),
	}

	mux := s.setupRoutes()
	if cfg.AdminDebug && s.db != nil {
		s.db.AttachAdminRoutes(mux)
	}
	s.server = &http.Server{
		Addr:    s.address,
		Handler: mux,
	}
	return s
}

// setupRoutes configures the HTTP routes and handlers.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/cameras", s.handleCameras)
	mux.HandleFunc("/api/cameras/", s.handleCameraAPI)
	return mux
}

// Handler returns the configured root handler, used by tests and by callers
// embedding the API into a larger mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in a goroutine and blocks until ctx is cancelled,
// then shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server stopped")
	return nil
}

// Close shuts the server down immediately.
func (s *Server) Close() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// handleHealth reports liveness and build information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"service": "tracksight",
		"version": version.Version,
		"commit":  version.GitSHA,
		"built":   version.BuildTime,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}
