// Package server provides the HTTP server for photomesh.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/photomesh/internal/capture"
	"github.com/ayusman/photomesh/internal/scene"
	"github.com/ayusman/photomesh/internal/server/api"
	"github.com/ayusman/photomesh/internal/store"
	"github.com/charmbracelet/log"
)

// ShutdownTimeout bounds how long Serve waits for open requests on exit.
const ShutdownTimeout = 5 * time.Second

// FrameSource is the live camera view: the latest annotated frame and a
// feed of completed ticks.
type FrameSource interface {
	DisplayJPEG() ([]byte, error)
	Seq() uint64
	Subscribe(fn capture.TickListener) func()
}

// Config holds the server configuration. Routes are only registered for
// the collaborators that are set.
type Config struct {
	StaticDir     string
	Store         *store.Store
	Frames        FrameSource
	Capturer      api.Capturer
	Still         api.StillStore
	Scene         *scene.Scene
	Reconstructor api.Reconstructor
}

// Server represents the HTTP server for the photomesh application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	faces  *FacesHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		settings := api.NewSettingsHandler(s.config.Store)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
		s.faces = NewFacesHandler(s.config.Frames)
		s.mux.Handle("/api/faces", s.faces)
	}

	if s.config.Still != nil {
		captureHandler := api.NewCaptureHandler(s.config.Capturer, s.config.Still)
		s.mux.Handle("/api/capture", captureHandler)
		s.mux.Handle("/api/capture/", captureHandler)
		s.mux.Handle("/api/photo", captureHandler)
	}

	if s.config.Scene != nil {
		sceneHandler := api.NewSceneHandler(s.config.Scene)
		s.mux.Handle("/api/scene", sceneHandler)
		s.mux.Handle("/api/scene/", sceneHandler)
	}

	if s.config.Reconstructor != nil {
		s.mux.Handle("/api/reconstruct", api.NewReconstructHandler(s.config.Reconstructor))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Scene != nil {
		response["scene"] = s.config.Scene.State().String()
	}
	if s.config.Frames != nil {
		response["ticks"] = s.config.Frames.Seq()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("HTTP server stopped")
	return nil
}

// Close detaches the server from the frame source and drops websocket
// clients.
func (s *Server) Close() {
	if s.faces != nil {
		s.faces.Close()
	}
}
