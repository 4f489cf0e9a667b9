// Package app wires the capture loop, the still store, the scene, and the
// reconstruction pipelines into one application.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ayusman/photomesh/internal/capture"
	"github.com/ayusman/photomesh/internal/config"
	"github.com/ayusman/photomesh/internal/detector"
	"github.com/ayusman/photomesh/internal/mesh"
	"github.com/ayusman/photomesh/internal/reconstruct"
	"github.com/ayusman/photomesh/internal/scene"
	"github.com/ayusman/photomesh/internal/server"
	"github.com/ayusman/photomesh/internal/still"
	"github.com/ayusman/photomesh/internal/store"
)

// ErrCameraUnavailable is returned by camera operations in degraded mode.
var ErrCameraUnavailable = errors.New("camera unavailable")

// Config holds the collaborators of an App. Camera and Detector are
// created from Settings when nil.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
}

// App owns every long-lived component and their background goroutines.
type App struct {
	settings *config.Config
	store    *store.Store
	camera   capture.Camera
	detector detector.Detector
	loop     *capture.Loop
	still    *still.Store
	scene    *scene.Scene
	recon    *reconstruct.Service
	watcher  *scene.Watcher

	mu          sync.Mutex
	cancel      context.CancelFunc
	cameraReady bool
	stopped     bool
	wg          sync.WaitGroup
	closeOnce   sync.Once
	loopErr     chan error
}

// New builds an App. A detector model that cannot be loaded is fatal and
// returned as an error wrapping detector.ErrDetectorLoad.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	det := cfg.Detector
	if det == nil {
		cascade, err := detector.NewCascadeDetector(detector.Config{
			CascadePath:  settings.Detector.CascadePath,
			ScaleFactor:  settings.Detector.ScaleFactor,
			MinNeighbors: settings.Detector.MinNeighbors,
			MinSize:      image.Point{X: settings.Detector.MinSize, Y: settings.Detector.MinSize},
		})
		if err != nil {
			return nil, err
		}
		det = cascade
	}

	recon, err := reconstruct.NewService(reconstruct.ServiceConfig{
		Dir:      settings.PipelineDir(),
		Pipeline: settings.Reconstruct.Pipeline,
		Timeout:  settings.ReconstructTimeout(),
		WorkDir:  settings.WorkDir(),
	})
	if err != nil {
		det.Close()
		return nil, err
	}

	camera := cfg.Camera
	if camera == nil {
		camera = capture.NewCamera(settings.Camera.ProbeLimit)
	}

	st := still.New()
	a := &App{
		settings: settings,
		store:    cfg.Store,
		camera:   camera,
		detector: det,
		still:    st,
		scene:    scene.New(mesh.NewLoader(), settings.Scene.Width, settings.Scene.Height),
		recon:    recon,
		loopErr:  make(chan error, 1),
	}
	a.loop = capture.NewLoop(camera, det, st, capture.LoopConfig{Interval: settings.TickInterval()})

	if n := len(recon.Pipelines()); n > 0 {
		log.Info("Reconstruction pipelines found", "count", n, "dir", settings.PipelineDir())
	}
	return a, nil
}

// Start opens the camera and starts the background goroutines. When no
// camera is found the app keeps running without the live view. The loop
// stops when ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return errors.New("app: already stopped")
	}
	if a.cancel != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		if !errors.Is(err, capture.ErrDeviceNotFound) {
			return fmt.Errorf("open camera: %w", err)
		}
		log.Warn("No camera found, running without live view", "err", err)
	} else {
		a.cameraReady = true
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.cameraReady {
		a.wg.Add(1)
		go a.runLoop(runCtx)
	}

	if a.settings.Scene.Watch {
		w, err := scene.NewWatcher(a.scene)
		if err != nil {
			log.Warn("Mesh watch disabled", "err", err)
		} else {
			a.watcher = w
			a.wg.Add(1)
			go a.runWatcher(runCtx)
		}
	}

	log.Info("Application started", "camera", a.cameraReady)
	return nil
}

// Stop cancels the background goroutines, waits for them, and releases
// the camera and every other resource exactly once. It is safe to call at
// any time, including before Start or more than once. A stopped App
// cannot be restarted.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.stopped = true
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	a.closeOnce.Do(func() {
		if err := a.camera.Close(); err != nil {
			log.Error("Error closing camera", "err", err)
		}
		if a.watcher != nil {
			a.watcher.Close()
		}
		a.loop.Close()
		a.still.Close()
		if err := a.detector.Close(); err != nil {
			log.Error("Error closing detector", "err", err)
		}
		log.Info("Application stopped")
	})
}

// Err receives the error that stopped the capture loop. After it fires the
// camera is released and the app runs without the live view.
func (a *App) Err() <-chan error {
	return a.loopErr
}

// CameraReady reports whether the camera opened on Start and has not
// failed since.
func (a *App) CameraReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cameraReady
}

// CaptureNow freezes the latest raw frame into the still store.
func (a *App) CaptureNow() error {
	if !a.CameraReady() {
		return ErrCameraUnavailable
	}
	return a.loop.CaptureNow()
}

// SaveCapture writes the held image to a new timestamped file in the
// capture directory and returns its path.
func (a *App) SaveCapture() (string, error) {
	dir := a.settings.CaptureDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	name := fmt.Sprintf("capture-%s-%s.jpg", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path, err := a.still.Save(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	log.Info("Capture saved", "path", path)
	return path, nil
}

// Reconstruct runs the reconstruction pipeline on the held image and loads
// the resulting mesh into the scene.
func (a *App) Reconstruct(ctx context.Context) (string, error) {
	meshPath, err := a.recon.Reconstruct(ctx, a.still)
	if err != nil {
		return "", err
	}
	if err := a.scene.Load(meshPath); err != nil {
		return meshPath, err
	}
	return meshPath, nil
}

// LoadMesh loads path into the scene.
func (a *App) LoadMesh(path string) error {
	return a.scene.Load(path)
}

// ServerConfig returns the HTTP server wiring for this app. Camera routes
// are only included when the camera opened, so call it after Start.
func (a *App) ServerConfig(staticDir string) server.Config {
	cfg := server.Config{
		StaticDir:     staticDir,
		Store:         a.store,
		Still:         a.still,
		Scene:         a.scene,
		Reconstructor: a,
	}
	if a.CameraReady() {
		cfg.Frames = a.loop
		cfg.Capturer = a
	}
	return cfg
}

// Loop returns the capture loop.
func (a *App) Loop() *capture.Loop {
	return a.loop
}

// Still returns the still image store.
func (a *App) Still() *still.Store {
	return a.still
}

// Scene returns the 3D scene.
func (a *App) Scene() *scene.Scene {
	return a.scene
}
