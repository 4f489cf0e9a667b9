package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ayusman/photomesh/internal/capture"
)

// statsInterval is how often the loop reports its tick rate.
const statsInterval = 10 * time.Second

// runLoop drives the capture loop until ctx is cancelled. A detector
// failure releases the camera and is reported on Err; the rest of the app
// keeps running.
func (a *App) runLoop(ctx context.Context) {
	defer a.wg.Done()

	stats := newTickStats()
	unsubscribe := a.loop.Subscribe(stats.record)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stats.report()
			}
		}
	}()
	defer close(done)

	log.Info("Capture loop started")
	if err := a.loop.Run(ctx); err != nil {
		a.loopFailed(err)
		return
	}
	log.Info("Capture loop stopped")
}

func (a *App) loopFailed(err error) {
	a.mu.Lock()
	a.cameraReady = false
	a.mu.Unlock()

	log.Error("Capture loop failed, releasing camera", "err", err)
	if cerr := a.camera.Close(); cerr != nil {
		log.Error("Error closing camera", "err", cerr)
	}

	select {
	case a.loopErr <- err:
	default:
	}
}

// runWatcher reloads the scene when the loaded mesh changes on disk.
func (a *App) runWatcher(ctx context.Context) {
	defer a.wg.Done()
	if err := a.watcher.Run(ctx); err != nil {
		log.Error("Mesh watcher stopped", "err", err)
	}
}

// Snap opens the camera, runs ticks until a frame has been acquired,
// captures it, and saves it to path. It must not be used while Start is
// running the loop.
func (a *App) Snap(ctx context.Context, path string) (string, error) {
	if err := a.camera.Open(); err != nil {
		return "", err
	}

	ticker := time.NewTicker(a.settings.TickInterval())
	defer ticker.Stop()

	for a.loop.Seq() == 0 {
		if err := a.loop.Tick(); err != nil {
			return "", err
		}
		if a.loop.Seq() > 0 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}

	if err := a.loop.CaptureNow(); err != nil {
		return "", err
	}
	return a.still.Save(path)
}

// tickStats counts ticks and faces between reports.
type tickStats struct {
	ticks atomic.Int64
	faces atomic.Int64
	since time.Time
}

func newTickStats() *tickStats {
	return &tickStats{since: time.Now()}
}

// record is called from the loop goroutine.
func (s *tickStats) record(r capture.TickResult) {
	s.ticks.Add(1)
	s.faces.Add(int64(len(r.Regions)))
}

func (s *tickStats) report() {
	ticks := s.ticks.Swap(0)
	faces := s.faces.Swap(0)
	elapsed := time.Since(s.since)
	s.since = time.Now()

	if ticks > 0 {
		log.Debug("Capture loop", "ticks", ticks, "fps", float64(ticks)/elapsed.Seconds(), "faces", faces)
	}
}
