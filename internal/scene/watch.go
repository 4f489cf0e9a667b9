package scene

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/photomesh/internal/mesh"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a mesh file must stay quiet before it is
// reloaded.
const DefaultSettle = 150 * time.Millisecond

// Watcher reloads the scene when the loaded mesh or its material file
// changes on disk. It follows the scene through its events, so a new load
// moves the watch and a clear drops it.
type Watcher struct {
	scene  *Scene
	fs     *fsnotify.Watcher
	settle time.Duration

	mu     sync.Mutex
	dir    string
	source string
	files  map[string]struct{}

	unsubscribe func()
}

// NewWatcher creates a watcher for s and starts following its current
// mesh, if any.
func NewWatcher(s *Scene) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		scene:  s,
		fs:     fsw,
		settle: DefaultSettle,
		files:  make(map[string]struct{}),
	}
	w.unsubscribe = s.Subscribe(w.onEvent)

	if v := s.View(); v.Actor != nil {
		w.follow(v.Actor.Source)
	}
	return w, nil
}

// Source returns the mesh file currently watched.
func (w *Watcher) Source() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.source
}

func (w *Watcher) onEvent(ev Event) {
	switch ev.Kind {
	case EventLoaded:
		w.follow(ev.Source)
	case EventCleared:
		w.follow("")
	}
}

// follow moves the watch to source's directory. An empty source stops
// watching.
func (w *Watcher) follow(source string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if source == w.source {
		return
	}

	dir := filepath.Dir(source)
	if w.dir != "" && (source == "" || dir != w.dir) {
		if err := w.fs.Remove(w.dir); err != nil {
			log.Debug("Unwatch failed", "dir", w.dir, "err", err)
		}
		w.dir = ""
	}

	w.source = source
	w.files = make(map[string]struct{})
	if source == "" {
		return
	}

	mtl, _ := mesh.SiblingMaterial(source)
	w.files[filepath.Clean(source)] = struct{}{}
	w.files[filepath.Clean(mtl)] = struct{}{}

	if w.dir == "" {
		if err := w.fs.Add(dir); err != nil {
			log.Warn("Cannot watch mesh directory", "dir", dir, "err", err)
			return
		}
		w.dir = dir
	}
	log.Debug("Watching mesh", "path", source)
}

func (w *Watcher) matches(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, ok := w.files[filepath.Clean(name)]
	return w.source, ok
}

// Run processes file events until ctx is done. Bursts of writes are
// collapsed into one reload once the files settle.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending string
	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			source, ok := w.matches(e.Name)
			if !ok {
				continue
			}
			pending = source
			timer.Reset(w.settle)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Error("Mesh watch error", "err", err)

		case <-timer.C:
			if pending == "" || pending != w.Source() {
				continue
			}
			log.Info("Mesh changed on disk, reloading", "path", pending)
			if err := w.scene.Load(pending); err != nil {
				log.Warn("Reload failed, keeping previous mesh", "err", err)
			}
			pending = ""
		}
	}
}

// Close stops following the scene and releases the file watcher.
func (w *Watcher) Close() error {
	w.unsubscribe()
	return w.fs.Close()
}
