package reconstruct

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrPipelineNotFound is returned when a requested pipeline cannot be found.
var ErrPipelineNotFound = errors.New("pipeline not found")

// Manager discovers pipelines in a directory.
type Manager struct {
	dir       string
	pipelines map[string]*Pipeline
	order     []string
	mu        sync.RWMutex
}

// NewManager creates a Manager for the given pipeline directory.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:       dir,
		pipelines: make(map[string]*Pipeline),
	}
}

// Discover rescans the pipeline directory. A missing directory yields no
// pipelines. Subdirectories with an unreadable or invalid manifest are
// skipped.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pipelines = make(map[string]*Pipeline)
	m.order = nil

	if m.dir == "" {
		return nil
	}
	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(path, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Warn("Skipping pipeline with invalid manifest", "dir", path, "err", err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			log.Warn("Skipping pipeline without name or executable", "dir", path)
			continue
		}
		if _, dup := m.pipelines[manifest.Name]; dup {
			log.Warn("Duplicate pipeline name", "name", manifest.Name, "dir", path)
			continue
		}

		m.pipelines[manifest.Name] = &Pipeline{
			Manifest:   manifest,
			Path:       path,
			Executable: filepath.Join(path, manifest.Executable),
		}
		m.order = append(m.order, manifest.Name)
	}

	log.Debug("Pipelines discovered", "dir", m.dir, "count", len(m.order))
	return nil
}

// Get returns a pipeline by name.
func (m *Manager) Get(name string) (*Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pipelines[name]
	if !ok {
		return nil, ErrPipelineNotFound
	}
	return p, nil
}

// List returns all pipelines in directory order.
func (m *Manager) List() []*Pipeline {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Pipeline, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.pipelines[name])
	}
	return out
}

// Dir returns the pipeline directory.
func (m *Manager) Dir() string {
	return m.dir
}
