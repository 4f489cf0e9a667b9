package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrReconstructionUnavailable is returned when no pipeline is installed.
	ErrReconstructionUnavailable = errors.New("no reconstruction pipeline available")
	// ErrPipelineFailed is returned when a pipeline reports failure.
	ErrPipelineFailed = errors.New("reconstruction failed")
)

// ImageSource provides the image to reconstruct from. still.Store
// satisfies it.
type ImageSource interface {
	Save(path string) (string, error)
}

// Service runs the selected pipeline against a captured image.
type Service struct {
	manager  *Manager
	executor *Executor
	name     string
	workDir  string
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Dir holds one subdirectory per pipeline.
	Dir string
	// Pipeline selects a pipeline by name. Empty picks the first one found.
	Pipeline string
	// Timeout bounds a single run.
	Timeout time.Duration
	// WorkDir receives one output directory per run. Empty uses the
	// system temp directory.
	WorkDir string
}

// NewService creates a Service and discovers the available pipelines.
func NewService(cfg ServiceConfig) (*Service, error) {
	m := NewManager(cfg.Dir)
	if err := m.Discover(); err != nil {
		return nil, fmt.Errorf("discover pipelines: %w", err)
	}
	return &Service{
		manager:  m,
		executor: NewExecutor(cfg.Timeout),
		name:     cfg.Pipeline,
		workDir:  cfg.WorkDir,
	}, nil
}

// Pipelines lists the discovered pipelines.
func (s *Service) Pipelines() []*Pipeline {
	return s.manager.List()
}

// Available reports whether a pipeline can be selected.
func (s *Service) Available() bool {
	_, err := s.selected()
	return err == nil
}

func (s *Service) selected() (*Pipeline, error) {
	if s.name != "" {
		p, err := s.manager.Get(s.name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrReconstructionUnavailable, s.name)
		}
		return p, nil
	}
	list := s.manager.List()
	if len(list) == 0 {
		return nil, ErrReconstructionUnavailable
	}
	return list[0], nil
}

// Reconstruct writes the source image into a fresh output directory, runs
// the selected pipeline on it, and returns the absolute path of the mesh
// it produced. The output directory is removed when the run fails.
func (s *Service) Reconstruct(ctx context.Context, src ImageSource) (meshPath string, err error) {
	p, err := s.selected()
	if err != nil {
		log.Warn("Reconstruction requested but no pipeline is installed", "dir", s.manager.Dir())
		return "", err
	}

	if s.workDir != "" {
		if err := os.MkdirAll(s.workDir, 0755); err != nil {
			return "", err
		}
	}
	outDir, err := os.MkdirTemp(s.workDir, "reconstruct-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(outDir)
		}
	}()
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return "", err
	}

	image, err := src.Save(filepath.Join(outDir, "input.jpg"))
	if err != nil {
		return "", err
	}

	log.Info("Reconstruction started", "pipeline", p.Manifest.Name, "image", image)
	start := time.Now()

	resp, err := s.executor.Execute(ctx, p, &Request{Image: image, OutputDir: outDir})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", ErrPipelineFailed, resp.Error)
	}
	if resp.Mesh == "" {
		return "", fmt.Errorf("%w: pipeline returned no mesh", ErrPipelineFailed)
	}

	meshPath = resp.Mesh
	if !filepath.IsAbs(meshPath) {
		meshPath = filepath.Join(outDir, meshPath)
	}
	if _, err := os.Stat(meshPath); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	}

	log.Info("Reconstruction finished", "pipeline", p.Manifest.Name, "mesh", meshPath, "took", time.Since(start))
	return meshPath, nil
}
