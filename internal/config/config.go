// Package config loads photomesh settings from a TOML file, then applies
// overrides stored in the settings database.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is looked up in the data directory when no config path
// is given.
const DefaultFileName = "photomesh.toml"

// MaxSceneSize bounds each side of the scene viewport.
const MaxSceneSize = 8192

// Config holds runtime configuration.
type Config struct {
	DataDir     string            `toml:"data_dir"`
	Server      ServerConfig      `toml:"server"`
	Camera      CameraConfig      `toml:"camera"`
	Detector    DetectorConfig    `toml:"detector"`
	Capture     CaptureConfig     `toml:"capture"`
	Scene       SceneConfig       `toml:"scene"`
	Reconstruct ReconstructConfig `toml:"reconstruct"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	StaticDir string `toml:"static_dir"`
}

// CameraConfig configures device probing and the capture loop.
type CameraConfig struct {
	ProbeLimit     int `toml:"probe_limit"`
	TickIntervalMs int `toml:"tick_interval_ms"`
}

// DetectorConfig configures the face cascade.
type DetectorConfig struct {
	CascadePath  string  `toml:"cascade_path"`
	ScaleFactor  float64 `toml:"scale_factor"`
	MinNeighbors int     `toml:"min_neighbors"`
	MinSize      int     `toml:"min_size"`
}

// CaptureConfig configures where saved captures go.
type CaptureConfig struct {
	Dir string `toml:"dir"`
}

// SceneConfig configures the 3D viewer.
type SceneConfig struct {
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	Watch  bool `toml:"watch"`
}

// ReconstructConfig configures the reconstruction pipelines.
type ReconstructConfig struct {
	PipelineDir string `toml:"pipeline_dir"`
	Pipeline    string `toml:"pipeline"`
	TimeoutMs   int    `toml:"timeout_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultDataDir returns ~/.photomesh, or .photomesh when there is no home
// directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".photomesh"
	}
	return filepath.Join(home, ".photomesh")
}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Server: ServerConfig{
			Addr: ":8080",
		},
		Camera: CameraConfig{
			ProbeLimit:     10,
			TickIntervalMs: 10,
		},
		Detector: DetectorConfig{
			ScaleFactor:  1.1,
			MinNeighbors: 5,
			MinSize:      30,
		},
		Scene: SceneConfig{
			Width:  640,
			Height: 480,
		},
		Reconstruct: ReconstructConfig{
			TimeoutMs: 300000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file
// yields the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("No config file, using defaults", "path", path)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("config %s: %s", path, strict.String())
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path in TOML format.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every value outside its allowed range.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must be set"))
	}
	if c.Camera.ProbeLimit <= 0 {
		errs = append(errs, fmt.Errorf("camera.probe_limit must be positive, got %d", c.Camera.ProbeLimit))
	}
	if c.Camera.TickIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("camera.tick_interval_ms must be positive, got %d", c.Camera.TickIntervalMs))
	}
	if c.Detector.ScaleFactor <= 1 {
		errs = append(errs, fmt.Errorf("detector.scale_factor must be greater than 1, got %v", c.Detector.ScaleFactor))
	}
	if c.Detector.MinNeighbors <= 0 {
		errs = append(errs, fmt.Errorf("detector.min_neighbors must be positive, got %d", c.Detector.MinNeighbors))
	}
	if c.Detector.MinSize <= 0 {
		errs = append(errs, fmt.Errorf("detector.min_size must be positive, got %d", c.Detector.MinSize))
	}
	if c.Scene.Width <= 0 || c.Scene.Height <= 0 || c.Scene.Width > MaxSceneSize || c.Scene.Height > MaxSceneSize {
		errs = append(errs, fmt.Errorf("scene size must be within 1..%d, got %dx%d", MaxSceneSize, c.Scene.Width, c.Scene.Height))
	}
	if c.Reconstruct.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("reconstruct.timeout_ms must be positive, got %d", c.Reconstruct.TimeoutMs))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// TickInterval returns the capture loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Camera.TickIntervalMs) * time.Millisecond
}

// ReconstructTimeout returns the per-run pipeline timeout.
func (c *Config) ReconstructTimeout() time.Duration {
	return time.Duration(c.Reconstruct.TimeoutMs) * time.Millisecond
}

// LogLevel returns the parsed log level, or info when it does not parse.
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// DBPath is the settings database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "photomesh.db")
}

// CaptureDir is where the tray saves captures.
func (c *Config) CaptureDir() string {
	if c.Capture.Dir != "" {
		return c.Capture.Dir
	}
	return filepath.Join(c.DataDir, "captures")
}

// PipelineDir holds the reconstruction pipelines.
func (c *Config) PipelineDir() string {
	if c.Reconstruct.PipelineDir != "" {
		return c.Reconstruct.PipelineDir
	}
	return filepath.Join(c.DataDir, "pipelines")
}

// WorkDir receives reconstruction output.
func (c *Config) WorkDir() string {
	return filepath.Join(c.DataDir, "reconstructions")
}
