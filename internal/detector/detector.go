// Package detector provides face detection for live camera frames.
package detector

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrDetectorLoad is returned when the cascade model cannot be loaded.
	ErrDetectorLoad = errors.New("face detector model failed to load")
	// ErrEmptyFrame is returned when Detect is called without pixel data.
	ErrEmptyFrame = errors.New("frame is empty")
)

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected face regions
	// in frame-pixel coordinates. The order of the regions is unspecified.
	Detect(frame *gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// CascadePath is the Haar cascade XML file. When empty, the usual
	// OpenCV install locations are searched.
	CascadePath string

	// ScaleFactor is how much the image is shrunk at each scale (default: 1.1).
	ScaleFactor float64

	// MinNeighbors is how many neighbours a candidate needs to be kept (default: 5).
	MinNeighbors int

	// MinSize is the smallest face reported (default: 30x30).
	MinSize image.Point
}

// DefaultConfig returns a Config with the frontal-face defaults.
func DefaultConfig() Config {
	return Config{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      image.Point{X: 30, Y: 30},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ScaleFactor <= 1 {
		c.ScaleFactor = def.ScaleFactor
	}
	if c.MinNeighbors <= 0 {
		c.MinNeighbors = def.MinNeighbors
	}
	if c.MinSize.X <= 0 || c.MinSize.Y <= 0 {
		c.MinSize = def.MinSize
	}
	return c
}
