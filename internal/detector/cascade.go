package detector

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"
)

// FrontalFaceCascade is the file name of the pretrained frontal-face model.
const FrontalFaceCascade = "haarcascade_frontalface_default.xml"

// cascadeSearchDirs lists where OpenCV packages usually install their
// Haar cascades.
var cascadeSearchDirs = []string{
	"data",
	"/usr/share/opencv4/haarcascades",
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv/haarcascades",
	"/usr/local/share/opencv/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
}

// CascadeDetector implements Detector with an OpenCV Haar cascade.
type CascadeDetector struct {
	config     Config
	classifier gocv.CascadeClassifier
	path       string
	mu         sync.Mutex
	closed     bool
}

// NewCascadeDetector loads the cascade named by config.CascadePath, falling
// back to the standard install locations. It returns an error wrapping
// ErrDetectorLoad when no model can be loaded.
func NewCascadeDetector(config Config) (*CascadeDetector, error) {
	config = config.withDefaults()

	classifier := gocv.NewCascadeClassifier()
	for _, candidate := range cascadeCandidates(config.CascadePath) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if classifier.Load(candidate) {
			log.Info("Loaded face cascade", "path", candidate)
			return &CascadeDetector{
				config:     config,
				classifier: classifier,
				path:       candidate,
			}, nil
		}
		log.Warn("Cascade file rejected", "path", candidate)
	}

	classifier.Close()
	if config.CascadePath != "" {
		return nil, fmt.Errorf("%w: %s", ErrDetectorLoad, config.CascadePath)
	}
	return nil, fmt.Errorf("%w: %s not found", ErrDetectorLoad, FrontalFaceCascade)
}

// cascadeCandidates returns the paths to try, the explicit one first.
func cascadeCandidates(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if dir := os.Getenv("OPENCV_HAARCASCADES"); dir != "" {
		paths = append(paths, filepath.Join(dir, FrontalFaceCascade))
	}
	for _, dir := range cascadeSearchDirs {
		paths = append(paths, filepath.Join(dir, FrontalFaceCascade))
	}
	return paths
}

// Detect converts the frame to grayscale and runs the cascade over it.
func (d *CascadeDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detect: classifier %s is closed", d.path)
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	faces := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		d.config.MinSize,
		image.Point{},
	)

	return faces, nil
}

// Path returns the cascade file that was loaded.
func (d *CascadeDetector) Path() string {
	return d.path
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.classifier.Close()
}
