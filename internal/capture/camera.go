// Package capture provides camera capture and the live annotation loop
// using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"
)

// DefaultProbeLimit is how many device indices Open tries, starting at 0.
const DefaultProbeLimit = 10

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrDeviceNotFound is returned when no probed device index opens.
	ErrDeviceNotFound = errors.New("no camera device found")
	// ErrNoFrameAvailable is returned when the device yields no frame, or
	// when a capture is requested before any frame was acquired.
	ErrNoFrameAvailable = errors.New("no frame available")
)

// Device is the subset of *gocv.VideoCapture the camera needs.
type Device interface {
	Read(m *gocv.Mat) bool
	IsOpened() bool
	Close() error
}

// DeviceOpener opens the capture device with the given index.
type DeviceOpener func(deviceID int) (Device, error)

// OpenVideoDevice opens a real camera through OpenCV.
func OpenVideoDevice(deviceID int) (Device, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %d did not open", deviceID)
	}
	return vc, nil
}

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	DeviceID() int
	IsOpen() bool
}

// cameraImpl owns a single capture device chosen by probing indices.
type cameraImpl struct {
	probeLimit int
	opener     DeviceOpener
	device     Device
	deviceID   int
	mu         sync.Mutex
	running    bool
}

// NewCamera creates a Camera that probes indices [0, probeLimit) on real
// hardware. Values less than or equal to 0 use DefaultProbeLimit.
func NewCamera(probeLimit int) Camera {
	return NewCameraWithOpener(probeLimit, OpenVideoDevice)
}

// NewCameraWithOpener is NewCamera with a custom device opener.
func NewCameraWithOpener(probeLimit int, opener DeviceOpener) Camera {
	if probeLimit <= 0 {
		probeLimit = DefaultProbeLimit
	}
	return &cameraImpl{
		probeLimit: probeLimit,
		opener:     opener,
		deviceID:   -1,
	}
}

// Open binds to the first device index that opens, trying them in
// ascending order. No index after the bound one is attempted.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	for id := 0; id < c.probeLimit; id++ {
		device, err := c.opener(id)
		if err != nil || device == nil {
			log.Debug("Camera probe failed", "index", id, "err", err)
			continue
		}

		c.device = device
		c.deviceID = id
		c.running = true
		log.Info("Camera launched", "index", id)
		return nil
	}

	return fmt.Errorf("%w: probed indices 0..%d", ErrDeviceNotFound, c.probeLimit-1)
}

// Close releases the device. Calling it again, or before Open, is a no-op.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.device == nil {
		c.running = false
		return nil
	}

	err := c.device.Close()
	c.device = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.device == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.device.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrameAvailable
	}

	return &mat, nil
}

// DeviceID returns the bound device index, or -1 when not open.
func (c *cameraImpl) DeviceID() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return -1
	}
	return c.deviceID
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
