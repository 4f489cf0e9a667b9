package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera replays a fixed sequence of frames. It satisfies Camera so
// the loop and the app can run without a device.
type MockCamera struct {
	mu       sync.Mutex
	frames   []*gocv.Mat
	next     int
	repeat   bool
	open     bool
	reads    int
	releases int
}

// NewMockCamera creates a MockCamera over frames. With repeat set, playback
// wraps around; otherwise it reports ErrNoFrameAvailable once exhausted.
// The caller keeps ownership of frames.
func NewMockCamera(frames []*gocv.Mat, repeat bool) *MockCamera {
	return &MockCamera{frames: frames, repeat: repeat}
}

// Open starts playback from the first frame.
func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.next = 0
	return nil
}

// Close stops playback. Only closing an open camera counts as a release.
func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		c.releases++
	}
	c.open = false
	return nil
}

// ReadFrame returns a clone of the next frame. The caller closes it.
func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	c.reads++

	if c.next >= len(c.frames) {
		if !c.repeat || len(c.frames) == 0 {
			return nil, ErrNoFrameAvailable
		}
		c.next = 0
	}

	frame := c.frames[c.next].Clone()
	c.next++
	return &frame, nil
}

func (c *MockCamera) DeviceID() int { return 0 }

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// CloseCount reports how many times an open camera was released.
func (c *MockCamera) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// Reads reports how many frames were requested while open.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
