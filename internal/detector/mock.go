package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	faces []image.Rectangle
	err   error
	calls int
	mu    sync.Mutex
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the regions that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]image.Rectangle, len(m.faces))
	copy(out, m.faces)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
