package server

import (
	"image"
	"sync"
	"time"

	"github.com/ayusman/photomesh/internal/capture"
)

// fakeFrames is a FrameSource driven by the test.
type fakeFrames struct {
	mu        sync.Mutex
	seq       uint64
	jpeg      []byte
	listeners map[int]capture.TickListener
	nextID    int
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{listeners: make(map[int]capture.TickListener)}
}

func (f *fakeFrames) DisplayJPEG() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jpeg == nil {
		return nil, capture.ErrNoFrameAvailable
	}
	return f.jpeg, nil
}

func (f *fakeFrames) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

func (f *fakeFrames) Subscribe(fn capture.TickListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeFrames) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// tick publishes a new frame and notifies subscribers.
func (f *fakeFrames) tick(jpeg []byte, regions ...image.Rectangle) capture.TickResult {
	f.mu.Lock()
	f.seq++
	f.jpeg = jpeg
	result := capture.TickResult{
		Seq:       f.seq,
		Regions:   regions,
		Width:     640,
		Height:    480,
		Timestamp: time.Now(),
	}
	listeners := make([]capture.TickListener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(result)
	}
	return result
}
