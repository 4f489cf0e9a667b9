package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"

	"github.com/ayusman/photomesh/internal/detector"
)

// Loop timing and drawing defaults.
const (
	// DefaultTickInterval is the period between frame pulls (~100 Hz best effort).
	DefaultTickInterval = 10 * time.Millisecond
	// DefaultThickness is the outline width of a face box, in pixels.
	DefaultThickness = 2
)

// AccentColor is the face outline colour. gocv orders channels BGR, so this
// is drawn as pure blue.
var AccentColor = color.RGBA{R: 0, G: 0, B: 255, A: 0}

// Snapshotter receives the unannotated frame on capture.
type Snapshotter interface {
	Set(frame gocv.Mat)
}

// TickResult describes one completed tick.
type TickResult struct {
	Seq       uint64            `json:"seq"`
	Regions   []image.Rectangle `json:"regions"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp time.Time         `json:"timestamp"`
}

// TickListener is notified after every tick that produced a frame.
type TickListener func(TickResult)

// LoopConfig holds configuration for a Loop.
type LoopConfig struct {
	Interval  time.Duration
	Color     color.RGBA
	Thickness int
}

// DefaultLoopConfig returns the standard tick interval and outline style.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Interval:  DefaultTickInterval,
		Color:     AccentColor,
		Thickness: DefaultThickness,
	}
}

// Loop pulls frames from a Camera, outlines detected faces on a display
// copy, and keeps the raw frame of the last completed tick for capture.
type Loop struct {
	source   Camera
	detector detector.Detector
	still    Snapshotter
	config   LoopConfig

	mu        sync.Mutex
	raw       *gocv.Mat
	display   *gocv.Mat
	seq       uint64
	listeners map[int]TickListener
	nextID    int
}

// NewLoop creates a Loop. Zero fields in config take their defaults.
func NewLoop(source Camera, d detector.Detector, still Snapshotter, config LoopConfig) *Loop {
	def := DefaultLoopConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Thickness <= 0 {
		config.Thickness = def.Thickness
	}
	if config.Color == (color.RGBA{}) {
		config.Color = def.Color
	}

	return &Loop{
		source:    source,
		detector:  d,
		still:     still,
		config:    config,
		listeners: make(map[int]TickListener),
	}
}

// Tick pulls exactly one frame. A missing frame is not an error: the tick
// is skipped and the display keeps its previous content. A detector error
// is returned since it means the model is unusable.
func (l *Loop) Tick() error {
	frame, err := l.source.ReadFrame()
	if err != nil {
		log.Debug("Skipping tick", "err", err)
		return nil
	}

	regions, err := l.detector.Detect(frame)
	if err != nil {
		frame.Close()
		return fmt.Errorf("detect faces: %w", err)
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	display := frame.Clone()
	drawn := make([]image.Rectangle, 0, len(regions))

	for _, r := range regions {
		box := detector.InsetWithin(r, bounds)
		if box.Empty() {
			continue
		}
		gocv.Rectangle(&display, box, l.config.Color, l.config.Thickness)
		drawn = append(drawn, box)
	}

	l.mu.Lock()
	if l.raw != nil {
		l.raw.Close()
	}
	if l.display != nil {
		l.display.Close()
	}
	l.raw = frame
	l.display = &display
	l.seq++

	result := TickResult{
		Seq:       l.seq,
		Regions:   drawn,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Timestamp: time.Now(),
	}
	listeners := make([]TickListener, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(result)
	}

	return nil
}

// Run ticks at the configured interval until ctx is cancelled or a tick
// fails. A slow tick delays the next one; missed ticks are dropped.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Tick(); err != nil {
				return err
			}
		}
	}
}

// CaptureNow hands a copy of the last completed tick's unannotated frame
// to the Snapshotter, replacing whatever it held.
func (l *Loop) CaptureNow() error {
	l.mu.Lock()
	if l.raw == nil {
		l.mu.Unlock()
		return ErrNoFrameAvailable
	}
	snap := l.raw.Clone()
	l.mu.Unlock()
	defer snap.Close()

	if l.still == nil {
		return errors.New("capture: no image store configured")
	}
	l.still.Set(snap)
	return nil
}

// DisplayJPEG encodes the latest annotated frame as JPEG.
func (l *Loop) DisplayJPEG() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.display == nil {
		return nil, ErrNoFrameAvailable
	}

	buf, err := gocv.IMEncode(".jpg", *l.display)
	if err != nil {
		return nil, fmt.Errorf("encode display frame: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Seq returns the number of completed ticks.
func (l *Loop) Seq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Subscribe registers fn for every completed tick. The returned function
// removes the subscription.
func (l *Loop) Subscribe(fn TickListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Close releases the frames held by the loop.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.raw != nil {
		l.raw.Close()
		l.raw = nil
	}
	if l.display != nil {
		l.display.Close()
		l.display = nil
	}
}
