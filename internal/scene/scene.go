// Package scene holds the 3D viewer state: at most one mesh actor, its
// name label, and the camera pose used to render them.
package scene

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/ayusman/photomesh/internal/mesh"
	"github.com/charmbracelet/log"
	"github.com/golang/geo/r3"
)

var (
	// ErrLoad is wrapped by every failed Load.
	ErrLoad = errors.New("mesh load failed")

	// ErrInvalidSize is returned by Resize for sizes outside 1..MaxSize.
	ErrInvalidSize = errors.New("invalid viewport size")
)

// Viewport limits.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	MaxSize       = 8192
)

// State of the viewer.
type State int

const (
	// Empty has no actors.
	Empty State = iota
	// Loaded has one mesh actor and its label.
	Loaded
)

func (s State) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "empty"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MeshLoader reads a mesh file into an actor and its display name.
type MeshLoader interface {
	Load(path string) (*mesh.Actor, string, error)
}

// CameraPose is the viewer camera. ViewAngle is the vertical field of view
// in degrees.
type CameraPose struct {
	ViewUp        r3.Vector  `json:"view_up"`
	FocalPoint    r3.Vector  `json:"focal_point"`
	Position      r3.Vector  `json:"position"`
	ViewAngle     float64    `json:"view_angle"`
	ClippingRange [2]float64 `json:"clipping_range"`
}

// DefaultPose returns the pose of a freshly constructed viewer.
func DefaultPose() CameraPose {
	return CameraPose{
		ViewUp:        r3.Vector{Y: 1},
		FocalPoint:    r3.Vector{},
		Position:      r3.Vector{Z: 1},
		ViewAngle:     30,
		ClippingRange: [2]float64{0.01, 1000.01},
	}
}

// ViewPlaneNormal points from the focal point towards the camera.
func (p CameraPose) ViewPlaneNormal() r3.Vector {
	return p.Position.Sub(p.FocalPoint).Normalize()
}

// Label shows the mesh name. Anchor is in display coordinates with the
// origin at the bottom-left of the viewport.
type Label struct {
	Text     string      `json:"text"`
	FontSize int         `json:"font_size"`
	Color    [3]float64  `json:"color"`
	Centered bool        `json:"centered"`
	Anchor   image.Point `json:"anchor"`
}

func newLabel(text string, width int) *Label {
	return &Label{
		Text:     text,
		FontSize: 30,
		Color:    [3]float64{1, 1, 1},
		Centered: true,
		Anchor:   labelAnchor(width),
	}
}

func labelAnchor(width int) image.Point {
	return image.Point{X: width / 2, Y: 10}
}

// View is an immutable snapshot of the scene for renderers.
type View struct {
	State  State       `json:"state"`
	Actor  *mesh.Actor `json:"actor,omitempty"`
	Label  *Label      `json:"label,omitempty"`
	Pose   CameraPose  `json:"pose"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
}

// EventKind identifies a scene transition.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventCleared
	EventReset
	EventResized
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventCleared:
		return "cleared"
	case EventReset:
		return "reset"
	case EventResized:
		return "resized"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a transition completes.
type Event struct {
	Kind EventKind
	// Source is the mesh file of the current actor, empty when there is none.
	Source string
	Width  int
	Height int
}

// Scene is the viewer state machine. All methods are safe for concurrent use.
type Scene struct {
	loader MeshLoader

	// loadMu serializes Load calls so parsing happens outside mu.
	loadMu sync.Mutex

	mu     sync.RWMutex
	state  State
	actor  *mesh.Actor
	label  *Label
	pose   CameraPose
	width  int
	height int

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// New creates an empty scene with the given viewport size. Sizes outside
// 1..MaxSize fall back to the defaults.
func New(loader MeshLoader, width, height int) *Scene {
	if !validSize(width) {
		width = DefaultWidth
	}
	if !validSize(height) {
		height = DefaultHeight
	}
	return &Scene{
		loader: loader,
		state:  Empty,
		pose:   DefaultPose(),
		width:  width,
		height: height,
		subs:   make(map[int]func(Event)),
	}
}

// Load replaces the current actor with the mesh at path and fits the camera
// to it. On failure the scene is left exactly as it was.
func (s *Scene) Load(path string) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	actor, name, err := s.loader.Load(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	s.mu.Lock()
	s.clearLocked()
	s.actor = actor
	s.label = newLabel(name, s.width)
	s.state = Loaded
	s.fitLocked()
	ev := s.eventLocked(EventLoaded)
	s.mu.Unlock()

	log.Info("Mesh loaded", "name", name, "variant", actor.Variant, "path", actor.Source)
	s.notify(ev)
	return nil
}

// ResetView restores the default camera pose and refits it to the current
// actor, if any. The state does not change.
func (s *Scene) ResetView() {
	s.mu.Lock()
	s.resetLocked()
	ev := s.eventLocked(EventReset)
	s.mu.Unlock()

	s.notify(ev)
}

// Clear removes all actors and resets the view. Calling it on an empty
// scene is a no-op apart from the reset.
func (s *Scene) Clear() {
	s.mu.Lock()
	s.clearLocked()
	s.resetLocked()
	ev := s.eventLocked(EventCleared)
	s.mu.Unlock()

	s.notify(ev)
}

// Resize records a new viewport size and moves the label anchor.
func (s *Scene) Resize(width, height int) error {
	if !validSize(width) || !validSize(height) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	s.mu.Lock()
	s.width = width
	s.height = height
	if s.label != nil {
		l := *s.label
		l.Anchor = labelAnchor(width)
		s.label = &l
	}
	ev := s.eventLocked(EventResized)
	s.mu.Unlock()

	s.notify(ev)
	return nil
}

func validSize(n int) bool {
	return n > 0 && n <= MaxSize
}

// State returns the current state.
func (s *Scene) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// View returns a snapshot of the scene. Actor data is shared and must not
// be modified.
func (s *Scene) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		State:  s.state,
		Actor:  s.actor,
		Pose:   s.pose,
		Width:  s.width,
		Height: s.height,
	}
	if s.label != nil {
		l := *s.label
		v.Label = &l
	}
	return v
}

// Subscribe registers fn for scene events and returns a function that
// removes it. fn runs on the goroutine that made the transition.
func (s *Scene) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Scene) notify(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Scene) eventLocked(kind EventKind) Event {
	ev := Event{Kind: kind, Width: s.width, Height: s.height}
	if s.actor != nil {
		ev.Source = s.actor.Source
	}
	return ev
}

func (s *Scene) clearLocked() {
	s.actor = nil
	s.label = nil
	s.state = Empty
}

func (s *Scene) resetLocked() {
	s.pose = DefaultPose()
	s.fitLocked()
}

// fitLocked points the camera at the actor bounds, keeping the current
// view direction, and backs off far enough for the bounding sphere to fill
// the view angle.
func (s *Scene) fitLocked() {
	if s.actor == nil {
		return
	}
	s.pose = fitPose(s.pose, s.actor.Bounds)
}

func fitPose(p CameraPose, b mesh.Bounds) CameraPose {
	center := b.Center()
	radius := b.Radius()
	if radius == 0 {
		radius = 0.5
	}

	angle := p.ViewAngle * math.Pi / 180
	distance := radius / math.Sin(angle/2)

	vn := p.ViewPlaneNormal()
	if vn == (r3.Vector{}) {
		vn = r3.Vector{Z: 1}
	}

	up := p.ViewUp
	if math.Abs(up.Normalize().Dot(vn)) > 0.999 {
		log.Warn("Resetting view-up since view plane normal is parallel")
		up = r3.Vector{X: -up.Z, Y: up.X, Z: up.Y}
	}

	p.ViewUp = up
	p.FocalPoint = center
	p.Position = center.Add(vn.Mul(distance))
	p.ClippingRange = clippingRange(distance, radius)
	return p
}

// clippingRange brackets a sphere of radius r at distance d from the eye.
func clippingRange(d, r float64) [2]float64 {
	near := 0.99 * (d - r)
	far := 1.01 * (d + r)
	if floor := 0.001 * far; near < floor {
		near = floor
	}
	return [2]float64{near, far}
}
