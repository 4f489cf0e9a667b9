// Package still holds the single captured photo and persists it on request.
//
// Frames arrive from the camera in OpenCV's BGR channel order. The store
// keeps its image in RGB order and converts back to BGR on every write, and
// from BGR on every read, so that colours survive a save/load round trip.
package still

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultExtension is appended to save paths that carry no extension.
const DefaultExtension = ".jpg"

var (
	// ErrNoImageCaptured is returned by Save when nothing has been captured.
	ErrNoImageCaptured = errors.New("no image captured")
	// ErrWriteFailed is returned when the encoder refuses to write the file.
	ErrWriteFailed = errors.New("failed to write image")
)

// Store holds at most one image. Set and Load replace it wholesale; it is
// never modified in place.
type Store struct {
	mu  sync.RWMutex
	img *gocv.Mat // RGB
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// Set replaces the held image with a copy of frame, which must be BGR.
func (s *Store) Set(frame gocv.Mat) {
	rgb := gocv.NewMat()
	gocv.CvtColor(frame, &rgb, gocv.ColorBGRToRGB)
	s.replace(&rgb)
}

// Has reports whether an image is held.
func (s *Store) Has() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img != nil
}

// Image returns a copy of the held image in RGB order. The caller closes it.
func (s *Store) Image() (gocv.Mat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.img == nil {
		return gocv.Mat{}, ErrNoImageCaptured
	}
	return s.img.Clone(), nil
}

// BGR returns a copy of the held image in OpenCV channel order, ready for
// encoding. The caller closes it.
func (s *Store) BGR() (gocv.Mat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.img == nil {
		return gocv.Mat{}, ErrNoImageCaptured
	}
	bgr := gocv.NewMat()
	gocv.CvtColor(*s.img, &bgr, gocv.ColorRGBToBGR)
	return bgr, nil
}

// JPEG encodes the held image.
func (s *Store) JPEG() ([]byte, error) {
	bgr, err := s.BGR()
	if err != nil {
		return nil, err
	}
	defer bgr.Close()

	buf, err := gocv.IMEncode(".jpg", bgr)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// Save writes the held image to path, appending DefaultExtension when path
// has none, and returns the path actually written. Nothing is written when
// the store is empty.
func (s *Store) Save(path string) (string, error) {
	bgr, err := s.BGR()
	if err != nil {
		return "", err
	}
	defer bgr.Close()

	if filepath.Ext(path) == "" {
		path += DefaultExtension
	}

	if !gocv.IMWrite(path, bgr) {
		return "", fmt.Errorf("%w: %s", ErrWriteFailed, path)
	}

	log.Info("Image saved", "path", path)
	return path, nil
}

// Load replaces the held image with the photo at path. OpenCV decodes what
// it can; other formats such as GIF go through the Go image decoders.
func (s *Store) Load(path string) error {
	bgr := gocv.IMRead(path, gocv.IMReadColor)
	if !bgr.Empty() {
		defer bgr.Close()
		s.Set(bgr)
		return nil
	}
	bgr.Close()

	rgb, err := decodeRGB(path)
	if err != nil {
		return fmt.Errorf("load photo %s: %w", path, err)
	}
	s.replace(rgb)
	return nil
}

// Close releases the held image.
func (s *Store) Close() {
	s.replace(nil)
}

func (s *Store) replace(img *gocv.Mat) {
	s.mu.Lock()
	old := s.img
	s.img = img
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// decodeRGB decodes path with the registered Go image decoders and packs
// the pixels into an RGB Mat.
func decodeRGB(path string) (*gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	pix := make([]byte, 0, b.Dx()*b.Dy()*3)
	for i := 0; i < len(rgba.Pix); i += 4 {
		pix = append(pix, rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
	}

	view, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, err
	}
	// view may alias pix; own the pixels before pix goes out of scope.
	mat := view.Clone()
	view.Close()
	runtime.KeepAlive(pix)

	return &mat, nil
}
