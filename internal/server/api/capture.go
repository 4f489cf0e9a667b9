package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/photomesh/internal/capture"
	"github.com/ayusman/photomesh/internal/still"
	"github.com/charmbracelet/log"
)

// Capturer freezes the latest raw camera frame into the still store.
type Capturer interface {
	CaptureNow() error
}

// StillStore holds the captured image.
type StillStore interface {
	Has() bool
	Save(path string) (string, error)
	Load(path string) error
	JPEG() ([]byte, error)
}

// CaptureHandler serves /api/capture and /api/photo.
type CaptureHandler struct {
	capturer Capturer
	still    StillStore
}

// NewCaptureHandler creates a CaptureHandler. capturer may be nil when no
// camera is available; capture requests then report 503.
func NewCaptureHandler(capturer Capturer, still StillStore) *CaptureHandler {
	return &CaptureHandler{capturer: capturer, still: still}
}

type captureResponse struct {
	Captured bool   `json:"captured"`
	Path     string `json:"path,omitempty"`
}

// ServeHTTP routes capture requests.
func (h *CaptureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/photo" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.loadPhoto(w, r)
		return
	}

	switch subpath(r, "/api/capture") {
	case "":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.capture(w, r)
	case "save":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.save(w, r)
	case "image":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.image(w, r)
	default:
		http.NotFound(w, r)
	}
}

// capture handles POST /api/capture.
func (h *CaptureHandler) capture(w http.ResponseWriter, r *http.Request) {
	if h.capturer == nil {
		writeError(w, http.StatusServiceUnavailable, "Camera unavailable")
		return
	}

	if err := h.capturer.CaptureNow(); err != nil {
		if errors.Is(err, capture.ErrNoFrameAvailable) {
			writeError(w, http.StatusConflict, "No frame acquired yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to capture frame")
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{Captured: true})
}

// save handles POST /api/capture/save with {"path": ...}.
func (h *CaptureHandler) save(w http.ResponseWriter, r *http.Request) {
	path, ok := decodePath(w, r)
	if !ok {
		return
	}

	written, err := h.still.Save(path)
	if err != nil {
		if errors.Is(err, still.ErrNoImageCaptured) {
			log.Warn("Save requested with nothing captured")
			writeError(w, http.StatusConflict, "No image captured")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{Captured: true, Path: written})
}

// image handles GET /api/capture/image.
func (h *CaptureHandler) image(w http.ResponseWriter, r *http.Request) {
	data, err := h.still.JPEG()
	if err != nil {
		if errors.Is(err, still.ErrNoImageCaptured) {
			writeError(w, http.StatusNotFound, "No image captured")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to encode image")
		return
	}
	writeJPEG(w, data)
}

// loadPhoto handles POST /api/photo with {"path": ...}.
func (h *CaptureHandler) loadPhoto(w http.ResponseWriter, r *http.Request) {
	path, ok := decodePath(w, r)
	if !ok {
		return
	}

	if err := h.still.Load(path); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{Captured: h.still.Has(), Path: path})
}
