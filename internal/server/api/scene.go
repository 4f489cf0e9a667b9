package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/ayusman/photomesh/internal/mesh"
	"github.com/ayusman/photomesh/internal/scene"
)

// SceneHandler serves /api/scene.
type SceneHandler struct {
	scene *scene.Scene
}

// NewSceneHandler creates a SceneHandler for s.
func NewSceneHandler(s *scene.Scene) *SceneHandler {
	return &SceneHandler{scene: s}
}

type actorResponse struct {
	*mesh.Actor
	Vertices int `json:"vertices"`
	Faces    int `json:"faces"`
}

type sceneResponse struct {
	State  scene.State      `json:"state"`
	Actor  *actorResponse   `json:"actor,omitempty"`
	Label  *scene.Label     `json:"label,omitempty"`
	Pose   scene.CameraPose `json:"pose"`
	Width  int              `json:"width"`
	Height int              `json:"height"`
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func toSceneResponse(v scene.View) sceneResponse {
	resp := sceneResponse{
		State:  v.State,
		Label:  v.Label,
		Pose:   v.Pose,
		Width:  v.Width,
		Height: v.Height,
	}
	if v.Actor != nil {
		resp.Actor = &actorResponse{
			Actor:    v.Actor,
			Vertices: len(v.Actor.Geometry.Vertices),
			Faces:    len(v.Actor.Geometry.Faces),
		}
	}
	return resp
}

// ServeHTTP routes scene requests.
func (h *SceneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := subpath(r, "/api/scene")

	if action == "" || action == "render" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		if action == "render" {
			h.render(w, r)
			return
		}
		writeJSON(w, http.StatusOK, toSceneResponse(h.scene.View()))
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch action {
	case "load":
		h.load(w, r)
	case "reset":
		h.scene.ResetView()
		writeJSON(w, http.StatusOK, toSceneResponse(h.scene.View()))
	case "clear":
		h.scene.Clear()
		writeJSON(w, http.StatusOK, toSceneResponse(h.scene.View()))
	case "resize":
		h.resize(w, r)
	default:
		http.NotFound(w, r)
	}
}

// load handles POST /api/scene/load with {"path": ...}.
func (h *SceneHandler) load(w http.ResponseWriter, r *http.Request) {
	path, ok := decodePath(w, r)
	if !ok {
		return
	}

	if err := h.scene.Load(path); err != nil {
		writeError(w, loadStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSceneResponse(h.scene.View()))
}

func loadStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, mesh.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusUnprocessableEntity
	}
}

// resize handles POST /api/scene/resize with {"width": ..., "height": ...}.
func (h *SceneHandler) resize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.scene.Resize(req.Width, req.Height); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSceneResponse(h.scene.View()))
}

// render handles GET /api/scene/render.
func (h *SceneHandler) render(w http.ResponseWriter, r *http.Request) {
	data, err := scene.RenderJPEG(h.scene.View())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render scene")
		return
	}
	writeJPEG(w, data)
}
