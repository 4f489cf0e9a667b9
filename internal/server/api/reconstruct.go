package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ayusman/photomesh/internal/reconstruct"
	"github.com/ayusman/photomesh/internal/scene"
	"github.com/ayusman/photomesh/internal/still"
)

// Reconstructor turns the held image into a mesh and returns its path.
type Reconstructor interface {
	Reconstruct(ctx context.Context) (string, error)
}

// ReconstructHandler serves POST /api/reconstruct.
type ReconstructHandler struct {
	reconstructor Reconstructor
}

// NewReconstructHandler creates a ReconstructHandler.
func NewReconstructHandler(r Reconstructor) *ReconstructHandler {
	return &ReconstructHandler{reconstructor: r}
}

type reconstructResponse struct {
	Mesh string `json:"mesh"`
}

// ServeHTTP handles POST /api/reconstruct.
func (h *ReconstructHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	meshPath, err := h.reconstructor.Reconstruct(r.Context())
	if err != nil {
		writeError(w, reconstructStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reconstructResponse{Mesh: meshPath})
}

func reconstructStatus(err error) int {
	switch {
	case errors.Is(err, reconstruct.ErrReconstructionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, still.ErrNoImageCaptured):
		return http.StatusConflict
	case errors.Is(err, reconstruct.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, reconstruct.ErrPipelineFailed), errors.Is(err, scene.ErrLoad):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
