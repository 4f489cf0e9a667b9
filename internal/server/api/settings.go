package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/photomesh/internal/config"
	"github.com/ayusman/photomesh/internal/store"
)

// SettingsHandler serves /api/settings. Stored settings override the
// config file on the next start.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a SettingsHandler with the given store.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

type settingRequest struct {
	Value string `json:"value"`
}

type listSettingsResponse struct {
	Settings []*store.Setting `json:"settings"`
	Keys     []string         `json:"keys"`
}

// ServeHTTP routes requests for /api/settings and /api/settings/{key}.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := subpath(r, "/api/settings")

	if key == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, key)
	case http.MethodPut:
		h.put(w, r, key)
	case http.MethodDelete:
		h.delete(w, r, key)
	default:
		methodNotAllowed(w)
	}
}

// list handles GET /api/settings.
func (h *SettingsHandler) list(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}
	if settings == nil {
		settings = []*store.Setting{}
	}
	writeJSON(w, http.StatusOK, listSettingsResponse{Settings: settings, Keys: config.SettingKeys()})
}

// get handles GET /api/settings/{key}.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request, key string) {
	value, err := h.store.Settings().Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get setting")
		return
	}
	writeJSON(w, http.StatusOK, store.Setting{Key: key, Value: value})
}

// put handles PUT /api/settings/{key} with {"value": ...}.
func (h *SettingsHandler) put(w http.ResponseWriter, r *http.Request, key string) {
	if !config.IsSettingKey(key) {
		writeError(w, http.StatusNotFound, "Unknown setting")
		return
	}

	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := config.CheckSetting(key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().Set(key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}
	writeJSON(w, http.StatusOK, store.Setting{Key: key, Value: req.Value})
}

// delete handles DELETE /api/settings/{key}.
func (h *SettingsHandler) delete(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.store.Settings().Delete(key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Setting not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
