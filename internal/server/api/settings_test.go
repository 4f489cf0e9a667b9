package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/photomesh/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "photomesh-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0644)
}

func TestSettingsHandler_List(t *testing.T) {
	s := newTestStore(t)
	if err := s.Settings().Set("scene.width", "800"); err != nil {
		t.Fatal(err)
	}
	handler := NewSettingsHandler(s)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp listSettingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Settings) != 1 || resp.Settings[0].Value != "800" {
		t.Errorf("settings = %+v", resp.Settings)
	}
	if len(resp.Keys) == 0 {
		t.Error("expected known keys in response")
	}
}

func TestSettingsHandler_ListEmpty(t *testing.T) {
	handler := NewSettingsHandler(newTestStore(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	if !bytes.Contains(rec.Body.Bytes(), []byte(`"settings":[]`)) {
		t.Errorf("expected empty settings array, got %s", rec.Body.String())
	}
}

func TestSettingsHandler_PutGetDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSettingsHandler(s)

	req := httptest.NewRequest(http.MethodPut, "/api/settings/log.level", jsonBody(t, settingRequest{Value: "debug"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	if v, err := s.Settings().Get("log.level"); err != nil || v != "debug" {
		t.Errorf("stored value = %q, %v", v, err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings/log.level", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got store.Setting
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Key != "log.level" || got.Value != "debug" {
		t.Errorf("got %+v", got)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/settings/log.level", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings/log.level", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSettingsHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "unknown key", method: http.MethodPut, path: "/api/settings/nope.key", body: `{"value":"1"}`, wantStatus: http.StatusNotFound},
		{name: "bad value", method: http.MethodPut, path: "/api/settings/scene.width", body: `{"value":"wide"}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", method: http.MethodPut, path: "/api/settings/scene.width", body: "{", wantStatus: http.StatusBadRequest},
		{name: "delete missing", method: http.MethodDelete, path: "/api/settings/scene.width", wantStatus: http.StatusNotFound},
		{name: "post collection", method: http.MethodPost, path: "/api/settings", wantStatus: http.StatusMethodNotAllowed},
		{name: "post item", method: http.MethodPost, path: "/api/settings/scene.width", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSettingsHandler(newTestStore(t))

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
