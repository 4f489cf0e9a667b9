package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/photomesh/internal/capture"
	"github.com/ayusman/photomesh/internal/still"
)

type fakeCapturer struct {
	err   error
	calls int
}

func (f *fakeCapturer) CaptureNow() error {
	f.calls++
	return f.err
}

// fakeStill records what the handler asks of the still store.
type fakeStill struct {
	has      bool
	saveErr  error
	loadErr  error
	saved    string
	loaded   string
	jpegData []byte
}

func (f *fakeStill) Has() bool { return f.has }

func (f *fakeStill) Save(path string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved = path + ".jpg"
	return f.saved, nil
}

func (f *fakeStill) Load(path string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = path
	f.has = true
	return nil
}

func (f *fakeStill) JPEG() ([]byte, error) {
	if !f.has {
		return nil, still.ErrNoImageCaptured
	}
	return f.jpegData, nil
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return bytes.NewReader(data)
}

func TestCaptureHandler_Capture(t *testing.T) {
	tests := []struct {
		name       string
		capturer   Capturer
		wantStatus int
	}{
		{name: "captured", capturer: &fakeCapturer{}, wantStatus: http.StatusOK},
		{name: "no frame yet", capturer: &fakeCapturer{err: capture.ErrNoFrameAvailable}, wantStatus: http.StatusConflict},
		{name: "camera error", capturer: &fakeCapturer{err: errors.New("boom")}, wantStatus: http.StatusInternalServerError},
		{name: "no camera", capturer: nil, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCaptureHandler(tt.capturer, &fakeStill{})

			req := httptest.NewRequest(http.MethodPost, "/api/capture", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestCaptureHandler_Capture_MethodNotAllowed(t *testing.T) {
	handler := NewCaptureHandler(&fakeCapturer{}, &fakeStill{})

	for _, path := range []string{"/api/capture", "/api/capture/save", "/api/photo"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s: expected status %d, got %d", path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestCaptureHandler_Save(t *testing.T) {
	st := &fakeStill{has: true}
	handler := NewCaptureHandler(&fakeCapturer{}, st)

	req := httptest.NewRequest(http.MethodPost, "/api/capture/save", jsonBody(t, pathRequest{Path: "/tmp/shot"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp captureResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Path != "/tmp/shot.jpg" {
		t.Errorf("expected path /tmp/shot.jpg, got %s", resp.Path)
	}
}

func TestCaptureHandler_Save_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		saveErr    error
		wantStatus int
	}{
		{name: "invalid json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "missing path", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "nothing captured", body: `{"path":"x"}`, saveErr: still.ErrNoImageCaptured, wantStatus: http.StatusConflict},
		{name: "write failed", body: `{"path":"x"}`, saveErr: still.ErrWriteFailed, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCaptureHandler(nil, &fakeStill{saveErr: tt.saveErr})

			req := httptest.NewRequest(http.MethodPost, "/api/capture/save", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestCaptureHandler_Image(t *testing.T) {
	st := &fakeStill{}
	handler := NewCaptureHandler(nil, st)

	req := httptest.NewRequest(http.MethodGet, "/api/capture/image", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty store: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	st.has = true
	st.jpegData = []byte{0xff, 0xd8, 0xff}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/capture/image", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected Content-Type image/jpeg, got %s", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), st.jpegData) {
		t.Error("body does not match the held image")
	}
}

func TestCaptureHandler_LoadPhoto(t *testing.T) {
	t.Run("loads", func(t *testing.T) {
		st := &fakeStill{}
		handler := NewCaptureHandler(nil, st)

		req := httptest.NewRequest(http.MethodPost, "/api/photo", jsonBody(t, pathRequest{Path: "/photos/me.png"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if st.loaded != "/photos/me.png" {
			t.Errorf("loaded %q", st.loaded)
		}
	})

	t.Run("undecodable", func(t *testing.T) {
		handler := NewCaptureHandler(nil, &fakeStill{loadErr: errors.New("cannot decode")})

		req := httptest.NewRequest(http.MethodPost, "/api/photo", jsonBody(t, pathRequest{Path: "/photos/me.txt"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
		}
	})
}

func TestCaptureHandler_UnknownAction(t *testing.T) {
	handler := NewCaptureHandler(nil, &fakeStill{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/capture/burst", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
