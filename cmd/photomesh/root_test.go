package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/photomesh/internal/config"
	"github.com/ayusman/photomesh/internal/store"
)

func resetFlags(t *testing.T) {
	t.Helper()
	configPath, dataDir, logLevel = "", "", ""
	t.Cleanup(func() { configPath, dataDir, logLevel = "", "", "" })
}

func TestLoadConfig_Layering(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	toml := "[scene]\nwidth = 800\nheight = 600\n\n[log]\nlevel = \"warn\"\n"
	if err := os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte(toml), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := store.New(filepath.Join(dir, "photomesh.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Settings().Set("scene.height", "720"); err != nil {
		t.Fatal(err)
	}
	if err := s.Settings().Set("log.level", "error"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	dataDir = dir
	logLevel = "debug"

	c, opened, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	defer opened.Close()

	if c.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", c.DataDir, dir)
	}
	if c.Scene.Width != 800 {
		t.Errorf("width = %d, want 800 from the file", c.Scene.Width)
	}
	if c.Scene.Height != 720 {
		t.Errorf("height = %d, want 720 from stored settings", c.Scene.Height)
	}
	if c.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug from the flag", c.Log.Level)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name: "bad config file",
			setup: func(t *testing.T, dir string) {
				if err := os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte("[scene]\ncolour = 1\n"), 0644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "bad stored setting",
			setup: func(t *testing.T, dir string) {
				s, err := store.New(filepath.Join(dir, "photomesh.db"))
				if err != nil {
					t.Fatal(err)
				}
				defer s.Close()
				if err := s.Settings().Set("scene.width", "-3"); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name:  "bad log level flag",
			setup: func(t *testing.T, dir string) { logLevel = "loud" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			dir := t.TempDir()
			dataDir = dir
			tt.setup(t, dir)

			if _, s, err := loadConfig(); err == nil {
				s.Close()
				t.Error("loadConfig() succeeded")
			}
		})
	}
}

func TestViewerURL(t *testing.T) {
	tests := map[string]string{
		":8080":          "http://localhost:8080/",
		"127.0.0.1:9000": "http://127.0.0.1:9000/",
	}
	for addr, want := range tests {
		if got := viewerURL(addr); got != want {
			t.Errorf("viewerURL(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestRequireOutput(t *testing.T) {
	if err := requireOutput(""); err != errNoOutput {
		t.Errorf("requireOutput(\"\") = %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "out.jpg")
	if err := requireOutput(path); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("output dir not created: %v", err)
	}
}
