package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/photomesh/internal/app"
	"github.com/ayusman/photomesh/internal/server"
	"github.com/ayusman/photomesh/internal/tray"
)

var (
	serveTray bool
	serveMesh string
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the camera loop, the scene, and the HTTP viewer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		a, err := app.New(app.Config{Settings: cfg, Store: st})
		if err != nil {
			return err
		}
		defer a.Stop()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if err := a.Start(ctx); err != nil {
			return err
		}

		if serveMesh != "" {
			if err := a.LoadMesh(serveMesh); err != nil {
				log.Warn("Preload failed", "mesh", serveMesh, "err", err)
			}
		}

		staticDir := cfg.Server.StaticDir
		if staticDir == "" {
			staticDir = findWebDir(cfg.DataDir)
		}
		if staticDir != "" {
			log.Info("Serving static files", "dir", staticDir)
		}

		var loopErr error
		loopDone := make(chan struct{})
		go func() {
			defer close(loopDone)
			select {
			case loopErr = <-a.Err():
				cancel()
			case <-ctx.Done():
			}
		}()

		srv := server.New(a.ServerConfig(staticDir))
		errCh := make(chan error, 1)
		go func() {
			err := srv.Serve(ctx, cfg.Server.Addr)
			cancel()
			errCh <- err
		}()

		if serveTray {
			t := newTray(a, viewerURL(cfg.Server.Addr), cancel)
			go func() {
				<-ctx.Done()
				t.Quit()
			}()
			t.Run()
			cancel()
		}

		err = <-errCh
		<-loopDone
		if loopErr != nil {
			return loopErr
		}
		return err
	},
}

// newTray binds the tray menu to the app.
func newTray(a *app.App, url string, quit context.CancelFunc) *tray.Tray {
	t := tray.New()
	t.SetCaptureEnabled(a.CameraReady())

	report := func(action string, err error) {
		if err != nil {
			log.Warn(action+" failed", "err", err)
			t.SetStatus(action + " failed")
			return
		}
		t.SetStatus(action + " done")
	}

	t.OnCapture(func() { report("Capture", a.CaptureNow()) })
	t.OnSave(func() {
		path, err := a.SaveCapture()
		if err == nil {
			t.SetStatus("Saved " + filepath.Base(path))
			return
		}
		report("Save", err)
	})
	t.OnReset(func() { a.Scene().ResetView() })
	t.OnClear(func() { a.Scene().Clear() })
	t.OnReconstruct(func() {
		t.SetStatus("Reconstructing...")
		go func() {
			_, err := a.Reconstruct(context.Background())
			report("Reconstruct", err)
		}()
	})
	t.OnOpenViewer(func() {
		if err := openBrowser(url); err != nil {
			log.Warn("Could not open browser", "url", url, "err", err)
		}
	})
	t.OnQuit(quit)
	return t
}

// viewerURL turns a listen address into a local URL.
func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web", "../../web", and <data-dir>/web.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func init() {
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show the system tray menu")
	serveCmd.Flags().StringVar(&serveMesh, "mesh", "", "load this .obj into the scene at startup")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
