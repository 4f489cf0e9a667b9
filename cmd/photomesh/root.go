package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/photomesh/internal/config"
	"github.com/ayusman/photomesh/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is the effective configuration: file, then stored settings, then flags.
	cfg *config.Config
	// st is the settings database shared by subcommands.
	st *store.Store

	configPath string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "photomesh",
	Short:         "Live face capture and 3D mesh viewer",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, st, err = loadConfig()
		if err != nil {
			return err
		}
		log.SetLevel(cfg.LogLevel())
		log.Debug("Configuration loaded", "data_dir", cfg.DataDir, "db", st.Path())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if st != nil {
			st.Close()
		}
	},
}

// loadConfig layers the TOML file, the stored settings, and the flags.
func loadConfig() (*config.Config, *store.Store, error) {
	path := configPath
	if path == "" {
		base := dataDir
		if base == "" {
			base = config.DefaultDataDir()
		}
		path = filepath.Join(base, config.DefaultFileName)
	}

	c, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if dataDir != "" {
		c.DataDir = dataDir
	}

	s, err := store.New(c.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings store: %w", err)
	}

	stored, err := s.Settings().All()
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("failed to read stored settings: %w", err)
	}
	if err := c.ApplySettings(stored); err != nil {
		s.Close()
		return nil, nil, err
	}

	if logLevel != "" {
		if err := c.Set("log.level", logLevel); err != nil {
			s.Close()
			return nil, nil, err
		}
	}
	if err := c.Validate(); err != nil {
		s.Close()
		return nil, nil, err
	}
	return c, s, nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "photomesh",
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("photomesh failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: <data-dir>/photomesh.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.photomesh)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

var errNoOutput = errors.New("output path is required")

// requireOutput checks an output path and creates its directory.
func requireOutput(path string) error {
	if path == "" {
		return errNoOutput
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	return nil
}
