package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/photomesh/internal/app"
)

var snapTimeout time.Duration

var snapCmd = &cobra.Command{
	Use:   "snap <out>",
	Short: "Open the camera, capture one frame, and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOutput(args[0]); err != nil {
			return err
		}

		a, err := app.New(app.Config{Settings: cfg, Store: st})
		if err != nil {
			return err
		}
		defer a.Stop()

		ctx, cancel := context.WithTimeout(cmd.Context(), snapTimeout)
		defer cancel()

		path, err := a.Snap(ctx, args[0])
		if err != nil {
			return err
		}
		log.Info("Captured", "path", path)
		return nil
	},
}

func init() {
	snapCmd.Flags().DurationVar(&snapTimeout, "timeout", 10*time.Second, "give up when no frame arrives in time")
	rootCmd.AddCommand(snapCmd)
}
