package main

import (
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/photomesh/internal/mesh"
	"github.com/ayusman/photomesh/internal/scene"
)

var (
	renderOut    string
	renderWidth  int
	renderHeight int
)

var renderCmd = &cobra.Command{
	Use:   "render <mesh.obj>",
	Short: "Load a mesh and render the fitted view to an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		width, height := renderWidth, renderHeight
		if width <= 0 {
			width = cfg.Scene.Width
		}
		if height <= 0 {
			height = cfg.Scene.Height
		}

		s := scene.New(mesh.NewLoader(), scene.DefaultWidth, scene.DefaultHeight)
		if err := s.Resize(width, height); err != nil {
			return err
		}
		if err := s.Load(args[0]); err != nil {
			return err
		}

		out := renderOut
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".jpg"
		}
		if err := requireOutput(out); err != nil {
			return err
		}

		if err := scene.RenderFile(s.View(), out); err != nil {
			return err
		}
		log.Info("Rendered", "mesh", args[0], "out", out, "size", [2]int{width, height})
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output image (default: <mesh>.jpg)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 0, "viewport width (default: scene.width)")
	renderCmd.Flags().IntVar(&renderHeight, "height", 0, "viewport height (default: scene.height)")
	rootCmd.AddCommand(renderCmd)
}
