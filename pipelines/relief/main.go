// Package main is a reconstruction pipeline that lifts an image into a
// bas-relief: a grid mesh whose depth follows pixel luminance, textured
// with the image itself.
//
// Build it next to its manifest with `go build -o relief .`.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Request is read from stdin.
type Request struct {
	Image     string `json:"image"`
	OutputDir string `json:"output_dir"`
}

// Response is written to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Mesh    string `json:"mesh,omitempty"`
}

const (
	// gridWidth is the number of vertex columns.
	gridWidth = 96
	// depth is the z range of the relief relative to a unit-wide mesh.
	depth    = 0.15
	meshName = "relief"
)

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if req.Image == "" || req.OutputDir == "" {
		writeErrorResponse("image and output_dir are required")
		return
	}

	mesh, err := buildRelief(req.Image, req.OutputDir)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}
	writeSuccessResponse(mesh)
}

func buildRelief(imagePath, outDir string) (string, error) {
	src := gocv.IMRead(imagePath, gocv.IMReadGrayScale)
	if src.Empty() {
		return "", fmt.Errorf("cannot read image %s", imagePath)
	}
	defer src.Close()

	cols := gridWidth
	if src.Cols() < cols {
		cols = src.Cols()
	}
	rows := src.Rows() * cols / src.Cols()
	if rows < 2 {
		rows = 2
	}
	if cols < 2 {
		return "", fmt.Errorf("image too small: %dx%d", src.Cols(), src.Rows())
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(src, &small, image.Pt(cols, rows), 0, 0, gocv.InterpolationArea)
	gocv.GaussianBlur(small, &small, image.Pt(3, 3), 0, 0, gocv.BorderReflect101)

	texture, err := filepath.Rel(outDir, imagePath)
	if err != nil {
		texture = imagePath
	}

	objPath := filepath.Join(outDir, meshName+".obj")
	if err := writeMTL(filepath.Join(outDir, meshName+".mtl"), filepath.ToSlash(texture)); err != nil {
		return "", err
	}
	if err := writeOBJ(objPath, small); err != nil {
		return "", err
	}
	return meshName + ".obj", nil
}

func writeOBJ(path string, heights gocv.Mat) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, cols := heights.Rows(), heights.Cols()
	aspect := float64(rows-1) / float64(cols-1)

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "mtllib %s.mtl\no %s\n", meshName, meshName)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x := float64(c)/float64(cols-1) - 0.5
			y := (0.5 - float64(r)/float64(rows-1)) * aspect
			z := float64(heights.GetUCharAt(r, c)) / 255 * depth
			fmt.Fprintf(w, "v %.5f %.5f %.5f\n", x, y, z)
		}
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fmt.Fprintf(w, "vt %.5f %.5f\n", float64(c)/float64(cols-1), 1-float64(r)/float64(rows-1))
		}
	}

	fmt.Fprintf(w, "usemtl %s\n", meshName)
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			a := r*cols + c + 1
			b := a + 1
			d := a + cols
			e := d + 1
			fmt.Fprintf(w, "f %d/%d %d/%d %d/%d %d/%d\n", a, a, d, d, e, e, b, b)
		}
	}

	return w.Flush()
}

func writeMTL(path, texture string) error {
	data := fmt.Sprintf("newmtl %s\nKa 0 0 0\nKd 1 1 1\nd 1\nillum 1\nmap_Kd %s\n", meshName, texture)
	return os.WriteFile(path, []byte(data), 0644)
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(mesh string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Mesh: mesh})
}
