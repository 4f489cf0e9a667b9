// Package testdata embeds the mesh fixtures shared by package tests.
package testdata

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed meshes/*
var meshesFS embed.FS

// ReadMesh returns the contents of an embedded fixture such as "cube.obj".
func ReadMesh(name string) ([]byte, error) {
	data, err := meshesFS.ReadFile("meshes/" + name)
	if err != nil {
		return nil, fmt.Errorf("load mesh fixture %s: %w", name, err)
	}
	return data, nil
}

// CopyMesh writes fixture <fixture>.obj into dir as <stem>.obj and, when
// withMaterial is set, <fixture>.mtl as <stem>.mtl. References to the
// fixture's own material library are renamed to match. It returns the path
// of the written .obj file.
func CopyMesh(dir, fixture, stem string, withMaterial bool) (string, error) {
	objData, err := ReadMesh(fixture + ".obj")
	if err != nil {
		return "", err
	}
	objData = []byte(strings.ReplaceAll(string(objData), fixture+".mtl", stem+".mtl"))

	objPath := filepath.Join(dir, stem+".obj")
	if err := os.WriteFile(objPath, objData, 0644); err != nil {
		return "", err
	}

	if withMaterial {
		mtlData, err := ReadMesh(fixture + ".mtl")
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, stem+".mtl"), mtlData, 0644); err != nil {
			return "", err
		}
	}

	return objPath, nil
}
