// Package mesh loads Wavefront OBJ files into renderable actors.
//
// A mesh with a same-named .mtl file next to it goes through the textured
// import, which reads geometry, materials and texture references together.
// Any other mesh is read as bare geometry with a plain white material.
package mesh

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// File extensions recognised by the loader.
const (
	MeshExt     = ".obj"
	MaterialExt = ".mtl"
)

var (
	// ErrUnsupportedFormat is returned for paths that are not OBJ files.
	ErrUnsupportedFormat = errors.New("unsupported mesh format")
	// ErrNoGeometry is returned when a file decodes to no vertices.
	ErrNoGeometry = errors.New("mesh has no geometry")
	// ErrMalformed is returned when faces reference vertices that do not exist.
	ErrMalformed = errors.New("malformed mesh")
)

// Variant tells which import path produced an actor.
type Variant int

const (
	// GeometryOnly actors carry vertex/face data and a plain colour.
	GeometryOnly Variant = iota
	// Textured actors also carry materials and texture references.
	Textured
)

func (v Variant) String() string {
	switch v {
	case Textured:
		return "textured"
	default:
		return "geometry"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Material is the subset of an MTL material the viewer uses. Texture is the
// diffuse map resolved against the mesh directory.
type Material struct {
	Name    string     `json:"name"`
	Diffuse [3]float32 `json:"diffuse"`
	Opacity float32    `json:"opacity"`
	Texture string     `json:"texture,omitempty"`
}

// PlainMaterial is bound to geometry-only actors.
var PlainMaterial = Material{
	Name:    "plain",
	Diffuse: [3]float32{1, 1, 1},
	Opacity: 1,
}

// Actor is a renderable mesh.
type Actor struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Source    string               `json:"source"`
	Variant   Variant              `json:"variant"`
	Geometry  Geometry             `json:"-"`
	Materials map[string]*Material `json:"materials"`
	Bounds    Bounds               `json:"bounds"`
}

// MaterialFor returns the material of a face, or PlainMaterial.
func (a *Actor) MaterialFor(f Face) Material {
	if m, ok := a.Materials[f.Material]; ok && m != nil {
		return *m
	}
	return PlainMaterial
}

// DisplayName returns the file's base name without its extension.
func DisplayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SiblingMaterial returns the .mtl path next to an .obj path and whether
// that file exists.
func SiblingMaterial(path string) (string, bool) {
	mtl := strings.TrimSuffix(path, filepath.Ext(path)) + MaterialExt
	info, err := os.Stat(mtl)
	if err != nil || info.IsDir() {
		return mtl, false
	}
	return mtl, true
}
