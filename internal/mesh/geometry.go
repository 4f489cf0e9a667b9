package mesh

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r3"
)

// Bounds is an axis-aligned bounding box, one interval per axis.
type Bounds struct {
	X r1.Interval `json:"x"`
	Y r1.Interval `json:"y"`
	Z r1.Interval `json:"z"`
}

// EmptyBounds returns a box containing no points.
func EmptyBounds() Bounds {
	return Bounds{X: r1.EmptyInterval(), Y: r1.EmptyInterval(), Z: r1.EmptyInterval()}
}

// BoundsFromPoints returns the smallest box containing lo and hi.
func BoundsFromPoints(lo, hi r3.Vector) Bounds {
	return EmptyBounds().AddPoint(lo).AddPoint(hi)
}

// IsEmpty reports whether the box contains no points.
func (b Bounds) IsEmpty() bool {
	return b.X.IsEmpty() || b.Y.IsEmpty() || b.Z.IsEmpty()
}

// AddPoint expands the box to contain p.
func (b Bounds) AddPoint(p r3.Vector) Bounds {
	return Bounds{X: b.X.AddPoint(p.X), Y: b.Y.AddPoint(p.Y), Z: b.Z.AddPoint(p.Z)}
}

// Union returns the smallest box containing b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{X: b.X.Union(o.X), Y: b.Y.Union(o.Y), Z: b.Z.Union(o.Z)}
}

// Lo returns the minimum corner.
func (b Bounds) Lo() r3.Vector { return r3.Vector{X: b.X.Lo, Y: b.Y.Lo, Z: b.Z.Lo} }

// Hi returns the maximum corner.
func (b Bounds) Hi() r3.Vector { return r3.Vector{X: b.X.Hi, Y: b.Y.Hi, Z: b.Z.Hi} }

// Center returns the midpoint of the box.
func (b Bounds) Center() r3.Vector {
	return r3.Vector{X: b.X.Center(), Y: b.Y.Center(), Z: b.Z.Center()}
}

// Radius returns half the length of the box diagonal.
func (b Bounds) Radius() float64 {
	return r3.Vector{X: b.X.Length(), Y: b.Y.Length(), Z: b.Z.Length()}.Norm() / 2
}

// Face is one polygon, as indices into Geometry.Vertices.
type Face struct {
	Indices  []int  `json:"indices"`
	Material string `json:"material,omitempty"`
}

// Geometry is an indexed polygon mesh.
type Geometry struct {
	Vertices []r3.Vector `json:"-"`
	Faces    []Face      `json:"-"`
}

// Bounds returns the bounding box of all vertices. ok is false when the
// geometry has no vertices.
func (g Geometry) Bounds() (b Bounds, ok bool) {
	if len(g.Vertices) == 0 {
		return EmptyBounds(), false
	}
	b = EmptyBounds()
	for _, v := range g.Vertices {
		b = b.AddPoint(v)
	}
	return b, true
}

// Edge joins two vertices. Face is the first face the edge belongs to.
type Edge struct {
	A, B int
	Face int
}

// Edges returns each polygon edge once.
func (g Geometry) Edges() []Edge {
	seen := make(map[[2]int]struct{})
	var edges []Edge
	for fi, f := range g.Faces {
		n := len(f.Indices)
		for i := 0; i < n; i++ {
			a, b := f.Indices[i], f.Indices[(i+1)%n]
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if _, ok := seen[key]; ok || a == b {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, Edge{A: a, B: b, Face: fi})
		}
	}
	return edges
}
