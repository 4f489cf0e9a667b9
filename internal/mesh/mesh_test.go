package mesh

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/ayusman/photomesh/testdata"
)

// writeMesh writes an OBJ body, and an optional MTL body next to it.
func writeMesh(t *testing.T, dir, stem, objBody, mtlBody string) string {
	t.Helper()
	path := filepath.Join(dir, stem+".obj")
	if err := os.WriteFile(path, []byte(objBody), 0644); err != nil {
		t.Fatal(err)
	}
	if mtlBody != "" {
		if err := os.WriteFile(filepath.Join(dir, stem+".mtl"), []byte(mtlBody), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

const plainMTL = "newmtl plain\nKd 1 1 1\n"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/models/model.obj", "model"},
		{"model.obj", "model"},
		{"/a/b/head.scan.obj", "head.scan"},
		{"/a/b/noext", "noext"},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.path); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSiblingMaterial(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "model.obj")

	mtl, ok := SiblingMaterial(objPath)
	if ok {
		t.Error("SiblingMaterial found a file that does not exist")
	}
	if mtl != filepath.Join(dir, "model.mtl") {
		t.Errorf("SiblingMaterial path = %q", mtl)
	}

	if err := os.WriteFile(filepath.Join(dir, "model.mtl"), []byte("newmtl a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := SiblingMaterial(objPath); !ok {
		t.Error("SiblingMaterial did not find model.mtl")
	}

	// A material file with another stem does not count.
	other := filepath.Join(dir, "other.obj")
	if _, ok := SiblingMaterial(other); ok {
		t.Error("SiblingMaterial matched a different stem")
	}
}

func TestLoader_Load_ChoosesPathBySiblingMaterial(t *testing.T) {
	tests := []struct {
		name         string
		withMaterial bool
		wantVariant  Variant
	}{
		{name: "with sibling mtl", withMaterial: true, wantVariant: Textured},
		{name: "without sibling mtl", withMaterial: false, wantVariant: GeometryOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := testdata.CopyMesh(t.TempDir(), "cube", "model", tt.withMaterial)
			if err != nil {
				t.Fatalf("CopyMesh() error = %v", err)
			}

			actor, name, err := NewLoader().Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if name != "model" || actor.Name != "model" {
				t.Errorf("display name = %q / %q, want model", name, actor.Name)
			}
			if actor.Variant != tt.wantVariant {
				t.Errorf("Variant = %v, want %v", actor.Variant, tt.wantVariant)
			}
			if len(actor.Geometry.Vertices) != 8 || len(actor.Geometry.Faces) != 6 {
				t.Errorf("geometry = %d vertices / %d faces, want 8 / 6",
					len(actor.Geometry.Vertices), len(actor.Geometry.Faces))
			}
			if actor.ID == "" {
				t.Error("actor has no ID")
			}
		})
	}
}

func TestLoader_Load_TexturedMaterials(t *testing.T) {
	dir := t.TempDir()
	path, err := testdata.CopyMesh(dir, "cube", "cube", true)
	if err != nil {
		t.Fatal(err)
	}

	actor, _, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	skin, ok := actor.Materials["skin"]
	if !ok {
		t.Fatalf("materials = %v, want skin", actor.Materials)
	}
	if math.Abs(float64(skin.Diffuse[0])-0.8) > 1e-6 || math.Abs(float64(skin.Diffuse[1])-0.2) > 1e-6 {
		t.Errorf("diffuse = %v, want (0.8, 0.2, 0.2)", skin.Diffuse)
	}
	if skin.Texture != filepath.Join(dir, "cube.png") {
		t.Errorf("texture = %q, want resolved against mesh dir", skin.Texture)
	}

	got := actor.MaterialFor(actor.Geometry.Faces[0])
	if got.Name != "skin" {
		t.Errorf("MaterialFor() = %q, want skin", got.Name)
	}
}

func TestLoader_Load_DoesNotChangeWorkingDirectory(t *testing.T) {
	before, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	path, err := testdata.CopyMesh(t.TempDir(), "cube", "cube", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewLoader().Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	after, _ := os.Getwd()
	if after != before {
		t.Errorf("working directory changed from %q to %q", before, after)
	}
}

func TestLoader_Load_TexturedKeepsLastObject(t *testing.T) {
	path, err := testdata.CopyMesh(t.TempDir(), "pair", "pair", true)
	if err != nil {
		t.Fatal(err)
	}

	actor, _, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(actor.Geometry.Faces) != 1 || len(actor.Geometry.Vertices) != 4 {
		t.Fatalf("kept %d faces / %d vertices, want the last object only",
			len(actor.Geometry.Faces), len(actor.Geometry.Vertices))
	}
	want := BoundsFromPoints(r3.Vector{X: 10, Y: 10, Z: 10}, r3.Vector{X: 12, Y: 12, Z: 10})
	if actor.Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", actor.Bounds, want)
	}
}

func TestLoader_Load_TexturedSkipsTrailingEmptyObject(t *testing.T) {
	body := `o tri
v 0 0 0
v 1 0 0
v 0 1 0
usemtl plain
f 1 2 3
o empty
`
	path := writeMesh(t, t.TempDir(), "trailing", body, plainMTL)

	actor, _, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if actor.Variant != Textured || len(actor.Geometry.Faces) != 1 {
		t.Errorf("got %v with %d faces, want textured triangle", actor.Variant, len(actor.Geometry.Faces))
	}
}

func TestLoader_Load_BareGroupLines(t *testing.T) {
	// Exporters write a bare "g" to return to the default group.
	body := `v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
g
usemtl plain
f 1 2 3
g part
f 2 4 3
g
`
	tests := []struct {
		name        string
		mtl         string
		wantVariant Variant
		wantFaces   int
	}{
		{name: "geometry only", wantVariant: GeometryOnly, wantFaces: 2},
		{name: "textured", mtl: plainMTL, wantVariant: Textured, wantFaces: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeMesh(t, t.TempDir(), "export", body, tt.mtl)

			actor, _, err := NewLoader().Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if actor.Variant != tt.wantVariant {
				t.Errorf("Variant = %v, want %v", actor.Variant, tt.wantVariant)
			}
			if len(actor.Geometry.Faces) != tt.wantFaces {
				t.Errorf("faces = %d, want %d", len(actor.Geometry.Faces), tt.wantFaces)
			}
		})
	}
}

func TestLoader_Load_GeometryKeepsEverything(t *testing.T) {
	path, err := testdata.CopyMesh(t.TempDir(), "pair", "pair", false)
	if err != nil {
		t.Fatal(err)
	}

	actor, _, err := NewLoader().Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if actor.Variant != GeometryOnly {
		t.Errorf("Variant = %v, want geometry", actor.Variant)
	}
	if len(actor.Geometry.Faces) != 2 || len(actor.Geometry.Vertices) != 7 {
		t.Errorf("got %d faces / %d vertices, want 2 / 7",
			len(actor.Geometry.Faces), len(actor.Geometry.Vertices))
	}
	if len(actor.Materials) != 0 {
		t.Errorf("geometry-only actor has materials: %v", actor.Materials)
	}
	if m := actor.MaterialFor(actor.Geometry.Faces[0]); m != PlainMaterial {
		t.Errorf("MaterialFor() = %+v, want plain", m)
	}
}

func TestLoader_Load_Errors(t *testing.T) {
	dir := t.TempDir()

	empty := writeMesh(t, dir, "empty", "# nothing here\n", "")
	faceless := writeMesh(t, dir, "faceless", "o a\nv 0 0 0\no b\nv 1 1 1\n", plainMTL)

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "wrong extension", path: filepath.Join(dir, "model.stl"), want: ErrUnsupportedFormat},
		{name: "missing file", path: filepath.Join(dir, "missing.obj"), want: os.ErrNotExist},
		{name: "no vertices", path: empty, want: ErrNoGeometry},
		{name: "textured objects without faces", path: faceless, want: ErrNoGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewLoader().Load(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGeometry_BoundsAndEdges(t *testing.T) {
	g := Geometry{
		Vertices: []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 0, Y: 4, Z: 0}},
		Faces:    []Face{{Indices: []int{0, 1, 2}}, {Indices: []int{2, 1, 0}}},
	}

	b, ok := g.Bounds()
	if !ok {
		t.Fatal("Bounds() reported empty geometry")
	}
	if b.Center() != (r3.Vector{X: 1, Y: 2, Z: 0}) {
		t.Errorf("Center() = %+v", b.Center())
	}
	if math.Abs(b.Radius()-math.Sqrt(20)/2) > 1e-9 {
		t.Errorf("Radius() = %v", b.Radius())
	}
	if edges := g.Edges(); len(edges) != 3 {
		t.Errorf("Edges() = %v, want 3 unique edges", edges)
	}

	if _, ok := (Geometry{}).Bounds(); ok {
		t.Error("empty geometry should have no bounds")
	}
}

func TestBounds(t *testing.T) {
	if !EmptyBounds().IsEmpty() {
		t.Error("EmptyBounds() is not empty")
	}

	a := BoundsFromPoints(r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: -1, Y: 2, Z: 0})
	if a.Lo() != (r3.Vector{X: -1, Y: 1, Z: 0}) || a.Hi() != (r3.Vector{X: 1, Y: 2, Z: 1}) {
		t.Errorf("corners = %+v / %+v", a.Lo(), a.Hi())
	}

	u := a.Union(EmptyBounds().AddPoint(r3.Vector{X: 5, Y: 0, Z: 0}))
	if u.Lo() != (r3.Vector{X: -1, Y: 0, Z: 0}) || u.Hi() != (r3.Vector{X: 5, Y: 2, Z: 1}) {
		t.Errorf("Union() = %+v / %+v", u.Lo(), u.Hi())
	}

	p := EmptyBounds().AddPoint(r3.Vector{X: 3, Y: 3, Z: 3})
	if p.IsEmpty() || p.Radius() != 0 || p.Center() != (r3.Vector{X: 3, Y: 3, Z: 3}) {
		t.Errorf("point bounds = %+v", p)
	}
}
