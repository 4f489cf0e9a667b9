package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/g3n/engine/loader/obj"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

// maxLine bounds a single OBJ line.
const maxLine = 16 << 20

// Loader turns OBJ files into actors.
type Loader struct{}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the mesh at path and returns its actor and display name. The
// textured path is taken exactly when SiblingMaterial finds a material
// file. Texture references are resolved against the mesh's directory; the
// process working directory is not touched.
func (l *Loader) Load(path string) (*Actor, string, error) {
	if !strings.EqualFold(filepath.Ext(path), MeshExt) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}

	var actor *Actor
	if mtl, ok := SiblingMaterial(abs); ok {
		actor, err = loadTextured(abs, mtl, filepath.Dir(abs))
	} else {
		actor, err = loadGeometry(abs)
	}
	if err != nil {
		return nil, "", err
	}

	actor.ID = uuid.New().String()
	actor.Name = DisplayName(abs)
	actor.Source = abs

	log.Debug("Mesh decoded",
		"name", actor.Name,
		"variant", actor.Variant,
		"vertices", len(actor.Geometry.Vertices),
		"faces", len(actor.Geometry.Faces))

	return actor, actor.Name, nil
}

// loadTextured imports geometry with its materials. The import yields one
// part per OBJ object and only the last one with faces is kept.
func loadTextured(path, mtlPath, baseDir string) (*Actor, error) {
	src, err := readOBJ(path)
	if err != nil {
		return nil, err
	}
	mtl, err := os.Open(mtlPath)
	if err != nil {
		return nil, err
	}
	defer mtl.Close()

	dec, err := obj.DecodeReader(src, mtl)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	last := -1
	for i, o := range dec.Objects {
		if len(o.Faces) > 0 {
			last = i
		}
	}
	if last < 0 {
		return nil, ErrNoGeometry
	}

	geom, err := compactGeometry(dec, dec.Objects[last:last+1])
	if err != nil {
		return nil, err
	}

	materials := make(map[string]*Material)
	for _, f := range geom.Faces {
		if _, done := materials[f.Material]; done {
			continue
		}
		desc, ok := dec.Materials[f.Material]
		if !ok {
			continue
		}
		materials[f.Material] = convertMaterial(desc, baseDir)
	}

	return newActor(Textured, geom, materials)
}

// loadGeometry reads every vertex and face in the file, ignoring materials.
func loadGeometry(path string) (*Actor, error) {
	src, err := readOBJ(path)
	if err != nil {
		return nil, err
	}

	dec, err := obj.DecodeReader(src, strings.NewReader(""))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	count := len(dec.Vertices) / 3
	geom := Geometry{Vertices: make([]r3.Vector, count)}
	for i := range geom.Vertices {
		geom.Vertices[i] = vertexAt(dec, i)
	}

	for _, o := range dec.Objects {
		for _, face := range o.Faces {
			idx := make([]int, len(face.Vertices))
			for i, v := range face.Vertices {
				if v < 0 || v >= count {
					return nil, fmt.Errorf("%w: vertex %d out of range", ErrMalformed, v+1)
				}
				idx[i] = v
			}
			geom.Faces = append(geom.Faces, Face{Indices: idx})
		}
	}

	return newActor(GeometryOnly, geom, nil)
}

// readOBJ returns the contents of an OBJ file without its bare "g" and "o"
// lines. Such a line selects the default group, which the decoder rejects.
func readOBJ(path string) (io.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Text()
		if fields := strings.Fields(line); len(fields) == 1 && (fields[0] == "g" || fields[0] == "o") {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return &buf, nil
}

func newActor(variant Variant, geom Geometry, materials map[string]*Material) (*Actor, error) {
	bounds, ok := geom.Bounds()
	if !ok {
		return nil, ErrNoGeometry
	}
	if materials == nil {
		materials = map[string]*Material{}
	}
	return &Actor{
		Variant:   variant,
		Geometry:  geom,
		Materials: materials,
		Bounds:    bounds,
	}, nil
}

// compactGeometry copies the faces of objs and only the vertices they use.
func compactGeometry(dec *obj.Decoder, objs []obj.Object) (Geometry, error) {
	count := len(dec.Vertices) / 3
	remap := make(map[int]int)
	var geom Geometry

	for _, o := range objs {
		for _, face := range o.Faces {
			idx := make([]int, len(face.Vertices))
			for i, v := range face.Vertices {
				if v < 0 || v >= count {
					return Geometry{}, fmt.Errorf("%w: vertex %d out of range", ErrMalformed, v+1)
				}
				n, ok := remap[v]
				if !ok {
					n = len(geom.Vertices)
					remap[v] = n
					geom.Vertices = append(geom.Vertices, vertexAt(dec, v))
				}
				idx[i] = n
			}
			geom.Faces = append(geom.Faces, Face{Indices: idx, Material: face.Material})
		}
	}

	return geom, nil
}

func vertexAt(dec *obj.Decoder, i int) r3.Vector {
	return r3.Vector{
		X: float64(dec.Vertices[3*i]),
		Y: float64(dec.Vertices[3*i+1]),
		Z: float64(dec.Vertices[3*i+2]),
	}
}

func convertMaterial(src *obj.Material, baseDir string) *Material {
	m := &Material{
		Name:    src.Name,
		Diffuse: [3]float32{src.Diffuse.R, src.Diffuse.G, src.Diffuse.B},
		Opacity: src.Opacity,
	}
	if src.MapKd != "" {
		tex := filepath.FromSlash(src.MapKd)
		if !filepath.IsAbs(tex) {
			tex = filepath.Join(baseDir, tex)
		}
		if _, err := os.Stat(tex); err != nil {
			log.Warn("Texture not found", "material", src.Name, "path", tex)
		}
		m.Texture = tex
	}
	return m
}
