package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ayusman/photomesh/internal/mesh"
	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"
)

// Background is the viewport clear colour.
var Background = color.RGBA{R: 26, G: 26, B: 38, A: 0}

const (
	edgeThickness = 1
	labelFont     = gocv.FontHersheySimplex
	labelStroke   = 2
	maxCoord      = 1 << 20
)

// Render draws v as a wireframe seen from its camera pose, with the label
// on top. The caller must close the returned Mat.
func Render(v View) gocv.Mat {
	bg := gocv.NewScalar(float64(Background.B), float64(Background.G), float64(Background.R), 0)
	img := gocv.NewMatWithSizeFromScalar(bg, v.Height, v.Width, gocv.MatTypeCV8UC3)

	if v.Actor != nil {
		drawActor(&img, v)
	}
	if v.Label != nil {
		drawLabel(&img, v.Label, v.Height)
	}
	return img
}

// RenderJPEG renders v and encodes it as JPEG.
func RenderJPEG(v View) ([]byte, error) {
	img := Render(v)
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// RenderFile renders v and writes it to path. The encoder is chosen by
// the file extension.
func RenderFile(v View, path string) error {
	img := Render(v)
	defer img.Close()

	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("write render to %s", path)
	}
	return nil
}

// projection maps world points to viewport pixels.
type projection struct {
	eye                   r3.Vector
	right, up, forward    r3.Vector
	near                  float64
	focal                 float64
	halfWidth, halfHeight float64
}

func newProjection(p CameraPose, width, height int) projection {
	forward := p.FocalPoint.Sub(p.Position).Normalize()
	right := forward.Cross(p.ViewUp).Normalize()
	up := right.Cross(forward)

	angle := p.ViewAngle * math.Pi / 180
	return projection{
		eye:        p.Position,
		right:      right,
		up:         up,
		forward:    forward,
		near:       p.ClippingRange[0],
		focal:      float64(height) / 2 / math.Tan(angle/2),
		halfWidth:  float64(width) / 2,
		halfHeight: float64(height) / 2,
	}
}

// toCamera returns p in camera coordinates, with Z as depth.
func (pr projection) toCamera(p r3.Vector) r3.Vector {
	d := p.Sub(pr.eye)
	return r3.Vector{X: d.Dot(pr.right), Y: d.Dot(pr.up), Z: d.Dot(pr.forward)}
}

func (pr projection) toScreen(c r3.Vector) image.Point {
	x := pr.halfWidth + c.X*pr.focal/c.Z
	y := pr.halfHeight - c.Y*pr.focal/c.Z
	return image.Point{X: clampCoord(x), Y: clampCoord(y)}
}

// segment projects the edge a-b, clipped against the near plane. ok is
// false when the edge lies entirely behind it.
func (pr projection) segment(a, b r3.Vector) (image.Point, image.Point, bool) {
	ca, cb := pr.toCamera(a), pr.toCamera(b)
	if ca.Z < pr.near && cb.Z < pr.near {
		return image.Point{}, image.Point{}, false
	}
	if ca.Z < pr.near {
		ca = clipNear(cb, ca, pr.near)
	} else if cb.Z < pr.near {
		cb = clipNear(ca, cb, pr.near)
	}
	return pr.toScreen(ca), pr.toScreen(cb), true
}

// clipNear moves the hidden endpoint of in-out onto the near plane.
func clipNear(in, out r3.Vector, near float64) r3.Vector {
	t := (near - in.Z) / (out.Z - in.Z)
	return in.Add(out.Sub(in).Mul(t))
}

func clampCoord(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > maxCoord:
		return maxCoord
	case f < -maxCoord:
		return -maxCoord
	}
	return int(math.Round(f))
}

func drawActor(img *gocv.Mat, v View) {
	pr := newProjection(v.Pose, v.Width, v.Height)
	geom := v.Actor.Geometry

	for _, e := range geom.Edges() {
		p0, p1, ok := pr.segment(geom.Vertices[e.A], geom.Vertices[e.B])
		if !ok {
			continue
		}
		m := v.Actor.MaterialFor(geom.Faces[e.Face])
		gocv.Line(img, p0, p1, materialColor(m), edgeThickness)
	}
}

func materialColor(m mesh.Material) color.RGBA {
	return color.RGBA{
		R: channel(m.Diffuse[0]),
		G: channel(m.Diffuse[1]),
		B: channel(m.Diffuse[2]),
	}
}

func channel(c float32) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, float64(c))) * 255))
}

// drawLabel places the label text so its baseline sits at the anchor, with
// the anchor measured from the bottom-left corner of the viewport.
func drawLabel(img *gocv.Mat, l *Label, height int) {
	if l.Text == "" {
		return
	}

	base := gocv.GetTextSize(l.Text, labelFont, 1, labelStroke)
	scale := 1.0
	if base.Y > 0 {
		scale = float64(l.FontSize) / float64(base.Y)
	}
	size := gocv.GetTextSize(l.Text, labelFont, scale, labelStroke)

	x := l.Anchor.X
	if l.Centered {
		x -= size.X / 2
	}
	org := image.Point{X: x, Y: height - l.Anchor.Y}

	c := color.RGBA{
		R: channel(float32(l.Color[0])),
		G: channel(float32(l.Color[1])),
		B: channel(float32(l.Color[2])),
	}
	gocv.PutText(img, l.Text, org, labelFont, scale, c, labelStroke)
}
