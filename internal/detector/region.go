package detector

import "image"

// Inset shrinks a raw cascade box by 10% on every side so that it hugs the
// face instead of the surrounding background:
//
//	x' = x + 0.1w, y' = y + 0.1h, w' = 0.8w, h' = 0.8h
//
// Integer arithmetic is used so the result never grows past r. A box with
// positive size always yields a box with positive size.
func Inset(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return image.Rectangle{Min: r.Min, Max: r.Min}
	}

	x := r.Min.X + w/10
	y := r.Min.Y + h/10
	nw := max(1, 8*w/10)
	nh := max(1, 8*h/10)

	return image.Rect(x, y, x+nw, y+nh)
}

// InsetWithin applies Inset and clips the result to bounds.
func InsetWithin(r, bounds image.Rectangle) image.Rectangle {
	return Inset(r).Intersect(bounds)
}
