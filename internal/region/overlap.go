package region

import "math"

// Intersection returns the overlapping rectangle of a and b. The result may be
// degenerate (non-positive width or height) when the boxes do not overlap.
func Intersection(a, b Box) Box {
	return Box{
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
		X2: math.Min(a.X2, b.X2),
		Y2: math.Min(a.Y2, b.Y2),
	}
}

// Containment returns the fraction of contained's area that lies inside
// container. It is not symmetric: a small box fully inside a large one scores
// 1 while the reverse scores the area ratio.
func Containment(container, contained Box) float64 {
	inter := Intersection(container, contained)
	w, h := inter.Width(), inter.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	area := contained.Area()
	if area <= 0 {
		return 0
	}
	return (w * h) / area
}

// IoU computes intersection over union.
func IoU(a, b Box) float64 {
	inter := Intersection(a, b)
	w, h := inter.Width(), inter.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	i := w * h
	union := a.Area() + b.Area() - i
	if union <= 0 {
		return 0
	}
	return i / union
}
