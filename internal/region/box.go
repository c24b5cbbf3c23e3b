// Package region holds the axis-aligned box geometry shared by the text and
// object streams, together with the overlap measures the organizer relies on.
package region

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidInput is returned when a box cannot be derived from the input.
var ErrInvalidInput = errors.New("invalid input")

// Point is a 2D coordinate in image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle with X1 <= X2 and Y1 <= Y2.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBox builds a box from two opposite corners in any order.
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{
		X1: math.Min(x1, x2),
		Y1: math.Min(y1, y2),
		X2: math.Max(x1, x2),
		Y2: math.Max(y1, y2),
	}
}

// FromPoints returns the tightest box enclosing pts.
func FromPoints(pts []Point) (Box, error) {
	if len(pts) == 0 {
		return Box{}, fmt.Errorf("%w: empty point set", ErrInvalidInput)
	}
	b := Box{X1: pts[0].X, Y1: pts[0].Y, X2: pts[0].X, Y2: pts[0].Y}
	for _, p := range pts[1:] {
		b.X1 = math.Min(b.X1, p.X)
		b.Y1 = math.Min(b.Y1, p.Y)
		b.X2 = math.Max(b.X2, p.X)
		b.Y2 = math.Max(b.Y2, p.Y)
	}
	return b, nil
}

// FromRect converts an integer image rectangle.
func FromRect(r image.Rectangle) Box {
	r = r.Canon()
	return Box{X1: float64(r.Min.X), Y1: float64(r.Min.Y), X2: float64(r.Max.X), Y2: float64(r.Max.Y)}
}

// Width of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area of the box; zero for degenerate boxes.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Corners returns the four corners clockwise from the top-left.
func (b Box) Corners() []Point {
	return []Point{{b.X1, b.Y1}, {b.X2, b.Y1}, {b.X2, b.Y2}, {b.X1, b.Y2}}
}

// Clip restricts the box to the given bounds.
func (b Box) Clip(bounds image.Rectangle) Box {
	clamp := func(v float64, lo, hi int) float64 {
		return math.Max(float64(lo), math.Min(float64(hi), v))
	}
	return Box{
		X1: clamp(b.X1, bounds.Min.X, bounds.Max.X),
		Y1: clamp(b.Y1, bounds.Min.Y, bounds.Max.Y),
		X2: clamp(b.X2, bounds.Min.X, bounds.Max.X),
		Y2: clamp(b.Y2, bounds.Min.Y, bounds.Max.Y),
	}
}

// Rect rounds the box outward to an integer image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)))
}

func (b Box) String() string {
	return fmt.Sprintf("(%.1f,%.1f)-(%.1f,%.1f)", b.X1, b.Y1, b.X2, b.Y2)
}
