package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// ToRGBA returns a zero-origin RGBA copy of img suitable for drawing.
func ToRGBA(img image.Image) *image.RGBA {
	src := imaging.Clone(img)
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// DrawRect draws a rectangle outline of the given thickness, clipped to dst.
func DrawRect(dst draw.Image, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Canon().Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, rect.Min.Y+t, col)
			dst.Set(x, rect.Max.Y-1-t, col)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(rect.Min.X+t, y, col)
			dst.Set(rect.Max.X-1-t, y, col)
		}
	}
}

// FillRect blends col over rect with the given opacity in [0, 1].
func FillRect(dst draw.Image, rect image.Rectangle, col color.Color, opacity float64) {
	rect = rect.Canon().Intersect(dst.Bounds())
	if rect.Empty() || opacity <= 0 {
		return
	}
	alpha := uint8(math.Round(math.Min(opacity, 1) * 255))
	mask := image.NewUniform(color.Alpha{A: alpha})
	draw.DrawMask(dst, rect, image.NewUniform(col), image.Point{}, mask, image.Point{}, draw.Over)
}

// DrawLine draws a line using Bresenham's algorithm.
func DrawLine(dst draw.Image, a, b image.Point, col color.Color) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y
	bounds := dst.Bounds()
	for {
		if image.Pt(x, y).In(bounds) {
			dst.Set(x, y, col)
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
