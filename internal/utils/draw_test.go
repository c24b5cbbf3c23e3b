package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawRect(t *testing.T) {
	dst := solid(20, 20, color.White)
	red := color.RGBA{R: 255, A: 255}

	DrawRect(dst, image.Rect(2, 2, 10, 10), red, 1)

	assert.Equal(t, red, dst.RGBAAt(2, 2))
	assert.Equal(t, red, dst.RGBAAt(9, 5))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(5, 5))
}

func TestDrawRect_ClipsOutside(t *testing.T) {
	dst := solid(10, 10, color.White)
	DrawRect(dst, image.Rect(-5, -5, 30, 30), color.Black, 2)
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(1, 1))

	DrawRect(dst, image.Rect(50, 50, 60, 60), color.Black, 1)
}

func TestFillRect(t *testing.T) {
	dst := solid(10, 10, color.White)
	FillRect(dst, image.Rect(0, 0, 5, 5), color.RGBA{B: 255, A: 255}, 0.5)

	c := dst.RGBAAt(2, 2)
	assert.InDelta(t, 255, int(c.B), 1)
	assert.InDelta(t, 128, int(c.R), 2)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(7, 7))
}

func TestDrawLine(t *testing.T) {
	dst := solid(10, 10, color.White)
	DrawLine(dst, image.Pt(0, 0), image.Pt(9, 9), color.Black)
	for i := 0; i < 10; i++ {
		assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(i, i))
	}
}

func TestToRGBA(t *testing.T) {
	src := image.NewGray(image.Rect(5, 5, 15, 10))
	dst := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 10, 5), dst.Bounds())
}
