package detector

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/chatocr/internal/mempool"
)

// padValue is the grey level used for letterbox borders.
const padValue = 114

// letterbox records how an image was fitted into the square model input.
type letterbox struct {
	Scale  float64
	PadX   int
	PadY   int
	Width  int // original image width
	Height int // original image height
}

// toImage maps a point in model input space back to the original image.
func (lb letterbox) toImage(x, y float64) (float64, float64) {
	return (x - float64(lb.PadX)) / lb.Scale, (y - float64(lb.PadY)) / lb.Scale
}

// newLetterbox computes the scale and padding that fit w x h into size x size.
func newLetterbox(w, h, size int) letterbox {
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	newW := int(math.Round(float64(w) * scale))
	newH := int(math.Round(float64(h) * scale))
	return letterbox{
		Scale:  scale,
		PadX:   (size - newW) / 2,
		PadY:   (size - newH) / 2,
		Width:  w,
		Height: h,
	}
}

// preprocess letterboxes img into a size x size canvas and returns CHW
// float32 data scaled to [0, 1]. The buffer comes from mempool; every element
// is written.
func preprocess(img image.Image, size int) ([]float32, letterbox) {
	b := img.Bounds()
	lb := newLetterbox(b.Dx(), b.Dy(), size)

	newW := int(math.Round(float64(lb.Width) * lb.Scale))
	newH := int(math.Round(float64(lb.Height) * lb.Scale))
	resized := imaging.Resize(img, newW, newH, imaging.Linear)

	canvas := imaging.New(size, size, color.NRGBA{R: padValue, G: padValue, B: padValue, A: 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.PadX, lb.PadY))

	plane := size * size
	data := mempool.GetFloat32(3 * plane)
	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4:]
			data[i] = float32(p[0]) / 255
			data[plane+i] = float32(p[1]) / 255
			data[2*plane+i] = float32(p[2]) / 255
		}
	}
	return data, lb
}
