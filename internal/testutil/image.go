package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/region"
)

// Class colors used when painting synthetic screenshots.
var (
	BackgroundColor = color.RGBA{R: 245, G: 245, B: 245, A: 255}
	WindowColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	SenderColor     = color.RGBA{R: 220, G: 248, B: 198, A: 255}
	ReceiverColor   = color.RGBA{R: 230, G: 230, B: 235, A: 255}
	EmojiColor      = color.RGBA{R: 255, G: 204, B: 0, A: 255}
)

// CreateTestImage returns a solid image.
func CreateTestImage(width, height int, bg color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), bg)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// ChatScreenshot is a synthetic screenshot together with the detections a
// perfect chat detector would report for it.
type ChatScreenshot struct {
	Image      *image.RGBA
	Detections region.ByClass
}

// GenerateChatScreenshot paints a single chat window holding alternating
// sender and receiver bubbles and one emoji, and returns the matching
// ground-truth detections.
func GenerateChatScreenshot(width, height, bubbles int) ChatScreenshot {
	img := CreateTestImage(width, height, BackgroundColor)
	dets := region.ByClass{}

	window := image.Rect(width/20, height/20, width-width/20, height-height/20)
	fill(img, window, WindowColor)
	dets.Add(object(organizer.ClassChatWindow, window))

	rowH := window.Dy() / (bubbles + 2)
	bubbleW := window.Dx() / 2
	for i := 0; i < bubbles; i++ {
		y := window.Min.Y + rowH*(i+1)
		var r image.Rectangle
		class, c := organizer.ClassSender, SenderColor
		if i%2 == 0 {
			r = image.Rect(window.Max.X-bubbleW-8, y, window.Max.X-8, y+rowH*3/4)
		} else {
			class, c = organizer.ClassReceiver, ReceiverColor
			r = image.Rect(window.Min.X+8, y, window.Min.X+8+bubbleW, y+rowH*3/4)
		}
		fill(img, r, c)
		dets.Add(object(class, r))
	}

	emoji := image.Rect(window.Min.X+8, window.Max.Y-rowH, window.Min.X+8+rowH/2, window.Max.Y-rowH/2)
	fill(img, emoji, EmojiColor)
	dets.Add(object(organizer.ClassEmoji, emoji))

	return ChatScreenshot{Image: img, Detections: dets}
}

func object(class string, r image.Rectangle) region.Object {
	return region.Object{ClassName: class, Confidence: 0.9, Box: region.FromRect(r)}
}

// EncodePNG encodes img and fails the test on error.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// SaveImage writes img as PNG to path and fails the test on error.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, EncodePNG(t, img), 0o600); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
}
