package pipeline

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/utils"
)

// OverlayColors maps class names to outline colors.
type OverlayColors map[string]color.Color

// DefaultOverlayColors returns the colors used for the chat classes and text.
func DefaultOverlayColors() OverlayColors {
	return OverlayColors{
		organizer.ClassChatWindow: color.RGBA{R: 0, G: 120, B: 255, A: 255},
		organizer.ClassSender:     color.RGBA{R: 0, G: 170, B: 0, A: 255},
		organizer.ClassReceiver:   color.RGBA{R: 230, G: 120, B: 0, A: 255},
		organizer.ClassEmoji:      color.RGBA{R: 200, G: 0, B: 200, A: 255},
		"text":                    color.RGBA{R: 220, G: 0, B: 0, A: 255},
	}
}

// RenderOverlay draws chat windows, their content and recognized text boxes
// over a copy of img.
func RenderOverlay(img image.Image, res *ImageResult, colors OverlayColors) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)
	if res == nil {
		return dst
	}
	if colors == nil {
		colors = DefaultOverlayColors()
	}
	origin := img.Bounds().Min
	colorFor := func(class string) color.Color {
		if c, ok := colors[class]; ok {
			return c
		}
		return color.Black
	}

	for _, t := range res.Text.Texts {
		utils.DrawRect(dst, t.Box.Rect().Sub(origin), colorFor("text"), 1)
	}
	for _, w := range res.Objects.Result.Windows {
		wc := colorFor(organizer.ClassChatWindow)
		utils.FillRect(dst, w.Box.Rect().Sub(origin), wc, 0.08)
		utils.DrawRect(dst, w.Box.Rect().Sub(origin), wc, 3)
		for _, e := range w.Content {
			utils.DrawRect(dst, e.Detection.Box.Rect().Sub(origin), colorFor(e.ClassName), 2)
		}
	}
	return dst
}
