package recognizer

import (
	"context"
	"errors"
	"image"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// ErrNoBackend is returned by New when the binary was built without an OCR engine.
var ErrNoBackend = errors.New("recognizer: no OCR backend linked; build with -tags=ocr_tesseract or inject a backend")

// Level selects the granularity of recognized regions.
type Level string

const (
	LevelLine Level = "line"
	LevelWord Level = "word"
)

// Options are passed to the backend on every call.
type Options struct {
	Language       string // Tesseract language(s), e.g. "eng" or "eng+deu"
	TessdataPrefix string // Directory holding *.traineddata; empty uses the system default
	PageSegMode    int    // Tesseract page segmentation mode; 0 keeps the engine default
	Level          Level
}

// RawRegion is one region as reported by a backend, before cleaning.
type RawRegion struct {
	Text       string
	Polygon    []region.Point
	Confidence float64 // [0, 1]
}

// Backend is an OCR engine.
type Backend interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, opts Options) ([]RawRegion, error)
	Close() error
}
