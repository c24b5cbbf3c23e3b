//go:build ocr_tesseract

package recognizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// tesseractBackend serialises access to a single gosseract client, which is
// not safe for concurrent use.
type tesseractBackend struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func newDefaultBackend(opts Options) (Backend, error) {
	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(splitLanguages(opts.Language)...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	return &tesseractBackend{client: client}, nil
}

func (b *tesseractBackend) Name() string { return "tesseract " + gosseract.Version() }

func (b *tesseractBackend) Recognize(ctx context.Context, img image.Image, opts Options) ([]RawRegion, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil, errors.New("tesseract client is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	level := gosseract.RIL_TEXTLINE
	if opts.Level == LevelWord {
		level = gosseract.RIL_WORD
	}
	boxes, err := b.client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognition failed: %w", err)
	}

	offset := img.Bounds().Min
	out := make([]RawRegion, 0, len(boxes))
	for _, bb := range boxes {
		out = append(out, RawRegion{
			Text:       bb.Word,
			Polygon:    region.FromRect(bb.Box.Add(offset)).Corners(),
			Confidence: bb.Confidence / 100,
		})
	}
	return out, nil
}

func (b *tesseractBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}
