package testutil

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// StaticDetector returns fixed detections, an error, or panics.
type StaticDetector struct {
	Detections region.ByClass
	Err        error
	PanicWith  interface{}
	Calls      atomic.Int32
}

// Detect implements the pipeline object detector.
func (d *StaticDetector) Detect(ctx context.Context, _ image.Image) (region.ByClass, error) {
	d.Calls.Add(1)
	if d.PanicWith != nil {
		panic(d.PanicWith)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	out := region.ByClass{}
	for cls, objs := range d.Detections {
		out[cls] = append([]region.Object(nil), objs...)
	}
	return out, nil
}

// StaticRecognizer returns fixed texts, an error, or panics.
type StaticRecognizer struct {
	Texts     []region.Text
	Err       error
	PanicWith interface{}
	Calls     atomic.Int32
}

// Recognize implements the pipeline text recognizer.
func (r *StaticRecognizer) Recognize(ctx context.Context, _ image.Image) ([]region.Text, error) {
	r.Calls.Add(1)
	if r.PanicWith != nil {
		panic(r.PanicWith)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]region.Text(nil), r.Texts...), nil
}
