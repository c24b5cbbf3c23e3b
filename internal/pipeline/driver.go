// Package pipeline drives text recognition and chat layout detection over a
// screenshot and organizes the detections into chat windows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/region"
)

// ObjectDetector finds chat layout elements in an image.
type ObjectDetector interface {
	Detect(ctx context.Context, img image.Image) (region.ByClass, error)
}

// TextRecognizer reads text lines from an image.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]region.Text, error)
}

// DriverConfig controls how the driver runs the two streams.
type DriverConfig struct {
	Organizer organizer.Config
	Parallel  bool // run text and object streams concurrently
}

// DefaultDriverConfig returns sequential processing with default organizer settings.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{Organizer: organizer.DefaultConfig()}
}

// Driver runs the perception collaborators and the organizer. Collaborators
// are built once and shared across calls; all per-call state is local.
type Driver struct {
	detector   ObjectDetector
	recognizer TextRecognizer
	organizer  *organizer.Organizer
	config     DriverConfig
}

// NewDriver creates a driver. Either collaborator may be nil, in which case
// its stream reports StatusSkipped.
func NewDriver(det ObjectDetector, rec TextRecognizer, config DriverConfig) (*Driver, error) {
	org, err := organizer.New(config.Organizer)
	if err != nil {
		return nil, err
	}
	config.Organizer = org.Config()
	return &Driver{detector: det, recognizer: rec, organizer: org, config: config}, nil
}

// Config returns the effective driver configuration.
func (d *Driver) Config() DriverConfig { return d.config }

// Option adjusts a single call.
type Option func(*callOptions)

type callOptions struct {
	threshold float64
	skipText  bool
	skipObj   bool
}

// WithThreshold overrides the containment threshold for one call.
func WithThreshold(t float64) Option {
	return func(o *callOptions) {
		if t > 0 {
			o.threshold = t
		}
	}
}

// WithoutText skips the text stream.
func WithoutText() Option { return func(o *callOptions) { o.skipText = true } }

// WithoutDetection skips the object stream.
func WithoutDetection() Option { return func(o *callOptions) { o.skipObj = true } }

func (d *Driver) options(opts []Option) callOptions {
	co := callOptions{threshold: d.config.Organizer.Threshold}
	for _, opt := range opts {
		opt(&co)
	}
	return co
}

// Detect runs the object detector and organizes its output. A detector
// failure is absorbed: the result is the not-a-screenshot sentinel and the
// outcome carries StatusFailed with the error.
func (d *Driver) Detect(ctx context.Context, img image.Image, opts ...Option) DetectionOutcome {
	co := d.options(opts)
	if d.detector == nil || co.skipObj {
		return DetectionOutcome{Result: organizer.NotScreenshot(), Detections: region.ByClass{}, Status: StatusSkipped}
	}

	start := time.Now()
	dets, err := callDetector(ctx, d.detector, img)
	if err != nil {
		slog.Warn("Object detection failed", "stream", "objects", "error", err)
		return DetectionOutcome{
			Result:     organizer.NotScreenshot(),
			Detections: region.ByClass{},
			Status:     StatusFailed,
			Err:        err,
			Duration:   time.Since(start),
		}
	}
	if dets == nil {
		dets = region.ByClass{}
	}

	res := d.organizer.OrganizeWithThreshold(dets, co.threshold)
	slog.Debug("Organized detections",
		"screenshot", res.Screenshot,
		"windows", len(res.Windows),
		"detections", dets.Count(),
		"threshold", co.threshold)
	return DetectionOutcome{
		Result:     res,
		Detections: dets,
		Status:     StatusOK,
		Duration:   time.Since(start),
	}
}

// Recognize runs the text recognizer. A failure yields an empty text list
// with StatusFailed and the error.
func (d *Driver) Recognize(ctx context.Context, img image.Image, opts ...Option) TextOutcome {
	co := d.options(opts)
	if d.recognizer == nil || co.skipText {
		return TextOutcome{Texts: []region.Text{}, Status: StatusSkipped}
	}

	start := time.Now()
	texts, err := callRecognizer(ctx, d.recognizer, img)
	if err != nil {
		slog.Warn("Text recognition failed", "stream", "text", "error", err)
		return TextOutcome{Texts: []region.Text{}, Status: StatusFailed, Err: err, Duration: time.Since(start)}
	}
	if texts == nil {
		texts = []region.Text{}
	}
	return TextOutcome{Texts: texts, Status: StatusOK, Duration: time.Since(start)}
}

// Process runs both streams on img and returns them side by side.
func (d *Driver) Process(ctx context.Context, img image.Image, opts ...Option) *ImageResult {
	start := time.Now()
	res := &ImageResult{}
	if img != nil {
		res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	if d.config.Parallel {
		var g errgroup.Group
		g.Go(func() error {
			res.Text = d.Recognize(ctx, img, opts...)
			return nil
		})
		g.Go(func() error {
			res.Objects = d.Detect(ctx, img, opts...)
			return nil
		})
		_ = g.Wait()
	} else {
		res.Text = d.Recognize(ctx, img, opts...)
		res.Objects = d.Detect(ctx, img, opts...)
	}

	res.Duration = time.Since(start)
	slog.Debug("Image processed",
		"text_status", res.Text.Status,
		"texts", len(res.Text.Texts),
		"detection_status", res.Objects.Status,
		"windows", len(res.Objects.Result.Windows),
		"duration_ms", res.Duration.Milliseconds())
	return res
}

// ProcessAll processes each image independently, preserving order.
func (d *Driver) ProcessAll(ctx context.Context, imgs []image.Image, opts ...Option) []*ImageResult {
	out := make([]*ImageResult, len(imgs))
	for i, img := range imgs {
		out[i] = d.Process(ctx, img, opts...)
	}
	return out
}

func callDetector(ctx context.Context, det ObjectDetector, img image.Image) (dets region.ByClass, err error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			dets, err = nil, fmt.Errorf("%w: detector: %v", ErrCollaboratorPanic, r)
		}
	}()
	return det.Detect(ctx, img)
}

func callRecognizer(ctx context.Context, rec TextRecognizer, img image.Image) (texts []region.Text, err error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("%w: recognizer: %v", ErrCollaboratorPanic, r)
		}
	}()
	return rec.Recognize(ctx, img)
}
