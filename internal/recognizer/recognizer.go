package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// Config holds configuration for text recognition.
type Config struct {
	Language       string       // Tesseract language(s) (default: "eng")
	TessdataPrefix string       // Tesseract data directory
	PageSegMode    int          // 0 keeps the engine default
	Level          Level        // "line" (default) or "word"
	MinConfidence  float64      // Regions below this confidence are dropped
	Clean          CleanOptions // Text post-processing
}

// DefaultConfig returns a default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		Language: "eng",
		Level:    LevelLine,
		Clean:    DefaultCleanOptions(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Language) == "" {
		return errors.New("language cannot be empty")
	}
	if c.Level != LevelLine && c.Level != LevelWord {
		return fmt.Errorf("level must be %q or %q, got %q", LevelLine, LevelWord, c.Level)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0, 1], got %f", c.MinConfidence)
	}
	if c.PageSegMode < 0 || c.PageSegMode > 13 {
		return fmt.Errorf("page segmentation mode must be in [0, 13], got %d", c.PageSegMode)
	}
	return nil
}

func (c Config) options() Options {
	return Options{
		Language:       c.Language,
		TessdataPrefix: c.TessdataPrefix,
		PageSegMode:    c.PageSegMode,
		Level:          c.Level,
	}
}

// Recognizer turns backend output into cleaned text regions with boxes.
type Recognizer struct {
	config  Config
	backend Backend
}

// New creates a recognizer backed by the engine linked into the build.
func New(config Config) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognizer config: %w", err)
	}
	backend, err := newDefaultBackend(config.options())
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR backend: %w", err)
	}
	slog.Debug("Recognizer initialized", "backend", backend.Name(), "language", config.Language, "level", config.Level)
	return &Recognizer{config: config, backend: backend}, nil
}

// NewWithBackend creates a recognizer around an existing backend.
func NewWithBackend(config Config, backend Backend) (*Recognizer, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognizer config: %w", err)
	}
	return &Recognizer{config: config, backend: backend}, nil
}

// GetConfig returns the recognizer configuration.
func (r *Recognizer) GetConfig() Config { return r.config }

// BackendName names the OCR engine in use.
func (r *Recognizer) BackendName() string { return r.backend.Name() }

// Recognize reads text from img. Regions whose text is empty after cleaning,
// whose confidence is below MinConfidence, or that carry no polygon are
// dropped.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]region.Text, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	start := time.Now()

	raw, err := r.backend.Recognize(ctx, img, r.config.options())
	if err != nil {
		return nil, err
	}

	texts := make([]region.Text, 0, len(raw))
	for _, rr := range raw {
		if rr.Confidence < r.config.MinConfidence {
			continue
		}
		text := CleanText(rr.Text, r.config.Clean)
		if text == "" {
			continue
		}
		box, err := region.FromPoints(rr.Polygon)
		if err != nil {
			slog.Debug("Skipping text region without geometry", "text", text, "error", err)
			continue
		}
		texts = append(texts, region.Text{Text: text, Box: box, Confidence: rr.Confidence})
	}

	slog.Debug("Recognition complete",
		"regions", len(raw),
		"texts", len(texts),
		"duration_ms", time.Since(start).Milliseconds())
	return texts, nil
}

// Close releases the backend.
func (r *Recognizer) Close() error {
	return r.backend.Close()
}

// splitLanguages turns "eng+deu" or "eng,deu" into individual codes.
func splitLanguages(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' })
	if len(fields) == 0 {
		return []string{"eng"}
	}
	return fields
}
