package recognizer

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

type fakeBackend struct {
	regions []RawRegion
	err     error
	gotOpts Options
	closed  bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Recognize(_ context.Context, _ image.Image, opts Options) ([]RawRegion, error) {
	f.gotOpts = opts
	return f.regions, f.err
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func quad(x1, y1, x2, y2 float64) []region.Point {
	return region.NewBox(x1, y1, x2, y2).Corners()
}

func TestRecognizer_Recognize(t *testing.T) {
	backend := &fakeBackend{regions: []RawRegion{
		{Text: "  hey there ", Polygon: quad(10, 10, 80, 24), Confidence: 0.93},
		{Text: "\u200B", Polygon: quad(10, 30, 20, 40), Confidence: 0.9},
		{Text: "faint", Polygon: quad(10, 50, 40, 60), Confidence: 0.2},
		{Text: "no box", Confidence: 0.9},
		{Text: "see you", Polygon: []region.Point{{X: 100, Y: 40}, {X: 160, Y: 42}, {X: 158, Y: 58}, {X: 101, Y: 55}}, Confidence: 0.81},
	}}

	cfg := DefaultConfig()
	cfg.MinConfidence = 0.5
	r, err := NewWithBackend(cfg, backend)
	require.NoError(t, err)

	texts, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 100)))
	require.NoError(t, err)
	require.Len(t, texts, 2)

	assert.Equal(t, "hey there", texts[0].Text)
	assert.Equal(t, region.NewBox(10, 10, 80, 24), texts[0].Box)
	assert.Equal(t, "see you", texts[1].Text)
	assert.Equal(t, region.NewBox(100, 40, 160, 58), texts[1].Box)
	assert.Equal(t, "eng", backend.gotOpts.Language)
	assert.Equal(t, LevelLine, backend.gotOpts.Level)
}

func TestRecognizer_BackendError(t *testing.T) {
	boom := errors.New("engine crashed")
	r, err := NewWithBackend(DefaultConfig(), &fakeBackend{err: boom})
	require.NoError(t, err)

	_, err = r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, boom)
}

func TestRecognizer_NilImage(t *testing.T) {
	r, err := NewWithBackend(DefaultConfig(), &fakeBackend{})
	require.NoError(t, err)

	_, err = r.Recognize(context.Background(), nil)
	assert.Error(t, err)
}

func TestRecognizer_Close(t *testing.T) {
	backend := &fakeBackend{}
	r, err := NewWithBackend(DefaultConfig(), backend)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.True(t, backend.closed)
	assert.Equal(t, "fake", r.BackendName())
}

func TestNewWithBackend_Validation(t *testing.T) {
	_, err := NewWithBackend(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Level = "paragraph"
	_, err = NewWithBackend(cfg, &fakeBackend{})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty language", func(c *Config) { c.Language = " " }},
		{"bad level", func(c *Config) { c.Level = "block" }},
		{"min confidence above one", func(c *Config) { c.MinConfidence = 2 }},
		{"page seg mode out of range", func(c *Config) { c.PageSegMode = 14 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSplitLanguages(t *testing.T) {
	assert.Equal(t, []string{"eng", "deu"}, splitLanguages("eng+deu"))
	assert.Equal(t, []string{"eng", "fra"}, splitLanguages("eng, fra"))
	assert.Equal(t, []string{"eng"}, splitLanguages(""))
}
