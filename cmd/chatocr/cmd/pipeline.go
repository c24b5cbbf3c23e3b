package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/chatocr/internal/config"
	"github.com/MeKo-Tech/chatocr/internal/pipeline"
)

// newPipelineBuilder maps the resolved configuration onto a pipeline builder.
func newPipelineBuilder(cfg *config.Config, noText bool) *pipeline.Builder {
	b := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig())
	if noText {
		b.WithoutText()
	}
	return b
}

func buildPipeline(cfg *config.Config, noText bool) (*pipeline.Pipeline, error) {
	b := newPipelineBuilder(cfg, noText)
	pc := b.Config()
	slog.Debug("Building pipeline",
		"models_dir", pc.ModelsDir,
		"detector_model", pc.Detector.ModelPath,
		"tessdata", pc.Recognizer.TessdataPrefix,
		"text", !pc.DisableText)

	p, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return p, nil
}
