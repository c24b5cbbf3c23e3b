package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/onnx"
)

// Config holds configuration for the chat layout detector.
type Config struct {
	ModelPath           string         // Path to the ONNX model
	LabelsPath          string         // Optional class-name YAML; model metadata is used when empty
	ConfidenceThreshold float32        // Minimum class score (default: 0.5)
	NMSThreshold        float64        // IoU above which same-class boxes are suppressed (default: 0.45)
	InputSize           int            // Square model input side (default: 640)
	NumThreads          int            // Intra-op threads (0 = auto)
	ClassAgnosticNMS    bool           // Suppress across classes
	GPU                 onnx.GPUConfig // GPU acceleration
}

// DefaultConfig returns a default detector configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:           models.GetDetectorModelPath(""),
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.45,
		InputSize:           640,
		GPU:                 onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath resolves model and label paths inside modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetDetectorModelPath(modelsDir)
	labels := models.GetDetectorLabelsPath(modelsDir)
	if _, err := os.Stat(labels); err == nil {
		c.LabelsPath = labels
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1], got %f", c.ConfidenceThreshold)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("NMS threshold must be in [0, 1], got %f", c.NMSThreshold)
	}
	if c.InputSize < 32 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be non-negative, got %d", c.NumThreads)
	}
	return c.GPU.Validate()
}
