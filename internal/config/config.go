package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/chatocr/internal/detector"
	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/pipeline"
	"github.com/MeKo-Tech/chatocr/internal/recognizer"
)

// Config represents the complete configuration for the chatocr application.
// It covers the image and serve commands and can be loaded from a config
// file, CHATOCR_* environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	GPU      GPUConfig      `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// PipelineConfig contains detection, recognition and grouping settings.
type PipelineConfig struct {
	Parallel   bool             `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Organizer  OrganizerConfig  `mapstructure:"organizer" yaml:"organizer" json:"organizer"`
}

// DetectorConfig contains chat element detection settings.
type DetectorConfig struct {
	ModelPath           string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LabelsPath          string  `mapstructure:"labels_path" yaml:"labels_path" json:"labels_path"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold" json:"confidence_threshold"`
	NMSThreshold        float64 `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	InputSize           int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	NumThreads          int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	Language       string  `mapstructure:"language" yaml:"language" json:"language"`
	TessdataPrefix string  `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
	PageSegMode    int     `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
	Level          string  `mapstructure:"level" yaml:"level" json:"level"`
	MinConfidence  float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
}

// OrganizerConfig contains chat window grouping settings.
type OrganizerConfig struct {
	ContainmentThreshold float64 `mapstructure:"containment_threshold" yaml:"containment_threshold" json:"containment_threshold"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string  `mapstructure:"host" yaml:"host" json:"host"`
	Port              int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin        string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB       int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec        int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout   int     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled    bool    `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimitEnabled  bool    `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst" json:"burst"`
	// Proxy addresses or CIDRs whose X-Forwarded-For and X-Real-IP headers
	// are believed when identifying clients.
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies,omitempty" json:"trusted_proxies,omitempty"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Pipeline: PipelineConfig{
			Detector: DetectorConfig{
				ConfidenceThreshold: float64(det.ConfidenceThreshold),
				NMSThreshold:        det.NMSThreshold,
				InputSize:           det.InputSize,
				NumThreads:          det.NumThreads,
			},
			Recognizer: RecognizerConfig{
				Language:      rec.Language,
				PageSegMode:   rec.PageSegMode,
				Level:         string(rec.Level),
				MinConfidence: rec.MinConfidence,
			},
			Organizer: OrganizerConfig{
				ContainmentThreshold: organizer.DefaultThreshold,
			},
		},
		Output: OutputConfig{
			Format: "json",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			OverlayEnabled:    true,
			RateLimitEnabled:  false,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"json", "text"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := validateThreshold(c.Pipeline.Detector.ConfidenceThreshold, "detector.confidence_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.Detector.NMSThreshold, "detector.nms_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Pipeline.Recognizer.MinConfidence, "recognizer.min_confidence"); err != nil {
		return err
	}
	ct := c.Pipeline.Organizer.ContainmentThreshold
	if ct <= 0 || ct > 1 {
		return fmt.Errorf("invalid organizer.containment_threshold: %.2f (must be in (0.0, 1.0])", ct)
	}

	if c.Pipeline.Detector.InputSize < 32 || c.Pipeline.Detector.InputSize%32 != 0 {
		return fmt.Errorf("invalid detector input size: %d (must be a positive multiple of 32)", c.Pipeline.Detector.InputSize)
	}
	if c.Pipeline.Recognizer.PageSegMode < 0 || c.Pipeline.Recognizer.PageSegMode > 13 {
		return fmt.Errorf("invalid recognizer page segmentation mode: %d (must be between 0 and 13)", c.Pipeline.Recognizer.PageSegMode)
	}
	validLevels := []string{string(recognizer.LevelLine), string(recognizer.LevelWord)}
	if !slices.Contains(validLevels, c.Pipeline.Recognizer.Level) {
		return fmt.Errorf("invalid recognizer level: %s (must be one of: %s)", c.Pipeline.Recognizer.Level, strings.Join(validLevels, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && (c.Server.RequestsPerSecond <= 0 || c.Server.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: %.2f req/s, burst %d (both must be positive)", c.Server.RequestsPerSecond, c.Server.Burst)
	}

	if _, err := ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToPipelineConfig converts the config to the pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.ModelsDir != "" {
		cfg.ModelsDir = c.ModelsDir
	}
	cfg.Parallel = c.Pipeline.Parallel
	cfg.Detector = c.toDetectorConfig()
	cfg.Recognizer = c.toRecognizerConfig()
	cfg.Organizer = organizer.Config{
		Threshold:      c.Pipeline.Organizer.ContainmentThreshold,
		ContentClasses: organizer.ContentClasses(),
	}
	return cfg
}

func (c *Config) toDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	d := c.Pipeline.Detector
	// Empty paths are resolved inside models_dir by the pipeline builder.
	cfg.ModelPath = d.ModelPath
	cfg.LabelsPath = d.LabelsPath
	cfg.ConfidenceThreshold = float32(d.ConfidenceThreshold)
	cfg.NMSThreshold = d.NMSThreshold
	if d.InputSize > 0 {
		cfg.InputSize = d.InputSize
	}
	cfg.NumThreads = d.NumThreads

	cfg.GPU.UseGPU = c.GPU.Enabled
	cfg.GPU.DeviceID = c.GPU.Device
	if limit, err := ParseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPU.GPUMemLimit = limit
	}
	return cfg
}

func (c *Config) toRecognizerConfig() recognizer.Config {
	cfg := recognizer.DefaultConfig()
	r := c.Pipeline.Recognizer
	if r.Language != "" {
		cfg.Language = r.Language
		cfg.Clean.Language = r.Language
	}
	cfg.TessdataPrefix = r.TessdataPrefix
	cfg.PageSegMode = r.PageSegMode
	if r.Level != "" {
		cfg.Level = recognizer.Level(r.Level)
	}
	cfg.MinConfidence = r.MinConfidence
	return cfg
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// ParseMemoryLimit converts a limit such as "512MB" or "2GB" to bytes.
// An empty string or "auto" means no limit and yields 0.
func ParseMemoryLimit(limit string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(limit))
	if s == "" || s == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
