package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/chatocr/internal/detector"
	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/recognizer"
)

// Config holds configuration for the pipeline and its components.
type Config struct {
	ModelsDir        string
	Detector         detector.Config
	Recognizer       recognizer.Config
	Organizer        organizer.Config
	Parallel         bool
	DisableText      bool // build without a text recognizer
	DisableDetection bool // build without an object detector
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir:  models.GetModelsDir(""),
		Detector:   detector.DefaultConfig(),
		Recognizer: recognizer.DefaultConfig(),
		Organizer:  organizer.DefaultConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg               Config
	detectorPathSet   bool
	tessdataPrefixSet bool
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from a complete configuration. Non-empty model
// and tessdata paths in cfg are kept as given; empty ones are resolved
// inside ModelsDir.
func NewBuilderFromConfig(cfg Config) *Builder {
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = models.GetModelsDir("")
	}
	return &Builder{
		cfg:               cfg,
		detectorPathSet:   cfg.Detector.ModelPath != "",
		tessdataPrefixSet: cfg.Recognizer.TessdataPrefix != "",
	}
}

// WithModelsDir sets the models directory and updates component paths.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	return b
}

// WithDetectorModelPath overrides the detector model path directly.
func (b *Builder) WithDetectorModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
		b.detectorPathSet = true
	}
	return b
}

// WithLabelsPath sets the detector class-name file.
func (b *Builder) WithLabelsPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.LabelsPath = path
	}
	return b
}

// WithConfidenceThreshold sets the minimum detector score.
func (b *Builder) WithConfidenceThreshold(t float32) *Builder {
	if t > 0 {
		b.cfg.Detector.ConfidenceThreshold = t
	}
	return b
}

// WithNMSThreshold sets the detector IoU suppression threshold.
func (b *Builder) WithNMSThreshold(t float64) *Builder {
	if t > 0 {
		b.cfg.Detector.NMSThreshold = t
	}
	return b
}

// WithInputSize sets the detector input resolution.
func (b *Builder) WithInputSize(size int) *Builder {
	if size > 0 {
		b.cfg.Detector.InputSize = size
	}
	return b
}

// WithContainmentThreshold sets the window membership threshold.
func (b *Builder) WithContainmentThreshold(t float64) *Builder {
	if t > 0 {
		b.cfg.Organizer.Threshold = t
	}
	return b
}

// WithLanguage sets the OCR language(s).
func (b *Builder) WithLanguage(lang string) *Builder {
	if lang != "" {
		b.cfg.Recognizer.Language = lang
		b.cfg.Recognizer.Clean.Language = lang
	}
	return b
}

// WithTessdataPrefix sets the Tesseract data directory.
func (b *Builder) WithTessdataPrefix(dir string) *Builder {
	if dir != "" {
		b.cfg.Recognizer.TessdataPrefix = dir
		b.tessdataPrefixSet = true
	}
	return b
}

// WithTextLevel sets line or word level recognition.
func (b *Builder) WithTextLevel(level recognizer.Level) *Builder {
	if level != "" {
		b.cfg.Recognizer.Level = level
	}
	return b
}

// WithThreads sets the detector intra-op thread count.
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.NumThreads = n
	}
	return b
}

// WithParallel runs the text and object streams concurrently.
func (b *Builder) WithParallel(enabled bool) *Builder {
	b.cfg.Parallel = enabled
	return b
}

// WithGPU enables CUDA for the detector.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice selects the CUDA device.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Detector.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit caps CUDA arena memory in bytes.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.Detector.GPU.GPUMemLimit = limitBytes
	return b
}

// WithoutText builds the pipeline without a text recognizer.
func (b *Builder) WithoutText() *Builder {
	b.cfg.DisableText = true
	return b
}

// WithoutDetection builds the pipeline without an object detector.
func (b *Builder) WithoutDetection() *Builder {
	b.cfg.DisableDetection = true
	return b
}

// Config returns the current configuration with model paths resolved.
func (b *Builder) Config() Config {
	b.resolvePaths()
	return b.cfg
}

func (b *Builder) resolvePaths() {
	if !b.detectorPathSet {
		labels := b.cfg.Detector.LabelsPath
		b.cfg.Detector.UpdateModelPath(b.cfg.ModelsDir)
		if labels != "" {
			b.cfg.Detector.LabelsPath = labels
		}
	}
	if !b.tessdataPrefixSet && b.cfg.Recognizer.TessdataPrefix == "" {
		b.cfg.Recognizer.TessdataPrefix = models.GetTessdataDir(b.cfg.ModelsDir)
	}
}

// Validate checks the configuration of every enabled component.
func (b *Builder) Validate() error {
	if b.cfg.DisableText && b.cfg.DisableDetection {
		return errors.New("at least one of text recognition and detection must be enabled")
	}
	if !b.cfg.DisableDetection {
		if err := b.cfg.Detector.Validate(); err != nil {
			return fmt.Errorf("detector config: %w", err)
		}
	}
	if !b.cfg.DisableText {
		if err := b.cfg.Recognizer.Validate(); err != nil {
			return fmt.Errorf("recognizer config: %w", err)
		}
	}
	if err := b.cfg.Organizer.Validate(); err != nil {
		return fmt.Errorf("organizer config: %w", err)
	}
	return nil
}

// Pipeline owns the concrete collaborators behind a Driver.
type Pipeline struct {
	*Driver
	cfg        Config
	Detector   *detector.Detector
	Recognizer *recognizer.Recognizer
}

// Build constructs the collaborators once and wires them into a Driver.
func (b *Builder) Build() (*Pipeline, error) {
	b.resolvePaths()
	if err := b.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: b.cfg}
	var det ObjectDetector
	var rec TextRecognizer

	if !b.cfg.DisableDetection {
		d, err := detector.NewDetector(b.cfg.Detector)
		if err != nil {
			return nil, fmt.Errorf("init detector: %w", err)
		}
		p.Detector, det = d, d
	}
	if !b.cfg.DisableText {
		r, err := newRecognizer(b.cfg)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		if r != nil {
			p.Recognizer, rec = r, r
		} else {
			p.cfg.DisableText = true
		}
	}

	drv, err := NewDriver(det, rec, DriverConfig{Organizer: b.cfg.Organizer, Parallel: b.cfg.Parallel})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.Driver = drv
	return p, nil
}

// newRecognizer builds the text recognizer. Without a linked OCR engine it
// returns nil so the text stream is skipped, unless detection is disabled too.
func newRecognizer(cfg Config) (*recognizer.Recognizer, error) {
	r, err := recognizer.New(cfg.Recognizer)
	if errors.Is(err, recognizer.ErrNoBackend) && !cfg.DisableDetection {
		slog.Warn("No OCR backend linked, text recognition disabled", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init recognizer: %w", err)
	}
	return r, nil
}

// Close releases the collaborators.
func (p *Pipeline) Close() error {
	var errs []error
	if p.Detector != nil {
		errs = append(errs, p.Detector.Close())
		p.Detector = nil
	}
	if p.Recognizer != nil {
		errs = append(errs, p.Recognizer.Close())
		p.Recognizer = nil
	}
	return errors.Join(errs...)
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info describes the loaded components.
func (p *Pipeline) Info() map[string]interface{} {
	info := map[string]interface{}{
		"containment_threshold": p.cfg.Organizer.Threshold,
		"content_classes":       p.cfg.Organizer.ContentClasses,
		"parallel":              p.cfg.Parallel,
	}
	if p.Detector != nil {
		info["detector"] = p.Detector.ModelInfo()
	}
	if p.Recognizer != nil {
		rc := p.Recognizer.GetConfig()
		info["recognizer"] = map[string]interface{}{
			"backend":  p.Recognizer.BackendName(),
			"language": rc.Language,
			"level":    rc.Level,
		}
	}
	return info
}
