// Package detector runs the YOLO chat layout model and returns its
// detections grouped by class.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/chatocr/internal/mempool"
	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/onnx"
	"github.com/MeKo-Tech/chatocr/internal/region"
)

// Detector performs chat layout detection using ONNX Runtime.
type Detector struct {
	config      Config
	session     *ort.DynamicAdvancedSession
	inputInfo   ort.InputOutputInfo
	outputInfo  ort.InputOutputInfo
	labels      []string
	labelSource string
	mu          sync.RWMutex
}

// NewDetector loads the model and prepares a reusable session.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	if err := models.ValidateModelExists(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"confidence_threshold", config.ConfidenceThreshold,
		"nms_threshold", config.NMSThreshold)

	if err := onnx.Initialize(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := validateModelInfo(config.ModelPath)
	if err != nil {
		return nil, err
	}
	config.InputSize = inputSizeFor(inputInfo, config.InputSize)

	session, err := createSession(config, inputInfo, outputInfo)
	if err != nil {
		return nil, err
	}

	labels, source := resolveLabels(config)
	slog.Debug("Detector initialized", "labels", labels, "label_source", source, "input_size", config.InputSize)

	return &Detector{
		config:      config,
		session:     session,
		inputInfo:   inputInfo,
		outputInfo:  outputInfo,
		labels:      labels,
		labelSource: source,
	}, nil
}

// Close releases the ONNX session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			slog.Warn("failed to destroy detector session", "error", err)
		}
		d.session = nil
	}
	return nil
}

// GetConfig returns a copy of the detector's configuration.
func (d *Detector) GetConfig() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Labels returns the class names in model output order.
func (d *Detector) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Detect runs the model on img and groups the surviving detections by class.
func (d *Detector) Detect(ctx context.Context, img image.Image) (region.ByClass, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, lb := preprocess(img, d.config.InputSize)
	defer mempool.PutFloat32(data)

	tensor, err := onnx.NewImageTensor(data, 3, d.config.InputSize, d.config.InputSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	output, shape, err := d.run(tensor)
	if err != nil {
		return nil, err
	}

	objs, err := decodeOutput(output, shape, d.labels, d.config.ConfidenceThreshold, lb)
	if err != nil {
		return nil, err
	}
	objs = NonMaxSuppression(objs, d.config.NMSThreshold, d.config.ClassAgnosticNMS)

	out := region.ByClass{}
	for _, o := range objs {
		out.Add(o)
	}

	slog.Debug("Detection complete",
		"detections", len(objs),
		"classes", out.Classes(),
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// run executes the session and copies the output out of onnxruntime memory.
func (d *Detector) run(tensor onnx.Tensor) ([]float32, []int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.session == nil {
		return nil, nil, errors.New("detector session is closed")
	}

	input, err := ort.NewTensor(ort.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	floats, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("%w: output is not a float32 tensor", ErrUnexpectedOutput)
	}
	data := append([]float32(nil), floats.GetData()...)
	shape := append([]int64(nil), floats.GetShape()...)
	return data, shape, nil
}

// ModelInfo describes the loaded model for diagnostics.
func (d *Detector) ModelInfo() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]interface{}{
		"model_path":           d.config.ModelPath,
		"input_name":           d.inputInfo.Name,
		"input_shape":          []int64(d.inputInfo.Dimensions),
		"output_name":          d.outputInfo.Name,
		"output_shape":         []int64(d.outputInfo.Dimensions),
		"input_size":           d.config.InputSize,
		"labels":               d.labels,
		"label_source":         d.labelSource,
		"confidence_threshold": d.config.ConfidenceThreshold,
		"nms_threshold":        d.config.NMSThreshold,
		"gpu":                  d.config.GPU.UseGPU,
	}
}
