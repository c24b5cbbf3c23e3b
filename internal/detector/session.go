package detector

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/chatocr/internal/onnx"
)

// validateModelInfo checks the model has one 4D image input and one output.
func validateModelInfo(modelPath string) (ort.InputOutputInfo, ort.InputOutputInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{},
			fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, fmt.Errorf("expected 1 input, got %d", len(inputs))
	}
	if len(outputs) < 1 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{}, fmt.Errorf("expected at least 1 output, got %d", len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return ort.InputOutputInfo{}, ort.InputOutputInfo{},
			fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}
	return inputs[0], outputs[0], nil
}

// inputSizeFor returns the fixed spatial size baked into the model, or
// fallback for dynamic models.
func inputSizeFor(info ort.InputOutputInfo, fallback int) int {
	h, w := info.Dimensions[2], info.Dimensions[3]
	if h > 0 && h == w {
		return int(h)
	}
	return fallback
}

// createSession opens a dynamic session bound to the model's first input
// and output.
func createSession(cfg Config, inputInfo, outputInfo ort.InputOutputInfo) (*ort.DynamicAdvancedSession, error) {
	opts, err := onnx.NewSessionOptions(cfg.NumThreads, cfg.GPU)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputInfo.Name}, []string{outputInfo.Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}
