// Package models resolves the on-disk locations of the detector model, its
// class-name file and the Tesseract language data.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model file names.
const (
	DetectorModel  = "chat_detector.onnx"
	DetectorLabels = "chat_detector.yaml"
)

// Model type directories.
const (
	TypeDetection = "detection"
	TypeTessdata  = "tessdata"
)

// DefaultModelsDir is used when nothing else is configured.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "CHATOCR_MODELS_DIR"

// ModelInfo describes a model artifact.
type ModelInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers modelsDir/<type>/<file> and falls back to the
// flat modelsDir/<file> layout.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	base := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(base, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(base, filename)
}

// GetDetectorModelPath returns the chat detector ONNX model path.
func GetDetectorModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, DetectorModel)
}

// GetDetectorLabelsPath returns the class-name file next to the model.
func GetDetectorLabelsPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, DetectorLabels)
}

// GetTessdataDir returns the Tesseract language data directory, or "" when
// the models directory does not ship one.
func GetTessdataDir(modelsDir string) string {
	dir := filepath.Join(GetModelsDir(modelsDir), TypeTessdata)
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		return dir
	}
	return ""
}

// ValidateModelExists checks that a model file exists.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns the artifacts the pipeline knows about.
func ListAvailableModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "chat-detector",
			Type:        TypeDetection,
			Description: "YOLO chat layout detector (chat_window, sender, receiver, emoji)",
			Filename:    DetectorModel,
		},
		{
			Name:        "chat-detector-labels",
			Type:        TypeDetection,
			Description: "Class names for the chat layout detector",
			Filename:    DetectorLabels,
		},
		{
			Name:        "tessdata",
			Type:        TypeTessdata,
			Description: "Tesseract language data",
			Filename:    TypeTessdata,
		},
	}
}
