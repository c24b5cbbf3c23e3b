package detector

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
)

// DefaultLabels is the class order the chat detector is trained with.
func DefaultLabels() []string {
	return []string{
		organizer.ClassChatWindow,
		organizer.ClassSender,
		organizer.ClassReceiver,
		organizer.ClassEmoji,
	}
}

// ParseLabels reads class names from YAML. It accepts a dataset file with a
// names key (list or index map), a bare list, or a bare index map such as the
// names entry ultralytics writes into ONNX metadata.
func ParseLabels(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("labels document is empty")
	}
	node := doc.Content[0]

	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "names" {
				node = node.Content[i+1]
				break
			}
		}
	}

	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil, fmt.Errorf("failed to decode label list: %w", err)
		}
		return validateLabels(names)
	case yaml.MappingNode:
		var indexed map[int]string
		if err := node.Decode(&indexed); err != nil {
			return nil, fmt.Errorf("failed to decode label map: %w", err)
		}
		keys := make([]int, 0, len(indexed))
		for k := range indexed {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		names := make([]string, len(keys))
		for i, k := range keys {
			if k != i {
				return nil, fmt.Errorf("label indices must be contiguous from 0, missing %d", i)
			}
			names[i] = indexed[k]
		}
		return validateLabels(names)
	default:
		return nil, errors.New("labels must be a list or an index map")
	}
}

func validateLabels(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, errors.New("no labels found")
	}
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
		if names[i] == "" {
			return nil, fmt.Errorf("label %d is empty", i)
		}
	}
	return names, nil
}

// LoadLabels reads class names from a YAML file.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: labels path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	return ParseLabels(data)
}

// labelsFromModel reads the "names" custom metadata entry of an ONNX model.
func labelsFromModel(modelPath string) ([]string, error) {
	meta, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	defer func() { _ = meta.Destroy() }()

	value, ok, err := meta.LookupCustomMetadataMap("names")
	if err != nil {
		return nil, fmt.Errorf("failed to look up names metadata: %w", err)
	}
	if !ok {
		return nil, errors.New("model has no names metadata")
	}
	return ParseLabels([]byte(value))
}

// resolveLabels picks class names from the labels file, the model metadata,
// or the defaults, in that order.
func resolveLabels(cfg Config) ([]string, string) {
	if cfg.LabelsPath != "" {
		if names, err := LoadLabels(cfg.LabelsPath); err == nil {
			return names, "file"
		}
	}
	if names, err := labelsFromModel(cfg.ModelPath); err == nil {
		return names, "metadata"
	}
	return DefaultLabels(), "default"
}
