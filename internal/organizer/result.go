package organizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// NotScreenshotLabel is the JSON form of a result without chat windows.
const NotScreenshotLabel = "Not a Screenshot"

// Entry is one content detection assigned to a window.
type Entry struct {
	ClassName string
	Detection region.Object
}

// MarshalJSON encodes the entry as a single-key object keyed by class name.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]region.Object{e.ClassName: e.Detection})
}

// UnmarshalJSON decodes a single-key object keyed by class name.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var m map[string]region.Object
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("content entry must have exactly one class key, got %d", len(m))
	}
	for cls, det := range m {
		det.ClassName = cls
		e.ClassName = cls
		e.Detection = det
	}
	return nil
}

// Window is a chat window with the detections it contains.
type Window struct {
	Box        region.Box `json:"bbox"`
	Confidence float64    `json:"confidence,omitempty"`
	Content    []Entry    `json:"content"`
}

// Count returns the number of entries of the given class.
func (w Window) Count(class string) int {
	n := 0
	for _, e := range w.Content {
		if e.ClassName == class {
			n++
		}
	}
	return n
}

// Result is the organized view of one image. Screenshot is false when the
// detector found no chat_window class at all; a screenshot with an empty
// window list is a different outcome.
type Result struct {
	Screenshot bool
	Windows    []Window
}

// NotScreenshot returns the sentinel result.
func NotScreenshot() Result {
	return Result{}
}

// MarshalJSON encodes the sentinel as the literal label and screenshots as a
// list of windows.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Screenshot {
		return json.Marshal(NotScreenshotLabel)
	}
	windows := r.Windows
	if windows == nil {
		windows = []Window{}
	}
	return json.Marshal(windows)
}

// UnmarshalJSON accepts either the sentinel label or a window list.
func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		if label != NotScreenshotLabel {
			return errors.New("unknown result label: " + label)
		}
		*r = NotScreenshot()
		return nil
	}
	var windows []Window
	if err := json.Unmarshal(data, &windows); err != nil {
		return err
	}
	*r = Result{Screenshot: true, Windows: windows}
	return nil
}

// Summary counts entries per class across all windows.
func (r Result) Summary() map[string]int {
	out := make(map[string]int)
	for _, w := range r.Windows {
		for _, e := range w.Content {
			out[e.ClassName]++
		}
	}
	return out
}
