package pipeline

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
	"github.com/MeKo-Tech/chatocr/internal/region"
)

// Status reports how a perception stream finished.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ErrCollaboratorPanic wraps a panic raised inside a detector or recognizer.
var ErrCollaboratorPanic = errors.New("collaborator panicked")

// TextOutcome is the result of the text stream. Texts is empty whenever
// Status is not StatusOK.
type TextOutcome struct {
	Texts    []region.Text
	Status   Status
	Err      error
	Duration time.Duration
}

// MarshalJSON encodes the outcome in the {"texts": [...]} shape.
func (o TextOutcome) MarshalJSON() ([]byte, error) {
	texts := o.Texts
	if texts == nil {
		texts = []region.Text{}
	}
	return json.Marshal(struct {
		Texts  []region.Text `json:"texts"`
		Status Status        `json:"status"`
		Error  string        `json:"error,omitempty"`
	}{texts, o.Status, errString(o.Err)})
}

// DetectionOutcome is the result of the object stream. A failed detector
// still yields the not-a-screenshot result, but Status records the failure.
type DetectionOutcome struct {
	Result     organizer.Result
	Detections region.ByClass
	Status     Status
	Err        error
	Duration   time.Duration
}

// MarshalJSON encodes the organized result next to its status.
func (o DetectionOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Detections organizer.Result `json:"detections"`
		Status     Status           `json:"status"`
		Error      string           `json:"error,omitempty"`
	}{o.Result, o.Status, errString(o.Err)})
}

// ImageResult holds both streams for one image. They are reported side by
// side and never merged.
type ImageResult struct {
	Width    int
	Height   int
	Text     TextOutcome
	Objects  DetectionOutcome
	Duration time.Duration
}

// Failed reports whether any stream failed.
func (r *ImageResult) Failed() bool {
	return r.Text.Status == StatusFailed || r.Objects.Status == StatusFailed
}

type imageResultJSON struct {
	Width           int              `json:"width"`
	Height          int              `json:"height"`
	Texts           []region.Text    `json:"texts"`
	TextStatus      Status           `json:"text_status"`
	TextError       string           `json:"text_error,omitempty"`
	Detections      organizer.Result `json:"detections"`
	DetectionStatus Status           `json:"detection_status"`
	DetectionError  string           `json:"detection_error,omitempty"`
	ProcessingMs    float64          `json:"processing_ms"`
}

// MarshalJSON flattens both streams into one object.
func (r *ImageResult) MarshalJSON() ([]byte, error) {
	texts := r.Text.Texts
	if texts == nil {
		texts = []region.Text{}
	}
	return json.Marshal(imageResultJSON{
		Width:           r.Width,
		Height:          r.Height,
		Texts:           texts,
		TextStatus:      r.Text.Status,
		TextError:       errString(r.Text.Err),
		Detections:      r.Objects.Result,
		DetectionStatus: r.Objects.Status,
		DetectionError:  errString(r.Objects.Err),
		ProcessingMs:    float64(r.Duration.Microseconds()) / 1000,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
