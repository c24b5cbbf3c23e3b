// Package organizer groups chat-content detections under the chat windows
// that contain them.
package organizer

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// Class names emitted by the chat detector.
const (
	ClassChatWindow = "chat_window"
	ClassSender     = "sender"
	ClassReceiver   = "receiver"
	ClassEmoji      = "emoji"
)

// DefaultThreshold is the minimum containment fraction for a detection to
// belong to a window.
const DefaultThreshold = 0.8

// ContentClasses returns the content classes in the order they are appended
// to a window.
func ContentClasses() []string {
	return []string{ClassSender, ClassReceiver, ClassEmoji}
}

// Config controls how detections are assigned to windows.
type Config struct {
	Threshold      float64  `json:"containment_threshold"`
	ContentClasses []string `json:"content_classes"`
}

// DefaultConfig returns the standard chat layout configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:      DefaultThreshold,
		ContentClasses: ContentClasses(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !validThreshold(c.Threshold) {
		return fmt.Errorf("containment threshold must be in (0, 1], got %f", c.Threshold)
	}
	if len(c.ContentClasses) == 0 {
		return errors.New("at least one content class is required")
	}
	for _, cls := range c.ContentClasses {
		if cls == ClassChatWindow {
			return fmt.Errorf("%q cannot be a content class", ClassChatWindow)
		}
	}
	return nil
}

// Organizer assigns content detections to chat windows.
type Organizer struct {
	config Config
}

// New creates an Organizer. Zero-valued fields fall back to the defaults.
func New(config Config) (*Organizer, error) {
	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}
	if len(config.ContentClasses) == 0 {
		config.ContentClasses = ContentClasses()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid organizer config: %w", err)
	}
	return &Organizer{config: config}, nil
}

// Config returns the effective configuration.
func (o *Organizer) Config() Config {
	return o.config
}

// Organize groups dets using the organizer's threshold.
func (o *Organizer) Organize(dets region.ByClass) Result {
	return organize(dets, o.config.Threshold, o.config.ContentClasses)
}

// OrganizeWithThreshold groups dets using a caller supplied threshold. A
// threshold outside (0, 1] falls back to the organizer's own.
func (o *Organizer) OrganizeWithThreshold(dets region.ByClass, threshold float64) Result {
	if !validThreshold(threshold) {
		threshold = o.config.Threshold
	}
	return organize(dets, threshold, o.config.ContentClasses)
}

// Organize groups sender, receiver and emoji detections under every chat
// window that contains at least threshold of their area. A detection may land
// in more than one window. Without a chat_window key the result is the
// not-a-screenshot sentinel. A threshold outside (0, 1] is replaced by
// DefaultThreshold.
func Organize(dets region.ByClass, threshold float64) Result {
	if !validThreshold(threshold) {
		threshold = DefaultThreshold
	}
	return organize(dets, threshold, ContentClasses())
}

// validThreshold is false for NaN as well.
func validThreshold(t float64) bool {
	return t > 0 && t <= 1
}

func organize(dets region.ByClass, threshold float64, classes []string) Result {
	if !dets.Has(ClassChatWindow) {
		return NotScreenshot()
	}
	windows := dets[ClassChatWindow]

	res := Result{Screenshot: true, Windows: make([]Window, len(windows))}
	for i, w := range windows {
		res.Windows[i] = Window{Box: w.Box, Confidence: w.Confidence, Content: []Entry{}}
	}

	for _, cls := range classes {
		for _, det := range dets[cls] {
			for i := range res.Windows {
				if region.Containment(res.Windows[i].Box, det.Box) >= threshold {
					res.Windows[i].Content = append(res.Windows[i].Content, Entry{ClassName: cls, Detection: det})
				}
			}
		}
	}
	return res
}
