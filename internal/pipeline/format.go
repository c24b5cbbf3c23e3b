package pipeline

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/chatocr/internal/organizer"
)

// ToPlainText renders a human readable summary of one image result.
func ToPlainText(res *ImageResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Image: %dx%d\n", res.Width, res.Height)
	fmt.Fprintf(&b, "Text (%s):\n", res.Text.Status)
	if res.Text.Err != nil {
		fmt.Fprintf(&b, "  error: %v\n", res.Text.Err)
	}
	for _, t := range res.Text.Texts {
		fmt.Fprintf(&b, "  %s %s\n", t.Box, t.Text)
	}

	fmt.Fprintf(&b, "Detections (%s):\n", res.Objects.Status)
	if res.Objects.Err != nil {
		fmt.Fprintf(&b, "  error: %v\n", res.Objects.Err)
	}
	if !res.Objects.Result.Screenshot {
		fmt.Fprintf(&b, "  %s\n", organizer.NotScreenshotLabel)
		return b.String()
	}
	for i, w := range res.Objects.Result.Windows {
		fmt.Fprintf(&b, "  Window %d %s: %d items\n", i+1, w.Box, len(w.Content))
		for _, e := range w.Content {
			fmt.Fprintf(&b, "    %-8s %s (%.2f)\n", e.ClassName, e.Detection.Box, e.Detection.Confidence)
		}
	}
	return b.String()
}
