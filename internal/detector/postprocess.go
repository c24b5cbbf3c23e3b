package detector

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// ErrUnexpectedOutput is returned when the model output cannot be decoded.
var ErrUnexpectedOutput = errors.New("unexpected model output")

// decodeOutput turns a YOLOv8-style output tensor into detections in
// original image coordinates. Both [1, 4+C, N] and [1, N, 4+C] layouts are
// accepted; each row holds center x, center y, width, height, then one score
// per class.
func decodeOutput(data []float32, shape []int64, labels []string, minConf float32, lb letterbox) ([]region.Object, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("%w: shape %v", ErrUnexpectedOutput, shape)
	}
	a, b := int(shape[1]), int(shape[2])
	if len(data) != a*b {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrUnexpectedOutput, len(data), shape)
	}

	// Channels are the smaller axis: a handful of classes vs thousands of anchors.
	channels, anchors, channelsFirst := a, b, true
	if a > b {
		channels, anchors, channelsFirst = b, a, false
	}
	numClasses := channels - 4
	if numClasses < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnexpectedOutput, channels)
	}

	at := func(c, i int) float32 {
		if channelsFirst {
			return data[c*anchors+i]
		}
		return data[i*channels+c]
	}

	bounds := image.Rect(0, 0, lb.Width, lb.Height)
	var out []region.Object
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < minConf {
			continue
		}

		cx, cy, w, h := float64(at(0, i)), float64(at(1, i)), float64(at(2, i)), float64(at(3, i))
		x1, y1 := lb.toImage(cx-w/2, cy-h/2)
		x2, y2 := lb.toImage(cx+w/2, cy+h/2)
		box := region.NewBox(x1, y1, x2, y2).Clip(bounds)
		if box.Empty() {
			continue
		}

		out = append(out, region.Object{
			ClassName:  labelFor(labels, best),
			Confidence: float64(bestScore),
			Box:        box,
		})
	}
	return out, nil
}

func labelFor(labels []string, idx int) string {
	if idx < len(labels) {
		return labels[idx]
	}
	return fmt.Sprintf("class_%d", idx)
}
