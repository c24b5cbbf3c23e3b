package detector

import (
	"sort"

	"github.com/MeKo-Tech/chatocr/internal/region"
)

// NonMaxSuppression keeps the highest-confidence box of every group whose
// IoU exceeds iouThreshold. Unless classAgnostic is set, boxes of different
// classes never suppress each other. The result is ordered by confidence.
func NonMaxSuppression(objs []region.Object, iouThreshold float64, classAgnostic bool) []region.Object {
	if len(objs) <= 1 {
		return objs
	}

	indices := make([]int, len(objs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return objs[indices[a]].Confidence > objs[indices[b]].Confidence
	})

	suppressed := make([]bool, len(objs))
	kept := make([]region.Object, 0, len(objs))
	for n, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, objs[a])
		for _, b := range indices[n+1:] {
			if suppressed[b] {
				continue
			}
			if !classAgnostic && objs[a].ClassName != objs[b].ClassName {
				continue
			}
			if region.IoU(objs[a].Box, objs[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}
