package detect

import "sort"

const (
	DefaultConfidence = 0.25
	DefaultIoU        = 0.7
	maxDetections     = 300
	maxCandidates     = 30000
)

type box struct {
	x1, y1, x2, y2 float32
}

func (b box) area() float32 {
	return max(0, b.x2-b.x1) * max(0, b.y2-b.y1)
}

func iou(a, b box) float32 {
	iw := min(a.x2, b.x2) - max(a.x1, b.x1)
	ih := min(a.y2, b.y2) - max(a.y1, b.y1)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

type candidate struct {
	box   box
	score float32
	class int
}

// Thresholds controls which raw predictions survive post-processing.
type Thresholds struct {
	Confidence float32
	IoU        float32
}

// decodeYOLO reads a YOLOv8-style output laid out as [4+classes, anchors]:
// rows 0..3 are box center x, center y, width and height, followed by one
// score row per class. It returns the class of every detection kept after
// per-class non-maximum suppression, best score first.
func decodeYOLO(out []float32, numClasses, anchors int, th Thresholds) []int {
	var cands []candidate
	for j := 0; j < anchors; j++ {
		best, score := 0, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := out[(4+c)*anchors+j]; s > score {
				best, score = c, s
			}
		}
		if score <= th.Confidence {
			continue
		}
		cx, cy := out[j], out[anchors+j]
		w, h := out[2*anchors+j], out[3*anchors+j]
		cands = append(cands, candidate{
			box:   box{x1: cx - w/2, y1: cy - h/2, x2: cx + w/2, y2: cy + h/2},
			score: score,
			class: best,
		})
	}

	sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}

	var kept []candidate
	for _, c := range cands {
		suppressed := false
		for _, k := range kept {
			if k.class == c.class && iou(k.box, c.box) > th.IoU {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		kept = append(kept, c)
		if len(kept) == maxDetections {
			break
		}
	}

	classes := make([]int, len(kept))
	for i, k := range kept {
		classes[i] = k.class
	}
	return classes
}

// anchorCount is the number of predictions a stride 8/16/32 head emits for a
// square input of the given size.
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}
