package refinery

import (
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// iou returns the intersection-over-union of two image-coordinate
// [x0,y0,x1,y1] bounding boxes.
func iou(a, b [4]float64) float64 {
	ix0 := math.Max(a[0], b[0])
	iy0 := math.Max(a[1], b[1])
	ix1 := math.Min(a[2], b[2])
	iy1 := math.Min(a[3], b[3])

	iw := math.Max(0, ix1-ix0)
	ih := math.Max(0, iy1-iy0)
	intersection := iw * ih
	if intersection == 0 {
		return 0
	}

	areaA := math.Max(0, a[2]-a[0]) * math.Max(0, a[3]-a[1])
	areaB := math.Max(0, b[2]-b[0]) * math.Max(0, b[3]-b[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func featureBounds(f *geojson.Feature) [4]float64 {
	bounds, _ := BoundsImcoords(f)
	return bounds
}

// nms keeps the highest-scoring feature in each overlapping cluster,
// dropping any remaining feature whose IoU with a kept feature exceeds
// iou_threshold. Boxes scoring below skip_box_threshold are dropped before
// the sweep begins.
func nms(features []*geojson.Feature, opts common.FeatureSelectionOptions) []*geojson.Feature {
	candidates := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if detectionScore(f) >= opts.SkipBoxThreshold {
			candidates = append(candidates, f)
		}
	}
	sortByScoreDescThenID(candidates)

	kept := make([]*geojson.Feature, 0, len(candidates))
	suppressed := make([]bool, len(candidates))
	for i, f := range candidates {
		if suppressed[i] {
			continue
		}
		kept = append(kept, f)
		fb := featureBounds(f)
		for j := i + 1; j < len(candidates); j++ {
			if suppressed[j] {
				continue
			}
			if iou(fb, featureBounds(candidates[j])) > opts.IoUThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// softNMS runs the Gaussian-decay variant: each surviving top feature
// rescores the remaining candidates by score' = score * exp(-IoU^2/sigma),
// dropping any that fall below skip_box_threshold.
func softNMS(features []*geojson.Feature, opts common.FeatureSelectionOptions) []*geojson.Feature {
	type scored struct {
		feature *geojson.Feature
		score   float64
	}
	candidates := make([]scored, 0, len(features))
	for _, f := range features {
		if s := detectionScore(f); s >= opts.SkipBoxThreshold {
			candidates = append(candidates, scored{feature: f, score: s})
		}
	}
	var kept []*geojson.Feature
	for len(candidates) > 0 {
		topIdx := 0
		for i, c := range candidates {
			if c.score > candidates[topIdx].score {
				topIdx = i
			}
		}
		top := candidates[topIdx]
		kept = append(kept, top.feature)
		topBounds := featureBounds(top.feature)

		remaining := candidates[:0]
		for i, c := range candidates {
			if i == topIdx {
				continue
			}
			overlap := iou(topBounds, featureBounds(c.feature))
			c.score = c.score * math.Exp(-(overlap*overlap)/opts.Sigma)
			if c.score >= opts.SkipBoxThreshold {
				remaining = append(remaining, c)
			}
		}
		candidates = remaining
	}
	return kept
}
