package mot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Detection is a single detector output: class scores and box on a given frame
type Detection struct {
	Scores []float64
	Box    Box
	Frame  int
}

// Similarity computes a compatibility score between a new detection and an older one.
// Higher is more similar; 1.0 is returned for identical detections on adjacent frames.
// The result is not clamped from below and Similarity(a, b) != Similarity(b, a) in general,
// since the frame term depends on the order.
//
// It panics if score vectors have different lengths.
func Similarity(newDetection, oldDetection Detection) float64 {
	if len(newDetection.Scores) != len(oldDetection.Scores) {
		panic(fmt.Sprintf("mot: score vectors length mismatch: %d != %d", len(newDetection.Scores), len(oldDetection.Scores)))
	}
	newBox, oldBox := newDetection.Box, oldDetection.Box

	scoreDiff := 0.0
	if len(newDetection.Scores) > 0 {
		diff := make([]float64, len(newDetection.Scores))
		floats.SubTo(diff, newDetection.Scores, oldDetection.Scores)
		for i := range diff {
			diff[i] = math.Abs(diff[i])
		}
		scoreDiff = stat.Mean(diff, nil)
	}

	// Degenerate boxes (zero height) contribute no ratio difference
	ratioDiff := 0.0
	newRatio, oldRatio := Ratio(newBox), Ratio(oldBox)
	if isFinite(newRatio) && isFinite(oldRatio) {
		ratioDiff = math.Min(1.0, math.Abs(newRatio-oldRatio))
	}

	sizeDiff := 0.0
	newArea, oldArea := Area(newBox), Area(oldBox)
	if maxArea := math.Max(newArea, oldArea); maxArea > 0 {
		sizeDiff = math.Min(1.0, math.Abs(newArea-oldArea)/maxArea)
	}

	newCenter, oldCenter := Center(newBox), Center(oldBox)
	centerDiffX := math.Min(1.0, math.Abs(newCenter.X-oldCenter.X))
	centerDiffY := math.Min(1.0, math.Abs(newCenter.Y-oldCenter.Y))
	frameDiff := math.Min(1.0, float64(newDetection.Frame-1-oldDetection.Frame)/3.0)

	return 1.0 - 0.5*scoreDiff - 0.2*ratioDiff - 0.2*sizeDiff - 0.5*centerDiffX - 0.2*centerDiffY - 0.2*frameDiff
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
