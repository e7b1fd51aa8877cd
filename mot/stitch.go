package mot

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// AverageSpeed returns mean (vx, vy) over tracklets having a speed estimate.
// The boolean is false when no tracklet has one.
func AverageSpeed(tracklets []*Track) ([2]float64, bool) {
	var sum [2]float64
	count := 0
	for _, tracklet := range tracklets {
		speed, ok := tracklet.GetSpeed()
		if !ok {
			continue
		}
		sum[0] += speed[0]
		sum[1] += speed[1]
		count++
	}
	if count == 0 {
		return [2]float64{}, false
	}
	return [2]float64{sum[0] / float64(count), sum[1] / float64(count)}, true
}

// FilterBySpeed keeps tracklets moving along the average speed.
// Nothing is filtered when the average speed norm does not exceed threshold (static footage).
// Tracklets too short to have a speed estimate are kept.
func FilterBySpeed(tracklets []*Track, averageSpeed [2]float64, threshold float64) []*Track {
	if math.Hypot(averageSpeed[0], averageSpeed[1]) <= threshold {
		return tracklets
	}
	filtered := make([]*Track, 0, len(tracklets))
	for _, tracklet := range tracklets {
		// Direction is only checked for tracklets with a speed estimate (3 detections or more)
		if _, ok := tracklet.GetSpeed(); !ok || tracklet.HasValidSpeed(averageSpeed) {
			filtered = append(filtered, tracklet)
		}
	}
	return filtered
}

// FilterByLength keeps tracks with at least minLength detections
func FilterByLength(tracks []*Track, minLength int) []*Track {
	filtered := make([]*Track, 0, len(tracks))
	for _, track := range tracks {
		if track.IsValid(minLength) {
			filtered = append(filtered, track)
		}
	}
	return filtered
}

// MatchTracklets stitches tracklets which are likely the same object reappearing.
// Tracklets are matched greedily on their pairwise compatibility; a matched later tracklet is appended
// to the earlier one and removed. Chains of matches collapse into their first tracklet.
// Surviving tracks keep their ids and their relative order.
func MatchTracklets(tracklets []*Track, matchingThreshold float64) []*Track {
	return matchTracklets(tracklets, matchingThreshold, MatchingAlgorithmGreedy)
}

func matchTracklets(tracklets []*Track, matchingThreshold float64, algorithm MatchingAlgorithm) []*Track {
	if len(tracklets) == 0 {
		return []*Track{}
	}
	compatibility := buildTrackletCompatibilityMatrix(tracklets)

	next := make([]int, len(tracklets))
	for i := range next {
		next[i] = -1
	}
	donor := make([]bool, len(tracklets))
	for _, m := range assign(algorithm, compatibility, matchingThreshold) {
		if m.col <= m.row {
			continue
		}
		next[m.row] = m.col
		donor[m.col] = true
	}

	tracks := make([]*Track, 0, len(tracklets))
	for i, tracklet := range tracklets {
		if donor[i] {
			continue
		}
		for j := next[i]; j >= 0; j = next[j] {
			tracklet.AppendTrack(tracklets[j])
		}
		tracks = append(tracks, tracklet)
	}
	return tracks
}

// buildTrackletCompatibilityMatrix returns N x N matrix where (i, j) is compatibility of tracklet i followed by tracklet j.
// Only the upper triangle is computed, the rest is -1.
func buildTrackletCompatibilityMatrix(tracklets []*Track) *mat.Dense {
	n := len(tracklets)
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j < i {
				m.Set(i, j, -1.0)
				continue
			}
			m.Set(i, j, tracklets[i].Compatibility(tracklets[j]))
		}
	}
	return m
}
