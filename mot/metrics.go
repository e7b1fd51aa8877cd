package mot

import (
	"gonum.org/v1/gonum/floats"
)

// Scores are trajectory-level tracking scores, as rates over ground-truth tracks.
//
// Bo Wu and Ram Nevatia. Tracking of multiple, partially occluded humans based on static body part detection, CVPR 2006:
//   - Mostly Tracked (MT): ground-truth tracks matched by exactly one predicted track
//   - Over Tracked (OT): ground-truth tracks matched by several predicted tracks
//   - Un-Tracked (UT): ground-truth tracks matched by no predicted track
type Scores struct {
	MostlyTracked float64 `json:"mostly_tracked"`
	OverTracked   float64 `json:"over_tracked"`
	UnTracked     float64 `json:"un_tracked"`
}

// Evaluation is the comparison of predicted tracks against ground truth
type Evaluation struct {
	Scores
	// Ground-truth count minus predicted count, per label
	CountDiff map[int]int `json:"count_diff"`
	// Localization quality, see MeanIoU
	MeanIoU float64 `json:"mean_iou"`
}

// ComputeScores matches predicted tracks against ground-truth tracks.
// A predicted track is attributed to the first ground-truth track containing it and is not reused,
// so the order of tracksGT matters. All rates are 0 when there is no ground truth.
func ComputeScores(tracks, tracksGT []*Track) (mt, ot, ut float64) {
	if len(tracksGT) == 0 {
		return 0, 0, 0
	}
	remaining := make([]*Track, len(tracks))
	copy(remaining, tracks)
	for _, trackGT := range tracksGT {
		kept := remaining[:0:0]
		matched := 0
		for _, track := range remaining {
			if trackGT.ContainsSubtrack(track) {
				matched++
				continue
			}
			kept = append(kept, track)
		}
		remaining = kept
		switch {
		case matched == 0:
			ut++
		case matched == 1:
			mt++
		default:
			ot++
		}
	}
	n := float64(len(tracksGT))
	return mt / n, ot / n, ut / n
}

// CountMatch returns, per label, number of ground-truth tracks minus number of predicted tracks.
// Only counts are compared: identities and positions are ignored.
func CountMatch(tracks, tracksGT []*Track) map[int]int {
	diff := make(map[int]int)
	for _, track := range tracksGT {
		diff[track.GetLabel()]++
	}
	for _, track := range tracks {
		diff[track.GetLabel()]--
	}
	return diff
}

// Evaluate computes both trajectory scores and count differences
func Evaluate(tracks, tracksGT []*Track) Evaluation {
	mt, ot, ut := ComputeScores(tracks, tracksGT)
	return Evaluation{
		Scores: Scores{
			MostlyTracked: mt,
			OverTracked:   ot,
			UnTracked:     ut,
		},
		CountDiff: CountMatch(tracks, tracksGT),
		MeanIoU:   MeanIoU(tracks, tracksGT),
	}
}

// MeanIoU averages the best IoU between each ground-truth box and the predicted boxes
// of the same label on the same frame. Ground-truth boxes without such a prediction are skipped.
// It is 0 when nothing overlaps in time.
func MeanIoU(tracks, tracksGT []*Track) float64 {
	// label -> frame -> predicted boxes
	predicted := make(map[int]map[int][]Box)
	for _, track := range tracks {
		label := track.GetLabel()
		if predicted[label] == nil {
			predicted[label] = make(map[int][]Box)
		}
		for i, frame := range track.frames {
			predicted[label][frame] = append(predicted[label][frame], track.boxes[i])
		}
	}
	sum, count := 0.0, 0
	for _, trackGT := range tracksGT {
		byFrame := predicted[trackGT.GetLabel()]
		for i, frame := range trackGT.frames {
			boxes, ok := byFrame[frame]
			if !ok {
				continue
			}
			sum += floats.Max(IoU(trackGT.boxes[i], boxes))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
