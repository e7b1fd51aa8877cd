package mot

import (
	"gonum.org/v1/gonum/mat"
)

// BuildTracklets builds tracklets, i.e. confident matchings between detections of successive frames,
// greedily taking the best (detection, tracklet) pair first.
//
// frames are per-frame detections in frame order, the slice index being the frame index.
// timeWindow is the number of previous frames considered, matchingThreshold is the minimum accepted similarity.
// Every tracklet ever created is returned, in creation order; ids are creation indices.
func BuildTracklets(frames []FrameDetections, timeWindow int, matchingThreshold float64) []*Track {
	return buildTracklets(frames, timeWindow, matchingThreshold, MatchingAlgorithmGreedy, defaultProjection)
}

func buildTracklets(frames []FrameDetections, timeWindow int, matchingThreshold float64, algorithm MatchingAlgorithm, p projection) []*Track {
	tracklets := make([]*Track, 0)
	for frameIdx, fd := range frames {
		numNew := fd.Len()
		if numNew == 0 {
			continue
		}

		// Previous tracklets which could be matched
		potential := make([]*Track, 0)
		for _, tracklet := range tracklets {
			if tracklet.IsInRange(frameIdx, timeWindow) {
				potential = append(potential, tracklet)
			}
		}

		matched := make([]bool, numNew)
		similarity := buildSimilarityMatrix(fd, frameIdx, potential)
		for _, m := range assign(algorithm, similarity, matchingThreshold) {
			potential[m.col].AddDetection(fd.Scores[m.row], fd.Boxes[m.row], frameIdx)
			matched[m.row] = true
		}

		// Remaining detections become new tracklets
		for i := 0; i < numNew; i++ {
			if matched[i] {
				continue
			}
			tracklets = append(tracklets, newTrackWithProjection(len(tracklets), fd.Scores[i], fd.Boxes[i], frameIdx, p))
		}
	}
	return tracklets
}

// buildSimilarityMatrix returns N x M similarity between new detections and the latest detections
// of candidate tracklets projected onto frameIdx. Nil is returned when either side is empty.
func buildSimilarityMatrix(fd FrameDetections, frameIdx int, tracklets []*Track) *mat.Dense {
	numNew, numOld := fd.Len(), len(tracklets)
	if numNew == 0 || numOld == 0 {
		return nil
	}
	latest := make([]Detection, numOld)
	for j, tracklet := range tracklets {
		latest[j] = tracklet.GetLatestDetection(true, frameIdx)
	}
	m := mat.NewDense(numNew, numOld, nil)
	for i := 0; i < numNew; i++ {
		newDetection := Detection{Scores: fd.Scores[i], Box: fd.Boxes[i], Frame: frameIdx}
		for j := 0; j < numOld; j++ {
			m.Set(i, j, Similarity(newDetection, latest[j]))
		}
	}
	return m
}
