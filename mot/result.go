package mot

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// Result is the tracking output of a video
type Result struct {
	VideoLength   int           `json:"video_length"`
	FPS           float64       `json:"fps"`
	VideoID       string        `json:"video_id"`
	DetectedTrash []TrackResult `json:"detected_trash"`
}

// TrackResult is the output record of a single track. Boxes are rounded to 2 decimals.
type TrackResult struct {
	Label      string      `json:"label"`
	Score      float64     `json:"score"`
	ID         int         `json:"id"`
	FrameToBox map[int]Box `json:"frame_to_box"`
}

// ParseResult decodes a Result from JSON. Frame keys must be integers.
func ParseResult(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, errors.Wrap(err, "can't decode tracking result")
	}
	if result.DetectedTrash == nil {
		result.DetectedTrash = []TrackResult{}
	}
	return result, nil
}

// Tracks rebuilds tracks from the result, e.g. to use an annotated video as ground truth.
// Each detection gets a class-score vector holding the track score on its label.
func (result Result) Tracks(classNames []string) ([]*Track, error) {
	labels := make(map[string]int, len(classNames))
	for i, name := range classNames {
		if _, ok := labels[name]; !ok {
			labels[name] = i + 1
		}
	}
	tracks := make([]*Track, 0, len(result.DetectedTrash))
	for _, tr := range result.DetectedTrash {
		label, ok := labels[tr.Label]
		if !ok {
			return nil, errors.Errorf("track %d: unknown label %q", tr.ID, tr.Label)
		}
		if len(tr.FrameToBox) == 0 {
			return nil, errors.Errorf("track %d: no boxes", tr.ID)
		}
		score := tr.Score
		if score <= 0 {
			score = 1.0
		}
		frames := make([]int, 0, len(tr.FrameToBox))
		for frame := range tr.FrameToBox {
			frames = append(frames, frame)
		}
		sort.Ints(frames)
		var track *Track
		for _, frame := range frames {
			scores := make([]float64, len(classNames))
			scores[label-1] = score
			if track == nil {
				track = NewTrack(tr.ID, scores, tr.FrameToBox[frame], frame)
				continue
			}
			track.AddDetection(scores, tr.FrameToBox[frame], frame)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
