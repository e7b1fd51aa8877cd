package mot

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Thresholds used by ContainsSubtrack and HasValidSpeed
const (
	thrSpeed     = 0.0
	thrBoxCenter = 0.05
	thrBoxRatio  = 0.1
	thrSubtrack  = 0.2
)

// Track is a trajectory: a sequence of detections of the same object, ordered by frame.
//
// Notations:
//   - outputs of the detector are "detections"
//   - matchings of successive detections are "tracklets" (short tracks)
//   - final, possibly stitched, trajectories are "tracks"
type Track struct {
	id         int
	scores     [][]float64
	boxes      []Box
	frames     []int
	speed      *[4]float64
	trackScore float64
	projection projection
}

// NewTrack creates a track from its first detection. Projection is linear in normalized coordinates.
func NewTrack(id int, classScores []float64, box Box, frame int) *Track {
	return newTrackWithProjection(id, classScores, box, frame, defaultProjection)
}

func newTrackWithProjection(id int, classScores []float64, box Box, frame int, p projection) *Track {
	track := Track{
		id:         id,
		scores:     [][]float64{classScores},
		boxes:      []Box{box},
		frames:     []int{frame},
		projection: p,
	}
	track.trackScore = track.computeTrackScore()
	return &track
}

// GetID returns track's identifier
func (track *Track) GetID() int {
	return track.id
}

// GetScores returns class scores of every detection. Be careful: this is not a copy.
func (track *Track) GetScores() [][]float64 {
	return track.scores
}

// GetBoxes returns boxes of every detection. Be careful: this is not a copy.
func (track *Track) GetBoxes() []Box {
	return track.boxes
}

// GetFrames returns frame indices of every detection. Be careful: this is not a copy.
func (track *Track) GetFrames() []int {
	return track.frames
}

// GetFrameCount returns number of accumulated detections
func (track *Track) GetFrameCount() int {
	return len(track.frames)
}

// GetFirstFrame returns frame index of the first detection
func (track *Track) GetFirstFrame() int {
	return track.frames[0]
}

// GetLastFrame returns frame index of the latest detection
func (track *Track) GetLastFrame() int {
	return track.frames[len(track.frames)-1]
}

// GetSpeed returns estimated velocity [vx, vy, vx, vy]. It is known once the track has 3 detections.
func (track *Track) GetSpeed() ([4]float64, bool) {
	if track.speed == nil {
		return [4]float64{}, false
	}
	return *track.speed, true
}

// GetTrackScore returns maximum over classes of mean class score
func (track *Track) GetTrackScore() float64 {
	return track.trackScore
}

// AddDetection appends a matching detection. Frames are expected in increasing order.
func (track *Track) AddDetection(classScores []float64, box Box, frame int) {
	track.scores = append(track.scores, classScores)
	track.boxes = append(track.boxes, box)
	track.frames = append(track.frames, frame)
	track.refresh()
}

// AppendTrack appends every detection of other track. Other track must start after this one ends.
func (track *Track) AppendTrack(other *Track) {
	track.scores = append(track.scores, other.scores...)
	track.boxes = append(track.boxes, other.boxes...)
	track.frames = append(track.frames, other.frames...)
	track.refresh()
}

func (track *Track) refresh() {
	if len(track.boxes) > 2 {
		track.speed = track.computeSpeed()
	}
	track.trackScore = track.computeTrackScore()
}

// computeSpeed averages per-frame box displacement over consecutive detections,
// assuming the box translates without deforming.
func (track *Track) computeSpeed() *[4]float64 {
	var sum [4]float64
	steps := 0
	for i := 1; i < len(track.boxes); i++ {
		dt := float64(track.frames[i] - track.frames[i-1])
		if dt <= 0 {
			continue
		}
		for c := 0; c < 4; c++ {
			sum[c] += (track.boxes[i][c] - track.boxes[i-1][c]) / dt
		}
		steps++
	}
	if steps == 0 {
		return nil
	}
	floats.Scale(1.0/float64(steps), sum[:])
	vx := (sum[0] + sum[2]) / 2.0
	vy := (sum[1] + sum[3]) / 2.0
	return &[4]float64{vx, vy, vx, vy}
}

func (track *Track) computeTrackScore() float64 {
	avg := track.GetAverageScores()
	if len(avg) == 0 {
		return 0.0
	}
	return floats.Max(avg)
}

// GetAverageScores returns per-class mean score over all detections
func (track *Track) GetAverageScores() []float64 {
	if len(track.scores[0]) == 0 {
		return []float64{}
	}
	avg := make([]float64, len(track.scores[0]))
	for _, scores := range track.scores {
		floats.Add(avg, scores)
	}
	floats.Scale(1.0/float64(len(track.scores)), avg)
	return avg
}

// GetLabel returns 1-based class index: argmax of summed scores plus one (0 is background).
// Ties resolve to the lowest class.
func (track *Track) GetLabel() int {
	if len(track.scores[0]) == 0 {
		return 1
	}
	sum := make([]float64, len(track.scores[0]))
	for _, scores := range track.scores {
		floats.Add(sum, scores)
	}
	return floats.MaxIdx(sum) + 1
}

// GetCenter returns center of the latest box
func (track *Track) GetCenter() Point {
	return Center(track.boxes[len(track.boxes)-1])
}

// GetLatestDetection returns latest scores, box and frame.
// When applySpeed is set the box is extrapolated to targetFrame with the track's motion model
// and clamped to its coordinate space. Frame of the returned detection stays the latest one.
func (track *Track) GetLatestDetection(applySpeed bool, targetFrame int) Detection {
	last := len(track.boxes) - 1
	box := track.boxes[last]
	if applySpeed {
		box = track.project(targetFrame)
	}
	return Detection{
		Scores: track.scores[last],
		Box:    box,
		Frame:  track.frames[last],
	}
}

func (track *Track) project(targetFrame int) Box {
	last := len(track.boxes) - 1
	if track.projection.motion == MotionKalman && len(track.boxes) > 1 {
		box, err := kalmanProject(track.boxes, track.frames, targetFrame)
		if err == nil {
			return track.projection.clamp(box)
		}
	}
	if track.speed == nil {
		return track.boxes[last]
	}
	box := track.boxes[last].Add(*track.speed, float64(targetFrame-track.frames[last]))
	return track.projection.clamp(box)
}

// IsInRange tells whether the latest detection is at most timeWindow frames before frameIdx
func (track *Track) IsInRange(frameIdx, timeWindow int) bool {
	return frameIdx-track.GetLastFrame() <= timeWindow
}

// IsValid tells whether track has at least minLength detections
func (track *Track) IsValid(minLength int) bool {
	return len(track.frames) >= minLength
}

// HasValidSpeed tells whether track moves in the same direction as the reference 2-D speed.
// Tracks without a speed estimate are not valid.
func (track *Track) HasValidSpeed(speed [2]float64) bool {
	if track.speed == nil {
		return false
	}
	return speed[0]*track.speed[0]+speed[1]*track.speed[1] > thrSpeed
}

// Compatibility computes a soft compatibility score between this track and a later one.
// It returns -1 when this track does not end strictly before other starts.
//
// The projected latest detection of this track is the first argument of Similarity,
// so the frame term is negative and grows with the gap between both tracks.
func (track *Track) Compatibility(other *Track) float64 {
	if track.GetLastFrame() >= other.GetFirstFrame() {
		return -1.0
	}
	projected := track.GetLatestDetection(true, other.GetFirstFrame())
	oldDetection := Detection{
		Scores: track.GetAverageScores(),
		Box:    projected.Box,
		Frame:  track.GetLastFrame(),
	}
	newDetection := Detection{
		Scores: other.GetAverageScores(),
		Box:    other.boxes[0],
		Frame:  other.GetFirstFrame(),
	}
	return Similarity(oldDetection, newDetection)
}

// ContainsSubtrack tells whether other track is a part of this one:
// same label and enough boxes matching on the frames they share.
func (track *Track) ContainsSubtrack(other *Track) bool {
	if track.GetLabel() != other.GetLabel() {
		return false
	}
	otherIdx := make(map[int]int, len(other.frames))
	for i := len(other.frames) - 1; i >= 0; i-- {
		otherIdx[other.frames[i]] = i
	}
	seen := make(map[int]struct{}, len(track.frames))
	matchBox := 0.0
	for i, frame := range track.frames {
		if _, ok := seen[frame]; ok {
			continue
		}
		seen[frame] = struct{}{}
		j, ok := otherIdx[frame]
		if !ok {
			continue
		}
		box1, box2 := track.boxes[i], other.boxes[j]
		if CenterDist(box1, box2) < thrBoxCenter && absFloat64(Ratio(box1)-Ratio(box2)) < thrBoxRatio {
			matchBox++
		}
	}
	return matchBox/float64(len(other.frames)) > thrSubtrack
}

// Result returns the output record of the track. Class names exclude background.
func (track *Track) Result(classNames []string) TrackResult {
	names := append([]string{BackgroundClassName}, classNames...)
	label := ""
	if idx := track.GetLabel(); idx < len(names) {
		label = names[idx]
	}
	frameToBox := make(map[int]Box, len(track.frames))
	for i, frame := range track.frames {
		frameToBox[frame] = track.boxes[i].Round(2)
	}
	return TrackResult{
		Label:      label,
		Score:      track.trackScore,
		ID:         track.id,
		FrameToBox: frameToBox,
	}
}

func (track *Track) String() string {
	center := track.GetCenter()
	return fmt.Sprintf("(id:%d, label:%d, center:(%.1f,%.1f), frames:%v)", track.id, track.GetLabel(), center.X, center.Y, track.frames)
}

func absFloat64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
