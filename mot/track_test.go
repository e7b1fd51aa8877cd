package mot

import (
	"math"
	"testing"
)

func boxesAlmostEqual(a, b Box) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func TestNewTrack(t *testing.T) {
	track := NewTrack(3, []float64{0.1, 0.7, 0.2}, NewBox(0.1, 0.2, 0.3, 0.4), 5)
	if track.GetID() != 3 {
		t.Errorf("Expected id 3, got %d", track.GetID())
	}
	if track.GetFrameCount() != 1 || track.GetFirstFrame() != 5 || track.GetLastFrame() != 5 {
		t.Errorf("Expected single detection on frame 5, got frames %v", track.GetFrames())
	}
	if _, ok := track.GetSpeed(); ok {
		t.Error("Speed should be unknown for a single detection")
	}
	if math.Abs(track.GetTrackScore()-0.7) > eps {
		t.Errorf("Expected track score 0.7, got %f", track.GetTrackScore())
	}
	if track.GetLabel() != 2 {
		t.Errorf("Expected label 2, got %d", track.GetLabel())
	}
}

func TestTrackResult(t *testing.T) {
	classNames := []string{"requin", "poisson"}
	track := NewTrack(1, []float64{0.0, 1.0}, NewBox(1, 3, 2, 10), 7)

	result := track.Result(classNames)
	if result.Label != "poisson" || result.ID != 1 || result.Score != 1.0 {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(result.FrameToBox) != 1 || result.FrameToBox[7] != NewBox(1, 3, 2, 10) {
		t.Errorf("Unexpected boxes %v", result.FrameToBox)
	}

	track.AddDetection([]float64{0.0, 0.8}, NewBox(1.00004, 4, 5, 10), 8)
	result = track.Result(classNames)
	if result.Label != "poisson" {
		t.Errorf("Expected label poisson, got %s", result.Label)
	}
	if math.Abs(result.Score-0.9) > eps {
		t.Errorf("Expected score 0.9, got %f", result.Score)
	}
	if len(result.FrameToBox) != 2 {
		t.Fatalf("Expected 2 boxes, got %d", len(result.FrameToBox))
	}
	if result.FrameToBox[7] != NewBox(1, 3, 2, 10) || result.FrameToBox[8] != NewBox(1.0, 4, 5, 10) {
		t.Errorf("Unexpected rounded boxes %v", result.FrameToBox)
	}
}

func TestTrackResultRoundTrip(t *testing.T) {
	track := NewTrack(0, []float64{1}, NewBox(0.111, 0.222, 0.333, 0.444), 2)
	frames := []int{3, 5, 8, 13}
	for _, frame := range frames {
		track.AddDetection([]float64{1}, NewBox(0.111, 0.222, 0.333, 0.444), frame)
	}
	result := track.Result([]string{"fragments"})
	if len(result.FrameToBox) != len(frames)+1 {
		t.Fatalf("Expected %d boxes, got %d", len(frames)+1, len(result.FrameToBox))
	}
	for _, frame := range append([]int{2}, frames...) {
		box, ok := result.FrameToBox[frame]
		if !ok {
			t.Errorf("Missing frame %d", frame)
			continue
		}
		if box != NewBox(0.11, 0.22, 0.33, 0.44) {
			t.Errorf("Frame %d: expected box rounded to 2 decimals, got %v", frame, box)
		}
	}
}

func TestTrackSpeed(t *testing.T) {
	track := NewTrack(0, []float64{1}, NewBox(0.1, 0.1, 0.2, 0.2), 0)
	track.AddDetection([]float64{1}, NewBox(0.2, 0.1, 0.3, 0.2), 2)
	if _, ok := track.GetSpeed(); ok {
		t.Error("Speed should be unknown with 2 detections")
	}
	track.AddDetection([]float64{1}, NewBox(0.3, 0.1, 0.4, 0.2), 4)
	speed, ok := track.GetSpeed()
	if !ok {
		t.Fatal("Speed should be known with 3 detections")
	}
	correctSpeed := [4]float64{0.05, 0, 0.05, 0}
	if !boxesAlmostEqual(Box(speed), Box(correctSpeed)) {
		t.Errorf("Expected speed %v, got %v", correctSpeed, speed)
	}
}

func TestTrackSpeedIsSymmetrized(t *testing.T) {
	// Box grows: x1 moves left, x2 moves right. Only translation is kept.
	track := NewTrack(0, []float64{1}, NewBox(0.4, 0.4, 0.5, 0.5), 0)
	track.AddDetection([]float64{1}, NewBox(0.39, 0.4, 0.53, 0.52), 1)
	track.AddDetection([]float64{1}, NewBox(0.38, 0.4, 0.56, 0.54), 2)
	speed, _ := track.GetSpeed()
	correctSpeed := [4]float64{0.01, 0.01, 0.01, 0.01}
	if !boxesAlmostEqual(Box(speed), Box(correctSpeed)) {
		t.Errorf("Expected speed %v, got %v", correctSpeed, speed)
	}
}

func TestTrackLatestDetection(t *testing.T) {
	track := NewTrack(0, []float64{0.3, 0.7}, NewBox(0.1, 0.1, 0.2, 0.2), 0)
	track.AddDetection([]float64{0.4, 0.6}, NewBox(0.2, 0.1, 0.3, 0.2), 1)

	// No speed yet: projection is the last box
	detection := track.GetLatestDetection(true, 5)
	if detection.Box != NewBox(0.2, 0.1, 0.3, 0.2) || detection.Frame != 1 {
		t.Errorf("Unexpected detection %+v", detection)
	}

	track.AddDetection([]float64{0.5, 0.5}, NewBox(0.3, 0.1, 0.4, 0.2), 2)
	detection = track.GetLatestDetection(false, 3)
	if detection.Box != NewBox(0.3, 0.1, 0.4, 0.2) {
		t.Errorf("Expected last box without speed, got %v", detection.Box)
	}
	if detection.Frame != 2 || detection.Scores[0] != 0.5 {
		t.Errorf("Expected last scores and frame, got %+v", detection)
	}

	detection = track.GetLatestDetection(true, 3)
	if !boxesAlmostEqual(detection.Box, NewBox(0.4, 0.1, 0.5, 0.2)) {
		t.Errorf("Expected box shifted by one frame, got %v", detection.Box)
	}
	if detection.Frame != 2 {
		t.Errorf("Projected detection keeps the last frame, got %d", detection.Frame)
	}

	// Far projection is clamped to normalized coordinates
	detection = track.GetLatestDetection(true, 20)
	if !boxesAlmostEqual(detection.Box, NewBox(1, 0.1, 1, 0.2)) {
		t.Errorf("Expected clamped box, got %v", detection.Box)
	}
}

func TestTrackPixelProjection(t *testing.T) {
	p := projection{motion: MotionLinear, coordinates: CoordinatesPixel}
	track := newTrackWithProjection(0, []float64{1}, NewBox(100, 100, 200, 200), 0, p)
	track.AddDetection([]float64{1}, NewBox(110, 100, 210, 200), 1)
	track.AddDetection([]float64{1}, NewBox(120, 100, 220, 200), 2)
	detection := track.GetLatestDetection(true, 4)
	if !boxesAlmostEqual(detection.Box, NewBox(140, 100, 240, 200)) {
		t.Errorf("Pixel boxes must not be clamped to [0, 1], got %v", detection.Box)
	}

	p.maxX, p.maxY = 230, 480
	track.projection = p
	detection = track.GetLatestDetection(true, 4)
	if !boxesAlmostEqual(detection.Box, NewBox(140, 100, 230, 200)) {
		t.Errorf("Expected box clamped to frame width, got %v", detection.Box)
	}
}

func TestTrackInRangeAndValid(t *testing.T) {
	track := NewTrack(0, []float64{1}, NewBox(0.1, 0.1, 0.2, 0.2), 3)
	if !track.IsInRange(5, 2) {
		t.Error("Frame 5 is within 2 frames of frame 3")
	}
	if track.IsInRange(6, 2) {
		t.Error("Frame 6 is not within 2 frames of frame 3")
	}
	if track.IsValid(2) {
		t.Error("Single detection track is not valid for min length 2")
	}
	track.AddDetection([]float64{1}, NewBox(0.1, 0.1, 0.2, 0.2), 4)
	if !track.IsValid(2) {
		t.Error("Two detections track is valid for min length 2")
	}
}

func TestTrackHasValidSpeed(t *testing.T) {
	track := NewTrack(0, []float64{1}, NewBox(0.1, 0.1, 0.2, 0.2), 0)
	if track.HasValidSpeed([2]float64{0.1, 0}) {
		t.Error("Track without speed has no valid speed")
	}
	track.AddDetection([]float64{1}, NewBox(0.2, 0.1, 0.3, 0.2), 1)
	track.AddDetection([]float64{1}, NewBox(0.3, 0.1, 0.4, 0.2), 2)
	if !track.HasValidSpeed([2]float64{0.1, 0.05}) {
		t.Error("Track moves along the reference speed")
	}
	if track.HasValidSpeed([2]float64{-0.1, 0}) {
		t.Error("Track moves against the reference speed")
	}
	if track.HasValidSpeed([2]float64{0, 0.1}) {
		t.Error("Orthogonal motion is not a valid speed")
	}
}

func TestTrackLabelTie(t *testing.T) {
	track := NewTrack(0, []float64{0.5, 0.5, 0.0}, NewBox(0, 0, 1, 1), 0)
	if track.GetLabel() != 1 {
		t.Errorf("Ties resolve to the lowest class, got label %d", track.GetLabel())
	}
}

func TestTrackCompatibility(t *testing.T) {
	box := NewBox(0.56, 0.38, 0.6, 0.41)
	first := NewTrack(0, []float64{0.2, 0.8}, box, 0)
	first.AddDetection([]float64{0.2, 0.8}, box, 1)
	second := NewTrack(1, []float64{0.2, 0.8}, box, 3)

	// frame term: (1-1-3)/3, a bonus for the 2 missing frames
	correctAnswer := 1.0 + 0.2
	if answer := first.Compatibility(second); math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Expected compatibility %f, got %f", correctAnswer, answer)
	}
	if answer := second.Compatibility(first); answer != -1.0 {
		t.Errorf("Later track is not compatible with an earlier one, got %f", answer)
	}
	if answer := first.Compatibility(first); answer != -1.0 {
		t.Errorf("Track is not compatible with itself, got %f", answer)
	}
}

func TestTrackCompatibilityUsesAverageScores(t *testing.T) {
	box := NewBox(0.56, 0.38, 0.6, 0.41)
	first := NewTrack(0, []float64{1.0, 0.0}, box, 0)
	first.AddDetection([]float64{0.0, 1.0}, box, 1)
	second := NewTrack(1, []float64{0.5, 0.5}, box, 2)
	// Only the frame term (1-1-2)/3 remains
	correctAnswer := 1.0 + 0.2*2.0/3.0
	if answer := first.Compatibility(second); math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Average scores of both tracks are equal, expected %f, got %f", correctAnswer, answer)
	}
}

func TestTrackCompatibilityGrowsWithGap(t *testing.T) {
	box := NewBox(0.1, 0.1, 0.2, 0.2)
	first := NewTrack(0, []float64{1}, box, 0)
	near := NewTrack(1, []float64{1}, box, 2)
	far := NewTrack(2, []float64{1}, box, 8)
	if first.Compatibility(far) <= first.Compatibility(near) {
		t.Errorf("Expected longer gap to score higher, got %f (gap 8) and %f (gap 2)", first.Compatibility(far), first.Compatibility(near))
	}
}

func TestTrackContainsSubtrack(t *testing.T) {
	gt := NewTrack(0, []float64{0, 1}, NewBox(0.1, 0.3, 0.2, 0.4), 0)
	for frame := 1; frame < 10; frame++ {
		gt.AddDetection([]float64{0, 1}, NewBox(0.1, 0.3, 0.2, 0.4), frame)
	}

	part := NewTrack(1, []float64{0.2, 0.8}, NewBox(0.11, 0.31, 0.21, 0.41), 4)
	part.AddDetection([]float64{0.2, 0.8}, NewBox(0.11, 0.31, 0.21, 0.41), 5)
	if !gt.ContainsSubtrack(part) {
		t.Error("Expected subtrack to be contained")
	}

	otherLabel := NewTrack(2, []float64{0.9, 0.1}, NewBox(0.1, 0.3, 0.2, 0.4), 4)
	if gt.ContainsSubtrack(otherLabel) {
		t.Error("Subtrack with another label is not contained")
	}

	farAway := NewTrack(3, []float64{0, 1}, NewBox(0.5, 0.3, 0.6, 0.4), 4)
	if gt.ContainsSubtrack(farAway) {
		t.Error("Subtrack far away is not contained")
	}

	// 1 matching frame out of 5 is exactly 0.2, which is not enough
	mostlyOutside := NewTrack(4, []float64{0, 1}, NewBox(0.1, 0.3, 0.2, 0.4), 9)
	for frame := 10; frame < 14; frame++ {
		mostlyOutside.AddDetection([]float64{0, 1}, NewBox(0.1, 0.3, 0.2, 0.4), frame)
	}
	if gt.ContainsSubtrack(mostlyOutside) {
		t.Error("Subtrack mostly outside of the track is not contained")
	}
}

func TestTrackAppendTrack(t *testing.T) {
	first := NewTrack(0, []float64{1, 0}, NewBox(0.1, 0.1, 0.2, 0.2), 0)
	first.AddDetection([]float64{1, 0}, NewBox(0.11, 0.1, 0.21, 0.2), 1)
	second := NewTrack(5, []float64{0, 1}, NewBox(0.13, 0.1, 0.23, 0.2), 3)
	second.AddDetection([]float64{0, 1}, NewBox(0.14, 0.1, 0.24, 0.2), 4)

	first.AppendTrack(second)
	if first.GetID() != 0 {
		t.Errorf("Merged track keeps its id, got %d", first.GetID())
	}
	correctFrames := []int{0, 1, 3, 4}
	frames := first.GetFrames()
	if len(frames) != len(correctFrames) {
		t.Fatalf("Expected frames %v, got %v", correctFrames, frames)
	}
	for i := range frames {
		if frames[i] != correctFrames[i] {
			t.Errorf("Expected frames %v, got %v", correctFrames, frames)
			break
		}
	}
	if len(first.GetScores()) != 4 || len(first.GetBoxes()) != 4 {
		t.Errorf("Scores and boxes must follow frames, got %d and %d", len(first.GetScores()), len(first.GetBoxes()))
	}
	if _, ok := first.GetSpeed(); !ok {
		t.Error("Speed should be recomputed after merge")
	}
	if math.Abs(first.GetTrackScore()-0.5) > eps {
		t.Errorf("Expected track score 0.5, got %f", first.GetTrackScore())
	}
}

func TestTrackString(t *testing.T) {
	track := NewTrack(4, []float64{0, 1}, NewBox(0.1, 0.2, 0.3, 0.4), 2)
	correctAnswer := "(id:4, label:2, center:(0.2,0.3), frames:[2])"
	if answer := track.String(); answer != correctAnswer {
		t.Errorf("Expected %s, got %s", correctAnswer, answer)
	}
}
