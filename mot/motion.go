package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// MotionModel is for the way a track is extrapolated to a future frame
type MotionModel uint16

const (
	// MotionLinear shifts the last box by the estimated constant speed
	MotionLinear MotionModel = iota
	// MotionKalman replays the track through an 8-D Kalman filter [cx, cy, w, h, vx, vy, vw, vh]
	// and predicts forward. Tracks with a single detection fall back to MotionLinear.
	MotionKalman
)

var motionModelNames = map[MotionModel]string{
	MotionLinear: "linear",
	MotionKalman: "kalman",
}

func (m MotionModel) String() string {
	return motionModelNames[m]
}

// MarshalText implements encoding.TextMarshaler
func (m MotionModel) MarshalText() ([]byte, error) {
	name, ok := motionModelNames[m]
	if !ok {
		return nil, errors.Errorf("unknown motion model %d", m)
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *MotionModel) UnmarshalText(text []byte) error {
	for k, v := range motionModelNames {
		if v == string(text) {
			*m = k
			return nil
		}
	}
	return errors.Errorf("unknown motion model %q", text)
}

// Kalman filter props. Process noise is tuned for normalized coordinates; the filter has no control input.
var (
	kalmanStdDevA  = 0.01
	kalmanStdDevMC = 0.01
	kalmanStdDevMS = 0.01
)

// kalmanProject replays boxes observed on frames through a Kalman filter
// and predicts the box on targetFrame.
func kalmanProject(boxes []Box, frames []int, targetFrame int) (Box, error) {
	first := boxes[0]
	kf := kalman_filter.NewKalmanBBox(
		1.0, 0.0, 0.0, 0.0, 0.0,
		kalmanStdDevA, kalmanStdDevMC, kalmanStdDevMC, kalmanStdDevMS, kalmanStdDevMS,
		kalman_filter.WithStateBBox(Center(first).X, Center(first).Y, first.Width(), first.Height()),
	)
	for i := 1; i < len(boxes); i++ {
		for step := frames[i-1]; step < frames[i]; step++ {
			kf.Predict()
		}
		center := Center(boxes[i])
		err := kf.Update(center.X, center.Y, boxes[i].Width(), boxes[i].Height())
		if err != nil {
			return Box{}, errors.Wrapf(err, "can't update kalman filter on frame %d", frames[i])
		}
	}
	for step := frames[len(frames)-1]; step < targetFrame; step++ {
		kf.Predict()
	}
	cx, cy, w, h := kf.GetState()
	return Box{cx - w/2.0, cy - h/2.0, cx + w/2.0, cy + h/2.0}, nil
}
