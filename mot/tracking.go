package mot

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrScoreLengthMismatch is returned when a class-score vector does not cover every configured class
var ErrScoreLengthMismatch = errors.New("class scores length does not match number of classes")

// Run tracks objects over the detector outputs of one video.
// It is not safe for concurrent use; independent videos are tracked by independent runs.
type Run struct {
	// Identifier of this tracking run
	RunID uuid.UUID
	// Identifier of the video
	VideoID string
	// Detector output of each frame, index is the frame index
	Frames []FrameDetections
	// Frames per second of the sampled video
	FPS float64
	// Number of frames in the video. Defaults to len(Frames)
	NumFrames int

	cfg    Config
	logger logrus.FieldLogger
}

// RunOption configures a Run
type RunOption func(*Run)

// WithLogger sets logger of the run. Default is the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) RunOption {
	return func(run *Run) {
		run.logger = logger
	}
}

// WithFrameCount sets number of frames of the video when it differs from number of detector records
func WithFrameCount(numFrames int) RunOption {
	return func(run *Run) {
		run.NumFrames = numFrames
	}
}

// WithRunID sets identifier of the run instead of a random one
func WithRunID(id uuid.UUID) RunOption {
	return func(run *Run) {
		run.RunID = id
	}
}

// NewRun creates a tracking run for one video
func NewRun(videoID string, frames []FrameDetections, fps float64, cfg Config, options ...RunOption) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	run := &Run{
		RunID:     uuid.New(),
		VideoID:   videoID,
		Frames:    frames,
		FPS:       fps,
		NumFrames: len(frames),
		cfg:       cfg,
		logger:    logrus.StandardLogger(),
	}
	for _, option := range options {
		option(run)
	}
	run.logger = run.logger.WithFields(logrus.Fields{
		"run_id":   run.RunID.String(),
		"video_id": run.VideoID,
	})
	return run, nil
}

// Config returns configuration of the run
func (run *Run) Config() Config {
	return run.cfg
}

// ComputeTracks computes tracks from detections on successive frames:
// tracklets are built frame by frame, filtered by motion consistency, stitched and filtered by length.
// Frames whose box and score counts differ are treated as empty.
func (run *Run) ComputeTracks() ([]*Track, error) {
	frames, err := run.validFrames()
	if err != nil {
		return nil, err
	}
	cfg := run.cfg
	tracklets := buildTracklets(frames, cfg.TimeWindow, cfg.MatchThreshold, cfg.Matching, cfg.projection())
	run.logger.WithField("tracklets", len(tracklets)).Debug("Built tracklets")

	averageSpeed, _ := AverageSpeed(tracklets)
	filtered := FilterBySpeed(tracklets, averageSpeed, cfg.MotionFilterThreshold)
	if dropped := len(tracklets) - len(filtered); dropped > 0 {
		run.logger.WithFields(logrus.Fields{
			"dropped": dropped,
			"vx":      averageSpeed[0],
			"vy":      averageSpeed[1],
		}).Debug("Filtered tracklets moving against average speed")
	}

	tracks := matchTracklets(filtered, cfg.StitchThreshold, cfg.Matching)
	tracks = FilterByLength(tracks, cfg.MinTrackLength)
	run.logger.WithFields(logrus.Fields{
		"frames":    len(run.Frames),
		"tracklets": len(tracklets),
		"tracks":    len(tracks),
	}).Info("Computed tracks")
	return tracks, nil
}

// validFrames returns frames of the run with malformed ones (box and score counts differ) replaced by empty frames.
// Score vectors must cover every class.
func (run *Run) validFrames() ([]FrameDetections, error) {
	numClasses := len(run.cfg.ClassNames)
	frames := make([]FrameDetections, len(run.Frames))
	for frameIdx, fd := range run.Frames {
		if len(fd.Boxes) != len(fd.Scores) {
			run.logger.WithFields(logrus.Fields{
				"frame":  frameIdx,
				"boxes":  len(fd.Boxes),
				"scores": len(fd.Scores),
			}).Warn("Treating frame as empty")
			continue
		}
		for i, scores := range fd.Scores {
			if len(scores) != numClasses {
				return nil, errors.Wrapf(ErrScoreLengthMismatch, "frame %d, detection %d: got %d scores for %d classes", frameIdx, i, len(scores), numClasses)
			}
		}
		frames[frameIdx] = fd
	}
	return frames, nil
}

// Result packages tracks into the output record of the video
func (run *Run) Result(tracks []*Track) Result {
	detected := make([]TrackResult, len(tracks))
	for i, track := range tracks {
		detected[i] = track.Result(run.cfg.ClassNames)
	}
	return Result{
		VideoLength:   run.NumFrames,
		FPS:           run.FPS,
		VideoID:       run.VideoID,
		DetectedTrash: detected,
	}
}
