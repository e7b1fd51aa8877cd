package mot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned by Config.Validate
var ErrInvalidConfig = errors.New("invalid tracking configuration")

// DefaultClassNames are the foreground classes of the trash detector, background excluded
var DefaultClassNames = []string{"bottles", "others", "fragments"}

// BackgroundClassName is prepended to class names so that 1-based labels index them directly
const BackgroundClassName = "BG"

// CoordinateSpace tells how projected boxes are clamped
type CoordinateSpace uint16

const (
	// CoordinatesNormalized clamps projected boxes to [0, 1]
	CoordinatesNormalized CoordinateSpace = iota
	// CoordinatesPixel clamps projected boxes to the frame size when it is known
	CoordinatesPixel
)

var coordinateSpaceNames = map[CoordinateSpace]string{
	CoordinatesNormalized: "normalized",
	CoordinatesPixel:      "pixel",
}

func (c CoordinateSpace) String() string {
	return coordinateSpaceNames[c]
}

// MarshalText implements encoding.TextMarshaler
func (c CoordinateSpace) MarshalText() ([]byte, error) {
	name, ok := coordinateSpaceNames[c]
	if !ok {
		return nil, errors.Errorf("unknown coordinate space %d", c)
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *CoordinateSpace) UnmarshalText(text []byte) error {
	for k, v := range coordinateSpaceNames {
		if v == string(text) {
			*c = k
			return nil
		}
	}
	return errors.Errorf("unknown coordinate space %q", text)
}

// Config holds tracking parameters. It is passed by value and never mutated by the tracker.
type Config struct {
	// Ordered foreground class names (background excluded)
	ClassNames []string `json:"class_names"`
	// Number of frames to look back when matching detections to tracklets
	TimeWindow int `json:"time_window"`
	// Minimum similarity for a detection to extend a tracklet
	MatchThreshold float64 `json:"match_threshold"`
	// Minimum compatibility for two tracklets to be stitched
	StitchThreshold float64 `json:"stitch_threshold"`
	// Tracks with fewer detections are dropped
	MinTrackLength int `json:"min_track_length"`
	// Motion consistency filter is applied only when the average speed norm exceeds this value
	MotionFilterThreshold float64 `json:"motion_filter_threshold"`
	// How projected boxes are clamped
	Coordinates CoordinateSpace `json:"coordinates"`
	// Frame size, used to clamp projections in pixel space. Zero disables clamping.
	FrameWidth  float64 `json:"frame_width,omitempty"`
	FrameHeight float64 `json:"frame_height,omitempty"`
	// Motion model used to project a track onto a future frame
	Motion MotionModel `json:"motion"`
	// Assignment algorithm for both matching stages
	Matching MatchingAlgorithm `json:"matching"`
}

// DefaultConfig returns default tracking parameters
func DefaultConfig() Config {
	classNames := make([]string, len(DefaultClassNames))
	copy(classNames, DefaultClassNames)
	return Config{
		ClassNames:            classNames,
		TimeWindow:            2,
		MatchThreshold:        0.5,
		StitchThreshold:       0.5,
		MinTrackLength:        2,
		MotionFilterThreshold: 0.05,
		Coordinates:           CoordinatesNormalized,
		Motion:                MotionLinear,
		Matching:              MatchingAlgorithmGreedy,
	}
}

// LoadConfig reads JSON file on top of DefaultConfig, so partial files are allowed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, errors.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "can't read config file")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "can't parse config file %s", cleanPath)
	}
	return cfg, cfg.Validate()
}

// Validate checks parameter ranges
func (cfg Config) Validate() error {
	if len(cfg.ClassNames) == 0 {
		return errors.Wrap(ErrInvalidConfig, "class_names must not be empty")
	}
	if cfg.TimeWindow < 1 {
		return errors.Wrapf(ErrInvalidConfig, "time_window must be positive, got %d", cfg.TimeWindow)
	}
	if cfg.MatchThreshold <= -1 || cfg.StitchThreshold <= -1 {
		return errors.Wrapf(ErrInvalidConfig, "thresholds must be greater than -1, got %f and %f", cfg.MatchThreshold, cfg.StitchThreshold)
	}
	if cfg.MinTrackLength < 1 {
		return errors.Wrapf(ErrInvalidConfig, "min_track_length must be positive, got %d", cfg.MinTrackLength)
	}
	if cfg.MotionFilterThreshold < 0 {
		return errors.Wrapf(ErrInvalidConfig, "motion_filter_threshold must not be negative, got %f", cfg.MotionFilterThreshold)
	}
	if _, ok := coordinateSpaceNames[cfg.Coordinates]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "unknown coordinate space %d", cfg.Coordinates)
	}
	if _, ok := motionModelNames[cfg.Motion]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "unknown motion model %d", cfg.Motion)
	}
	if _, ok := matchingAlgorithmNames[cfg.Matching]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "unknown matching algorithm %d", cfg.Matching)
	}
	return nil
}

// projection describes how a track is extrapolated to a future frame
type projection struct {
	motion      MotionModel
	coordinates CoordinateSpace
	maxX, maxY  float64
}

func (cfg Config) projection() projection {
	return projection{
		motion:      cfg.Motion,
		coordinates: cfg.Coordinates,
		maxX:        cfg.FrameWidth,
		maxY:        cfg.FrameHeight,
	}
}

// clamp applies coordinate space bounds to a projected box
func (p projection) clamp(box Box) Box {
	switch p.coordinates {
	case CoordinatesPixel:
		if p.maxX > 0 && p.maxY > 0 {
			return box.ClampXY(p.maxX, p.maxY)
		}
		return box
	default:
		return box.Clamp(0.0, 1.0)
	}
}

// defaultProjection is the linear, normalized projection
var defaultProjection = projection{motion: MotionLinear, coordinates: CoordinatesNormalized}
