package mot

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// FrameDetections is the detector output for one frame: one box and one class-score vector per detection
type FrameDetections struct {
	Boxes  []Box
	Scores [][]float64
}

// Len returns number of detections on the frame
func (fd FrameDetections) Len() int {
	if len(fd.Boxes) < len(fd.Scores) {
		return len(fd.Boxes)
	}
	return len(fd.Scores)
}

// Keys of a detector record. Serving outputs use the tensor names.
var (
	boxesKeys  = []string{"boxes", "output/boxes:0"}
	scoresKeys = []string{"scores", "output/scores:0"}
	labelsKeys = []string{"labels", "output/labels:0"}
)

// errMalformedRecord marks a frame record which is treated as having no detections
var errMalformedRecord = errors.New("malformed detection record")

// ParseFrames parses a JSON array of per-frame detector records.
// Records that can't be interpreted are logged and replaced by empty frames.
// numClasses is the number of foreground classes, used to expand single-label scores into class vectors.
func ParseFrames(raw []byte, numClasses int, logger logrus.FieldLogger) ([]FrameDetections, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("detections are not valid JSON")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return nil, errors.New("detections must be a JSON array of per-frame records")
	}
	records := parsed.Array()
	frames := make([]FrameDetections, len(records))
	for i, record := range records {
		fd, err := ParseFrame(record, numClasses)
		if err != nil {
			logger.WithError(err).WithField("frame", i).Warn("Treating frame as empty")
			continue
		}
		frames[i] = fd
	}
	return frames, nil
}

// ParseFrame parses a single detector record. A record without boxes is an empty frame.
// Scores are either one vector per box over all foreground classes,
// or one score per box together with 1-based labels.
func ParseFrame(record gjson.Result, numClasses int) (FrameDetections, error) {
	fd := FrameDetections{}
	boxesResult := lookup(record, boxesKeys)
	if !boxesResult.Exists() || len(boxesResult.Array()) == 0 {
		return fd, nil
	}
	for _, boxResult := range boxesResult.Array() {
		coords := boxResult.Array()
		if len(coords) != 4 {
			return FrameDetections{}, errors.Wrapf(errMalformedRecord, "box must have 4 coordinates, got %d", len(coords))
		}
		fd.Boxes = append(fd.Boxes, Box{coords[0].Float(), coords[1].Float(), coords[2].Float(), coords[3].Float()})
	}

	scoresResult := lookup(record, scoresKeys).Array()
	if len(scoresResult) != len(fd.Boxes) {
		return FrameDetections{}, errors.Wrapf(errMalformedRecord, "%d boxes but %d scores", len(fd.Boxes), len(scoresResult))
	}
	if scoresResult[0].IsArray() {
		for _, vector := range scoresResult {
			values := vector.Array()
			if !vector.IsArray() || len(values) != numClasses {
				return FrameDetections{}, errors.Wrapf(errMalformedRecord, "score vector must have %d classes, got %s", numClasses, vector.Raw)
			}
			scores := make([]float64, len(values))
			for j, v := range values {
				scores[j] = v.Float()
			}
			fd.Scores = append(fd.Scores, scores)
		}
		return fd, nil
	}

	labelsResult := lookup(record, labelsKeys).Array()
	if len(labelsResult) == 0 && numClasses == 1 {
		for _, score := range scoresResult {
			fd.Scores = append(fd.Scores, []float64{score.Float()})
		}
		return fd, nil
	}
	if len(labelsResult) != len(fd.Boxes) {
		return FrameDetections{}, errors.Wrapf(errMalformedRecord, "single-label scores need one label per box, got %d labels for %d boxes", len(labelsResult), len(fd.Boxes))
	}
	for j, score := range scoresResult {
		label := int(labelsResult[j].Int())
		if label < 1 || label > numClasses {
			return FrameDetections{}, errors.Wrapf(errMalformedRecord, "label %d out of range [1, %d]", label, numClasses)
		}
		scores := make([]float64, numClasses)
		scores[label-1] = score.Float()
		fd.Scores = append(fd.Scores, scores)
	}
	return fd, nil
}

// lookup returns value of the first present key. Keys are matched literally, not as gjson paths.
func lookup(record gjson.Result, keys []string) gjson.Result {
	fields := record.Map()
	for _, key := range keys {
		if value, ok := fields[key]; ok {
			return value
		}
	}
	return gjson.Result{}
}
