package mot

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseFrames(t *testing.T) {
	raw := []byte(`[
		{"boxes": [[0.56, 0.38, 0.6, 0.41]], "scores": [[0.81, 0.19, 0.0]]},
		{},
		{"output/boxes:0": [[0.1, 0.1, 0.2, 0.2], [0.5, 0.5, 0.6, 0.6]], "output/scores:0": [0.9, 0.6], "output/labels:0": [3, 1]},
		{"boxes": [], "scores": []}
	]`)
	logger, hook := test.NewNullLogger()
	frames, err := ParseFrames(raw, 3, logger)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	assert.Empty(t, hook.AllEntries())

	assert.Equal(t, []Box{NewBox(0.56, 0.38, 0.6, 0.41)}, frames[0].Boxes)
	assert.Equal(t, [][]float64{{0.81, 0.19, 0.0}}, frames[0].Scores)
	assert.Equal(t, 0, frames[1].Len())
	assert.Equal(t, 2, frames[2].Len())
	assert.Equal(t, [][]float64{{0, 0, 0.9}, {0.6, 0, 0}}, frames[2].Scores)
	assert.Equal(t, 0, frames[3].Len())
}

func TestParseFramesMalformedRecords(t *testing.T) {
	raw := []byte(`[
		{"boxes": [[0.1, 0.1, 0.2]], "scores": [[1, 0]]},
		{"boxes": [[0.1, 0.1, 0.2, 0.2]], "scores": [[1, 0], [0, 1]]},
		{"boxes": [[0.1, 0.1, 0.2, 0.2]], "scores": [0.9], "labels": [7]},
		{"boxes": [[0.1, 0.1, 0.2, 0.2]], "scores": [0.9]},
		{"boxes": [[0.1, 0.1, 0.2, 0.2]], "scores": [[0.3, 0.3, 0.4]]},
		{"boxes": [[0.1, 0.1, 0.2, 0.2]], "scores": [[0.3, 0.7]]}
	]`)
	logger, hook := test.NewNullLogger()
	frames, err := ParseFrames(raw, 2, logger)
	require.NoError(t, err)
	require.Len(t, frames, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, frames[i].Len(), "frame %d should be empty", i)
	}
	assert.Equal(t, 1, frames[5].Len())

	entries := hook.AllEntries()
	require.Len(t, entries, 5)
	for i, entry := range entries {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, i, entry.Data["frame"])
		assert.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), errMalformedRecord)
	}
}

func TestParseFramesInvalidInput(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := ParseFrames([]byte(`[{"boxes": `), 3, logger)
	assert.Error(t, err)
	_, err = ParseFrames([]byte(`{"boxes": []}`), 3, logger)
	assert.Error(t, err)
	frames, err := ParseFrames([]byte(`[]`), 3, logger)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestParseFrameSingleClass(t *testing.T) {
	record := gjson.Parse(`{"boxes": [[0.56, 0.38, 0.6, 0.41]], "scores": [0.81]}`)
	fd, err := ParseFrame(record, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.81}}, fd.Scores)
}

func TestParseFrameKeysAreLiteral(t *testing.T) {
	// Slash and colon in the key must not be interpreted as a path
	record := gjson.Parse(`{"output/boxes:0": [[1, 2, 3, 4]], "output/scores:0": [[1]]}`)
	fd, err := ParseFrame(record, 1)
	require.NoError(t, err)
	assert.Equal(t, []Box{{1, 2, 3, 4}}, fd.Boxes)
}
