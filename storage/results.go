package storage

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/surfriderfoundationeurope/mot-go/mot"
)

// ErrNotFound is returned when a run is not stored
var ErrNotFound = errors.New("run not found")

// RunInfo describes a stored tracking run
type RunInfo struct {
	RunID       uuid.UUID
	VideoID     string
	FPS         float64
	VideoLength int
	NumTracks   int
	CreatedAt   time.Time
}

// SaveResult stores tracking result of a run. Saving the same run twice is an error.
func (store *Store) SaveResult(ctx context.Context, runID uuid.UUID, result mot.Result) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, video_id, fps, video_length, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID.String(), result.VideoID, result.FPS, result.VideoLength, time.Now().UTC().Unix(),
	)
	if err != nil {
		return errors.Wrapf(err, "can't insert run %s", runID)
	}

	trackStmt, err := tx.PrepareContext(ctx, `INSERT INTO tracks (run_id, track_id, position, label, score) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "can't prepare tracks insert")
	}
	defer trackStmt.Close()
	boxStmt, err := tx.PrepareContext(ctx, `INSERT INTO track_boxes (run_id, track_id, frame, x1, y1, x2, y2) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "can't prepare boxes insert")
	}
	defer boxStmt.Close()

	for position, track := range result.DetectedTrash {
		if _, err := trackStmt.ExecContext(ctx, runID.String(), track.ID, position, track.Label, track.Score); err != nil {
			return errors.Wrapf(err, "can't insert track %d", track.ID)
		}
		frames := make([]int, 0, len(track.FrameToBox))
		for frame := range track.FrameToBox {
			frames = append(frames, frame)
		}
		sort.Ints(frames)
		for _, frame := range frames {
			box := track.FrameToBox[frame]
			if _, err := boxStmt.ExecContext(ctx, runID.String(), track.ID, frame, box[0], box[1], box[2], box[3]); err != nil {
				return errors.Wrapf(err, "can't insert box of track %d on frame %d", track.ID, frame)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "can't commit result")
	}
	store.logger.WithFields(logrus.Fields{
		"run_id":   runID.String(),
		"video_id": result.VideoID,
		"tracks":   len(result.DetectedTrash),
	}).Debug("Saved tracking result")
	return nil
}

// LoadResult reads tracking result of a run. Tracks come back in the order they were saved.
func (store *Store) LoadResult(ctx context.Context, runID uuid.UUID) (mot.Result, error) {
	result := mot.Result{DetectedTrash: []mot.TrackResult{}}
	err := store.db.QueryRowContext(ctx,
		`SELECT video_id, fps, video_length FROM runs WHERE run_id = ?`, runID.String(),
	).Scan(&result.VideoID, &result.FPS, &result.VideoLength)
	if errors.Is(err, sql.ErrNoRows) {
		return mot.Result{}, errors.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return mot.Result{}, errors.Wrapf(err, "can't read run %s", runID)
	}

	rows, err := store.db.QueryContext(ctx,
		`SELECT track_id, label, score FROM tracks WHERE run_id = ? ORDER BY position`, runID.String(),
	)
	if err != nil {
		return mot.Result{}, errors.Wrap(err, "can't query tracks")
	}
	positions := make(map[int]int)
	for rows.Next() {
		track := mot.TrackResult{FrameToBox: make(map[int]mot.Box)}
		if err := rows.Scan(&track.ID, &track.Label, &track.Score); err != nil {
			rows.Close()
			return mot.Result{}, errors.Wrap(err, "can't scan track")
		}
		positions[track.ID] = len(result.DetectedTrash)
		result.DetectedTrash = append(result.DetectedTrash, track)
	}
	if err := rows.Close(); err != nil {
		return mot.Result{}, errors.Wrap(err, "can't read tracks")
	}
	if err := rows.Err(); err != nil {
		return mot.Result{}, errors.Wrap(err, "can't read tracks")
	}

	boxRows, err := store.db.QueryContext(ctx,
		`SELECT track_id, frame, x1, y1, x2, y2 FROM track_boxes WHERE run_id = ?`, runID.String(),
	)
	if err != nil {
		return mot.Result{}, errors.Wrap(err, "can't query boxes")
	}
	defer boxRows.Close()
	for boxRows.Next() {
		var trackID, frame int
		var box mot.Box
		if err := boxRows.Scan(&trackID, &frame, &box[0], &box[1], &box[2], &box[3]); err != nil {
			return mot.Result{}, errors.Wrap(err, "can't scan box")
		}
		position, ok := positions[trackID]
		if !ok {
			continue
		}
		result.DetectedTrash[position].FrameToBox[frame] = box
	}
	if err := boxRows.Err(); err != nil {
		return mot.Result{}, errors.Wrap(err, "can't read boxes")
	}
	return result, nil
}

// ListRuns returns stored runs of a video, newest first. Empty videoID lists every run.
func (store *Store) ListRuns(ctx context.Context, videoID string) ([]RunInfo, error) {
	query := `SELECT r.run_id, r.video_id, r.fps, r.video_length, r.created_at,
		(SELECT COUNT(*) FROM tracks t WHERE t.run_id = r.run_id)
		FROM runs r`
	args := []interface{}{}
	if videoID != "" {
		query += ` WHERE r.video_id = ?`
		args = append(args, videoID)
	}
	query += ` ORDER BY r.created_at DESC, r.run_id`
	rows, err := store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "can't query runs")
	}
	defer rows.Close()
	runs := make([]RunInfo, 0)
	for rows.Next() {
		var info RunInfo
		var runID string
		var createdAt int64
		if err := rows.Scan(&runID, &info.VideoID, &info.FPS, &info.VideoLength, &createdAt, &info.NumTracks); err != nil {
			return nil, errors.Wrap(err, "can't scan run")
		}
		info.RunID, err = uuid.Parse(runID)
		if err != nil {
			return nil, errors.Wrapf(err, "bad run id %q", runID)
		}
		info.CreatedAt = time.Unix(createdAt, 0).UTC()
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run with its tracks and boxes
func (store *Store) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	res, err := store.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID.String())
	if err != nil {
		return errors.Wrapf(err, "can't delete run %s", runID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "can't count deleted runs")
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}
