package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/surfriderfoundationeurope/mot-go/mot"
	"github.com/surfriderfoundationeurope/mot-go/storage"
)

func main() {
	os.Exit(run())
}

// run tracks every input and returns the process exit code.
// Errors are returned as exit codes so that deferred cleanup runs.
func run() int {
	var (
		configPath = flag.String("config", "", "Path to JSON tracking configuration")
		classes    = flag.String("classes", "", "Comma-separated class names, background excluded (overrides config)")
		fps        = flag.Float64("fps", 4, "Frames per second of the sampled video")
		videoID    = flag.String("video-id", "", "Video identifier (default: input file name without extension; single input only)")
		numFrames  = flag.Int("frames", 0, "Number of frames of the video (default: number of detector records; single input only)")
		outDir     = flag.String("out", "", "Directory for <video-id>.tracks.json results (default: stdout)")
		dbPath     = flag.String("db", "", "Optional SQLite database to store results in")
		motion     = flag.String("motion", "", "Motion model: linear or kalman (overrides config)")
		matching   = flag.String("matching", "", "Matching algorithm: greedy or hungarian (overrides config)")
		workers    = flag.Int("workers", 4, "Number of videos tracked in parallel")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	inputs := flag.Args()
	if len(inputs) == 0 {
		logrus.Error("Usage: mot-track [flags] detections.json [detections.json ...]")
		return 2
	}
	if len(inputs) > 1 && (*videoID != "" || *numFrames > 0) {
		logrus.Error("-video-id and -frames apply to a single input")
		return 2
	}
	if len(inputs) > 1 && *outDir == "" {
		logrus.Error("-out is required with several inputs")
		return 2
	}
	ids, err := videoIDs(inputs, *videoID)
	if err != nil {
		logrus.WithError(err).Error("Bad inputs")
		return 2
	}

	cfg, err := loadConfig(*configPath, *classes, *motion, *matching)
	if err != nil {
		logrus.WithError(err).Error("Bad configuration")
		return 2
	}

	var store *storage.Store
	if *dbPath != "" {
		store, err = storage.Open(*dbPath, logrus.StandardLogger())
		if err != nil {
			logrus.WithError(err).Error("Can't open database")
			return 1
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(*workers)
	for i, input := range inputs {
		id := ids[i]
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return trackVideo(ctx, input, id, *fps, *numFrames, cfg, *outDir, store)
		})
	}
	if err := group.Wait(); err != nil {
		logrus.WithError(err).Error("Tracking failed")
		return 1
	}
	return 0
}

// videoIDs returns the video identifier of each input: videoID when set, else the file name without extension.
// Identifiers name output files and must be unique.
func videoIDs(inputs []string, videoID string) ([]string, error) {
	ids := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, input := range inputs {
		id := videoID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		}
		if previous, ok := seen[id]; ok {
			return nil, errors.Errorf("inputs %s and %s have the same video id %q", previous, input, id)
		}
		seen[id] = input
		ids[i] = id
	}
	return ids, nil
}

// loadConfig reads the optional config file and applies command line overrides
func loadConfig(path, classes, motion, matching string) (mot.Config, error) {
	cfg := mot.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = mot.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}
	if classes != "" {
		cfg.ClassNames = strings.Split(classes, ",")
	}
	if motion != "" {
		if err := cfg.Motion.UnmarshalText([]byte(motion)); err != nil {
			return cfg, errors.Wrap(err, "bad -motion")
		}
	}
	if matching != "" {
		if err := cfg.Matching.UnmarshalText([]byte(matching)); err != nil {
			return cfg, errors.Wrap(err, "bad -matching")
		}
	}
	return cfg, cfg.Validate()
}

// trackVideo tracks objects in detector outputs of one video and writes the result
func trackVideo(ctx context.Context, input, videoID string, fps float64, numFrames int, cfg mot.Config, outDir string, store *storage.Store) error {
	logger := logrus.WithField("input", input)
	raw, err := os.ReadFile(input)
	if err != nil {
		return errors.Wrapf(err, "can't read %s", input)
	}
	frames, err := mot.ParseFrames(raw, len(cfg.ClassNames), logger)
	if err != nil {
		return errors.Wrapf(err, "can't parse %s", input)
	}
	options := []mot.RunOption{mot.WithLogger(logger)}
	if numFrames > 0 {
		options = append(options, mot.WithFrameCount(numFrames))
	}
	run, err := mot.NewRun(videoID, frames, fps, cfg, options...)
	if err != nil {
		return err
	}
	tracks, err := run.ComputeTracks()
	if err != nil {
		return errors.Wrapf(err, "can't track %s", input)
	}
	result := run.Result(tracks)

	if store != nil {
		if err := store.SaveResult(ctx, run.RunID, result); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "can't encode result")
	}
	if outDir == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	outPath := filepath.Join(outDir, videoID+".tracks.json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "can't write %s", outPath)
	}
	logger.WithFields(logrus.Fields{
		"run_id": run.RunID.String(),
		"output": outPath,
		"tracks": len(tracks),
	}).Info("Wrote tracking result")
	return nil
}
