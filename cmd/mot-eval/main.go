package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/surfriderfoundationeurope/mot-go/mot"
	"github.com/surfriderfoundationeurope/mot-go/storage"
)

func main() {
	os.Exit(run())
}

// run evaluates predicted tracks against ground truth and returns the process exit code
func run() int {
	var (
		predPath = flag.String("pred", "", "Tracking result JSON to evaluate")
		dbPath   = flag.String("db", "", "SQLite database holding the result (with -run)")
		runID    = flag.String("run", "", "Run identifier of the stored result (with -db)")
		gtPath   = flag.String("gt", "", "Ground-truth tracks, in tracking result JSON format")
		classes  = flag.String("classes", strings.Join(mot.DefaultClassNames, ","), "Comma-separated class names, background excluded")
	)
	flag.Parse()

	if *gtPath == "" || (*predPath == "") == (*dbPath == "") {
		logrus.Error("Usage: mot-eval -gt gt.json (-pred result.json | -db results.db -run <uuid>)")
		return 2
	}
	classNames := strings.Split(*classes, ",")

	var predicted mot.Result
	var err error
	if *predPath != "" {
		predicted, err = readResult(*predPath)
	} else {
		predicted, err = loadStoredResult(*dbPath, *runID)
	}
	if err != nil {
		logrus.WithError(err).Error("Can't read predicted tracks")
		return 1
	}
	groundTruth, err := readResult(*gtPath)
	if err != nil {
		logrus.WithError(err).Error("Can't read ground-truth tracks")
		return 1
	}

	tracks, err := predicted.Tracks(classNames)
	if err != nil {
		logrus.WithError(err).Error("Bad predicted tracks")
		return 1
	}
	tracksGT, err := groundTruth.Tracks(classNames)
	if err != nil {
		logrus.WithError(err).Error("Bad ground-truth tracks")
		return 1
	}

	evaluation := mot.Evaluate(tracks, tracksGT)
	data, err := json.MarshalIndent(evaluation, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("Can't encode evaluation")
		return 1
	}
	os.Stdout.Write(append(data, '\n'))
	return 0
}

func loadStoredResult(dbPath, runID string) (mot.Result, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return mot.Result{}, errors.Wrap(err, "bad -run")
	}
	store, err := storage.Open(dbPath, logrus.StandardLogger())
	if err != nil {
		return mot.Result{}, err
	}
	defer store.Close()
	return store.LoadResult(context.Background(), id)
}

func readResult(path string) (mot.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mot.Result{}, errors.Wrapf(err, "can't read %s", path)
	}
	result, err := mot.ParseResult(data)
	if err != nil {
		return mot.Result{}, errors.Wrapf(err, "can't parse %s", path)
	}
	return result, nil
}
