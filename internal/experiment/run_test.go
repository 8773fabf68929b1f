package experiment

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"fedpartition/internal/config"
	"fedpartition/internal/dataset"
	"fedpartition/internal/partition"
)

func TestGetSplitsIID(t *testing.T) {
	opts := testOptions(ModeIID)
	train, test, err := GetSplits(context.Background(), opts)
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	if len(train) != 3 || len(test) != 3 {
		t.Fatalf("expected 3 train and 3 test loaders, got %d/%d", len(train), len(test))
	}
	for i := range train {
		if train[i].Len() != 20 || test[i].Len() != 10 {
			t.Fatalf("node %d: train=%d test=%d", i, train[i].Len(), test[i].Len())
		}
	}
}

func TestGetSplitsNonIID(t *testing.T) {
	opts := testOptions(ModeNonIID)
	opts.Nodes = 2
	train, test, err := GetSplits(context.Background(), opts)
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	for _, loaders := range [][]*partition.Loader{train, test} {
		for node, l := range loaders {
			for _, label := range l.Labels() {
				if (node == 0) != (label < 5) {
					t.Fatalf("node %d holds label %d", node, label)
				}
			}
		}
	}
}

func TestGetSplitsUnknownModeIsEmpty(t *testing.T) {
	train, test, err := GetSplits(context.Background(), testOptions("random"))
	if err != nil {
		t.Fatalf("unknown mode must not fail: %v", err)
	}
	if train == nil || test == nil || len(train) != 0 || len(test) != 0 {
		t.Fatalf("expected two empty lists, got %v / %v", train, test)
	}
}

func TestGetSplitsPropagatesErrors(t *testing.T) {
	boom := errors.New("offline")
	opts := testOptions(ModeIID)
	opts.Loader = func(context.Context, bool) (*dataset.Dataset, error) { return nil, boom }
	if _, _, err := GetSplits(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}

	opts = testOptions(ModeNonIID)
	opts.Nodes = 11
	if _, _, err := GetSplits(context.Background(), opts); !errors.Is(err, partition.ErrInvalidNodeCount) {
		t.Fatalf("expected ErrInvalidNodeCount, got %v", err)
	}
}

func TestGetSplitsSeedReproducible(t *testing.T) {
	opts := testOptions(ModeIID)
	opts.Seed = 11
	a, _, err := GetSplits(context.Background(), opts)
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	b, _, err := GetSplits(context.Background(), opts)
	if err != nil {
		t.Fatalf("GetSplits: %v", err)
	}
	for i := range a {
		sa, sb := a[i].Samples(), b[i].Samples()
		for j := range sa {
			if sa[j].Image.Pix[0] != sb[j].Image.Pix[0] {
				t.Fatalf("node %d sample %d differs between seeded runs", i, j)
			}
		}
	}
}

func TestRunWritesPlotAndReport(t *testing.T) {
	plotDir := t.TempDir()
	cfg := config.Default()
	cfg.Mode = ModeNonIID
	cfg.Nodes = 5
	cfg.TrainSamples = 20
	cfg.TestSamples = 10
	cfg.BatchSize = 8
	cfg.Plot.Dir = plotDir
	cfg.Plot.Name = "node1"
	cfg.Plot.Node = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	opts := OptionsFromConfig(cfg, logger)
	opts.Loader = syntheticLoader(500, 200)
	report := &Report{RunID: "test"}
	if err := run(context.Background(), cfg, opts, logger, report); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Train) != 5 || len(report.Test) != 5 {
		t.Fatalf("unexpected summaries %d/%d", len(report.Train), len(report.Test))
	}
	for _, s := range report.Train {
		if len(s.Labels) > 2 {
			t.Fatalf("node %d holds %d labels", s.Node, len(s.Labels))
		}
	}
	if report.PlotPath != filepath.Join(plotDir, "node1.png") {
		t.Fatalf("unexpected plot path %s", report.PlotPath)
	}
	if _, err := os.Stat(report.PlotPath); err != nil {
		t.Fatalf("plot not written: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("node partition")) {
		t.Fatalf("summary not logged: %s", buf.String())
	}
}

func TestRunUnknownModeProducesNothing(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "random"
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	opts := OptionsFromConfig(cfg, logger)
	opts.Loader = syntheticLoader(100, 100)
	report := &Report{}
	if err := run(context.Background(), cfg, opts, logger, report); err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Train != nil || report.PlotPath != "" {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestOptionsFromConfigSelectsSource(t *testing.T) {
	cfg := config.Default()
	cfg.Source = config.SourceWebDataset
	cfg.ShardRoot = filepath.Join(t.TempDir(), "missing")
	opts := OptionsFromConfig(cfg, nil)
	if _, err := opts.Loader(context.Background(), true); err == nil {
		t.Fatal("expected shard loader to fail on a missing root")
	}
}

func testOptions(mode string) Options {
	return Options{
		Mode:         mode,
		TrainSamples: 20,
		TestSamples:  10,
		Nodes:        3,
		BatchSize:    5,
		Shuffle:      true,
		Loader:       syntheticLoader(300, 100),
		Logger:       slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

// syntheticLoader serves datasets whose labels cycle through every class.
func syntheticLoader(trainLen, testLen int) DatasetLoader {
	build := func(name string, n int) *dataset.Dataset {
		samples := make([]dataset.Sample, n)
		for i := range samples {
			img := dataset.NewImage(1, 4, 4)
			img.Pix[0] = float32(i)
			samples[i] = dataset.Sample{Image: img, Label: i % dataset.NumClasses}
		}
		return dataset.New(name, samples)
	}
	train, test := build("train", trainLen), build("test", testLen)
	return func(_ context.Context, isTrain bool) (*dataset.Dataset, error) {
		if isTrain {
			return train, nil
		}
		return test, nil
	}
}
