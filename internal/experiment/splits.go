// Package experiment loads a dataset, partitions it across simulated
// nodes and reports on the result.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"fedpartition/internal/dataset"
	"fedpartition/internal/partition"
)

// Partition modes.
const (
	ModeIID    = "iid"
	ModeNonIID = "non_iid"
)

// DatasetLoader returns the train or test split of a dataset.
type DatasetLoader func(ctx context.Context, train bool) (*dataset.Dataset, error)

// MNIST loads MNIST cached under root, downloading it on first use.
func MNIST(root string, logger *slog.Logger) DatasetLoader {
	f := &dataset.Fetcher{Root: root, Logger: logger}
	return f.Load
}

// Shards loads WebDataset shards from root/train and root/test.
func Shards(root string, side int) DatasetLoader {
	return func(ctx context.Context, train bool) (*dataset.Dataset, error) {
		name := "shards-test"
		if train {
			name = "shards-train"
		}
		return dataset.LoadShards(ctx, dataset.SplitDir(root, train), dataset.ShardOptions{Name: name, Side: side})
	}
}

// Options configures GetSplits.
type Options struct {
	Mode          string
	TrainSamples  int
	TestSamples   int
	Nodes         int
	BatchSize     int
	Shuffle       bool
	ShuffleLabels bool
	LabelSeed     int64
	// Seed makes sample draws reproducible when non-zero.
	Seed   int64
	Loader DatasetLoader
	Logger *slog.Logger
}

// DefaultOptions returns 3 iid nodes with 200 train and 100 test samples each,
// reading MNIST from ./data.
func DefaultOptions() Options {
	return Options{
		Mode:         ModeIID,
		TrainSamples: 200,
		TestSamples:  100,
		Nodes:        3,
		BatchSize:    25,
		Shuffle:      true,
		Loader:       MNIST("./data", nil),
	}
}

// GetSplits loads both dataset splits and partitions each across
// opts.Nodes nodes. An unrecognized mode yields two empty lists and no error.
func GetSplits(ctx context.Context, opts Options) (train, test []*partition.Loader, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Loader == nil {
		return nil, nil, fmt.Errorf("experiment: no dataset loader")
	}

	trainSet, err := opts.Loader(ctx, true)
	if err != nil {
		return nil, nil, fmt.Errorf("load train split: %w", err)
	}
	testSet, err := opts.Loader(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("load test split: %w", err)
	}

	var split func(*dataset.Dataset, partition.Options) ([]*partition.Loader, error)
	switch opts.Mode {
	case ModeIID:
		split = partition.IID
	case ModeNonIID:
		split = partition.NonIID
	default:
		logger.Warn("unrecognized partition mode, returning empty splits", "mode", opts.Mode)
		return []*partition.Loader{}, []*partition.Loader{}, nil
	}

	src := partition.NewSource(opts.Seed)
	base := partition.Options{
		Nodes:         opts.Nodes,
		BatchSize:     opts.BatchSize,
		Shuffle:       opts.Shuffle,
		ShuffleLabels: opts.ShuffleLabels,
		LabelSeed:     opts.LabelSeed,
		Source:        src,
	}

	trainOpts := base
	trainOpts.SamplesPerNode = opts.TrainSamples
	train, err = split(trainSet, trainOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("partition %s: %w", trainSet.Name(), err)
	}

	testOpts := base
	testOpts.SamplesPerNode = opts.TestSamples
	test, err = split(testSet, testOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("partition %s: %w", testSet.Name(), err)
	}

	logger.Debug("datasets partitioned",
		"mode", opts.Mode,
		"nodes", opts.Nodes,
		"train_dataset", trainSet.Name(),
		"test_dataset", testSet.Name(),
	)
	return train, test, nil
}
