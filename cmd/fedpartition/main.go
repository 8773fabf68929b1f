package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fedpartition/internal/config"
	"fedpartition/internal/experiment"
	"fedpartition/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "configs/fedpartition.yaml", "Path to YAML config")
	dataRoot := flag.String("data-root", "", "Override dataset cache directory")
	mode := flag.String("mode", "", "Partition mode: iid or non_iid")
	nodes := flag.Int("nodes", 0, "Number of simulated nodes")
	trainSamples := flag.Int("train-samples", 0, "Train samples per node")
	testSamples := flag.Int("test-samples", 0, "Test samples per node")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	shuffle := flag.Bool("shuffle", true, "Shuffle sample draws and batches")
	shuffleLabels := flag.Bool("shuffle-labels", false, "Permute label order before grouping (non_iid)")
	labelSeed := flag.Int64("label-seed", 0, "Seed for the label permutation")
	seed := flag.Int64("seed", 0, "PRNG seed for sample draws (0 = unseeded)")
	plotName := flag.String("plot-name", "", "Write a sample grid of one train node to <plot dir>/<name>.png")
	plotNode := flag.Int("plot-node", 0, "Train node to plot")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal("failed to load config", err)
	}

	overrides := config.Overrides{
		DataRoot:     *dataRoot,
		Mode:         *mode,
		Nodes:        *nodes,
		TrainSamples: *trainSamples,
		TestSamples:  *testSamples,
		BatchSize:    *batchSize,
		PlotName:     *plotName,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "shuffle":
			overrides.Shuffle = shuffle
		case "shuffle-labels":
			overrides.ShuffleLabels = shuffleLabels
		case "label-seed":
			overrides.LabelSeed = labelSeed
		case "seed":
			overrides.Seed = seed
		case "plot-node":
			overrides.PlotNode = plotNode
		}
	})
	cfg.ApplyOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	logger, err := logging.New(cfg.Logger, os.Stdout)
	if err != nil {
		fatal("invalid logger config", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("partitioning dataset",
		"source", cfg.Source,
		"mode", cfg.Mode,
		"nodes", cfg.Nodes,
		"train_samples", cfg.TrainSamples,
		"test_samples", cfg.TestSamples,
		"batch_size", cfg.BatchSize,
		"shuffle", cfg.Shuffle,
	)

	report, err := experiment.Run(ctx, cfg, logger)
	if err != nil {
		stop()
		fatal("partitioning failed", err)
	}
	logger.Info("done", "run_id", report.RunID, "train_nodes", len(report.Train), "test_nodes", len(report.Test))
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
