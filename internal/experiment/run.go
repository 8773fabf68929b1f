package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"fedpartition/internal/config"
	"fedpartition/internal/metrics"
	"fedpartition/internal/plot"
)

// Report describes one run.
type Report struct {
	RunID    string
	Train    []metrics.NodeSummary
	Test     []metrics.NodeSummary
	PlotPath string
}

// OptionsFromConfig maps a validated config onto GetSplits options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	opts := Options{
		Mode:          cfg.Mode,
		TrainSamples:  cfg.TrainSamples,
		TestSamples:   cfg.TestSamples,
		Nodes:         cfg.Nodes,
		BatchSize:     cfg.BatchSize,
		Shuffle:       cfg.Shuffle,
		ShuffleLabels: cfg.ShuffleLabels,
		LabelSeed:     cfg.LabelSeed,
		Seed:          cfg.Seed,
		Logger:        logger,
	}
	switch cfg.Source {
	case config.SourceWebDataset:
		opts.Loader = Shards(cfg.ShardRoot, cfg.ImageSide)
	default:
		opts.Loader = MNIST(cfg.DataRoot, logger)
	}
	return opts
}

// Run partitions the configured dataset, logs a per-node summary and
// writes the optional sample grid.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := &Report{RunID: uuid.NewString()}
	logger = logger.With("run_id", report.RunID)
	return report, run(ctx, cfg, OptionsFromConfig(cfg, logger), logger, report)
}

func run(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger, report *Report) error {
	train, test, err := GetSplits(ctx, opts)
	if err != nil {
		return err
	}
	if len(train) == 0 && len(test) == 0 {
		logger.Warn("no partitions produced", "mode", cfg.Mode)
		return nil
	}

	report.Train = metrics.Summarize(train)
	report.Test = metrics.Summarize(test)
	for _, split := range []struct {
		name      string
		summaries []metrics.NodeSummary
	}{{"train", report.Train}, {"test", report.Test}} {
		for _, s := range split.summaries {
			logger.Info("node partition",
				"split", split.name,
				"node", s.Node,
				"samples", s.Samples,
				"batches", s.Batches,
				"labels", s.Histogram.String(),
			)
		}
		logger.Info("split summary",
			"split", split.name,
			"nodes", len(split.summaries),
			"shared_labels", len(metrics.Overlap(split.summaries)),
		)
	}

	if cfg.Plot.Name == "" {
		return nil
	}
	node := train[cfg.Plot.Node]
	node.Reset()
	batch, err := node.Next()
	if errors.Is(err, io.EOF) {
		logger.Warn("plot skipped, node has no samples", "node", cfg.Plot.Node)
		return nil
	}
	if err != nil {
		return err
	}
	_, err = plot.Samples(batch, plot.Options{
		Channel:  cfg.Plot.Channel,
		Examples: cfg.Plot.Examples,
		Title:    fmt.Sprintf("%s node %d", cfg.Mode, cfg.Plot.Node),
		Name:     cfg.Plot.Name,
		Dir:      cfg.Plot.Dir,
	})
	if err != nil {
		return err
	}
	report.PlotPath = filepath.Join(cfg.Plot.Dir, cfg.Plot.Name+".png")
	logger.Info("sample grid written", "path", report.PlotPath)
	return nil
}
