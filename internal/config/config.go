package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Dataset sources.
const (
	SourceMNIST      = "mnist"
	SourceWebDataset = "webdataset"
)

// Config captures the knobs for one partition run.
type Config struct {
	DataRoot      string       `yaml:"data_root"`
	Source        string       `yaml:"source"`
	ShardRoot     string       `yaml:"shard_root"`
	ImageSide     int          `yaml:"image_side"`
	Mode          string       `yaml:"mode"`
	Nodes         int          `yaml:"nodes"`
	TrainSamples  int          `yaml:"train_samples"`
	TestSamples   int          `yaml:"test_samples"`
	BatchSize     int          `yaml:"batch_size"`
	Shuffle       bool         `yaml:"shuffle"`
	ShuffleLabels bool         `yaml:"shuffle_labels"`
	LabelSeed     int64        `yaml:"label_seed"`
	Seed          int64        `yaml:"seed"`
	Plot          PlotConfig   `yaml:"plot"`
	Logger        LoggerConfig `yaml:"logger"`
}

// PlotConfig selects the optional sample grid written after partitioning.
type PlotConfig struct {
	Dir      string `yaml:"dir"`
	Name     string `yaml:"name"`
	Node     int    `yaml:"node"`
	Examples int    `yaml:"examples"`
	Channel  int    `yaml:"channel"`
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Overrides captures CLI supplied values. Zero values and nil pointers are ignored.
type Overrides struct {
	DataRoot      string
	Mode          string
	Nodes         int
	TrainSamples  int
	TestSamples   int
	BatchSize     int
	Shuffle       *bool
	ShuffleLabels *bool
	LabelSeed     *int64
	Seed          *int64
	PlotName      string
	PlotNode      *int
}

// Default returns the stock experiment: 3 iid nodes over MNIST.
func Default() *Config {
	return &Config{
		DataRoot:     "./data",
		Source:       SourceMNIST,
		ImageSide:    28,
		Mode:         "iid",
		Nodes:        3,
		TrainSamples: 200,
		TestSamples:  100,
		BatchSize:    25,
		Shuffle:      true,
		Plot: PlotConfig{
			Dir:      "plots",
			Examples: 20,
		},
		Logger: LoggerConfig{Level: "info"},
	}
}

// Load reads a Config from YAML on top of Default and validates it.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any set override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataRoot != "" {
		c.DataRoot = o.DataRoot
	}
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if o.Nodes > 0 {
		c.Nodes = o.Nodes
	}
	if o.TrainSamples > 0 {
		c.TrainSamples = o.TrainSamples
	}
	if o.TestSamples > 0 {
		c.TestSamples = o.TestSamples
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Shuffle != nil {
		c.Shuffle = *o.Shuffle
	}
	if o.ShuffleLabels != nil {
		c.ShuffleLabels = *o.ShuffleLabels
	}
	if o.LabelSeed != nil {
		c.LabelSeed = *o.LabelSeed
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.PlotName != "" {
		c.Plot.Name = o.PlotName
	}
	if o.PlotNode != nil {
		c.Plot.Node = *o.PlotNode
	}
}

// Validate verifies the config is runnable and fills derived defaults.
// The partition mode is not checked: unknown modes produce empty splits.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Source {
	case SourceMNIST:
		if c.DataRoot == "" {
			return errors.New("data_root must be set")
		}
	case SourceWebDataset:
		if c.ShardRoot == "" {
			return errors.New("shard_root must be set for webdataset source")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.Nodes <= 0 {
		return fmt.Errorf("nodes must be > 0 (got %d)", c.Nodes)
	}
	if c.TrainSamples <= 0 {
		return fmt.Errorf("train_samples must be > 0 (got %d)", c.TrainSamples)
	}
	if c.TestSamples <= 0 {
		return fmt.Errorf("test_samples must be > 0 (got %d)", c.TestSamples)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Plot.Name != "" && (c.Plot.Node < 0 || c.Plot.Node >= c.Nodes) {
		return fmt.Errorf("plot.node must be in [0,%d) (got %d)", c.Nodes, c.Plot.Node)
	}
	if c.Plot.Examples < 0 {
		return fmt.Errorf("plot.examples must be >= 0 (got %d)", c.Plot.Examples)
	}
	switch strings.ToLower(c.Logger.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logger.level %q", c.Logger.Level)
	}
	if c.ImageSide <= 0 {
		c.ImageSide = 28
	}
	if c.Plot.Dir == "" {
		c.Plot.Dir = "plots"
	}
	if c.Plot.Examples == 0 {
		c.Plot.Examples = 20
	}
	return nil
}
