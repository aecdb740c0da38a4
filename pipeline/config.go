package pipeline

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/exotrain/dataset"
	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// Config holds every setting of a training run. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	TrainFile string `yaml:"train_file"`
	TestFile  string `yaml:"test_file"`

	OutputDir  string `yaml:"output_dir"`
	ScalerFile string `yaml:"scaler_file"`
	ModelFile  string `yaml:"model_file"`
	// PlotFile, when set, receives a PNG of the training curves.
	PlotFile string `yaml:"plot_file"`

	Placeholder  string             `yaml:"placeholder"`
	FillValue    float64            `yaml:"fill_value"`
	LabelColumn  string             `yaml:"label_column"`
	LabelMap     dataset.LabelMap   `yaml:"label_map"`
	StrictLabels bool               `yaml:"strict_labels"`
	ClassNames   map[float64]string `yaml:"class_names"`

	Seed       int64 `yaml:"seed"`
	KNeighbors int   `yaml:"k_neighbors"`

	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	ClipValue    float64 `yaml:"clip_value"`

	// Report prints a classification report on the test partition after
	// training.
	Report bool `yaml:"report"`

	LogLevel string `yaml:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns the settings of the reference training run.
func DefaultConfig() *Config {
	return &Config{
		DataDir:   ".",
		TrainFile: "exoTrain.csv",
		TestFile:  "exoTest.csv",

		OutputDir:  ".",
		ScalerFile: "scaler.gob",
		ModelFile:  "exoplanet_cnn_model.gob",

		Placeholder:  dataset.DefaultPlaceholder,
		FillValue:    0,
		LabelColumn:  dataset.DefaultLabelColumn,
		LabelMap:     dataset.LabelMap{1: 0, 2: 1},
		StrictLabels: true,
		ClassNames:   map[float64]string{0: "no transit", 1: "exoplanet"},

		Seed:       42,
		KNeighbors: 5,

		Epochs:       15,
		BatchSize:    64,
		LearningRate: 1e-4,
		ClipValue:    1.0,

		Report: true,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the file
// keep their default values; map entries are merged into the default maps.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings can drive a run.
func (c *Config) Validate() error {
	switch {
	case c.TrainFile == "" || c.TestFile == "":
		return errors.NewValidationError("train_file/test_file", "must be set", []string{c.TrainFile, c.TestFile})
	case c.ScalerFile == "" || c.ModelFile == "":
		return errors.NewValidationError("scaler_file/model_file", "must be set", []string{c.ScalerFile, c.ModelFile})
	case c.LabelColumn == "":
		return errors.NewValidationError("label_column", "must be set", c.LabelColumn)
	case len(c.LabelMap) == 0:
		return errors.NewValidationError("label_map", "must not be empty", c.LabelMap)
	case c.KNeighbors < 1:
		return errors.NewValidationError("k_neighbors", "must be at least 1", c.KNeighbors)
	case c.Epochs < 1:
		return errors.NewValidationError("epochs", "must be at least 1", c.Epochs)
	case c.BatchSize < 1:
		return errors.NewValidationError("batch_size", "must be at least 1", c.BatchSize)
	case c.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", c.LearningRate)
	case c.ClipValue < 0:
		return errors.NewValidationError("clip_value", "must not be negative", c.ClipValue)
	case c.LogFormat != "console" && c.LogFormat != "json":
		return errors.NewValidationError("log_format", "must be console or json", c.LogFormat)
	}
	return nil
}

// TrainPath returns the training CSV location.
func (c *Config) TrainPath() string { return filepath.Join(c.DataDir, c.TrainFile) }

// TestPath returns the test CSV location.
func (c *Config) TestPath() string { return filepath.Join(c.DataDir, c.TestFile) }

// ScalerPath returns where the scaler artifact is written.
func (c *Config) ScalerPath() string { return filepath.Join(c.OutputDir, c.ScalerFile) }

// ModelPath returns where the model artifact is written.
func (c *Config) ModelPath() string { return filepath.Join(c.OutputDir, c.ModelFile) }

// PlotPath returns where the chart is written, or "" when disabled.
func (c *Config) PlotPath() string {
	if c.PlotFile == "" {
		return ""
	}
	return filepath.Join(c.OutputDir, c.PlotFile)
}
