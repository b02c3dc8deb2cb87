// Package config - Evaluation run configuration loaded from YAML and the
// environment.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-segeval/confusion"
	"github.com/nvr-ai/go-segeval/errs"
	"github.com/nvr-ai/go-segeval/pairing"
)

// Environment variables read by ApplyEnv.
const (
	EnvDataset   = "CITYSCAPES_DATASET"
	EnvResults   = "CITYSCAPES_RESULTS"
	EnvExportDir = "CITYSCAPES_EXPORT_DIR"
)

// ResultFile is the name of the JSON result file.
const ResultFile = "resultPixelLevelSemanticLabeling.json"

// Decoder names.
const (
	DecoderStd    = "std"
	DecoderOpenCV = "opencv"
)

// Config holds the settings of one evaluation run.
type Config struct {
	// GroundTruthDir is searched with GroundTruthSearch.
	GroundTruthDir    string `yaml:"groundTruthDir"`
	GroundTruthSearch string `yaml:"groundTruthSearch"`
	// PredictionDir is walked for the prediction of every ground truth file.
	PredictionDir string `yaml:"predictionDir"`
	ExportFile    string `yaml:"exportFile"`
	// TaxonomyFile is a YAML label table. Empty means Cityscapes.
	TaxonomyFile string `yaml:"taxonomyFile,omitempty"`

	EvalInstLevelScore bool `yaml:"evalInstLevelScore"`
	EvalPixelAccuracy  bool `yaml:"evalPixelAccuracy"`
	Normalized         bool `yaml:"normalized"`
	PrintRow           int  `yaml:"printRow"`
	Quiet              bool `yaml:"quiet"`
	JSONOutput         bool `yaml:"jsonOutput"`
	// Colorized forces colour on or off. Nil detects a terminal.
	Colorized *bool `yaml:"colorized,omitempty"`

	Workers     int            `yaml:"workers"`
	Accumulator confusion.Kind `yaml:"accumulator"`
	Decoder     string         `yaml:"decoder"`
}

// Default returns the settings for a Cityscapes dataset in the working
// directory.
func Default() *Config {
	c := &Config{
		GroundTruthSearch:  pairing.DefaultSearch,
		EvalInstLevelScore: true,
		EvalPixelAccuracy:  false,
		Normalized:         true,
		PrintRow:           5,
		JSONOutput:         true,
		Workers:            1,
		Accumulator:        confusion.KindAuto,
		Decoder:            DecoderStd,
	}
	c.setDataset(".")
	return c
}

func (c *Config) setDataset(root string) {
	c.GroundTruthDir = filepath.Join(root, "gtFine", "val")
	c.PredictionDir = filepath.Join(root, "results")
	c.ExportFile = filepath.Join(root, "evaluationResults", ResultFile)
}

// ApplyEnv overrides paths from the Cityscapes environment variables.
//
// Arguments:
//   - lookup: Reads a variable, os.LookupEnv in production.
//
// Returns:
//   - error: errs.ErrConfig when CITYSCAPES_EXPORT_DIR is not a directory.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if root, ok := lookup(EnvDataset); ok && root != "" {
		c.setDataset(root)
	}
	if results, ok := lookup(EnvResults); ok && results != "" {
		c.PredictionDir = results
	}
	if dir, ok := lookup(EnvExportDir); ok && dir != "" {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errs.Config("%s=%s is not a directory", EnvExportDir, dir)
		}
		c.ExportFile = filepath.Join(dir, ResultFile)
	}
	return nil
}

// Load reads a YAML config over the defaults and the environment.
//
// Arguments:
//   - path: The YAML file. Empty skips the file.
//
// Returns:
//   - *Config: The validated config.
//   - error: Error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	c := Default()
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errs.Config("config file not found: %s", path)
			}
			return nil, errors.Wrap(err, "reading config file")
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errs.Config("parsing config YAML: %v", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the settings for consistency.
//
// Returns:
//   - error: errs.ErrConfig naming the first invalid field.
func (c *Config) Validate() error {
	if c.GroundTruthDir == "" {
		return errs.Config("groundTruthDir is required")
	}
	if c.PredictionDir == "" {
		return errs.Config("predictionDir is required")
	}
	if c.JSONOutput && c.ExportFile == "" {
		return errs.Config("exportFile is required when jsonOutput is set")
	}
	if c.PrintRow <= 0 {
		return errs.Config("printRow must be positive, got %d", c.PrintRow)
	}
	if c.Workers < 0 {
		return errs.Config("workers must not be negative, got %d", c.Workers)
	}
	if _, err := confusion.NewAccumulator(c.Accumulator); err != nil {
		return err
	}
	switch c.Decoder {
	case "", DecoderStd, DecoderOpenCV:
	default:
		return errs.Config("unknown decoder %q", c.Decoder)
	}
	return nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshaling config YAML")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing config file")
	}
	return nil
}
