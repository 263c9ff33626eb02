// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config holds the configuration of a super-resolution run.
//
// A Config is created with Default, optionally overlaid with a YAML file, and then
// with command-line flags (see Parse). Flags given explicitly on the command line
// always take precedence over the YAML file.
package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/gomlx/superres/pkg/schedule"
	"github.com/gomlx/superres/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Sub-directories of Config.OutDir.
const (
	SamplesSubdir = "samples"
	InputsSubdir  = "inputs"
)

// ScoresFileName is the name of the per-image scores table written to Config.OutDir.
const ScoresFileName = "scores.csv"

// HistogramFileName is the name of the plot of the scores distribution written to Config.OutDir.
const HistogramFileName = "scores_histogram.png"

// Config of a super-resolution run.
type Config struct {
	// InitImg is the directory with the low-resolution input images.
	InitImg string `yaml:"init_img"`

	// OutDir where results are written: samples go to OutDir/samples, inputs (if SaveInput)
	// to OutDir/inputs, and the grids to OutDir itself.
	OutDir string `yaml:"outdir"`

	SkipGrid  bool `yaml:"skip_grid"`
	SkipSave  bool `yaml:"skip_save"`
	SaveInput bool `yaml:"save_input"`

	// Sampler is the name of a registered sampler, see package sampling.
	Sampler     string `yaml:"sampler"`
	PLMS        bool   `yaml:"plms"`
	Checkpoint  string `yaml:"ckpt"`
	ModelConfig string `yaml:"model_config"`

	DDIMSteps int     `yaml:"ddim_steps"`
	DDIMEta   float64 `yaml:"ddim_eta"`

	// Strength in [0, 1] of the noising of the input: 1.0 corresponds to full destruction
	// of the information in the input image.
	Strength float64 `yaml:"strength"`

	// NSamples is the batch size.
	NSamples int `yaml:"n_samples"`

	// NRows is the number of images per row of the grid. If 0, NSamples is used.
	NRows       int `yaml:"n_rows"`
	GridPadding int `yaml:"grid_padding"`

	Seed      int64     `yaml:"seed"`
	Precision Precision `yaml:"precision"`

	// InputSize is the size of the generated images: inputs are resized to InputSize/4
	// on their shortest side before sampling.
	InputSize int  `yaml:"input_size"`
	ColorFix  bool `yaml:"color_fix"`

	ScoreHistogram bool `yaml:"score_histogram"`

	// ConfigFile is the YAML file read by Parse, if set. It is only settable by flag.
	ConfigFile string `yaml:"-"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		OutDir:      "outputs/sr-samples",
		Sampler:     "interpolation",
		DDIMSteps:   200,
		DDIMEta:     1.0,
		Strength:    1.0,
		NSamples:    2,
		GridPadding: 2,
		Seed:        42,
		Precision:   PrecisionAutocast,
		InputSize:   512,
	}
}

// RegisterFlags binds the configuration fields to flags in fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config_file", c.ConfigFile,
		"YAML file with the configuration. Flags given explicitly take precedence over its values.")
	fs.StringVar(&c.InitImg, "init_img", c.InitImg, "Directory with the input images.")
	fs.StringVar(&c.OutDir, "outdir", c.OutDir, "Directory to write results to.")
	fs.BoolVar(&c.SkipGrid, "skip_grid", c.SkipGrid,
		"Do not save a grid, only individual samples. Helpful when evaluating lots of samples.")
	fs.BoolVar(&c.SkipSave, "skip_save", c.SkipSave, "Do not save individual samples. For speed measurements.")
	fs.BoolVar(&c.SaveInput, "save_input", c.SaveInput, "If enabled, save the preprocessed inputs.")
	fs.StringVar(&c.Sampler, "sampler", c.Sampler, "Name of the sampler to use.")
	fs.BoolVar(&c.PLMS, "plms", c.PLMS, "Use PLMS sampling.")
	fs.StringVar(&c.Checkpoint, "ckpt", c.Checkpoint, "Path to the checkpoint of the model, passed to the sampler.")
	fs.StringVar(&c.ModelConfig, "model_config", c.ModelConfig, "Path to the model configuration, passed to the sampler.")
	fs.IntVar(&c.DDIMSteps, "ddim_steps", c.DDIMSteps, "Number of DDIM sampling steps.")
	fs.Float64Var(&c.DDIMEta, "ddim_eta", c.DDIMEta, "DDIM eta (eta=0.0 corresponds to deterministic sampling).")
	fs.Float64Var(&c.Strength, "strength", c.Strength,
		"Strength for noising/unnoising. 1.0 corresponds to full destruction of information in the input image.")
	fs.IntVar(&c.NSamples, "n_samples", c.NSamples, "How many images to process at once. A.k.a. batch size.")
	fs.IntVar(&c.NRows, "n_rows", c.NRows, "Images per row in the grid (default: n_samples).")
	fs.IntVar(&c.GridPadding, "grid_padding", c.GridPadding, "Blank pixels between the images of the grid.")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "The seed (for reproducible sampling).")
	fs.TextVar(&c.Precision, "precision", c.Precision, "Evaluate at this precision: \"full\" or \"autocast\".")
	fs.IntVar(&c.InputSize, "input_size", c.InputSize, "Output size; inputs are resized to input_size/4.")
	fs.BoolVar(&c.ColorFix, "color_fix", c.ColorFix, "If enabled, use AdaIN to restore the colors of the input.")
	fs.BoolVar(&c.ScoreHistogram, "score_histogram", c.ScoreHistogram,
		"If enabled, plot the distribution of the quality scores to "+HistogramFileName+".")
}

// Parse creates a Default configuration, registers its flags in fs and parses args.
// If -config_file is given, the YAML file is applied first, and then the flags given
// explicitly in args on top of it.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	c := Default()
	c.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "failed to parse flags")
	}
	if c.ConfigFile == "" {
		return c, nil
	}
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := c.LoadYAML(c.ConfigFile); err != nil {
		return nil, err
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return nil, errors.Wrapf(err, "failed to re-apply flag -%s=%q", name, value)
		}
	}
	return c, nil
}

// LoadYAML overlays the values in the YAML file on c. Fields absent from the file are
// left untouched; unknown fields are an error.
func (c *Config) LoadYAML(filePath string) error {
	filePath, err := fsutil.ReplaceTildeInDir(filePath)
	if err != nil {
		return err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open configuration file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err = decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "failed to parse configuration file %q", filePath)
	}
	return nil
}

// Validate checks that all values are in range. It is called before any work is done.
func (c *Config) Validate() error {
	if c.InitImg == "" {
		return errors.New("the directory with the input images (-init_img) must be given")
	}
	if c.OutDir == "" {
		return errors.New("the output directory (-outdir) must be given")
	}
	if err := schedule.ValidateStrength(c.Strength); err != nil {
		return err
	}
	if c.DDIMSteps <= 0 {
		return errors.Wrapf(schedule.ErrInvalidNumSteps, "-ddim_steps=%d", c.DDIMSteps)
	}
	if c.DDIMEta < 0 {
		return errors.Errorf("-ddim_eta must be >= 0, got %g", c.DDIMEta)
	}
	if c.NSamples <= 0 {
		return errors.Errorf("-n_samples (batch size) must be > 0, got %d", c.NSamples)
	}
	if c.NRows < 0 {
		return errors.Errorf("-n_rows must be >= 0, got %d", c.NRows)
	}
	if c.GridPadding < 0 {
		return errors.Errorf("-grid_padding must be >= 0, got %d", c.GridPadding)
	}
	if c.InputSize < 4 {
		return errors.Errorf("-input_size must be >= 4, got %d", c.InputSize)
	}
	if c.SamplerName() == "" {
		return errors.New("a sampler (-sampler) must be given")
	}
	if c.Precision != PrecisionFull && c.Precision != PrecisionAutocast {
		return errors.Errorf("invalid precision %d", c.Precision)
	}
	return nil
}

// SamplerName returns the name of the sampler to use: "plms" if PLMS is set, Sampler otherwise.
func (c *Config) SamplerName() string {
	if c.PLMS {
		return "plms"
	}
	return c.Sampler
}

// SamplesDir is where the output images are written.
func (c *Config) SamplesDir() string { return filepath.Join(c.OutDir, SamplesSubdir) }

// InputsDir is where the preprocessed inputs are written, if SaveInput is set.
func (c *Config) InputsDir() string { return filepath.Join(c.OutDir, InputsSubdir) }

// GridColumns returns the number of images per row of the grid.
func (c *Config) GridColumns() int {
	if c.NRows > 0 {
		return c.NRows
	}
	return c.NSamples
}

// ShortSide is the size of the shortest side of the inputs given to the sampler.
func (c *Config) ShortSide() int { return c.InputSize / 4 }
