// Package config loads the run configuration of the searchcv command.
//
// Values are layered: built-in defaults, then the YAML file, then
// SEARCHCV_* environment variables, then validation.
package config

import (
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/searchcv/core/model"
	"github.com/YuminosukeSato/searchcv/pkg/errors"
	"github.com/YuminosukeSato/searchcv/preprocessing"
	"github.com/YuminosukeSato/searchcv/sklearn/model_selection"
)

// EnvPrefix prefixes every environment override, e.g. SEARCHCV_SEARCH_CV_FOLDS.
const EnvPrefix = "SEARCHCV"

// Config holds a complete multi-estimator run.
type Config struct {
	Data   DataConfig   `yaml:"data" envconfig:"DATA"`
	Search SearchConfig `yaml:"search" envconfig:"SEARCH"`

	// Estimators are searched in order. Types must be registered with
	// core/model.
	Estimators []EstimatorConfig `yaml:"estimators" ignored:"true"`

	Output  OutputConfig  `yaml:"output" envconfig:"OUTPUT"`
	Log     LogConfig     `yaml:"log" envconfig:"LOG"`
	Metrics MetricsConfig `yaml:"metrics" envconfig:"METRICS"`
}

// DataConfig locates the training data.
type DataConfig struct {
	Path string `yaml:"path" envconfig:"PATH"`
	// Target names the label column; empty selects the last column.
	Target string `yaml:"target" envconfig:"TARGET"`
	Header bool   `yaml:"header" envconfig:"HEADER"`
	Comma  string `yaml:"comma" envconfig:"COMMA"`
}

// SearchConfig holds settings shared by every estimator.
type SearchConfig struct {
	Kind             string  `yaml:"kind" envconfig:"KIND"`
	Scoring          string  `yaml:"scoring" envconfig:"SCORING"`
	CVFolds          int     `yaml:"cv_folds" envconfig:"CV_FOLDS"`
	SampleFraction   float64 `yaml:"sample_fraction" envconfig:"SAMPLE_FRACTION"`
	NJobs            int     `yaml:"n_jobs" envconfig:"N_JOBS"`
	NIter            int     `yaml:"n_iter" envconfig:"N_ITER"`
	RandomState      int64   `yaml:"random_state" envconfig:"RANDOM_STATE"`
	ReturnTrainScore bool    `yaml:"return_train_score" envconfig:"RETURN_TRAIN_SCORE"`
	// Transformer is applied to the re-evaluation sample: "standard",
	// "minmax" or empty for none.
	Transformer string `yaml:"transformer" envconfig:"TRANSFORMER"`
}

// EstimatorConfig pairs a registered estimator type with its grids.
type EstimatorConfig struct {
	Type string                     `yaml:"type"`
	Grid []map[string][]interface{} `yaml:"grid"`
}

// OutputConfig controls persistence of the aggregate record.
type OutputConfig struct {
	Save     bool   `yaml:"save" envconfig:"SAVE"`
	Dir      string `yaml:"dir" envconfig:"DIR"`
	Filename string `yaml:"filename" envconfig:"FILENAME"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
	// Format is "console", "json" or "auto" (console on a terminal).
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// Load reads configPath (optional), applies environment overrides and
// validates the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, errors.Wrap(err, "loading config file")
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "processing env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Data = DataConfig{Header: true, Comma: ","}
	cfg.Search = SearchConfig{
		Kind:           model_selection.ExhaustiveGrid.String(),
		Scoring:        model_selection.DefaultScoring,
		CVFolds:        model_selection.DefaultMultiCVFolds,
		SampleFraction: 1.0,
		NJobs:          1,
		NIter:          10,
		RandomState:    42,
	}
	cfg.Output = OutputConfig{Dir: "."}
	cfg.Log = LogConfig{Level: "info", Format: "auto"}
}

// Validate checks everything that can be checked without the data.
func (c *Config) Validate() error {
	const op = "config.Validate"
	if c.Data.Path == "" {
		return errors.NewInvalidConfigurationError(op, "data.path", "is required", nil)
	}
	if len([]rune(c.Data.Comma)) != 1 {
		return errors.NewInvalidConfigurationError(op, "data.comma", "must be a single character", c.Data.Comma)
	}
	if _, err := model_selection.ParseKind(c.Search.Kind); err != nil {
		return err
	}
	if c.Search.CVFolds < 2 {
		return errors.NewInvalidConfigurationError(op, "search.cv_folds", "must be at least 2", c.Search.CVFolds)
	}
	if c.Search.SampleFraction <= 0 || c.Search.SampleFraction > 1 {
		return errors.NewInvalidConfigurationError(op, "search.sample_fraction", "must be in (0, 1]", c.Search.SampleFraction)
	}
	if c.Search.NJobs == 0 {
		return errors.NewInvalidConfigurationError(op, "search.n_jobs", "must be positive or -1", 0)
	}
	if c.Search.Transformer != "" {
		if _, err := preprocessing.New(c.Search.Transformer); err != nil {
			return errors.NewInvalidConfigurationError(op, "search.transformer", "expected standard or minmax", c.Search.Transformer)
		}
	}
	if len(c.Estimators) == 0 {
		return errors.NewInvalidConfigurationError(op, "estimators", "at least one estimator is required", nil)
	}
	for i, e := range c.Estimators {
		if _, ok := model.Lookup(e.Type); !ok {
			return errors.NewInvalidConfigurationError(op, "estimators.type",
				"unknown estimator; registered: "+strings.Join(model.Registered(), ", "), e.Type)
		}
		if len(e.Grid) == 0 {
			c.Estimators[i].Grid = []map[string][]interface{}{{}}
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewInvalidConfigurationError(op, "log.level", "expected debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return errors.NewInvalidConfigurationError(op, "log.format", "expected auto, console or json", c.Log.Format)
	}
	return nil
}

// Kind returns the parsed search kind. Validate has already checked it.
func (c *Config) Kind() model_selection.Kind {
	k, _ := model_selection.ParseKind(c.Search.Kind)
	return k
}

// ExtraOptions builds the search options. n_iter and random_state are only
// included for randomized searches.
func (c *Config) ExtraOptions() map[string]interface{} {
	opts := map[string]interface{}{
		model_selection.OptionNJobs: c.Search.NJobs,
	}
	if c.Search.ReturnTrainScore {
		opts[model_selection.OptionReturnTrainScore] = true
	}
	if c.Kind() == model_selection.RandomizedSample {
		opts[model_selection.OptionNIter] = c.Search.NIter
		opts[model_selection.OptionRandomState] = c.Search.RandomState
	}
	return opts
}

// MultiSearchConfig turns the configuration into orchestrator input. Every
// estimator is a registry factory so each candidate gets a fresh model.
func (c *Config) MultiSearchConfig() model_selection.MultiSearchConfig {
	estimators := make([]interface{}, len(c.Estimators))
	grids := make([][]model_selection.Grid, len(c.Estimators))
	for i, e := range c.Estimators {
		factory, _ := model.Lookup(e.Type)
		estimators[i] = factory
		grids[i] = make([]model_selection.Grid, len(e.Grid))
		for j, g := range e.Grid {
			grids[i][j] = model_selection.Grid(g)
		}
	}
	return model_selection.MultiSearchConfig{
		Estimators:     estimators,
		Grids:          grids,
		CVFolds:        c.Search.CVFolds,
		Scoring:        c.Search.Scoring,
		Kind:           c.Kind(),
		ExtraOptions:   c.ExtraOptions(),
		SampleFraction: c.Search.SampleFraction,
		SaveJob:        c.Output.Save,
		Filename:       c.Output.Filename,
	}
}

// SearchOptions returns the options implied by the configuration.
func (c *Config) SearchOptions() ([]model_selection.Option, error) {
	var opts []model_selection.Option
	if c.Search.Transformer != "" {
		t, err := preprocessing.New(c.Search.Transformer)
		if err != nil {
			return nil, err
		}
		opts = append(opts, model_selection.WithTransformer(t))
	}
	return opts, nil
}

// CommaRune returns the CSV field separator.
func (c *Config) CommaRune() rune {
	return []rune(c.Data.Comma)[0]
}
