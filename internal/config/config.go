// Package config loads labelembed run configuration from defaults, an
// optional YAML file and LABELEMBED_* environment variables.
package config

import (
	"strings"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
	"github.com/YuminosukeSato/labelembed/sklearn/regressor"
)

// Embedder kinds.
const (
	KindJaccard = "jaccard"
	KindLinear  = "linear"
)

// Config is the full run configuration.
type Config struct {
	Embedder EmbedderConfig `koanf:"embedder"`
	Data     DataConfig     `koanf:"data"`
	Log      LogConfig      `koanf:"log"`
	Output   OutputConfig   `koanf:"output"`
}

// EmbedderConfig selects and tunes the embedder.
type EmbedderConfig struct {
	// Kind is "jaccard" or "linear".
	Kind string `koanf:"kind"`
	// Dimensions 0 uses the kind's default: 16 for jaccard, F for linear.
	Dimensions int `koanf:"dimensions"`
	// Seed is drawn at random when unset.
	Seed *int64 `koanf:"seed"`

	// Regressor is a specification such as "forest n_estimators=50". When
	// RegressorParams is set, Regressor must be a bare kind.
	Regressor       string         `koanf:"regressor"`
	RegressorParams map[string]any `koanf:"regressor_params"`
	Sweeps          int            `koanf:"sweeps"`
	StepSize        float64        `koanf:"step_size"`
	NJobs           int            `koanf:"n_jobs"`

	LearningRate float64 `koanf:"learning_rate"`
	Patience     int     `koanf:"patience"`
	MaxSweeps    int     `koanf:"max_sweeps"`
	Standardize  bool    `koanf:"standardize"`

	KeepLabels bool `koanf:"keep_labels"`
}

// DataConfig describes the input table layout.
type DataConfig struct {
	// Labels is the number of leading label columns.
	Labels int `koanf:"labels"`
	// Passthrough names columns copied to the output untouched.
	Passthrough []string `koanf:"passthrough"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// OutputConfig lists optional artefacts of a fit run.
type OutputConfig struct {
	// Stress reports the training embedding stress, which costs O(N²·D).
	// A metrics textfile implies it.
	Stress          bool   `koanf:"stress"`
	MetricsTextfile string `koanf:"metrics_textfile"`
	LossPlot        string `koanf:"loss_plot"`
	ScatterPlot     string `koanf:"scatter_plot"`
}

// defaults is loaded before any file or environment value.
func defaults() map[string]any {
	return map[string]any{
		"embedder.kind":          KindJaccard,
		"embedder.dimensions":    0,
		"embedder.regressor":     regressor.DefaultKind,
		"embedder.sweeps":        10000,
		"embedder.step_size":     0.01,
		"embedder.n_jobs":        1,
		"embedder.learning_rate": 1e-4,
		"embedder.patience":      5,
		"embedder.max_sweeps":    0,
		"output.stress":          false,
		"log.level":              "info",
		"log.format":             "json",
	}
}

// WantsStress reports whether a fit run should compute the training stress.
func (o OutputConfig) WantsStress() bool {
	return o.Stress || o.MetricsTextfile != ""
}

// RegressorSpec resolves the regressor specification.
func (c *EmbedderConfig) RegressorSpec() (*regressor.Spec, error) {
	if len(c.RegressorParams) > 0 {
		kind := strings.TrimSpace(c.Regressor)
		if strings.ContainsAny(kind, " \t=") {
			return nil, errors.NewValidationError("embedder.regressor",
				"must be a bare kind when regressor_params is set", c.Regressor)
		}
		return regressor.FromMap(kind, c.RegressorParams)
	}
	return regressor.Parse(c.Regressor)
}

// Validate checks every section.
func (c *Config) Validate() error {
	e := &c.Embedder
	switch e.Kind {
	case KindJaccard:
		if e.Dimensions < 0 {
			return errors.NewValidationError("embedder.dimensions", "must be non-negative", e.Dimensions)
		}
		if e.Sweeps < 1 {
			return errors.NewValidationError("embedder.sweeps", "must be positive", e.Sweeps)
		}
		if !(e.StepSize > 0) {
			return errors.NewValidationError("embedder.step_size", "must be positive", e.StepSize)
		}
		if _, err := e.RegressorSpec(); err != nil {
			return err
		}
	case KindLinear:
		if !(e.LearningRate > 0) {
			return errors.NewValidationError("embedder.learning_rate", "must be positive", e.LearningRate)
		}
		if e.Patience < 1 {
			return errors.NewValidationError("embedder.patience", "must be at least 1", e.Patience)
		}
		if e.MaxSweeps < 0 {
			return errors.NewValidationError("embedder.max_sweeps", "must be non-negative", e.MaxSweeps)
		}
	default:
		return errors.NewValidationError("embedder.kind", "must be jaccard or linear", e.Kind)
	}

	if c.Data.Labels < 1 {
		return errors.NewValidationError("data.labels", "at least one label column is required", c.Data.Labels)
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		return errors.NewValidationError("log.level", "must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	return nil
}
