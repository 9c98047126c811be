package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/labelembed/dataset"
	"github.com/YuminosukeSato/labelembed/internal/config"
	"github.com/YuminosukeSato/labelembed/internal/report"
	"github.com/YuminosukeSato/labelembed/internal/telemetry"
	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
	"github.com/YuminosukeSato/labelembed/sklearn/embedding"
)

type fitOptions struct {
	input           string
	output          string
	modelPath       string
	labels          int
	passthrough     []string
	kind            string
	dimensions      int
	regressor       string
	seed            int64
	sweeps          int
	nJobs           int
	keepLabels      bool
	standardize     bool
	maxSweeps       int
	lossPlot        string
	scatterPlot     string
	metricsTextfile string
	stress          bool
}

func newFitCmd(root *rootOptions) *cobra.Command {
	opts := &fitOptions{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Train an embedder on a CSV file",
		Long: `Train an embedder, write the embedded training data and save the model.

Settings are resolved in this order (highest first): flags, LABELEMBED_*
environment variables, the --config file, defaults.

Examples:
  # Nonlinear embedding with 8 dimensions and a small forest per dimension
  labelembed fit --input train.csv --labels 5 --dimensions 8 \
    --regressor "forest n_estimators=50" --output train_emb.csv --model emb.bin

  # Linear projection, keeping an id column
  labelembed fit --kind linear --input train.csv --labels 5 --passthrough id \
    --output train_emb.csv --model emb.bin --loss-plot loss.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFit(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "training CSV file (required)")
	f.StringVar(&opts.output, "output", "", "where to write the embedded training data")
	f.StringVar(&opts.modelPath, "model", "", "where to save the trained embedder")
	f.IntVar(&opts.labels, "labels", 0, "number of leading label columns")
	f.StringSliceVar(&opts.passthrough, "passthrough", nil, "columns copied to the output unchanged")
	f.StringVar(&opts.kind, "kind", "", "embedder kind: jaccard or linear")
	f.IntVar(&opts.dimensions, "dimensions", 0, "embedding dimensions (0: 16 for jaccard, feature count for linear)")
	f.StringVar(&opts.regressor, "regressor", "", `per-dimension regressor: forest, tree, linear or gbdt, e.g. "forest n_estimators=50"`)
	f.Int64Var(&opts.seed, "seed", 0, "random seed (random when unset)")
	f.IntVar(&opts.sweeps, "sweeps", 0, "target-fitting sweeps (jaccard)")
	f.IntVar(&opts.nJobs, "n-jobs", 0, "dimension regressors trained concurrently (jaccard)")
	f.IntVar(&opts.maxSweeps, "max-sweeps", 0, "sweep cap (linear, 0 = none)")
	f.BoolVar(&opts.keepLabels, "keep-labels", false, "copy label columns into the output")
	f.BoolVar(&opts.standardize, "standardize", false, "z-score features before projecting (linear)")
	f.StringVar(&opts.lossPlot, "loss-plot", "", "write the loss curve to this image file")
	f.StringVar(&opts.scatterPlot, "scatter-plot", "", "write a scatter of the first two coordinates")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file (implies --stress)")
	f.BoolVar(&opts.stress, "stress", false, "report the training embedding stress (quadratic in the number of instances)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// flagKeys maps fit flags to configuration keys.
var flagKeys = map[string]string{
	"labels":           "data.labels",
	"passthrough":      "data.passthrough",
	"kind":             "embedder.kind",
	"dimensions":       "embedder.dimensions",
	"regressor":        "embedder.regressor",
	"seed":             "embedder.seed",
	"sweeps":           "embedder.sweeps",
	"n-jobs":           "embedder.n_jobs",
	"max-sweeps":       "embedder.max_sweeps",
	"keep-labels":      "embedder.keep_labels",
	"standardize":      "embedder.standardize",
	"loss-plot":        "output.loss_plot",
	"scatter-plot":     "output.scatter_plot",
	"metrics-textfile": "output.metrics_textfile",
	"stress":           "output.stress",
}

func (o *fitOptions) overrides(cmd *cobra.Command, root *rootOptions) map[string]any {
	out := root.overrides(cmd)
	values := map[string]any{
		"labels":           o.labels,
		"passthrough":      o.passthrough,
		"kind":             o.kind,
		"dimensions":       o.dimensions,
		"regressor":        o.regressor,
		"seed":             o.seed,
		"sweeps":           o.sweeps,
		"n-jobs":           o.nJobs,
		"max-sweeps":       o.maxSweeps,
		"keep-labels":      o.keepLabels,
		"standardize":      o.standardize,
		"loss-plot":        o.lossPlot,
		"scatter-plot":     o.scatterPlot,
		"metrics-textfile": o.metricsTextfile,
		"stress":           o.stress,
	}
	for flag, key := range flagKeys {
		if cmd.Flags().Changed(flag) {
			out[key] = values[flag]
		}
	}
	return out
}

func runFit(cmd *cobra.Command, root *rootOptions, opts *fitOptions) error {
	cfg, err := config.LoadWithOverrides(root.configPath, opts.overrides(cmd, root))
	if err != nil {
		return err
	}
	if err := log.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("labelembed.fit")

	tbl, err := readTable(opts.input, cfg.Data.Labels, cfg.Data.Passthrough)
	if err != nil {
		return err
	}

	history := &embedding.LossHistory{}
	fitMetrics := telemetry.NewFitMetrics()
	progress := embedding.MultiProgress{history, fitMetrics, embedding.NewLogProgress(logger, 100)}

	emb, err := buildEmbedder(cfg, progress)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := emb.FitTransform(tbl)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fitMetrics.ObserveFit(modelName(emb), elapsed, tbl.NumRows())
	summary := fmt.Sprintf("trained %s: %d instances, %d dimensions",
		modelName(emb), tbl.NumRows(), emb.Dimensions())
	fields := []any{
		log.ModelNameKey, modelName(emb),
		log.SamplesKey, tbl.NumRows(),
		log.DimensionsKey, emb.Dimensions(),
		log.DurationMsKey, elapsed.Milliseconds(),
	}
	if cfg.Output.WantsStress() {
		stress, err := trainingStress(emb, tbl)
		if err != nil {
			return err
		}
		fitMetrics.ObserveStress(modelName(emb), stress)
		fields = append(fields, log.StressKey, stress)
		summary += fmt.Sprintf(", stress %.4f", stress)
	}
	logger.Info("Fit completed", fields...)

	if opts.output != "" {
		if err := writeTable(opts.output, out); err != nil {
			return err
		}
	}
	if opts.modelPath != "" {
		if err := saveEmbedder(opts.modelPath, emb); err != nil {
			return err
		}
	}
	if err := writeArtifacts(cfg.Output, emb, tbl, history, fitMetrics); err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
	return err
}

func buildEmbedder(cfg *config.Config, progress embedding.ProgressReporter) (embedding.Embedder, error) {
	e := cfg.Embedder
	switch e.Kind {
	case config.KindLinear:
		opts := []embedding.LinearOption{
			embedding.WithLinearDimensions(e.Dimensions),
			embedding.WithLearningRate(e.LearningRate),
			embedding.WithPatience(e.Patience),
			embedding.WithMaxSweeps(e.MaxSweeps),
			embedding.WithStandardize(e.Standardize),
			embedding.WithLinearKeepLabels(e.KeepLabels),
			embedding.WithLinearProgress(progress),
		}
		if e.Seed != nil {
			opts = append(opts, embedding.WithLinearRandomState(*e.Seed))
		}
		return embedding.NewLinearJaccardEmbedder(opts...)

	default:
		spec, err := e.RegressorSpec()
		if err != nil {
			return nil, err
		}
		opts := []embedding.Option{
			embedding.WithRegressorSpec(spec),
			embedding.WithSweeps(e.Sweeps),
			embedding.WithStepSize(e.StepSize),
			embedding.WithNJobs(e.NJobs),
			embedding.WithKeepLabels(e.KeepLabels),
			embedding.WithProgress(progress),
		}
		if e.Dimensions > 0 {
			opts = append(opts, embedding.WithDimensions(e.Dimensions))
		}
		if e.Seed != nil {
			opts = append(opts, embedding.WithRandomState(*e.Seed))
		}
		return embedding.NewJaccardEmbedder(opts...)
	}
}

// trainingStress measures how well the trained embedding reproduces the
// Jaccard distances of the training table. It is 0 for a single instance.
// Every pair is compared, so callers ask for it explicitly.
func trainingStress(emb embedding.Embedder, tbl *dataset.Table) (float64, error) {
	if tbl.NumRows() < 2 {
		return 0, nil
	}
	labels, err := metrics.NewLabelSets(tbl.LabelRows())
	if err != nil {
		return 0, err
	}
	embedded, err := emb.Embed(tbl.Features())
	if err != nil {
		return 0, err
	}
	return metrics.EmbeddingStress(embedded, labels)
}

func writeArtifacts(out config.OutputConfig, emb embedding.Embedder, tbl *dataset.Table,
	history *embedding.LossHistory, fitMetrics *telemetry.FitMetrics) error {
	if out.LossPlot != "" {
		if err := report.LossCurve(history.Values(), modelName(emb)+" training loss", out.LossPlot); err != nil {
			return err
		}
	}
	if out.ScatterPlot != "" {
		embedded, err := emb.Embed(tbl.Features())
		if err != nil {
			return err
		}
		if err := report.Scatter(embedded, labelCardinality(tbl), modelName(emb), out.ScatterPlot); err != nil {
			return err
		}
	}
	if out.MetricsTextfile != "" {
		if err := fitMetrics.WriteTextfile(out.MetricsTextfile); err != nil {
			return err
		}
	}
	return nil
}

// labelCardinality groups instances by the number of labels they carry.
func labelCardinality(tbl *dataset.Table) []int {
	rows := tbl.LabelRows()
	groups := make([]int, len(rows))
	for i, row := range rows {
		for _, v := range row {
			if v != 0 {
				groups[i]++
			}
		}
	}
	return groups
}

func modelName(e embedding.Embedder) string {
	switch e.(type) {
	case *embedding.LinearJaccardEmbedder:
		return "LinearJaccardEmbedder"
	default:
		return "JaccardEmbedder"
	}
}

func readTable(path string, numLabels int, passthrough []string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open input")
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return dataset.ReadCSV(f, name, numLabels, passthrough...)
}

func writeTable(path string, t *dataset.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close output")
		}
	}()
	return t.WriteCSV(f)
}

func saveEmbedder(path string, e embedding.Embedder) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close model file")
		}
	}()
	return embedding.Save(f, e)
}
