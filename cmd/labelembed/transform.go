package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/labelembed/internal/config"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
	"github.com/YuminosukeSato/labelembed/sklearn/embedding"
)

type transformOptions struct {
	modelPath string
	input     string
	output    string
}

func newTransformCmd(root *rootOptions) *cobra.Command {
	opts := &transformOptions{}
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Embed a CSV file with a saved embedder",
		Long: `Apply a saved embedder to new data. The input must have the label,
feature and passthrough columns the embedder was trained with; the label
count and passthrough names are taken from the model.

Examples:
  labelembed transform --model emb.bin --input test.csv --output test_emb.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransform(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.modelPath, "model", "", "saved embedder (required)")
	cmd.Flags().StringVar(&opts.input, "input", "", "CSV file to embed (required)")
	cmd.Flags().StringVar(&opts.output, "output", "", "where to write the embedded data (required)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runTransform(cmd *cobra.Command, root *rootOptions, opts *transformOptions) error {
	level, format := "info", "json"
	if root.configPath != "" || len(root.overrides(cmd)) > 0 {
		// data.labels is not needed here; the model carries the layout
		overrides := root.overrides(cmd)
		overrides["data.labels"] = 1
		cfg, err := config.LoadWithOverrides(root.configPath, overrides)
		if err != nil {
			return err
		}
		level, format = cfg.Log.Level, cfg.Log.Format
	}
	if err := log.Setup(level, format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("labelembed.transform")

	emb, err := loadEmbedder(opts.modelPath)
	if err != nil {
		return err
	}
	schema := emb.Schema()

	tbl, err := readTable(opts.input, len(schema.Labels), schema.Passthrough)
	if err != nil {
		return err
	}
	out, err := emb.Transform(tbl)
	if err != nil {
		return err
	}
	if err := writeTable(opts.output, out); err != nil {
		return err
	}

	logger.Info("Transform completed",
		log.OperationKey, log.OperationTransform,
		log.SamplesKey, tbl.NumRows(),
		log.DimensionsKey, emb.Dimensions(),
	)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "embedded %d instances into %d dimensions\n", out.NumRows(), emb.Dimensions())
	return err
}

func loadEmbedder(path string) (embedding.Embedder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open model file")
	}
	defer f.Close()
	return embedding.Load(f)
}
