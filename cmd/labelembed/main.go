// Package main implements the labelembed CLI: fit a Jaccard label embedding
// on a CSV file, and apply a saved one to new data.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "labelembed",
		Short: "Embed multi-label data so that distances follow Jaccard distances",
		Long: `labelembed learns a low-dimensional Euclidean embedding of multi-label
instances. The squared distance between two embedded instances approximates
the Jaccard distance between their label sets.

Input files are CSV with a header row. The first --labels columns hold 0/1
label indicators; the remaining columns are numeric features, except those
named with --passthrough, which are copied to the output unchanged.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console)")

	cmd.AddCommand(newFitCmd(opts))
	cmd.AddCommand(newTransformCmd(opts))
	return cmd
}

// overrides collects the persistent flags the user set.
func (o *rootOptions) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	if cmd.Flags().Changed("log-level") {
		out["log.level"] = o.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		out["log.format"] = o.logFormat
	}
	return out
}
