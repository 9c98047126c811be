package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/labelembed/dataset"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
)

// writeTrainingCSV writes n rows: id, two labels, two features.
func writeTrainingCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("l0,l1,id,x0,x1\n")
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "1,0,%d,1,0.%d\n", i, i)
		} else {
			fmt.Fprintf(&b, "0,1,%d,0,1.%d\n", i, i)
		}
	}
	path := filepath.Join(dir, "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	previous := log.GetLogger()
	defer log.SetLogger(previous)

	cmd := newRootCmd()
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func readOutput(t *testing.T, path string, passthrough ...string) *dataset.Table {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	tbl, err := dataset.ReadCSV(f, "out", 0, passthrough...)
	require.NoError(t, err)
	return tbl
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "fit")
	assert.Contains(t, names, "transform")
	assert.NotEmpty(t, cmd.Long)
}

func TestFitAndTransform_Jaccard(t *testing.T) {
	dir := t.TempDir()
	train := writeTrainingCSV(t, dir, 8)
	model := filepath.Join(dir, "emb.bin")
	trainOut := filepath.Join(dir, "train_emb.csv")

	stdout, err := execute(t, "fit",
		"--input", train, "--labels", "2", "--passthrough", "id",
		"--dimensions", "2", "--regressor", "tree", "--sweeps", "100", "--seed", "3",
		"--output", trainOut, "--model", model,
		"--loss-plot", filepath.Join(dir, "loss.png"),
		"--scatter-plot", filepath.Join(dir, "scatter.png"),
		"--metrics-textfile", filepath.Join(dir, "fit.prom"),
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "trained JaccardEmbedder: 8 instances, 2 dimensions")
	// --metrics-textfile implies the stress report
	assert.Contains(t, stdout, ", stress ")

	fitted := readOutput(t, trainOut)
	assert.Equal(t, 8, fitted.NumRows())
	assert.Equal(t, "id", fitted.Attribute(0).Name)
	assert.Equal(t, "target1", fitted.Attribute(2).Name)

	for _, artefact := range []string{"loss.png", "scatter.png", "fit.prom"} {
		_, err := os.Stat(filepath.Join(dir, artefact))
		assert.NoError(t, err, artefact)
	}
	prom, err := os.ReadFile(filepath.Join(dir, "fit.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `labelembed_sweeps_total{fitter="targets"} 100`)
	assert.Contains(t, string(prom), `labelembed_embedding_stress{embedder="JaccardEmbedder"}`)

	testOut := filepath.Join(dir, "test_emb.csv")
	stdout, err = execute(t, "transform", "--model", model, "--input", train, "--output", testOut)
	require.NoError(t, err)
	assert.Contains(t, stdout, "embedded 8 instances into 2 dimensions")

	again := readOutput(t, testOut)
	for i := 0; i < 8; i++ {
		assert.Equal(t, fitted.Row(i), again.Row(i))
	}
}

func TestFit_LinearFromConfig(t *testing.T) {
	dir := t.TempDir()
	train := writeTrainingCSV(t, dir, 6)
	cfgPath := filepath.Join(dir, "labelembed.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
embedder:
  kind: linear
  seed: 1
  max_sweeps: 20
  keep_labels: true
data:
  labels: 2
  passthrough: [id]
log:
  level: warn
`), 0600))
	out := filepath.Join(dir, "out.csv")

	stdout, err := execute(t, "--config", cfgPath, "fit", "--input", train, "--output", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "trained LinearJaccardEmbedder: 6 instances, 2 dimensions")
	assert.NotContains(t, stdout, "stress")

	tbl := readOutput(t, out)
	names := []string{}
	for _, a := range tbl.Attributes() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"id", "l0", "l1", "target0", "target1"}, names)
}

func TestFit_StressOnRequest(t *testing.T) {
	dir := t.TempDir()
	train := writeTrainingCSV(t, dir, 6)
	args := []string{"fit", "--input", train, "--labels", "2", "--passthrough", "id",
		"--kind", "linear", "--seed", "1", "--max-sweeps", "10", "--log-level", "warn"}

	stdout, err := execute(t, args...)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "stress")

	stdout, err = execute(t, append(args, "--stress")...)
	require.NoError(t, err)
	assert.Regexp(t, `trained LinearJaccardEmbedder: 6 instances, 2 dimensions, stress \d+\.\d{4}`, stdout)
}

func TestFit_Errors(t *testing.T) {
	dir := t.TempDir()
	train := writeTrainingCSV(t, dir, 4)

	_, err := execute(t, "fit", "--input", train)
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr), "got %v", err)
	assert.Equal(t, "data.labels", valErr.ParamName)

	_, err = execute(t, "fit", "--input", train, "--labels", "2", "--regressor", "forest depth=2")
	require.True(t, errors.As(err, &valErr))

	_, err = execute(t, "fit", "--input", filepath.Join(dir, "missing.csv"), "--labels", "2")
	assert.Error(t, err)

	_, err = execute(t, "fit", "--labels", "2")
	assert.Error(t, err)
}

func TestTransform_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	train := writeTrainingCSV(t, dir, 6)
	model := filepath.Join(dir, "emb.bin")

	_, err := execute(t, "fit", "--input", train, "--labels", "2", "--passthrough", "id",
		"--kind", "linear", "--max-sweeps", "10", "--seed", "1", "--model", model)
	require.NoError(t, err)

	other := filepath.Join(dir, "other.csv")
	require.NoError(t, os.WriteFile(other, []byte("l0,l1,id,x0,x1,x2\n1,0,1,0,0,0\n"), 0600))
	_, err = execute(t, "transform", "--model", model, "--input", other, "--output", filepath.Join(dir, "o.csv"))
	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, "features", schemaErr.Part)
}
