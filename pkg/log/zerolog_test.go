package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/YuminosukeSato/labelembed/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug).With(ModelNameKey, "JaccardEmbedder")

	logger.Info("Training started", SamplesKey, 4, DimensionsKey, 2, LossKey, 0.25)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "Training started", lines[0]["message"])
	assert.Equal(t, "JaccardEmbedder", lines[0][ModelNameKey])
	assert.Equal(t, float64(4), lines[0][SamplesKey])
	assert.Equal(t, 0.25, lines[0][LossKey])
}

func TestZerologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])

	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestZerologLogger_ErrorDetail(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	err := lerrors.NewDimensionError("Transform", 5, 3, 1)
	logger.Error("Transform failed", err, OperationKey, OperationTransform)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0][ErrAttrKey], "dimension mismatch")
	assert.Equal(t, OperationTransform, lines[0][OperationKey])
	assert.NotEmpty(t, lines[0][StacktraceKey])

	detail, ok := lines[0][ErrAttrKey+".detail"].(map[string]interface{})
	require.True(t, ok, "expected structured detail for DimensionError")
	assert.Equal(t, float64(5), detail["expected"])
}

func TestSetup(t *testing.T) {
	previous := GetLogger()
	defer SetLogger(previous)

	var buf bytes.Buffer
	require.NoError(t, Setup("debug", "json", &buf))
	GetLoggerWithName("embedding.targets").Debug("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "embedding.targets", lines[0][ComponentKey])

	var valErr *lerrors.ValidationError
	assert.True(t, lerrors.As(Setup("loud", "json", &buf), &valErr))
	assert.True(t, lerrors.As(Setup("info", "xml", &buf), &valErr))
	assert.NoError(t, Setup("warn", "console", &buf))
}

func TestWarningsRouteToGlobalLogger(t *testing.T) {
	previous := GetLogger()
	defer SetLogger(previous)

	logger, _ := NewTestLogger(LevelDebug)
	SetLogger(logger)

	lerrors.Warn(lerrors.NewConvergenceWarning("TargetFitter", 10000, ""))

	assert.True(t, logger.ContainsMessage("TargetFitter did not converge after 10000 sweeps"))
}

func TestTestLogger(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	child := logger.With(ComponentKey, "embedding.linear")

	child.Debug("dropped")
	child.Info("sweep done", SweepKey, 3)
	child.Error("failed", lerrors.New("boom"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, logger.ContainsField(SweepKey, float64(3)))
	assert.True(t, logger.ContainsField(ComponentKey, "embedding.linear"))
	assert.True(t, logger.ContainsField(ErrAttrKey, "boom"))
	assert.False(t, logger.ContainsMessage("dropped"))
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("WARN")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, lvl)

	_, ok = ParseLevel("verbose")
	assert.False(t, ok)
}
