package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/labelembed/sklearn/embedding"
)

func TestFitMetrics_OnSweep(t *testing.T) {
	m := NewFitMetrics()

	m.OnSweep(embedding.SweepStats{Fitter: "projection", Sweep: 1, Loss: 0.5, BestLoss: 0.5})
	m.OnSweep(embedding.SweepStats{Fitter: "projection", Sweep: 2, Loss: 0.7, BestLoss: 0.5, StaleSweeps: 1})
	m.OnSweep(embedding.SweepStats{Fitter: "targets", Sweep: 1, Loss: 0.2, BestLoss: 0.2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweeps.WithLabelValues("projection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("targets")))
	assert.Equal(t, 0.7, testutil.ToFloat64(m.loss.WithLabelValues("projection")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.bestLoss.WithLabelValues("projection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stale.WithLabelValues("projection")))
}

func TestFitMetrics_Textfile(t *testing.T) {
	m := NewFitMetrics()
	m.OnSweep(embedding.SweepStats{Fitter: "targets", Sweep: 1, Loss: 0.25, BestLoss: 0.25})
	m.ObserveFit("JaccardEmbedder", 1500*time.Millisecond, 40)

	path := filepath.Join(t.TempDir(), "fit.prom")
	require.NoError(t, m.WriteTextfile(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "labelembed_embedding_stress")

	m.ObserveStress("JaccardEmbedder", 0.03)

	require.NoError(t, m.WriteTextfile(path))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, `labelembed_sweeps_total{fitter="targets"} 1`)
	assert.Contains(t, text, `labelembed_fit_duration_seconds{embedder="JaccardEmbedder"} 1.5`)
	assert.Contains(t, text, `labelembed_fit_samples{embedder="JaccardEmbedder"} 40`)
	assert.Contains(t, text, `labelembed_embedding_stress{embedder="JaccardEmbedder"} 0.03`)
}

func TestFitMetrics_AsProgressReporter(t *testing.T) {
	m := NewFitMetrics()
	var history embedding.LossHistory

	f := embedding.NewTargetFitter(2, 1)
	f.Sweeps = 5
	f.Progress = embedding.MultiProgress{m, &history}
	labels := []*roaring.Bitmap{roaring.BitmapOf(0), roaring.BitmapOf(1), roaring.BitmapOf(0, 1)}
	_, err := f.Fit(labels)
	require.NoError(t, err)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.sweeps.WithLabelValues("targets")))
	assert.Len(t, history.Values(), 5)

	count, err := testutil.GatherAndCount(m.Registry(), "labelembed_sweeps_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
