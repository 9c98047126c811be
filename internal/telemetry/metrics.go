// Package telemetry exports fit progress as Prometheus metrics.
//
// A fit is a batch job, so metrics live in a private registry and are written
// once to a node_exporter textfile instead of being served over HTTP.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/sklearn/embedding"
)

// FitMetrics implements embedding.ProgressReporter.
//
// Metrics:
//   - labelembed_sweeps_total{fitter} - completed sweeps
//   - labelembed_sweep_loss{fitter} - per-instance loss of the last sweep
//   - labelembed_best_loss{fitter} - best per-instance sweep loss
//   - labelembed_stale_sweeps{fitter} - consecutive sweeps without improvement
//   - labelembed_fit_duration_seconds{embedder} - wall time of the fit
//   - labelembed_fit_samples{embedder} - training instances
//   - labelembed_embedding_stress{embedder} - mean squared distance error after the fit
type FitMetrics struct {
	registry *prometheus.Registry

	sweeps   *prometheus.CounterVec
	loss     *prometheus.GaugeVec
	bestLoss *prometheus.GaugeVec
	stale    *prometheus.GaugeVec

	duration *prometheus.GaugeVec
	samples  *prometheus.GaugeVec
	stress   *prometheus.GaugeVec
}

// NewFitMetrics creates the collectors in a fresh registry.
func NewFitMetrics() *FitMetrics {
	m := &FitMetrics{
		registry: prometheus.NewRegistry(),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelembed_sweeps_total",
			Help: "Total number of completed training sweeps",
		}, []string{"fitter"}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelembed_sweep_loss",
			Help: "Per-instance loss of the most recent sweep",
		}, []string{"fitter"}),
		bestLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelembed_best_loss",
			Help: "Best per-instance sweep loss so far",
		}, []string{"fitter"}),
		stale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelembed_stale_sweeps",
			Help: "Consecutive sweeps without loss improvement",
		}, []string{"fitter"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelembed_fit_duration_seconds",
			Help: "Wall time of the last fit in seconds",
		}, []string{"embedder"}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelembed_fit_samples",
			Help: "Number of training instances of the last fit",
		}, []string{"embedder"}),
		stress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labelembed_embedding_stress",
			Help: "Mean squared error between embedded squared distances and Jaccard distances",
		}, []string{"embedder"}),
	}
	m.registry.MustRegister(m.sweeps, m.loss, m.bestLoss, m.stale, m.duration, m.samples, m.stress)
	return m
}

// OnSweep implements embedding.ProgressReporter.
func (m *FitMetrics) OnSweep(s embedding.SweepStats) {
	m.sweeps.WithLabelValues(s.Fitter).Inc()
	m.loss.WithLabelValues(s.Fitter).Set(s.Loss)
	m.bestLoss.WithLabelValues(s.Fitter).Set(s.BestLoss)
	m.stale.WithLabelValues(s.Fitter).Set(float64(s.StaleSweeps))
}

// ObserveFit records the duration and size of one fit.
func (m *FitMetrics) ObserveFit(embedder string, d time.Duration, samples int) {
	m.duration.WithLabelValues(embedder).Set(d.Seconds())
	m.samples.WithLabelValues(embedder).Set(float64(samples))
}

// ObserveStress records the training stress of the last fit. The gauge is
// absent from the exposition until the first call.
func (m *FitMetrics) ObserveStress(embedder string, stress float64) {
	m.stress.WithLabelValues(embedder).Set(stress)
}

// Registry returns the registry holding the fit metrics.
func (m *FitMetrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the metrics in text exposition format, atomically.
func (m *FitMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}

var _ embedding.ProgressReporter = (*FitMetrics)(nil)
