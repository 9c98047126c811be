package embedding

import (
	"sync"

	"github.com/YuminosukeSato/labelembed/pkg/log"
)

// SweepStats describes one completed sweep of a fitter.
type SweepStats struct {
	// Fitter is "targets" or "projection".
	Fitter string
	// Sweep is 1-based.
	Sweep int
	// Loss is the sweep loss divided by the number of instances.
	Loss float64
	// BestLoss is the best per-instance sweep loss seen so far.
	BestLoss float64
	// StaleSweeps counts consecutive sweeps without improvement (projection only).
	StaleSweeps int
	Samples     int
}

// ProgressReporter receives per-sweep statistics. Implementations must be cheap;
// they run on the fitting goroutine after every sweep.
type ProgressReporter interface {
	OnSweep(stats SweepStats)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(stats SweepStats)

// OnSweep implements ProgressReporter.
func (f ProgressFunc) OnSweep(stats SweepStats) { f(stats) }

// MultiProgress fans a sweep out to several reporters in order.
type MultiProgress []ProgressReporter

// OnSweep implements ProgressReporter.
func (m MultiProgress) OnSweep(stats SweepStats) {
	for _, r := range m {
		if r != nil {
			r.OnSweep(stats)
		}
	}
}

// LogProgress writes every Every-th sweep to a Logger at debug level.
type LogProgress struct {
	Logger log.Logger
	Every  int
}

// NewLogProgress logs every sweep when every <= 1.
func NewLogProgress(logger log.Logger, every int) *LogProgress {
	if every < 1 {
		every = 1
	}
	return &LogProgress{Logger: logger, Every: every}
}

// OnSweep implements ProgressReporter.
func (p *LogProgress) OnSweep(s SweepStats) {
	if s.Sweep%p.Every != 0 {
		return
	}
	p.Logger.Debug("Sweep completed",
		log.PhaseKey, s.Fitter,
		log.SweepKey, s.Sweep,
		log.LossKey, s.Loss,
		log.BestLossKey, s.BestLoss,
		log.StaleSweepsKey, s.StaleSweeps,
	)
}

// LossHistory records the per-instance loss of every sweep.
type LossHistory struct {
	mu     sync.Mutex
	losses []float64
}

// OnSweep implements ProgressReporter.
func (h *LossHistory) OnSweep(s SweepStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.losses = append(h.losses, s.Loss)
}

// Values returns a copy of the recorded losses.
func (h *LossHistory) Values() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.losses))
	copy(out, h.losses)
	return out
}

func reporterOrNop(r ProgressReporter) ProgressReporter {
	if r == nil {
		return ProgressFunc(func(SweepStats) {})
	}
	return r
}
