package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/dataset"
	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
)

// Embedder is a trained-once filter that replaces the label and feature
// columns of a table with D embedding coordinates.
type Embedder interface {
	// Fit trains on t. A trained embedder cannot be trained again.
	Fit(t *dataset.Table) error
	// Transform embeds every row of t. The embedder must be trained.
	Transform(t *dataset.Table) (*dataset.Table, error)
	// FitTransform trains on t and embeds it.
	FitTransform(t *dataset.Table) (*dataset.Table, error)
	// Process trains on the first call, then only embeds.
	Process(t *dataset.Table) (*dataset.Table, error)
	// Embed maps a raw N x F feature matrix to N x D coordinates.
	Embed(X mat.Matrix) (*mat.Dense, error)
	Dimensions() int
	IsFitted() bool
	Schema() Schema
}

// Schema is the column layout an embedder was trained on.
type Schema struct {
	Labels      []string
	Features    []string
	Passthrough []string
	Dimensions  int
}

// TargetName returns the name of output coordinate k.
func TargetName(k int) string { return fmt.Sprintf("target%d", k) }

// learner is the variant-specific half of a filter.
type learner interface {
	// train fits the model and returns the resolved dimensionality.
	train(X *mat.Dense, labels []*roaring.Bitmap) (int, error)
	// embed applies the trained model to a feature matrix of the right width.
	embed(X mat.Matrix) (*mat.Dense, error)
	randomState() int64
}

// filterBase implements the Untrained -> Trained lifecycle shared by both
// embedders. The state only moves to Trained after a fit succeeds.
type filterBase struct {
	mu         sync.Mutex
	name       string
	state      *model.StateManager
	schema     Schema
	keepLabels bool
}

func newFilterBase(name string) filterBase {
	return filterBase{name: name, state: model.NewStateManager()}
}

func (b *filterBase) logger() log.Logger { return log.GetLoggerWithName(b.name) }

func (b *filterBase) fit(t *dataset.Table, l learner) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fitLocked(t, l)
}

func (b *filterBase) fitLocked(t *dataset.Table, l learner) (err error) {
	op := b.name + ".Fit"
	defer errors.Recover(&err, op)

	if b.state.IsFitted() {
		return errors.Wrap(errors.ErrAlreadyFitted, op)
	}
	n, nLabels, nFeatures := t.NumRows(), t.NumLabels(), t.NumFeatures()
	if n == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if nFeatures == 0 {
		return errors.NewModelError(op, "no feature columns", errors.ErrEmptyData)
	}
	if nLabels == 0 {
		return errors.NewValidationError("labels", "at least one label column is required", nLabels)
	}

	labels, err := metrics.NewLabelSets(t.LabelRows())
	if err != nil {
		return err
	}
	X := t.Features()

	logger := b.logger()
	logger.Info("Training Jaccard embedder",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		log.LabelsKey, nLabels,
		log.RandomSeedKey, l.randomState(),
	)
	start := time.Now()

	dims, err := l.train(X, labels)
	if err != nil {
		logger.Error("Training failed", err, log.OperationKey, log.OperationFit)
		return err
	}

	if n > 1 && logger.Enabled(context.Background(), log.LevelDebug) {
		if embedded, err := l.embed(X); err == nil {
			if stress, err := metrics.EmbeddingStress(embedded, labels); err == nil {
				logger.Debug("Training embedding stress", log.StressKey, stress)
			}
		}
	}

	b.schema = Schema{
		Labels:      t.LabelNames(),
		Features:    t.FeatureNames(),
		Passthrough: namesAt(t, t.PassthroughIndices()),
		Dimensions:  dims,
	}
	b.state.SetDimensions(nFeatures, n)
	b.state.SetFitted()

	logger.Info("Training completed",
		log.DimensionsKey, dims,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (b *filterBase) transform(t *dataset.Table, l learner) (*dataset.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transformLocked(t, l)
}

func (b *filterBase) transformLocked(t *dataset.Table, l learner) (*dataset.Table, error) {
	op := b.name + ".Transform"
	if err := b.state.RequireFitted(b.name, "Transform"); err != nil {
		return nil, err
	}
	if got := t.NumLabels(); got != len(b.schema.Labels) {
		return nil, errors.NewSchemaError(op, "labels", len(b.schema.Labels), got)
	}
	if got := t.NumFeatures(); got != len(b.schema.Features) {
		return nil, errors.NewSchemaError(op, "features", len(b.schema.Features), got)
	}

	passIdx := t.PassthroughIndices()
	labelIdx := t.LabelIndices()
	if !b.keepLabels {
		labelIdx = nil
	}
	d := b.schema.Dimensions

	attrs := make([]dataset.Attribute, 0, len(passIdx)+len(labelIdx)+d)
	for _, c := range passIdx {
		attrs = append(attrs, t.Attribute(c))
	}
	for _, c := range labelIdx {
		attrs = append(attrs, t.Attribute(c))
	}
	for k := 0; k < d; k++ {
		attrs = append(attrs, dataset.Attribute{Name: TargetName(k), Role: dataset.RoleFeature})
	}
	out, err := dataset.NewTable(t.Name(), attrs)
	if err != nil {
		return nil, err
	}
	if t.NumRows() == 0 {
		return out, nil
	}

	embedded, err := l.embed(t.Features())
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(attrs))
	for i := 0; i < t.NumRows(); i++ {
		pos := 0
		for _, c := range passIdx {
			values[pos] = t.Value(i, c)
			pos++
		}
		for _, c := range labelIdx {
			values[pos] = t.Value(i, c)
			pos++
		}
		for k := 0; k < d; k++ {
			values[pos] = embedded.At(i, k)
			pos++
		}
		if err := out.AddRow(values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *filterBase) process(t *dataset.Table, l learner) (*dataset.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.IsFitted() {
		if err := b.fitLocked(t, l); err != nil {
			return nil, err
		}
	}
	return b.transformLocked(t, l)
}

func (b *filterBase) embedMatrix(X mat.Matrix, l learner) (*mat.Dense, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.state.RequireFitted(b.name, "Embed"); err != nil {
		return nil, err
	}
	if err := b.state.RequireFeatures(b.name+".Embed", X); err != nil {
		return nil, err
	}
	return l.embed(X)
}

// IsFitted reports whether the embedder has been trained.
func (b *filterBase) IsFitted() bool { return b.state.IsFitted() }

// Schema returns the layout recorded at fit time; zero before training.
func (b *filterBase) Schema() Schema {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.schema
}

// restore installs a schema loaded from disk and marks the filter trained.
func (b *filterBase) restore(s Schema, keepLabels bool) {
	b.schema = s
	b.keepLabels = keepLabels
	b.state.SetDimensions(len(s.Features), 0)
	b.state.SetFitted()
}

func namesAt(t *dataset.Table, cols []int) []string {
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = t.Attribute(c).Name
	}
	return names
}
