package embedding

import (
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/preprocessing"
	"github.com/YuminosukeSato/labelembed/sklearn/regressor"
)

var (
	_ Embedder = (*JaccardEmbedder)(nil)
	_ Embedder = (*LinearJaccardEmbedder)(nil)
)

// snapshot is the on-disk form of a trained embedder.
type snapshot struct {
	Envelope   model.Envelope
	Schema     Schema
	KeepLabels bool
	Seed       int64

	// JaccardEmbedder
	Regressor string
	Ensemble  *DimensionEnsemble

	// LinearJaccardEmbedder
	Projection *mat.Dense
	Scaler     *preprocessing.StandardScaler
}

// Save writes a trained embedder to w as a zstd-compressed gob stream.
func Save(w io.Writer, e Embedder) error {
	if !e.IsFitted() {
		name := "Embedder"
		switch e.(type) {
		case *JaccardEmbedder:
			name = "JaccardEmbedder"
		case *LinearJaccardEmbedder:
			name = "LinearJaccardEmbedder"
		}
		return errors.NewNotFittedError(name, "Save")
	}

	var s snapshot
	switch v := e.(type) {
	case *JaccardEmbedder:
		v.mu.Lock()
		defer v.mu.Unlock()
		s = snapshot{
			Regressor: v.spec.String(),
			Ensemble:  v.ensemble,
			Seed:      v.seed,
		}
		s.fill(&v.filterBase)
	case *LinearJaccardEmbedder:
		v.mu.Lock()
		defer v.mu.Unlock()
		s = snapshot{
			Projection: v.projection,
			Scaler:     v.scaler,
			Seed:       v.seed,
		}
		s.fill(&v.filterBase)
	default:
		return errors.NewValueError("embedding.Save", "unsupported embedder type")
	}
	return model.SaveModelToWriter(&s, w)
}

func (s *snapshot) fill(b *filterBase) {
	s.Envelope = model.Envelope{
		ModelType: b.name,
		Version:   model.FormatVersion,
		Features:  b.schema.Features,
		Labels:    b.schema.Labels,
		IsFitted:  true,
	}
	s.Schema = b.schema
	s.KeepLabels = b.keepLabels
}

// Load reads an embedder written by Save. The result is trained and can only
// be used for Transform, Process and Embed.
func Load(r io.Reader) (Embedder, error) {
	var s snapshot
	if err := model.LoadModelFromReader(&s, r); err != nil {
		return nil, err
	}
	if err := s.Envelope.Validate(); err != nil {
		return nil, err
	}

	switch s.Envelope.ModelType {
	case "JaccardEmbedder":
		if s.Ensemble == nil || s.Ensemble.Dimensions() != s.Schema.Dimensions {
			return nil, errors.NewValueError("embedding.Load", "ensemble does not match the recorded dimensions")
		}
		spec, err := regressor.Parse(s.Regressor)
		if err != nil {
			return nil, err
		}
		e := &JaccardEmbedder{
			filterBase: newFilterBase("JaccardEmbedder"),
			dimensions: s.Schema.Dimensions,
			spec:       spec,
			sweeps:     DefaultSweeps,
			stepSize:   DefaultStepSize,
			seed:       s.Seed,
			nJobs:      1,
			ensemble:   s.Ensemble,
		}
		e.restore(s.Schema, s.KeepLabels)
		return e, nil

	case "LinearJaccardEmbedder":
		if s.Projection == nil {
			return nil, errors.NewValueError("embedding.Load", "projection matrix is missing")
		}
		d, f := s.Projection.Dims()
		if d != s.Schema.Dimensions || f != len(s.Schema.Features) {
			return nil, errors.NewValueError("embedding.Load", "projection matrix does not match the recorded schema")
		}
		e := &LinearJaccardEmbedder{
			filterBase:   newFilterBase("LinearJaccardEmbedder"),
			dimensions:   d,
			learningRate: DefaultLearningRate,
			patience:     DefaultPatience,
			seed:         s.Seed,
			projection:   s.Projection,
			scaler:       s.Scaler,
		}
		e.restore(s.Schema, s.KeepLabels)
		return e, nil
	}
	return nil, errors.NewValueError("embedding.Load", "unknown model type "+s.Envelope.ModelType)
}
