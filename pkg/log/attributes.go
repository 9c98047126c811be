// Standard attribute keys for labelembed log records.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples")
// so that fit runs can be filtered and aggregated in log analysis.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "JaccardEmbedder", "LinearJaccardEmbedder", "RandomForestRegressor"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "transform", "process", "predict"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape
const (
	// SamplesKey is the number of instances (rows).
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns (F).
	FeaturesKey = "data.features"

	// LabelsKey is the number of label columns (L).
	LabelsKey = "data.labels"

	// DimensionsKey is the embedding dimensionality (D).
	DimensionsKey = "embedding.dimensions"

	// RegressorKey is the canonical regressor specification string.
	RegressorKey = "embedding.regressor"
)

// Training progress and performance
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records the mean per-instance sweep loss.
	LossKey = "metrics.loss"

	// BestLossKey records the best sweep loss seen so far.
	BestLossKey = "metrics.best_loss"

	// StressKey records the embedding stress (see metrics.EmbeddingStress).
	StressKey = "metrics.stress"

	// SweepKey records the sweep number (1-based).
	SweepKey = "training.sweep"

	// IterationKey records the boosting iteration (0-based).
	IterationKey = "training.iteration"

	// StaleSweepsKey records how many consecutive sweeps did not improve the loss.
	StaleSweepsKey = "training.stale_sweeps"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context
const (
	// ErrAttrKey is the field under which error values are logged.
	ErrAttrKey = "error"

	// StacktraceKey contains the cockroachdb stack trace of a logged error.
	StacktraceKey = "error.stacktrace"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationTransform = "transform"
	OperationProcess   = "process"
	OperationPredict   = "predict"

	PhaseTraining  = "training"
	PhaseInference = "inference"
)
