// Package labelembed learns low-dimensional Euclidean embeddings of
// multi-label data in which the squared distance between two embedded
// instances approximates the Jaccard distance between their label sets.
//
// # Embedders
//
// Two embedders share the same pairwise training protocol:
//
//   - sklearn/embedding.JaccardEmbedder first places every training instance
//     at a target coordinate by stochastic gradient descent on the pairwise
//     loss, then trains one regressor per output dimension (random forest by
//     default, see sklearn/regressor) to map features to coordinates.
//   - sklearn/embedding.LinearJaccardEmbedder learns a single D x F projection
//     matrix with Adam and stops once the sweep loss no longer improves.
//
// Both behave as trained-once filters over dataset.Table: the first batch
// trains the embedder, every batch (including the first) is then replaced by
// its passthrough columns followed by target0..target{D-1}.
//
// # Quick Start
//
//	train, err := dataset.ReadCSV(f, "train", 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	emb, err := embedding.NewJaccardEmbedder(
//	    embedding.WithDimensions(8),
//	    embedding.WithRegressor("forest n_estimators=50"),
//	    embedding.WithRandomState(42),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := emb.Process(train)
//
// # Packages
//
//   - metrics: Jaccard distance over roaring bitmaps, embedding stress, regression metrics
//   - dataset: label/feature/passthrough tables and CSV I/O
//   - sklearn/embedding: fitters, embedders, persistence
//   - sklearn/regressor: regressor specifications ("forest n_estimators=50")
//   - sklearn/tree, sklearn/ensemble, sklearn/lightgbm, linear: the regressors
//   - preprocessing: StandardScaler
//   - core/model, core/parallel: shared estimator plumbing
//   - pkg/errors, pkg/log: error types and zerolog-backed logging
//   - cmd/labelembed: the command-line tool
package labelembed
