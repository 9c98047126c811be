// Package lightgbm implements LightGBM-style gradient boosted regression trees
// in pure Go: second-order leaf values, leaf-count-limited trees, row bagging
// and per-tree feature subsampling.
//
// 使用例:
//
//	reg := lightgbm.NewLGBMRegressor().
//	    WithNumIterations(200).
//	    WithLearningRate(0.05).
//	    WithRandomState(7)
//	if err := reg.Fit(X, y); err != nil {
//	    return err
//	}
//	pred, err := reg.Predict(Xtest)
package lightgbm
