// Package tree implements a CART regression tree.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// minGain below which a split is not worth making (guards against rounding noise).
const minGain = 1e-12

// Node is one entry of the flattened tree. Leaves have Left == Right == -1.
// Fields are exported for gob.
type Node struct {
	Feature   int
	Threshold float64 // x[Feature] <= Threshold => Left
	Value     float64 // mean target of the samples reaching this node
	Samples   int
	Left      int
	Right     int
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Left < 0 }

// DecisionTreeRegressor is a CART regressor minimising squared error.
type DecisionTreeRegressor struct {
	MaxDepth            int     // 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples in each child
	MaxFeatures         int     // 0 => all features, >0 => features sampled per node
	MinImpurityDecrease float64 // minimum weighted impurity decrease to accept a split
	RandomState         int64

	State       *model.StateManager
	Nodes       []Node
	Importances []float64
}

// Option functional config
type Option func(*DecisionTreeRegressor)

// WithMaxDepth sets the maximum depth (root depth = 0).
func WithMaxDepth(d int) Option { return func(t *DecisionTreeRegressor) { t.MaxDepth = d } }

// WithMinSamplesSplit sets the minimum number of samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features considered per split.
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeRegressor) { t.MaxFeatures = k } }

// WithMinImpurityDecrease sets the minimum impurity decrease for a split.
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeRegressor) { t.MinImpurityDecrease = v }
}

// WithRandomState sets the seed used for feature sampling.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor returns a regressor with sklearn-like defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		State:           model.NewStateManager(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetRandomState implements model.Seeded.
func (t *DecisionTreeRegressor) SetRandomState(seed int64) { t.RandomState = seed }

// Fit trains the tree on X (n x p) and the column y (n x 1).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, target, err := ToRows("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	sample := make([]int, len(rows))
	for i := range sample {
		sample[i] = i
	}
	return t.FitSubset(rows, target, sample)
}

// FitSubset trains on the rows listed in sample, which may repeat indices
// (bootstrap samples). The forest calls it to avoid converting X per tree.
func (t *DecisionTreeRegressor) FitSubset(X [][]float64, y []float64, sample []int) error {
	if len(sample) == 0 || len(X) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := t.validate(); err != nil {
		return err
	}
	p := len(X[0])

	b := &builder{
		tree:        t,
		X:           X,
		y:           y,
		p:           p,
		rnd:         rand.New(rand.NewPCG(uint64(t.RandomState), 0)),
		importances: make([]float64, p),
		features:    make([]int, p),
		total:       len(sample),
	}
	idx := make([]int, len(sample))
	copy(idx, sample)

	t.Nodes = t.Nodes[:0]
	b.build(idx, 0)

	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for i := range b.importances {
			b.importances[i] /= total
		}
	}
	t.Importances = b.importances

	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.SetDimensions(p, len(sample))
	t.State.SetFitted()
	return nil
}

func (t *DecisionTreeRegressor) validate() error {
	switch {
	case t.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", t.MaxDepth)
	case t.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	case t.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	case t.MaxFeatures < 0:
		return errors.NewValidationError("max_features", "must be non-negative", t.MaxFeatures)
	}
	return nil
}

// Predict returns an n x 1 column of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.requireFitted("Predict"); err != nil {
		return nil, err
	}
	if err := t.State.RequireFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, t.PredictRow(row))
	}
	return out, nil
}

// PredictRow walks the tree for a single instance. The tree must be fitted.
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	n := t.Nodes[0]
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

// Score returns R² on (X, y).
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetDepth returns the depth of the deepest leaf (a lone root has depth 0).
func (t *DecisionTreeRegressor) GetDepth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	return walk(0, 0)
}

// GetNLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) GetNLeaves() int {
	var n int
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			n++
		}
	}
	return n
}

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (t *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	out := make([]float64, len(t.Importances))
	copy(out, t.Importances)
	return out
}

// GetParams returns the hyperparameters keyed by their spec names.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":             t.MaxDepth,
		"min_samples_split":     t.MinSamplesSplit,
		"min_samples_leaf":      t.MinSamplesLeaf,
		"max_features":          t.MaxFeatures,
		"min_impurity_decrease": t.MinImpurityDecrease,
		"random_state":          t.RandomState,
	}
}

func (t *DecisionTreeRegressor) requireFitted(method string) error {
	if t.State == nil || len(t.Nodes) == 0 {
		return errors.NewNotFittedError("DecisionTreeRegressor", method)
	}
	return t.State.RequireFitted("DecisionTreeRegressor", method)
}

// ToRows copies X and the column y into row slices after checking their shapes.
func ToRows(op string, X, y mat.Matrix) ([][]float64, []float64, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return nil, nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, nil, errors.NewValueError(op, "y must be a column vector")
	}

	rows := make([][]float64, r)
	target := make([]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = mat.Row(nil, i, X)
		target[i] = y.At(i, 0)
	}
	return rows, target, nil
}

// ---------------------------
// builder
// ---------------------------

type builder struct {
	tree        *DecisionTreeRegressor
	X           [][]float64
	y           []float64
	p           int
	rnd         *rand.Rand
	importances []float64
	features    []int
	total       int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// build appends the subtree for idx and returns its node index.
func (b *builder) build(idx []int, depth int) int {
	t := b.tree
	sum, sumSq := b.moments(idx)
	n := float64(len(idx))
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Value: sum / n, Samples: len(idx), Left: -1, Right: -1})

	sse := sumSq - sum*sum/n
	if len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf || sse <= minGain ||
		(t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return self
	}

	best := split{feature: -1}
	for _, f := range b.candidateFeatures() {
		if s := b.bestSplit(idx, f, sum, sumSq); s.feature >= 0 && s.gain > best.gain {
			best = s
		}
	}
	if best.feature < 0 || best.gain <= minGain || best.gain/float64(b.total) < t.MinImpurityDecrease {
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importances[best.feature] += best.gain

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	t.Nodes[self].Feature = best.feature
	t.Nodes[self].Threshold = best.threshold
	t.Nodes[self].Left = l
	t.Nodes[self].Right = r
	return self
}

func (b *builder) moments(idx []int) (sum, sumSq float64) {
	for _, i := range idx {
		v := b.y[i]
		sum += v
		sumSq += v * v
	}
	return sum, sumSq
}

// candidateFeatures draws MaxFeatures features without replacement (partial Fisher-Yates).
func (b *builder) candidateFeatures() []int {
	for j := range b.features {
		b.features[j] = j
	}
	k := b.tree.MaxFeatures
	if k <= 0 || k >= b.p {
		return b.features
	}
	for i := 0; i < k; i++ {
		j := i + b.rnd.IntN(b.p-i)
		b.features[i], b.features[j] = b.features[j], b.features[i]
	}
	return b.features[:k]
}

// bestSplit scans the sorted values of feature f and returns the threshold with
// the largest reduction in squared error.
func (b *builder) bestSplit(idx []int, f int, sum, sumSq float64) split {
	order := make([]int, len(idx))
	copy(order, idx)
	sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

	n := len(order)
	minLeaf := b.tree.MinSamplesLeaf
	parent := sumSq - sum*sum/float64(n)

	best := split{feature: -1}
	var leftSum, leftSq float64
	for pos := 1; pos < n; pos++ {
		v := b.y[order[pos-1]]
		leftSum += v
		leftSq += v * v

		if pos < minLeaf || n-pos < minLeaf {
			continue
		}
		lo, hi := b.X[order[pos-1]][f], b.X[order[pos]][f]
		if lo == hi {
			continue
		}

		nl, nr := float64(pos), float64(n-pos)
		rightSum, rightSq := sum-leftSum, sumSq-leftSq
		child := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
		if gain := parent - child; gain > best.gain {
			threshold := lo + (hi-lo)/2
			if threshold >= hi || math.IsInf(threshold, 0) {
				threshold = lo
			}
			best = split{feature: f, threshold: threshold, gain: gain}
		}
	}
	return best
}
