package lightgbm

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
	"github.com/YuminosukeSato/labelembed/sklearn/tree"
)

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"` // <= 0 => unlimited
	MinDataInLeaf int     `json:"min_data_in_leaf"`

	// Regularization
	Lambda         float64 `json:"lambda_l2"`
	MinGainToSplit float64 `json:"min_gain_to_split"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction"`

	// Objective
	Objective  string  `json:"objective"`
	HuberDelta float64 `json:"huber_delta"`
	FairC      float64 `json:"fair_c"`

	Seed int64 `json:"seed"`
}

func (p *TrainingParams) validate() error {
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be positive", p.NumIterations)
	case !(p.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be positive", p.MinDataInLeaf)
	case p.Lambda < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", p.Lambda)
	case p.MinGainToSplit < 0:
		return errors.NewValidationError("min_gain_to_split", "must be non-negative", p.MinGainToSplit)
	case !(p.BaggingFraction > 0 && p.BaggingFraction <= 1):
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.BaggingFreq < 0:
		return errors.NewValidationError("bagging_freq", "must be non-negative", p.BaggingFreq)
	case !(p.FeatureFraction > 0 && p.FeatureFraction <= 1):
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	}
	return nil
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature    int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
}

// Trainer grows a gradient-boosted ensemble of regression trees.
//
// 各イテレーションで勾配・ヘッシアンを計算し、葉数制限付きの木を1本深さ優先で成長させる。
// 予測値は行ごとにキャッシュし、木を追加するたびに差分だけ更新する。
type Trainer struct {
	params TrainingParams

	X [][]float64
	y []float64

	gradients []float64
	hessians  []float64
	scores    []float64 // current raw prediction per row

	trees     []Tree
	objective ObjectiveFunction
	initScore float64
	losses    []float64

	rnd      *rand.Rand
	features []int // features available to the tree being grown
	leaves   int   // leaves of the tree being grown
}

// NewTrainer creates a new trainer. Zero-valued parameters take LightGBM's defaults.
func NewTrainer(params TrainingParams) *Trainer {
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = 0.1
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = 31
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = 20
	}
	if params.BaggingFraction == 0 {
		params.BaggingFraction = 1.0
	}
	if params.FeatureFraction == 0 {
		params.FeatureFraction = 1.0
	}
	return &Trainer{params: params}
}

// Fit trains the ensemble on X (N x F) and the column y (N x 1).
func (t *Trainer) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Trainer.Fit")

	if err := t.params.validate(); err != nil {
		return err
	}
	rows, target, err := tree.ToRows("Trainer.Fit", X, y)
	if err != nil {
		return err
	}
	objective, err := CreateObjectiveFunction(t.params.Objective, &t.params)
	if err != nil {
		return err
	}

	n, p := len(rows), len(rows[0])
	t.X, t.y = rows, target
	t.objective = objective
	t.initScore = objective.GetInitScore(target)
	t.gradients = make([]float64, n)
	t.hessians = make([]float64, n)
	t.scores = make([]float64, n)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}
	t.trees = t.trees[:0]
	t.losses = t.losses[:0]
	t.rnd = rand.New(rand.NewPCG(uint64(t.params.Seed), uint64(t.params.Seed)))

	logger := log.GetLoggerWithName("lightgbm.trainer")
	bag := make([]int, n)
	for i := range bag {
		bag[i] = i
	}

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.calculateGradients()

		if t.params.BaggingFraction < 1 && t.params.BaggingFreq > 0 && iter%t.params.BaggingFreq == 0 {
			bag = t.sample(n, t.params.BaggingFraction)
		}
		t.features = t.sample(p, t.params.FeatureFraction)

		tr := t.buildTree(iter, bag)
		t.trees = append(t.trees, tr)
		t.updatePredictions(&tr)

		loss := t.calculateLoss()
		if err := errors.CheckScalar("Trainer.Fit loss", loss, iter); err != nil {
			return err
		}
		t.losses = append(t.losses, loss)

		if iter%10 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, iter,
				log.LossKey, loss,
			)
		}
	}
	return nil
}

func (t *Trainer) calculateGradients() {
	for i, target := range t.y {
		t.gradients[i] = t.objective.CalculateGradient(t.scores[i], target)
		t.hessians[i] = t.objective.CalculateHessian(t.scores[i], target)
	}
}

// sample returns a sorted random subset of [0, n) of size max(1, frac*n).
func (t *Trainer) sample(n int, frac float64) []int {
	if frac >= 1 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := int(frac * float64(n))
	if k < 1 {
		k = 1
	}
	picked := t.rnd.Perm(n)[:k]
	sort.Ints(picked)
	return picked
}

func (t *Trainer) buildTree(iter int, sample []int) Tree {
	tr := Tree{TreeIndex: iter, ShrinkageRate: t.params.LearningRate}
	t.leaves = 1
	t.buildNode(&tr, append([]int(nil), sample...), -1, 0)
	tr.NumLeaves = t.leaves
	return tr
}

// buildNode grows the subtree over indices depth first. Every split adds one
// leaf, so splitting stops once the tree holds NumLeaves leaves.
func (t *Trainer) buildNode(tr *Tree, indices []int, parentIdx, depth int) int {
	nodeIdx := len(tr.Nodes)
	tr.Nodes = append(tr.Nodes, Node{NodeID: nodeIdx, ParentID: parentIdx, LeftChild: -1, RightChild: -1})

	canSplit := (t.params.MaxDepth <= 0 || depth < t.params.MaxDepth) &&
		len(indices) >= 2*t.params.MinDataInLeaf &&
		t.leaves < t.params.NumLeaves

	best := SplitInfo{Feature: -1}
	if canSplit {
		best = t.findBestSplit(indices)
	}
	if best.Feature < 0 || best.Gain <= t.params.MinGainToSplit {
		tr.Nodes[nodeIdx].NodeType = LeafNode
		tr.Nodes[nodeIdx].LeafValue = t.calculateLeafValue(indices)
		tr.Nodes[nodeIdx].LeafCount = len(indices)
		return nodeIdx
	}

	t.leaves++
	tr.Nodes[nodeIdx].NodeType = NumericalNode
	tr.Nodes[nodeIdx].SplitFeature = best.Feature
	tr.Nodes[nodeIdx].Threshold = best.Threshold
	tr.Nodes[nodeIdx].Gain = best.Gain

	left, right := t.splitData(indices, best)
	leftChild := t.buildNode(tr, left, nodeIdx, depth+1)
	rightChild := t.buildNode(tr, right, nodeIdx, depth+1)

	tr.Nodes[nodeIdx].LeftChild = leftChild
	tr.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

func (t *Trainer) findBestSplit(indices []int) SplitInfo {
	best := SplitInfo{Feature: -1, Gain: -math.MaxFloat64}
	for _, f := range t.features {
		if split := t.findBestSplitForFeature(indices, f); split.Feature >= 0 && split.Gain > best.Gain {
			best = split
		}
	}
	return best
}

func (t *Trainer) findBestSplitForFeature(indices []int, feature int) SplitInfo {
	order := append([]int(nil), indices...)
	sort.Slice(order, func(a, b int) bool {
		return t.X[order[a]][feature] < t.X[order[b]][feature]
	})

	var totalGrad, totalHess float64
	for _, idx := range order {
		totalGrad += t.gradients[idx]
		totalHess += t.hessians[idx]
	}

	best := SplitInfo{Feature: -1, Gain: -math.MaxFloat64}
	var leftGrad, leftHess float64
	for i := 0; i < len(order)-1; i++ {
		idx := order[i]
		leftGrad += t.gradients[idx]
		leftHess += t.hessians[idx]

		v, next := t.X[idx][feature], t.X[order[i+1]][feature]
		if v == next {
			continue
		}
		leftCount, rightCount := i+1, len(order)-i-1
		if leftCount < t.params.MinDataInLeaf || rightCount < t.params.MinDataInLeaf {
			continue
		}

		gain := t.calculateSplitGain(leftGrad, leftHess, totalGrad-leftGrad, totalHess-leftHess, totalGrad, totalHess)
		if gain > best.Gain {
			best = SplitInfo{
				Feature:    feature,
				Threshold:  (v + next) / 2,
				Gain:       gain,
				LeftCount:  leftCount,
				RightCount: rightCount,
			}
		}
	}
	return best
}

// calculateSplitGain is LightGBM's second-order gain with L2 regularisation.
func (t *Trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.Lambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}

func (t *Trainer) splitData(indices []int, split SplitInfo) (left, right []int) {
	left = make([]int, 0, split.LeftCount)
	right = make([]int, 0, split.RightCount)
	for _, idx := range indices {
		if t.X[idx][split.Feature] <= split.Threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

// calculateLeafValue is the Newton step -G / (H + lambda).
func (t *Trainer) calculateLeafValue(indices []int) float64 {
	var sumGrad, sumHess float64
	for _, idx := range indices {
		sumGrad += t.gradients[idx]
		sumHess += t.hessians[idx]
	}
	const epsilon = 1e-10
	return -sumGrad / (sumHess + t.params.Lambda + epsilon)
}

// updatePredictions adds the new tree's output to every cached score,
// including rows left out of the bag.
func (t *Trainer) updatePredictions(tr *Tree) {
	for i, row := range t.X {
		t.scores[i] += tr.Predict(row)
	}
}

func (t *Trainer) calculateLoss() float64 {
	var loss float64
	for i, target := range t.y {
		loss += t.objective.CalculateLoss(t.scores[i], target)
	}
	return loss / float64(len(t.y))
}

// Losses returns the mean training loss after each iteration.
func (t *Trainer) Losses() []float64 {
	return append([]float64(nil), t.losses...)
}

// GetModel returns the trained model
func (t *Trainer) GetModel() *Model {
	m := &Model{
		Objective:    ObjectiveType(t.objective.Name()),
		NumIteration: len(t.trees),
		LearningRate: t.params.LearningRate,
		NumLeaves:    t.params.NumLeaves,
		MaxDepth:     t.params.MaxDepth,
		InitScore:    t.initScore,
		Trees:        append([]Tree(nil), t.trees...),
	}
	if len(t.X) > 0 {
		m.NumFeatures = len(t.X[0])
	}
	return m
}
