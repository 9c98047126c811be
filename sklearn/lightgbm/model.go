package lightgbm

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with numerical split
	NumericalNode
)

// Node represents a single node in a boosted tree.
type Node struct {
	NodeID     int // index in Tree.Nodes
	ParentID   int // -1 for root
	LeftChild  int // -1 if leaf
	RightChild int // -1 if leaf
	NodeType   NodeType

	// split (internal nodes)
	SplitFeature int
	Threshold    float64 // x <= Threshold goes left
	Gain         float64

	// leaf
	LeafValue float64
	LeafCount int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	TreeIndex     int
	NumLeaves     int
	ShrinkageRate float64 // learning rate applied to the leaf values
	Nodes         []Node
}

// Predict returns the shrunk leaf value reached by features.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// ObjectiveType represents the objective function type
type ObjectiveType string

const (
	RegressionL2    ObjectiveType = "regression"
	RegressionL1    ObjectiveType = "regression_l1"
	RegressionHuber ObjectiveType = "huber"
	RegressionFair  ObjectiveType = "fair"
)

// Model is a trained boosted ensemble: InitScore plus the shrunk tree outputs.
type Model struct {
	Objective    ObjectiveType
	NumIteration int
	LearningRate float64
	NumLeaves    int
	MaxDepth     int
	NumFeatures  int
	InitScore    float64

	Trees []Tree
}

// PredictRow returns the raw score for one sample.
func (m *Model) PredictRow(features []float64) float64 {
	pred := m.InitScore
	for i := range m.Trees {
		pred += m.Trees[i].Predict(features)
	}
	return pred
}

// GetFeatureImportance returns per-feature importance.
// importanceType "split" counts splits on each feature; "gain" sums their gain.
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	out := make([]float64, m.NumFeatures)
	for _, t := range m.Trees {
		for _, n := range t.Nodes {
			if n.NodeType != NumericalNode {
				continue
			}
			if importanceType == "gain" {
				out[n.SplitFeature] += n.Gain
			} else {
				out[n.SplitFeature]++
			}
		}
	}
	return out
}
