package regression

import (
	"cmp"
	"slices"
)

// Node is one vertex of a fitted tree. Internal nodes route rows with
// x[Feature] <= Threshold to Left and the rest to Right.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Leaf      bool
}

// DecisionTree is a CART regression tree grown on squared-error reduction.
type DecisionTree struct {
	MaxDepth        int // <= 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int

	Nodes     []Node
	NFeatures int
}

// NewDecisionTree returns an unfitted tree with the usual minimum sizes.
func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

func (t *DecisionTree) Fit(X [][]float64, y []float64) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.fitIndex(X, y, idx, width)
	return nil
}

// fitIndex grows the tree on the rows named by idx. Repeated indices act as
// sample weights, which is how bootstrap samples are fed in.
func (t *DecisionTree) fitIndex(X [][]float64, y []float64, idx []int, width int) {
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}
	t.NFeatures = width
	t.Nodes = t.Nodes[:0]
	t.grow(X, y, idx, 0)
}

func (t *DecisionTree) grow(X [][]float64, y []float64, idx []int, depth int) int {
	pos := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Value: meanAt(y, idx), Leaf: true})

	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return pos
	}
	if len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf || pureAt(y, idx) {
		return pos
	}

	feature, threshold, ok := t.bestSplit(X, y, idx)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.grow(X, y, left, depth+1)
	r := t.grow(X, y, right, depth+1)
	t.Nodes[pos] = Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      l,
		Right:     r,
		Value:     t.Nodes[pos].Value,
	}
	return pos
}

// bestSplit scans every feature for the cut that maximises
// sumL²/nL + sumR²/nR, which is equivalent to minimising the children's
// squared error. Features are scanned in order and only a strictly better
// cut replaces the current one.
func (t *DecisionTree) bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += y[i]
	}

	sorted := make([]int, n)
	bestFeature, bestThreshold, found := -1, 0.0, false
	var bestProxy float64

	for f := 0; f < t.NFeatures; f++ {
		copy(sorted, idx)
		slices.SortStableFunc(sorted, func(a, b int) int {
			return cmp.Compare(X[a][f], X[b][f])
		})

		var sumLeft float64
		for k := 0; k < n-1; k++ {
			sumLeft += y[sorted[k]]
			nLeft := k + 1
			nRight := n - nLeft
			if nLeft < t.MinSamplesLeaf {
				continue
			}
			if nRight < t.MinSamplesLeaf {
				break
			}
			lo, hi := X[sorted[k]][f], X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			sumRight := total - sumLeft
			proxy := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
			if !found || proxy > bestProxy {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				bestFeature, bestThreshold, bestProxy, found = f, threshold, proxy, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (t *DecisionTree) predictRow(row []float64) float64 {
	pos := 0
	for {
		node := &t.Nodes[pos]
		if node.Leaf {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			pos = node.Left
		} else {
			pos = node.Right
		}
	}
}

func (t *DecisionTree) Predict(X [][]float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkX(X, t.NFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.predictRow(row)
	}
	return out, nil
}

func (t *DecisionTree) Score(X [][]float64, y []float64) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return R2Score(y, pred)
}

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(pos int) int
	walk = func(pos int) int {
		n := t.Nodes[pos]
		if n.Leaf {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

func meanAt(y []float64, idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func pureAt(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}
