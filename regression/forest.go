package regression

import (
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages bootstrap-trained regression trees. Every split
// considers all features. Tree i draws its bootstrap sample from a PCG
// stream keyed by (Seed, i), so a fit is reproducible for a fixed seed no
// matter how many workers build it.
type RandomForest struct {
	Params    ForestParams
	Seed      uint64
	Trees     []*DecisionTree
	NFeatures int

	workers int
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(params ForestParams, seed uint64) *RandomForest {
	return &RandomForest{Params: params, Seed: seed}
}

// WithWorkers bounds how many trees are grown concurrently. Zero or less
// means one per CPU.
func (f *RandomForest) WithWorkers(n int) *RandomForest {
	f.workers = n
	return f
}

func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	width, err := checkXY(X, y)
	if err != nil {
		return err
	}
	if f.Params.NEstimators < 1 {
		return fmt.Errorf("regression: n_estimators must be positive, got %d", f.Params.NEstimators)
	}

	workers := f.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	trees := make([]*DecisionTree, f.Params.NEstimators)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(f.Seed, uint64(i)))
			sample := make([]int, len(X))
			for k := range sample {
				sample[k] = rng.IntN(len(X))
			}
			tree := NewDecisionTree(f.Params.MaxDepth)
			tree.fitIndex(X, y, sample, width)
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.Trees = trees
	f.NFeatures = width
	return nil
}

func (f *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkX(X, f.NFeatures); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		var s float64
		for _, t := range f.Trees {
			s += t.predictRow(row)
		}
		out[i] = s / float64(len(f.Trees))
	}
	return out, nil
}

func (f *RandomForest) Score(X [][]float64, y []float64) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return R2Score(y, pred)
}
