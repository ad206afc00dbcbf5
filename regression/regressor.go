// Package regression implements the tree-ensemble regressor used to price
// listings, together with the scoring and cross-validation helpers the
// training pipeline needs.
package regression

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotFitted        = errors.New("regression: model is not fitted")
	ErrShape            = errors.New("regression: input shape mismatch")
	ErrInsufficientData = errors.New("regression: insufficient data")
	ErrNonFinite        = errors.New("regression: non-finite value")
)

// Regressor is the capability set the pipeline relies on. Any strategy that
// satisfies it can be trained, scored, persisted and served.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
	Score(X [][]float64, y []float64) (float64, error)
}

func init() {
	gob.RegisterName("regression.RandomForest", &RandomForest{})
	gob.RegisterName("regression.DecisionTree", &DecisionTree{})
}

// ForestParams are the searchable hyperparameters of a RandomForest.
type ForestParams struct {
	NEstimators int
	MaxDepth    int
}

func (p ForestParams) String() string {
	return fmt.Sprintf("n_estimators=%d max_depth=%d", p.NEstimators, p.MaxDepth)
}

// ParamGrid is an exhaustive hyperparameter space.
type ParamGrid struct {
	NEstimators []int
	MaxDepth    []int
}

// DefaultGrid is the search space used for rent models.
func DefaultGrid() ParamGrid {
	return ParamGrid{
		NEstimators: []int{100, 200, 300},
		MaxDepth:    []int{3, 6, 9, 12},
	}
}

// Candidates enumerates the grid with max depth as the outer loop and
// ensemble size as the inner loop. Search tie-breaks follow this order.
func (g ParamGrid) Candidates() []ForestParams {
	out := make([]ForestParams, 0, len(g.MaxDepth)*len(g.NEstimators))
	for _, d := range g.MaxDepth {
		for _, n := range g.NEstimators {
			out = append(out, ForestParams{NEstimators: n, MaxDepth: d})
		}
	}
	return out
}

func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("%w: no rows", ErrInsufficientData)
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows vs %d targets", ErrShape, len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: no features", ErrShape)
	}
	if err := checkX(X, width); err != nil {
		return 0, err
	}
	for i, v := range y {
		if !finite(v) {
			return 0, fmt.Errorf("%w: target %d is %v", ErrNonFinite, i, v)
		}
	}
	return width, nil
}

func checkX(X [][]float64, width int) error {
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), width)
		}
		for j, v := range row {
			if !finite(v) {
				return fmt.Errorf("%w: row %d feature %d is %v", ErrNonFinite, i, j, v)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
