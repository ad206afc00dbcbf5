package regression

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// R2Score is the coefficient of determination of pred against truth.
// When truth is constant the score is 1 for an exact fit and 0 otherwise.
func R2Score(truth, pred []float64) (float64, error) {
	if len(truth) != len(pred) {
		return 0, fmt.Errorf("%w: %d targets vs %d predictions", ErrShape, len(truth), len(pred))
	}
	if len(truth) < 2 {
		return 0, fmt.Errorf("%w: R² needs at least 2 samples, got %d", ErrInsufficientData, len(truth))
	}

	if constant(truth) {
		for i := range truth {
			if truth[i] != pred[i] {
				return 0, nil
			}
		}
		return 1, nil
	}
	return stat.RSquaredFrom(pred, truth, nil), nil
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// Fold is one cross-validation split expressed as row positions.
type Fold struct {
	Train []int
	Test  []int
}

// KFold partitions n rows into k contiguous, unshuffled folds. The first
// n%k folds hold one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("regression: k-fold needs k >= 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: cannot split %d rows into %d folds", ErrInsufficientData, n, k)
	}

	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size

		fold := Fold{
			Test:  make([]int, 0, size),
			Train: make([]int, 0, n-size),
		}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds = append(folds, fold)
		start = end
	}
	return folds, nil
}

// Rows gathers the rows of X and y named by idx.
func Rows(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}
