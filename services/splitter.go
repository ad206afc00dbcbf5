package services

import (
	"fmt"
	"math"
	"math/rand/v2"

	"rent-predictor/models"
)

// FeatureNames is the model's input contract. Callers of Predict must pass
// values in exactly this order.
var FeatureNames = []string{
	"area",
	"construction_year",
	"bedrooms",
	"garden",
	"balcony_yes",
	"parking_yes",
	"furnished_yes",
	"garage_yes",
	"storage_yes",
}

// Target is the column the model learns to predict.
const Target = "rent"

// Splitter selects model inputs from a feature table and partitions the rows
// into train and test sets.
type Splitter struct {
	TestFraction float64
	Seed         uint64
}

// DefaultSplitter holds out 20% of rows with seed 42.
func DefaultSplitter() Splitter {
	return Splitter{TestFraction: 0.2, Seed: 42}
}

// Split returns aligned train/test partitions of the named features and
// target. The same table and seed always produce the same partition.
func (s Splitter) Split(table *models.FeatureTable, features []string, target string) (*models.Dataset, error) {
	if table == nil || table.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if s.TestFraction <= 0 || s.TestFraction >= 1 {
		return nil, fmt.Errorf("splitter: test fraction must be in (0, 1), got %v", s.TestFraction)
	}

	cols := make([]int, len(features))
	var missing []string
	for j, name := range features {
		cols[j] = table.Index(name)
		if cols[j] < 0 {
			missing = append(missing, name)
		}
	}
	targetCol := table.Index(target)
	if targetCol < 0 {
		missing = append(missing, target)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}

	n := table.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows to split, got %d", ErrInsufficientData, n)
	}
	nTest := int(math.Ceil(s.TestFraction * float64(n)))
	nTest = min(max(nTest, 1), n-1)

	perm := rand.New(rand.NewPCG(s.Seed, 0)).Perm(n)

	ds := &models.Dataset{
		FeatureNames: append([]string(nil), features...),
		Target:       target,
		TestIndex:    append([]int(nil), perm[:nTest]...),
		TrainIndex:   append([]int(nil), perm[nTest:]...),
	}
	ds.XTest, ds.YTest = selectRows(table, ds.TestIndex, cols, targetCol)
	ds.XTrain, ds.YTrain = selectRows(table, ds.TrainIndex, cols, targetCol)
	return ds, nil
}

func selectRows(table *models.FeatureTable, idx, cols []int, targetCol int) ([][]float64, []float64) {
	X := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for k, i := range idx {
		row := table.Rows[i]
		x := make([]float64, len(cols))
		for j, c := range cols {
			x[j] = row[c]
		}
		X[k] = x
		y[k] = row[targetCol]
	}
	return X, y
}
