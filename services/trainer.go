package services

import (
	"context"
	"fmt"

	"rent-predictor/regression"
	"rent-predictor/utils"
)

// ModelFactory builds an unfitted regressor for one grid candidate. workers
// bounds any internal parallelism of the model.
type ModelFactory func(params regression.ForestParams, workers int) regression.Regressor

// ForestFactory returns a factory producing random forests seeded with seed.
func ForestFactory(seed uint64) ModelFactory {
	return func(params regression.ForestParams, workers int) regression.Regressor {
		return regression.NewRandomForest(params, seed).WithWorkers(workers)
	}
}

// CandidateScore is the cross-validated score of one grid point.
type CandidateScore struct {
	Params     regression.ForestParams
	FoldScores []float64
	Mean       float64
}

// TrainResult is the refit winner of a grid search.
type TrainResult struct {
	Model      regression.Regressor
	Params     regression.ForestParams
	CVScore    float64
	Candidates []CandidateScore
}

// Trainer runs an exhaustive grid search with k-fold cross-validation.
type Trainer struct {
	Grid    regression.ParamGrid
	Folds   int
	Workers int
	Factory ModelFactory

	logger *utils.Logger
}

// NewTrainer returns a trainer over the default grid with 5 folds and a
// random forest seeded with 42. workers <= 0 means one per CPU.
func NewTrainer(logger *utils.Logger, workers int) *Trainer {
	return &Trainer{
		Grid:    regression.DefaultGrid(),
		Folds:   5,
		Workers: workers,
		Factory: ForestFactory(42),
		logger:  logger,
	}
}

// Train scores every candidate on every fold, picks the first candidate with
// the highest mean R² and refits it on all of X.
func (t *Trainer) Train(ctx context.Context, X [][]float64, y []float64) (*TrainResult, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows vs %d targets", regression.ErrShape, len(X), len(y))
	}
	folds, err := regression.KFold(len(X), t.Folds)
	if err != nil {
		return nil, err
	}
	candidates := t.Grid.Candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("trainer: empty parameter grid")
	}

	t.logger.Info("[trainer] Fitting %d folds for each of %d candidates, totalling %d fits",
		len(folds), len(candidates), len(folds)*len(candidates))

	scores := make([][]float64, len(candidates))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}

	pool := utils.NewWorkerPool(ctx, t.Workers)
	for c, params := range candidates {
		for f, fold := range folds {
			pool.Submit(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				xTrain, yTrain := regression.Rows(X, y, fold.Train)
				xTest, yTest := regression.Rows(X, y, fold.Test)

				model := t.Factory(params, 1)
				if err := model.Fit(xTrain, yTrain); err != nil {
					return fmt.Errorf("fit %s fold %d: %w", params, f, err)
				}
				s, err := model.Score(xTest, yTest)
				if err != nil {
					return fmt.Errorf("score %s fold %d: %w", params, f, err)
				}
				scores[c][f] = s
				return nil
			})
		}
	}
	if err := pool.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	result := &TrainResult{Candidates: make([]CandidateScore, len(candidates))}
	best := -1
	for c, params := range candidates {
		var sum float64
		for _, s := range scores[c] {
			sum += s
		}
		cs := CandidateScore{Params: params, FoldScores: scores[c], Mean: sum / float64(len(folds))}
		result.Candidates[c] = cs
		t.logger.Debug("[trainer] %s mean R²=%.4f", params, cs.Mean)
		if best < 0 || cs.Mean > result.Candidates[best].Mean {
			best = c
		}
	}
	result.Params = result.Candidates[best].Params
	result.CVScore = result.Candidates[best].Mean
	t.logger.Info("[trainer] Best params %s with mean CV R²=%.4f", result.Params, result.CVScore)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := t.Factory(result.Params, t.Workers)
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("refit %s: %w", result.Params, err)
	}
	result.Model = model
	return result, nil
}
