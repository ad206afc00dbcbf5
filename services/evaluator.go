package services

import (
	"fmt"

	"rent-predictor/regression"
)

// Evaluate returns the R² of model on the held-out rows.
func Evaluate(model regression.Regressor, X [][]float64, y []float64) (float64, error) {
	pred, err := model.Predict(X)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}
	score, err := regression.R2Score(y, pred)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}
	return score, nil
}
