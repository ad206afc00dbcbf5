package models

import (
	"time"

	"rent-predictor/regression"
)

// Artifact is a fitted regressor together with the metadata needed to
// serve it. It is written once and never mutated; retraining produces a
// new artifact.
type Artifact struct {
	ID        string
	Name      string
	TrainedAt time.Time

	// FeatureNames is the column order the model was trained on.
	FeatureNames []string
	Params       regression.ForestParams
	CVScore      float64
	TestScore    float64
	TrainRows    int
	TestRows     int

	Model regression.Regressor
}
