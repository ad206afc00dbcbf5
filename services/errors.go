package services

import (
	"errors"

	"rent-predictor/regression"
)

var (
	ErrGardenFormat     = errors.New("garden value has no quantity")
	ErrMissingColumn    = errors.New("missing column")
	ErrEmptyDataset     = errors.New("empty dataset")
	ErrInsufficientData = regression.ErrInsufficientData
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrFeatureMismatch  = errors.New("feature vector mismatch")
	ErrInvalidFeature   = errors.New("invalid feature value")
)
