package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"rent-predictor/models"
	"rent-predictor/storage"
	"rent-predictor/utils"
)

// ArtifactBuilder produces and saves a new artifact at a location.
type ArtifactBuilder interface {
	Build(ctx context.Context, loc storage.Location) (*models.Artifact, error)
}

// ModelService owns the serving model. It starts unloaded; LoadModel makes
// it ready, training a new artifact first when none is stored yet. Once
// ready it is safe for concurrent use.
type ModelService struct {
	modelPath string
	store     storage.ArtifactStore
	builder   ArtifactBuilder
	locker    storage.Locker
	logger    *utils.Logger

	mu       sync.RWMutex
	artifact *models.Artifact
}

// NewModelService creates an unloaded service. A nil locker means builds are
// not coordinated across processes.
func NewModelService(modelPath string, store storage.ArtifactStore, builder ArtifactBuilder, locker storage.Locker, logger *utils.Logger) *ModelService {
	if locker == nil {
		locker = storage.NopLocker{}
	}
	return &ModelService{
		modelPath: modelPath,
		store:     store,
		builder:   builder,
		locker:    locker,
		logger:    logger,
	}
}

// LoadModel loads the named artifact from the model directory, building it
// first if it does not exist. On failure the service stays unloaded.
func (s *ModelService) LoadModel(ctx context.Context, name string) error {
	loc := storage.Location{Dir: s.modelPath, Name: name}
	s.logger.Info("[model] checking the existence of model config file at %s", loc)

	outcome := "loaded"
	exists, err := s.store.Exists(ctx, loc)
	if err != nil {
		modelLoadsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("load model %s: %w", name, err)
	}
	if !exists {
		s.logger.Warn("[model] model at %s was not found -> building %s", loc, name)
		built, err := s.buildLocked(ctx, loc)
		if err != nil {
			modelLoadsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("load model %s: %w", name, err)
		}
		if built {
			outcome = "built"
		}
	}

	s.logger.Info("[model] %s exists! -> loading model configuration file", name)
	art, err := s.store.Load(ctx, loc)
	if err != nil {
		modelLoadsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("load model %s: %w", name, err)
	}

	s.mu.Lock()
	s.artifact = art
	s.mu.Unlock()

	modelLoadsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info("[model] loaded %s (id=%s, %s, test R²=%.4f)", name, art.ID, art.Params, art.TestScore)
	return nil
}

// buildLocked builds under the build lock unless another holder produced the
// artifact while we waited. It reports whether this call did the build.
func (s *ModelService) buildLocked(ctx context.Context, loc storage.Location) (bool, error) {
	release, err := s.locker.Acquire(ctx, loc.Name)
	if err != nil {
		return false, fmt.Errorf("acquire build lock: %w", err)
	}
	defer release()

	exists, err := s.store.Exists(ctx, loc)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Info("[model] %s appeared while waiting for the build lock", loc.Name)
		return false, nil
	}
	if _, err := s.builder.Build(ctx, loc); err != nil {
		return false, fmt.Errorf("build: %w", err)
	}
	return true, nil
}

// Ready reports whether a model is loaded.
func (s *ModelService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact != nil
}

// Artifact returns the loaded artifact's metadata, or nil when unloaded.
// The returned value must not be modified.
func (s *ModelService) Artifact() *models.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact
}

// Predict returns the rent for one feature vector given in the artifact's
// feature order.
func (s *ModelService) Predict(features []float64) (float64, error) {
	s.mu.RLock()
	art := s.artifact
	s.mu.RUnlock()

	if art == nil {
		predictionFailuresTotal.WithLabelValues("not_loaded").Inc()
		return 0, ErrModelNotLoaded
	}
	if len(features) != len(art.FeatureNames) {
		predictionFailuresTotal.WithLabelValues("feature_mismatch").Inc()
		return 0, fmt.Errorf("%w: got %d values, want %d (%s)",
			ErrFeatureMismatch, len(features), len(art.FeatureNames), strings.Join(art.FeatureNames, ", "))
	}

	for j, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			predictionFailuresTotal.WithLabelValues("invalid_feature").Inc()
			return 0, fmt.Errorf("%w: %s is %v", ErrInvalidFeature, art.FeatureNames[j], v)
		}
	}

	row := append([]float64(nil), features...)
	pred, err := art.Model.Predict([][]float64{row})
	if err != nil {
		predictionFailuresTotal.WithLabelValues("model").Inc()
		return 0, fmt.Errorf("predict: %w", err)
	}
	predictionsTotal.Inc()
	return pred[0], nil
}

// PredictNamed aligns a named feature vector to the artifact's feature order
// and predicts. Every trained feature must be present and no others.
func (s *ModelService) PredictNamed(named map[string]float64) (float64, error) {
	s.mu.RLock()
	art := s.artifact
	s.mu.RUnlock()

	if art == nil {
		predictionFailuresTotal.WithLabelValues("not_loaded").Inc()
		return 0, ErrModelNotLoaded
	}

	row := make([]float64, len(art.FeatureNames))
	known := make(map[string]struct{}, len(art.FeatureNames))
	var missing []string
	for j, name := range art.FeatureNames {
		known[name] = struct{}{}
		v, ok := named[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		row[j] = v
	}
	var unknown []string
	for name := range named {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		sort.Strings(unknown)
		predictionFailuresTotal.WithLabelValues("feature_mismatch").Inc()
		return 0, fmt.Errorf("%w: missing %v, unknown %v", ErrFeatureMismatch, missing, unknown)
	}
	return s.Predict(row)
}
