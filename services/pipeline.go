package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rent-predictor/models"
	"rent-predictor/storage"
	"rent-predictor/utils"
)

// Builder runs the full training pipeline from raw listings to a saved
// artifact.
type Builder struct {
	source      storage.ListingSource
	store       storage.ArtifactStore
	transformer *Transformer
	splitter    Splitter
	trainer     *Trainer
	insights    *InsightService
	logger      *utils.Logger

	now func() time.Time

	mu      sync.Mutex
	summary *models.Summary
}

// NewBuilder wires a pipeline over source and store with the default
// splitter and the given trainer.
func NewBuilder(source storage.ListingSource, store storage.ArtifactStore, trainer *Trainer, logger *utils.Logger) *Builder {
	return &Builder{
		source:      source,
		store:       store,
		transformer: NewTransformer(logger),
		splitter:    DefaultSplitter(),
		trainer:     trainer,
		insights:    NewInsightService(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// Summary returns the listing summary computed by the most recent build, or
// nil before the first build has loaded data.
func (b *Builder) Summary() *models.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary
}

// Build loads the data, trains, evaluates and saves a new artifact at loc.
func (b *Builder) Build(ctx context.Context, loc storage.Location) (*models.Artifact, error) {
	start := time.Now()
	art, err := b.build(ctx, loc)
	trainingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		trainingRunsTotal.WithLabelValues("failure").Inc()
		return nil, err
	}
	trainingRunsTotal.WithLabelValues("success").Inc()
	lastTestScore.Set(art.TestScore)
	return art, nil
}

func (b *Builder) build(ctx context.Context, loc storage.Location) (*models.Artifact, error) {
	b.logger.Info("[pipeline] starting up processing pipeline")

	listings, err := b.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("load listings: %w", ErrEmptyDataset)
	}
	b.logger.Info("[pipeline] Loaded %d listings", len(listings))
	summary := b.insights.Generate(listings)
	b.mu.Lock()
	b.summary = summary
	b.mu.Unlock()

	table, err := b.transformer.Transform(listings)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	b.logger.Info("[pipeline] Identifying X and y")
	b.logger.Info("[pipeline] Splitting X and y")
	ds, err := b.splitter.Split(table, FeatureNames, Target)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	b.logger.Info("[pipeline] Training the model")
	res, err := b.trainer.Train(ctx, ds.XTrain, ds.YTrain)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	b.logger.Info("[pipeline] Evaluating the model")
	testScore, err := Evaluate(res.Model, ds.XTest, ds.YTest)
	if err != nil {
		return nil, err
	}
	b.logger.Info("[pipeline] Test R²=%.4f (CV R²=%.4f, %s)", testScore, res.CVScore, res.Params)

	art := &models.Artifact{
		ID:           uuid.NewString(),
		Name:         loc.Name,
		TrainedAt:    b.now().UTC(),
		FeatureNames: append([]string(nil), ds.FeatureNames...),
		Params:       res.Params,
		CVScore:      res.CVScore,
		TestScore:    testScore,
		TrainRows:    len(ds.XTrain),
		TestRows:     len(ds.XTest),
		Model:        res.Model,
	}

	b.logger.Info("[pipeline] saving the model to %s", loc)
	if err := b.store.Save(ctx, art, loc); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	return art, nil
}
