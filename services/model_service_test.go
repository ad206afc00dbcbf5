package services

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-predictor/models"
	"rent-predictor/storage"
	"rent-predictor/utils"
)

// countingBuilder records how many builds were requested.
type countingBuilder struct {
	inner ArtifactBuilder
	calls atomic.Int64
}

func (c *countingBuilder) Build(ctx context.Context, loc storage.Location) (*models.Artifact, error) {
	c.calls.Add(1)
	return c.inner.Build(ctx, loc)
}

type errBuilder struct{ err error }

func (e errBuilder) Build(context.Context, storage.Location) (*models.Artifact, error) {
	return nil, e.err
}

func newTestService(t *testing.T, dir string) (*ModelService, *countingBuilder) {
	t.Helper()
	logger := utils.NewNopLogger()
	store := storage.NewFileArtifactStore()
	builder := &countingBuilder{
		inner: NewBuilder(&sliceSource{listings: syntheticListings(100, 5)}, store, fastTrainer(), logger),
	}
	return NewModelService(dir, store, builder, nil, logger), builder
}

func TestPredictBeforeLoad(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())

	assert.False(t, svc.Ready())
	assert.Nil(t, svc.Artifact())

	_, err := svc.Predict(demoVector)
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	_, err = svc.PredictNamed(map[string]float64{"area": 50})
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestLoadModelBuildsOnceThenReuses(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	svc, builder := newTestService(t, dir)
	require.NoError(t, svc.LoadModel(ctx, "model.gob"))
	assert.EqualValues(t, 1, builder.calls.Load())
	assert.True(t, svc.Ready())

	first, err := svc.Predict(demoVector)
	require.NoError(t, err)

	svc2, builder2 := newTestService(t, dir)
	require.NoError(t, svc2.LoadModel(ctx, "model.gob"))
	assert.EqualValues(t, 0, builder2.calls.Load(), "existing artifact must not be rebuilt")

	second, err := svc2.Predict(demoVector)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, svc.Artifact().ID, svc2.Artifact().ID)
}

func TestPredictFeatureMismatch(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())
	require.NoError(t, svc.LoadModel(context.Background(), "model.gob"))

	_, err := svc.Predict(demoVector[:8])
	assert.ErrorIs(t, err, ErrFeatureMismatch)
	_, err = svc.Predict(append(append([]float64(nil), demoVector...), 1))
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestPredictRejectsNonFiniteFeatures(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())
	require.NoError(t, svc.LoadModel(context.Background(), "model.gob"))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		features := append([]float64(nil), demoVector...)
		features[0] = v
		_, err := svc.Predict(features)
		require.ErrorIs(t, err, ErrInvalidFeature)
		assert.Contains(t, err.Error(), "area")
	}

	named := make(map[string]float64, len(FeatureNames))
	for i, name := range svc.Artifact().FeatureNames {
		named[name] = demoVector[i]
	}
	named["garden"] = math.NaN()
	_, err := svc.PredictNamed(named)
	require.ErrorIs(t, err, ErrInvalidFeature)
	assert.Contains(t, err.Error(), "garden")
}

func TestPredictNamedMatchesPositional(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())
	require.NoError(t, svc.LoadModel(context.Background(), "model.gob"))

	named := make(map[string]float64, len(FeatureNames))
	for i, name := range svc.Artifact().FeatureNames {
		named[name] = demoVector[i]
	}
	want, err := svc.Predict(demoVector)
	require.NoError(t, err)
	got, err := svc.PredictNamed(named)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	delete(named, "garden")
	named["garden_size"] = 10
	_, err = svc.PredictNamed(named)
	require.ErrorIs(t, err, ErrFeatureMismatch)
	assert.Contains(t, err.Error(), "garden_size")
}

func TestLoadModelBuildFailureStaysUnloaded(t *testing.T) {
	boom := errors.New("source unavailable")
	svc := NewModelService(t.TempDir(), storage.NewFileArtifactStore(), errBuilder{err: boom}, storage.NopLocker{}, utils.NewNopLogger())

	err := svc.LoadModel(context.Background(), "model.gob")
	require.ErrorIs(t, err, boom)
	assert.False(t, svc.Ready())
}

func TestLoadModelCorruptArtifactFailsHard(t *testing.T) {
	dir := t.TempDir()
	loc := storage.Location{Dir: dir, Name: "model.gob"}
	require.NoError(t, os.WriteFile(loc.Path(), []byte("garbage"), 0o644))

	svc, builder := newTestService(t, dir)
	err := svc.LoadModel(context.Background(), "model.gob")
	require.ErrorIs(t, err, storage.ErrArtifactCorrupt)
	assert.EqualValues(t, 0, builder.calls.Load())
	assert.False(t, svc.Ready())
}

func TestConcurrentPredict(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir())
	require.NoError(t, svc.LoadModel(context.Background(), "model.gob"))
	want, err := svc.Predict(demoVector)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Predict(demoVector)
			if err == nil && got != want {
				err = errors.New("prediction changed under concurrency")
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// serialLocker admits one holder at a time within a process.
type serialLocker struct {
	mu sync.Mutex
}

func (l *serialLocker) Acquire(context.Context, string) (func(), error) {
	l.mu.Lock()
	return l.mu.Unlock, nil
}

func TestConcurrentLoadModelBuildsOnce(t *testing.T) {
	dir := t.TempDir()
	logger := utils.NewNopLogger()
	store := storage.NewFileArtifactStore()
	builder := &countingBuilder{
		inner: NewBuilder(&sliceSource{listings: syntheticListings(100, 5)}, store, fastTrainer(), logger),
	}
	locker := &serialLocker{}

	var wg sync.WaitGroup
	svcs := make([]*ModelService, 4)
	for i := range svcs {
		svcs[i] = NewModelService(dir, store, builder, locker, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svcs[i].LoadModel(context.Background(), "model.gob"))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, builder.calls.Load())
	for _, s := range svcs {
		assert.True(t, s.Ready())
	}
}
