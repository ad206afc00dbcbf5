package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-predictor/config"
	"rent-predictor/models"
	"rent-predictor/services"
	"rent-predictor/storage"
	"rent-predictor/utils"
)

func TestHelpDoesNotLoadConfig(t *testing.T) {
	var loads int
	a := &app{ctx: context.Background(), loadConfig: func() (*config.Config, error) {
		loads++
		return nil, errors.New("DataSource must be one of csv xlsx postgres")
	}}

	require.NoError(t, a.root().Dispatch([]string{"help"}))
	assert.Zero(t, loads)

	err := a.root().Dispatch([]string{"predict", "-features", "1,2"})
	require.ErrorContains(t, err, "load config")
	assert.Equal(t, 1, loads)
}

func TestUnknownCommand(t *testing.T) {
	a := &app{ctx: context.Background(), loadConfig: config.Load}
	assert.Error(t, a.root().Dispatch([]string{"scrape"}))
}

func TestParseFeatures(t *testing.T) {
	got, err := parseFeatures(demoFeatures)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 2000, 2, 10, 1, 0, 1, 0, 1}, got)

	got, err = parseFeatures(" 1, 2 ,,3 ")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	_, err = parseFeatures("1,two")
	assert.ErrorContains(t, err, `"two"`)
	_, err = parseFeatures(" , ")
	assert.Error(t, err)
}

type recordingWriter struct {
	got []*models.Listing
}

func (w *recordingWriter) Write(_ context.Context, listings []*models.Listing) error {
	w.got = listings
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestSeedListings(t *testing.T) {
	w := &recordingWriter{}
	err := seedListings(context.Background(), w, nil)
	assert.ErrorIs(t, err, services.ErrEmptyDataset)

	listings := []*models.Listing{{Address: "Damrak 1", Area: 40, Rent: 1200}}
	require.NoError(t, seedListings(context.Background(), w, listings))
	assert.Equal(t, listings, w.got)
}

func TestLazyBuilderOpensSourceOnce(t *testing.T) {
	var opens atomic.Int64
	l := &lazyBuilder{
		cfg:    &config.Config{DataSource: "csv", DataFile: "unused.csv"},
		logger: utils.NewNopLogger(),
		open: func(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.ListingSource, error) {
			opens.Add(1)
			return openSource(ctx, cfg, logger)
		},
	}
	defer l.close()

	var wg sync.WaitGroup
	sources := make([]storage.ListingSource, 8)
	for i := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src, err := l.listingSource(context.Background())
			assert.NoError(t, err)
			sources[i] = src
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, opens.Load())
	for _, src := range sources {
		assert.Same(t, sources[0], src)
	}
}
