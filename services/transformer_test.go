package services

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-predictor/models"
	"rent-predictor/utils"
)

func TestParseGarden(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"Not present", 0, false},
		{"  not PRESENT ", 0, false},
		{"Present (20 m²)", 20, false},
		{"Present (9 m2)", 9, false},
		{"120", 120, false},
		{"garden 12 by 30", 12, false},
		{"Present", 0, true},
		{"", 0, true},
		{"Present (99999999999999999999999 m²)", 0, true},
	}

	for _, tt := range tests {
		got, err := parseGarden(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrGardenFormat, "parseGarden(%q)", tt.raw)
			continue
		}
		require.NoError(t, err, "parseGarden(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "parseGarden(%q)", tt.raw)
	}
}

func TestOneHotDropsFirstSortedCategory(t *testing.T) {
	names, cols := OneHot([]string{"yes", " No", "YES", "maybe"}, "balcony")

	assert.Equal(t, []string{"balcony_no", "balcony_yes"}, names)
	assert.Equal(t, [][]float64{{0, 1, 0, 0}, {1, 0, 1, 0}}, cols)
}

func TestOneHotSingleCategoryHasNoColumns(t *testing.T) {
	names, cols := OneHot([]string{"yes", "Yes"}, "garage")
	assert.Empty(t, names)
	assert.Empty(t, cols)
}

func TestOneHotIdempotent(t *testing.T) {
	_, first := OneHot([]string{"yes", "no", "no", "yes"}, "parking")
	require.Len(t, first, 1)

	again := make([]string, len(first[0]))
	for i, v := range first[0] {
		again[i] = strconv.FormatBool(v == 1)
	}
	_, second := OneHot(again, "parking")
	assert.Equal(t, first, second)
}

func TestTransformColumns(t *testing.T) {
	listings := []*models.Listing{
		{Address: "a", Area: 50, ConstructionYear: 2000, Rooms: 3, Bedrooms: 2, Bathrooms: 1, Garden: "Present (10 m²)",
			Balcony: "yes", Parking: "no", Furnished: "yes", Garage: "no", Storage: "yes", Rent: 1500},
		{Address: "b", Area: 30, ConstructionYear: 1950, Rooms: 1, Bedrooms: 1, Bathrooms: 1, Garden: "Not present",
			Balcony: "No", Parking: "Yes", Furnished: "No", Garage: "Yes", Storage: "No", Rent: 900},
	}
	before := *listings[0]

	table, err := NewTransformer(utils.NewNopLogger()).Transform(listings)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"area", "construction_year", "rooms", "bedrooms", "bathrooms", "garden", "rent",
		"balcony_yes", "parking_yes", "furnished_yes", "garage_yes", "storage_yes",
	}, table.Columns)
	assert.Equal(t, []float64{50, 2000, 3, 2, 1, 10, 1500, 1, 0, 1, 0, 1}, table.Rows[0])
	assert.Equal(t, []float64{30, 1950, 1, 1, 1, 0, 900, 0, 1, 0, 1, 0}, table.Rows[1])
	assert.Equal(t, before, *listings[0], "input must not be mutated")
}

func TestTransformErrors(t *testing.T) {
	tr := NewTransformer(utils.NewNopLogger())

	_, err := tr.Transform(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, err = tr.Transform([]*models.Listing{{Address: "Somewhere 1", Garden: "large"}})
	require.ErrorIs(t, err, ErrGardenFormat)
	assert.Contains(t, err.Error(), "Somewhere 1")
}

func TestTransformSyntheticHasContractColumns(t *testing.T) {
	table, err := NewTransformer(utils.NewNopLogger()).Transform(syntheticListings(100, 1))
	require.NoError(t, err)
	for _, name := range FeatureNames {
		assert.GreaterOrEqual(t, table.Index(name), 0, name)
	}
	assert.Equal(t, 100, table.Len())
}
