package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rent-predictor/models"
	"rent-predictor/regression"
	"rent-predictor/storage"
	"rent-predictor/utils"
)

var demoVector = []float64{50, 2000, 2, 10, 1, 0, 1, 0, 1}

// syntheticListings generates n listings whose rent is a noisy linear
// function of the model features.
func syntheticListings(n int, seed uint64) []*models.Listing {
	rng := rand.New(rand.NewPCG(seed, 7))
	yesNo := func() (string, int) {
		if rng.IntN(2) == 0 {
			return "No", 0
		}
		return "Yes", 1
	}
	hoods := []string{"Centrum", "West", "Noord", "Oost", "Zuid"}

	out := make([]*models.Listing, n)
	for i := range out {
		area := 30 + rng.Float64()*120
		year := 1900 + rng.IntN(124)
		bedrooms := 1 + rng.IntN(4)

		garden, g := "Not present", 0
		if rng.IntN(3) == 0 {
			g = 5 + rng.IntN(50)
			garden = fmt.Sprintf("Present (%d m²)", g)
		}
		balcony, b := yesNo()
		parking, p := yesNo()
		furnished, f := yesNo()
		garage, gr := yesNo()
		storageVal, s := yesNo()

		rent := 400 + 15*area + 2*float64(year-1900) + 100*float64(bedrooms) + 5*float64(g) +
			150*float64(b) + 80*float64(p) + 200*float64(f) + 120*float64(gr) + 40*float64(s) +
			rng.NormFloat64()*50

		out[i] = &models.Listing{
			Address:          fmt.Sprintf("Teststraat %d", i+1),
			Area:             float64(int(area*10)) / 10,
			ConstructionYear: year,
			Rooms:            bedrooms + 1,
			Bedrooms:         bedrooms,
			Bathrooms:        1,
			Balcony:          balcony,
			Storage:          storageVal,
			Parking:          parking,
			Furnished:        furnished,
			Garage:           garage,
			Garden:           garden,
			Energy:           "B",
			Zip:              fmt.Sprintf("10%02d AB", i%100),
			Neighborhood:     hoods[i%len(hoods)],
			Rent:             int(rent),
		}
	}
	return out
}

// Rents of steppedListings. Areas below 70 m² rent for lowRent and areas of
// 100 m² or more for highRent. No other column separates the two groups.
const (
	lowRent  = 1250
	highRent = 2600
)

// steppedListings generates n listings whose rent is a step function of
// area. A tree scans area first and keeps the first perfect cut it sees, so
// every tree of every forest sends a 50 m² apartment to a pure lowRent leaf
// regardless of the bootstrap draw.
func steppedListings(n int) []*models.Listing {
	yesNo := func(i, period int) string {
		if (i/period)%2 == 0 {
			return "No"
		}
		return "Yes"
	}
	out := make([]*models.Listing, n)
	for i := range out {
		area, rent := 40+float64(i%30), lowRent
		if i%2 == 1 {
			area, rent = 100+float64(i%40), highRent
		}
		garden := "Not present"
		if (i/13)%2 == 1 {
			garden = fmt.Sprintf("Present (%d m²)", 5+i%20)
		}
		out[i] = &models.Listing{
			Address:          fmt.Sprintf("Trapstraat %d", i+1),
			Area:             area,
			ConstructionYear: 1950 + (i*7)%70,
			Rooms:            2 + (i/3)%3,
			Bedrooms:         1 + (i/3)%3,
			Bathrooms:        1,
			Balcony:          yesNo(i, 2),
			Storage:          yesNo(i, 3),
			Parking:          yesNo(i, 5),
			Furnished:        yesNo(i, 7),
			Garage:           yesNo(i, 11),
			Garden:           garden,
			Neighborhood:     "Centrum",
			Rent:             rent,
		}
	}
	return out
}

// sliceSource serves a fixed listing slice.
type sliceSource struct {
	listings []*models.Listing
	err      error
}

func (s *sliceSource) Load(context.Context) ([]*models.Listing, error) {
	return s.listings, s.err
}

func (s *sliceSource) Close() error { return nil }

// fastTrainer searches a small grid so tests stay quick.
func fastTrainer() *Trainer {
	t := NewTrainer(utils.NewNopLogger(), 0)
	t.Grid = regression.ParamGrid{NEstimators: []int{5, 10}, MaxDepth: []int{3, 6}}
	return t
}

// writeCSV stores listings under dir and returns a source over the file.
func writeCSV(t *testing.T, dir string, listings []*models.Listing) *storage.CSVSource {
	t.Helper()
	src := storage.NewCSVSource(filepath.Join(dir, "rent_apartments.csv"))
	require.NoError(t, src.Write(context.Background(), listings))
	return src
}

func rentRange(listings []*models.Listing) (float64, float64) {
	lo, hi := float64(listings[0].Rent), float64(listings[0].Rent)
	for _, l := range listings {
		lo = min(lo, float64(l.Rent))
		hi = max(hi, float64(l.Rent))
	}
	return lo, hi
}
