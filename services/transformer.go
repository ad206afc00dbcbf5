package services

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"rent-predictor/models"
	"rent-predictor/utils"
)

const gardenAbsent = "not present"

// digitsRegexp captures the first run of ASCII digits, e.g. the 20 in
// "Present (20 m²)".
var digitsRegexp = regexp.MustCompile(`[0-9]+`)

// CategoricalColumns are one-hot encoded, in this order.
var CategoricalColumns = []string{"balcony", "parking", "furnished", "garage", "storage"}

// Transformer turns raw listings into a numeric feature table.
type Transformer struct {
	logger *utils.Logger
}

// NewTransformer creates a Transformer with the given logger.
func NewTransformer(logger *utils.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// Transform encodes the categorical columns, parses garden sizes and returns
// a fresh table. The input is never modified.
func (t *Transformer) Transform(listings []*models.Listing) (*models.FeatureTable, error) {
	if len(listings) == 0 {
		return nil, ErrEmptyDataset
	}

	t.logger.Info("[transform] Parsing column garden")
	garden := make([]float64, len(listings))
	for i, l := range listings {
		g, err := parseGarden(l.Garden)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, l.Address, err)
		}
		garden[i] = float64(g)
	}

	table := &models.FeatureTable{
		Columns: []string{"area", "construction_year", "rooms", "bedrooms", "bathrooms", "garden", "rent"},
		Rows:    make([][]float64, len(listings)),
	}
	for i, l := range listings {
		table.Rows[i] = []float64{
			l.Area,
			float64(l.ConstructionYear),
			float64(l.Rooms),
			float64(l.Bedrooms),
			l.Bathrooms,
			garden[i],
			float64(l.Rent),
		}
	}

	t.logger.Info("[transform] Encoding categorical columns")
	for _, field := range CategoricalColumns {
		values := make([]string, len(listings))
		for i, l := range listings {
			values[i] = categoryValue(l, field)
		}
		names, cols := OneHot(values, field)
		table.Columns = append(table.Columns, names...)
		for i := range table.Rows {
			for _, col := range cols {
				table.Rows[i] = append(table.Rows[i], col[i])
			}
		}
		t.logger.Debug("[transform] %s -> %v", field, names)
	}

	return table, nil
}

// OneHot encodes values as indicator columns. Categories are the distinct
// trimmed, lower-cased values in ascending order; the first is dropped and
// each remaining one becomes a column named <prefix>_<category>.
func OneHot(values []string, prefix string) ([]string, [][]float64) {
	norm := make([]string, len(values))
	seen := make(map[string]struct{})
	for i, v := range values {
		norm[i] = normaliseCategory(v)
		seen[norm[i]] = struct{}{}
	}

	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	if len(cats) <= 1 {
		return nil, nil
	}
	cats = cats[1:]

	names := make([]string, len(cats))
	cols := make([][]float64, len(cats))
	pos := make(map[string]int, len(cats))
	for j, c := range cats {
		names[j] = prefix + "_" + c
		cols[j] = make([]float64, len(values))
		pos[c] = j
	}
	for i, v := range norm {
		if j, ok := pos[v]; ok {
			cols[j][i] = 1
		}
	}
	return names, cols
}

// parseGarden returns 0 for an absent garden and otherwise the first integer
// embedded in the text.
func parseGarden(raw string) (int, error) {
	v := strings.TrimSpace(raw)
	if strings.EqualFold(v, gardenAbsent) {
		return 0, nil
	}
	match := digitsRegexp.FindString(v)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", ErrGardenFormat, raw)
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrGardenFormat, raw, err)
	}
	return n, nil
}

func normaliseCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func categoryValue(l *models.Listing, field string) string {
	switch field {
	case "balcony":
		return l.Balcony
	case "parking":
		return l.Parking
	case "furnished":
		return l.Furnished
	case "garage":
		return l.Garage
	case "storage":
		return l.Storage
	}
	return ""
}
