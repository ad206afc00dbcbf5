package storage

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"rent-predictor/models"
)

// ListingColumns is the on-disk and in-database column order of the listing
// schema. The construction year column keeps the historical spelling used by
// the source table.
var ListingColumns = []string{
	"address", "area", "constraction_year", "rooms", "bedrooms", "bathrooms",
	"balcony", "storage", "parking", "furnished", "garage", "garden",
	"energy", "facilities", "zip", "neighborhood", "rent",
}

var requiredColumns = []string{
	"address", "area", "constraction_year", "rooms", "bedrooms", "bathrooms",
	"balcony", "storage", "parking", "furnished", "garage", "garden", "rent",
}

// headerIndex maps column names to positions and checks that every required
// column is present.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %v", ErrSourceSchema, missing)
	}
	return idx, nil
}

type rowDecoder struct {
	idx    map[string]int
	record []string
	line   int
	err    error
}

func (d *rowDecoder) str(col string) string {
	i, ok := d.idx[col]
	if !ok || i >= len(d.record) {
		return ""
	}
	return strings.TrimSpace(d.record[i])
}

func (d *rowDecoder) float(col string) float64 {
	if d.err != nil {
		return 0
	}
	raw := d.str(col)
	v, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil:
		d.err = fmt.Errorf("%w: line %d column %s: invalid number %q", ErrSourceSchema, d.line, col, raw)
	case math.IsNaN(v) || math.IsInf(v, 0):
		d.err = fmt.Errorf("%w: line %d column %s: non-finite number %q", ErrSourceSchema, d.line, col, raw)
	}
	return v
}

func (d *rowDecoder) int(col string) int {
	v := d.float(col)
	if d.err == nil && v != math.Trunc(v) {
		d.err = fmt.Errorf("%w: line %d column %s: %v is not an integer", ErrSourceSchema, d.line, col, v)
	}
	return int(v)
}

func decodeListing(idx map[string]int, record []string, line int) (*models.Listing, error) {
	d := &rowDecoder{idx: idx, record: record, line: line}
	l := &models.Listing{
		Address:          d.str("address"),
		Area:             d.float("area"),
		ConstructionYear: d.int("constraction_year"),
		Rooms:            d.int("rooms"),
		Bedrooms:         d.int("bedrooms"),
		Bathrooms:        d.float("bathrooms"),
		Balcony:          d.str("balcony"),
		Storage:          d.str("storage"),
		Parking:          d.str("parking"),
		Furnished:        d.str("furnished"),
		Garage:           d.str("garage"),
		Garden:           d.str("garden"),
		Energy:           d.str("energy"),
		Facilities:       d.str("facilities"),
		Zip:              d.str("zip"),
		Neighborhood:     d.str("neighborhood"),
		Rent:             d.int("rent"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return l, nil
}

func encodeListing(l *models.Listing) []string {
	return []string{
		l.Address,
		strconv.FormatFloat(l.Area, 'f', -1, 64),
		strconv.Itoa(l.ConstructionYear),
		strconv.Itoa(l.Rooms),
		strconv.Itoa(l.Bedrooms),
		strconv.FormatFloat(l.Bathrooms, 'f', -1, 64),
		l.Balcony,
		l.Storage,
		l.Parking,
		l.Furnished,
		l.Garage,
		l.Garden,
		l.Energy,
		l.Facilities,
		l.Zip,
		l.Neighborhood,
		strconv.Itoa(l.Rent),
	}
}
