package storage

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"rent-predictor/models"
)

// XLSXSource reads listings from a spreadsheet whose first row is the header.
type XLSXSource struct {
	path  string
	sheet string
}

// NewXLSXSource returns a source backed by the workbook at path. An empty
// sheet name selects the first sheet.
func NewXLSXSource(path, sheet string) *XLSXSource {
	return &XLSXSource{path: path, sheet: sheet}
}

func (x *XLSXSource) Load(ctx context.Context) ([]*models.Listing, error) {
	f, err := excelize.OpenFile(x.path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %q: %w", x.path, err)
	}
	defer f.Close()

	sheet := x.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: %q: %w: workbook has no sheets", x.path, ErrSourceSchema)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("xlsx: sheet %q: %w: empty sheet", sheet, ErrSourceSchema)
	}

	idx, err := headerIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
	}

	listings := make([]*models.Listing, 0, len(rows)-1)
	for i, record := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		l, err := decodeListing(idx, record, i+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx: sheet %q: %w", sheet, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func (x *XLSXSource) Close() error {
	return nil
}

// WriteXLSX writes listings to a new workbook with a header row.
func WriteXLSX(path, sheet string, listings []*models.Listing) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("xlsx: rename sheet: %w", err)
		}
	}

	writeRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := writeRow(1, ListingColumns); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}
	for i, l := range listings {
		if err := writeRow(i+2, encodeListing(l)); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}
	return nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}
