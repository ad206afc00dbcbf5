package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rent-predictor/models"
)

// CSVSource reads and writes listings as a comma-delimited file with a
// header row.
type CSVSource struct {
	path string
}

// NewCSVSource returns a source backed by the file at path. The file is not
// opened until Load or Write.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Load reads every row of the file. Column order is taken from the header.
func (c *CSVSource) Load(ctx context.Context) ([]*models.Listing, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", c.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: %q: %w: empty file", c.path, ErrSourceSchema)
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return nil, fmt.Errorf("csv: %q: %w", c.path, err)
	}

	var listings []*models.Listing
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read line %d: %w", line, err)
		}
		l, err := decodeListing(idx, record, line)
		if err != nil {
			return nil, fmt.Errorf("csv: %q: %w", c.path, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Write creates (or truncates) the file and writes the header followed by
// every listing. Intermediate directories are created automatically.
func (c *CSVSource) Write(ctx context.Context, listings []*models.Listing) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ListingColumns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(encodeListing(l)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}

func (c *CSVSource) Close() error {
	return nil
}
