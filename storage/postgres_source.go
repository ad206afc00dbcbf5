package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"

	"rent-predictor/models"
	"rent-predictor/utils"
)

// PostgresSource reads listings from, and seeds, a single rent table.
type PostgresSource struct {
	db    *sql.DB
	table string
}

// NewPostgresSource opens a connection to PostgreSQL, waiting for it with
// back-off, and returns a ready-to-use PostgresSource.
func NewPostgresSource(ctx context.Context, dsn, table string, retry *utils.RetryConfig) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	err = retry.Do(ctx, "postgres ping", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &PostgresSource{db: db, table: pq.QuoteIdentifier(table)}, nil
}

// Migrate creates the rent table when it does not exist yet.
func (ps *PostgresSource) Migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			address           VARCHAR(255) PRIMARY KEY,
			area              REAL         NOT NULL,
			constraction_year INTEGER      NOT NULL,
			rooms             INTEGER      NOT NULL,
			bedrooms          INTEGER      NOT NULL,
			bathrooms         REAL         NOT NULL,
			balcony           VARCHAR(50)  NOT NULL,
			storage           VARCHAR(50)  NOT NULL,
			parking           VARCHAR(50)  NOT NULL,
			furnished         VARCHAR(50)  NOT NULL,
			garage            VARCHAR(50)  NOT NULL,
			garden            VARCHAR(50)  NOT NULL,
			energy            VARCHAR(5),
			facilities        VARCHAR(255),
			zip               VARCHAR(20),
			neighborhood      VARCHAR(100),
			rent              INTEGER      NOT NULL
		)
	`, ps.table))
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Load returns the whole table ordered by address so repeated loads feed the
// pipeline the same row order.
func (ps *PostgresSource) Load(ctx context.Context) ([]*models.Listing, error) {
	rows, err := ps.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT address, area, constraction_year, rooms, bedrooms, bathrooms,
		       balcony, storage, parking, furnished, garage, garden,
		       COALESCE(energy, ''), COALESCE(facilities, ''),
		       COALESCE(zip, ''), COALESCE(neighborhood, ''), rent
		FROM %s
		ORDER BY address
	`, ps.table))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(
			&l.Address, &l.Area, &l.ConstructionYear, &l.Rooms, &l.Bedrooms, &l.Bathrooms,
			&l.Balcony, &l.Storage, &l.Parking, &l.Furnished, &l.Garage, &l.Garden,
			&l.Energy, &l.Facilities, &l.Zip, &l.Neighborhood, &l.Rent,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if math.IsNaN(l.Area) || math.IsInf(l.Area, 0) || math.IsNaN(l.Bathrooms) || math.IsInf(l.Bathrooms, 0) {
			return nil, fmt.Errorf("postgres: %w: %q has a non-finite area or bathrooms value", ErrSourceSchema, l.Address)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	return listings, nil
}

// Write replaces the table contents with listings inside one transaction.
// Rows sharing an address keep the first occurrence.
func (ps *PostgresSource) Write(ctx context.Context, listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", ps.table)); err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := min(i+batchSize, len(listings))
		if err := ps.insertBatch(ctx, tx, listings[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (ps *PostgresSource) insertBatch(ctx context.Context, tx *sql.Tx, batch []*models.Listing) error {
	cols := len(ListingColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		placeholders := make([]string, cols)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*cols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.Address, l.Area, l.ConstructionYear, l.Rooms, l.Bedrooms, l.Bathrooms,
			l.Balcony, l.Storage, l.Parking, l.Furnished, l.Garage, l.Garden,
			l.Energy, l.Facilities, l.Zip, l.Neighborhood, l.Rent)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES %s
		ON CONFLICT (address) DO NOTHING
	`, ps.table, strings.Join(ListingColumns, ", "), strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (ps *PostgresSource) Close() error {
	return ps.db.Close()
}
