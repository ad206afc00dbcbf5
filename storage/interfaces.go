package storage

import (
	"context"
	"errors"
	"path/filepath"

	"rent-predictor/models"
)

var (
	ErrSourceSchema     = errors.New("source schema mismatch")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrArtifactCorrupt  = errors.New("artifact corrupt")
	ErrArtifactIO       = errors.New("artifact i/o failure")
)

// ListingSource is the interface any raw-data backend must satisfy.
type ListingSource interface {
	Load(ctx context.Context) ([]*models.Listing, error)
	Close() error
}

// ListingWriter persists raw listings, replacing what was there.
type ListingWriter interface {
	Write(ctx context.Context, listings []*models.Listing) error
	Close() error
}

var (
	_ ListingWriter = (*CSVSource)(nil)
	_ ListingWriter = (*PostgresSource)(nil)
)

// Location names an artifact: a directory plus a file name.
type Location struct {
	Dir  string
	Name string
}

func (l Location) Path() string {
	return filepath.Join(l.Dir, l.Name)
}

func (l Location) String() string {
	return l.Path()
}

// ArtifactStore persists fitted models.
type ArtifactStore interface {
	Save(ctx context.Context, artifact *models.Artifact, loc Location) error
	Load(ctx context.Context, loc Location) (*models.Artifact, error)
	// Exists reports whether an artifact is present without reading it.
	Exists(ctx context.Context, loc Location) (bool, error)
}

// Locker serialises artifact builds across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
