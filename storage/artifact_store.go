package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"rent-predictor/models"
)

// artifactMagic prefixes every artifact file; the byte after it is the
// format version.
var artifactMagic = []byte("RENTMDL\x00")

const artifactVersion byte = 1

// FileArtifactStore keeps artifacts as gob files on the local filesystem.
type FileArtifactStore struct{}

func NewFileArtifactStore() *FileArtifactStore {
	return &FileArtifactStore{}
}

// Save writes the artifact to a temporary file next to the target and renames
// it into place, so a concurrent reader sees either the old or the new file.
func (s *FileArtifactStore) Save(ctx context.Context, artifact *models.Artifact, loc Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if artifact == nil || artifact.Model == nil {
		return fmt.Errorf("artifact store: refusing to save an artifact without a model")
	}
	if err := os.MkdirAll(loc.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir %q: %v", ErrArtifactIO, loc.Dir, err)
	}

	tmp, err := os.CreateTemp(loc.Dir, loc.Name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %q: %v", ErrArtifactIO, loc.Dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	if _, err := w.Write(append(append([]byte{}, artifactMagic...), artifactVersion)); err != nil {
		return fmt.Errorf("%w: write header: %v", ErrArtifactIO, err)
	}
	if err := gob.NewEncoder(w).Encode(artifact); err != nil {
		return fmt.Errorf("artifact store: encode: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrArtifactIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrArtifactIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrArtifactIO, err)
	}
	if err := os.Rename(tmpName, loc.Path()); err != nil {
		return fmt.Errorf("%w: rename into %q: %v", ErrArtifactIO, loc.Path(), err)
	}
	committed = true
	return nil
}

func (s *FileArtifactStore) Load(ctx context.Context, loc Location) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(loc.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, loc)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrArtifactIO, loc, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]byte, len(artifactMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %s: short header", ErrArtifactCorrupt, loc)
	}
	if !bytes.Equal(header[:len(artifactMagic)], artifactMagic) {
		return nil, fmt.Errorf("%w: %s: not a model artifact", ErrArtifactCorrupt, loc)
	}
	if v := header[len(artifactMagic)]; v != artifactVersion {
		return nil, fmt.Errorf("%w: %s: unsupported format version %d", ErrArtifactCorrupt, loc, v)
	}

	var artifact models.Artifact
	if err := gob.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactCorrupt, loc, err)
	}
	if artifact.Model == nil || len(artifact.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: %s: missing model or feature names", ErrArtifactCorrupt, loc)
	}
	return &artifact, nil
}

// Exists reports whether a regular file is present at the location.
func (s *FileArtifactStore) Exists(ctx context.Context, loc Location) (bool, error) {
	info, err := os.Stat(loc.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %v", ErrArtifactIO, loc, err)
	}
	return info.Mode().IsRegular(), nil
}
