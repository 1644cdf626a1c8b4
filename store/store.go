package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"mediaforge/models"
	"mediaforge/security"
)

// ErrNotFound is a normal terminal outcome for artifact lookups: the
// retention reaper may delete an expired artifact between the moment a
// caller learns its name and the moment it is read.
var ErrNotFound = errors.New("artifact not found")

// Reference upstream limits; enforced by the calling surface before
// staging, surfaced here so callers agree on the numbers.
const (
	MaxFileSize   = 500 << 20
	MaxBatchFiles = 50
)

// Store is the shared artifact directory: staged uploads, conversion
// outputs, and archives all live as flat files in one directory, each
// identified solely by its generated filename.
type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Stage persists inbound bytes under a freshly generated name and returns
// the staged file the pipeline will consume.
func (s *Store) Stage(originalName string, r io.Reader) (models.UploadedFile, error) {
	name := security.GenerateSecureFilename(originalName)
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("stage %s: %w", originalName, err)
	}

	n, err := io.Copy(dst, r)
	if err != nil {
		dst.Close()
		os.Remove(path)
		return models.UploadedFile{}, fmt.Errorf("stage %s: %w", originalName, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return models.UploadedFile{}, fmt.Errorf("stage %s: %w", originalName, err)
	}

	s.logger.Debug("Staged upload",
		zap.String("original", originalName),
		zap.String("staged", name),
		zap.Int64("size", n),
	)

	return models.UploadedFile{
		OriginalName: originalName,
		Path:         path,
		Size:         n,
	}, nil
}

// Resolve maps an artifact name to its on-disk path. Names are treated as
// opaque identifiers, never caller-controlled paths: anything that fails
// the traversal gate is rejected outright.
func (s *Store) Resolve(name string) (string, error) {
	if !security.IsPathTraversalSafe(name) {
		return "", fmt.Errorf("unsafe artifact name %q", name)
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat artifact %s: %w", name, err)
	}
	return path, nil
}

func (s *Store) Remove(name string) error {
	path, err := s.Resolve(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
