package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"

	"mediaforge/store"
)

var ErrNoFiles = errors.New("no files to archive")

// Builder bundles previously produced artifacts into one zip container at
// maximum compression. The caller is responsible for deleting the archive
// after delivery.
type Builder struct {
	store  *store.Store
	logger *zap.Logger
}

func NewBuilder(st *store.Store, logger *zap.Logger) *Builder {
	return &Builder{store: st, logger: logger}
}

// Build writes one archive containing the named artifacts and returns its
// path once the container is fully flushed to disk. An empty name list
// fails before any file is created. Artifacts that expired between naming
// and bundling are skipped, not fatal: losing that race to the reaper is an
// expected outcome.
func (b *Builder) Build(names []string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoFiles
	}

	archiveName := fmt.Sprintf("archive-%d-%s.zip",
		time.Now().UnixMilli(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
	)
	archivePath := filepath.Join(b.store.Dir(), archiveName)

	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	if err := b.write(f, names); err != nil {
		f.Close()
		os.Remove(archivePath)
		return "", err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(archivePath)
		return "", fmt.Errorf("flush archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("close archive: %w", err)
	}

	b.logger.Info("Archive created",
		zap.String("archive", archiveName),
		zap.Int("requested", len(names)),
	)

	return archivePath, nil
}

func (b *Builder) write(f *os.File, names []string) error {
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, name := range names {
		srcPath, err := b.store.Resolve(name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				b.logger.Warn("Skipping missing artifact", zap.String("artifact", name))
				continue
			}
			zw.Close()
			return fmt.Errorf("resolve artifact %s: %w", name, err)
		}

		if err := addFile(zw, srcPath, name); err != nil {
			// The reaper can still win the race after Resolve.
			if errors.Is(err, os.ErrNotExist) {
				b.logger.Warn("Skipping missing artifact", zap.String("artifact", name))
				continue
			}
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, srcPath, name string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", name, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add artifact %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}
