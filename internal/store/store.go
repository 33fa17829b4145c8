// Package store owns the archive directory: it names uploaded archives,
// stages them in the temp directory while bytes arrive, and commits them
// with a single rename once fully written.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tardrop/pkg/streamio"
)

// ArchiveExt is the extension every committed archive carries.
const ArchiveExt = ".tar.gz"

const archivePrefix = "archive_"

// timestampLayout is the ordering contract for archive names: fixed-width
// wall-clock time at nanosecond precision, so lexicographic order of
// archive names matches creation order. Same-nanosecond collisions are
// rejected at commit rather than silently overwritten.
const timestampLayout = "2006-01-02-15-04-05.000000000"

// Store stages and commits uploaded archives.
type Store struct {
	archiveDir string
	tempDir    string
	logger     *slog.Logger

	// now is swapped in tests to control archive naming.
	now func() time.Time
}

// New creates a Store over an archive directory and a temp directory. Both
// should be on the same filesystem so the commit rename stays a single
// directory-entry operation.
func New(archiveDir, tempDir string, logger *slog.Logger) *Store {
	return &Store{
		archiveDir: archiveDir,
		tempDir:    tempDir,
		logger:     logger,
		now:        time.Now,
	}
}

// ArchiveDir returns the directory holding committed archives.
func (s *Store) ArchiveDir() string {
	return s.archiveDir
}

// NewArchiveName generates the name for the next uploaded archive.
func (s *Store) NewArchiveName() string {
	return archivePrefix + s.now().Format(timestampLayout) + ArchiveExt
}

// ReleaseName derives the release directory name from an archive path by
// stripping the archive extension from its base name.
func ReleaseName(archivePath string) string {
	return strings.TrimSuffix(filepath.Base(archivePath), ArchiveExt)
}

// StageAndCommit copies exactly length bytes from src into a staged temp
// file and then moves it into the archive directory under its final name.
// On any copy failure the temp file is removed; a partial archive is never
// visible in the archive directory. Returns the committed archive path.
func (s *Store) StageAndCommit(src io.Reader, length int64) (string, error) {
	name := s.NewArchiveName()
	staged := filepath.Join(s.tempDir, name)

	s.logger.Info("staging upload", "path", staged, "bytes", length)

	f, err := os.OpenFile(staged, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}

	if err := streamio.CopyExactly(f, src, length); err != nil {
		f.Close()
		os.Remove(staged)
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("failed to close staging file: %w", err)
	}

	final := filepath.Join(s.archiveDir, name)
	if _, err := os.Lstat(final); err == nil {
		os.Remove(staged)
		return "", fmt.Errorf("archive %s already exists", final)
	}

	if err := os.Rename(staged, final); err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("failed to commit archive: %w", err)
	}

	s.logger.Info("committed archive", "path", final)
	return final, nil
}
