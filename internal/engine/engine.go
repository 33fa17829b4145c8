// Package engine implements the deployment lifecycle: commit an uploaded
// archive, extract it into a fresh release directory, atomically repoint
// the active-release symlink, run the optional post-deploy hook, and
// vacuum old archives and releases.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tardrop/internal/history"
	"tardrop/internal/store"
	"tardrop/pkg/fileutil"
)

// ErrBusy is returned when an upload arrives while another one is still
// being processed. The archive and extraction directories are shared
// mutable state, so handling is strictly serialized.
var ErrBusy = errors.New("another upload is in progress")

// stagingPrefix marks in-progress extractions inside the extraction root.
// A release only appears under its final name after a complete extract, so
// vacuum and the exists-check never see half-written releases.
const stagingPrefix = ".partial-"

// Options configures an Engine.
type Options struct {
	ExtractDir   string
	SymlinkPath  string
	KeepArchives int
	KeepExtracts int

	// Hook, if non-nil, runs in the new release directory after the swap.
	Hook *Hook

	// History, if non-nil, records the outcome of every upload. Recording
	// failures are logged and never fail the upload itself.
	History *history.History
}

// Engine drives deployments. All uploads funnel through Handle, which
// holds the engine lock for the entire store → deploy → vacuum sequence.
type Engine struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger

	mu sync.Mutex
}

// New creates an Engine over a Store.
func New(st *store.Store, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		store:  st,
		opts:   opts,
		logger: logger,
	}
}

// Handle processes one upload end to end: stage and commit the archive,
// deploy it, run the post-deploy hook, then vacuum. Vacuum runs only
// after everything else succeeded. A concurrent upload is rejected with
// ErrBusy before any bytes are read.
func (e *Engine) Handle(ctx context.Context, src io.Reader, length int64) error {
	if !e.mu.TryLock() {
		e.logger.Warn("upload rejected, deployment in progress")
		e.record(ctx, &history.UploadRecord{
			Status:       history.StatusRejected,
			SizeBytes:    length,
			ErrorMessage: strPtr(ErrBusy.Error()),
		}, time.Now())
		return ErrBusy
	}
	defer e.mu.Unlock()

	started := time.Now()
	rec := &history.UploadRecord{SizeBytes: length}

	archivePath, err := e.store.StageAndCommit(src, length)
	if err != nil {
		e.logger.Error("failed to save archive", "error", err)
		rec.Status = history.StatusFailed
		rec.ErrorMessage = strPtr(err.Error())
		e.record(ctx, rec, started)
		return fmt.Errorf("failed to save archive: %w", err)
	}
	rec.Archive = filepath.Base(archivePath)

	releaseDir, err := e.Deploy(archivePath)
	if err != nil {
		e.logger.Error("failed to deploy archive", "archive", archivePath, "error", err)
		rec.Status = history.StatusFailed
		rec.ErrorMessage = strPtr(err.Error())
		e.record(ctx, rec, started)
		return fmt.Errorf("failed to deploy archive: %w", err)
	}
	rec.Release = filepath.Base(releaseDir)

	if e.opts.Hook != nil {
		if err := e.opts.Hook.Run(ctx, releaseDir); err != nil {
			// The swap already happened; the new release stays active, but
			// the request fails and vacuum is skipped.
			e.logger.Error("post-deploy hook failed", "release", releaseDir, "error", err)
			rec.Status = history.StatusFailed
			rec.ErrorMessage = strPtr(err.Error())
			e.record(ctx, rec, started)
			return fmt.Errorf("post-deploy hook failed: %w", err)
		}
	}

	e.Vacuum()

	rec.Status = history.StatusSuccess
	e.record(ctx, rec, started)
	e.logger.Info("deploy success", "archive", rec.Archive, "release", rec.Release)
	return nil
}

// Deploy extracts the named archive into a fresh release directory and
// atomically repoints the active-release symlink at it. Any failure before
// the swap leaves the previous pointer untouched and valid.
//
// Extraction happens in a staging directory that is renamed to the release
// name only on full success, so a failed extract never leaves a directory
// under the release name.
func (e *Engine) Deploy(archivePath string) (string, error) {
	name := store.ReleaseName(archivePath)
	releaseDir := filepath.Join(e.opts.ExtractDir, name)

	if _, err := os.Lstat(releaseDir); err == nil {
		return "", fmt.Errorf("release %s already exists", releaseDir)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat release directory: %w", err)
	}

	staging := filepath.Join(e.opts.ExtractDir, stagingPrefix+name)
	// Drop leftovers from a previously interrupted extract of this name.
	if err := os.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.Mkdir(staging, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	e.logger.Info("extracting archive", "archive", archivePath, "release", releaseDir)

	if err := extractArchive(archivePath, staging); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}

	if err := os.Rename(staging, releaseDir); err != nil {
		os.RemoveAll(staging)
		return "", fmt.Errorf("failed to finalize release directory: %w", err)
	}

	e.logger.Info("repointing active release", "symlink", e.opts.SymlinkPath, "target", releaseDir)
	if err := fileutil.ReplaceSymlinkAtomic(e.opts.SymlinkPath, releaseDir); err != nil {
		return "", fmt.Errorf("failed to update active-release symlink: %w", err)
	}

	return releaseDir, nil
}

func (e *Engine) record(ctx context.Context, rec *history.UploadRecord, started time.Time) {
	if e.opts.History == nil {
		return
	}
	duration := time.Since(started).Seconds()
	rec.DurationSeconds = &duration
	if _, err := e.opts.History.RecordUpload(ctx, rec); err != nil {
		e.logger.Error("failed to record upload in history", "error", err)
	}
}

func strPtr(s string) *string {
	return &s
}
