package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Vacuum prunes old archives and releases beyond the configured keep
// counts. It runs only after a successful deploy. A keep count of 0
// disables pruning for that collection.
//
// Deletion is best-effort per entry: a failure is logged and the sweep
// continues with the remaining entries, so one stuck file never blocks
// retention of the rest. Vacuum never inspects the active symlink; name
// ordering keeps the newest (active) release inside any keep window >= 1.
func (e *Engine) Vacuum() {
	if e.opts.KeepArchives > 0 {
		e.logger.Info("vacuuming archives", "keep", e.opts.KeepArchives)
		e.vacuumDir(e.store.ArchiveDir(), e.opts.KeepArchives, false)
	}
	if e.opts.KeepExtracts > 0 {
		e.logger.Info("vacuuming releases", "keep", e.opts.KeepExtracts)
		e.vacuumDir(e.opts.ExtractDir, e.opts.KeepExtracts, true)
	}
}

// vacuumDir deletes all but the keep lexicographically-largest entries in
// dir. Returns the number of entries that could not be deleted.
func (e *Engine) vacuumDir(dir string, keep int, recursive bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Warn("vacuum: failed to list directory", "dir", dir, "error", err)
		return 0
	}

	var names []string
	for _, entry := range entries {
		// Staged extractions carry a dot prefix; leave them alone.
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) <= keep {
		return 0
	}

	failed := 0
	for _, name := range names[:len(names)-keep] {
		path := filepath.Join(dir, name)
		e.logger.Info("vacuum: removing", "path", path)

		var err error
		if recursive {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil {
			e.logger.Warn("vacuum: failed to remove entry", "path", path, "error", err)
			failed++
		}
	}
	return failed
}
