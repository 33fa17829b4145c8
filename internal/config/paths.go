package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathKind is the kind of filesystem entry a configured path must be.
type PathKind int

const (
	KindDirectory PathKind = iota
	KindSymlink
)

func (k PathKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// PathKindError reports a configured path that exists but is the wrong
// kind of entry. It is fatal at startup: the service never starts.
type PathKindError struct {
	Path string
	Want PathKind
}

func (e *PathKindError) Error() string {
	return fmt.Sprintf("%s exists and is not a %s", e.Path, e.Want)
}

// CheckPaths validates and bootstraps the managed directory layout. It must
// run before the server accepts any request.
//
// Plain directories (archive, extract, temp) are created with parents when
// absent; an existing non-directory is a *PathKindError. The symlink path
// must be a symlink if present; when absent only its parent directory is
// ensured — the pointer itself appears on the first successful deploy.
func CheckPaths(paths PathsConfig) error {
	for _, dir := range []string{paths.ArchiveDir, paths.ExtractDir, paths.TempDir} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	return checkSymlinkPath(paths.SymlinkPath)
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return &PathKindError{Path: path, Want: KindDirectory}
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func checkSymlinkPath(path string) error {
	info, err := os.Lstat(path)
	if err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return &PathKindError{Path: path, Want: KindSymlink}
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return ensureDir(filepath.Dir(path))
}
