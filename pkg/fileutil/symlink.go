package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReplaceSymlinkAtomic points linkPath at targetPath without any window in
// which linkPath is absent or dangling.
//
// A new symlink is created under a temporary name in the same directory and
// then renamed over linkPath. The rename is a single directory-entry
// replacement, so readers either see the old target or the new one, never
// nothing.
func ReplaceSymlinkAtomic(linkPath, targetPath string) error {
	tmpLink := linkPath + ".tmp"

	// Drop leftovers from a previously interrupted swap.
	_ = os.Remove(tmpLink)

	if err := os.Symlink(targetPath, tmpLink); err != nil {
		return fmt.Errorf("failed to create temporary symlink: %w", err)
	}

	if err := os.Rename(tmpLink, linkPath); err != nil {
		_ = os.Remove(tmpLink)
		return fmt.Errorf("failed to rename symlink into place: %w", err)
	}

	return nil
}

// IsSymlink reports whether path exists and is a symbolic link.
func IsSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

// ResolveSymlink resolves path through any chain of symlinks to its final
// target.
func ResolveSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlink: %w", err)
	}
	return resolved, nil
}

// ValidateSymlink checks that path is a symlink whose target exists.
func ValidateSymlink(path string) error {
	if !IsSymlink(path) {
		return fmt.Errorf("path is not a symlink: %s", path)
	}

	target, err := ResolveSymlink(path)
	if err != nil {
		return fmt.Errorf("symlink is broken: %w", err)
	}

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("symlink target does not exist: %s", target)
	}

	return nil
}
