package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReplaceSymlinkAtomic_CreatesNewLink(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("Failed to create target dir: %v", err)
	}

	link := filepath.Join(tmpDir, "current")
	if err := ReplaceSymlinkAtomic(link, target); err != nil {
		t.Fatalf("ReplaceSymlinkAtomic() error = %v", err)
	}

	got, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if got != target {
		t.Errorf("symlink target = %q, want %q", got, target)
	}
}

func TestReplaceSymlinkAtomic_ReplacesExistingLink(t *testing.T) {
	tmpDir := t.TempDir()
	oldTarget := filepath.Join(tmpDir, "old")
	newTarget := filepath.Join(tmpDir, "new")
	for _, d := range []string{oldTarget, newTarget} {
		if err := os.Mkdir(d, 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
	}

	link := filepath.Join(tmpDir, "current")
	if err := os.Symlink(oldTarget, link); err != nil {
		t.Fatalf("Failed to create initial symlink: %v", err)
	}

	if err := ReplaceSymlinkAtomic(link, newTarget); err != nil {
		t.Fatalf("ReplaceSymlinkAtomic() error = %v", err)
	}

	got, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink() error = %v", err)
	}
	if got != newTarget {
		t.Errorf("symlink target = %q, want %q", got, newTarget)
	}

	// The temporary link must not be left behind.
	if _, err := os.Lstat(link + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary symlink left behind: %v", err)
	}
}

func TestReplaceSymlinkAtomic_RemovesStaleTempLink(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("Failed to create target dir: %v", err)
	}

	link := filepath.Join(tmpDir, "current")

	// Simulate a previously interrupted swap.
	if err := os.Symlink("/nonexistent", link+".tmp"); err != nil {
		t.Fatalf("Failed to create stale temp link: %v", err)
	}

	if err := ReplaceSymlinkAtomic(link, target); err != nil {
		t.Fatalf("ReplaceSymlinkAtomic() error = %v", err)
	}
}

func TestIsSymlink(t *testing.T) {
	tmpDir := t.TempDir()

	file := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	link := filepath.Join(tmpDir, "link")
	if err := os.Symlink(file, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"symlink", link, true},
		{"regular file", file, false},
		{"directory", tmpDir, false},
		{"missing path", filepath.Join(tmpDir, "nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSymlink(tt.path); got != tt.want {
				t.Errorf("IsSymlink(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidateSymlink(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("Failed to create target dir: %v", err)
	}

	goodLink := filepath.Join(tmpDir, "good")
	if err := os.Symlink(target, goodLink); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	brokenLink := filepath.Join(tmpDir, "broken")
	if err := os.Symlink(filepath.Join(tmpDir, "gone"), brokenLink); err != nil {
		t.Fatalf("Failed to create broken symlink: %v", err)
	}

	if err := ValidateSymlink(goodLink); err != nil {
		t.Errorf("ValidateSymlink(good) error = %v", err)
	}
	if err := ValidateSymlink(brokenLink); err == nil {
		t.Error("ValidateSymlink(broken) expected error, got nil")
	}
	if err := ValidateSymlink(target); err == nil {
		t.Error("ValidateSymlink(directory) expected error, got nil")
	}
}

func TestSearchPathsOptional(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "tardrop.yaml")
	if err := os.WriteFile(file, []byte("server: {}"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if got := SearchPathsOptional([]string{filepath.Join(tmpDir, "missing"), file}); got != file {
		t.Errorf("SearchPathsOptional() = %q, want %q", got, file)
	}
	if got := SearchPathsOptional([]string{filepath.Join(tmpDir, "missing")}); got != "" {
		t.Errorf("SearchPathsOptional() = %q, want empty", got)
	}
}

func TestDefaultConfigPaths(t *testing.T) {
	paths := DefaultConfigPaths("tardrop.yaml")
	if len(paths) != 3 {
		t.Fatalf("DefaultConfigPaths() returned %d paths, want 3", len(paths))
	}
	for i, path := range paths {
		if !strings.Contains(path, "tardrop.yaml") {
			t.Errorf("DefaultConfigPaths()[%d] = %v, should contain 'tardrop.yaml'", i, path)
		}
	}
	if !strings.HasPrefix(paths[2], "/etc/tardrop") {
		t.Errorf("DefaultConfigPaths()[2] should start with /etc/tardrop, got %v", paths[2])
	}
}
