package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/testcoord/internal/fault"
)

// ErrEmptyPath is returned when a required path is empty.
const ErrEmptyPath = fault.Error("path must not be empty")

// ErrUnsafeRemove is returned by RemoveAll for paths it refuses to delete.
const ErrUnsafeRemove = fault.Error("refusing to remove path")

// EnsureDir creates path and its parents with mode 0755.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}

// RemoveAll deletes path and everything below it. A missing path is not an
// error. Empty paths, filesystem roots, the working directory, and its
// ancestors are rejected.
func RemoveAll(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if abs == filepath.Dir(abs) {
		return fmt.Errorf("%w: %s is a filesystem root", ErrUnsafeRemove, abs)
	}
	if wd, err := os.Getwd(); err == nil && contains(abs, wd) {
		return fmt.Errorf("%w: %s contains the working directory", ErrUnsafeRemove, abs)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("remove %s: %w", abs, err)
	}
	return nil
}

// contains reports whether dir is path or one of its ancestors.
func contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
