package fileutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies the directory src to dst, which must not exist yet.
// Regular files keep their permissions; SQLite databases are copied with
// CopySQLite and their journal files are skipped. Symlinks are recreated
// as links. Other special files are ignored.
func CopyTree(ctx context.Context, src, dst string) error {
	if src == "" || dst == "" {
		return ErrEmptyPath
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("copy tree: %s is not a directory", src)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("copy tree: %s already exists", dst)
	}

	dbs, err := findDatabases(src)
	if err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return EnsureDir(target)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("read link %s: %w", path, err)
			}
			if err := os.Symlink(link, target); err != nil {
				return fmt.Errorf("create link %s: %w", target, err)
			}
			return nil
		case !d.Type().IsRegular():
			return nil
		case isSidecar(path, dbs):
			return nil
		}

		if _, isDB := dbs[path]; isDB {
			return CopySQLite(ctx, path, target)
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		return CopyFile(path, target, fi.Mode().Perm())
	})
}

// findDatabases returns the set of SQLite database files under root.
func findDatabases(root string) (map[string]struct{}, error) {
	dbs := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := IsSQLite(path)
		if err != nil {
			return err
		}
		if ok {
			dbs[path] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}
	return dbs, nil
}
