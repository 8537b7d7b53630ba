package fileutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"
)

// sqliteHeader starts every SQLite 3 database file.
var sqliteHeader = []byte("SQLite format 3\x00")

// sqliteSidecars are the files SQLite keeps next to a database while it is
// open. They are folded into the copy by VACUUM INTO and never copied.
var sqliteSidecars = []string{"-wal", "-shm", "-journal"}

// IsSQLite reports whether path is a SQLite database file.
func IsSQLite(path string) (bool, error) {
	f, err := os.Open(path) //nolint:gosec // G304: paths are from controlled sources
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return false, nil //nolint:nilerr // shorter than a header means not a database
	}
	return bytes.Equal(header, sqliteHeader), nil
}

// isSidecar reports whether name is a journal file of a database in dbs.
func isSidecar(name string, dbs map[string]struct{}) bool {
	for _, suffix := range sqliteSidecars {
		if base, ok := strings.CutSuffix(name, suffix); ok {
			if _, isDB := dbs[base]; isDB {
				return true
			}
		}
	}
	return false
}

// CopySQLite writes a transactionally consistent copy of the database at src
// to dst using VACUUM INTO, which includes committed data still sitting in
// the write-ahead log. dst must not exist.
func CopySQLite(ctx context.Context, src, dst string) error {
	if src == "" || dst == "" {
		return ErrEmptyPath
	}
	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)", src)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", src, err)
	}
	defer db.Close() //nolint:errcheck // the copy result is what matters

	// Single connection; VACUUM cannot run inside a pooled transaction.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("vacuum %s into %s: %w", src, dst, err)
	}
	return nil
}
