package fileutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// openTestDB creates a WAL-mode database with n rows and leaves it open, so
// committed rows may still live only in the -wal file.
func openTestDB(t *testing.T, path string, n int) *sql.DB {
	t.Helper()

	if err := EnsureDirForFile(path); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(t.Context(), "CREATE TABLE mail (id INTEGER PRIMARY KEY, subject TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for i := range n {
		if _, err := db.ExecContext(t.Context(), "INSERT INTO mail (subject) VALUES (?)", "msg"); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	return db
}

func countRows(t *testing.T, path string) int {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open copy: %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	var n int
	if err := db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM mail").Scan(&n); err != nil {
		t.Fatalf("count rows in %s: %v", path, err)
	}
	return n
}

func TestCopyTree(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "data")
	writeTestFile(t, filepath.Join(src, "config.json"), `{"a":1}`)
	writeTestFile(t, filepath.Join(src, "logs", "app.log"), "started\n")
	openTestDB(t, filepath.Join(src, "db", "state.db"), 25)

	dst := filepath.Join(t.TempDir(), "snapshot")
	if err := CopyTree(t.Context(), src, dst); err != nil {
		t.Fatalf("CopyTree() error: %v", err)
	}

	if got := readTestFile(t, filepath.Join(dst, "config.json")); got != `{"a":1}` {
		t.Errorf("config.json = %q", got)
	}
	if got := readTestFile(t, filepath.Join(dst, "logs", "app.log")); got != "started\n" {
		t.Errorf("app.log = %q", got)
	}
	for _, suffix := range sqliteSidecars {
		if _, err := os.Stat(filepath.Join(dst, "db", "state.db"+suffix)); err == nil {
			t.Errorf("sidecar %s was copied", suffix)
		}
	}
	if got := countRows(t, filepath.Join(dst, "db", "state.db")); got != 25 {
		t.Errorf("rows in copied database = %d, want 25", got)
	}
}

func TestCopyTree_Symlink(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	src := filepath.Join(t.TempDir(), "data")
	writeTestFile(t, filepath.Join(src, "real.txt"), "x")
	if err := os.Symlink("real.txt", filepath.Join(src, "link.txt")); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "snap")
	if err := CopyTree(t.Context(), src, dst); err != nil {
		t.Fatalf("CopyTree() error: %v", err)
	}
	link, err := os.Readlink(filepath.Join(dst, "link.txt"))
	if err != nil || link != "real.txt" {
		t.Errorf("Readlink = %q, %v; want real.txt", link, err)
	}
}

func TestCopyTree_Errors(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file.txt")
	writeTestFile(t, file, "x")
	existing := t.TempDir()

	tests := map[string]struct{ src, dst string }{
		"empty source":       {dst: filepath.Join(t.TempDir(), "d")},
		"missing source":     {src: filepath.Join(t.TempDir(), "absent"), dst: filepath.Join(t.TempDir(), "d")},
		"source is a file":   {src: file, dst: filepath.Join(t.TempDir(), "d")},
		"destination exists": {src: t.TempDir(), dst: existing},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if err := CopyTree(t.Context(), tc.src, tc.dst); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIsSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "state.db")
	openTestDB(t, dbPath, 1)
	textPath := filepath.Join(dir, "notes.txt")
	writeTestFile(t, textPath, "SQLite is not this file")
	emptyPath := filepath.Join(dir, "empty")
	writeTestFile(t, emptyPath, "")

	tests := map[string]struct {
		path string
		want bool
	}{
		"database":   {path: dbPath, want: true},
		"text file":  {path: textPath},
		"empty file": {path: emptyPath},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := IsSQLite(tc.path)
			if err != nil {
				t.Fatalf("IsSQLite() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsSQLite() = %v, want %v", got, tc.want)
			}
		})
	}
}
