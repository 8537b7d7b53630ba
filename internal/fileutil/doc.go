// Package fileutil holds the file operations behind environment snapshots:
// directory creation, guarded recursive removal, atomic file copies, and
// CopyTree, which copies a directory while taking consistent copies of any
// SQLite databases inside it.
package fileutil
