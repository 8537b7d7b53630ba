package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/testcoord/internal/fileutil"
)

// DirectoryEnvironment snapshots an environment whose whole state lives in
// DataDir. PauseFunc, when set, runs before the copy and ResumeFunc runs
// from Resume.
type DirectoryEnvironment struct {
	DataDir    string
	PauseFunc  func(ctx context.Context) error
	ResumeFunc func(ctx context.Context) error
}

// TakeSnapshot copies DataDir to location.
func (e *DirectoryEnvironment) TakeSnapshot(ctx context.Context, location string) error {
	if e.DataDir == "" {
		return errors.New("directory environment: data dir must not be empty")
	}
	if e.PauseFunc != nil {
		if err := e.PauseFunc(ctx); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
	}
	if err := fileutil.CopyTree(ctx, e.DataDir, location); err != nil {
		return fmt.Errorf("copy %s: %w", e.DataDir, err)
	}
	return nil
}

// Resume calls ResumeFunc when set.
func (e *DirectoryEnvironment) Resume(ctx context.Context) error {
	if e.ResumeFunc == nil {
		return nil
	}
	return e.ResumeFunc(ctx)
}

// Restore replaces dataDir with a copy of the snapshot at location.
func Restore(ctx context.Context, location, dataDir string) error {
	if err := fileutil.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("restore %s: %w", location, err)
	}
	if err := fileutil.CopyTree(ctx, location, dataDir); err != nil {
		return fmt.Errorf("restore %s: %w", location, err)
	}
	return nil
}
