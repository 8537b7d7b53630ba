package toolsetup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// ExecutableExtension returns the suffix executables carry on this OS.
func ExecutableExtension() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// result is the buffered output of a finished command.
type result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runBuffered runs name in dir and buffers both output streams. A non-zero
// exit status is reported through ExitCode, not as an error; the error is
// reserved for commands that could not be run at all.
func runBuffered(ctx context.Context, dir, name string, args ...string) (result, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // commands come from configuration
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("run %s: %w", name, err)
	}
}
