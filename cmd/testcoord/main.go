// Command testcoord exposes the test coordinator to shell scripts and CI
// jobs: it reports port blocks, restores local tools, runs smtp4dev, and
// restores snapshots.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
