package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [dir]",
	Short: "Restore local tools",
	Long: `Run the local tool restore in dir. Without dir, restore next to the
configured manifest.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	dir := filepath.Dir(filepath.Dir(viper.GetString("manifest")))
	if len(args) == 1 {
		dir = args[0]
	}

	coord, err := newCoordinator()
	if err != nil {
		return err
	}
	defer func() { _ = coord.Shutdown() }()

	if err := coord.RestoreTools(cmd.Context(), dir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored tools in %s\n", dir)
	return nil
}
