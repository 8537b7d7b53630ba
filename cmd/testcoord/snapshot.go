package main

import (
	"fmt"

	"github.com/giantswarm/testcoord"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Work with environment snapshots",
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <location> <data-dir>",
	Short: "Replace a data directory with a copy of a snapshot",
	Long: `Replace data-dir with a copy of the snapshot at location. SQLite
databases are copied consistently.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := testcoord.RestoreSnapshot(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	snapshotCmd.AddCommand(snapshotRestoreCmd)
}
