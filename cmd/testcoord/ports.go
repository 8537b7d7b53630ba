package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Show the port blocks of a group",
	Long: `Print the port block every pool assigns to the selected group. With
--lease, also print one port of that pool that is free right now.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	portsCmd.Flags().String("lease", "", "Pool to pick a free port from")
}

func runPorts(cmd *cobra.Command, _ []string) error {
	coord, err := newCoordinator()
	if err != nil {
		return err
	}
	defer func() { _ = coord.Shutdown() }()

	out := cmd.OutOrStdout()
	for _, name := range coord.PoolNames() {
		p, _ := coord.Pool(name)
		lower, upper := p.Range()
		fmt.Fprintf(out, "%-8s %d-%d\n", name, lower, upper)
	}

	poolName, _ := cmd.Flags().GetString("lease")
	if poolName == "" {
		return nil
	}
	p, ok := coord.Pool(poolName)
	if !ok {
		return fmt.Errorf("unknown pool %q", poolName)
	}
	port, err := p.LeaseRandomPort()
	if err != nil {
		return fmt.Errorf("lease from %s: %w", poolName, err)
	}
	defer p.StopLease(port)
	fmt.Fprintln(out, port)
	return nil
}
