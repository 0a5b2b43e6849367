package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:          "cooper",
		Short:        "Cooper group-expense service",
		Long:         "Cooper pools contributions for shared events, gates spending behind rules and votes, and releases held funds once a bill is approved.",
		SilenceUsage: true,
		Version:      version,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newVersionCmd(version))
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cooper", version)
		},
	}
}
