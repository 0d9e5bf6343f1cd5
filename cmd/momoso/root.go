package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "momoso",
		Short:         "Operator tooling for the Momoso API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newKeysCmd(),
		newTokenCmd(),
		newTranscribeCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "version:", Version)
			},
		},
	)
	return root
}
