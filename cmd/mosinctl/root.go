package main

import (
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mosinctl",
		Short: "Drive a simulated mosinOS kernel from the host",
		Long: "mosinctl boots the mosinOS trap/scheduler/heap core against a board\n" +
			"profile and steps it, without needing QEMU or real hardware.",
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newBoardsCmd())

	return root
}
