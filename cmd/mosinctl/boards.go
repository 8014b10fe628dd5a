package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mosin-men/mosinOS/internal/board"
)

func newBoardsCmd() *cobra.Command {
	var boardsFile string

	cmd := &cobra.Command{
		Use:   "boards",
		Short: "List the board profiles available in the boards.toml file",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := board.LoadProfiles(boardsFile)
			if err != nil {
				return fmt.Errorf("loading board profiles: %w", err)
			}

			names := make([]string, 0, len(profiles))
			for name := range profiles {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFREQ_HZ\tCLINT_BASE\tUART_BASE")
			for _, name := range names {
				p := profiles[name]
				fmt.Fprintf(w, "%s\t%d\t0x%08x\t0x%08x\n", p.Name, p.FreqHz, p.ClintBase, p.UartBase)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&boardsFile, "boards-file", "boards.toml", "path to the board profile TOML file")

	return cmd
}
