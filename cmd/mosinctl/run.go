package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mosin-men/mosinOS/internal/board"
	"github.com/mosin-men/mosinOS/internal/console"
	"github.com/mosin-men/mosinOS/internal/fsbrowse"
	"github.com/mosin-men/mosinOS/internal/trap"
	"github.com/mosin-men/mosinOS/kernel"
)

func newRunCmd() *cobra.Command {
	var (
		boardName  string
		boardsFile string
		heapBytes  int
		ticks      int
		qmA        uint32
		qmB        uint32
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the simulated kernel, spawn two demo processes, and step N ticks",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := board.LoadProfiles(boardsFile)
			if err != nil {
				return fmt.Errorf("loading board profiles: %w", err)
			}
			profile, ok := profiles[boardName]
			if !ok {
				return fmt.Errorf("unknown board %q (see `mosinctl boards`)", boardName)
			}

			log := newLogger(flagVerbose)
			clint := &board.SimClint{}
			con := &console.Loopback{}

			k, err := kernel.New(make([]byte, heapBytes), profile, clint, con, fsbrowse.NullBrowser{}, log)
			if err != nil {
				return fmt.Errorf("constructing kernel: %w", err)
			}
			k.Boot()

			a := k.Spawn(4096, 0x1000, qmA, nil, "a")
			b := k.Spawn(4096, 0x2000, qmB, nil, "b")
			log.Info().Int32("pid_a", a).Int32("pid_b", b).Msg("spawned demo processes")

			counts := map[int32]int{}
			for i := 0; i < ticks; i++ {
				_, halted := k.HandleTrap(uint32(0x80000000)|trap.CauseMTimer, 0, 0)
				if halted {
					return fmt.Errorf("kernel halted on an unrecoverable fault at tick %d", i)
				}
				if cur := k.Sched.Current(); cur != nil {
					counts[cur.Pid]++
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ticks=%d  a(pid=%d,QM=%d)=%d  b(pid=%d,QM=%d)=%d\n",
				ticks, a, qmA, counts[a], b, qmB, counts[b])
			return nil
		},
	}

	cmd.Flags().StringVar(&boardName, "board", "qemu", "board profile name (qemu, e31, hifive)")
	cmd.Flags().StringVar(&boardsFile, "boards-file", "boards.toml", "path to the board profile TOML file")
	cmd.Flags().IntVar(&heapBytes, "heap-bytes", 64*1024, "simulated heap region size")
	cmd.Flags().IntVar(&ticks, "ticks", 300, "number of timer ticks to simulate")
	cmd.Flags().Uint32Var(&qmA, "qm-a", 1, "quantum multiplier for demo process A")
	cmd.Flags().Uint32Var(&qmB, "qm-b", 2, "quantum multiplier for demo process B")

	return cmd
}
