// Command mosinctl is a host-side harness for the simulated kernel: it
// boots a Kernel against a board profile, steps timer ticks, and reports
// how many ticks each demo process was the current one. It stands in for flashing the real image to QEMU and
// reading UART output over a serial console.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(consoleWriter()).With().Timestamp().Logger().Level(level)
}
