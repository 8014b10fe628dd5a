package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// consoleWriter returns a zerolog console writer with color enabled only
// when stderr is an actual terminal, matching how SchawnnDev-awesomeVM's
// CLI gates colored output on term.IsTerminal.
func consoleWriter() io.Writer {
	isTTY := term.IsTerminal(int(os.Stderr.Fd()))
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    !isTTY,
		TimeFormat: "15:04:05",
	}
}
