// Package board describes the hardware targets the kernel runs on: CLINT
// and UART register maps, PMP register encoding, and per-board profiles
// (clock frequency, device base addresses) loaded from a boards.toml
// file. Keeping board selection in a runtime profile rather than a build
// tag lets one binary drive any of the supported targets.
package board

import "github.com/BurntSushi/toml"

// CLINT register offsets from the board's CLINT base.
const (
	RegMSIP       = 0x0000
	RegMTimeCmpLo = 0x4000
	RegMTimeCmpHi = 0x4004
	RegMTimeLo    = 0xBFF8
	RegMTimeHi    = 0xBFFC
)

// UART register offsets from the board's UART base (SiFive UART layout).
const (
	RegTxData = 0x00
	RegRxData = 0x04
	RegTxCtrl = 0x08
	RegRxCtrl = 0x0C
	RegDiv    = 0x18
)

const BaudRate = 115_200

// Profile describes one board target: clock frequency and the two
// memory-mapped device base addresses the kernel needs.
type Profile struct {
	Name      string `toml:"name"`
	FreqHz    uint32 `toml:"freq_hz"`
	ClintBase uint32 `toml:"clint_base"`
	UartBase  uint32 `toml:"uart_base"`
}

// UartDivisor computes the baud-rate divisor the UART's DIV register
// expects: FREQ/115200 - 1.
func (p Profile) UartDivisor() uint32 {
	return p.FreqHz/BaudRate - 1
}

type profilesFile struct {
	Board []Profile `toml:"board"`
}

// LoadProfiles parses a boards.toml file (one [[board]] table per
// target) into a name-indexed map.
func LoadProfiles(path string) (map[string]Profile, error) {
	var f profilesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, err
	}
	out := make(map[string]Profile, len(f.Board))
	for _, p := range f.Board {
		out[p.Name] = p
	}
	return out, nil
}
