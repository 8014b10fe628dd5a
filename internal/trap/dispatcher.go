// Package trap implements the machine-mode trap dispatcher: the top bit
// of mcause splits asynchronous interrupts from synchronous exceptions,
// and the low 31 bits select the handler. Faults are emitted as
// structured zerolog events together with a halted flag, so callers (the
// kernel's boot loop, or tests) can observe the outcome instead of
// reading console scrollback.
package trap

import "github.com/rs/zerolog"

const (
	interruptBit = 0x80000000
	codeMask     = 0x7FFFFFFF
	instLenMask  = 0x00000003
)

// Async interrupt codes. Only MTimer is acted on; the rest are named so
// an unexpected interrupt logs something readable.
const (
	CauseUSoftware = 0
	CauseSSoftware = 1
	CauseMSoftware = 3
	CauseUTimer    = 4
	CauseSTimer    = 5
	CauseMTimer    = 7
	CauseUExternal = 8
	CauseSExternal = 9
	CauseMExternal = 11
)

// Synchronous exception codes.
const (
	CauseIAddrMissaligned = 0
	CauseIAccessFault     = 1
	CauseIllegalInst      = 2
	CauseBreak            = 3
	CauseLAddrMissaligned = 4
	CauseLAccessFault     = 5
	CauseSAddrMissaligned = 6
	CauseSAccessFault     = 7
	CauseUEcall           = 8
	CauseSEcall           = 9
	CauseMEcall           = 11
	CauseIPageFault       = 12
	CauseLPageFault       = 13
	CauseReserved14       = 14
	CauseSPageFault       = 15
)

var fatalSyncCauses = map[uint32]string{
	CauseIllegalInst:      "illegal instruction",
	CauseLAddrMissaligned: "load address missaligned",
	CauseLAccessFault:     "load access fault",
	CauseSAddrMissaligned: "store address missaligned",
	CauseSAccessFault:     "store access fault",
	CauseIPageFault:       "instruction page fault",
	CauseLPageFault:       "load page fault",
	CauseReserved14:       "reserved synchronous cause",
	CauseSPageFault:       "store page fault",
}

// Cause decodes a raw mcause CSR value.
type Cause uint32

// Async reports whether the top bit (interrupt) is set.
func (c Cause) Async() bool { return uint32(c)&interruptBit != 0 }

// Code extracts the low 31 bits.
func (c Cause) Code() uint32 { return uint32(c) & codeMask }

// Scheduler is the subset of sched.Scheduler the dispatcher drives on a
// timer interrupt.
type Scheduler interface {
	Tick(savedMepc uint32) uint32
}

// Syscalls demultiplexes a user ecall using the saved register context.
type Syscalls interface {
	Dispatch(ctx *[32]uint32)
}

// ModeSwitcher performs the machine-mode ecall privilege transition
// (subcode 0: to user, subcode 3: back to machine).
type ModeSwitcher interface {
	Switch(subcode uint32)
}

// Dispatcher is the kernel's single trap entry point, wired once at boot.
type Dispatcher struct {
	Sched    Scheduler
	Ctx      *[32]uint32
	Syscalls Syscalls
	Mode     ModeSwitcher
	// Fetch reads the 32-bit word at a faulting mepc, used only to decide
	// whether the trapping instruction was compressed (16-bit) or not.
	Fetch func(mepc uint32) uint32
	Log   zerolog.Logger
}

// Handle decodes cause and routes the trap, returning the mepc to resume
// at. halted reports an unrecoverable fault; callers should stop driving
// further traps.
func (d *Dispatcher) Handle(cause, mepc, mtval uint32) (newMepc uint32, halted bool) {
	c := Cause(cause)
	code := c.Code()

	if c.Async() {
		return d.handleAsync(code, mepc)
	}
	return d.handleSync(code, mepc, mtval)
}

func (d *Dispatcher) handleAsync(code, mepc uint32) (uint32, bool) {
	if code == CauseMTimer {
		return d.Sched.Tick(mepc), false
	}
	d.Log.Warn().Uint32("cause", code).Msg("unhandled asynchronous interrupt")
	return mepc, false
}

func (d *Dispatcher) handleSync(code, mepc, mtval uint32) (uint32, bool) {
	switch code {
	case CauseUEcall:
		d.Syscalls.Dispatch(d.Ctx)
		return d.advance(mepc), false
	case CauseMEcall:
		d.Mode.Switch(d.Ctx[10]) // a0 carries UMODE(0)/MMODE(3)
		return d.advance(mepc), false
	default:
		if reason, fatal := fatalSyncCauses[code]; fatal {
			d.Log.Error().Uint32("cause", code).Uint32("mepc", mepc).Uint32("mtval", mtval).
				Msg(reason)
			return mepc, true
		}
		d.Log.Warn().Uint32("cause", code).Msg("unknown synchronous trap code")
		return mepc, true
	}
}

// advance implements the mepc-advancement rule: 32-bit instructions (low
// two bits 11) add 4; compressed 16-bit instructions add 2.
func (d *Dispatcher) advance(mepc uint32) uint32 {
	instr := d.Fetch(mepc)
	if instr&instLenMask == instLenMask {
		return mepc + 4
	}
	return mepc + 2
}
