// Package kernel wires the heap, scheduler, syscall layer and trap
// dispatcher into a single value rather than a set of ambient globals:
// one Kernel, constructed once at boot, owns the shared register context
// (sched.Scheduler.Ctx) and is handed to the trap entry point on every
// trap.
package kernel

import (
	"github.com/rs/zerolog"

	"github.com/mosin-men/mosinOS/internal/board"
	"github.com/mosin-men/mosinOS/internal/console"
	"github.com/mosin-men/mosinOS/internal/fsbrowse"
	"github.com/mosin-men/mosinOS/internal/heap"
	"github.com/mosin-men/mosinOS/internal/sched"
	"github.com/mosin-men/mosinOS/internal/syscall"
	"github.com/mosin-men/mosinOS/internal/trap"
)

// PrivMode is the privilege level mstatus.MPP encodes. The real CSR/mret
// sequence is a few instructions of assembly; Kernel tracks the logical
// mode that sequence would leave the core in.
type PrivMode int

const (
	PrivMachine PrivMode = iota
	PrivUser
)

func (m PrivMode) String() string {
	if m == PrivUser {
		return "user"
	}
	return "machine"
}

// Kernel bundles the tightly coupled core subsystems, heap, scheduler,
// syscall layer and trap dispatcher, plus the board profile and external
// collaborators (CLINT, console, filesystem) wired around them.
type Kernel struct {
	Heap     *heap.Heap
	Sched    *sched.Scheduler
	Syscalls *syscall.Dispatcher
	Trap     *trap.Dispatcher

	Clint   board.Clint
	Profile board.Profile
	Console console.Sink
	FS      fsbrowse.Browser
	Log     zerolog.Logger

	mode PrivMode
}

// New constructs a Kernel with a heap over heapRegion and every
// subsystem wired together, in machine mode, ready for Boot.
func New(heapRegion []byte, profile board.Profile, clint board.Clint, con console.Sink, fs fsbrowse.Browser, log zerolog.Logger) (*Kernel, error) {
	h, err := heap.New(heapRegion, log)
	if err != nil {
		return nil, err
	}

	s := sched.New(h)
	sc := syscall.New(s, h, con, log)

	k := &Kernel{
		Heap:     h,
		Sched:    s,
		Syscalls: sc,
		Clint:    clint,
		Profile:  profile,
		Console:  con,
		FS:       fs,
		Log:      log,
		mode:     PrivMachine,
	}

	k.Trap = &trap.Dispatcher{
		Sched:    s,
		Ctx:      &s.Ctx,
		Syscalls: sc,
		Mode:     k,
		Fetch:    fetchAssumeFullWidth,
		Log:      log,
	}

	return k, nil
}

// fetchAssumeFullWidth is the default instruction-fetch hook: without a
// real text segment mapped, assume every faulting instruction was a
// full-width (32-bit) one. This is exact for CauseUEcall/CauseMEcall,
// since `ecall` has no compressed encoding; callers driving other
// synchronous causes through a real memory image should override Fetch.
func fetchAssumeFullWidth(uint32) uint32 { return 0x3 }

// Boot re-arms the timer for the configured board profile and logs
// startup.
func (k *Kernel) Boot() {
	k.Log.Info().
		Str("board", k.Profile.Name).
		Uint32("freq_hz", k.Profile.FreqHz).
		Int("heap_bytes", k.Heap.Size()).
		Msg("mosinOS boot")
	board.Rearm(k.Clint, k.Profile.FreqHz)
}

// Mode reports the kernel's current logical privilege level.
func (k *Kernel) Mode() PrivMode { return k.mode }

// Switch implements trap.ModeSwitcher: the machine-mode ecall privilege
// transition.
func (k *Kernel) Switch(subcode uint32) {
	switch subcode {
	case syscall.UMODE:
		k.mode = PrivUser
	case syscall.MMODE:
		k.mode = PrivMachine
	default:
		k.Log.Warn().Uint32("subcode", subcode).Msg("unknown machine mode ecall code")
	}
}

// HandleTrap is the kernel's single trap entry point. On an M-timer
// interrupt it also re-arms CLINT so the next tick arrives one quantum
// out.
func (k *Kernel) HandleTrap(cause, mepc, mtval uint32) (newMepc uint32, halted bool) {
	newMepc, halted = k.Trap.Handle(cause, mepc, mtval)

	c := trap.Cause(cause)
	if c.Async() && c.Code() == trap.CauseMTimer {
		board.Rearm(k.Clint, k.Profile.FreqHz)
	}
	return newMepc, halted
}

// Spawn is a convenience wrapper over Sched.Spawn for boot-time process
// creation (the kernel's own init process, for instance).
func (k *Kernel) Spawn(stackSize, entryIP, qm uint32, data []byte, name string) int32 {
	return k.Sched.Spawn(stackSize, entryIP, qm, data, name)
}
