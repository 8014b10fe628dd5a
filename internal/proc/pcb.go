// Package proc defines the process control block the scheduler manages.
//
// A process's scheduling disposition is really a tagged union, one of
// {running, ready, sleeping(n), waiting_on(pid), killed}, rather than
// three independent fields, since a process occupies exactly one of
// those states at a time. State() derives that union from the stored
// fields instead of duplicating them, so callers get a single switch
// instead of three independent boolean checks scattered through the
// scheduler.
package proc

import "fmt"

// Register slot indices into Context, mirroring the assembly trap
// entry/exit's save order (a0 is x10, a1 is x11, sp is x2 in the RISC-V
// integer ABI).
const (
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
)

// State is the process's scheduling disposition, derived from PCB fields.
type State int

const (
	StateReady State = iota
	StateRunning
	StateSleeping
	StateWaiting
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateWaiting:
		return "waiting"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PCB is a process control block: all per-process state the kernel keeps.
type PCB struct {
	Context  [32]uint32
	PC       uint32
	Vruntime uint32
	QM       uint32
	Pid      int32

	StackBase []byte
	StackSize uint32
	Name      string

	Kill    bool
	WaitPid int32
	Sleep   int32

	running bool
}

// NewIdle constructs a PCB ready to be scheduled for the first time
// (waitpid=-1, kill=false, sleep=0).
func NewIdle(pid int32, stack []byte, entryIP, qm, vruntime uint32, name string) *PCB {
	return &PCB{
		PC:        entryIP,
		QM:        qm,
		Pid:       pid,
		Vruntime:  vruntime,
		StackBase: stack,
		StackSize: uint32(len(stack)),
		Name:      name,
		WaitPid:   -1,
	}
}

// State reports which of the tagged-union states this PCB currently
// occupies. Kill takes priority over everything else; a waitpid target
// takes priority over sleep, the same order pickNext checks them in.
func (p *PCB) State() State {
	switch {
	case p.Kill:
		return StateKilled
	case p.running:
		return StateRunning
	case p.WaitPid != -1:
		return StateWaiting
	case p.Sleep > 0:
		return StateSleeping
	default:
		return StateReady
	}
}

// SetRunning marks/unmarks this PCB as the scheduler's current process.
// It does not touch any other field; callers update Context/PC/Vruntime
// themselves around a tick.
func (p *PCB) SetRunning(running bool) { p.running = running }

// Info is the read-only snapshot published by the PROCS syscall.
type Info struct {
	Pid      int32
	Vruntime uint32
	Name     string
	WaitPid  int32
	Sleep    int32
	State    State
}

// Snapshot returns an Info record describing p.
func (p *PCB) Snapshot() Info {
	return Info{
		Pid:      p.Pid,
		Vruntime: p.Vruntime,
		Name:     p.Name,
		WaitPid:  p.WaitPid,
		Sleep:    p.Sleep,
		State:    p.State(),
	}
}
