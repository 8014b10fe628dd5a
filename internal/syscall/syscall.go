// Package syscall demultiplexes user-mode ecalls: the code arrives in the
// saved a0 register slot, up to six arguments in a1-a6, and the result is
// written back into a0.
//
// On real hardware these arguments would be raw pointers into a flat
// address space. This simulation has no flat address space to borrow
// pointers from, since internal/heap hands back byte slices rather than
// integers, so ALLOC/FREE identify live allocations by an opaque handle
// instead of by pointer value, and SPAWN/PROCS resolve their buffer
// arguments against the calling process's own stack. Both choices are
// recorded in DESIGN.md.
package syscall

import (
	"github.com/rs/zerolog"

	"github.com/mosin-men/mosinOS/internal/proc"
)

// Syscall codes, read from the saved a0 slot.
const (
	EXIT    = 1
	WRITE   = 2
	READ    = 3
	ALLOC   = 4
	FREE    = 5
	BARRIER = 6
	SPAWN   = 7
	WAITPID = 8
	KILL    = 9
	NPROC   = 10
	PROCS   = 11
	SLEEP   = 12
)

// Machine-mode ecall subcodes: which privilege level to mret into.
const (
	UMODE = 0
	MMODE = 3
)

// Register slots within the saved context array, per the RISC-V integer
// calling convention: a0 carries the code and, on return, the result;
// a1-a6 carry up to six arguments.
const (
	regA0 = 10
	regA1 = 11
	regA2 = 12
	regA3 = 13
	regA4 = 14
	regA5 = 15
	regA6 = 16
)

const errInvalid = 1

// Scheduler is the subset of sched.Scheduler the syscall layer drives.
type Scheduler interface {
	Spawn(stackSize, entryIP, qm uint32, data []byte, name string) int32
	Kill(pid int32) error
	WaitPid(pid int32)
	Sleep(seconds uint32)
	Exit()
	NProc() int
	Procs() []proc.Info
	Current() *proc.PCB
	Live(pid int32) bool
}

// Heap is the subset of heap.Heap the syscall layer drives.
type Heap interface {
	Alloc(nbytes int) []byte
	Free(ptr []byte)
}

// Console is the UART byte-sink/source WRITE and READ go through
// (internal/console provides the implementations).
type Console interface {
	WriteByte(b byte) error
	ReadByte() (b byte, ok bool)
}

// Dispatcher routes each syscall code to the scheduler, the heap, or the
// console, and owns the handle table backing ALLOC/FREE.
type Dispatcher struct {
	Sched   Scheduler
	Heap    Heap
	Console Console
	Log     zerolog.Logger

	allocs     map[uint32][]byte
	nextHandle uint32
	lastProcs  []proc.Info
}

// New constructs a syscall dispatcher over the given collaborators.
func New(sched Scheduler, heap Heap, console Console, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Sched:   sched,
		Heap:    heap,
		Console: console,
		Log:     log,
		allocs:  make(map[uint32][]byte),
	}
}

// Dispatch reads the syscall code and arguments from ctx's a0-a6 slots
// and writes the result back into a0.
func (d *Dispatcher) Dispatch(ctx *[32]uint32) {
	code := ctx[regA0]
	a1, a2, a3, a4, a5, a6 := ctx[regA1], ctx[regA2], ctx[regA3], ctx[regA4], ctx[regA5], ctx[regA6]

	var result uint32
	switch code {
	case EXIT:
		d.Sched.Exit()
		result = 0
	case WRITE:
		result = d.write(byte(a1))
	case READ:
		result = d.read()
	case ALLOC:
		result = d.alloc(a1)
	case FREE:
		d.free(a1)
		result = 0
	case BARRIER:
		result = 0
	case SPAWN:
		result = uint32(d.spawn(a1, a2, a3, a4, a5, a6))
	case WAITPID:
		result = d.waitpid(int32(a1))
	case KILL:
		result = d.kill(int32(a1))
	case NPROC:
		result = uint32(d.Sched.NProc())
	case PROCS:
		result = d.procs()
	case SLEEP:
		d.Sched.Sleep(a1)
		result = 0
	default:
		d.Log.Warn().Uint32("code", code).Msg("unknown user mode ecall code")
		result = errInvalid
	}

	ctx[regA0] = result
}

func (d *Dispatcher) write(b byte) uint32 {
	if d.Console == nil {
		return errInvalid
	}
	if err := d.Console.WriteByte(b); err != nil {
		return errInvalid
	}
	return 0
}

func (d *Dispatcher) read() uint32 {
	if d.Console == nil {
		return 0xFFFFFFFF
	}
	b, ok := d.Console.ReadByte()
	if !ok {
		return 0xFFFFFFFF
	}
	return uint32(b)
}

// alloc hands back a 1-based opaque handle rather than a pointer value;
// handle 0 means "allocation failed", matching a null return.
func (d *Dispatcher) alloc(nbytes uint32) uint32 {
	buf := d.Heap.Alloc(int(nbytes))
	if buf == nil {
		return 0
	}
	h := d.nextHandle + 1
	d.nextHandle++
	d.allocs[h] = buf
	return h
}

func (d *Dispatcher) free(handle uint32) {
	if handle == 0 {
		return
	}
	buf, ok := d.allocs[handle]
	if !ok {
		d.Log.Error().Uint32("handle", handle).Msg("syscall: free of unknown handle")
		return
	}
	d.Heap.Free(buf)
	delete(d.allocs, handle)
}

// spawn resolves data/name offsets against the calling process's own
// stack: there is no flat address space for a raw pointer argument to
// index into otherwise.
func (d *Dispatcher) spawn(stackSize, entryIP, qm, dataOff, dataLen, nameOff uint32) int32 {
	cur := d.Sched.Current()

	var data []byte
	var name string
	if cur != nil {
		if dataLen > 0 {
			if buf, ok := slice(cur.StackBase, dataOff, dataLen); ok {
				data = buf
			}
		}
		name = readCString(cur.StackBase, nameOff)
	}

	return d.Sched.Spawn(stackSize, entryIP, qm, data, name)
}

func (d *Dispatcher) waitpid(pid int32) uint32 {
	if d.Sched.Current() == nil || !d.Sched.Live(pid) {
		return errInvalid
	}
	d.Sched.WaitPid(pid)
	return 0
}

func (d *Dispatcher) kill(pid int32) uint32 {
	if err := d.Sched.Kill(pid); err != nil {
		return errInvalid
	}
	return 0
}

// procs snapshots every live process. There is no flat address space to
// publish the "out" pointer argument into, so the snapshot is retained
// and exposed via LastProcs instead (see package doc).
func (d *Dispatcher) procs() uint32 {
	d.lastProcs = d.Sched.Procs()
	return uint32(len(d.lastProcs))
}

// LastProcs returns the snapshot taken by the most recent PROCS syscall.
func (d *Dispatcher) LastProcs() []proc.Info { return d.lastProcs }

func slice(mem []byte, off, length uint32) ([]byte, bool) {
	start, n := int(off), int(length)
	if start < 0 || n < 0 || start+n > len(mem) {
		return nil, false
	}
	return mem[start : start+n], true
}

func readCString(mem []byte, off uint32) string {
	start := int(off)
	if start < 0 || start >= len(mem) {
		return ""
	}
	end := start
	for end < len(mem) && mem[end] != 0 {
		end++
	}
	return string(mem[start:end])
}
