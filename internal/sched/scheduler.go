// Package sched implements the CFS-style, red-black-tree-backed process
// scheduler. Every stack it manages is allocated from an
// internal/heap.Heap; the ready queue is an internal/rbtree.Tree keyed by
// vruntime, so the next process to run is always the tree minimum.
package sched

import (
	"fmt"

	"github.com/mosin-men/mosinOS/internal/heap"
	"github.com/mosin-men/mosinOS/internal/proc"
	"github.com/mosin-men/mosinOS/internal/rbtree"
)

// TickHz is the target scheduling quantum rate: one tick every 10ms.
const TickHz = 100

// Scheduler owns the ready tree, the currently-running PCB, and the
// shared 32-word context array trap entry/exit saves into and restores
// from. Ctx lives here rather than as a package-level global; the kernel
// wires exactly one Scheduler for the process's lifetime.
type Scheduler struct {
	Heap *heap.Heap
	Ctx  [32]uint32

	current *proc.PCB
	ready   *rbtree.Tree[uint32, *proc.PCB]
	nextPid int32
}

// New constructs an empty scheduler backed by h.
func New(h *heap.Heap) *Scheduler {
	return &Scheduler{Heap: h, ready: rbtree.New[uint32, *proc.PCB]()}
}

// addToTree inserts pcb keyed by key, probing forward by one on collision
// to keep the tree duplicate-free while preserving a strict total order.
func (s *Scheduler) addToTree(key uint32, p *proc.PCB) {
	for {
		if _, ok := s.ready.Lookup(key); !ok {
			s.ready.Insert(key, p)
			return
		}
		key++
	}
}

// Spawn allocates a PCB and a stack of stackSize bytes, copies data to the
// top of the new stack, and inserts the new process into the ready tree.
// It returns -1 if the stack could not be allocated.
func (s *Scheduler) Spawn(stackSize uint32, entryIP, qm uint32, data []byte, name string) int32 {
	stack := s.Heap.Alloc(int(stackSize))
	if stack == nil {
		return -1
	}

	vruntime := uint32(s.ready.Len)
	p := proc.NewIdle(s.nextPid, stack, entryIP, qm, vruntime, name)

	if len(data) > 0 {
		off := len(stack) - len(data)
		copy(stack[off:], data)
		p.Context[proc.RegA0] = uint32(off)
		p.Context[proc.RegA1] = uint32(len(data))
	} else {
		p.Context[proc.RegA0] = uint32(len(stack))
		p.Context[proc.RegA1] = 0
	}
	p.Context[proc.RegSP] = uint32(len(stack))

	s.addToTree(vruntime, p)
	s.nextPid++
	return p.Pid
}

// Tick runs on every timer interrupt: snapshot the live context into the
// running process, advance its vruntime by QM, re-insert it into the
// ready tree, and pick a successor. It returns the mepc to resume at.
func (s *Scheduler) Tick(savedMepc uint32) uint32 {
	if s.current == nil {
		return s.pickNext(savedMepc)
	}

	s.current.Context = s.Ctx
	s.current.Vruntime += s.current.QM
	s.current.PC = savedMepc
	s.current.SetRunning(false)
	s.addToTree(s.current.Vruntime, s.current)
	s.current = nil

	return s.pickNext(savedMepc)
}

// pickNext scans the tree in vruntime order: reap killed processes, set
// aside blocked/sleeping ones, adopt the first eligible candidate as
// current, and restore its context.
func (s *Scheduler) pickNext(mepc uint32) uint32 {
	livePids := s.liveTreePids()

	var scanned []*proc.PCB
	var requeue []*proc.PCB

	for {
		key, p, ok := s.ready.First()
		if !ok {
			break
		}
		s.ready.Delete(key)

		if p.Kill {
			s.Heap.Free(p.StackBase)
			continue
		}
		scanned = append(scanned, p)

		switch {
		case p.WaitPid != -1 && livePids[p.WaitPid]:
			requeue = append(requeue, p)
		case p.Sleep > 0:
			requeue = append(requeue, p)
		default:
			p.WaitPid = -1
			s.current = p
		}
		if s.current != nil {
			break
		}
	}

	for _, p := range scanned {
		if p.Sleep > 0 {
			p.Sleep--
		}
	}
	for _, p := range requeue {
		s.addToTree(p.Vruntime, p)
	}

	if s.current == nil {
		return mepc
	}

	s.current.SetRunning(true)
	s.Ctx = s.current.Context
	return s.current.PC
}

// liveTreePids snapshots the pids currently sitting in the ready tree,
// taken before pickNext starts popping entries out of it. A waitpid
// target is judged live against this snapshot, not against the shrinking
// tree, so a process reaped mid-scan still counts as live for one tick.
func (s *Scheduler) liveTreePids() map[int32]bool {
	m := make(map[int32]bool, s.ready.Len)
	s.ready.Walk(func(_ uint32, p *proc.PCB) { m[p.Pid] = true })
	return m
}

func (s *Scheduler) findLive(pid int32) *proc.PCB {
	if s.current != nil && s.current.Pid == pid {
		return s.current
	}
	var found *proc.PCB
	s.ready.Walk(func(_ uint32, p *proc.PCB) {
		if p.Pid == pid {
			found = p
		}
	})
	return found
}

// Kill sets the kill flag on pid's PCB; the reaper runs at the next
// scheduling decision. It returns an error if pid does not exist.
func (s *Scheduler) Kill(pid int32) error {
	p := s.findLive(pid)
	if p == nil {
		return fmt.Errorf("sched: no such pid %d", pid)
	}
	p.Kill = true
	return nil
}

// WaitPid records that the currently running process is blocked on pid.
// It is a no-op if there is no current process.
func (s *Scheduler) WaitPid(pid int32) {
	if s.current == nil {
		return
	}
	s.current.WaitPid = pid
}

// Sleep puts the currently running process to sleep for the given number
// of seconds, converted to ticks at TickHz.
func (s *Scheduler) Sleep(seconds uint32) {
	if s.current == nil {
		return
	}
	s.current.Sleep = int32(seconds * TickHz)
}

// Exit sets the kill flag on the currently running process.
func (s *Scheduler) Exit() {
	if s.current == nil {
		return
	}
	s.current.Kill = true
}

// Current returns the PCB currently selected to run, or nil.
func (s *Scheduler) Current() *proc.PCB { return s.current }

// Live reports whether pid names a currently-live process (current or
// still in the ready tree), used by the syscall layer to validate a
// WAITPID target.
func (s *Scheduler) Live(pid int32) bool { return s.findLive(pid) != nil }

// NProc returns the number of live processes: tree size plus one if a
// process is current.
func (s *Scheduler) NProc() int {
	n := s.ready.Len
	if s.current != nil {
		n++
	}
	return n
}

// Procs snapshots every live PCB into Info records, current first.
func (s *Scheduler) Procs() []proc.Info {
	out := make([]proc.Info, 0, s.NProc())
	if s.current != nil {
		out = append(out, s.current.Snapshot())
	}
	s.ready.Walk(func(_ uint32, p *proc.PCB) {
		out = append(out, p.Snapshot())
	})
	return out
}
