// Package heap implements the kernel's freelist allocator.
//
// This is a software model of mosinOS's heap: a single contiguous byte
// region, managed as a singly-traversed freelist of 4-byte headers. It
// backs every process stack allocated by internal/sched; PCBs themselves
// are ordinary Go values and are not placed in this region. There is
// exactly one pool, shared by kernel and user allocations alike.
//
// Header layout (one 32-bit word per block, immediately before the payload):
//
//	bit 31       reserved, always zero
//	bit 15 (lo)  taken flag
//	bits 0-14    cur_size, in 4-byte words, excluding the header
//	bits 16-30   prev_size, in 4-byte words, of the physically preceding block
package heap

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	// MaxAlloc is the largest single allocation this heap will satisfy:
	// (2^15) 4-byte words.
	MaxAlloc = (1 << 15) * 4

	wordSize    = 4
	sizeBits    = 15
	sizeMask    = (1 << sizeBits) - 1
	takenBit    = 1 << sizeBits
	prevShift   = 16
	maxSizeWord = sizeMask
)

// header packs taken/cur_size/prev_size as described in the package doc.
type header uint32

func makeHeader(taken bool, curWords, prevWords int) header {
	var h header
	if taken {
		h |= takenBit
	}
	h |= header(curWords & sizeMask)
	h |= header(prevWords&sizeMask) << prevShift
	return h
}

func (h header) taken() bool   { return h&takenBit != 0 }
func (h header) curWords() int { return int(h & sizeMask) }
func (h header) prevWords() int {
	return int((h >> prevShift) & sizeMask)
}

// Heap is a freelist allocator over a caller-provided byte slice. The slice
// plays the role of the linker-defined [__heap_start, __heap_end) region;
// Heap never grows or shrinks it.
type Heap struct {
	mem []byte
	Log zerolog.Logger
}

// New wraps region as a heap and writes a single free header spanning the
// whole region. region's length must be a multiple of 4 and at least 4
// bytes; region is not copied. log reports misuse such as an out-of-range
// Free, through the same zerolog.Logger every other component threads
// through (trap.Dispatcher, syscall.Dispatcher, kernel.Kernel).
func New(region []byte, log zerolog.Logger) (*Heap, error) {
	if len(region) < wordSize {
		return nil, fmt.Errorf("heap: region of %d bytes too small", len(region))
	}
	if len(region)%wordSize != 0 {
		return nil, fmt.Errorf("heap: region size %d not a multiple of %d", len(region), wordSize)
	}
	h := &Heap{mem: region, Log: log}
	curWords := (len(region) - wordSize) / wordSize
	h.putHeader(0, makeHeader(false, curWords, 0))
	return h, nil
}

func (h *Heap) getHeader(off int) header {
	b := h.mem[off : off+wordSize]
	return header(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func (h *Heap) putHeader(off int, v header) {
	b := h.mem[off : off+wordSize]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func roundUpWords(nbytes int) int {
	return (nbytes + wordSize - 1) / wordSize
}

// Alloc finds the first free block that fits nbytes and returns a slice
// into the block's payload. It returns nil if nbytes is zero, exceeds
// MaxAlloc, or no block is large enough.
//
// When the found block is exactly one word larger than required, the tail
// word is absorbed into the allocation rather than producing a zero-size
// successor block.
func (h *Heap) Alloc(nbytes int) []byte {
	if nbytes <= 0 || nbytes > MaxAlloc {
		return nil
	}
	needWords := roundUpWords(nbytes)

	off := 0
	for off < len(h.mem) {
		hdr := h.getHeader(off)
		cur := hdr.curWords()
		if !hdr.taken() && cur >= needWords {
			h.splitOrTake(off, hdr, needWords)
			return h.mem[off+wordSize : off+wordSize+nbytes]
		}
		off += wordSize + cur*wordSize
	}
	return nil
}

func (h *Heap) splitOrTake(off int, hdr header, needWords int) {
	cur := hdr.curWords()
	prev := hdr.prevWords()
	leftover := cur - needWords

	if leftover == 0 || leftover == 1 {
		// Exact fit, or exactly one spare word: absorb the tail rather
		// than emit a zero-payload successor header.
		h.putHeader(off, makeHeader(true, cur, prev))
		h.fixSuccessorPrevSize(off, cur)
		return
	}

	h.putHeader(off, makeHeader(true, needWords, prev))
	succOff := off + wordSize + needWords*wordSize
	h.putHeader(succOff, makeHeader(false, leftover-1, needWords))
	h.fixSuccessorPrevSize(succOff, leftover-1)
}

// fixSuccessorPrevSize updates the prev_size field of the block physically
// following the block at off (whose payload is curWords words), if any.
func (h *Heap) fixSuccessorPrevSize(off, curWords int) {
	succOff := off + wordSize + curWords*wordSize
	if succOff >= len(h.mem) {
		return
	}
	succ := h.getHeader(succOff)
	h.putHeader(succOff, makeHeader(succ.taken(), succ.curWords(), curWords))
}

// Free releases a pointer previously returned by Alloc. Freeing a pointer
// outside the heap region is a no-op, logged as an error. Coalesces with
// both physical neighbors when they are free, preserving prev_size
// chaining throughout.
func (h *Heap) Free(ptr []byte) {
	off, ok := h.offsetOf(ptr)
	if !ok {
		h.Log.Error().Int("len", len(ptr)).Msg("heap: free of out-of-range pointer")
		return
	}
	hdr := h.getHeader(off)
	h.putHeader(off, makeHeader(false, hdr.curWords(), hdr.prevWords()))
	h.coalesce(off)
}

// offsetOf recovers the header offset for a payload slice previously
// returned by Alloc, validating it lies within this heap's backing array.
// It locates ptr by comparing its address with each byte of the region,
// then requires the header just before it to mark a taken block large
// enough to hold ptr, which rejects bogus/foreign slices instead of
// trusting them.
func (h *Heap) offsetOf(ptr []byte) (int, bool) {
	if len(ptr) == 0 {
		return 0, false
	}
	payloadOff := -1
	for i := range h.mem {
		if &h.mem[i] == &ptr[0] {
			payloadOff = i
			break
		}
	}
	if payloadOff < wordSize {
		return 0, false
	}
	hdrOff := payloadOff - wordSize
	hdr := h.getHeader(hdrOff)
	if !hdr.taken() || hdr.curWords()*wordSize < len(ptr) {
		return 0, false
	}
	return hdrOff, true
}

// coalesce merges the free block at off with its free neighbors on both
// sides, updating prev_size chaining.
func (h *Heap) coalesce(off int) {
	hdr := h.getHeader(off)

	// Merge with successor.
	succOff := off + wordSize + hdr.curWords()*wordSize
	if succOff < len(h.mem) {
		succ := h.getHeader(succOff)
		if !succ.taken() {
			merged := hdr.curWords() + wordSize/wordSize + succ.curWords()
			h.putHeader(off, makeHeader(false, merged, hdr.prevWords()))
			h.fixSuccessorPrevSize(off, merged)
			hdr = h.getHeader(off)
		}
	}

	// Merge with predecessor.
	if hdr.prevWords() > 0 || off > 0 {
		predOff := off - wordSize - hdr.prevWords()*wordSize
		if predOff >= 0 {
			pred := h.getHeader(predOff)
			if !pred.taken() {
				merged := pred.curWords() + wordSize/wordSize + hdr.curWords()
				h.putHeader(predOff, makeHeader(false, merged, pred.prevWords()))
				h.fixSuccessorPrevSize(predOff, merged)
			}
		}
	}
}

// Walk calls fn for every block header from the base of the region to its
// end, in physical order. It exists for invariant checking and
// diagnostics; it is not part of the allocator's hot path.
func (h *Heap) Walk(fn func(taken bool, curWords, prevWords int)) {
	off := 0
	for off < len(h.mem) {
		hdr := h.getHeader(off)
		fn(hdr.taken(), hdr.curWords(), hdr.prevWords())
		off += wordSize + hdr.curWords()*wordSize
	}
}

// Size returns the total size in bytes of the region this heap manages.
func (h *Heap) Size() int { return len(h.mem) }
