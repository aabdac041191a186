package codegen

import "github.com/cxxcore/ccc/internal/ir"

// Frame computes the rbp-relative offset of every local/parameter slot for
// one function, plus the aligned total frame size (§4.F "per-function
// stack-frame size + local->frame-offset map").
type Frame struct {
	Offsets []int // indexed by ir.Func.Locals position (params come first)
	Size    int
}

// BuildFrame lays out fn's locals in declaration order, 8 bytes per slot
// regardless of SizeBits (the IR never packs sub-qword locals into shared
// slots — simplicity over density, matching how the teacher's own
// backend_x64.go lays out one rbp-relative slot per local).
func BuildFrame(fn *ir.Func, abi ABI) Frame {
	f := Frame{Offsets: make([]int, len(fn.Locals))}
	off := 0
	for i := range fn.Locals {
		off += 8
		f.Offsets[i] = off
	}
	f.Size = abi.AlignStack(off)
	return f
}

// regPool is the fixed set of general-purpose registers the allocator
// cycles through for IR virtual registers; rax/rdx are reserved as
// scratch for idiv/imul and excluded so they stay free for those
// instructions without forcing an extra spill.
var regPool = []int{RCX, RBX, RSI, RDI, R8, R9, R10, R11}

// RegAlloc assigns each IR virtual register to a physical GPR on first
// use, spilling the oldest live assignment to a fresh stack slot once the
// pool is exhausted (§4.F "register allocation on a temporary stack per
// expression-tree walk with spill-to-stack when exceeded"). It tracks
// assignments only within one function; the spill slots it hands out are
// added to the frame size through FrameBytesUsed.
type RegAlloc struct {
	order     []int       // IR reg ids currently resident, oldest first
	physOf    map[int]int // IR reg id -> physical register
	spillOf   map[int]int // IR reg id -> frame offset, once spilled
	nextSpill int
	baseSpill int
}

func NewRegAlloc(baseOffset int) *RegAlloc {
	return &RegAlloc{
		physOf:    map[int]int{},
		spillOf:   map[int]int{},
		baseSpill: baseOffset,
		nextSpill: baseOffset,
	}
}

// Assign returns the physical register holding virtual register r,
// allocating one (spilling the oldest resident if the pool is full) if r
// has not been seen yet.
func (a *RegAlloc) Assign(r int) int {
	if p, ok := a.physOf[r]; ok {
		return p
	}
	var phys int
	if len(a.order) >= len(regPool) {
		victim := a.order[0]
		a.order = a.order[1:]
		a.spillOf[victim] = a.nextSpill
		a.nextSpill += 8
		phys = a.physOf[victim]
		delete(a.physOf, victim)
	} else {
		phys = regPool[len(a.order)]
	}
	a.order = append(a.order, r)
	a.physOf[r] = phys
	return phys
}

// Spilled reports whether r was evicted to the stack, and its offset.
func (a *RegAlloc) Spilled(r int) (int, bool) {
	off, ok := a.spillOf[r]
	return off, ok
}

// FrameBytesUsed returns how many bytes of spill slots were handed out,
// so the caller can fold that into the function's total frame size.
func (a *RegAlloc) FrameBytesUsed() int { return a.nextSpill - a.baseSpill }
