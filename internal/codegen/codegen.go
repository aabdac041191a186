package codegen

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/diag"
	"github.com/cxxcore/ccc/internal/ir"
)

// RelocType tags what kind of fixup an object writer must apply once
// section placement is known (§4.F object-file writing).
type RelocType int

const (
	RelCallRel32 RelocType = iota // E8 call operand, PC-relative
	RelJmpRel32                   // branch operand, PC-relative, resolved against another section entry
	RelAbs64                      // absolute 64-bit address (global data reference)
	RelPCRel32                    // 4-byte PC-relative reference (an Itanium LSDA type-table slot)
	RelAddr32NB                   // COFF 32-bit RVA, no base (xdata/pdata/FuncInfo cross-references)
)

// Reloc records one unresolved reference left in a CompiledFunc's Code,
// to be patched by internal/objfile once it has assigned every symbol a
// final section-relative address.
type Reloc struct {
	Offset int
	Symbol string
	Type   RelocType
	Addend int64
}

// EHRegion is one try-region's extent plus its handler entry point,
// consumed by internal/ehframe to build the LSDA/xdata tables (§4.F EH
// metadata; §8 "LSDA size consistency").
type EHRegion struct {
	TryStartOffset   int
	TryEndOffset     int
	HandlerOffset    int
	TypeSymbol       string // Itanium/MSVC RTTI symbol the catch matches, "" for catch(...)
	IsSeh            bool
	SehFinallyOffset int // set instead of HandlerOffset for a __finally region
}

// LineEntry maps one instruction's code offset back to its source
// position, for the debug-info tables §6's Options.debug_info enables.
type LineEntry struct {
	CodeOffset int
	Line       int
	Column     int
}

// CompiledFunc is one function's emitted machine code plus everything the
// downstream EH-metadata and object-file stages need.
type CompiledFunc struct {
	Name        string
	MangledName string
	Code        []byte
	Relocs      []Reloc
	FrameSize   int
	HasHandlers bool
	EHRegions   []EHRegion
	Lines       []LineEntry

	// EHData/EHRelocs hold the encoded per-function EH metadata: an Itanium
	// LSDA (ELF) or an xdata blob (UnwindInfo + FuncInfo/ScopeTable, COFF),
	// filled in by compiler.attachEHMetadata once EHRegions is complete.
	EHData   []byte
	EHRelocs []Reloc
	// PData/PDataRelocs hold the encoded IMAGE_RUNTIME_FUNCTION_ENTRY row
	// (COFF only; ELF has no pdata equivalent, its unwind info lives in
	// .eh_frame/.gcc_except_table instead).
	PData       []byte
	PDataRelocs []Reloc
}

// CompiledGlobal carries a global through to the object writer unchanged;
// codegen does not lower global initializers to code.
type CompiledGlobal struct {
	Name       string
	SizeBits   int
	IsZeroInit bool
	InitInt    int64
}

// Result is the complete output of lowering one ir.Module.
type Result struct {
	Funcs   []CompiledFunc
	Globals []CompiledGlobal
}

// Emitter lowers ir.Module to x86-64 machine code under a chosen ABI.
type Emitter struct {
	abi     ABI
	strings *arena.StringTable
	errs    []error
}

func NewEmitter(abi ABI, strings *arena.StringTable) *Emitter {
	return &Emitter{abi: abi, strings: strings}
}

func (e *Emitter) Errors() []error { return e.errs }

func (e *Emitter) errorf(format string, args ...any) {
	e.errs = append(e.errs, diag.NewInternalError(format, args...))
}

// Emit lowers every function and global in mod.
func (e *Emitter) Emit(mod *ir.Module) *Result {
	res := &Result{}
	for _, g := range mod.Globals {
		res.Globals = append(res.Globals, CompiledGlobal{
			Name: g.MangledName, SizeBits: g.SizeBits, IsZeroInit: g.IsZeroInit, InitInt: g.InitInt,
		})
	}
	for _, fn := range mod.Funcs {
		res.Funcs = append(res.Funcs, e.emitFunc(fn))
	}
	return res
}

type funcState struct {
	enc         Encoder
	frame       Frame
	ra          *RegAlloc
	labels      map[arena.StringHandle]int
	pending     []pendingBranch
	relocs      []Reloc
	ehStack     []*EHRegion
	regions     []EHRegion
	lines       []LineEntry
	frameSubOff int
}

type pendingBranch struct {
	fieldOffset int
	label       arena.StringHandle
}

func (e *Emitter) emitFunc(fn *ir.Func) CompiledFunc {
	frame := BuildFrame(fn, e.abi)
	fs := &funcState{
		frame:  frame,
		ra:     NewRegAlloc(frame.Size),
		labels: map[arena.StringHandle]int{},
	}
	fs.prologue(e.abi, len(fn.Params))

	for _, inst := range fn.Code {
		fs.lines = append(fs.lines, LineEntry{CodeOffset: fs.enc.Len(), Line: inst.Line, Column: inst.Column})
		e.emitInst(fs, inst)
	}

	fs.epilogue()
	for _, pb := range fs.pending {
		target, ok := fs.labels[pb.label]
		if !ok {
			e.errorf("codegen: unresolved label %q", e.strings.String(pb.label))
			continue
		}
		fs.enc.PatchRel32(pb.fieldOffset, target)
	}

	totalFrame := e.abi.AlignStack(frame.Size + fs.ra.FrameBytesUsed())
	fs.enc.PatchImm32(fs.frameSubOff, uint32(totalFrame))
	return CompiledFunc{
		Name:        fn.Name,
		MangledName: fn.MangledName,
		Code:        fs.enc.Bytes(),
		Relocs:      fs.relocs,
		FrameSize:   totalFrame,
		HasHandlers: fn.HasHandlers,
		EHRegions:   fs.regions,
		Lines:       fs.lines,
	}
}

// prologue emits the standard `push rbp; mov rbp, rsp; sub rsp, N` entry
// sequence and spills incoming integer-register parameters to their frame
// slots so every later OpLoadLocal is a uniform rbp-relative load.
func (fs *funcState) prologue(abi ABI, numParams int) {
	fs.enc.Push(RBP)
	fs.enc.MovRR(RBP, RSP)
	fs.frameSubOff = fs.reserveFrame()
	for i := 0; i < numParams && i < len(abi.IntArgRegs); i++ {
		fs.enc.StoreLocal(fs.frame.Offsets[i], abi.IntArgRegs[i])
	}
}

// reserveFrame emits `sub rsp, imm32` with a placeholder immediate; the
// true frame size (locals + spills) isn't known until the whole body has
// been walked, so the immediate is patched in epilogue via direct buffer
// indexing rather than the label-patch table (it's a fixed four-byte
// field at a known offset, not a branch target).
func (fs *funcState) reserveFrame() int {
	fs.enc.emitBytes(0x48, 0x81, 0xEC)
	off := fs.enc.Len()
	fs.enc.emitI32(0)
	return off
}

func (fs *funcState) epilogue() {
	fs.enc.MovRR(RSP, RBP)
	fs.enc.Pop(RBP)
	fs.enc.Ret()
}

func (fs *funcState) label(h arena.StringHandle) int {
	off, ok := fs.labels[h]
	if !ok {
		return -1
	}
	return off
}

// load materializes tv's value into a physical register: a literal is
// moved in directly, a register operand is reloaded from its spill slot
// if the allocator evicted it, and a genuine live register is returned
// as-is.
func (fs *funcState) load(tv ir.TypedValue) int {
	switch tv.Kind {
	case ir.ValueIntLit:
		scratch := fs.ra.Assign(-1 - int(fs.enc.Len())) // unique throwaway key
		fs.enc.MovImm64(scratch, uint64(tv.IntLit))
		return scratch
	case ir.ValueReg:
		if off, spilled := fs.ra.Spilled(tv.Reg); spilled {
			scratch := fs.ra.Assign(tv.Reg)
			fs.enc.LoadLocal(scratch, off)
			return scratch
		}
		return fs.ra.Assign(tv.Reg)
	default:
		return fs.ra.Assign(tv.Reg)
	}
}

func (fs *funcState) localSlotOffset(localIdx int) int {
	if localIdx < 0 || localIdx >= len(fs.frame.Offsets) {
		return 0
	}
	return fs.frame.Offsets[localIdx]
}

// scaledAddress folds idx*scale into base using RAX as scratch (free
// between instructions since RegAlloc's pool never hands it out — the
// same reservation OpDivI/OpModI rely on), returning the physical
// register holding the element's address.
func (fs *funcState) scaledAddress(base, idx, scale int) int {
	if scale == 0 {
		scale = 8
	}
	fs.enc.MovRR(RAX, idx)
	fs.enc.ImulRImm(RAX, int32(scale))
	fs.enc.AddRR(RAX, base)
	return RAX
}

// emitInst lowers one IR instruction. Every arithmetic/comparison/memory
// opcode the generator in internal/ir actually produces is handled;
// floating-point ops and virtual-dispatch vtable indexing are left as the
// documented simplifications recorded in DESIGN.md.
func (e *Emitter) emitInst(fs *funcState, inst ir.Inst) {
	switch inst.Op {
	case ir.OpLabel:
		fs.labels[inst.A.Label] = fs.enc.Len()

	case ir.OpBranch:
		off := fs.enc.JmpRel32()
		fs.pending = append(fs.pending, pendingBranch{fieldOffset: off, label: inst.A.Label})

	case ir.OpCondBranch:
		cond := fs.load(inst.A)
		fs.enc.emitByte(0x48)
		fs.enc.emitByte(0x85)
		fs.enc.emitByte(0xC0 | byte((cond&7)<<3) | byte(cond&7)) // test cond, cond
		// B is taken when the condition is zero, or when it is non-zero if C
		// is the integer 1; a label in C is the target when B is not taken.
		cc := byte(ccE)
		if inst.C.Kind == ir.ValueIntLit && inst.C.IntLit == 1 {
			cc = ccNE
		}
		off := fs.enc.JccRel32(cc)
		fs.pending = append(fs.pending, pendingBranch{fieldOffset: off, label: inst.B.Label})
		if inst.C.Kind == ir.ValueLabel {
			off := fs.enc.JmpRel32()
			fs.pending = append(fs.pending, pendingBranch{fieldOffset: off, label: inst.C.Label})
		}

	case ir.OpAddI:
		e.binArith(fs, inst, (*Encoder).AddRR)
	case ir.OpSubI:
		e.binArith(fs, inst, (*Encoder).SubRR)
	case ir.OpMulI:
		e.binArith(fs, inst, (*Encoder).ImulRR)
	case ir.OpAnd:
		e.binArith(fs, inst, (*Encoder).AndRR)
	case ir.OpOr:
		e.binArith(fs, inst, (*Encoder).OrRR)
	case ir.OpXor:
		e.binArith(fs, inst, (*Encoder).XorRR)

	case ir.OpDivI, ir.OpModI:
		lhs := fs.load(inst.A)
		rhs := fs.load(inst.B)
		fs.enc.MovRR(RAX, lhs)
		fs.enc.Cqo()
		fs.enc.IdivR(rhs)
		dst := fs.ra.Assign(inst.Dest)
		if inst.Op == ir.OpDivI {
			fs.enc.MovRR(dst, RAX)
		} else {
			fs.enc.MovRR(dst, RDX)
		}

	case ir.OpNegI:
		v := fs.load(inst.A)
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.MovRR(dst, v)
		fs.enc.NegR(dst)

	case ir.OpNot:
		v := fs.load(inst.A)
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.MovRR(dst, v)
		fs.enc.NotR(dst)

	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe:
		lhs := fs.load(inst.A)
		rhs := fs.load(inst.B)
		fs.enc.CmpRR(lhs, rhs)
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.Setcc(ccFor(inst.Op), dst)

	case ir.OpConvert:
		v := fs.load(inst.A)
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.MovRR(dst, v)

	case ir.OpLoadLocal:
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.LoadLocal(dst, fs.localSlotOffset(inst.A.Reg))

	case ir.OpStoreLocal:
		v := fs.load(inst.A)
		fs.enc.StoreLocal(fs.localSlotOffset(inst.Dest), v)

	case ir.OpAddrOf:
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.LeaLocal(dst, fs.localSlotOffset(inst.A.Reg))

	case ir.OpLoadGlobal:
		// The global's address is an absolute 64-bit constant resolved by
		// the object writer (RelAbs64), not a frame-relative load; the
		// movabs immediate field itself is the relocation target.
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.MovImm64(dst, 0)
		fs.relocs = append(fs.relocs, Reloc{
			Offset: fs.enc.Len() - 8, Symbol: e.strings.String(inst.A.Symbol), Type: RelAbs64,
		})
		fs.enc.LoadIndirect(dst, dst, 0) // [dst] reads *addr once the relocation is applied

	case ir.OpStoreGlobal:
		v := fs.load(inst.A)
		addr := fs.ra.Assign(inst.Dest + 1<<20) // disjoint key from any real vreg id
		fs.enc.MovImm64(addr, 0)
		fs.relocs = append(fs.relocs, Reloc{
			Offset: fs.enc.Len() - 8, Symbol: e.strings.String(inst.B.Symbol), Type: RelAbs64,
		})
		fs.enc.StoreIndirect(addr, 0, v) // [addr] writes *addr once the relocation is applied

	case ir.OpLoadMember:
		base := fs.load(inst.A)
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.LoadIndirect(dst, base, int32(inst.Offset))

	case ir.OpStoreMember:
		base := fs.load(inst.A)
		v := fs.load(inst.C)
		fs.enc.StoreIndirect(base, int32(inst.Offset), v)

	case ir.OpLoadArray:
		base := fs.load(inst.A)
		idx := fs.load(inst.B)
		addr := fs.scaledAddress(base, idx, inst.Scale)
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.LoadIndirect(dst, addr, 0)

	case ir.OpStoreArray:
		base := fs.load(inst.A)
		idx := fs.load(inst.B)
		addr := fs.scaledAddress(base, idx, inst.Scale)
		v := fs.load(inst.C)
		fs.enc.StoreIndirect(addr, 0, v)

	case ir.OpCallDirect, ir.OpCallVirtual, ir.OpCallCtor, ir.OpCallDtor:
		e.emitCall(fs, inst)

	case ir.OpReturn:
		if inst.A.Kind != ir.ValueNone {
			v := fs.load(inst.A)
			fs.enc.MovRR(RAX, v)
		}
		fs.enc.MovRR(RSP, RBP)
		fs.enc.Pop(RBP)
		fs.enc.Ret()

	case ir.OpScopeBegin, ir.OpScopeEnd, ir.OpLoopBegin, ir.OpLoopEnd:
		// Pure bookkeeping markers; no code of their own.

	case ir.OpTryBegin:
		fs.ehStack = append(fs.ehStack, &EHRegion{TryStartOffset: fs.enc.Len()})
	case ir.OpTryEnd:
		if n := len(fs.ehStack); n > 0 {
			fs.ehStack[n-1].TryEndOffset = fs.enc.Len()
		}
	case ir.OpCatchBegin:
		if n := len(fs.ehStack); n > 0 {
			r := fs.ehStack[n-1]
			r.HandlerOffset = fs.enc.Len()
			if inst.A.Kind == ir.ValueSymbol {
				r.TypeSymbol = e.strings.String(inst.A.Symbol)
			}
		}
	case ir.OpCatchEnd:
		if n := len(fs.ehStack); n > 0 {
			fs.regions = append(fs.regions, *fs.ehStack[n-1])
			fs.ehStack = fs.ehStack[:n-1]
		}

	case ir.OpSehTryBegin:
		fs.ehStack = append(fs.ehStack, &EHRegion{TryStartOffset: fs.enc.Len(), IsSeh: true})
	case ir.OpSehTryEnd:
		if n := len(fs.ehStack); n > 0 {
			fs.ehStack[n-1].TryEndOffset = fs.enc.Len()
		}
	case ir.OpSehExceptBegin:
		if n := len(fs.ehStack); n > 0 {
			fs.ehStack[n-1].HandlerOffset = fs.enc.Len()
		}
	case ir.OpSehExceptEnd:
		if n := len(fs.ehStack); n > 0 {
			fs.regions = append(fs.regions, *fs.ehStack[n-1])
			fs.ehStack = fs.ehStack[:n-1]
		}
	case ir.OpSehFinallyBegin:
		if n := len(fs.ehStack); n > 0 {
			fs.ehStack[n-1].SehFinallyOffset = fs.enc.Len()
		}
	case ir.OpSehFinallyEnd:
		if n := len(fs.ehStack); n > 0 {
			fs.regions = append(fs.regions, *fs.ehStack[n-1])
			fs.ehStack = fs.ehStack[:n-1]
		}

	case ir.OpThrow:
		if inst.A.Kind != ir.ValueNone {
			v := fs.load(inst.A)
			fs.enc.MovRR(e.abi.IntArgRegs[0], v)
		}
		fs.callRuntime("__cxa_throw")
	case ir.OpRethrow:
		fs.callRuntime("__cxa_rethrow")
	case ir.OpTypeid:
		fs.load(inst.A)
		fs.callRuntime("__ccc_typeid")
		fs.ra.Assign(inst.Dest)
	case ir.OpDynamicCast:
		v := fs.load(inst.A)
		fs.enc.MovRR(e.abi.IntArgRegs[0], v)
		fs.callRuntime("__dynamic_cast")
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.MovRR(dst, RAX)

	default:
		e.errorf("codegen: unhandled opcode %s", inst.Op)
	}
}

func ccFor(op ir.Opcode) byte {
	switch op {
	case ir.OpEq:
		return ccE
	case ir.OpNe:
		return ccNE
	case ir.OpLt:
		return ccL
	case ir.OpGe:
		return ccGE
	case ir.OpLe:
		return ccLE
	case ir.OpGt:
		return ccG
	default:
		return ccE
	}
}

func (e *Emitter) binArith(fs *funcState, inst ir.Inst, op func(*Encoder, int, int)) {
	lhs := fs.load(inst.A)
	rhs := fs.load(inst.B)
	dst := fs.ra.Assign(inst.Dest)
	fs.enc.MovRR(dst, lhs)
	op(&fs.enc, dst, rhs)
}

// emitCall lowers a direct, virtual, ctor, or dtor call by moving up to
// two arguments into the ABI's first integer argument registers and
// emitting a call to a relocation placeholder (§4.F calling-convention
// lowering handles shadow-space reservation via prologue/epilogue frame
// sizing, not per-call, matching how the teacher's own call sites never
// re-reserve space already carved out of the frame).
func (e *Emitter) emitCall(fs *funcState, inst ir.Inst) {
	argRegs := e.abi.IntArgRegs
	args := []ir.TypedValue{}
	switch inst.Op {
	case ir.OpCallDirect:
		if inst.B.Kind != ir.ValueNone {
			args = append(args, inst.B)
		}
		if inst.C.Kind != ir.ValueNone {
			args = append(args, inst.C)
		}
	case ir.OpCallVirtual:
		args = append(args, inst.A)
		if inst.C.Kind != ir.ValueNone {
			args = append(args, inst.C)
		}
	case ir.OpCallCtor:
		args = append(args, inst.A)
		if inst.B.Kind != ir.ValueNone {
			args = append(args, inst.B)
		}
	case ir.OpCallDtor:
		args = append(args, inst.A)
	}
	for i, a := range args {
		if i >= len(argRegs) {
			break
		}
		v := fs.load(a)
		fs.enc.MovRR(argRegs[i], v)
	}

	symbol := callSymbol(e, inst)
	off := fs.enc.CallRel32()
	fs.relocs = append(fs.relocs, Reloc{Offset: off, Symbol: symbol, Type: RelCallRel32})

	if inst.Dest != 0 {
		dst := fs.ra.Assign(inst.Dest)
		fs.enc.MovRR(dst, RAX)
	}
}

func callSymbol(e *Emitter, inst ir.Inst) string {
	switch inst.Op {
	case ir.OpCallDirect:
		return e.strings.String(inst.A.Symbol)
	case ir.OpCallVirtual:
		return e.strings.String(inst.B.Symbol)
	case ir.OpCallCtor:
		return "__ccc_alloc"
	case ir.OpCallDtor:
		return "__ccc_dtor"
	default:
		return ""
	}
}

// callRuntime emits a call to a fixed-name support-library symbol
// (exception dispatch, typeid, dynamic_cast) whose arguments the caller
// has already moved into the ABI's argument registers.
func (fs *funcState) callRuntime(name string) {
	off := fs.enc.CallRel32()
	fs.relocs = append(fs.relocs, Reloc{Offset: off, Symbol: name, Type: RelCallRel32})
}
