package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ir"
)

// buildAddOneFunc builds the IR for `int f(int x) { return x + 1; }` by
// hand: load param 0, add literal 1, return.
func buildAddOneFunc(strings *arena.StringTable) *ir.Func {
	fn := &ir.Func{
		Name:        "f",
		MangledName: "_Z1fi",
		Params:      []ir.Local{{Name: "x", SizeBits: 32}},
		Locals:      []ir.Local{{Name: "x", SizeBits: 32}},
	}
	fn.Code = append(fn.Code,
		ir.Inst{Op: ir.OpLoadLocal, Dest: 1, A: ir.TypedValue{Kind: ir.ValueReg, Reg: 0}},
		ir.Inst{Op: ir.OpAddI, Dest: 2,
			A: ir.TypedValue{Kind: ir.ValueReg, Reg: 1},
			B: ir.TypedValue{Kind: ir.ValueIntLit, IntLit: 1}},
		ir.Inst{Op: ir.OpReturn, A: ir.TypedValue{Kind: ir.ValueReg, Reg: 2}},
	)
	return fn
}

func TestEmitFuncProducesNonEmptyCode(t *testing.T) {
	strings := arena.NewStringTable()
	mod := &ir.Module{Funcs: []*ir.Func{buildAddOneFunc(strings)}}

	emitter := NewEmitter(SystemV(), strings)
	res := emitter.Emit(mod)
	require.Empty(t, emitter.Errors())
	require.Len(t, res.Funcs, 1)

	fn := res.Funcs[0]
	require.NotEmpty(t, fn.Code)
	require.Equal(t, "_Z1fi", fn.MangledName)
	require.True(t, (fn.FrameSize+8)%16 == 0, "frame size + return address must be 16-byte aligned, got %d", fn.FrameSize)
	require.Equal(t, byte(0x55), fn.Code[0], "prologue must start with push rbp")
}

func TestEmitGlobalLoadProducesAbsReloc(t *testing.T) {
	strings := arena.NewStringTable()
	name := strings.GetOrIntern("counter")
	fn := &ir.Func{Name: "g"}
	fn.Code = append(fn.Code,
		ir.Inst{Op: ir.OpLoadGlobal, Dest: 1, A: ir.TypedValue{Kind: ir.ValueSymbol, Symbol: name}},
		ir.Inst{Op: ir.OpReturn, A: ir.TypedValue{Kind: ir.ValueReg, Reg: 1}},
	)
	mod := &ir.Module{Funcs: []*ir.Func{fn}}

	emitter := NewEmitter(SystemV(), strings)
	res := emitter.Emit(mod)
	require.Len(t, res.Funcs[0].Relocs, 1)
	require.Equal(t, RelAbs64, res.Funcs[0].Relocs[0].Type)
	require.Equal(t, "counter", res.Funcs[0].Relocs[0].Symbol)
}

func TestEmitBranchPatchesLabel(t *testing.T) {
	strings := arena.NewStringTable()
	loopLabel := strings.GetOrIntern("loop_start")
	fn := &ir.Func{Name: "h"}
	fn.Code = append(fn.Code,
		ir.Inst{Op: ir.OpLabel, A: ir.TypedValue{Kind: ir.ValueLabel, Label: loopLabel}},
		ir.Inst{Op: ir.OpBranch, A: ir.TypedValue{Kind: ir.ValueLabel, Label: loopLabel}},
	)
	mod := &ir.Module{Funcs: []*ir.Func{fn}}

	emitter := NewEmitter(SystemV(), strings)
	res := emitter.Emit(mod)
	require.Empty(t, emitter.Errors())
	require.NotEmpty(t, res.Funcs[0].Code)
}

func TestRegAllocSpillsOnOverflow(t *testing.T) {
	ra := NewRegAlloc(0)
	for i := 1; i <= len(regPool)+2; i++ {
		ra.Assign(i)
	}
	_, spilled := ra.Spilled(1)
	require.True(t, spilled, "oldest register should have been spilled once the pool overflowed")
}
