// Package ir defines the three-address-style instruction set the AST is
// lowered to (§3 IR instruction, §4.E) and the generator that walks the AST
// producing it.
package ir

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

// Opcode tags one IR instruction variant (§3).
type Opcode int

const (
	OpInvalid Opcode = iota

	// Arithmetic / logical / comparisons
	OpAddI
	OpSubI
	OpMulI
	OpDivI
	OpModI
	OpNegI
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpNot
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe

	// Conversions
	OpConvert

	// Memory
	OpLoadLocal
	OpStoreLocal
	OpLoadMember
	OpStoreMember
	OpLoadArray
	OpStoreArray
	OpLoadGlobal
	OpStoreGlobal
	OpAddrOf
	OpConstInt
	OpConstFloat
	OpConstString

	// Control flow
	OpLabel
	OpBranch
	OpCondBranch
	OpLoopBegin
	OpLoopEnd
	OpBreak
	OpContinue
	OpScopeBegin
	OpScopeEnd

	// Calls
	OpCallDirect
	OpCallIndirect
	OpCallVirtual
	OpCallCtor
	OpCallDtor
	OpReturn

	// Exceptions (Itanium model)
	OpTryBegin
	OpTryEnd
	OpCatchBegin
	OpCatchEnd
	OpThrow
	OpRethrow

	// Windows SEH
	OpSehTryBegin
	OpSehTryEnd
	OpSehExceptBegin
	OpSehExceptEnd
	OpSehFinallyBegin
	OpSehFinallyEnd
	OpSehAbnormalTermination

	// RTTI
	OpTypeid
	OpDynamicCast
)

func (op Opcode) String() string {
	switch op {
	case OpAddI:
		return "add.i"
	case OpSubI:
		return "sub.i"
	case OpMulI:
		return "mul.i"
	case OpDivI:
		return "div.i"
	case OpModI:
		return "mod.i"
	case OpNegI:
		return "neg.i"
	case OpAddF:
		return "add.f"
	case OpSubF:
		return "sub.f"
	case OpMulF:
		return "mul.f"
	case OpDivF:
		return "div.f"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpShl:
		return "shl"
	case OpShr:
		return "shr"
	case OpNot:
		return "not"
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpLt:
		return "lt"
	case OpGt:
		return "gt"
	case OpLe:
		return "le"
	case OpGe:
		return "ge"
	case OpConvert:
		return "convert"
	case OpLoadLocal:
		return "load.local"
	case OpStoreLocal:
		return "store.local"
	case OpLoadMember:
		return "load.member"
	case OpStoreMember:
		return "store.member"
	case OpLoadArray:
		return "load.array"
	case OpStoreArray:
		return "store.array"
	case OpLoadGlobal:
		return "load.global"
	case OpStoreGlobal:
		return "store.global"
	case OpAddrOf:
		return "addr.of"
	case OpConstInt:
		return "const.int"
	case OpConstFloat:
		return "const.float"
	case OpConstString:
		return "const.string"
	case OpLabel:
		return "label"
	case OpBranch:
		return "branch"
	case OpCondBranch:
		return "cond.branch"
	case OpLoopBegin:
		return "loop.begin"
	case OpLoopEnd:
		return "loop.end"
	case OpBreak:
		return "break"
	case OpContinue:
		return "continue"
	case OpScopeBegin:
		return "scope.begin"
	case OpScopeEnd:
		return "scope.end"
	case OpCallDirect:
		return "call.direct"
	case OpCallIndirect:
		return "call.indirect"
	case OpCallVirtual:
		return "call.virtual"
	case OpCallCtor:
		return "call.ctor"
	case OpCallDtor:
		return "call.dtor"
	case OpReturn:
		return "return"
	case OpTryBegin:
		return "try.begin"
	case OpTryEnd:
		return "try.end"
	case OpCatchBegin:
		return "catch.begin"
	case OpCatchEnd:
		return "catch.end"
	case OpThrow:
		return "throw"
	case OpRethrow:
		return "rethrow"
	case OpSehTryBegin:
		return "seh.try.begin"
	case OpSehTryEnd:
		return "seh.try.end"
	case OpSehExceptBegin:
		return "seh.except.begin"
	case OpSehExceptEnd:
		return "seh.except.end"
	case OpSehFinallyBegin:
		return "seh.finally.begin"
	case OpSehFinallyEnd:
		return "seh.finally.end"
	case OpSehAbnormalTermination:
		return "seh.abnormal_termination"
	case OpTypeid:
		return "typeid"
	case OpDynamicCast:
		return "dynamic_cast"
	default:
		return fmt.Sprintf("op_%d", int(op))
	}
}

// ValueKind distinguishes a virtual register result from a literal operand
// folded directly into the instruction.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueReg
	ValueIntLit
	ValueFloatLit
	ValueStringLit
	ValueLabel
	ValueSymbol // mangled function/global name
)

// TypedValue is the IR result triple of §3: a type, its size in bits, and
// either a virtual-register id or a folded literal.
type TypedValue struct {
	TypeName  string // mangled scalar code (i, j, f, d, Pv, ...), informational
	SizeBits  int
	Kind      ValueKind
	Reg       int
	IntLit    int64
	FloatLit  float64
	StringLit arena.StringHandle
	Label     arena.StringHandle
	Symbol    arena.StringHandle
}

// Inst is one IR instruction: opcode, operand payload, originating token
// (carried for diagnostics emitted during lowering) recorded by line/column
// pair to avoid an import cycle on the token package.
type Inst struct {
	Op     Opcode
	A, B, C TypedValue
	Dest    int // virtual register written, 0 if none
	Line    int
	Column  int

	// Offset is the static byte offset of the accessed member, resolved by
	// internal/sema's layout table (OpLoadMember/OpStoreMember only).
	Offset int
	// Scale is the element size in bytes the index must be multiplied by
	// before it is added to the base address (OpLoadArray/OpStoreArray only).
	Scale int
}

// Func is one compiled function's IR body plus the metadata the emitter
// needs: its parameter/local layout and whether it is the target of
// exception handling (so the EH-metadata generator knows to walk it).
type Func struct {
	Name        string
	MangledName string
	Params      []Local
	Locals      []Local
	Code        []Inst
	NumRegs     int
	HasHandlers bool
}

// Local describes one stack-frame slot: a parameter or a local variable.
type Local struct {
	Name     string
	SizeBits int
	IsFloat  bool
	// Type is the local's declared type, kept around so member/array
	// accesses rooted at this local can resolve a layout offset and
	// element size (internal/ir/expr.go genMember/genSubscript).
	Type ast.TypeSpecifier
}

// Global is a file-scope variable lowered into the object's data/bss.
type Global struct {
	Name        string
	MangledName string
	SizeBits    int
	IsZeroInit  bool
	InitInt     int64
}

// Module is the complete lowered program: every function and global the IR
// generator produced for one compile job.
type Module struct {
	Funcs   []*Func
	Globals []Global
}
