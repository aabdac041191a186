package ehframe

import (
	"encoding/binary"

	"github.com/cxxcore/ccc/internal/codegen"
)

// Unwind opcodes a compiler-generated prologue needs; the full set
// _examples/saferwall-pe/exception.go's parser recognizes is much larger
// (XMM saves, machine frames) but codegen's prologue only ever does
// push rbp / sub rsp, so the codes emitted are UWOP_PUSH_NONVOL and
// UWOP_ALLOC_SMALL, or UWOP_ALLOC_LARGE for frames over 128 bytes.
const (
	uwOpPushNonVol = 0
	uwOpAllocLarge = 1
	uwOpAllocSmall = 2
)

const (
	unwFlagEHandler = 0x1
)

// UnwindCode is one entry of UNWIND_INFO's variable-length code array,
// same bit layout _examples/saferwall-pe/exception.go parses: CodeOffset
// in the low byte, UnwindOp in the low nibble of the high byte, OpInfo in
// the high nibble.
type UnwindCode struct {
	CodeOffset uint8
	UnwindOp   uint8
	OpInfo     uint8
}

func (c UnwindCode) encode() uint16 {
	return uint16(c.CodeOffset) | uint16(c.UnwindOp)<<8 | uint16(c.OpInfo)<<12
}

// UnwindInfo is the _UNWIND_INFO structure referenced by a RUNTIME_FUNCTION's
// UnwindInfoAddress.
type UnwindInfo struct {
	Version          uint8
	Flags            uint8
	SizeOfProlog     uint8
	FrameRegister    uint8
	FrameOffset      uint8
	Codes            []UnwindCode
	ExceptionHandler string // symbol name; internal/objfile turns this into an IMAGE_REL_AMD64_ADDR32NB relocation
}

// BuildUnwindInfo derives the UNWIND_INFO for one compiled function: a
// push rbp + sub rsp prologue lowers to two unwind operations (two code
// slots, or three when the allocation needs UWOP_ALLOC_LARGE), in the
// reverse of emission order (the Windows ABI requires the codes array to
// list the prologue's effects last-to-first).
func BuildUnwindInfo(fn codegen.CompiledFunc, handlerSymbol string) UnwindInfo {
	// sub rsp, N: push rbp is 1 byte, mov rbp,rsp is 3, then sub rsp
	// follows at offset 4. Frames of up to 128 bytes use UWOP_ALLOC_SMALL;
	// larger ones use UWOP_ALLOC_LARGE with op-info 0, whose extra slot
	// holds the frame size scaled by 8.
	codes := []UnwindCode{
		{CodeOffset: 4, UnwindOp: uwOpAllocSmall, OpInfo: allocSmallOpInfo(fn.FrameSize)},
	}
	if fn.FrameSize > 128 {
		n := fn.FrameSize / 8
		codes = []UnwindCode{
			{CodeOffset: 4, UnwindOp: uwOpAllocLarge, OpInfo: 0},
			{CodeOffset: uint8(n), UnwindOp: uint8(n>>8) & 0xf, OpInfo: uint8(n>>12) & 0xf},
		}
	}
	codes = append(codes, UnwindCode{CodeOffset: 1, UnwindOp: uwOpPushNonVol, OpInfo: 5}) // rbp = register 5
	flags := uint8(0)
	if fn.HasHandlers {
		flags = unwFlagEHandler
	}
	return UnwindInfo{
		Version:          1,
		Flags:            flags,
		SizeOfProlog:     11, // push rbp(1) + mov rbp,rsp(3) + sub rsp,imm32(7): the prolog ends at offset 11
		FrameRegister:    0,
		FrameOffset:      0,
		Codes:            codes,
		ExceptionHandler: handlerSymbol,
	}
}

func allocSmallOpInfo(frameSize int) uint8 {
	// UWOP_ALLOC_SMALL encodes (size-8)/8 in OpInfo, covering 8..128 bytes;
	// BuildUnwindInfo switches to UWOP_ALLOC_LARGE above that range.
	n := (frameSize - 8) / 8
	if n < 0 {
		n = 0
	}
	if n > 15 {
		n = 15
	}
	return uint8(n)
}

// Encode serializes the UNWIND_INFO header and code array. The exception
// handler RVA and any per-language data that follows (codegen's
// EHRegion-derived FuncInfo, see funcinfo.go) are appended by the caller
// once relocations are resolvable.
func (u UnwindInfo) Encode() []byte {
	codes := u.Codes
	if len(codes)%2 != 0 {
		codes = append(codes, UnwindCode{}) // array padded to an even count
	}
	out := make([]byte, 4)
	out[0] = u.Version&0x7 | (u.Flags&0x1f)<<3
	out[1] = u.SizeOfProlog
	out[2] = uint8(len(u.Codes))
	out[3] = u.FrameRegister&0xf | (u.FrameOffset&0xf)<<4
	for _, c := range codes {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], c.encode())
		out = append(out, b[:]...)
	}
	return out
}

// RuntimeFunction is one IMAGE_RUNTIME_FUNCTION_ENTRY / .pdata row.
type RuntimeFunction struct {
	BeginSymbol      string
	EndSymbol        string
	UnwindInfoSymbol string
}

// BuildRuntimeFunction names the three RVA-relocated fields one
// RUNTIME_FUNCTION needs, keyed off the function's mangled name the same
// way codegen.CompiledFunc.MangledName already identifies it to the
// object writer.
func BuildRuntimeFunction(fn codegen.CompiledFunc) RuntimeFunction {
	return RuntimeFunction{
		BeginSymbol:      fn.MangledName,
		EndSymbol:        fn.MangledName + "$end",
		UnwindInfoSymbol: fn.MangledName + "$unwind",
	}
}

// RuntimeFunctionReloc is one of RuntimeFunction.Encode's three RVA slots.
type RuntimeFunctionReloc struct {
	Offset int
	Symbol string
}

// Encode serializes r as three 4-byte RVA placeholders in
// IMAGE_RUNTIME_FUNCTION_ENTRY order (BeginAddress, EndAddress,
// UnwindInfoAddress); internal/objfile resolves each via the returned
// relocation against the matching symbol.
func (r RuntimeFunction) Encode() ([]byte, []RuntimeFunctionReloc) {
	return make([]byte, 12), []RuntimeFunctionReloc{
		{Offset: 0, Symbol: r.BeginSymbol},
		{Offset: 4, Symbol: r.EndSymbol},
		{Offset: 8, Symbol: r.UnwindInfoSymbol},
	}
}
