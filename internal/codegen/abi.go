package codegen

// CallConv selects the calling convention used to lower parameter passing
// and the stack frame shape (§4.F "System V vs Microsoft x64 calling
// convention lowering").
type CallConv int

const (
	SysV CallConv = iota
	MicrosoftX64
)

// ABI describes one calling convention's argument registers, the "shadow
// space" Microsoft x64 reserves for the callee to spill register
// parameters into, and the System V varargs rule of passing the vector
// register count used in AL ahead of a variadic call.
type ABI struct {
	Conv          CallConv
	IntArgRegs    []int
	FloatArgRegs  []int // XMM register numbers; float lowering stores via SSE regs not modeled in Encoder yet
	ShadowSpace   int   // bytes of caller-reserved scratch before the call (0 for SysV)
	CalleeSaved   []int
	StackAlign    int
}

func SystemV() ABI {
	return ABI{
		Conv:         SysV,
		IntArgRegs:   []int{RDI, RSI, RDX, RCX, R8, R9},
		FloatArgRegs: []int{0, 1, 2, 3, 4, 5, 6, 7}, // xmm0-xmm7
		ShadowSpace:  0,
		CalleeSaved:  []int{RBX, R12, R13, R14, R15, RBP},
		StackAlign:   16,
	}
}

func MicrosoftX64ABI() ABI {
	return ABI{
		Conv:         MicrosoftX64,
		IntArgRegs:   []int{RCX, RDX, R8, R9},
		FloatArgRegs: []int{0, 1, 2, 3}, // xmm0-xmm3, share slot index with int args
		ShadowSpace:  32,
		CalleeSaved:  []int{RBX, RBP, RDI, RSI, R12, R13, R14, R15},
		StackAlign:   16,
	}
}

// IntArgReg returns the physical register for the i'th integer/pointer
// argument, or -1 if it has been pushed onto the stack (more arguments
// than the ABI passes in registers).
func (a ABI) IntArgReg(i int) int {
	if i < len(a.IntArgRegs) {
		return a.IntArgRegs[i]
	}
	return -1
}

// AlignStack rounds frameSize up to the ABI's required stack alignment,
// accounting for the 8-byte return address already pushed by `call` (the
// same "frame size + 8 must be a multiple of 16" rule both ABIs share).
func (a ABI) AlignStack(frameSize int) int {
	total := frameSize + 8
	if rem := total % a.StackAlign; rem != 0 {
		frameSize += a.StackAlign - rem
	}
	return frameSize
}
