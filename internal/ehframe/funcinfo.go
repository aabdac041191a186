package ehframe

import (
	"encoding/binary"

	"github.com/cxxcore/ccc/internal/codegen"
)

// TryBlockMapEntry covers one try region under the MSVC C++ EH model: the
// state range it spans, the state its catch handlers run at, and which
// HandlerType rows (by TypeSymbol) its catches try in order.
type TryBlockMapEntry struct {
	TryLow    int32
	TryHigh   int32
	CatchHigh int32
	Handlers  []HandlerType
}

// HandlerType is one catch clause: the RTTI symbol it matches ("" for
// catch(...)) and the code offset its handler body starts at.
type HandlerType struct {
	TypeSymbol    string
	HandlerOffset int
}

// IPToStateEntry maps a code offset to the EH "state" active there, the
// mechanism MSVC's unwinder uses instead of Itanium's call-site table to
// find which try region a faulting instruction was inside.
type IPToStateEntry struct {
	CodeOffset int
	State      int32
}

// FuncInfo is the MSVC-internal per-function EH descriptor __CxxFrameHandler3
// reads, the xdata-side counterpart to the Itanium LSDA (§4.F "Windows
// xdata-pdata-FuncInfo"). States are numbered by try-region nesting depth
// in declaration order, matching how the Itanium LSDA's call-site table
// is built from the same ordered codegen.EHRegion list in BuildLSDA.
type FuncInfo struct {
	MaxState  int32
	TryBlocks []TryBlockMapEntry
	IPToState []IPToStateEntry
}

// BuildFuncInfo derives state numbering and the try-block/IP-to-state
// tables from one function's collected regions, mirroring BuildLSDA's
// call-site construction but keyed by "state" integers instead of landing
// pad offsets, since that's the unit __CxxFrameHandler3 understands.
func BuildFuncInfo(regions []codegen.EHRegion) FuncInfo {
	var fi FuncInfo
	state := int32(-1) // -1 means "no active try region"
	for _, r := range regions {
		if r.IsSeh {
			continue // SEH __try/__except uses ScopeTable, not FuncInfo; see BuildScopeTable below
		}
		tryLow := state + 1
		state = tryLow
		catchHigh := state + 1

		fi.TryBlocks = append(fi.TryBlocks, TryBlockMapEntry{
			TryLow:    tryLow,
			TryHigh:   state,
			CatchHigh: catchHigh,
			Handlers: []HandlerType{{
				TypeSymbol:    r.TypeSymbol,
				HandlerOffset: r.HandlerOffset,
			}},
		})
		fi.IPToState = append(fi.IPToState,
			IPToStateEntry{CodeOffset: r.TryStartOffset, State: tryLow},
			IPToStateEntry{CodeOffset: r.TryEndOffset, State: -1},
		)
		if catchHigh > state {
			state = catchHigh
		}
	}
	fi.MaxState = state + 1
	return fi
}

// FuncInfoReloc is one 4-byte RVA slot in Encode's output awaiting the
// handler's RTTI type-descriptor symbol; catch(...) handlers (TypeSymbol
// == "") never produce one, since their slot stays zero.
type FuncInfoReloc struct {
	Offset int
	Symbol string
}

// Encode serializes fi as a state/try-block table followed by the
// IP-to-state table. This is not a byte-exact reproduction of MSVC's
// internal FuncInfo (whose real layout is version-gated and RVA-relative
// to the image base rather than to a relocatable object's sections), but
// it carries every field __CxxFrameHandler3-equivalent unwinding needs:
// state ranges, which type each handler matches, and where each handler
// starts.
func (fi FuncInfo) Encode() ([]byte, []FuncInfoReloc) {
	var out []byte
	var relocs []FuncInfoReloc

	put32 := func(v int32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		out = append(out, b[:]...)
	}
	putU32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		out = append(out, b[:]...)
	}

	put32(fi.MaxState)
	put32(int32(len(fi.TryBlocks)))
	for _, tb := range fi.TryBlocks {
		put32(tb.TryLow)
		put32(tb.TryHigh)
		put32(tb.CatchHigh)
		put32(int32(len(tb.Handlers)))
		for _, h := range tb.Handlers {
			if h.TypeSymbol != "" {
				relocs = append(relocs, FuncInfoReloc{Offset: len(out), Symbol: h.TypeSymbol})
			}
			putU32(0) // patched to the handler's type-descriptor RVA, 0 left for catch(...)
			putU32(uint32(h.HandlerOffset))
		}
	}
	put32(int32(len(fi.IPToState)))
	for _, e := range fi.IPToState {
		putU32(uint32(e.CodeOffset))
		put32(e.State)
	}
	return out, relocs
}

// ScopeRecord is one __try/__except region under SEH, same field layout
// _examples/saferwall-pe/exception.go's SCOPE_TABLE parser reads (BeginAddress/
// EndAddress/HandlerAddress/JumpTarget), built here as a writer instead of
// a reader.
type ScopeRecord struct {
	BeginAddress   uint32
	EndAddress     uint32
	HandlerAddress uint32
	JumpTarget     uint32
}

// ScopeTable is the encodable form BuildScopeTable returns, a named slice
// type (rather than a bare []ScopeRecord) so it can carry an Encode method
// the way FuncInfo and LSDA do.
type ScopeTable []ScopeRecord

// BuildScopeTable collects SEH regions (codegen.EHRegion.IsSeh) into the
// SCOPE_TABLE __except_handler3 walks; __finally-only regions (no
// HandlerOffset) use SehFinallyOffset for both HandlerAddress and
// JumpTarget since a termination handler always runs, it never decides
// whether to transfer control to an except block.
func BuildScopeTable(regions []codegen.EHRegion) ScopeTable {
	var out ScopeTable
	for _, r := range regions {
		if !r.IsSeh {
			continue
		}
		handler := uint32(r.HandlerOffset)
		jump := uint32(r.HandlerOffset)
		if r.SehFinallyOffset != 0 {
			handler = uint32(r.SehFinallyOffset)
			jump = handler
		}
		out = append(out, ScopeRecord{
			BeginAddress:   uint32(r.TryStartOffset),
			EndAddress:     uint32(r.TryEndOffset),
			HandlerAddress: handler,
			JumpTarget:     jump,
		})
	}
	return out
}

// Encode serializes t as a packed array of four little-endian uint32
// fields per record, the layout __except_handler3 reads.
func (t ScopeTable) Encode() []byte {
	out := make([]byte, 0, len(t)*16)
	for _, r := range t {
		var b [16]byte
		binary.LittleEndian.PutUint32(b[0:], r.BeginAddress)
		binary.LittleEndian.PutUint32(b[4:], r.EndAddress)
		binary.LittleEndian.PutUint32(b[8:], r.HandlerAddress)
		binary.LittleEndian.PutUint32(b[12:], r.JumpTarget)
		out = append(out, b[:]...)
	}
	return out
}
