package ehframe

import (
	"github.com/cxxcore/ccc/internal/codegen"
)

// dwarfOmit/dwarfPCRelSData4/dwarfUleb128 are the handful of DW_EH_PE_*
// encoding bytes the LSDA header needs; the full DWARF exception-header
// encoding space is far larger, but a compiler emitting its own object
// files can fix these choices rather than support every encoding a linker
// might see.
const (
	dwarfOmit        = 0xff
	dwarfPCRelSData4 = 0x1b // DW_EH_PE_pcrel | DW_EH_PE_sdata4; slots hold the RTTI symbol's address directly, not through an indirection cell
	dwarfUleb128     = 0x01
)

// CallSite is one row of the Itanium LSDA call-site table: a code range
// covered by a try-region, the landing pad it unwinds to (0 meaning "no
// landing pad, keep unwinding"), and which Action row (1-based, 0 meaning
// cleanup-only) selects the catch type to test against.
type CallSite struct {
	StartOffset uint64
	Length      uint64
	LandingPad  uint64
	ActionIndex int
}

// Action is one row of the action table: TypeFilter indexes the type
// table (1-based; 0 means catch(...)), and NextActionOffset chains to
// another action for a landing pad with multiple catch clauses (0 ends
// the chain).
type Action struct {
	TypeFilter       int32
	NextActionOffset int32
}

// LSDA is the fully-assembled Language-Specific Data Area for one
// function: the region data codegen.Emitter collected, turned into the
// call-site/action/type tables the unwinder walks (§4.F "Itanium LSDA
// (header, call-site table, action table, type table)"; §8 "LSDA size
// consistency": every byte offset in the header must point inside the
// table it describes).
type LSDA struct {
	CallSites []CallSite
	Actions   []Action
	TypeTable []string // ttype symbols, index 1 first (index 0 unused, reserved for "no type")
}

// BuildLSDA turns one function's collected try/catch regions into an
// LSDA: one call-site row and one action per non-SEH try region, with a
// type-table entry shared by every region that catches the same
// TypeSymbol (catch(...) uses TypeFilter 0 and adds no type-table entry).
// funcEnd is not used: only try regions get call-site rows, so code
// outside every try region has no row of its own.
func BuildLSDA(regions []codegen.EHRegion, funcEnd uint64) LSDA {
	lsda := LSDA{TypeTable: []string{""}} // index 0 reserved
	typeIndex := map[string]int32{}

	var sites []CallSite
	for _, r := range regions {
		if r.IsSeh {
			continue // SEH regions are handled by Windows xdata/FuncInfo, not the Itanium LSDA
		}
		filter := int32(0)
		if r.TypeSymbol != "" {
			if idx, ok := typeIndex[r.TypeSymbol]; ok {
				filter = idx
			} else {
				lsda.TypeTable = append(lsda.TypeTable, r.TypeSymbol)
				filter = int32(len(lsda.TypeTable) - 1)
				typeIndex[r.TypeSymbol] = filter
			}
		}
		lsda.Actions = append(lsda.Actions, Action{TypeFilter: filter})
		actionIdx := len(lsda.Actions)

		sites = append(sites, CallSite{
			StartOffset: uint64(r.TryStartOffset),
			Length:      uint64(r.TryEndOffset - r.TryStartOffset),
			LandingPad:  uint64(r.HandlerOffset),
			ActionIndex: actionIdx,
		})
	}
	lsda.CallSites = sites
	return lsda
}

// Encode serializes lsda into the byte layout the unwinder expects: a
// fixed header, the call-site table (ULEB128-encoded start/length/
// landing-pad/action fields per the DW_EH_PE_uleb128 call-site encoding),
// the action table (SLEB128 type-filter + next-action pairs), and finally
// the type table, which DWARF lays out growing backward from the high end
// of the LSDA so a type-filter index can be computed as a fixed negative
// offset from the ttype base.
func (l LSDA) Encode() []byte {
	var callSiteTable []byte
	for _, cs := range l.CallSites {
		callSiteTable = appendULEB128(callSiteTable, cs.StartOffset)
		callSiteTable = appendULEB128(callSiteTable, cs.Length)
		callSiteTable = appendULEB128(callSiteTable, cs.LandingPad)
		callSiteTable = appendULEB128(callSiteTable, uint64(cs.ActionIndex))
	}

	var actionTable []byte
	for _, a := range l.Actions {
		actionTable = appendSLEB128(actionTable, int64(a.TypeFilter))
		actionTable = appendSLEB128(actionTable, int64(a.NextActionOffset))
	}

	var out []byte
	out = append(out, dwarfOmit) // LPStart encoding: omit, use function entry
	if len(l.TypeTable) <= 1 {
		out = append(out, dwarfOmit) // no catch types registered, omit ttype entirely
	} else {
		out = append(out, dwarfPCRelSData4)
		// TType base offset: bytes from just after this ULEB128 to the end
		// of the type table.
		csLen := appendULEB128(nil, uint64(len(callSiteTable)))
		tail := 1 + len(csLen) + len(callSiteTable) + len(actionTable) + 4*(len(l.TypeTable)-1)
		out = appendULEB128(out, uint64(tail))
	}
	out = append(out, dwarfUleb128) // call-site table encoding
	out = appendULEB128(out, uint64(len(callSiteTable)))
	out = append(out, callSiteTable...)
	out = append(out, actionTable...)
	// Type table: each entry is a placeholder 4-byte slot; internal/objfile
	// fills it with a PC-relative reference to the type's RTTI symbol once
	// section addresses are known, matching how it resolves every other
	// Reloc codegen.Emitter recorded.
	for range l.TypeTable[1:] {
		out = append(out, 0, 0, 0, 0)
	}
	return out
}

// TypeTableReloc records one type-table slot's byte offset within Encode's
// output and the RTTI symbol a PC-relative reference must resolve to.
type TypeTableReloc struct {
	Offset int
	Symbol string
}

// EncodeWithRelocs is Encode plus the relocation list for its type-table
// placeholders. The placeholders are the trailing 4*(len(TypeTable)-1)
// bytes of Encode's output, one per TypeTable[1:] entry in order, so their
// offsets can be derived from the tail without re-deriving the header/
// call-site/action-table layout a second time.
func (l LSDA) EncodeWithRelocs() ([]byte, []TypeTableReloc) {
	out := l.Encode()
	n := len(l.TypeTable) - 1
	if n <= 0 {
		return out, nil
	}
	base := len(out) - 4*n
	relocs := make([]TypeTableReloc, n)
	for i, sym := range l.TypeTable[1:] {
		relocs[i] = TypeTableReloc{Offset: base + i*4, Symbol: sym}
	}
	return out, relocs
}

func appendULEB128(out []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func appendSLEB128(out []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}
