package objfile

import "github.com/cxxcore/ccc/internal/codegen"

// ELF64 relocation types this writer emits (elf(5)/x86-64 psABI): PLT32 for
// every call/jmp rel32 (the standard choice gcc/clang use for `call`
// relocations in a relocatable object, since a linker may need to route
// through a PLT stub), PC32 for a 4-byte PC-relative data slot
// (codegen.RelPCRel32, an LSDA type-table entry), and a plain 64 for
// absolute data references.
const (
	rX8664_64    = 1
	rX8664_PC32  = 2
	rX8664_PLT32 = 4
)

// Section indices, fixed across the whole writer since sh_link/sh_info and
// every symbol's shndx are computed from them.
const (
	shText     = 1
	shData     = 2
	shBss      = 3
	shEH       = 4 // .gcc_except_table
	shLine     = 5 // .debug_line
	shRelaText = 6
	shRelaEH   = 7
	shRelaLine = 8
	shSymtab   = 9
	shStrtab   = 10
	shShstrtab = 11
	shdrCount  = 12
)

// writeELF64 builds a minimal ET_REL object: a null section, .text,
// .data, .bss (size only, no file bytes), .gcc_except_table (Itanium
// LSDA per function, §4.F EH metadata), .debug_line (§6 per-function line
// table), one .rela section per relocatable payload section, .symtab,
// .strtab, .shstrtab — the same section inventory the teacher's
// buildELF64 lays out minus the program header and virtual-address
// fixups an executable needs and a relocatable object does not
// (addresses are all section-relative zero until a linker places them).
func writeELF64(res *codegen.Result) []byte {
	text := buildTextLayout(res)
	data, bssSize, dataSyms := buildDataLayout(res)
	eh := buildEHLayout(res, shEH)
	dbgLine := buildDebugLineLayout(res, shLine)

	const (
		ehdrSize      = 64
		shdrSize      = 64
		symEntrySize  = 24
		relaEntrySize = 24
	)

	var strtab []byte
	strtab = append(strtab, 0)
	nameOff := map[string]uint32{}
	intern := func(s string) uint32 {
		if off, ok := nameOff[s]; ok {
			return off
		}
		off := uint32(len(strtab))
		strtab = append(strtab, []byte(s)...)
		strtab = append(strtab, 0)
		nameOff[s] = off
		return off
	}

	// Symbol table: null entry, then every function, global, EH blob, and
	// line table. Locally defined symbols are STB_GLOBAL|STT_FUNC/
	// STT_OBJECT against their section; relocation targets with no
	// defined symbol here (runtime helpers like __cxa_throw, or the RTTI
	// symbols an LSDA type table references) get SHN_UNDEF (section 0) so
	// the linker resolves them externally.
	type sym struct {
		nameOff uint32
		info    byte
		shndx   uint16
		value   uint64
		size    uint64
	}
	var syms []sym
	defined := map[string]int{} // symbol name -> 1-based symtab index
	addSym := func(name string, offset, size uint64, shndx uint16, isFunc bool) {
		info := byte(0x10) // STB_GLOBAL << 4
		if isFunc {
			info |= 0x02 // STT_FUNC
		} else {
			info |= 0x01 // STT_OBJECT
		}
		syms = append(syms, sym{nameOff: intern(name), info: info, shndx: shndx, value: offset, size: size})
		defined[name] = len(syms) // 1-based, entry 0 is null
	}
	for _, s := range text.syms {
		addSym(s.Name, s.Offset, s.Size, uint16(s.Section), true)
	}
	for _, s := range dataSyms {
		addSym(s.Name, s.Offset, s.Size, uint16(s.Section), false)
	}
	for _, s := range eh.syms {
		addSym(s.Name, s.Offset, s.Size, uint16(s.Section), false)
	}
	for _, s := range dbgLine.syms {
		addSym(s.Name, s.Offset, s.Size, uint16(s.Section), false)
	}
	undefSym := func(name string) int {
		if idx, ok := defined[name]; ok {
			return idx
		}
		syms = append(syms, sym{nameOff: intern(name), info: 0x10, shndx: 0})
		defined[name] = len(syms)
		return len(syms)
	}

	buildRela := func(relocs []objReloc) []byte {
		var out []byte
		for _, r := range relocs {
			symIdx := undefSym(r.SymbolName)
			rtype := uint32(rX8664_64)
			pcRelative := false
			switch r.Kind {
			case codegen.RelCallRel32, codegen.RelJmpRel32:
				rtype = rX8664_PLT32
				pcRelative = true
			case codegen.RelPCRel32:
				rtype = rX8664_PC32 // a data slot relative to its own address, so no -4
			}
			addend := r.Addend
			if pcRelative {
				addend -= 4 // rel32 fields are relative to the end of the 4-byte field
			}
			entry := make([]byte, relaEntrySize)
			putU64(entry[0:], r.Offset)
			putU64(entry[8:], uint64(symIdx)<<32|uint64(rtype))
			putU64(entry[16:], uint64(addend))
			out = append(out, entry...)
		}
		return out
	}
	rela := buildRela(text.relocs)
	relaEH := buildRela(eh.relocs)
	relaLine := buildRela(dbgLine.relocs)

	symtab := make([]byte, symEntrySize) // null entry
	for _, s := range syms {
		e := make([]byte, symEntrySize)
		putU32(e[0:], s.nameOff)
		e[4] = s.info
		e[5] = 0
		putU16(e[6:], s.shndx)
		putU64(e[8:], s.value)
		putU64(e[16:], s.size)
		symtab = append(symtab, e...)
	}

	var shstrtab []byte
	shstrtab = append(shstrtab, 0)
	shName := map[string]uint32{"": 0}
	addShName := func(name string) {
		shName[name] = uint32(len(shstrtab))
		shstrtab = append(shstrtab, []byte(name)...)
		shstrtab = append(shstrtab, 0)
	}
	for _, name := range []string{
		".text", ".data", ".bss", ".gcc_except_table", ".debug_line",
		".rela.text", ".rela.gcc_except_table", ".rela.debug_line",
		".symtab", ".strtab", ".shstrtab",
	} {
		addShName(name)
	}

	// File layout, data sections first, then string/symbol tables, then
	// the section header table last (ELF puts no requirement on this
	// order; matching the teacher's own "payload, then tables, then
	// shdrs" layout keeps the two writers easy to compare).
	textOff := uint64(ehdrSize)
	dataOff := alignUp8(textOff + uint64(len(text.code)))
	ehOff := alignUp8(dataOff + uint64(len(data)))
	lineOff := alignUp8(ehOff + uint64(len(eh.code)))
	relaTextOff := alignUp8(lineOff + uint64(len(dbgLine.code)))
	relaEHOff := alignUp8(relaTextOff + uint64(len(rela)))
	relaLineOff := alignUp8(relaEHOff + uint64(len(relaEH)))
	symtabOff := alignUp8(relaLineOff + uint64(len(relaLine)))
	strtabOff := symtabOff + uint64(len(symtab))
	shstrtabOff := strtabOff + uint64(len(strtab))
	shdrOff := shstrtabOff + uint64(len(shstrtab))

	total := shdrOff + shdrCount*shdrSize
	out := make([]byte, total)

	out[0], out[1], out[2], out[3] = 0x7f, 'E', 'L', 'F'
	out[4] = 2           // ELFCLASS64
	out[5] = 1           // ELFDATA2LSB
	out[6] = 1           // EV_CURRENT
	putU16(out[16:], 1)  // e_type: ET_REL
	putU16(out[18:], 62) // e_machine: EM_X86_64
	putU32(out[20:], 1)  // e_version
	putU64(out[40:], shdrOff)
	putU16(out[52:], ehdrSize)
	putU16(out[58:], shdrSize)
	putU16(out[60:], shdrCount)
	putU16(out[62:], shShstrtab)

	copy(out[textOff:], text.code)
	copy(out[dataOff:], data)
	copy(out[ehOff:], eh.code)
	copy(out[lineOff:], dbgLine.code)
	copy(out[relaTextOff:], rela)
	copy(out[relaEHOff:], relaEH)
	copy(out[relaLineOff:], relaLine)
	copy(out[symtabOff:], symtab)
	copy(out[strtabOff:], strtab)
	copy(out[shstrtabOff:], shstrtab)

	writeShdr := func(idx int, name string, shType uint32, flags uint64, offset, size uint64, link, info uint32, entsize uint64) {
		s := out[int(shdrOff)+idx*shdrSize:]
		putU32(s[0:], shName[name])
		putU32(s[4:], shType)
		putU64(s[8:], flags)
		putU64(s[24:], offset)
		putU64(s[32:], size)
		putU32(s[40:], link)
		putU32(s[44:], info)
		putU64(s[48:], 8)
		putU64(s[56:], entsize)
	}
	writeShdr(shText, ".text", 1, 0x6, textOff, uint64(len(text.code)), 0, 0, 0)        // SHT_PROGBITS, SHF_ALLOC|SHF_EXECINSTR
	writeShdr(shData, ".data", 1, 0x3, dataOff, uint64(len(data)), 0, 0, 0)             // SHF_ALLOC|SHF_WRITE
	writeShdr(shBss, ".bss", 8, 0x3, dataOff+uint64(len(data)), bssSize, 0, 0, 0)       // SHT_NOBITS
	writeShdr(shEH, ".gcc_except_table", 1, 0x2, ehOff, uint64(len(eh.code)), 0, 0, 0)  // SHF_ALLOC
	writeShdr(shLine, ".debug_line", 1, 0, lineOff, uint64(len(dbgLine.code)), 0, 0, 0) // debug section, not loaded
	writeShdr(shRelaText, ".rela.text", 4, 0, relaTextOff, uint64(len(rela)), shSymtab, shText, relaEntrySize)
	writeShdr(shRelaEH, ".rela.gcc_except_table", 4, 0, relaEHOff, uint64(len(relaEH)), shSymtab, shEH, relaEntrySize)
	writeShdr(shRelaLine, ".rela.debug_line", 4, 0, relaLineOff, uint64(len(relaLine)), shSymtab, shLine, relaEntrySize)
	writeShdr(shSymtab, ".symtab", 2, 0, symtabOff, uint64(len(symtab)), shStrtab, 1, symEntrySize) // sh_info=1: every symbol here is STB_GLOBAL
	writeShdr(shStrtab, ".strtab", 3, 0, strtabOff, uint64(len(strtab)), 0, 0, 0)
	writeShdr(shShstrtab, ".shstrtab", 3, 0, shstrtabOff, uint64(len(shstrtab)), 0, 0, 0)

	return out
}
