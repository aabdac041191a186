package objfile

import "github.com/cxxcore/ccc/internal/codegen"

// COFF/x64 relocation types (winnt.h), the Windows analogue of the ELF
// constants in elf.go: ADDR64 for an absolute 64-bit data reference,
// REL32 for a call/jmp already lowered to a rel32 displacement, ADDR32NB
// for a 32-bit RVA with no base, the form xdata/pdata's cross-references
// use (IMAGE_REL_AMD64_ADDR32NB).
const (
	imageRelAmd64Addr64   = 0x0001
	imageRelAmd64Addr32Nb = 0x0003
	imageRelAmd64Rel32    = 0x0004
)

const (
	imageSymClassExternal = 2
	imageSymTypeFunction  = 0x20
)

// Section slots within the section table (0-based, as writeSectionHdr's
// idx indexes them); a symbol's 1-based COFF section number is sectionXxx+1.
const (
	sectText    = 0
	sectData    = 1
	sectBss     = 2
	sectXdata   = 3
	sectPdata   = 4
	sectDebugS  = 5
	numSections = 6
)

// writeCOFF builds a plain .obj: an IMAGE_FILE_HEADER with no optional
// header (object files skip it, unlike the PE32+ executable the teacher's
// buildPE64 assembles — no DOS stub, no PE signature, no section RVAs,
// since a linker has not yet placed anything), a six-entry section table
// (.text/.data/.bss/.xdata/.pdata/.debug$S), each section's raw data plus
// its IMAGE_RELOCATION array, and a trailing symbol table plus string
// table for any name longer than COFF's inline 8-byte limit.
func writeCOFF(res *codegen.Result) []byte {
	text := buildTextLayout(res)
	data, bssSize, dataSyms := buildDataLayout(res)
	xdata := buildEHLayout(res, sectXdata+1)
	pdata := buildPDataLayout(res, sectPdata+1)
	dbgS := buildDebugLineLayout(res, sectDebugS+1)

	const (
		fileHeaderSize = 20
		sectionHdrSize = 40
		relocEntrySize = 10
		symEntrySize   = 18
	)

	var strtab []byte // COFF string table: leading 4-byte total-length field, then NUL-terminated names
	nameOff := map[string]uint32{}
	longName := func(name string) uint32 {
		if off, ok := nameOff[name]; ok {
			return off
		}
		off := uint32(len(strtab) + 4) // +4 for the length prefix written at the very end
		strtab = append(strtab, []byte(name)...)
		strtab = append(strtab, 0)
		nameOff[name] = off
		return off
	}

	type sym struct {
		name    string
		value   uint32
		section int16
		isFunc  bool
	}
	var syms []sym
	defined := map[string]int{}
	addSym := func(name string, value uint32, section int16, isFunc bool) {
		syms = append(syms, sym{name: name, value: value, section: section, isFunc: isFunc})
		defined[name] = len(syms) // 1-based
	}
	for _, s := range text.syms {
		addSym(s.Name, uint32(s.Offset), sectText+1, true)
	}
	for _, s := range dataSyms {
		// buildDataLayout's Section values (2=.data, 3=.bss) already line up
		// with sectData+1/sectBss+1 — the same numbers the ELF writer uses
		// as shndx, since ELF's one extra null section at index 0 and
		// COFF's missing null section cancel out.
		addSym(s.Name, uint32(s.Offset), int16(s.Section), false)
	}
	for _, s := range xdata.syms {
		addSym(s.Name, uint32(s.Offset), int16(s.Section), false)
	}
	for _, s := range pdata.syms {
		addSym(s.Name, uint32(s.Offset), int16(s.Section), false)
	}
	for _, s := range dbgS.syms {
		addSym(s.Name, uint32(s.Offset), int16(s.Section), false)
	}
	symIndex := func(name string) int {
		if idx, ok := defined[name]; ok {
			return idx
		}
		syms = append(syms, sym{name: name, section: 0}) // IMAGE_SYM_UNDEFINED
		defined[name] = len(syms)
		return len(syms)
	}

	buildRelocs := func(relocs []objReloc) []byte {
		var out []byte
		for _, r := range relocs {
			idx := symIndex(r.SymbolName)
			rtype := uint16(imageRelAmd64Addr64)
			switch r.Kind {
			case codegen.RelCallRel32, codegen.RelJmpRel32, codegen.RelPCRel32:
				rtype = imageRelAmd64Rel32
			case codegen.RelAddr32NB:
				rtype = imageRelAmd64Addr32Nb
			}
			e := make([]byte, relocEntrySize)
			putU32(e[0:], uint32(r.Offset))
			putU32(e[4:], uint32(idx-1)) // COFF symbol table indices are 0-based
			putU16(e[8:], rtype)
			out = append(out, e...)
		}
		return out
	}
	textRelocs := buildRelocs(text.relocs)
	xdataRelocs := buildRelocs(xdata.relocs)
	pdataRelocs := buildRelocs(pdata.relocs)
	dbgSRelocs := buildRelocs(dbgS.relocs)

	textOff := uint32(fileHeaderSize + numSections*sectionHdrSize)
	dataOff := textOff + uint32(len(text.code))
	xdataOff := dataOff + uint32(len(data))
	pdataOff := xdataOff + uint32(len(xdata.code))
	dbgSOff := pdataOff + uint32(len(pdata.code))
	textRelocOff := dbgSOff + uint32(len(dbgS.code))
	xdataRelocOff := textRelocOff + uint32(len(textRelocs))
	pdataRelocOff := xdataRelocOff + uint32(len(xdataRelocs))
	dbgSRelocOff := pdataRelocOff + uint32(len(pdataRelocs))
	symtabOff := dbgSRelocOff + uint32(len(dbgSRelocs))

	symtab := make([]byte, 0, len(syms)*symEntrySize)
	for _, s := range syms {
		e := make([]byte, symEntrySize)
		if len(s.name) <= 8 {
			copy(e[0:8], s.name)
		} else {
			putU32(e[0:4], 0)
			putU32(e[4:8], longName(s.name))
		}
		putU32(e[8:], s.value)
		putU16(e[12:], uint16(s.section))
		if s.isFunc {
			putU16(e[14:], imageSymTypeFunction)
		}
		e[16] = imageSymClassExternal
		symtab = append(symtab, e...)
	}

	strtabOff := symtabOff + uint32(len(symtab))
	strtabTotal := make([]byte, 4)
	putU32(strtabTotal, uint32(len(strtab)+4))
	strtab = append(strtabTotal, strtab...)

	total := strtabOff + uint32(len(strtab))
	out := make([]byte, total)

	putU16(out[0:], 0x8664) // IMAGE_FILE_MACHINE_AMD64
	putU16(out[2:], numSections)
	putU32(out[8:], symtabOff)
	putU32(out[12:], uint32(len(syms)))
	putU16(out[18:], 0) // Characteristics

	writeSectionHdr := func(idx int, name string, rawOff, rawSize, relocOff uint32, numRelocs uint16, characteristics uint32) {
		h := out[fileHeaderSize+idx*sectionHdrSize:]
		copy(h[0:8], name)
		putU32(h[16:], rawSize)
		putU32(h[20:], rawOff)
		putU32(h[24:], relocOff)
		putU16(h[32:], numRelocs)
		putU32(h[36:], characteristics)
	}
	const (
		imageScnCntCode            = 0x00000020
		imageScnCntInitializedData = 0x00000040
		imageScnCntUninitData      = 0x00000080
		imageScnLnkInfo            = 0x00000200
		imageScnMemDiscardable     = 0x02000000
		imageScnMemExecute         = 0x20000000
		imageScnMemRead            = 0x40000000
		imageScnMemWrite           = 0x80000000
	)
	writeSectionHdr(sectText, ".text", textOff, uint32(len(text.code)), textRelocOff, uint16(len(text.relocs)), imageScnCntCode|imageScnMemExecute|imageScnMemRead)
	writeSectionHdr(sectData, ".data", dataOff, uint32(len(data)), 0, 0, imageScnCntInitializedData|imageScnMemRead|imageScnMemWrite)
	writeSectionHdr(sectBss, ".bss", 0, uint32(bssSize), 0, 0, imageScnCntUninitData|imageScnMemRead|imageScnMemWrite)
	writeSectionHdr(sectXdata, ".xdata", xdataOff, uint32(len(xdata.code)), xdataRelocOff, uint16(len(xdata.relocs)), imageScnCntInitializedData|imageScnMemRead)
	writeSectionHdr(sectPdata, ".pdata", pdataOff, uint32(len(pdata.code)), pdataRelocOff, uint16(len(pdata.relocs)), imageScnCntInitializedData|imageScnMemRead)
	writeSectionHdr(sectDebugS, ".debug$S", dbgSOff, uint32(len(dbgS.code)), dbgSRelocOff, uint16(len(dbgS.relocs)), imageScnCntInitializedData|imageScnLnkInfo|imageScnMemDiscardable)

	copy(out[textOff:], text.code)
	copy(out[dataOff:], data)
	copy(out[xdataOff:], xdata.code)
	copy(out[pdataOff:], pdata.code)
	copy(out[dbgSOff:], dbgS.code)
	copy(out[textRelocOff:], textRelocs)
	copy(out[xdataRelocOff:], xdataRelocs)
	copy(out[pdataRelocOff:], pdataRelocs)
	copy(out[dbgSRelocOff:], dbgSRelocs)
	copy(out[symtabOff:], symtab)
	copy(out[strtabOff:], strtab)

	return out
}
