package objfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/codegen"
)

func sampleResult() *codegen.Result {
	return &codegen.Result{
		Funcs: []codegen.CompiledFunc{
			{
				Name:        "f",
				MangledName: "_Z1fv",
				Code:        []byte{0x55, 0x48, 0x89, 0xE5, 0xE8, 0, 0, 0, 0, 0xC3},
				Relocs: []codegen.Reloc{
					{Offset: 5, Symbol: "__ccc_alloc", Type: codegen.RelCallRel32},
				},
			},
		},
		Globals: []codegen.CompiledGlobal{
			{Name: "g_counter", SizeBits: 64, InitInt: 7},
		},
	}
}

func TestWriteELF64ProducesValidMagicAndType(t *testing.T) {
	out, err := Write(sampleResult(), FormatELF64)
	require.NoError(t, err)
	require.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, out[0:4])
	require.Equal(t, byte(2), out[4])                               // ELFCLASS64
	require.Equal(t, uint16(1), uint16(out[16])|uint16(out[17])<<8) // ET_REL
}

func TestWriteCOFFProducesAmd64Machine(t *testing.T) {
	out, err := Write(sampleResult(), FormatCOFF)
	require.NoError(t, err)
	machine := uint16(out[0]) | uint16(out[1])<<8
	require.Equal(t, uint16(0x8664), machine)
	numSections := uint16(out[2]) | uint16(out[3])<<8
	require.Equal(t, uint16(6), numSections) // .text, .data, .bss, .xdata, .pdata, .debug$S
}

func TestWriteUnknownFormatErrors(t *testing.T) {
	_, err := Write(sampleResult(), Format(99))
	require.Error(t, err)
}

func TestWriteELF64EmitsGCCExceptTableSectionName(t *testing.T) {
	res := sampleResult()
	res.Funcs[0].EHData = []byte{0xff, 0x03, 0x01, 0x04, 0, 0, 0, 0}
	res.Funcs[0].EHRelocs = []codegen.Reloc{{Offset: 4, Symbol: "_ZTI7MyError", Type: codegen.RelPCRel32}}
	out, err := Write(res, FormatELF64)
	require.NoError(t, err)
	require.Contains(t, string(out), ".gcc_except_table")
	require.Contains(t, string(out), ".debug_line")
}

func TestWriteCOFFEmitsXdataPdataSectionNames(t *testing.T) {
	res := sampleResult()
	res.Funcs[0].HasHandlers = true
	res.Funcs[0].EHData = make([]byte, 8)
	res.Funcs[0].PData = make([]byte, 12)
	res.Funcs[0].PDataRelocs = []codegen.Reloc{
		{Offset: 0, Symbol: "_Z1fv", Type: codegen.RelAddr32NB},
		{Offset: 4, Symbol: "_Z1fv$end", Type: codegen.RelAddr32NB},
		{Offset: 8, Symbol: "_Z1fv$unwind", Type: codegen.RelAddr32NB},
	}
	out, err := Write(res, FormatCOFF)
	require.NoError(t, err)
	require.Contains(t, string(out), ".xdata")
	require.Contains(t, string(out), ".pdata")
	require.Contains(t, string(out), ".debug$S")
}

func TestBuildEHLayoutSkipsFunctionsWithNoEHData(t *testing.T) {
	res := &codegen.Result{Funcs: []codegen.CompiledFunc{{MangledName: "a"}}}
	l := buildEHLayout(res, 4)
	require.Empty(t, l.code)
	require.Empty(t, l.syms)
}

func TestBuildDebugLineLayoutEmitsOneRowPerLineEntry(t *testing.T) {
	res := &codegen.Result{Funcs: []codegen.CompiledFunc{
		{MangledName: "_Z1fv", Lines: []codegen.LineEntry{{CodeOffset: 0, Line: 1, Column: 1}, {CodeOffset: 4, Line: 2, Column: 3}}},
	}}
	l := buildDebugLineLayout(res, 5)
	require.Len(t, l.relocs, 1)
	require.Equal(t, uint64(8+12*2), l.syms[0].Size)
}

func TestBuildTextLayoutRebasesRelocOffsets(t *testing.T) {
	res := &codegen.Result{
		Funcs: []codegen.CompiledFunc{
			{MangledName: "a", Code: make([]byte, 4)},
			{MangledName: "b", Code: make([]byte, 4), Relocs: []codegen.Reloc{{Offset: 1, Symbol: "x", Type: codegen.RelAbs64}}},
		},
	}
	l := buildTextLayout(res)
	require.Len(t, l.relocs, 1)
	require.Equal(t, uint64(5), l.relocs[0].Offset) // second func starts at offset 4
}
