package ehframe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/codegen"
	"github.com/cxxcore/ccc/internal/sema"
)

func TestBuildLSDAAssignsOneActionPerTryRegion(t *testing.T) {
	regions := []codegen.EHRegion{
		{TryStartOffset: 0, TryEndOffset: 10, HandlerOffset: 20, TypeSymbol: "_ZTI7MyError"},
		{TryStartOffset: 10, TryEndOffset: 30, HandlerOffset: 40, TypeSymbol: ""},
	}
	lsda := BuildLSDA(regions, 50)
	require.Len(t, lsda.CallSites, 2)
	require.Len(t, lsda.Actions, 2)
	require.Equal(t, int32(1), lsda.Actions[0].TypeFilter)
	require.Equal(t, int32(0), lsda.Actions[1].TypeFilter) // catch(...) uses filter 0
	require.Equal(t, []string{"", "_ZTI7MyError"}, lsda.TypeTable)
}

func TestBuildLSDASkipsSehRegions(t *testing.T) {
	regions := []codegen.EHRegion{
		{TryStartOffset: 0, TryEndOffset: 5, IsSeh: true},
	}
	lsda := BuildLSDA(regions, 20)
	require.Empty(t, lsda.CallSites)
}

func TestLSDAEncodeStartsWithOmittedLPStart(t *testing.T) {
	regions := []codegen.EHRegion{
		{TryStartOffset: 0, TryEndOffset: 10, HandlerOffset: 20, TypeSymbol: "_ZTI7MyError"},
	}
	lsda := BuildLSDA(regions, 30)
	encoded := lsda.Encode()
	require.NotEmpty(t, encoded)
	require.Equal(t, byte(dwarfOmit), encoded[0])
}

func TestBuildUnwindInfoEncodesPushAndAlloc(t *testing.T) {
	fn := codegen.CompiledFunc{MangledName: "_Z1fv", FrameSize: 32}
	info := BuildUnwindInfo(fn, "__ccc_eh_personality")
	require.Len(t, info.Codes, 2)
	encoded := info.Encode()
	require.Equal(t, uint8(len(info.Codes)), encoded[2])
}

func TestBuildUnwindInfoSetsEHandlerFlagWhenFunctionHasHandlers(t *testing.T) {
	fn := codegen.CompiledFunc{MangledName: "_Z1gv", HasHandlers: true, FrameSize: 16}
	info := BuildUnwindInfo(fn, "__ccc_eh_personality")
	require.Equal(t, uint8(unwFlagEHandler), info.Flags)
}

func TestBuildFuncInfoNumbersStatesByRegionOrder(t *testing.T) {
	regions := []codegen.EHRegion{
		{TryStartOffset: 0, TryEndOffset: 10, HandlerOffset: 20, TypeSymbol: "??_R0MyError@@8"},
	}
	fi := BuildFuncInfo(regions)
	require.Len(t, fi.TryBlocks, 1)
	require.Equal(t, int32(0), fi.TryBlocks[0].TryLow)
	require.Len(t, fi.IPToState, 2)
}

func TestBuildScopeTableOnlyIncludesSehRegions(t *testing.T) {
	regions := []codegen.EHRegion{
		{TryStartOffset: 0, TryEndOffset: 10, HandlerOffset: 20, TypeSymbol: "_ZTI7MyError"},
		{TryStartOffset: 10, TryEndOffset: 30, HandlerOffset: 40, IsSeh: true},
	}
	table := BuildScopeTable(regions)
	require.Len(t, table, 1)
	require.Equal(t, uint32(10), table[0].BeginAddress)
}

func TestComputeRTTISymbolsItaniumNoBases(t *testing.T) {
	strings := arena.NewStringTable()
	types := sema.NewTypeInfoTable()
	idx := types.Declare(sema.TypeStruct, strings.GetOrIntern("Widget"))

	syms := ComputeRTTISymbols(types, strings, idx, sema.ABIItanium)
	require.Equal(t, "_ZTI6Widget", syms.TypeInfo)
	require.Equal(t, "_ZTS6Widget", syms.TypeName)
}

func TestComputeRTTISymbolsMSVCNoBasesOmitsBaseArray(t *testing.T) {
	strings := arena.NewStringTable()
	types := sema.NewTypeInfoTable()
	idx := types.Declare(sema.TypeStruct, strings.GetOrIntern("Widget"))

	syms := ComputeRTTISymbols(types, strings, idx, sema.ABIMSVC)
	require.Equal(t, "??_R0Widget@@8", syms.TypeInfo)
	require.Empty(t, syms.TypeName)
}
