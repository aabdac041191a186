package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

func TestComputeRTTIKindNoBases(t *testing.T) {
	strings := arena.NewStringTable()
	types := NewTypeInfoTable()
	idx := types.Declare(TypeStruct, strings.GetOrIntern("Widget"))
	require.Equal(t, RTTIClassNoBases, types.ComputeRTTIKind(idx))
}

func TestComputeRTTIKindSingleInheritance(t *testing.T) {
	types := NewTypeInfoTable()
	idx := types.Declare(TypeStruct, arena.InvalidString)
	types.Get(idx).Bases = []BaseSpecifier{{Access: ast.AccessPublic}}
	require.Equal(t, RTTISingleInheritance, types.ComputeRTTIKind(idx))
}

func TestComputeRTTIKindMultipleInheritanceOnVirtualBase(t *testing.T) {
	types := NewTypeInfoTable()
	idx := types.Declare(TypeStruct, arena.InvalidString)
	types.Get(idx).Bases = []BaseSpecifier{{Access: ast.AccessPublic, IsVirtual: true}}
	require.Equal(t, RTTIMultipleInheritance, types.ComputeRTTIKind(idx))
}

func TestLayoutAssignsAlignedOffsets(t *testing.T) {
	types := NewTypeInfoTable()
	idx := types.Declare(TypeStruct, arena.InvalidString)
	entry := types.Get(idx)
	entry.Members = []Member{
		{Type: ast.TypeSpecifier{Base: ast.TypeChar}},
		{Type: ast.TypeSpecifier{Base: ast.TypeInt}},
	}
	sizeOf := func(ts ast.TypeSpecifier) (int, int) {
		switch ts.Base {
		case ast.TypeChar:
			return 1, 1
		case ast.TypeInt:
			return 4, 4
		}
		return 8, 8
	}
	types.Layout(idx, sizeOf)

	require.Equal(t, 0, entry.Members[0].Offset)
	require.Equal(t, 4, entry.Members[1].Offset, "int member must be 4-byte aligned after the leading char")
	require.Equal(t, 8, entry.Size)
	require.Equal(t, 4, entry.Align)
}
