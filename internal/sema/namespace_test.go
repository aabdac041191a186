package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
)

func TestDeclareReopensExistingNamespace(t *testing.T) {
	strings := arena.NewStringTable()
	reg := NewNamespaceRegistry(strings)
	name := strings.GetOrIntern("a")

	h1, err := reg.Declare(Global, name)
	require.NoError(t, err)
	h2, err := reg.Declare(Global, name)
	require.NoError(t, err)
	require.Equal(t, h1, h2, "reopening a namespace must return the same handle")
}

func TestDeclareBuildsQualifiedName(t *testing.T) {
	strings := arena.NewStringTable()
	reg := NewNamespaceRegistry(strings)
	a := strings.GetOrIntern("a")
	b := strings.GetOrIntern("b")

	ha, err := reg.Declare(Global, a)
	require.NoError(t, err)
	hb, err := reg.Declare(ha, b)
	require.NoError(t, err)

	require.Equal(t, "a::b", reg.QualifiedName(hb))
	require.Equal(t, 2, reg.Entry(hb).Depth)
}

func TestDeclareDistinctNamesUnderSameParentGetDistinctHandles(t *testing.T) {
	strings := arena.NewStringTable()
	reg := NewNamespaceRegistry(strings)
	ha, err := reg.Declare(Global, strings.GetOrIntern("a"))
	require.NoError(t, err)
	hb, err := reg.Declare(Global, strings.GetOrIntern("b"))
	require.NoError(t, err)
	require.NotEqual(t, ha, hb)
}
