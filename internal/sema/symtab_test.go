package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
)

func TestLookupWalksParentChain(t *testing.T) {
	strings := arena.NewStringTable()
	table := NewSymbolTable()
	name := strings.GetOrIntern("x")
	require.NoError(t, table.Insert(table.Current(), &Symbol{Name: name}))

	block := table.PushScope(ScopeBlock)
	sym, foundIn, ok := table.Lookup(block, name)
	require.True(t, ok)
	require.Equal(t, name, sym.Name)
	require.Equal(t, ScopeHandle(0), foundIn)
}

func TestLookupFailsAfterPopScopeHidesLocal(t *testing.T) {
	strings := arena.NewStringTable()
	table := NewSymbolTable()
	name := strings.GetOrIntern("local")

	block := table.PushScope(ScopeBlock)
	require.NoError(t, table.Insert(block, &Symbol{Name: name}))
	table.PopScope(block)

	_, _, ok := table.Lookup(table.Current(), name)
	require.False(t, ok, "a local declared in a closed block must not be visible from its parent")
}

func TestInsertRejectsRedefinition(t *testing.T) {
	strings := arena.NewStringTable()
	table := NewSymbolTable()
	name := strings.GetOrIntern("f")

	require.NoError(t, table.Insert(table.Current(), &Symbol{Name: name, Signature: "i(i)"}))
	err := table.Insert(table.Current(), &Symbol{Name: name, Signature: "i(i)"})
	require.Error(t, err)
}

func TestInsertCompletesForwardDeclaration(t *testing.T) {
	strings := arena.NewStringTable()
	table := NewSymbolTable()
	name := strings.GetOrIntern("f")

	require.NoError(t, table.Insert(table.Current(), &Symbol{Name: name, Signature: "i(i)", IsForwardDecl: true}))
	err := table.Insert(table.Current(), &Symbol{Name: name, Signature: "i(i)", IsForwardDecl: false})
	require.NoError(t, err)

	sym, _, ok := table.Lookup(table.Current(), name)
	require.True(t, ok)
	require.False(t, sym.IsForwardDecl)
}

func TestIsTemplateParamConsultsEnclosingTemplateScope(t *testing.T) {
	strings := arena.NewStringTable()
	table := NewSymbolTable()
	tparam := strings.GetOrIntern("T")

	tscope := table.PushScope(ScopeTemplateParams)
	table.BindTemplateParam(tscope, tparam)
	body := table.PushScope(ScopeFunction)

	require.True(t, table.IsTemplateParam(body, tparam))
	require.False(t, table.IsTemplateParam(body, strings.GetOrIntern("U")))
}
