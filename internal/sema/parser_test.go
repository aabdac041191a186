package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/ast"
)

func TestParseTranslationUnitInsertsFunctionSymbolInGlobalScope(t *testing.T) {
	regs := NewRegistries()
	astArena := ast.NewArena()
	p := NewParser([]byte("int f(int x) { return x + 1; }"), 0, astArena, regs)

	tu, err := p.ParseTranslationUnit()
	require.NoError(t, err)
	require.NotZero(t, tu)

	sym, _, ok := regs.Symbols.Lookup(regs.Symbols.Current(), regs.Strings.GetOrIntern("f"))
	require.True(t, ok)
	require.Equal(t, ast.TypeInt, sym.Type.Base)
}

func TestParseTranslationUnitReportsErrorOnMissingDeclaratorName(t *testing.T) {
	regs := NewRegistries()
	astArena := ast.NewArena()
	p := NewParser([]byte("int ;"), 0, astArena, regs)

	_, err := p.ParseTranslationUnit()
	require.Error(t, err)
}

func TestParseTranslationUnitNoDelayedBodiesForNonTemplateFunction(t *testing.T) {
	regs := NewRegistries()
	astArena := ast.NewArena()
	p := NewParser([]byte("int f() { return 0; }"), 0, astArena, regs)

	_, err := p.ParseTranslationUnit()
	require.NoError(t, err)
	require.Empty(t, p.Delayed())
}
