package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

func TestMangleItaniumNoArgsGlobalFunction(t *testing.T) {
	strings := arena.NewStringTable()
	ns := NewNamespaceRegistry(strings)
	m := NewMangler(ABIItanium, strings, ns)

	sym := m.Mangle(FuncSignature{Name: strings.GetOrIntern("f")})
	require.Equal(t, "_Z1fv", sym)
}

func TestMangleItaniumWithIntParam(t *testing.T) {
	strings := arena.NewStringTable()
	ns := NewNamespaceRegistry(strings)
	m := NewMangler(ABIItanium, strings, ns)

	sym := m.Mangle(FuncSignature{
		Name:   strings.GetOrIntern("f"),
		Params: []ast.TypeSpecifier{{Base: ast.TypeInt}},
	})
	require.Equal(t, "_Z1fi", sym)
}

func TestMangleItaniumQualifiesNamespacedFunction(t *testing.T) {
	strings := arena.NewStringTable()
	ns := NewNamespaceRegistry(strings)
	m := NewMangler(ABIItanium, strings, ns)

	a, err := ns.Declare(Global, strings.GetOrIntern("a"))
	require.NoError(t, err)

	sym := m.Mangle(FuncSignature{Namespace: a, Name: strings.GetOrIntern("f")})
	require.Equal(t, "_ZN1a1fEv", sym)
}

func TestMangleItaniumPointerAndConstQualifiers(t *testing.T) {
	code := mangleItaniumType(ast.TypeSpecifier{
		Base:      ast.TypeInt,
		CV:        ast.QualConst,
		PointerCV: []ast.Qualifier{ast.QualNone},
	})
	require.Equal(t, "KPi", code)
}

func TestMangleMSVCDistinctOverloadsGetDistinctSymbols(t *testing.T) {
	strings := arena.NewStringTable()
	ns := NewNamespaceRegistry(strings)
	m := NewMangler(ABIMSVC, strings, ns)

	noArgs := m.Mangle(FuncSignature{Name: strings.GetOrIntern("f")})
	oneArg := m.Mangle(FuncSignature{Name: strings.GetOrIntern("f"), Params: []ast.TypeSpecifier{{Base: ast.TypeInt}}})
	require.NotEqual(t, noArgs, oneArg)
}
