package instantiate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/sema"
)

// buildIdentityTemplate constructs the AST for
// `template<class T> T f(T x) { return x; }`
// by hand, without going through the parser, so instantiation logic can be
// exercised in isolation.
func buildIdentityTemplate(t *testing.T, astArena *ast.Arena, regs *sema.Registries) arena.StringHandle {
	t.Helper()
	tName := regs.Strings.GetOrIntern("T")
	fName := regs.Strings.GetOrIntern("f")
	xName := regs.Strings.GetOrIntern("x")

	paramT := astArena.Alloc(ast.Node{Kind: ast.KindTemplateTypeParam, Name: tName})

	paramX := astArena.Alloc(ast.Node{
		Kind: ast.KindParamDecl, Name: xName,
		Type: ast.TypeSpecifier{Base: ast.TypeTemplateParam, TemplateParam: tName}, HasType: true,
	})

	identExpr := astArena.Alloc(ast.Node{Kind: ast.KindIdentExpr, Name: xName})
	returnStmt := astArena.Alloc(ast.Node{Kind: ast.KindReturnStmt, Lhs: identExpr})
	block := astArena.Alloc(ast.Node{Kind: ast.KindBlockStmt, Children: []arena.Handle{returnStmt}})

	funcDecl := astArena.Alloc(ast.Node{
		Kind: ast.KindFuncDecl, Name: fName,
		Type:     ast.TypeSpecifier{Base: ast.TypeTemplateParam, TemplateParam: tName},
		HasType:  true,
		Children: []arena.Handle{paramX},
		Body:     block,
	})

	tmplNode := astArena.Alloc(ast.Node{
		Kind:     ast.KindTemplateDecl,
		Name:     fName,
		Children: []arena.Handle{paramT},
		Body:     funcDecl,
	})

	regs.Templates.DeclarePrimary(fName, tmplNode)
	return fName
}

func TestInstantiateSubstitutesTypeParam(t *testing.T) {
	astArena := ast.NewArena()
	regs := sema.NewRegistries()
	name := buildIdentityTemplate(t, astArena, regs)
	engine := NewEngine(astArena, regs)

	h, err := engine.Instantiate(name, []sema.TypeIndexArg{
		{Kind: sema.TemplateArgType, Type: ast.TypeSpecifier{Base: ast.TypeInt}},
	})
	require.NoError(t, err)

	clonedFunc := astArena.Get(h)
	require.Equal(t, ast.TypeInt, clonedFunc.Type.Base)
	require.True(t, strings.Contains(regs.Strings.String(clonedFunc.Name), "$"))

	paramDecl := astArena.Get(clonedFunc.Children[0])
	require.Equal(t, ast.TypeInt, paramDecl.Type.Base)
}

func TestInstantiateMemoizes(t *testing.T) {
	astArena := ast.NewArena()
	regs := sema.NewRegistries()
	name := buildIdentityTemplate(t, astArena, regs)
	engine := NewEngine(astArena, regs)

	args := []sema.TypeIndexArg{{Kind: sema.TemplateArgType, Type: ast.TypeSpecifier{Base: ast.TypeDouble}}}
	h1, err := engine.Instantiate(name, args)
	require.NoError(t, err)
	h2, err := engine.Instantiate(name, args)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestInstantiateDistinctArgsProduceDistinctInstantiations(t *testing.T) {
	astArena := ast.NewArena()
	regs := sema.NewRegistries()
	name := buildIdentityTemplate(t, astArena, regs)
	engine := NewEngine(astArena, regs)

	hInt, err := engine.Instantiate(name, []sema.TypeIndexArg{{Kind: sema.TemplateArgType, Type: ast.TypeSpecifier{Base: ast.TypeInt}}})
	require.NoError(t, err)
	hFloat, err := engine.Instantiate(name, []sema.TypeIndexArg{{Kind: sema.TemplateArgType, Type: ast.TypeSpecifier{Base: ast.TypeFloat}}})
	require.NoError(t, err)
	require.NotEqual(t, hInt, hFloat)
}

func TestBuildBindingsRejectsArityMismatch(t *testing.T) {
	astArena := ast.NewArena()
	regs := sema.NewRegistries()
	name := buildIdentityTemplate(t, astArena, regs)
	entry, _ := regs.Templates.Lookup(name)

	_, err := BuildBindings(astArena, entry.Primary, nil)
	require.Error(t, err)
}
