package sema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/ast"
)

func intT() ast.TypeSpecifier    { return ast.TypeSpecifier{Base: ast.TypeInt} }
func doubleT() ast.TypeSpecifier { return ast.TypeSpecifier{Base: ast.TypeDouble} }
func charT() ast.TypeSpecifier   { return ast.TypeSpecifier{Base: ast.TypeChar} }

func TestRankArgumentExactBeatsPromotion(t *testing.T) {
	require.Equal(t, RankExact, RankArgument(intT(), intT()))
	require.Equal(t, RankPromotion, RankArgument(intT(), charT()))
}

func TestResolveOverloadPicksExactMatch(t *testing.T) {
	candidates := []Candidate{
		{Name: "f", Params: []ast.TypeSpecifier{doubleT()}},
		{Name: "f", Params: []ast.TypeSpecifier{intT()}},
	}
	best, ok, ambiguous := ResolveOverload(candidates, []ast.TypeSpecifier{intT()})
	require.True(t, ok)
	require.False(t, ambiguous)
	require.Equal(t, []ast.TypeSpecifier{intT()}, best.Params)
}

func TestResolveOverloadSkipsArityMismatch(t *testing.T) {
	candidates := []Candidate{
		{Name: "f", Params: []ast.TypeSpecifier{intT(), intT()}},
		{Name: "f", Params: []ast.TypeSpecifier{intT()}},
	}
	best, ok, ambiguous := ResolveOverload(candidates, []ast.TypeSpecifier{intT()})
	require.True(t, ok)
	require.False(t, ambiguous)
	require.Len(t, best.Params, 1)
}

func TestResolveOverloadReportsNoMatch(t *testing.T) {
	candidates := []Candidate{{Name: "f", Params: []ast.TypeSpecifier{intT(), intT()}}}
	_, ok, ambiguous := ResolveOverload(candidates, []ast.TypeSpecifier{intT()})
	require.False(t, ok)
	require.False(t, ambiguous)
}

func TestResolveOverloadAmbiguousWhenNeitherDominates(t *testing.T) {
	// f(int, double) vs f(double, int): passing (int, int) ranks one
	// argument promotion/standard-conversion on each side with no
	// candidate dominating the other on every argument.
	candidates := []Candidate{
		{Name: "f", Params: []ast.TypeSpecifier{intT(), doubleT()}},
		{Name: "f", Params: []ast.TypeSpecifier{doubleT(), intT()}},
	}
	_, ok, ambiguous := ResolveOverload(candidates, []ast.TypeSpecifier{intT(), intT()})
	require.False(t, ok)
	require.True(t, ambiguous)
}
