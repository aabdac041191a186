package sema

import "github.com/cxxcore/ccc/internal/ast"

// ConversionRank orders implicit conversions best-to-worst per §4.C
// "Overload resolution": exact > promotion > standard conversion >
// user-defined conversion > ellipsis.
type ConversionRank int

const (
	RankExact ConversionRank = iota
	RankPromotion
	RankStandardConversion
	RankUserDefined
	RankEllipsis
	RankNoMatch // argument cannot convert at all
)

// Candidate is one overload-resolution candidate function.
type Candidate struct {
	Name   string
	Params []ast.TypeSpecifier
	// FromTemplate candidates must complete deduction before ranking
	// (§4.C "Template candidates deduce first, then rank").
	FromTemplate bool
}

// RankArgument computes the conversion rank of passing an argument of type
// `arg` to a parameter of type `param`.
func RankArgument(param, arg ast.TypeSpecifier) ConversionRank {
	if sameType(param, arg) {
		return RankExact
	}
	if isArithmeticPromotion(param, arg) {
		return RankPromotion
	}
	if isStandardConversion(param, arg) {
		return RankStandardConversion
	}
	if param.Base == ast.TypeUserDefined || arg.Base == ast.TypeUserDefined {
		return RankUserDefined
	}
	return RankNoMatch
}

func sameType(a, b ast.TypeSpecifier) bool {
	return a.Base == b.Base && a.TypeIndex == b.TypeIndex && a.Unsigned == b.Unsigned && len(a.PointerCV) == len(b.PointerCV)
}

func isArithmeticPromotion(param, arg ast.TypeSpecifier) bool {
	// bool/char/short -> int is a promotion; float -> double is a promotion.
	if param.Base == ast.TypeInt && (arg.Base == ast.TypeBool || arg.Base == ast.TypeChar || arg.Base == ast.TypeShort) {
		return true
	}
	if param.Base == ast.TypeDouble && arg.Base == ast.TypeFloat {
		return true
	}
	return false
}

func isStandardConversion(param, arg ast.TypeSpecifier) bool {
	return isArithmetic(param.Base) && isArithmetic(arg.Base)
}

func isArithmetic(b ast.BaseType) bool {
	switch b {
	case ast.TypeBool, ast.TypeChar, ast.TypeShort, ast.TypeInt, ast.TypeLong, ast.TypeLongLong, ast.TypeFloat, ast.TypeDouble:
		return true
	}
	return false
}

// ResolveOverload selects the best candidate for the given argument types,
// implementing §4.C's resolution rule: the candidate whose worst-ranked
// argument is best; ties broken by strict per-argument dominance; and
// "ambiguous" (ok=false, ambiguous=true) when no candidate dominates.
func ResolveOverload(candidates []Candidate, args []ast.TypeSpecifier) (best Candidate, ok bool, ambiguous bool) {
	type scored struct {
		c      Candidate
		ranks  []ConversionRank
		worst  ConversionRank
	}
	var viable []scored
	for _, c := range candidates {
		if len(c.Params) != len(args) {
			continue
		}
		ranks := make([]ConversionRank, len(args))
		worst := RankExact
		feasible := true
		for i, a := range args {
			r := RankArgument(c.Params[i], a)
			if r == RankNoMatch {
				feasible = false
				break
			}
			ranks[i] = r
			if r > worst {
				worst = r
			}
		}
		if feasible {
			viable = append(viable, scored{c, ranks, worst})
		}
	}
	if len(viable) == 0 {
		return Candidate{}, false, false
	}
	bestWorst := viable[0].worst
	for _, v := range viable[1:] {
		if v.worst < bestWorst {
			bestWorst = v.worst
		}
	}
	var top []scored
	for _, v := range viable {
		if v.worst == bestWorst {
			top = append(top, v)
		}
	}
	if len(top) == 1 {
		return top[0].c, true, false
	}
	// Tie on worst-argument rank: the one that strictly dominates (is at
	// least as good on every argument and strictly better on at least one)
	// wins; otherwise ambiguous.
	for i, a := range top {
		dominates := true
		strictlyBetter := false
		for j, b := range top {
			if i == j {
				continue
			}
			for k := range a.ranks {
				if a.ranks[k] > b.ranks[k] {
					dominates = false
				}
				if a.ranks[k] < b.ranks[k] {
					strictlyBetter = true
				}
			}
		}
		if dominates && strictlyBetter {
			return a.c, true, false
		}
	}
	return Candidate{}, false, true
}
