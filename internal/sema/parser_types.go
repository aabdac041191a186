package sema

import (
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

var baseTypeKeywords = map[token.Kind]ast.BaseType{
	token.KwVoid: ast.TypeVoid, token.KwBool: ast.TypeBool, token.KwChar: ast.TypeChar,
	token.KwShort: ast.TypeShort, token.KwInt: ast.TypeInt, token.KwLong: ast.TypeLong,
	token.KwFloat: ast.TypeFloat, token.KwDouble: ast.TypeDouble, token.KwAuto: ast.TypeAuto,
}

// parseTypeSpecifier parses a TypeSpecifierNode (§3): base type, sign/CV
// qualifiers, pointer-depth vector with per-level CV, and reference
// qualifier. Array sizes are parsed by the declarator, not here.
func (p *Parser) parseTypeSpecifier(scope ScopeHandle) (ast.TypeSpecifier, error) {
	var spec ast.TypeSpecifier
	for {
		switch {
		case p.atKeyword(token.KwConst):
			p.advance()
			spec.CV |= ast.QualConst
		case p.atKeyword(token.KwVolatile):
			p.advance()
			spec.CV |= ast.QualVolatile
		case p.atKeyword(token.KwUnsigned):
			p.advance()
			spec.Unsigned = true
		case p.atKeyword(token.KwSigned):
			p.advance()
		default:
			goto base
		}
	}
base:
	t := p.lex.Peek(0)
	if bt, ok := baseTypeKeywords[t.Kind]; ok && t.Category == token.Keyword {
		p.advance()
		spec.Base = bt
		if t.Kind == token.KwLong && p.atKeyword(token.KwLong) {
			p.advance()
			spec.Base = ast.TypeLongLong
		}
	} else if t.Category == token.Identifier {
		name := p.regs.Strings.GetOrIntern(t.Text)
		if p.regs.Symbols.IsTemplateParam(scope, name) {
			p.advance()
			spec.Base = ast.TypeTemplateParam
			spec.TemplateParam = name
		} else {
			p.advance()
			spec.Base = ast.TypeUserDefined
			// The parser only records that this is a user-defined-type
			// reference; TypeIndex is left 0 and no later pass resolves it
			// against the TypeInfoTable.
		}
	} else {
		return spec, p.errorf(t, "expected type specifier, got %q", t.Text)
	}
	for p.atKeyword(token.KwConst) || p.atKeyword(token.KwVolatile) {
		// Trailing CV before the first '*' still qualifies the base type.
		if p.atKeyword(token.KwConst) {
			spec.CV |= ast.QualConst
		} else {
			spec.CV |= ast.QualVolatile
		}
		p.advance()
	}
	for p.atOp(token.OpStar) {
		p.advance()
		var lvl ast.Qualifier
		for p.atKeyword(token.KwConst) || p.atKeyword(token.KwVolatile) {
			if p.atKeyword(token.KwConst) {
				lvl |= ast.QualConst
			} else {
				lvl |= ast.QualVolatile
			}
			p.advance()
		}
		spec.PointerCV = append(spec.PointerCV, lvl)
	}
	if p.atOp(token.OpAmp) {
		p.advance()
		spec.Ref = RefLValueCompat()
	} else if p.atOp(token.OpAndAnd) {
		p.advance()
		spec.Ref = ast.RefRValue
	}
	return spec, nil
}

// RefLValueCompat exists purely to keep this file's naming explicit that a
// single '&' parses as an lvalue reference; inlined, it would read as a
// magic constant at the call site.
func RefLValueCompat() ast.RefKind { return ast.RefLValue }

// collapseReference implements C++ reference-collapsing (§4.D step 2):
// `T&& where T=U&` collapses to `U&`; an lvalue-ref anywhere in the chain
// wins.
func collapseReference(outer, inner ast.RefKind) ast.RefKind {
	if outer == ast.RefLValue || inner == ast.RefLValue {
		return ast.RefLValue
	}
	if outer == ast.RefRValue || inner == ast.RefRValue {
		return ast.RefRValue
	}
	return ast.RefNone
}

// CollapseReference exposes collapseReference to internal/instantiate, which
// applies C++ reference-collapsing when a reference-bound template
// parameter is substituted into another reference context (§4.D step 2).
func CollapseReference(outer, inner ast.RefKind) ast.RefKind {
	return collapseReference(outer, inner)
}
