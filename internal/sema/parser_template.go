package sema

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

// parseTemplateDecl parses `template<params> decl` (§4.C grammar coverage,
// §4.D). The template-parameter scope stays open while the underlying
// declaration (function/class/variable) is parsed, so identifier
// references resolving to a template parameter name are recognized via
// SymbolTable.IsTemplateParam while parsing its body/members. The
// resulting declaration node is registered as the template's primary in
// the TemplateRegistry, unsubstituted — substitution happens on demand in
// internal/instantiate.
func (p *Parser) parseTemplateDecl(ns NamespaceHandle, scope ScopeHandle) ParseResult {
	tmplTok := p.advance() // 'template'
	if !p.atOp(token.OpLt) {
		t := p.lex.Peek(0)
		return fail(p.errorf(t, "expected '<' after 'template'"))
	}
	p.advance()

	paramScope := p.regs.Symbols.PushScope(ScopeTemplateParams)
	var paramNodes []arena.Handle
	for !p.atOp(token.OpGt) {
		res := p.parseTemplateParam(paramScope)
		if res.Outcome != Success {
			p.regs.Symbols.PopScope(paramScope)
			return res
		}
		paramNodes = append(paramNodes, res.Node)
		if p.atPunct(token.PunctComma) {
			p.advance()
			continue
		}
		break
	}
	if !p.atOp(token.OpGt) {
		p.regs.Symbols.PopScope(paramScope)
		t := p.lex.Peek(0)
		return fail(p.errorf(t, "expected '>' to close template parameter list"))
	}
	p.advance()

	// requires-clause (concept constraint) — parsed and attached as the
	// template node's Lhs. Nothing evaluates it: internal/instantiate does
	// not read it.
	var requiresNode arena.Handle
	if p.atKeyword(token.KwRequires) {
		p.advance()
		res := p.parseExpression(paramScope)
		if res.Outcome == Success {
			requiresNode = res.Node
		}
	}

	declRes := p.parseDeclaration(ns, scope)
	p.regs.Symbols.PopScope(paramScope)
	if declRes.Outcome != Success {
		return declRes
	}

	var name arena.StringHandle
	if decl := p.ast.Get(declRes.Node); decl.Name != arena.InvalidString {
		name = decl.Name
	}
	tmplNode := p.ast.Alloc(ast.Node{Kind: ast.KindTemplateDecl, Tok: tmplTok, Name: name, Children: paramNodes, Body: declRes.Node, Lhs: requiresNode})
	if name != arena.InvalidString {
		p.regs.Templates.DeclarePrimary(name, tmplNode)
	}
	return ok(tmplNode)
}

// parseTemplateParam parses one of `class T`, `typename T`, `class... T`
// or `typename... T` (parameter pack), a non-type parameter `int N`, or a template-template
// parameter `template<class> class TT`.
func (p *Parser) parseTemplateParam(paramScope ScopeHandle) ParseResult {
	if p.atKeyword(token.KwTemplate) {
		p.advance()
		p.advance() // '<' as OpLt — simplified: template-template params assumed single type param
		for !p.atOp(token.OpGt) {
			p.advance()
		}
		p.advance() // '>'
		if p.atKeyword(token.KwClass) || p.atKeyword(token.KwTypename) {
			p.advance()
		}
		nameTok := p.lex.Peek(0)
		name := arena.InvalidString
		if nameTok.Category == token.Identifier {
			p.advance()
			name = p.regs.Strings.GetOrIntern(nameTok.Text)
			p.regs.Symbols.BindTemplateParam(paramScope, name)
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindTemplateTemplateParam, Tok: nameTok, Name: name})
		return ok(n)
	}
	if p.atKeyword(token.KwClass) || p.atKeyword(token.KwTypename) {
		p.advance()
		isPack := false
		if p.atOp(token.OpEllipsis) {
			p.advance()
			isPack = true
		}
		nameTok := p.lex.Peek(0)
		name := arena.InvalidString
		if nameTok.Category == token.Identifier {
			p.advance()
			name = p.regs.Strings.GetOrIntern(nameTok.Text)
			p.regs.Symbols.BindTemplateParam(paramScope, name)
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindTemplateTypeParam, Tok: nameTok, Name: name, IsConstexpr: isPack})
		return ok(n)
	}
	// Non-type template parameter: a type specifier followed by a name.
	valType, err := p.parseTypeSpecifier(paramScope)
	if err != nil {
		return fail(err)
	}
	nameTok := p.lex.Peek(0)
	name := arena.InvalidString
	if nameTok.Category == token.Identifier {
		p.advance()
		name = p.regs.Strings.GetOrIntern(nameTok.Text)
		p.regs.Symbols.BindTemplateParam(paramScope, name)
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindTemplateValueParam, Tok: nameTok, Name: name, Type: valType, HasType: true})
	return ok(n)
}
