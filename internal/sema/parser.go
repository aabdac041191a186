package sema

import (
	"github.com/pkg/errors"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

// ParseOutcome tags a ParseResult, matching §4.C's "each production returns
// a ParseResult sum type: Success(AST) | Empty | Error{message, token}".
type ParseOutcome int

const (
	Success ParseOutcome = iota
	Empty
	ParseErr
)

// ParseResult is the sum type productions return. Only one of Node/Err is
// meaningful, selected by Outcome.
type ParseResult struct {
	Outcome ParseOutcome
	Node    arena.Handle
	Err     error
}

func ok(h arena.Handle) ParseResult      { return ParseResult{Outcome: Success, Node: h} }
func empty() ParseResult                 { return ParseResult{Outcome: Empty} }
func fail(err error) ParseResult         { return ParseResult{Outcome: ParseErr, Err: err} }

// DelayedBody is a member-function body recorded at {token-position,
// context} and re-parsed only once the enclosing class is complete (§4.C
// "Delayed parsing").
type DelayedBody struct {
	Checkpoint  token.Position
	FuncNode    arena.Handle
	ClassScope  ScopeHandle
	IsTemplate  bool
}

// Parser is the recursive-descent parser of §4.C. It owns the lexer, the
// AST arena, and the semantic Registries it populates as it goes. It does
// not call the template instantiator, and the instantiator does not call
// back into it; recorded DelayedBody entries are re-parsed by
// compiler.Compile through ParseDelayedBody.
type Parser struct {
	lex  *token.Lexer
	ast  *ast.Arena
	regs *Registries

	firstError error
	speculating int

	delayed []DelayedBody
	fileIndex int
}

// NewParser constructs a parser over src, sharing astArena/regs so multiple
// translation units see the same interned strings and registries.
func NewParser(src []byte, fileIndex int, astArena *ast.Arena, regs *Registries) *Parser {
	return &Parser{
		lex:  token.NewLexer(src, fileIndex),
		ast:  astArena,
		regs: regs,
		fileIndex: fileIndex,
	}
}

func (p *Parser) AST() *ast.Arena { return p.ast }

// Delayed returns member-function bodies recorded during ParseTranslationUnit
// that still need re-parsing (§4.C).
func (p *Parser) Delayed() []DelayedBody { return p.delayed }

// --- scoped position (§4.C, §9) ---

type checkpoint struct {
	pos   token.Position
	mark  arena.Watermark
}

func (p *Parser) mark() checkpoint {
	return checkpoint{pos: p.lex.SavePosition(), mark: p.ast.Mark()}
}

func (p *Parser) rewind(c checkpoint) {
	p.lex.RestorePosition(c.pos)
	p.ast.Rewind(c.mark)
}

func (p *Parser) speculate() func(commit bool) {
	c := p.mark()
	p.speculating++
	return func(commit bool) {
		p.speculating--
		if !commit {
			p.rewind(c)
		}
	}
}

// reportError records the first non-speculative error and converts it to a
// no-op when called while speculating (§4.C, §7: "Speculative contexts
// silently convert errors to backtracks; committed contexts surface
// them").
func (p *Parser) reportError(err error) {
	if p.speculating > 0 {
		return
	}
	if p.firstError == nil {
		p.firstError = err
	}
}

func (p *Parser) errorf(tok token.Token, format string, args ...any) error {
	return errors.Errorf(format+" (line %d, col %d)", append(args, tok.Line, tok.Column)...)
}

func (p *Parser) FirstError() error { return p.firstError }

// --- token helpers ---

func (p *Parser) at(cat token.Category, kind token.Kind) bool {
	t := p.lex.Peek(0)
	return t.Category == cat && (kind == token.KindNone || t.Kind == kind)
}

func (p *Parser) atKeyword(k token.Kind) bool   { return p.at(token.Keyword, k) }
func (p *Parser) atOp(k token.Kind) bool        { return p.at(token.Operator, k) }
func (p *Parser) atPunct(k token.Kind) bool     { return p.at(token.Punctuator, k) }

func (p *Parser) advance() token.Token { return p.lex.NextToken() }

func (p *Parser) expectPunct(k token.Kind, text string) (token.Token, error) {
	if !p.atPunct(k) {
		t := p.lex.Peek(0)
		return t, p.errorf(t, "expected %q, got %q", text, t.Text)
	}
	return p.advance(), nil
}

// --- translation unit ---

// ParseTranslationUnit parses a full source file into a KindTranslationUnit
// node and returns it, along with the first committed error (if any).
func (p *Parser) ParseTranslationUnit() (arena.Handle, error) {
	var decls []arena.Handle
	for !p.at(token.EOF, token.KindNone) {
		res := p.parseDeclaration(Global, p.regs.Symbols.Current())
		switch res.Outcome {
		case Success:
			decls = append(decls, res.Node)
		case Empty:
			// Skip a token to make progress on constructs not yet modeled
			// rather than looping forever; this keeps per-function
			// recovery (§4.F, §7) meaningful even for a partial grammar.
			p.advance()
		case ParseErr:
			p.reportError(res.Err)
			p.advance()
		}
	}
	tu := p.ast.Alloc(ast.Node{Kind: ast.KindTranslationUnit, Children: decls})
	return tu, p.firstError
}

// parseDeclaration dispatches on the leading token to the right declaration
// production (§4.C grammar coverage).
func (p *Parser) parseDeclaration(ns NamespaceHandle, scope ScopeHandle) ParseResult {
	switch {
	case p.atKeyword(token.KwNamespace):
		return p.parseNamespaceDecl(ns, scope)
	case p.atKeyword(token.KwTemplate):
		return p.parseTemplateDecl(ns, scope)
	case p.atKeyword(token.KwStruct) || p.atKeyword(token.KwClass) || p.atKeyword(token.KwUnion):
		return p.parseClassDecl(ns, scope)
	case p.atKeyword(token.KwStaticAssert):
		return p.parseStaticAssert(scope)
	case p.atKeyword(token.KwUsing):
		return p.parseUsingDecl(scope)
	case p.atKeyword(token.KwTypedef):
		return p.parseTypedefDecl(scope)
	default:
		return p.parseVarOrFuncDecl(ns, scope)
	}
}

func (p *Parser) parseNamespaceDecl(parentNS NamespaceHandle, scope ScopeHandle) ParseResult {
	p.advance() // 'namespace'
	var names []arena.StringHandle
	for {
		t := p.lex.Peek(0)
		if t.Category != token.Identifier {
			return fail(p.errorf(t, "expected namespace name"))
		}
		p.advance()
		names = append(names, p.regs.Strings.GetOrIntern(t.Text))
		if p.atOp(token.OpScope) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(token.PunctLBrace, "{"); err != nil {
		return fail(err)
	}
	ns := parentNS
	for _, n := range names {
		var err error
		ns, err = p.regs.Namespaces.Declare(ns, n)
		if err != nil {
			return fail(err)
		}
	}
	nsScope := p.regs.Symbols.PushScope(ScopeNamespace)
	var decls []arena.Handle
	for !p.atPunct(token.PunctRBrace) && !p.at(token.EOF, token.KindNone) {
		res := p.parseDeclaration(ns, nsScope)
		if res.Outcome == Success {
			decls = append(decls, res.Node)
		} else {
			p.advance()
		}
	}
	p.regs.Symbols.PopScope(nsScope)
	p.expectPunct(token.PunctRBrace, "}")
	nameTok := token.Token{}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindNamespaceDecl, Tok: nameTok, Children: decls})
	return ok(n)
}

func (p *Parser) parseStaticAssert(scope ScopeHandle) ParseResult {
	tok := p.advance() // static_assert
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	condRes := p.parseExpression(scope)
	if condRes.Outcome != Success {
		return condRes
	}
	if p.atPunct(token.PunctComma) {
		p.advance()
		if !p.atPunct(token.PunctRParen) {
			p.parseExpression(scope)
		}
	}
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		return fail(err)
	}
	p.skipSemicolon()
	n := p.ast.Alloc(ast.Node{Kind: ast.KindStaticAssertDecl, Tok: tok, Lhs: condRes.Node})
	return ok(n)
}

func (p *Parser) parseUsingDecl(scope ScopeHandle) ParseResult {
	tok := p.advance()
	for !p.atPunct(token.PunctSemicolon) && !p.at(token.EOF, token.KindNone) {
		p.advance()
	}
	p.skipSemicolon()
	n := p.ast.Alloc(ast.Node{Kind: ast.KindUsingDecl, Tok: tok})
	return ok(n)
}

func (p *Parser) parseTypedefDecl(scope ScopeHandle) ParseResult {
	tok := p.advance()
	typeSpec, err := p.parseTypeSpecifier(scope)
	if err != nil {
		return fail(err)
	}
	nameTok := p.lex.Peek(0)
	if nameTok.Category != token.Identifier {
		return fail(p.errorf(nameTok, "expected typedef name"))
	}
	p.advance()
	p.skipSemicolon()
	n := p.ast.Alloc(ast.Node{
		Kind: ast.KindTypedefDecl, Tok: nameTok,
		Name: p.regs.Strings.GetOrIntern(nameTok.Text),
		Type: typeSpec, HasType: true,
	})
	_ = tok
	return ok(n)
}

func (p *Parser) skipSemicolon() {
	if p.atPunct(token.PunctSemicolon) {
		p.advance()
	}
}
