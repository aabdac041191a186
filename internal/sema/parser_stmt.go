package sema

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

// parseBlockStmt parses `{ stmt* }`, opening a nested Block scope (§3).
func (p *Parser) parseBlockStmt(scope ScopeHandle) ParseResult {
	openTok := p.lex.Peek(0)
	if _, err := p.expectPunct(token.PunctLBrace, "{"); err != nil {
		return fail(err)
	}
	blockScope := p.regs.Symbols.PushScope(ScopeBlock)
	var stmts []arena.Handle
	for !p.atPunct(token.PunctRBrace) && !p.at(token.EOF, token.KindNone) {
		res := p.parseStatement(blockScope)
		if res.Outcome == Success {
			stmts = append(stmts, res.Node)
		} else if res.Outcome == ParseErr {
			p.reportError(res.Err)
			p.advance()
		} else {
			p.advance()
		}
	}
	p.regs.Symbols.PopScope(blockScope)
	if _, err := p.expectPunct(token.PunctRBrace, "}"); err != nil {
		return fail(err)
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindBlockStmt, Tok: openTok, Children: stmts})
	return ok(n)
}

func (p *Parser) parseStatement(scope ScopeHandle) ParseResult {
	switch {
	case p.atPunct(token.PunctLBrace):
		return p.parseBlockStmt(scope)
	case p.atKeyword(token.KwIf):
		return p.parseIfStmt(scope)
	case p.atKeyword(token.KwFor):
		return p.parseForStmt(scope)
	case p.atKeyword(token.KwWhile):
		return p.parseWhileStmt(scope)
	case p.atKeyword(token.KwDo):
		return p.parseDoWhileStmt(scope)
	case p.atKeyword(token.KwSwitch):
		return p.parseSwitchStmt(scope)
	case p.atKeyword(token.KwCase):
		return p.parseCaseLabel(scope)
	case p.atKeyword(token.KwDefault):
		return p.parseDefaultLabel(scope)
	case p.atKeyword(token.KwBreak):
		tok := p.advance()
		p.skipSemicolon()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindBreakStmt, Tok: tok}))
	case p.atKeyword(token.KwContinue):
		tok := p.advance()
		p.skipSemicolon()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindContinueStmt, Tok: tok}))
	case p.atKeyword(token.KwGoto):
		tok := p.advance()
		labelTok := p.lex.Peek(0)
		var name arena.StringHandle
		if labelTok.Category == token.Identifier {
			p.advance()
			name = p.regs.Strings.GetOrIntern(labelTok.Text)
		}
		p.skipSemicolon()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindGotoStmt, Tok: tok, Name: name}))
	case p.atKeyword(token.KwReturn):
		return p.parseReturnStmt(scope)
	case p.atKeyword(token.KwTry):
		return p.parseTryStmt(scope)
	case p.atKeyword(token.KwThrow):
		return p.parseThrowStmt(scope)
	case p.atKeyword(token.KwMsTry):
		return p.parseSehTryStmt(scope)
	case p.atKeyword(token.KwMsLeave):
		tok := p.advance()
		p.skipSemicolon()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindSehLeaveStmt, Tok: tok}))
	case p.atPunct(token.PunctSemicolon):
		p.advance()
		return empty()
	default:
		if p.lex.Peek(0).Category == token.Identifier && p.lex.Peek(1).Category == token.Punctuator && p.lex.Peek(1).Kind == token.PunctColon {
			labelTok := p.advance()
			p.advance() // ':'
			name := p.regs.Strings.GetOrIntern(labelTok.Text)
			n := p.ast.Alloc(ast.Node{Kind: ast.KindLabelStmt, Tok: labelTok, Name: name})
			return ok(n)
		}
		return p.parseDeclOrExprStmt(scope)
	}
}

func (p *Parser) parseIfStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	isConstexpr := false
	if p.atKeyword(token.KwConstexpr) {
		isConstexpr = true
		p.advance()
	}
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	condScope := p.regs.Symbols.PushScope(ScopeBlock)
	condRes := p.parseExpression(condScope)
	if condRes.Outcome != Success {
		p.regs.Symbols.PopScope(condScope)
		return condRes
	}
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		p.regs.Symbols.PopScope(condScope)
		return fail(err)
	}
	thenRes := p.parseStatement(condScope)
	if thenRes.Outcome != Success {
		p.regs.Symbols.PopScope(condScope)
		return thenRes
	}
	var elseHandle arena.Handle
	if p.atKeyword(token.KwElse) {
		p.advance()
		elseRes := p.parseStatement(condScope)
		if elseRes.Outcome == Success {
			elseHandle = elseRes.Node
		}
	}
	p.regs.Symbols.PopScope(condScope)
	n := p.ast.Alloc(ast.Node{Kind: ast.KindIfStmt, Tok: tok, Lhs: condRes.Node, Rhs: thenRes.Node, Else: elseHandle, IsConstexpr: isConstexpr})
	return ok(n)
}

func (p *Parser) parseForStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	forScope := p.regs.Symbols.PushScope(ScopeBlock)

	// Disambiguate ranged-for (`for (T x : range)`) from classic for by
	// speculatively parsing an init-statement and checking for ':' before
	// committing (§4.C unbounded speculative backtracking).
	commit := p.speculate()
	initRes := p.parseForInitClause(forScope)
	isRangeFor := initRes.Outcome == Success && p.atPunct(token.PunctColon)
	commit(true)

	if isRangeFor {
		p.advance() // ':'
		rangeRes := p.parseExpression(forScope)
		if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
			p.regs.Symbols.PopScope(forScope)
			return fail(err)
		}
		bodyRes := p.parseStatement(forScope)
		p.regs.Symbols.PopScope(forScope)
		if bodyRes.Outcome != Success {
			return bodyRes
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindRangeForStmt, Tok: tok, Lhs: initRes.Node, Rhs: rangeRes.Node, Body: bodyRes.Node})
		return ok(n)
	}

	if p.atPunct(token.PunctSemicolon) {
		p.advance()
	}
	var condRes ParseResult
	if !p.atPunct(token.PunctSemicolon) {
		condRes = p.parseExpression(forScope)
	}
	if p.atPunct(token.PunctSemicolon) {
		p.advance()
	}
	var incRes ParseResult
	if !p.atPunct(token.PunctRParen) {
		incRes = p.parseExpression(forScope)
	}
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		p.regs.Symbols.PopScope(forScope)
		return fail(err)
	}
	bodyRes := p.parseStatement(forScope)
	p.regs.Symbols.PopScope(forScope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindForStmt, Tok: tok, Lhs: initRes.Node, Rhs: condRes.Node, Else: incRes.Node, Body: bodyRes.Node})
	return ok(n)
}

// parseForInitClause parses either a declaration (`int i = 0`) or an
// expression as the for-loop init-clause, without consuming the
// terminating ';' or ':'.
func (p *Parser) parseForInitClause(scope ScopeHandle) ParseResult {
	if p.atPunct(token.PunctSemicolon) {
		return empty()
	}
	save := p.mark()
	typeErr := func() bool {
		_, err := p.parseTypeSpecifier(scope)
		return err == nil
	}
	if typeErr() && p.lex.Peek(0).Category == token.Identifier {
		p.rewind(save)
		return p.parseDeclOrExprStmtNoSemi(scope)
	}
	p.rewind(save)
	exprRes := p.parseExpression(scope)
	if exprRes.Outcome != Success {
		return exprRes
	}
	return ok(p.ast.Alloc(ast.Node{Kind: ast.KindExprStmt, Lhs: exprRes.Node}))
}

func (p *Parser) parseWhileStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	condRes := p.parseExpression(scope)
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		return fail(err)
	}
	bodyRes := p.parseStatement(scope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindWhileStmt, Tok: tok, Lhs: condRes.Node, Body: bodyRes.Node})
	return ok(n)
}

func (p *Parser) parseDoWhileStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	bodyRes := p.parseStatement(scope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	if p.atKeyword(token.KwWhile) {
		p.advance()
	}
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	condRes := p.parseExpression(scope)
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		return fail(err)
	}
	p.skipSemicolon()
	n := p.ast.Alloc(ast.Node{Kind: ast.KindDoWhileStmt, Tok: tok, Lhs: condRes.Node, Body: bodyRes.Node})
	return ok(n)
}

func (p *Parser) parseSwitchStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	condRes := p.parseExpression(scope)
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		return fail(err)
	}
	bodyRes := p.parseBlockStmt(scope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindSwitchStmt, Tok: tok, Lhs: condRes.Node, Body: bodyRes.Node})
	return ok(n)
}

func (p *Parser) parseCaseLabel(scope ScopeHandle) ParseResult {
	tok := p.advance()
	valRes := p.parseExpression(scope)
	if _, err := p.expectPunct(token.PunctColon, ":"); err != nil {
		return fail(err)
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindCaseLabel, Tok: tok, Lhs: valRes.Node})
	return ok(n)
}

func (p *Parser) parseDefaultLabel(scope ScopeHandle) ParseResult {
	tok := p.advance()
	if _, err := p.expectPunct(token.PunctColon, ":"); err != nil {
		return fail(err)
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindDefaultLabel, Tok: tok})
	return ok(n)
}

func (p *Parser) parseReturnStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	var valRes ParseResult
	if !p.atPunct(token.PunctSemicolon) {
		valRes = p.parseExpression(scope)
	}
	p.skipSemicolon()
	n := p.ast.Alloc(ast.Node{Kind: ast.KindReturnStmt, Tok: tok, Lhs: valRes.Node})
	return ok(n)
}

func (p *Parser) parseTryStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	bodyRes := p.parseBlockStmt(scope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	var catches []arena.Handle
	for p.atKeyword(token.KwCatch) {
		catchTok := p.advance()
		if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
			return fail(err)
		}
		var exType ast.TypeSpecifier
		var exName arena.StringHandle
		isEllipsis := false
		if p.atOp(token.OpEllipsis) {
			p.advance()
			isEllipsis = true
		} else {
			var err error
			exType, err = p.parseTypeSpecifier(scope)
			if err != nil {
				return fail(err)
			}
			nameTok := p.lex.Peek(0)
			if nameTok.Category == token.Identifier {
				p.advance()
				exName = p.regs.Strings.GetOrIntern(nameTok.Text)
			}
		}
		if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
			return fail(err)
		}
		catchScope := p.regs.Symbols.PushScope(ScopeBlock)
		if exName != arena.InvalidString {
			// Catch parameter is bound inside the handler body's scope.
			p.regs.Symbols.Insert(catchScope, &Symbol{Name: exName, Type: exType, Signature: mangledSignature(exType)})
		}
		handlerRes := p.parseBlockStmt(catchScope)
		p.regs.Symbols.PopScope(catchScope)
		if handlerRes.Outcome != Success {
			return handlerRes
		}
		catchNode := p.ast.Alloc(ast.Node{
			Kind: ast.KindCatchClause, Tok: catchTok, Name: exName,
			Type: exType, HasType: !isEllipsis, Body: handlerRes.Node,
			IsConst: isEllipsis, // reused: IsConst flags a catch(...)
		})
		catches = append(catches, catchNode)
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindTryStmt, Tok: tok, Body: bodyRes.Node, Children: catches})
	return ok(n)
}

func (p *Parser) parseThrowStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	var valRes ParseResult
	if !p.atPunct(token.PunctSemicolon) {
		valRes = p.parseExpression(scope)
	}
	p.skipSemicolon()
	n := p.ast.Alloc(ast.Node{Kind: ast.KindThrowStmt, Tok: tok, Lhs: valRes.Node})
	return ok(n)
}

// parseSehTryStmt parses MSVC `__try { } __except(filter) { }` or
// `__try { } __finally { }` (§4.C grammar coverage, mutually exclusive per
// the MSVC grammar — we accept whichever follows).
func (p *Parser) parseSehTryStmt(scope ScopeHandle) ParseResult {
	tok := p.advance()
	bodyRes := p.parseBlockStmt(scope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	var handler arena.Handle
	if p.atKeyword(token.KwMsExcept) {
		exceptTok := p.advance()
		if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
			return fail(err)
		}
		filterRes := p.parseExpression(scope)
		if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
			return fail(err)
		}
		handlerBody := p.parseBlockStmt(scope)
		if handlerBody.Outcome != Success {
			return handlerBody
		}
		handler = p.ast.Alloc(ast.Node{Kind: ast.KindSehExceptClause, Tok: exceptTok, Lhs: filterRes.Node, Body: handlerBody.Node})
	} else if p.atKeyword(token.KwMsFinally) {
		finallyTok := p.advance()
		handlerBody := p.parseBlockStmt(scope)
		if handlerBody.Outcome != Success {
			return handlerBody
		}
		handler = p.ast.Alloc(ast.Node{Kind: ast.KindSehFinallyClause, Tok: finallyTok, Body: handlerBody.Node})
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindSehTryStmt, Tok: tok, Body: bodyRes.Node, Rhs: handler})
	return ok(n)
}

func (p *Parser) parseDeclOrExprStmt(scope ScopeHandle) ParseResult {
	return p.parseDeclOrExprStmtImpl(scope, true)
}

func (p *Parser) parseDeclOrExprStmtNoSemi(scope ScopeHandle) ParseResult {
	return p.parseDeclOrExprStmtImpl(scope, false)
}

// parseDeclOrExprStmtImpl disambiguates a local declaration (`int x = 1;`)
// from an expression statement by speculatively trying the declaration
// production first (§4.C unbounded speculative backtracking).
func (p *Parser) parseDeclOrExprStmtImpl(scope ScopeHandle, consumeSemi bool) ParseResult {
	save := p.mark()
	commit := p.speculate()
	if res := p.tryParseLocalVarDecl(scope, consumeSemi); res.Outcome == Success {
		commit(true)
		return res
	}
	commit(false)
	p.rewind(save)
	exprRes := p.parseExpression(scope)
	if exprRes.Outcome != Success {
		return exprRes
	}
	if consumeSemi {
		p.skipSemicolon()
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindExprStmt, Lhs: exprRes.Node})
	return ok(n)
}

func (p *Parser) tryParseLocalVarDecl(scope ScopeHandle, consumeSemi bool) ParseResult {
	typeSpec, err := p.parseTypeSpecifier(scope)
	if err != nil {
		return fail(err)
	}
	nameTok := p.lex.Peek(0)
	if nameTok.Category != token.Identifier {
		return fail(p.errorf(nameTok, "not a declarator"))
	}
	p.advance()
	name := p.regs.Strings.GetOrIntern(nameTok.Text)
	var initRes ParseResult
	hasInit := false
	if p.atOp(token.OpAssign) {
		p.advance()
		initRes = p.parseExpression(scope)
		hasInit = initRes.Outcome == Success
	}
	if consumeSemi {
		if !p.atPunct(token.PunctSemicolon) {
			return fail(p.errorf(p.lex.Peek(0), "expected ';'"))
		}
		p.advance()
	}
	n := ast.Node{Kind: ast.KindVarDecl, Tok: nameTok, Name: name, Type: typeSpec, HasType: true}
	if hasInit {
		n.Rhs = initRes.Node
	}
	handle := p.ast.Alloc(n)
	p.regs.Symbols.Insert(scope, &Symbol{Name: name, Node: handle, Type: typeSpec, Signature: mangledSignature(typeSpec)})
	declStmt := p.ast.Alloc(ast.Node{Kind: ast.KindDeclStmt, Tok: nameTok, Lhs: handle})
	return ok(declStmt)
}
