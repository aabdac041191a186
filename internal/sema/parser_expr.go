package sema

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

// binOp gives a binary operator its C++ precedence level (higher binds
// tighter) and the AST Kind it produces (§4.C expression grammar).
type binOp struct {
	prec int
	kind ast.Kind
}

var binaryOps = map[token.Kind]binOp{
	token.OpOrOr:    {1, ast.KindBinaryExpr},
	token.OpAndAnd:  {2, ast.KindBinaryExpr},
	token.OpPipe:    {3, ast.KindBinaryExpr},
	token.OpCaret:   {4, ast.KindBinaryExpr},
	token.OpAmp:     {5, ast.KindBinaryExpr},
	token.OpEq:      {6, ast.KindBinaryExpr},
	token.OpNe:      {6, ast.KindBinaryExpr},
	token.OpLt:      {7, ast.KindBinaryExpr},
	token.OpGt:      {7, ast.KindBinaryExpr},
	token.OpLe:      {7, ast.KindBinaryExpr},
	token.OpGe:      {7, ast.KindBinaryExpr},
	token.OpShl:     {8, ast.KindBinaryExpr},
	token.OpShr:     {8, ast.KindBinaryExpr},
	token.OpPlus:    {9, ast.KindBinaryExpr},
	token.OpMinus:   {9, ast.KindBinaryExpr},
	token.OpStar:    {10, ast.KindBinaryExpr},
	token.OpSlash:   {10, ast.KindBinaryExpr},
	token.OpPercent: {10, ast.KindBinaryExpr},
}

var assignOps = map[token.Kind]bool{
	token.OpAssign: true, token.OpPlusAssign: true, token.OpMinusAssign: true,
	token.OpStarAssign: true, token.OpSlashAssign: true,
}

// parseExpression parses a full comma-free expression: assignment at the
// top, then the ternary conditional, then precedence-climbing binary
// operators down to unary/postfix/primary (§4.C).
func (p *Parser) parseExpression(scope ScopeHandle) ParseResult {
	return p.parseAssignExpr(scope)
}

func (p *Parser) parseAssignExpr(scope ScopeHandle) ParseResult {
	lhs := p.parseConditionalExpr(scope)
	if lhs.Outcome != Success {
		return lhs
	}
	t := p.lex.Peek(0)
	if t.Category == token.Operator && assignOps[t.Kind] {
		p.advance()
		rhs := p.parseAssignExpr(scope)
		if rhs.Outcome != Success {
			return rhs
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindAssignExpr, Tok: t, Lhs: lhs.Node, Rhs: rhs.Node})
		return ok(n)
	}
	return lhs
}

func (p *Parser) parseConditionalExpr(scope ScopeHandle) ParseResult {
	cond := p.parseBinaryExpr(scope, 1)
	if cond.Outcome != Success {
		return cond
	}
	if p.atOp(token.OpQuestion) {
		qTok := p.advance()
		thenRes := p.parseExpression(scope)
		if thenRes.Outcome != Success {
			return thenRes
		}
		if _, err := p.expectPunct(token.PunctColon, ":"); err != nil {
			return fail(err)
		}
		elseRes := p.parseAssignExpr(scope)
		if elseRes.Outcome != Success {
			return elseRes
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindConditionalExpr, Tok: qTok, Lhs: cond.Node, Rhs: thenRes.Node, Else: elseRes.Node})
		return ok(n)
	}
	return cond
}

// parseBinaryExpr implements precedence climbing: it parses a unary operand
// then repeatedly folds in operators whose precedence is >= minPrec,
// recursing with minPrec+1 for the right operand to enforce left
// associativity (§4.C, every C++ binary operator here is left-associative).
func (p *Parser) parseBinaryExpr(scope ScopeHandle, minPrec int) ParseResult {
	lhs := p.parseUnaryExpr(scope)
	if lhs.Outcome != Success {
		return lhs
	}
	for {
		t := p.lex.Peek(0)
		op, isBin := binaryOps[t.Kind]
		if t.Category != token.Operator || !isBin || op.prec < minPrec {
			return lhs
		}
		p.advance()
		rhs := p.parseBinaryExpr(scope, op.prec+1)
		if rhs.Outcome != Success {
			return rhs
		}
		n := p.ast.Alloc(ast.Node{Kind: op.kind, Tok: t, Lhs: lhs.Node, Rhs: rhs.Node})
		lhs = ok(n)
	}
}

func (p *Parser) parseUnaryExpr(scope ScopeHandle) ParseResult {
	t := p.lex.Peek(0)
	switch {
	case t.Category == token.Operator && (t.Kind == token.OpPlus || t.Kind == token.OpMinus ||
		t.Kind == token.OpNot || t.Kind == token.OpTilde || t.Kind == token.OpStar ||
		t.Kind == token.OpAmp || t.Kind == token.OpIncrement || t.Kind == token.OpDecrement):
		p.advance()
		operand := p.parseUnaryExpr(scope)
		if operand.Outcome != Success {
			return operand
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindUnaryExpr, Tok: t, Lhs: operand.Node})
		return ok(n)
	case t.Category == token.Keyword && t.Kind == token.KwSizeof:
		p.advance()
		paren := p.atPunct(token.PunctLParen)
		if paren {
			p.advance()
		}
		operand := p.parseUnaryExpr(scope)
		if paren {
			p.expectPunct(token.PunctRParen, ")")
		}
		var operandNode arena.Handle
		if operand.Outcome == Success {
			operandNode = operand.Node
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindSizeofExpr, Tok: t, Lhs: operandNode})
		return ok(n)
	case t.Category == token.Keyword && t.Kind == token.KwNew:
		return p.parseNewExpr(scope)
	case t.Category == token.Keyword && t.Kind == token.KwDelete:
		p.advance()
		operand := p.parseUnaryExpr(scope)
		if operand.Outcome != Success {
			return operand
		}
		n := p.ast.Alloc(ast.Node{Kind: ast.KindDeleteExpr, Tok: t, Lhs: operand.Node})
		return ok(n)
	case t.Category == token.Keyword && t.Kind == token.KwTypeid:
		return p.parseParenthesizedIntrinsic(ast.KindTypeidExpr, t, scope)
	case t.Category == token.Keyword && t.Kind == token.KwDynamicCast:
		return p.parseDynamicCastExpr(scope)
	default:
		return p.parsePostfixExpr(scope)
	}
}

func (p *Parser) parseParenthesizedIntrinsic(kind ast.Kind, t token.Token, scope ScopeHandle) ParseResult {
	p.advance()
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	inner := p.parseExpression(scope)
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		return fail(err)
	}
	var innerNode arena.Handle
	if inner.Outcome == Success {
		innerNode = inner.Node
	}
	n := p.ast.Alloc(ast.Node{Kind: kind, Tok: t, Lhs: innerNode})
	return ok(n)
}

func (p *Parser) parseDynamicCastExpr(scope ScopeHandle) ParseResult {
	t := p.advance()
	if !p.atOp(token.OpLt) {
		return fail(p.errorf(p.lex.Peek(0), "expected '<' after dynamic_cast"))
	}
	p.advance()
	targetType, err := p.parseTypeSpecifier(scope)
	if err != nil {
		return fail(err)
	}
	if !p.atOp(token.OpGt) {
		return fail(p.errorf(p.lex.Peek(0), "expected '>' closing dynamic_cast<...>"))
	}
	p.advance()
	if _, err := p.expectPunct(token.PunctLParen, "("); err != nil {
		return fail(err)
	}
	operand := p.parseExpression(scope)
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		return fail(err)
	}
	var operandNode arena.Handle
	if operand.Outcome == Success {
		operandNode = operand.Node
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindDynamicCastExpr, Tok: t, Lhs: operandNode, Type: targetType, HasType: true})
	return ok(n)
}

// parseNewExpr parses `new T` / `new T(args)` / `new T[n]` (§4.C).
func (p *Parser) parseNewExpr(scope ScopeHandle) ParseResult {
	t := p.advance()
	targetType, err := p.parseTypeSpecifier(scope)
	if err != nil {
		return fail(err)
	}
	n := ast.Node{Kind: ast.KindNewExpr, Tok: t, Type: targetType, HasType: true}
	if p.atPunct(token.PunctLBracket) {
		p.advance()
		sizeRes := p.parseExpression(scope)
		if sizeRes.Outcome == Success {
			n.Lhs = sizeRes.Node
		}
		p.expectPunct(token.PunctRBracket, "]")
	} else if p.atPunct(token.PunctLParen) {
		p.advance()
		var args []arena.Handle
		for !p.atPunct(token.PunctRParen) {
			argRes := p.parseAssignExpr(scope)
			if argRes.Outcome != Success {
				break
			}
			args = append(args, argRes.Node)
			if p.atPunct(token.PunctComma) {
				p.advance()
				continue
			}
			break
		}
		p.expectPunct(token.PunctRParen, ")")
		n.Children = args
	}
	return ok(p.ast.Alloc(n))
}

// parsePostfixExpr parses a primary expression followed by any chain of
// postfix operators: call, subscript, member access (. -> .* ->*),
// post-increment/decrement (§4.C).
func (p *Parser) parsePostfixExpr(scope ScopeHandle) ParseResult {
	primary := p.parsePrimaryExpr(scope)
	if primary.Outcome != Success {
		return primary
	}
	expr := primary.Node
	for {
		switch {
		case p.atPunct(token.PunctLParen):
			callTok := p.advance()
			var args []arena.Handle
			for !p.atPunct(token.PunctRParen) {
				argRes := p.parseAssignExpr(scope)
				if argRes.Outcome != Success {
					break
				}
				args = append(args, argRes.Node)
				if p.atPunct(token.PunctComma) {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
				return fail(err)
			}
			expr = p.ast.Alloc(ast.Node{Kind: ast.KindCallExpr, Tok: callTok, Lhs: expr, Children: args})
		case p.atPunct(token.PunctLBracket):
			p.advance()
			idxRes := p.parseExpression(scope)
			if _, err := p.expectPunct(token.PunctRBracket, "]"); err != nil {
				return fail(err)
			}
			var idxNode arena.Handle
			if idxRes.Outcome == Success {
				idxNode = idxRes.Node
			}
			expr = p.ast.Alloc(ast.Node{Kind: ast.KindSubscriptExpr, Lhs: expr, Rhs: idxNode})
		case p.atOp(token.OpDot) || p.atOp(token.OpArrow) || p.atOp(token.OpDotStar) || p.atOp(token.OpArrowStar):
			opTok := p.advance()
			nameTok := p.lex.Peek(0)
			name := arena.InvalidString
			if nameTok.Category == token.Identifier {
				p.advance()
				name = p.regs.Strings.GetOrIntern(nameTok.Text)
			}
			expr = p.ast.Alloc(ast.Node{Kind: ast.KindMemberExpr, Tok: opTok, Lhs: expr, Name: name})
		case p.atOp(token.OpIncrement) || p.atOp(token.OpDecrement):
			opTok := p.advance()
			expr = p.ast.Alloc(ast.Node{Kind: ast.KindUnaryExpr, Tok: opTok, Lhs: expr, IsConst: true}) // IsConst reused: marks postfix form
		default:
			return ok(expr)
		}
	}
}

func (p *Parser) parsePrimaryExpr(scope ScopeHandle) ParseResult {
	t := p.lex.Peek(0)
	switch {
	case t.Category == token.Literal:
		p.advance()
		n := p.ast.Alloc(ast.Node{Kind: ast.KindIntLiteral, Tok: t, IntValue: int64(parseIntLiteral(t.Text)), StringValue: t.Text})
		return ok(n)
	case t.Category == token.StringLiteral:
		p.advance()
		n := p.ast.Alloc(ast.Node{Kind: ast.KindStringLiteral, Tok: t, StringValue: t.Text})
		return ok(n)
	case t.Category == token.CharLiteral:
		p.advance()
		n := p.ast.Alloc(ast.Node{Kind: ast.KindCharLiteral, Tok: t, StringValue: t.Text})
		return ok(n)
	case t.Category == token.Keyword && t.Kind == token.KwTrue:
		p.advance()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindBoolLiteral, Tok: t, IntValue: 1}))
	case t.Category == token.Keyword && t.Kind == token.KwFalse:
		p.advance()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindBoolLiteral, Tok: t, IntValue: 0}))
	case t.Category == token.Keyword && t.Kind == token.KwNullptr:
		p.advance()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindNullptrLiteral, Tok: t}))
	case t.Category == token.Keyword && t.Kind == token.KwThis:
		p.advance()
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindThisExpr, Tok: t}))
	case t.Category == token.Keyword && t.Kind == token.KwRequires:
		return p.parseRequiresExpr(scope)
	case t.Category == token.Punctuator && t.Kind == token.PunctLParen:
		p.advance()
		inner := p.parseExpression(scope)
		if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
			return fail(err)
		}
		return inner
	case t.Category == token.Punctuator && t.Kind == token.PunctLBrace:
		return p.parseInitListExpr(scope)
	case t.Category == token.Punctuator && t.Kind == token.PunctLBracket:
		return p.parseLambdaExpr(scope)
	case t.Category == token.Identifier:
		p.advance()
		name := p.regs.Strings.GetOrIntern(t.Text)
		if p.atOp(token.OpScope) {
			nameTok := t
			for p.atOp(token.OpScope) {
				p.advance()
				nextTok := p.lex.Peek(0)
				if nextTok.Category != token.Identifier {
					break
				}
				p.advance()
				nameTok = nextTok
			}
			qname := p.regs.Strings.GetOrIntern(nameTok.Text)
			return ok(p.ast.Alloc(ast.Node{Kind: ast.KindQualifiedIdExpr, Tok: nameTok, Name: qname}))
		}
		return ok(p.ast.Alloc(ast.Node{Kind: ast.KindIdentExpr, Tok: t, Name: name}))
	default:
		return fail(p.errorf(t, "expected expression, got %q", t.Text))
	}
}

// parseInitListExpr parses a brace-init-list `{ e1, e2, ... }` (§4.C, used
// both as an aggregate initializer and as a compound-literal-style
// expression).
func (p *Parser) parseInitListExpr(scope ScopeHandle) ParseResult {
	t := p.advance() // '{'
	var elems []arena.Handle
	for !p.atPunct(token.PunctRBrace) {
		elemRes := p.parseAssignExpr(scope)
		if elemRes.Outcome != Success {
			break
		}
		elems = append(elems, elemRes.Node)
		if p.atPunct(token.PunctComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(token.PunctRBrace, "}"); err != nil {
		return fail(err)
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindInitListExpr, Tok: t, Children: elems})
	return ok(n)
}

// parseLambdaExpr parses a minimal lambda `[captures](params) { body }`
// (§4.C). The capture list is consumed but not structurally modeled beyond
// the node's token span, and no later stage analyses captures.
func (p *Parser) parseLambdaExpr(scope ScopeHandle) ParseResult {
	t := p.advance() // '[' or '[['-as-attr-placeholder
	depth := 1
	for depth > 0 && !p.at(token.EOF, token.KindNone) {
		if p.atPunct(token.PunctLBracket) {
			depth++
		} else if p.atPunct(token.PunctRBracket) {
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		}
		p.advance()
	}
	lambdaScope := p.regs.Symbols.PushScope(ScopeFunction)
	var params []arena.Handle
	if p.atPunct(token.PunctLParen) {
		p.advance()
		for !p.atPunct(token.PunctRParen) {
			pType, err := p.parseTypeSpecifier(lambdaScope)
			if err != nil {
				break
			}
			pNameTok := p.lex.Peek(0)
			pName := arena.InvalidString
			if pNameTok.Category == token.Identifier {
				p.advance()
				pName = p.regs.Strings.GetOrIntern(pNameTok.Text)
			}
			pNode := p.ast.Alloc(ast.Node{Kind: ast.KindParamDecl, Tok: pNameTok, Name: pName, Type: pType, HasType: true})
			params = append(params, pNode)
			if p.atPunct(token.PunctComma) {
				p.advance()
				continue
			}
			break
		}
		p.expectPunct(token.PunctRParen, ")")
	}
	for p.atKeyword(token.KwMutable) || p.atKeyword(token.KwNoexcept) {
		p.advance()
	}
	bodyRes := p.parseBlockStmt(lambdaScope)
	p.regs.Symbols.PopScope(lambdaScope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	n := p.ast.Alloc(ast.Node{Kind: ast.KindLambdaExpr, Tok: t, Children: params, Body: bodyRes.Node})
	return ok(n)
}

// parseRequiresExpr parses a bare requires-expression `requires(params) { reqs }`
// used inside a concept definition or ad hoc constraint (§4.D). Individual
// requirement bodies are stored as an opaque block and are not checked;
// internal/ir lowers a requires-expression to the constant 1.
func (p *Parser) parseRequiresExpr(scope ScopeHandle) ParseResult {
	t := p.advance()
	reqScope := p.regs.Symbols.PushScope(ScopeTemplateParams)
	if p.atPunct(token.PunctLParen) {
		p.advance()
		for !p.atPunct(token.PunctRParen) && !p.at(token.EOF, token.KindNone) {
			p.advance()
		}
		p.expectPunct(token.PunctRParen, ")")
	}
	var body arena.Handle
	if p.atPunct(token.PunctLBrace) {
		res := p.parseBlockStmt(reqScope)
		if res.Outcome == Success {
			body = res.Node
		}
	}
	p.regs.Symbols.PopScope(reqScope)
	n := p.ast.Alloc(ast.Node{Kind: ast.KindRequiresExpr, Tok: t, Body: body})
	return ok(n)
}
