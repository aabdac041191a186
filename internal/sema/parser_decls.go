package sema

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

// parseVarOrFuncDecl handles both `T name;` / `T name = expr;` and
// `T name(params) { body }` — they share a type-specifier + declarator
// prefix and only diverge at the first '(' vs ';'/'='.
func (p *Parser) parseVarOrFuncDecl(ns NamespaceHandle, scope ScopeHandle) ParseResult {
	typeSpec, err := p.parseTypeSpecifier(scope)
	if err != nil {
		return fail(err)
	}
	nameTok := p.lex.Peek(0)
	if nameTok.Category != token.Identifier {
		return fail(p.errorf(nameTok, "expected declarator name, got %q", nameTok.Text))
	}
	p.advance()
	name := p.regs.Strings.GetOrIntern(nameTok.Text)

	if p.atPunct(token.PunctLParen) {
		return p.parseFuncDecl(ns, scope, typeSpec, nameTok, name, false)
	}
	return p.parseVarDeclTail(scope, typeSpec, nameTok, name)
}

func (p *Parser) parseVarDeclTail(scope ScopeHandle, typeSpec ast.TypeSpecifier, nameTok token.Token, name arena.StringHandle) ParseResult {
	if p.atPunct(token.PunctLBracket) {
		p.advance()
		if !p.atPunct(token.PunctRBracket) {
			sizeRes := p.parseExpression(scope)
			typeSpec.ArraySize = sizeRes.Node
		}
		if _, err := p.expectPunct(token.PunctRBracket, "]"); err != nil {
			return fail(err)
		}
	}
	var initExpr ParseResult
	hasInit := false
	if p.atOp(token.OpAssign) {
		p.advance()
		initExpr = p.parseExpression(scope)
		hasInit = initExpr.Outcome == Success
	}
	p.skipSemicolon()
	n := ast.Node{Kind: ast.KindVarDecl, Tok: nameTok, Name: name, Type: typeSpec, HasType: true}
	if hasInit {
		n.Rhs = initExpr.Node
	}
	handle := p.ast.Alloc(n)
	sig := mangledSignature(typeSpec)
	if err := p.regs.Symbols.Insert(scope, &Symbol{Name: name, Node: handle, Type: typeSpec, Signature: sig}); err != nil {
		return fail(err)
	}
	return ok(handle)
}

// mangledSignature produces a short textual key used only for the
// forward-declaration-vs-redefinition equality check in SymbolTable.Insert
// (§3: "unless the existing entry is a forward declaration with identical
// signature") — not a linker symbol.
func mangledSignature(t ast.TypeSpecifier) string {
	return mangleItaniumType(t)
}

// parseFuncDecl parses `(params) { body }` or a forward declaration
// `(params);`; a trailing return type (`-> T`) is not accepted. When isTemplateMember is set, the body
// is always recorded as a DelayedBody so it can be substituted fresh per
// instantiation (§4.C "For template classes, bodies are kept as templates
// and re-parsed per instantiation").
func (p *Parser) parseFuncDecl(ns NamespaceHandle, scope ScopeHandle, retType ast.TypeSpecifier, nameTok token.Token, name arena.StringHandle, isTemplateMember bool) ParseResult {
	p.advance() // '('
	funcScope := p.regs.Symbols.PushScope(ScopeFunction)
	var params []arena.Handle
	var paramTypes []ast.TypeSpecifier
	for !p.atPunct(token.PunctRParen) {
		if p.atKeyword(token.KwVoid) && p.lex.Peek(1).Kind == token.PunctRParen {
			p.advance()
			break
		}
		pType, err := p.parseTypeSpecifier(funcScope)
		if err != nil {
			p.regs.Symbols.PopScope(funcScope)
			return fail(err)
		}
		pNameTok := p.lex.Peek(0)
		pName := arena.InvalidString
		if pNameTok.Category == token.Identifier {
			p.advance()
			pName = p.regs.Strings.GetOrIntern(pNameTok.Text)
		}
		pNode := p.ast.Alloc(ast.Node{Kind: ast.KindParamDecl, Tok: pNameTok, Name: pName, Type: pType, HasType: true})
		params = append(params, pNode)
		paramTypes = append(paramTypes, pType)
		if pName != arena.InvalidString {
			p.regs.Symbols.Insert(funcScope, &Symbol{Name: pName, Node: pNode, Type: pType, Signature: mangledSignature(pType)})
		}
		if p.atPunct(token.PunctComma) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(token.PunctRParen, ")"); err != nil {
		p.regs.Symbols.PopScope(funcScope)
		return fail(err)
	}
	for p.atKeyword(token.KwConst) || p.atKeyword(token.KwNoexcept) || p.atKeyword(token.KwOverride) || p.atKeyword(token.KwFinal) {
		p.advance()
	}

	fn := ast.Node{Kind: ast.KindFuncDecl, Tok: nameTok, Name: name, Type: retType, HasType: true, Children: params}

	if p.atPunct(token.PunctSemicolon) {
		p.advance()
		p.regs.Symbols.PopScope(funcScope)
		handle := p.ast.Alloc(fn)
		sig := funcSignatureKey(retType, paramTypes)
		p.regs.Symbols.Insert(scope, &Symbol{Name: name, Node: handle, Type: retType, IsForwardDecl: true, Signature: sig})
		return ok(handle)
	}

	if !p.atPunct(token.PunctLBrace) {
		p.regs.Symbols.PopScope(funcScope)
		t := p.lex.Peek(0)
		return fail(p.errorf(t, "expected function body or ';'"))
	}

	handle := p.ast.Alloc(fn)
	sig := funcSignatureKey(retType, paramTypes)
	p.regs.Symbols.Insert(scope, &Symbol{Name: name, Node: handle, Type: retType, Signature: sig})

	if isTemplateMember {
		p.delayed = append(p.delayed, DelayedBody{Checkpoint: p.lex.SavePosition(), FuncNode: handle, ClassScope: scope, IsTemplate: true})
		p.skipBalancedBraces()
		p.regs.Symbols.PopScope(funcScope)
		return ok(handle)
	}

	bodyRes := p.parseBlockStmt(funcScope)
	p.regs.Symbols.PopScope(funcScope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	node := p.ast.Get(handle)
	node.Body = bodyRes.Node
	p.ast.Set(handle, node)
	return ok(handle)
}

func funcSignatureKey(ret ast.TypeSpecifier, params []ast.TypeSpecifier) string {
	s := mangleItaniumType(ret)
	for _, p := range params {
		s += mangleItaniumType(p)
	}
	return s
}

// skipBalancedBraces consumes tokens from the current '{' through its
// matching '}' without building any AST — used to fast-forward past a
// delayed member-function body that will be re-parsed later (§4.C).
func (p *Parser) skipBalancedBraces() {
	depth := 0
	for {
		t := p.lex.Peek(0)
		if t.Category == token.EOF {
			return
		}
		if t.Category == token.Punctuator && t.Kind == token.PunctLBrace {
			depth++
		} else if t.Category == token.Punctuator && t.Kind == token.PunctRBrace {
			depth--
			if depth == 0 {
				p.advance()
				return
			}
		}
		p.advance()
	}
}

// ParseDelayedBody re-enters the parser at a recorded checkpoint to parse a
// member-function body after the enclosing class is complete (§4.C).
// compiler.Compile calls it once for each entry Delayed returns.
func (p *Parser) ParseDelayedBody(d DelayedBody) ParseResult {
	p.lex.RestorePosition(d.Checkpoint)
	funcScope := p.regs.Symbols.PushScope(ScopeFunction)
	defer p.regs.Symbols.PopScope(funcScope)
	bodyRes := p.parseBlockStmt(funcScope)
	if bodyRes.Outcome != Success {
		return bodyRes
	}
	node := p.ast.Get(d.FuncNode)
	node.Body = bodyRes.Node
	p.ast.Set(d.FuncNode, node)
	return ok(d.FuncNode)
}

// parseClassDecl parses struct/class/union declarations including member
// fields, member functions, access specifiers, and base-class lists. A
// member-function body is parsed in place where it appears; it is not
// recorded as a DelayedBody.
func (p *Parser) parseClassDecl(ns NamespaceHandle, scope ScopeHandle) ParseResult {
	startTok := p.advance() // struct/class/union
	kind := TypeStruct
	defaultAccess := ast.AccessPublic
	if startTok.Kind == token.KwClass {
		kind = TypeStruct
		defaultAccess = ast.AccessPrivate
	} else if startTok.Kind == token.KwUnion {
		kind = TypeUnion
	}

	nameTok := p.lex.Peek(0)
	name := arena.InvalidString
	if nameTok.Category == token.Identifier {
		p.advance()
		name = p.regs.Strings.GetOrIntern(nameTok.Text)
	}

	var bases []BaseSpecifier
	if p.atPunct(token.PunctColon) {
		p.advance()
		for {
			access := defaultAccess
			if p.atKeyword(token.KwPublic) {
				access = ast.AccessPublic
				p.advance()
			} else if p.atKeyword(token.KwPrivate) {
				access = ast.AccessPrivate
				p.advance()
			} else if p.atKeyword(token.KwProtected) {
				access = ast.AccessProtected
				p.advance()
			}
			isVirtual := false
			if p.atKeyword(token.KwVirtual) {
				isVirtual = true
				p.advance()
			}
			baseTok := p.lex.Peek(0)
			if baseTok.Category != token.Identifier {
				break
			}
			p.advance()
			bases = append(bases, BaseSpecifier{Access: access, IsVirtual: isVirtual})
			if p.atPunct(token.PunctComma) {
				p.advance()
				continue
			}
			break
		}
	}

	if p.atPunct(token.PunctSemicolon) {
		p.advance()
		idx := p.regs.Types.Declare(kind, name)
		n := p.ast.Alloc(ast.Node{Kind: ast.KindStructDecl, Tok: nameTok, Name: name, Type: ast.TypeSpecifier{Base: ast.TypeUserDefined, TypeIndex: ast.TypeIndex(idx)}, HasType: true})
		return ok(n)
	}

	if _, err := p.expectPunct(token.PunctLBrace, "{"); err != nil {
		return fail(err)
	}

	idx := p.regs.Types.Declare(kind, name)
	entry := p.regs.Types.Get(idx)
	entry.Bases = bases

	classScope := p.regs.Symbols.PushScope(ScopeClass)
	access := defaultAccess
	var memberDecls []arena.Handle
	for !p.atPunct(token.PunctRBrace) && !p.at(token.EOF, token.KindNone) {
		switch {
		case p.atKeyword(token.KwPublic):
			access = ast.AccessPublic
			p.advance()
			p.expectPunct(token.PunctColon, ":")
			continue
		case p.atKeyword(token.KwPrivate):
			access = ast.AccessPrivate
			p.advance()
			p.expectPunct(token.PunctColon, ":")
			continue
		case p.atKeyword(token.KwProtected):
			access = ast.AccessProtected
			p.advance()
			p.expectPunct(token.PunctColon, ":")
			continue
		}

		isVirtual := false
		for p.atKeyword(token.KwVirtual) {
			isVirtual = true
			p.advance()
		}

		if p.at(token.Operator, token.OpTilde) {
			dtorNode, dtorName, ok := p.parseDtorDecl(ns, classScope, name)
			if ok {
				memberDecls = append(memberDecls, dtorNode)
				entry.MemberFuncs = append(entry.MemberFuncs, MemberFunc{
					Name: dtorName, Node: dtorNode, Access: access, IsVirtual: isVirtual,
					IsDtor: true, VtableIndex: vtableIndexFor(entry, isVirtual),
				})
			}
			continue
		}

		memberType, err := p.parseTypeSpecifier(classScope)
		if err != nil {
			p.advance()
			continue
		}
		memberNameTok := p.lex.Peek(0)
		if memberNameTok.Category != token.Identifier {
			p.advance()
			continue
		}
		p.advance()
		memberName := p.regs.Strings.GetOrIntern(memberNameTok.Text)

		if p.atPunct(token.PunctLParen) {
			res := p.parseFuncDecl(ns, classScope, memberType, memberNameTok, memberName, false)
			if res.Outcome == Success {
				memberDecls = append(memberDecls, res.Node)
				entry.MemberFuncs = append(entry.MemberFuncs, MemberFunc{
					Name: memberName, Node: res.Node, Access: access, IsVirtual: isVirtual,
					VtableIndex: vtableIndexFor(entry, isVirtual),
				})
			}
			continue
		}

		bitWidth := 0
		if p.atPunct(token.PunctColon) {
			p.advance()
			widthTok := p.lex.Peek(0)
			if widthTok.Category == token.Literal {
				p.advance()
				bitWidth = parseIntLiteral(widthTok.Text)
			}
		}
		p.skipSemicolon()
		memberNode := p.ast.Alloc(ast.Node{Kind: ast.KindFieldDecl, Tok: memberNameTok, Name: memberName, Type: memberType, HasType: true})
		memberDecls = append(memberDecls, memberNode)
		entry.Members = append(entry.Members, Member{Name: memberName, Type: memberType, Access: access, BitfieldWidth: bitWidth})
	}
	p.regs.Symbols.PopScope(classScope)
	p.expectPunct(token.PunctRBrace, "}")
	p.skipSemicolon()

	entry.HasVtable = hasAnyVirtual(entry.MemberFuncs)
	entry.RTTI = p.regs.Types.ComputeRTTIKind(idx)

	n := p.ast.Alloc(ast.Node{
		Kind: ast.KindStructDecl, Tok: nameTok, Name: name,
		Type: ast.TypeSpecifier{Base: ast.TypeUserDefined, TypeIndex: ast.TypeIndex(idx)}, HasType: true,
		Children: memberDecls,
	})
	if name != arena.InvalidString {
		p.regs.Symbols.Insert(scope, &Symbol{Name: name, Node: n, Signature: "struct"})
	}
	return ok(n)
}

// parseDtorDecl parses a `~ClassName(...) { ... }` member declaration. The
// leading '~' is the only thing distinguishing it from an ordinary member
// function declarator, so it is handled as its own case rather than folded
// into parseVarOrFuncDecl's type-specifier-first grammar.
func (p *Parser) parseDtorDecl(ns NamespaceHandle, scope ScopeHandle, className arena.StringHandle) (arena.Handle, arena.StringHandle, bool) {
	tildeTok := p.advance() // '~'
	nameTok := p.lex.Peek(0)
	if nameTok.Category == token.Identifier {
		p.advance()
	}
	dtorName := arena.InvalidString
	if className != arena.InvalidString {
		dtorName = p.regs.Strings.GetOrIntern("~" + p.regs.Strings.String(className))
	}
	res := p.parseFuncDecl(ns, scope, ast.TypeSpecifier{Base: ast.TypeVoid}, tildeTok, dtorName, false)
	if res.Outcome != Success {
		return arena.InvalidHandle, dtorName, false
	}
	return res.Node, dtorName, true
}

func vtableIndexFor(e *TypeInfoEntry, isVirtual bool) int {
	if !isVirtual {
		return -1
	}
	return len(e.VtableLayout)
}

func hasAnyVirtual(fns []MemberFunc) bool {
	for _, f := range fns {
		if f.IsVirtual {
			return true
		}
	}
	return false
}

func parseIntLiteral(text string) int {
	v := 0
	for _, c := range text {
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int(c-'0')
	}
	return v
}
