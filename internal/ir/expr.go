package ir

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/token"
)

// genExpr lowers an expression node to a TypedValue, emitting whatever
// instructions are needed to produce it (§4.E: "for each expression returns
// a TypedValue describing its result").
func (g *Generator) genExpr(h arena.Handle) TypedValue {
	if h == arena.InvalidHandle {
		return TypedValue{}
	}
	n := g.ast.Get(h)
	switch n.Kind {
	case ast.KindIntLiteral:
		return TypedValue{Kind: ValueIntLit, IntLit: n.IntValue, SizeBits: 32}
	case ast.KindFloatLiteral:
		return TypedValue{Kind: ValueFloatLit, FloatLit: n.FloatValue, SizeBits: 64}
	case ast.KindBoolLiteral:
		return TypedValue{Kind: ValueIntLit, IntLit: n.IntValue, SizeBits: 8}
	case ast.KindStringLiteral:
		return TypedValue{Kind: ValueStringLit, StringLit: g.regs.Strings.GetOrIntern(n.StringValue), SizeBits: 64}
	case ast.KindCharLiteral:
		return TypedValue{Kind: ValueIntLit, IntLit: int64(charLiteralValue(n.StringValue)), SizeBits: 8}
	case ast.KindNullptrLiteral:
		return TypedValue{Kind: ValueIntLit, IntLit: 0, SizeBits: 64}
	case ast.KindThisExpr:
		reg := g.newReg()
		g.emit(Inst{Op: OpLoadLocal, Dest: reg, A: TypedValue{Kind: ValueReg}})
		return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
	case ast.KindIdentExpr, ast.KindQualifiedIdExpr:
		if idx, ok := g.locals[n.Name]; ok {
			reg := g.newReg()
			local := g.fn.Locals[idx]
			g.emit(Inst{Op: OpLoadLocal, Dest: reg, A: TypedValue{Kind: ValueReg, Reg: idx}})
			bits := local.SizeBits
			return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: bits}
		}
		reg := g.newReg()
		g.emit(Inst{Op: OpLoadGlobal, Dest: reg, A: TypedValue{Kind: ValueSymbol, Symbol: n.Name}})
		return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
	case ast.KindUnaryExpr:
		return g.genUnary(n)
	case ast.KindBinaryExpr:
		return g.genBinary(n)
	case ast.KindAssignExpr:
		return g.genAssign(n)
	case ast.KindConditionalExpr:
		return g.genConditional(n)
	case ast.KindCallExpr:
		return g.genCall(n)
	case ast.KindMemberExpr:
		return g.genMember(n)
	case ast.KindSubscriptExpr:
		return g.genSubscript(n)
	case ast.KindCastExpr:
		return g.genExpr(n.Lhs)
	case ast.KindNewExpr:
		return g.genNew(n)
	case ast.KindDeleteExpr:
		v := g.genExpr(n.Lhs)
		g.emit(Inst{Op: OpCallDtor, A: v})
		return TypedValue{}
	case ast.KindSizeofExpr:
		size := 8
		return TypedValue{Kind: ValueIntLit, IntLit: int64(size), SizeBits: 64}
	case ast.KindTypeidExpr:
		reg := g.newReg()
		g.emit(Inst{Op: OpTypeid, Dest: reg, A: g.genExpr(n.Lhs)})
		return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
	case ast.KindDynamicCastExpr:
		v := g.genExpr(n.Lhs)
		reg := g.newReg()
		g.emit(Inst{Op: OpDynamicCast, Dest: reg, A: v})
		return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
	case ast.KindInitListExpr:
		var last TypedValue
		for _, c := range n.Children {
			last = g.genExpr(c)
		}
		return last
	case ast.KindLambdaExpr:
		// A lambda's body is not lowered and its captures are not
		// analysed; it contributes only a nameless symbol placeholder to
		// the enclosing expression so statement-level lowering can proceed.
		return TypedValue{Kind: ValueSymbol, Symbol: arena.InvalidString, SizeBits: 64}
	case ast.KindRequiresExpr:
		return TypedValue{Kind: ValueIntLit, IntLit: 1, SizeBits: 8}
	default:
		g.errorf("ir: unhandled expression kind %d", n.Kind)
		return TypedValue{}
	}
}

func charLiteralValue(text string) byte {
	if len(text) >= 3 && text[0] == '\'' {
		return text[1]
	}
	return 0
}

func (g *Generator) genUnary(n ast.Node) TypedValue {
	operand := g.genExpr(n.Lhs)
	op := unaryOp(n.Tok.Kind)
	reg := g.newReg()
	g.emit(Inst{Op: op, Dest: reg, A: operand})
	return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: operand.SizeBits}
}

func unaryOp(k token.Kind) Opcode {
	switch k {
	case token.OpMinus:
		return OpNegI
	case token.OpNot:
		return OpNot
	case token.OpTilde:
		return OpXor
	case token.OpStar:
		return OpLoadMember
	case token.OpAmp:
		return OpAddrOf
	default:
		return OpNegI
	}
}

func (g *Generator) genBinary(n ast.Node) TypedValue {
	lhs := g.genExpr(n.Lhs)
	rhs := g.genExpr(n.Rhs)
	op := binaryOp(n.Tok.Kind)
	reg := g.newReg()
	g.emit(Inst{Op: op, Dest: reg, A: lhs, B: rhs, Line: n.Tok.Line, Column: n.Tok.Column})
	bits := lhs.SizeBits
	if rhs.SizeBits > bits {
		bits = rhs.SizeBits
	}
	return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: bits}
}

func binaryOp(k token.Kind) Opcode {
	switch k {
	case token.OpPlus:
		return OpAddI
	case token.OpMinus:
		return OpSubI
	case token.OpStar:
		return OpMulI
	case token.OpSlash:
		return OpDivI
	case token.OpPercent:
		return OpModI
	case token.OpAmp:
		return OpAnd
	case token.OpPipe:
		return OpOr
	case token.OpCaret:
		return OpXor
	case token.OpShl:
		return OpShl
	case token.OpShr:
		return OpShr
	case token.OpEq:
		return OpEq
	case token.OpNe:
		return OpNe
	case token.OpLt:
		return OpLt
	case token.OpGt:
		return OpGt
	case token.OpLe:
		return OpLe
	case token.OpGe:
		return OpGe
	default:
		return OpAddI
	}
}

func (g *Generator) genAssign(n ast.Node) TypedValue {
	rhs := g.genExpr(n.Rhs)
	lhsNode := g.ast.Get(n.Lhs)
	switch lhsNode.Kind {
	case ast.KindIdentExpr:
		if idx, ok := g.locals[lhsNode.Name]; ok {
			g.emit(Inst{Op: OpStoreLocal, Dest: idx, A: rhs})
			return rhs
		}
		g.emit(Inst{Op: OpStoreGlobal, A: rhs, B: TypedValue{Kind: ValueSymbol, Symbol: lhsNode.Name}})
		return rhs
	case ast.KindMemberExpr:
		base := g.genExpr(lhsNode.Lhs)
		offset, _ := g.resolveMemberOffset(lhsNode.Lhs, lhsNode.Name)
		g.emit(Inst{Op: OpStoreMember, A: base, B: TypedValue{Kind: ValueSymbol, Symbol: lhsNode.Name}, C: rhs, Offset: offset})
		return rhs
	case ast.KindSubscriptExpr:
		base := g.genExpr(lhsNode.Lhs)
		idx := g.genExpr(lhsNode.Rhs)
		scale := g.resolveElementScale(lhsNode.Lhs)
		g.emit(Inst{Op: OpStoreArray, A: base, B: idx, C: rhs, Scale: scale})
		return rhs
	default:
		g.errorf("ir: unsupported assignment target kind %d", lhsNode.Kind)
		return rhs
	}
}

func (g *Generator) genConditional(n ast.Node) TypedValue {
	elseLabel := g.newLabel("condelse")
	endLabel := g.newLabel("condend")
	cond := g.genExpr(n.Lhs)
	g.emit(Inst{Op: OpCondBranch, A: cond, B: TypedValue{Kind: ValueLabel, Label: elseLabel}})
	thenVal := g.genExpr(n.Rhs)
	resultReg := g.newReg()
	g.emit(Inst{Op: OpConvert, Dest: resultReg, A: thenVal})
	g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: endLabel}})
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: elseLabel}})
	elseVal := g.genExpr(n.Else)
	g.emit(Inst{Op: OpConvert, Dest: resultReg, A: elseVal})
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: endLabel}})
	return TypedValue{Kind: ValueReg, Reg: resultReg, SizeBits: thenVal.SizeBits}
}

func (g *Generator) genCall(n ast.Node) TypedValue {
	var args []TypedValue
	for _, c := range n.Children {
		args = append(args, g.genExpr(c))
	}
	callee := g.ast.Get(n.Lhs)
	reg := g.newReg()
	if callee.Kind == ast.KindMemberExpr {
		base := g.genExpr(callee.Lhs)
		inst := Inst{Op: OpCallVirtual, Dest: reg, A: base, B: TypedValue{Kind: ValueSymbol, Symbol: callee.Name}}
		if len(args) > 0 {
			inst.C = args[0]
		}
		g.emit(inst)
		return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
	}
	name := arena.InvalidString
	if callee.Kind == ast.KindIdentExpr || callee.Kind == ast.KindQualifiedIdExpr {
		name = callee.Name
	}
	inst := Inst{Op: OpCallDirect, Dest: reg, A: TypedValue{Kind: ValueSymbol, Symbol: name}}
	if len(args) > 0 {
		inst.B = args[0]
	}
	if len(args) > 1 {
		inst.C = args[1]
	}
	g.emit(inst)
	return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
}

func (g *Generator) genMember(n ast.Node) TypedValue {
	base := g.genExpr(n.Lhs)
	reg := g.newReg()
	offset, bits := g.resolveMemberOffset(n.Lhs, n.Name)
	g.emit(Inst{Op: OpLoadMember, Dest: reg, A: base, B: TypedValue{Kind: ValueSymbol, Symbol: n.Name}, Offset: offset})
	return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: bits}
}

func (g *Generator) genSubscript(n ast.Node) TypedValue {
	base := g.genExpr(n.Lhs)
	idx := g.genExpr(n.Rhs)
	reg := g.newReg()
	scale := g.resolveElementScale(n.Lhs)
	g.emit(Inst{Op: OpLoadArray, Dest: reg, A: base, B: idx, Scale: scale})
	return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: scale * 8}
}

func (g *Generator) genNew(n ast.Node) TypedValue {
	reg := g.newReg()
	size, _ := scalarSize(n.Type)
	inst := Inst{Op: OpCallCtor, Dest: reg, A: TypedValue{Kind: ValueIntLit, IntLit: int64(size / 8)}}
	if n.Lhs != arena.InvalidHandle {
		inst.B = g.genExpr(n.Lhs)
	}
	g.emit(inst)
	return TypedValue{Kind: ValueReg, Reg: reg, SizeBits: 64}
}
