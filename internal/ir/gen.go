package ir

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/sema"
)

// loopCtx is one entry of the loop-context stack (§3): the label triple a
// break/continue inside the loop resolves against.
type loopCtx struct {
	startLabel arena.StringHandle
	endLabel   arena.StringHandle
	incLabel   arena.StringHandle
}

// scopeFrame tracks the locals declared directly in one lexical scope so
// Generator can emit their destructor calls, in reverse declaration order,
// immediately before the matching ScopeEnd (§4.E).
type scopeFrame struct {
	destructibles []localVar
}

type localVar struct {
	slot     int
	typeName arena.StringHandle
	typeIdx  ast.TypeIndex
}

// Generator walks a translation unit's AST and produces a Module (§4.E). It
// mirrors the teacher's stack-machine Compiler (ir.go: pushScope/popScope,
// newLabel, emit) adapted to a register-based three-address IR instead of a
// stack machine, and to C++ constructs (switch-as-comparison-chain,
// ranged-for desugaring, try/catch, SEH) instead of Go's.
type Generator struct {
	ast  *ast.Arena
	regs *sema.Registries

	mod *Module

	fn         *Func
	labelSeq   int
	regSeq     int
	locals     map[arena.StringHandle]int // name -> Locals index, current function
	loopStack  []loopCtx
	scopeStack []scopeFrame
	errs       []error
}

func NewGenerator(astArena *ast.Arena, regs *sema.Registries) *Generator {
	return &Generator{ast: astArena, regs: regs, mod: &Module{}}
}

func (g *Generator) Errors() []error { return g.errs }

func (g *Generator) errorf(format string, args ...any) {
	g.errs = append(g.errs, fmt.Errorf(format, args...))
}

func (g *Generator) newLabel(prefix string) arena.StringHandle {
	g.labelSeq++
	return g.regs.Strings.GetOrIntern(fmt.Sprintf(".L%s%d", prefix, g.labelSeq))
}

func (g *Generator) newReg() int {
	g.regSeq++
	return g.regSeq
}

func (g *Generator) emit(i Inst) {
	g.fn.Code = append(g.fn.Code, i)
}

// Generate lowers every top-level declaration of tu into g.mod (§4.E entry
// point). It is the IR-layer half of the pipeline sitting between
// sema.Parser and internal/codegen.
func (g *Generator) Generate(tu arena.Handle) *Module {
	node := g.ast.Get(tu)
	for _, child := range node.Children {
		g.genTopLevel(child)
	}
	return g.mod
}

func (g *Generator) genTopLevel(h arena.Handle) {
	n := g.ast.Get(h)
	switch n.Kind {
	case ast.KindFuncDecl:
		g.genFunc(h, n)
	case ast.KindVarDecl:
		g.genGlobalVar(n)
	case ast.KindNamespaceDecl:
		for _, c := range n.Children {
			g.genTopLevel(c)
		}
	case ast.KindTemplateDecl:
		// Uninstantiated templates contribute no code of their own. Generate
		// only receives the parsed translation units, so clones produced by
		// internal/instantiate are not lowered here either.
	case ast.KindStructDecl:
		for _, c := range n.Children {
			if member := g.ast.Get(c); member.Kind == ast.KindFuncDecl && member.Body != arena.InvalidHandle {
				g.genFunc(c, member)
			}
		}
	}
}

func (g *Generator) genGlobalVar(n ast.Node) {
	name := g.regs.Strings.String(n.Name)
	size, _ := scalarSize(n.Type)
	global := Global{Name: name, MangledName: name, SizeBits: size}
	if n.Rhs != arena.InvalidHandle {
		init := g.ast.Get(n.Rhs)
		if init.Kind == ast.KindIntLiteral {
			global.InitInt = init.IntValue
		} else {
			global.IsZeroInit = true
		}
	} else {
		global.IsZeroInit = true
	}
	g.mod.Globals = append(g.mod.Globals, global)
}

func (g *Generator) genFunc(h arena.Handle, n ast.Node) {
	if n.Body == arena.InvalidHandle {
		return // forward declaration, nothing to lower
	}
	fn := &Func{Name: g.regs.Strings.String(n.Name)}
	g.fn = fn
	g.regSeq = 0
	g.locals = map[arena.StringHandle]int{}
	g.scopeStack = nil

	for _, paramHandle := range n.Children {
		p := g.ast.Get(paramHandle)
		if p.Kind != ast.KindParamDecl {
			continue
		}
		size, isFloat := scalarSize(p.Type)
		fn.Params = append(fn.Params, Local{Name: g.regs.Strings.String(p.Name), SizeBits: size, IsFloat: isFloat, Type: p.Type})
		g.declareLocal(p.Name, p.Type)
	}

	g.pushScope()
	g.emit(Inst{Op: OpScopeBegin})
	g.genStmt(n.Body)
	g.emitScopeEnd()
	g.popScope()

	g.mod.Funcs = append(g.mod.Funcs, fn)
}

func (g *Generator) declareLocal(name arena.StringHandle, t ast.TypeSpecifier) int {
	size, isFloat := scalarSize(t)
	g.fn.Locals = append(g.fn.Locals, Local{Name: g.regs.Strings.String(name), SizeBits: size, IsFloat: isFloat, Type: t})
	idx := len(g.fn.Locals) - 1
	g.locals[name] = idx
	if t.Base == ast.TypeUserDefined {
		g.recordDestructible(idx, name, t.TypeIndex)
	}
	return idx
}

func (g *Generator) recordDestructible(slot int, name arena.StringHandle, typeIdx ast.TypeIndex) {
	if len(g.scopeStack) == 0 || typeIdx == 0 {
		return
	}
	entry := g.regs.Types.Get(sema.TypeIndex(typeIdx))
	if !hasDtor(entry) {
		return
	}
	top := len(g.scopeStack) - 1
	g.scopeStack[top].destructibles = append(g.scopeStack[top].destructibles, localVar{slot: slot, typeName: name, typeIdx: typeIdx})
}

// hasDtor reports whether e declares a user destructor (§4.E, §8 "Scope
// discipline"), driven off the IsDtor tag internal/sema's parser attaches
// to a `~ClassName` member declaration.
func hasDtor(e *sema.TypeInfoEntry) bool {
	return e.HasUserDtor()
}

func (g *Generator) pushScope() { g.scopeStack = append(g.scopeStack, scopeFrame{}) }

func (g *Generator) popScope() {
	if len(g.scopeStack) == 0 {
		return
	}
	g.scopeStack = g.scopeStack[:len(g.scopeStack)-1]
}

// emitScopeEnd emits destructor calls for the current scope's destructible
// locals in reverse construction order, then the ScopeEnd marker itself
// (§4.E, §8 "Scope discipline").
func (g *Generator) emitScopeEnd() {
	if len(g.scopeStack) > 0 {
		top := g.scopeStack[len(g.scopeStack)-1]
		for i := len(top.destructibles) - 1; i >= 0; i-- {
			d := top.destructibles[i]
			addr := g.newReg()
			g.emit(Inst{Op: OpAddrOf, Dest: addr, A: TypedValue{Kind: ValueReg, Reg: d.slot}})
			g.emit(Inst{Op: OpCallDtor, A: TypedValue{Kind: ValueReg, Reg: addr}})
		}
	}
	g.emit(Inst{Op: OpScopeEnd})
}

func scalarSize(t ast.TypeSpecifier) (bits int, isFloat bool) {
	if len(t.PointerCV) > 0 || t.Ref != ast.RefNone {
		return 64, false
	}
	switch t.Base {
	case ast.TypeBool, ast.TypeChar:
		return 8, false
	case ast.TypeShort:
		return 16, false
	case ast.TypeInt:
		return 32, false
	case ast.TypeLong, ast.TypeLongLong:
		return 64, false
	case ast.TypeFloat:
		return 32, true
	case ast.TypeDouble:
		return 64, true
	default:
		return 64, false
	}
}

// --- statements ---

func (g *Generator) genStmt(h arena.Handle) {
	if h == arena.InvalidHandle {
		return
	}
	n := g.ast.Get(h)
	switch n.Kind {
	case ast.KindBlockStmt:
		g.pushScope()
		g.emit(Inst{Op: OpScopeBegin})
		for _, c := range n.Children {
			g.genStmt(c)
		}
		g.emitScopeEnd()
		g.popScope()
	case ast.KindDeclStmt:
		g.genStmt(n.Lhs)
	case ast.KindVarDecl:
		idx := g.declareLocal(n.Name, n.Type)
		if n.Rhs != arena.InvalidHandle {
			v := g.genExpr(n.Rhs)
			g.emit(Inst{Op: OpStoreLocal, Dest: idx, A: v})
		}
	case ast.KindExprStmt:
		g.genExpr(n.Lhs)
	case ast.KindIfStmt:
		g.genIf(n)
	case ast.KindWhileStmt:
		g.genWhile(n)
	case ast.KindDoWhileStmt:
		g.genDoWhile(n)
	case ast.KindForStmt:
		g.genFor(n)
	case ast.KindRangeForStmt:
		g.genRangeFor(n)
	case ast.KindSwitchStmt:
		g.genSwitch(n)
	case ast.KindBreakStmt:
		if len(g.loopStack) > 0 {
			top := g.loopStack[len(g.loopStack)-1]
			g.emit(Inst{Op: OpBreak, A: TypedValue{Kind: ValueLabel, Label: top.endLabel}})
		}
	case ast.KindContinueStmt:
		if len(g.loopStack) > 0 {
			top := g.loopStack[len(g.loopStack)-1]
			target := top.incLabel
			if target == arena.InvalidString {
				target = top.startLabel
			}
			g.emit(Inst{Op: OpContinue, A: TypedValue{Kind: ValueLabel, Label: target}})
		}
	case ast.KindGotoStmt:
		g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: n.Name}})
	case ast.KindLabelStmt:
		g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: n.Name}})
	case ast.KindReturnStmt:
		var v TypedValue
		if n.Lhs != arena.InvalidHandle {
			v = g.genExpr(n.Lhs)
		}
		g.emit(Inst{Op: OpReturn, A: v})
	case ast.KindTryStmt:
		g.genTry(n)
	case ast.KindThrowStmt:
		g.genThrow(n)
	case ast.KindSehTryStmt:
		g.genSehTry(n)
	case ast.KindSehLeaveStmt:
		if len(g.loopStack) > 0 {
			top := g.loopStack[len(g.loopStack)-1]
			g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: top.endLabel}})
		}
	default:
		g.errorf("ir: unhandled statement kind %d", n.Kind)
	}
}

func (g *Generator) genIf(n ast.Node) {
	// if-constexpr: only the taken branch is lowered, decided by folding
	// the condition as a constant expression (§4.E). A condition that does
	// not fold to a literal falls back to ordinary runtime branching.
	if n.IsConstexpr {
		if lit, ok := g.foldConstInt(n.Lhs); ok {
			if lit != 0 {
				g.genStmt(n.Rhs)
			} else if n.Else != arena.InvalidHandle {
				g.genStmt(n.Else)
			}
			return
		}
	}
	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")
	cond := g.genExpr(n.Lhs)
	target := elseLabel
	if n.Else == arena.InvalidHandle {
		target = endLabel
	}
	g.emit(Inst{Op: OpCondBranch, A: cond, B: TypedValue{Kind: ValueLabel, Label: target}})
	g.genStmt(n.Rhs)
	if n.Else != arena.InvalidHandle {
		g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: endLabel}})
		g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: elseLabel}})
		g.genStmt(n.Else)
	}
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: endLabel}})
}

// foldConstInt evaluates a trivial constant-expression subset (integer
// literals and bool literals) sufficient for if-constexpr dispatch; any
// expression outside that subset is reported as not foldable rather than
// guessed at.
func (g *Generator) foldConstInt(h arena.Handle) (int64, bool) {
	n := g.ast.Get(h)
	switch n.Kind {
	case ast.KindIntLiteral, ast.KindBoolLiteral:
		return n.IntValue, true
	default:
		return 0, false
	}
}

func (g *Generator) genWhile(n ast.Node) {
	start := g.newLabel("wstart")
	end := g.newLabel("wend")
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLoopBegin})
	cond := g.genExpr(n.Lhs)
	g.emit(Inst{Op: OpCondBranch, A: cond, B: TypedValue{Kind: ValueLabel, Label: end}})
	g.loopStack = append(g.loopStack, loopCtx{startLabel: start, endLabel: end})
	g.genStmt(n.Body)
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
	g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: end}})
	g.emit(Inst{Op: OpLoopEnd})
}

func (g *Generator) genDoWhile(n ast.Node) {
	start := g.newLabel("dstart")
	cond := g.newLabel("dcond")
	end := g.newLabel("dend")
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLoopBegin})
	g.loopStack = append(g.loopStack, loopCtx{startLabel: start, endLabel: end, incLabel: cond})
	g.genStmt(n.Body)
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: cond}})
	condVal := g.genExpr(n.Lhs)
	g.emit(Inst{Op: OpCondBranch, A: condVal, B: TypedValue{Kind: ValueLabel, Label: end}, C: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: end}})
	g.emit(Inst{Op: OpLoopEnd})
}

func (g *Generator) genFor(n ast.Node) {
	g.pushScope()
	g.emit(Inst{Op: OpScopeBegin})
	g.genStmt(n.Lhs) // init-clause (decl-stmt or expr-stmt)
	start := g.newLabel("fstart")
	inc := g.newLabel("finc")
	end := g.newLabel("fend")
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLoopBegin})
	if n.Rhs != arena.InvalidHandle {
		cond := g.genExpr(n.Rhs)
		g.emit(Inst{Op: OpCondBranch, A: cond, B: TypedValue{Kind: ValueLabel, Label: end}})
	}
	g.loopStack = append(g.loopStack, loopCtx{startLabel: start, endLabel: end, incLabel: inc})
	g.genStmt(n.Body)
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: inc}})
	if n.Else != arena.InvalidHandle {
		g.genExpr(n.Else) // increment-clause, reuses Else slot per the parser's node layout
	}
	g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: end}})
	g.emit(Inst{Op: OpLoopEnd})
	g.emitScopeEnd()
	g.popScope()
}

// genRangeFor desugars `for (T x : range) body` into a pointer begin/end
// loop for arrays, or a begin()/end() method-call loop for user types
// (§4.E). Both forms dereference the iterator exactly once to bind the
// element, whether the binding is by value or by reference.
func (g *Generator) genRangeFor(n ast.Node) {
	g.pushScope()
	g.emit(Inst{Op: OpScopeBegin})

	rangeType := g.exprTypeHint(n.Rhs)
	rangeVal := g.genExpr(n.Rhs)

	beginSlot := len(g.fn.Locals)
	g.fn.Locals = append(g.fn.Locals, Local{Name: ".range.it", SizeBits: 64})
	endSlot := len(g.fn.Locals)
	g.fn.Locals = append(g.fn.Locals, Local{Name: ".range.end", SizeBits: 64})

	if len(rangeType.PointerCV) > 0 || rangeType.ArraySize != arena.InvalidHandle {
		g.emit(Inst{Op: OpStoreLocal, Dest: beginSlot, A: rangeVal})
		endVal := TypedValue{Kind: ValueIntLit} // array-length end bound computed by codegen from the array's static extent
		g.emit(Inst{Op: OpStoreLocal, Dest: endSlot, A: endVal})
	} else {
		beginCall := TypedValue{Kind: ValueReg, Reg: g.newReg()}
		g.emit(Inst{Op: OpCallVirtual, Dest: beginCall.Reg, A: rangeVal, B: TypedValue{Kind: ValueSymbol, Symbol: g.regs.Strings.GetOrIntern("begin")}})
		g.emit(Inst{Op: OpStoreLocal, Dest: beginSlot, A: beginCall})
		endCall := TypedValue{Kind: ValueReg, Reg: g.newReg()}
		g.emit(Inst{Op: OpCallVirtual, Dest: endCall.Reg, A: rangeVal, B: TypedValue{Kind: ValueSymbol, Symbol: g.regs.Strings.GetOrIntern("end")}})
		g.emit(Inst{Op: OpStoreLocal, Dest: endSlot, A: endCall})
	}

	start := g.newLabel("rstart")
	inc := g.newLabel("rinc")
	end := g.newLabel("rend")
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLoopBegin})
	itReg := g.newReg()
	g.emit(Inst{Op: OpLoadLocal, Dest: itReg, A: TypedValue{Kind: ValueReg, Reg: beginSlot}})
	endReg := g.newReg()
	g.emit(Inst{Op: OpLoadLocal, Dest: endReg, A: TypedValue{Kind: ValueReg, Reg: endSlot}})
	cmpReg := g.newReg()
	g.emit(Inst{Op: OpEq, Dest: cmpReg, A: TypedValue{Kind: ValueReg, Reg: itReg}, B: TypedValue{Kind: ValueReg, Reg: endReg}})
	g.emit(Inst{Op: OpCondBranch, A: TypedValue{Kind: ValueReg, Reg: cmpReg}, B: TypedValue{Kind: ValueLabel, Label: end}, C: TypedValue{Kind: ValueIntLit, IntLit: 1}})

	elem := n
	if n.Lhs != arena.InvalidHandle {
		if d := g.ast.Get(n.Lhs); d.Kind == ast.KindDeclStmt {
			elem = g.ast.Get(d.Lhs)
		}
	}
	elemSlot := g.declareLocal(elem.Name, elem.Type)
	derefReg := g.newReg()
	g.emit(Inst{Op: OpLoadMember, Dest: derefReg, A: TypedValue{Kind: ValueReg, Reg: itReg}})
	g.emit(Inst{Op: OpStoreLocal, Dest: elemSlot, A: TypedValue{Kind: ValueReg, Reg: derefReg}})

	g.loopStack = append(g.loopStack, loopCtx{startLabel: start, endLabel: end, incLabel: inc})
	g.genStmt(n.Body)
	g.loopStack = g.loopStack[:len(g.loopStack)-1]

	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: inc}})
	nextReg := g.newReg()
	g.emit(Inst{Op: OpAddI, Dest: nextReg, A: TypedValue{Kind: ValueReg, Reg: itReg}, B: TypedValue{Kind: ValueIntLit, IntLit: 1}})
	g.emit(Inst{Op: OpStoreLocal, Dest: beginSlot, A: TypedValue{Kind: ValueReg, Reg: nextReg}})
	g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: start}})
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: end}})
	g.emit(Inst{Op: OpLoopEnd})

	g.emitScopeEnd()
	g.popScope()
}

// exprTypeHint returns the best-effort static type of an expression the
// range-for desugaring needs to classify (array vs. class iterable);
// full type inference lives in internal/sema and is not duplicated here —
// this only distinguishes "has a TypeSpecifier on the declaring node" from
// "unknown", defaulting to the class-iterable path when unsure.
func (g *Generator) exprTypeHint(h arena.Handle) ast.TypeSpecifier {
	n := g.ast.Get(h)
	if n.Kind == ast.KindIdentExpr {
		if idx, ok := g.locals[n.Name]; ok {
			return g.fn.Locals[idx].Type
		}
	}
	return ast.TypeSpecifier{}
}

// localTypeSpec returns the declared type of h when it is a reference to a
// local (by identifier), so member/array lowering can resolve a real
// layout offset instead of guessing one (§4.E, review of OpLoadMember
// lowering).
func (g *Generator) localTypeSpec(h arena.Handle) (ast.TypeSpecifier, bool) {
	n := g.ast.Get(h)
	if n.Kind != ast.KindIdentExpr && n.Kind != ast.KindQualifiedIdExpr {
		return ast.TypeSpecifier{}, false
	}
	idx, ok := g.locals[n.Name]
	if !ok {
		return ast.TypeSpecifier{}, false
	}
	return g.fn.Locals[idx].Type, true
}

// resolveMemberOffset looks up member's byte offset and bit-size within
// base's static struct type, via internal/sema's layout table. It falls
// back to a pointer-sized, zero-offset access when the base's type cannot
// be determined statically (e.g. the result of a chained call).
func (g *Generator) resolveMemberOffset(base arena.Handle, member arena.StringHandle) (offset, bits int) {
	t, ok := g.localTypeSpec(base)
	if !ok || t.TypeIndex == 0 {
		return 0, 64
	}
	entry := g.regs.Types.Get(sema.TypeIndex(t.TypeIndex))
	for i := range entry.Members {
		if entry.Members[i].Name == member {
			bits, _ := scalarSize(entry.Members[i].Type)
			return entry.Members[i].Offset, bits
		}
	}
	return 0, 64
}

// resolveElementScale returns the element size in bytes of base's static
// array/pointer type, for scaling an index before it is added to the base
// address.
func (g *Generator) resolveElementScale(base arena.Handle) int {
	t, ok := g.localTypeSpec(base)
	if !ok {
		return 8
	}
	if n := len(t.PointerCV); n > 0 && t.ArraySize == arena.InvalidHandle {
		t.PointerCV = t.PointerCV[:n-1] // a pointer's element is its pointee
	}
	bits, _ := scalarSize(t)
	if bits == 0 {
		return 8
	}
	return bits / 8
}

func (f *Func) localType(idx int) ast.TypeSpecifier {
	if idx < 0 || idx >= len(f.Locals) {
		return ast.TypeSpecifier{}
	}
	l := f.Locals[idx]
	bits := l.SizeBits
	spec := ast.TypeSpecifier{Base: ast.TypeLong}
	if bits == 64 && l.SizeBits != 0 {
		spec.PointerCV = []ast.Qualifier{ast.QualNone}
	}
	return spec
}

// genSwitch lowers to a linear comparison chain: each case value is
// compared with Equal and a conditional branch routes to the case label;
// default is checked last; fall-through is implicit since case bodies are
// simply concatenated without an intervening branch to the end (§4.E, §8
// scenario 2).
func (g *Generator) genSwitch(n ast.Node) {
	end := g.newLabel("swend")
	cond := g.genExpr(n.Lhs)
	body := g.ast.Get(n.Body)

	type caseEntry struct {
		label   arena.StringHandle
		isDefault bool
	}
	var entries []caseEntry
	for _, c := range body.Children {
		cn := g.ast.Get(c)
		switch cn.Kind {
		case ast.KindCaseLabel:
			label := g.newLabel("case")
			entries = append(entries, caseEntry{label: label})
			valExpr := g.genExpr(cn.Lhs)
			cmpReg := g.newReg()
			g.emit(Inst{Op: OpEq, Dest: cmpReg, A: cond, B: valExpr})
			g.emit(Inst{Op: OpCondBranch, A: TypedValue{Kind: ValueReg, Reg: cmpReg}, B: TypedValue{Kind: ValueLabel, Label: label}, C: TypedValue{Kind: ValueIntLit, IntLit: 1}})
		case ast.KindDefaultLabel:
			label := g.newLabel("default")
			entries = append(entries, caseEntry{label: label, isDefault: true})
		}
	}
	defaultLabel := end
	for _, e := range entries {
		if e.isDefault {
			defaultLabel = e.label
		}
	}
	g.emit(Inst{Op: OpBranch, A: TypedValue{Kind: ValueLabel, Label: defaultLabel}})

	g.loopStack = append(g.loopStack, loopCtx{endLabel: end})
	idx := 0
	for _, c := range body.Children {
		cn := g.ast.Get(c)
		switch cn.Kind {
		case ast.KindCaseLabel, ast.KindDefaultLabel:
			g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: entries[idx].label}})
			idx++
		default:
			g.genStmt(c)
		}
	}
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: end}})
}

// genTry lowers try/catch to TryBegin/TryEnd around the protected region and
// a CatchBegin/CatchEnd pair per handler carrying the typeinfo symbol
// (§4.E, §8 scenario 5).
func (g *Generator) genTry(n ast.Node) {
	g.emit(Inst{Op: OpTryBegin})
	g.genStmt(n.Body)
	g.emit(Inst{Op: OpTryEnd})
	g.fn.HasHandlers = true
	for _, c := range n.Children {
		cn := g.ast.Get(c)
		typeSym := arena.InvalidString
		if cn.HasType {
			typeSym = g.itaniumTypeInfoSymbol(cn.Type)
		}
		g.emit(Inst{Op: OpCatchBegin, A: TypedValue{Kind: ValueSymbol, Symbol: typeSym}})
		if cn.Name != arena.InvalidString {
			g.declareLocal(cn.Name, cn.Type)
		}
		g.genStmt(cn.Body)
		g.emit(Inst{Op: OpCatchEnd})
	}
}

// itaniumTypeInfoSymbol returns the mangled RTTI symbol an Itanium action
// table entry points at for a scalar catch type (§8 scenario 5: `_ZTIi`).
// User-defined types are named from their TypeInfoTable entry once RTTI
// descriptor emission (internal/ehframe) assigns MangledRTTISym.
func (g *Generator) itaniumTypeInfoSymbol(t ast.TypeSpecifier) arena.StringHandle {
	switch t.Base {
	case ast.TypeInt:
		return g.regs.Strings.GetOrIntern("_ZTIi")
	case ast.TypeBool:
		return g.regs.Strings.GetOrIntern("_ZTIb")
	case ast.TypeDouble:
		return g.regs.Strings.GetOrIntern("_ZTId")
	case ast.TypeFloat:
		return g.regs.Strings.GetOrIntern("_ZTIf")
	case ast.TypeUserDefined:
		entry := g.regs.Types.Get(sema.TypeIndex(t.TypeIndex))
		if entry.MangledRTTISym != arena.InvalidString {
			return entry.MangledRTTISym
		}
	}
	return arena.InvalidString
}

func (g *Generator) genThrow(n ast.Node) {
	if n.Lhs == arena.InvalidHandle {
		g.emit(Inst{Op: OpRethrow})
		return
	}
	v := g.genExpr(n.Lhs)
	g.emit(Inst{Op: OpThrow, A: v})
}

// genSehTry lowers MSVC `__try` to the parallel SEH opcode family; `__leave`
// (handled in genStmt) branches to the nearest __try's end label.
func (g *Generator) genSehTry(n ast.Node) {
	g.emit(Inst{Op: OpSehTryBegin})
	end := g.newLabel("sehend")
	g.loopStack = append(g.loopStack, loopCtx{endLabel: end})
	g.genStmt(n.Body)
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
	g.emit(Inst{Op: OpSehTryEnd})
	g.fn.HasHandlers = true
	if n.Rhs != arena.InvalidHandle {
		handler := g.ast.Get(n.Rhs)
		switch handler.Kind {
		case ast.KindSehExceptClause:
			filter := g.genExpr(handler.Lhs)
			g.emit(Inst{Op: OpSehExceptBegin, A: filter})
			g.genStmt(handler.Body)
			g.emit(Inst{Op: OpSehExceptEnd})
		case ast.KindSehFinallyClause:
			g.emit(Inst{Op: OpSehFinallyBegin})
			g.genStmt(handler.Body)
			g.emit(Inst{Op: OpSehFinallyEnd})
		}
	}
	g.emit(Inst{Op: OpLabel, A: TypedValue{Kind: ValueLabel, Label: end}})
}
