package instantiate

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/sema"
)

// Engine instantiates templates against an AST arena and the semantic
// registries a Parser populated (§4.D). It is stateless across calls other
// than the memoization already owned by each sema.TemplateEntry, so one
// Engine can serve every instantiation request for a translation unit.
type Engine struct {
	ast  *ast.Arena
	regs *sema.Registries
}

func NewEngine(astArena *ast.Arena, regs *sema.Registries) *Engine {
	return &Engine{ast: astArena, regs: regs}
}

// Instantiate produces (or returns the memoized) AST for template name
// applied to args, following §4.D steps 1-5: bind parameters, select the
// most specialized matching specialization (or fall back to the primary
// template), substitute through a clone, compute the instantiated name,
// and memoize by fingerprint so repeat calls with the same key are
// idempotent (§8 "Template memoization").
func (e *Engine) Instantiate(name arena.StringHandle, args []sema.TypeIndexArg) (arena.Handle, error) {
	entry, ok := e.regs.Templates.Lookup(name)
	if !ok {
		return arena.InvalidHandle, fmt.Errorf("instantiate: unknown template %q", e.regs.Strings.String(name))
	}

	key := sema.InstantiationKey{Args: args}
	fp := key.Fingerprint()
	if h, ok := entry.Instantiations[fp]; ok {
		return h, nil
	}

	patternNode := entry.Primary
	if spec, found, err := entry.SelectSpecialization(key, func(s sema.Specialization, k sema.InstantiationKey) bool {
		return Unify(s.Key, k)
	}); err != nil {
		return arena.InvalidHandle, fmt.Errorf("instantiate: %w", err)
	} else if found {
		patternNode = spec.Node
	}

	tmpl := e.ast.Get(patternNode)
	bindings, err := BuildBindings(e.ast, patternNode, args)
	if err != nil {
		return arena.InvalidHandle, err
	}

	cloned := e.cloneNode(tmpl.Body, bindings)
	instName := e.instantiatedName(name, fp)
	if clonedNode := e.ast.Get(cloned); clonedNode.Kind != ast.KindInvalid {
		clonedNode.Name = instName
		e.ast.Set(cloned, clonedNode)
	}

	entry.Instantiations[fp] = cloned
	return cloned, nil
}

// instantiatedName builds the `base$hash(args)` name of §4.D step 4 using
// the shared string table's Builder so the result is interned exactly
// once, matching how the lexer/parser intern every other identifier.
func (e *Engine) instantiatedName(base arena.StringHandle, fp uint64) arena.StringHandle {
	var b arena.Builder
	b.WriteString(e.regs.Strings.String(base))
	b.WriteByte('$')
	b.Printf("%x", fp)
	return b.Commit(e.regs.Strings)
}

// cloneNode deep-copies the subtree at h, substituting any reference to a
// bound template parameter along the way: a TypeSpecifier whose Base is
// TypeTemplateParam is replaced per substituteType, and an identifier
// expression naming a bound non-type value parameter is folded into an
// IntLiteral (§4.D step 3 "identifier-reference substitution").
func (e *Engine) cloneNode(h arena.Handle, b Bindings) arena.Handle {
	if h == arena.InvalidHandle {
		return arena.InvalidHandle
	}
	n := e.ast.Get(h)

	if n.Kind == ast.KindIdentExpr {
		if binding, ok := b[n.Name]; ok && !binding.IsPack && binding.Single.Kind == sema.TemplateArgValue {
			lit := n
			lit.Kind = ast.KindIntLiteral
			lit.IntValue = binding.Single.IntValue
			return e.ast.Alloc(lit)
		}
	}

	out := n
	out.Type = e.substituteType(n.Type, b)
	out.Type.ArraySize = e.cloneNode(n.Type.ArraySize, b)
	out.Lhs = e.cloneNode(n.Lhs, b)
	out.Rhs = e.cloneNode(n.Rhs, b)
	out.Else = e.cloneNode(n.Else, b)
	out.Body = e.cloneNode(n.Body, b)
	if n.Children != nil {
		out.Children = make([]arena.Handle, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = e.cloneNode(c, b)
		}
	}
	return e.ast.Alloc(out)
}

// substituteType implements §4.D step 2: substitute a bound type argument
// for a TypeTemplateParam occurrence, applying C++ reference-collapsing
// between the parameter's own reference qualifier (if the declarator wrote
// `T&&` where T is the parameter) and the bound argument's reference
// qualifier, and concatenating pointer-qualifier chains so `T*` with
// T=`int*` substitutes to `int**`.
func (e *Engine) substituteType(t ast.TypeSpecifier, b Bindings) ast.TypeSpecifier {
	if t.Base != ast.TypeTemplateParam {
		return t
	}
	binding, ok := b[t.TemplateParam]
	if !ok || binding.IsPack || binding.Single.Kind != sema.TemplateArgType {
		return t
	}
	arg := binding.Single.Type
	result := arg
	result.Ref = sema.CollapseReference(t.Ref, arg.Ref)
	result.CV |= t.CV
	if len(t.PointerCV) > 0 {
		result.PointerCV = append(append([]ast.Qualifier{}, t.PointerCV...), arg.PointerCV...)
	}
	return result
}
