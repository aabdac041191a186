// Package instantiate implements template instantiation (§4.D): building
// the parameter-to-argument binding, substituting it through a cloned copy
// of the template's AST, and memoizing the result by argument fingerprint.
package instantiate

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/sema"
)

// Binding is one template parameter's bound argument. A variadic parameter
// pack binds every trailing argument at once (IsPack), everything else
// binds exactly one.
type Binding struct {
	IsPack bool
	Single sema.TypeIndexArg
	Pack   []sema.TypeIndexArg
}

// Bindings maps a template parameter's interned name to its Binding.
type Bindings map[arena.StringHandle]Binding

// BuildBindings walks tmplNode's parameter list (§4.D step 1: "parameter
// name -> argument map construction including parameter-pack binding") and
// pairs each parameter with its argument. The last parameter may be a pack
// (ast.Node.IsConstexpr set on a KindTemplateTypeParam, §4.C
// parseTemplateParam's `T...` handling), in which case every argument from
// its position onward binds to it as a single Pack entry.
func BuildBindings(astArena *ast.Arena, tmplNode arena.Handle, args []sema.TypeIndexArg) (Bindings, error) {
	tmpl := astArena.Get(tmplNode)
	params := tmpl.Children
	b := make(Bindings, len(params))

	for i, ph := range params {
		pn := astArena.Get(ph)
		isLast := i == len(params)-1
		isPack := pn.Kind == ast.KindTemplateTypeParam && pn.IsConstexpr

		if isLast && isPack {
			if i > len(args) {
				return nil, fmt.Errorf("instantiate: too few template arguments for pack %q", pn.Name)
			}
			b[pn.Name] = Binding{IsPack: true, Pack: append([]sema.TypeIndexArg{}, args[i:]...)}
			return b, nil
		}

		if i >= len(args) {
			return nil, fmt.Errorf("instantiate: missing template argument %d", i)
		}
		b[pn.Name] = Binding{Single: args[i]}
	}

	if len(args) > len(params) {
		return nil, fmt.Errorf("instantiate: too many template arguments (%d params, %d args)", len(params), len(args))
	}
	return b, nil
}

// Unify reports whether a specialization's normalized key structurally
// matches the call's key (§4.D "pattern unification"): a specialization
// argument left as a bare template parameter (TypeTemplateParam) matches
// anything in that position; a concrete argument must match exactly.
func Unify(pattern sema.InstantiationKey, call sema.InstantiationKey) bool {
	if len(pattern.Args) != len(call.Args) {
		return false
	}
	for i, p := range pattern.Args {
		c := call.Args[i]
		if p.Kind != c.Kind {
			return false
		}
		switch p.Kind {
		case sema.TemplateArgType:
			if p.Type.Base == ast.TypeTemplateParam {
				continue
			}
			if p.Type.Base != c.Type.Base || p.Type.TypeIndex != c.Type.TypeIndex {
				return false
			}
		case sema.TemplateArgValue:
			if p.IntValue != c.IntValue {
				return false
			}
		case sema.TemplateArgTemplate:
			if p.Template != c.Template {
				return false
			}
		}
	}
	return true
}
