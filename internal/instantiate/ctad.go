package instantiate

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/sema"
)

// DeduceClassTemplateArgs implements class-template argument deduction from
// a constructor call's argument types (§4.D "CTAD", §9 glossary). Guides
// are tried in declared order (the order KindDeductionGuideDecl nodes were
// parsed in, mirroring overload resolution's "first syntactic match wins
// ties" discipline elsewhere in the frontend) and the first guide whose
// parameter list matches argCount/structurally compatible types wins.
//
// Each guide's Children are ParamDecl nodes (the deduced constructor
// signature). A parameter typed as a TypeTemplateParam binds that template
// parameter to the call-argument type in its position; the result holds one
// argument per distinct template parameter, in order of first appearance
// among the guide's parameters. Pack parameters are not treated specially.
// When no guide matches, the result is (nil, false); no implicit guide is
// tried here.
func DeduceClassTemplateArgs(astArena *ast.Arena, guides []arena.Handle, callArgTypes []ast.TypeSpecifier) ([]sema.TypeIndexArg, bool) {
	for _, gh := range guides {
		g := astArena.Get(gh)
		if len(g.Children) != len(callArgTypes) {
			continue
		}
		deduced := map[arena.StringHandle]ast.TypeSpecifier{}
		matched := true
		for i, ph := range g.Children {
			p := astArena.Get(ph)
			if p.Type.Base == ast.TypeTemplateParam {
				if existing, ok := deduced[p.Type.TemplateParam]; ok && !sameType(existing, callArgTypes[i]) {
					matched = false
					break
				}
				deduced[p.Type.TemplateParam] = callArgTypes[i]
				continue
			}
			if p.Type.Base != callArgTypes[i].Base || p.Type.TypeIndex != callArgTypes[i].TypeIndex {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		var args []sema.TypeIndexArg
		emitted := map[arena.StringHandle]bool{}
		for _, ph := range g.Children {
			p := astArena.Get(ph)
			if p.Type.Base != ast.TypeTemplateParam || emitted[p.Type.TemplateParam] {
				continue
			}
			emitted[p.Type.TemplateParam] = true
			args = append(args, sema.TypeIndexArg{Kind: sema.TemplateArgType, Type: deduced[p.Type.TemplateParam]})
		}
		return args, true
	}
	return nil, false
}

func sameType(a, b ast.TypeSpecifier) bool {
	return a.Base == b.Base && a.TypeIndex == b.TypeIndex && a.Ref == b.Ref
}
