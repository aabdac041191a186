package sema

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

// TargetABI selects which name-mangling scheme to apply (§4.C).
type TargetABI int

const (
	ABIItanium TargetABI = iota // ELF
	ABIMSVC                     // COFF
)

// FuncSignature is the minimal shape the mangler needs: an optional
// enclosing namespace, the function name, and its parameter types.
type FuncSignature struct {
	Namespace  NamespaceHandle
	Name       arena.StringHandle
	Params     []ast.TypeSpecifier
	TemplateArgs []TypeIndexArg // non-empty for a template instantiation
}

// Mangler produces ABI-appropriate linker symbol names. On ELF it emits a
// variant of Itanium mangling; on COFF, the MSVC scheme — both driven by
// the TypeSpecifier + qualifiers (§4.C "Name mangling"). Template arguments
// are written out in the symbol (Itanium `I...E`; MSVC `$$` followed by
// the arguments with no separator between them); no hashed suffix is
// added.
type Mangler struct {
	abi     TargetABI
	strings *arena.StringTable
	ns      *NamespaceRegistry
}

func NewMangler(abi TargetABI, strings *arena.StringTable, ns *NamespaceRegistry) *Mangler {
	return &Mangler{abi: abi, strings: strings, ns: ns}
}

// Mangle returns the linker symbol for sig.
func (m *Mangler) Mangle(sig FuncSignature) string {
	if m.abi == ABIItanium {
		return m.mangleItanium(sig)
	}
	return m.mangleMSVC(sig)
}

func (m *Mangler) mangleItanium(sig FuncSignature) string {
	// _Z<len><name>[I<targs>E]<params>, or inside a namespace
	// _ZN<namespace components><len><name>[I<targs>E]E<params>
	// Simplified relative to the full Itanium grammar (no substitution
	// compression): acceptable per §9's open question on ABI fidelity.
	name := m.strings.String(sig.Name)
	var out string
	if sig.Namespace != Global {
		out = "_ZN"
		for _, comp := range m.namespaceComponents(sig.Namespace) {
			out += fmt.Sprintf("%d%s", len(comp), comp)
		}
		out += fmt.Sprintf("%d%s", len(name), name)
		if len(sig.TemplateArgs) > 0 {
			out += "I" + m.mangleTemplateArgs(sig.TemplateArgs) + "E"
		}
		out += "E"
	} else {
		out = "_Z" + fmt.Sprintf("%d%s", len(name), name)
		if len(sig.TemplateArgs) > 0 {
			out += "I" + m.mangleTemplateArgs(sig.TemplateArgs) + "E"
		}
	}
	if len(sig.Params) == 0 {
		out += "v"
	} else {
		for _, p := range sig.Params {
			out += mangleItaniumType(p)
		}
	}
	return out
}

func (m *Mangler) namespaceComponents(h NamespaceHandle) []string {
	var chain []string
	for cur := h; cur != Global; cur = m.ns.Entry(cur).Parent {
		chain = append([]string{m.strings.String(m.ns.Entry(cur).Name)}, chain...)
	}
	return chain
}

func (m *Mangler) mangleTemplateArgs(args []TypeIndexArg) string {
	out := ""
	for _, a := range args {
		switch a.Kind {
		case TemplateArgType:
			out += mangleItaniumType(a.Type)
		case TemplateArgValue:
			out += fmt.Sprintf("Li%dE", a.IntValue)
		case TemplateArgTemplate:
			name := m.strings.String(a.Template)
			out += fmt.Sprintf("%d%s", len(name), name)
		}
	}
	return out
}

func mangleItaniumType(t ast.TypeSpecifier) string {
	code := ""
	switch t.Base {
	case ast.TypeVoid:
		code = "v"
	case ast.TypeBool:
		code = "b"
	case ast.TypeChar:
		code = "c"
	case ast.TypeShort:
		code = pick(t.Unsigned, "t", "s")
	case ast.TypeInt:
		code = pick(t.Unsigned, "j", "i")
	case ast.TypeLong:
		code = pick(t.Unsigned, "m", "l")
	case ast.TypeLongLong:
		code = pick(t.Unsigned, "y", "x")
	case ast.TypeFloat:
		code = "f"
	case ast.TypeDouble:
		code = "d"
	default:
		code = fmt.Sprintf("T%d", t.TypeIndex)
	}
	for range t.PointerCV {
		code = "P" + code
	}
	if t.Ref == ast.RefLValue {
		code = "R" + code
	} else if t.Ref == ast.RefRValue {
		code = "O" + code
	}
	if t.CV&ast.QualConst != 0 {
		code = "K" + code
	}
	return code
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// mangleMSVC produces a simplified MSVC-scheme decoration: `?name@@YA` +
// return-placeholder + params + `@Z`. §9's open question notes binary
// compatibility with real MSVC is not guaranteed; this scheme is internally
// consistent (same inputs -> same symbol, distinct overloads -> distinct
// symbols) which is all the object-file consumer (an external linker)
// needs.
func (m *Mangler) mangleMSVC(sig FuncSignature) string {
	name := m.strings.String(sig.Name)
	out := "?" + name + "@"
	for _, comp := range m.namespaceComponents(sig.Namespace) {
		out += comp + "@"
	}
	out += "@YAH" // simplified: always decorate as returning int
	if len(sig.TemplateArgs) > 0 {
		out += "$$"
		for _, a := range sig.TemplateArgs {
			if a.Kind == TemplateArgValue {
				out += fmt.Sprintf("%d", a.IntValue)
			} else {
				out += mangleItaniumType(a.Type)
			}
		}
	}
	if len(sig.Params) == 0 {
		out += "XZ"
	} else {
		for _, p := range sig.Params {
			out += mangleItaniumType(p)
		}
		out += "@Z"
	}
	return out
}
