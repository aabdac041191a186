// Package sema holds the parser and the semantic registries it populates:
// the symbol table, namespace registry, template registry, and type-info
// table (§3 Data model, §4.C).
package sema

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

// ScopeKind classifies a Scope per §3.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeNamespace
	ScopeFunction
	ScopeBlock
	ScopeClass
	ScopeTemplateParams
)

// ScopeHandle references a Scope within a SymbolTable.
type ScopeHandle int32

const NoScope ScopeHandle = -1

// Symbol is one entry in a Scope: a declared name bound to its AST node and
// (once resolved) a type.
type Symbol struct {
	Name         arena.StringHandle
	Node         arena.Handle
	Type         ast.TypeSpecifier
	IsForwardDecl bool
	Signature    string // normalized signature text, used for redeclaration matching
}

// Scope is one entry of the symbol table's scope stack.
type Scope struct {
	Kind                ScopeKind
	Parent              ScopeHandle
	Symbols             map[arena.StringHandle]*Symbol
	TemplateParamNames  map[arena.StringHandle]bool // consulted when inside a template body
}

// SymbolTable is the stack of scopes described in §3. Scopes are never
// removed once created (a Handle into a closed scope remains valid for
// later qualified lookups, e.g. `a::b::x`); PopScope only changes which
// scope is "current".
type SymbolTable struct {
	scopes  []Scope
	current ScopeHandle
}

// NewSymbolTable creates a table with scope 0 as the Global scope current.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{}
	t.scopes = append(t.scopes, Scope{Kind: ScopeGlobal, Parent: NoScope, Symbols: map[arena.StringHandle]*Symbol{}})
	t.current = 0
	return t
}

func (t *SymbolTable) Current() ScopeHandle { return t.current }

func (t *SymbolTable) Scope(h ScopeHandle) *Scope { return &t.scopes[h] }

// PushScope opens a new nested scope whose parent is the current scope and
// makes it current; returns the new scope's handle so the caller can
// restore with PopScope.
func (t *SymbolTable) PushScope(kind ScopeKind) ScopeHandle {
	t.scopes = append(t.scopes, Scope{Kind: kind, Parent: t.current, Symbols: map[arena.StringHandle]*Symbol{}})
	h := ScopeHandle(len(t.scopes) - 1)
	t.current = h
	return h
}

// PopScope restores the current scope to the given scope's parent.
func (t *SymbolTable) PopScope(h ScopeHandle) {
	t.current = t.scopes[h].Parent
}

// Insert adds sym to scope h. Per §3: inserting a symbol whose name already
// exists is an error unless the existing entry is a forward declaration
// with an identical signature, in which case it is completed in place.
func (t *SymbolTable) Insert(h ScopeHandle, sym *Symbol) error {
	scope := &t.scopes[h]
	if existing, ok := scope.Symbols[sym.Name]; ok {
		if existing.IsForwardDecl && existing.Signature == sym.Signature {
			*existing = *sym
			existing.IsForwardDecl = sym.IsForwardDecl
			return nil
		}
		return fmt.Errorf("redefinition of symbol (handle %d)", sym.Name)
	}
	scope.Symbols[sym.Name] = sym
	return nil
}

// Lookup walks the parent chain starting at h looking for name, matching
// "later lookups see all earlier inserts in the same scope chain" (§5).
func (t *SymbolTable) Lookup(h ScopeHandle, name arena.StringHandle) (*Symbol, ScopeHandle, bool) {
	for cur := h; cur != NoScope; cur = t.scopes[cur].Parent {
		if sym, ok := t.scopes[cur].Symbols[name]; ok {
			return sym, cur, true
		}
	}
	return nil, NoScope, false
}

// IsTemplateParam reports whether name is bound as a template parameter in
// scope h or an enclosing TemplateParams scope (consulted while parsing a
// template body, §3).
func (t *SymbolTable) IsTemplateParam(h ScopeHandle, name arena.StringHandle) bool {
	for cur := h; cur != NoScope; cur = t.scopes[cur].Parent {
		if t.scopes[cur].TemplateParamNames[name] {
			return true
		}
	}
	return false
}

// BindTemplateParam registers name as a template parameter of scope h
// (which must be a ScopeTemplateParams scope).
func (t *SymbolTable) BindTemplateParam(h ScopeHandle, name arena.StringHandle) {
	scope := &t.scopes[h]
	if scope.TemplateParamNames == nil {
		scope.TemplateParamNames = map[arena.StringHandle]bool{}
	}
	scope.TemplateParamNames[name] = true
}
