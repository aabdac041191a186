package sema

import "github.com/cxxcore/ccc/internal/arena"

// ConceptEntry is a minimal concept registry row: a concept is just a named
// requires-expression node, looked up by name when a template parameter is
// constrained (`template<Addable T>`).
type ConceptEntry struct {
	Name arena.StringHandle
	Node arena.Handle
}

// ConceptRegistry maps concept names to their defining requires-expression.
type ConceptRegistry struct {
	entries map[arena.StringHandle]ConceptEntry
}

func NewConceptRegistry() *ConceptRegistry {
	return &ConceptRegistry{entries: map[arena.StringHandle]ConceptEntry{}}
}

func (r *ConceptRegistry) Declare(e ConceptEntry) { r.entries[e.Name] = e }

func (r *ConceptRegistry) Lookup(name arena.StringHandle) (ConceptEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Registries bundles every process-wide registry named in §3/§9: the
// string table, namespace registry, template registry, concept registry,
// and type-info table. §9 calls for explicit init/reset operations taken as
// parameters to compile() rather than package-level globals, so tests can
// instantiate a fresh set per translation unit; NewRegistries is that
// entry point.
type Registries struct {
	Strings    *arena.StringTable
	Namespaces *NamespaceRegistry
	Templates  *TemplateRegistry
	Concepts   *ConceptRegistry
	Types      *TypeInfoTable
	Symbols    *SymbolTable
}

// NewRegistries constructs a fresh, empty set of registries.
func NewRegistries() *Registries {
	strings := arena.NewStringTable()
	return &Registries{
		Strings:    strings,
		Namespaces: NewNamespaceRegistry(strings),
		Templates:  NewTemplateRegistry(),
		Concepts:   NewConceptRegistry(),
		Types:      NewTypeInfoTable(),
		Symbols:    NewSymbolTable(),
	}
}
