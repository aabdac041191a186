package sema

import "github.com/cxxcore/ccc/internal/arena"

// NamespaceHandle indexes into a NamespaceRegistry. The global namespace is
// always handle 0 and is its own parent (§3).
type NamespaceHandle int32

// maxNamespaces bounds the registry's fixed-capacity array at 65535
// entries per §3; exceeding it is an InternalError (capacity overflow,
// §7), not a silent truncation.
const maxNamespaces = 65535

// NamespaceEntry is one row of the registry.
type NamespaceEntry struct {
	Name          arena.StringHandle
	Parent        NamespaceHandle
	Depth         int
	QualifiedName arena.StringHandle
}

// NamespaceRegistry is the fixed-capacity namespace table described in §3.
type NamespaceRegistry struct {
	entries []NamespaceEntry
	strings *arena.StringTable
}

// NewNamespaceRegistry creates a registry with the global namespace
// pre-inserted as entry 0, its own parent.
func NewNamespaceRegistry(strings *arena.StringTable) *NamespaceRegistry {
	r := &NamespaceRegistry{strings: strings}
	r.entries = append(r.entries, NamespaceEntry{
		Name:          arena.InvalidString,
		Parent:        0,
		Depth:         0,
		QualifiedName: arena.InvalidString,
	})
	return r
}

const Global NamespaceHandle = 0

// Declare inserts or reuses a nested namespace `name` under `parent`,
// returning its handle. Re-opening the same namespace (the usual C++
// pattern of reopening `namespace a { ... }` across translation units)
// returns the existing entry rather than duplicating it.
func (r *NamespaceRegistry) Declare(parent NamespaceHandle, name arena.StringHandle) (NamespaceHandle, error) {
	for i, e := range r.entries {
		if e.Parent == parent && e.Name == name {
			return NamespaceHandle(i), nil
		}
	}
	if len(r.entries) >= maxNamespaces {
		return 0, errCapacityOverflow("namespace registry")
	}
	depth := r.entries[parent].Depth + 1
	qualified := r.buildQualifiedName(parent, name)
	r.entries = append(r.entries, NamespaceEntry{Name: name, Parent: parent, Depth: depth, QualifiedName: qualified})
	return NamespaceHandle(len(r.entries) - 1), nil
}

func (r *NamespaceRegistry) buildQualifiedName(parent NamespaceHandle, name arena.StringHandle) arena.StringHandle {
	if parent == Global {
		return name
	}
	var b arena.Builder
	b.WriteString(r.strings.String(r.entries[parent].QualifiedName))
	b.WriteString("::")
	b.WriteString(r.strings.String(name))
	return b.Commit(r.strings)
}

func (r *NamespaceRegistry) Entry(h NamespaceHandle) NamespaceEntry { return r.entries[h] }

func (r *NamespaceRegistry) QualifiedName(h NamespaceHandle) string {
	return r.strings.String(r.entries[h].QualifiedName)
}

type capacityError struct{ what string }

func (e *capacityError) Error() string { return "internal compiler error: capacity overflow in " + e.what }

func errCapacityOverflow(what string) error { return &capacityError{what: what} }
