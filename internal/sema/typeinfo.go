package sema

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

// Member describes one data member of a user-defined type.
type Member struct {
	Name            arena.StringHandle
	Type            ast.TypeSpecifier
	Offset          int
	Size            int
	Align           int
	Access          ast.Access
	BitfieldWidth   int // 0 means not a bitfield
	HasDefaultInit  bool
	DefaultInit     arena.Handle
}

// MemberFunc describes one member function, including the virtual-dispatch
// metadata §3 requires (vtable index, override/final/pure flags).
type MemberFunc struct {
	Name        arena.StringHandle
	Node        arena.Handle
	Access      ast.Access
	IsVirtual   bool
	IsOverride  bool
	IsFinal     bool
	IsPure      bool
	IsConst     bool
	IsVolatile  bool
	IsDtor      bool // true for ~ClassName, driving internal/ir's scope-exit destructor calls
	VtableIndex int // -1 if non-virtual
}

// HasUserDtor reports whether e declares an explicit destructor, the fact
// internal/ir's scope-exit lowering needs to know whether to emit
// OpCallDtor for an automatic object of this type (§4.E, §8 "Scope
// discipline").
func (e *TypeInfoEntry) HasUserDtor() bool {
	for _, mf := range e.MemberFuncs {
		if mf.IsDtor {
			return true
		}
	}
	return false
}

// BaseSpecifier names one base class of a type.
type BaseSpecifier struct {
	Type      TypeIndex
	Access    ast.Access
	IsVirtual bool
}

// RTTIKind selects which Itanium class_type_info subclass (§4.F RTTI) a
// type needs, computed once from its base-class shape.
type RTTIKind int

const (
	RTTIClassNoBases RTTIKind = iota
	RTTISingleInheritance
	RTTIMultipleInheritance
)

// TypeIndex is assigned once at declaration and never changes (§3).
type TypeIndex int32

// TypeKind distinguishes struct/union/enum entries of the table.
type TypeKind int

const (
	TypeStruct TypeKind = iota
	TypeUnion
	TypeEnum
)

// TypeInfoEntry is one row of gTypeInfo (§3).
type TypeInfoEntry struct {
	Kind           TypeKind
	Name           arena.StringHandle
	Members        []Member
	StaticMembers  []Member
	MemberFuncs    []MemberFunc
	Bases          []BaseSpecifier
	VtableLayout   []arena.StringHandle // mangled names, in vtable slot order
	Size           int
	Align          int
	HasVtable      bool
	RTTI           RTTIKind
	MangledRTTISym arena.StringHandle
}

// TypeInfoTable is the process-wide gTypeInfo table (§3, §5 "Global
// registries ... reset only at process start"). An implementer embeds one
// instance per Registries bundle (see registries.go) so tests can start
// fresh, per §9's explicit init/reset requirement.
type TypeInfoTable struct {
	entries []TypeInfoEntry
}

func NewTypeInfoTable() *TypeInfoTable {
	// Index 0 is reserved so TypeIndex(0) means "no user-defined type",
	// matching ast.TypeIndex's zero value meaning "not applicable".
	return &TypeInfoTable{entries: []TypeInfoEntry{{}}}
}

// Declare reserves a new TypeIndex for name; the entry starts empty and the
// caller fills it in through Get. Every call appends a new entry, so a
// forward declaration `struct Foo;` and a later `struct Foo { ... };` get
// distinct indices.
func (t *TypeInfoTable) Declare(kind TypeKind, name arena.StringHandle) TypeIndex {
	t.entries = append(t.entries, TypeInfoEntry{Kind: kind, Name: name})
	return TypeIndex(len(t.entries) - 1)
}

func (t *TypeInfoTable) Get(idx TypeIndex) *TypeInfoEntry { return &t.entries[idx] }

// ComputeRTTIKind classifies a type's base-class shape for §4.F's RTTI
// generator: no bases → __class_type_info, one public non-virtual base →
// __si_class_type_info, anything else → __vmi_class_type_info.
func (t *TypeInfoTable) ComputeRTTIKind(idx TypeIndex) RTTIKind {
	e := t.Get(idx)
	if len(e.Bases) == 0 {
		return RTTIClassNoBases
	}
	if len(e.Bases) == 1 && e.Bases[0].Access == ast.AccessPublic && !e.Bases[0].IsVirtual {
		return RTTISingleInheritance
	}
	return RTTIMultipleInheritance
}

// Layout assigns Offset/Size/Align to e's members in declaration order
// using the platform's natural C++ alignment rules (no reordering — the
// spec does not ask for field-reordering optimization, and reordering
// would break any code that takes member-pointer offsets against a
// textual layout). Bitfields pack into the current allocation unit.
func (t *TypeInfoTable) Layout(idx TypeIndex, sizeOf func(ast.TypeSpecifier) (size, align int)) {
	e := t.Get(idx)
	offset := 0
	maxAlign := 1
	bitOffset := 0
	for i := range e.Members {
		m := &e.Members[i]
		if m.BitfieldWidth > 0 {
			if bitOffset+m.BitfieldWidth > 32 {
				offset += 4
				bitOffset = 0
			}
			m.Offset = offset
			bitOffset += m.BitfieldWidth
			if maxAlign < 4 {
				maxAlign = 4
			}
			continue
		}
		bitOffset = 0
		size, align := sizeOf(m.Type)
		if align > maxAlign {
			maxAlign = align
		}
		offset = alignUp(offset, align)
		m.Offset = offset
		m.Size = size
		m.Align = align
		offset += size
	}
	e.Size = alignUp(offset, maxAlign)
	e.Align = maxAlign
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
