package sema

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
)

// TemplateArgKind distinguishes the three template-argument shapes §1/§4.D
// name: type, non-type value, and template-template.
type TemplateArgKind int

const (
	TemplateArgType TemplateArgKind = iota
	TemplateArgValue
	TemplateArgTemplate
)

// TypeIndexArg is one normalized template argument (§3 "TemplateInstantiationKey
// containing a sequence of TypeIndexArg entries and scalar non-type
// arguments").
type TypeIndexArg struct {
	Kind     TemplateArgKind
	Type     ast.TypeSpecifier
	IntValue int64
	Template arena.StringHandle // set when Kind == TemplateArgTemplate
}

// InstantiationKey is the normalized, hashable form of a template argument
// list used to memoize instantiation and select specializations (§9
// glossary: "Specialization key").
type InstantiationKey struct {
	Args []TypeIndexArg
}

// Fingerprint computes the 64-bit hash used in the instantiated name
// `base$hash(args)` (§4.D step 4). It is a simple FNV-1a variant over the
// normalized key — adequate for a memoization fingerprint, not a
// cryptographic digest.
func (k InstantiationKey) Fingerprint() uint64 {
	var h uint64 = 14695981039346656037
	mix := func(b byte) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	for _, a := range k.Args {
		mix(byte(a.Kind))
		mix(byte(a.Type.Base))
		mix(byte(a.Type.TypeIndex))
		mix(byte(a.Type.CV))
		mix(byte(a.Type.Ref))
		for i := 0; i < 8; i++ {
			mix(byte(a.IntValue >> (i * 8)))
		}
		mix(byte(a.Template))
	}
	return h
}

// Specialization is one partial or explicit specialization of a template.
type Specialization struct {
	Key        InstantiationKey
	Node       arena.Handle
	Generality int // lower = more specialized; see §4.D "ordered by generality"
}

// TemplateEntry is the primary declaration plus registered specializations
// for one template name (§3).
type TemplateEntry struct {
	Name            arena.StringHandle
	Primary         arena.Handle
	Specializations []Specialization
	// Instantiations memoizes InstantiationKey.Fingerprint() -> produced
	// clone, enforcing §8's "Template memoization" testable property:
	// instantiate(T, K) twice returns the same AST handle.
	Instantiations map[uint64]arena.Handle
}

// TemplateRegistry maps template names to their TemplateEntry (§3).
type TemplateRegistry struct {
	entries map[arena.StringHandle]*TemplateEntry
}

func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{entries: map[arena.StringHandle]*TemplateEntry{}}
}

func (r *TemplateRegistry) DeclarePrimary(name arena.StringHandle, node arena.Handle) *TemplateEntry {
	e := &TemplateEntry{Name: name, Primary: node, Instantiations: map[uint64]arena.Handle{}}
	r.entries[name] = e
	return e
}

func (r *TemplateRegistry) Lookup(name arena.StringHandle) (*TemplateEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// AddSpecialization registers a partial or explicit specialization,
// keeping the list ordered most-specialized-first so SelectSpecialization
// can return the first structural match (§4.D "ordered by generality").
func (e *TemplateEntry) AddSpecialization(s Specialization) {
	i := 0
	for i < len(e.Specializations) && e.Specializations[i].Generality <= s.Generality {
		i++
	}
	e.Specializations = append(e.Specializations, Specialization{})
	copy(e.Specializations[i+1:], e.Specializations[i:])
	e.Specializations[i] = s
}

// SelectSpecialization returns the unique most-specialized specialization
// whose pattern unifies with key, or ok=false if the primary template
// should be used instead. If more than one specialization at the winning
// generality level unifies, that is the "ambiguous specialization" failure
// of §8 and is reported via the returned error.
func (e *TemplateEntry) SelectSpecialization(key InstantiationKey, unify func(Specialization, InstantiationKey) bool) (Specialization, bool, error) {
	var matches []Specialization
	bestGenerality := -1
	for _, s := range e.Specializations {
		if !unify(s, key) {
			continue
		}
		if bestGenerality == -1 || s.Generality < bestGenerality {
			bestGenerality = s.Generality
			matches = []Specialization{s}
		} else if s.Generality == bestGenerality {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return Specialization{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		return Specialization{}, false, fmt.Errorf("ambiguous specialization")
	}
}
