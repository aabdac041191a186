// Package ehframe builds the exception-handling metadata a compiled
// function needs beyond its raw instruction bytes (§4.F EH metadata): the
// Itanium LSDA for ELF targets, Windows xdata/pdata/FuncInfo for COFF
// targets, and the RTTI descriptors both ABIs' catch clauses match
// against. None of this has a counterpart in the teacher (a single-target,
// no-exceptions backend); the struct layouts are grounded on
// _examples/saferwall-pe/exception.go's UNWIND_INFO/RUNTIME_FUNCTION
// parser, read in reverse as a writer's spec, and on §4.F's own
// description of the Itanium LSDA shape.
package ehframe

import (
	"fmt"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/sema"
)

// RTTISymbols names the linker symbols a type's runtime-type-information
// needs under one ABI (§4.F RTTI generation), derived from
// sema.TypeInfoTable.ComputeRTTIKind.
type RTTISymbols struct {
	TypeInfo  string // the type_info/TypeDescriptor symbol itself
	TypeName  string // Itanium _ZTS name string, or the MSVC base-class-array (??_R3) symbol
	VtableSym string // vtable symbol the type_info object's vptr points at
}

// ComputeRTTISymbols names idx's RTTI symbols under abi. Under MSVC,
// sema.TypeInfoTable.ComputeRTTIKind decides whether a ??_R3 base-class
// array symbol is named (none for a type with no bases). Under Itanium the
// _ZTI/_ZTS/_ZTV names do not depend on the kind, and this function does
// not choose between __class_type_info, __si_class_type_info and
// __vmi_class_type_info.
func ComputeRTTISymbols(types *sema.TypeInfoTable, strings *arena.StringTable, idx sema.TypeIndex, abi sema.TargetABI) RTTISymbols {
	entry := types.Get(idx)
	kind := types.ComputeRTTIKind(idx)
	rawName := strings.String(entry.Name)

	if abi == sema.ABIItanium {
		return RTTISymbols{
			TypeInfo:  "_ZTI" + lengthPrefixed(rawName),
			TypeName:  "_ZTS" + lengthPrefixed(rawName),
			VtableSym: "_ZTV" + lengthPrefixed(rawName),
		}
	}

	r3 := "??_R3" + rawName + "@@8"
	if kind == sema.RTTIClassNoBases {
		r3 = ""
	}
	return RTTISymbols{
		TypeInfo:  "??_R0" + rawName + "@@8",
		TypeName:  r3,
		VtableSym: "??_7" + rawName + "@@6B@",
	}
}

func lengthPrefixed(name string) string {
	return fmt.Sprintf("%d%s", len(name), name)
}
