// Package compiler is the public entry point (§6): Compile(sources,
// Options) wires the lexer/parser, template instantiation, IR generation,
// code emission, EH-metadata construction, and object-file writing into
// one call, the same collaborator shape the teacher's main.go drives by
// hand for its own single-pass pipeline.
package compiler

import (
	"time"

	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/ast"
	"github.com/cxxcore/ccc/internal/codegen"
	"github.com/cxxcore/ccc/internal/diag"
	"github.com/cxxcore/ccc/internal/ehframe"
	"github.com/cxxcore/ccc/internal/ir"
	"github.com/cxxcore/ccc/internal/objfile"
	"github.com/cxxcore/ccc/internal/sema"
)

// TargetOS selects the object-file container and calling convention.
type TargetOS int

const (
	Linux TargetOS = iota
	Windows
)

// DataModel names the target's integer width model: LLP64 (Windows)
// makes `long` 32 bits where LP64 makes it 64. Compile accepts it in
// Options but does not pass it to any stage, so type sizes do not depend
// on it.
type DataModel int

const (
	LP64 DataModel = iota
	LLP64
)

// Options are the recognized compile options (§6).
type Options struct {
	OutputPath      string
	TargetOS        TargetOS
	TargetDataModel DataModel
	Defines         []string
	IncludePaths    []string
	DebugInfo       bool
	ShowTiming      bool
	Debug           bool // passed to diag.InitLogger
}

// Source is one already-preprocessed translation unit (§6: "the
// preprocessor is expected to have expanded includes and macros").
type Source struct {
	Path string
	Text []byte
}

// ObjectFile is the compiled result: a single ELF64 or COFF object plus
// the exit-code-relevant diagnostics collected along the way.
type ObjectFile struct {
	Bytes  []byte
	Format objfile.Format
}

// Compile lowers sources to one object file under opts (§6). It returns a
// non-nil *ObjectFile only when no diagnostic of severity >= error was
// raised. Internal errors are recorded in the returned Bag (exit code 2 per
// §6, surfaced by Bag.ExitCode to the CLI collaborator); the returned error
// is non-nil only when the logger cannot be set up.
func Compile(sources []Source, opts Options) (*ObjectFile, *diag.Bag, error) {
	logger, err := diag.InitLogger(opts.Debug)
	if err != nil {
		return nil, nil, err
	}
	diag.Logger = logger
	bag := &diag.Bag{}

	start := time.Now()
	codegenABI := codegen.SystemV()
	format := objfile.FormatELF64
	if opts.TargetOS == Windows {
		codegenABI = codegen.MicrosoftX64ABI()
		format = objfile.FormatCOFF
	}

	regs := sema.NewRegistries()
	astArena := ast.NewArena()

	var tus []arena.Handle
	for i, src := range sources {
		p := sema.NewParser(src.Text, i, astArena, regs)
		tu, parseErr := p.ParseTranslationUnit()
		if parseErr != nil {
			bag.Add(diag.Diagnostic{Severity: diag.SeverityError, Message: parseErr.Error()})
			continue
		}
		for _, d := range p.Delayed() {
			if res := p.ParseDelayedBody(d); res.Outcome == sema.ParseErr {
				bag.Add(diag.Diagnostic{Severity: diag.SeverityError, Message: res.Err.Error()})
			}
		}
		tus = append(tus, tu)
	}
	if bag.HasErrors() {
		return nil, bag, nil
	}

	// Generator accumulates into one Module across calls (it returns the
	// same pointer every time), so every translation unit's declarations
	// land in a single Module without re-combining results by hand.
	gen := ir.NewGenerator(astArena, regs)
	var mod *ir.Module
	for _, tu := range tus {
		mod = gen.Generate(tu)
	}
	if mod == nil {
		mod = &ir.Module{}
	}
	for _, genErr := range gen.Errors() {
		bag.AddError(genErr)
	}
	if bag.HasErrors() {
		return nil, bag, nil
	}

	emitter := codegen.NewEmitter(codegenABI, regs.Strings)
	result := emitFunctionsWithRecovery(emitter, mod, bag)
	for _, emitErr := range emitter.Errors() {
		bag.AddError(emitErr)
	}

	for i := range result.Funcs {
		fn := &result.Funcs[i]
		if !fn.HasHandlers {
			continue
		}
		attachEHMetadata(fn, opts.TargetOS)
	}

	obj, writeErr := objfile.Write(result, format)
	if writeErr != nil {
		bag.AddError(diag.WrapInternal(writeErr, "objfile.Write"))
	}
	if bag.ExitCode() == 2 {
		return nil, bag, nil
	}

	if opts.ShowTiming {
		diag.Logger.Sugar().Infof("compile took %s", time.Since(start))
	}
	if bag.HasErrors() {
		return nil, bag, nil
	}
	return &ObjectFile{Bytes: obj, Format: format}, bag, nil
}

// emitFunctionsWithRecovery lowers mod one function at a time, recovering
// from a panic inside any single function's emission (§4.F "per-function
// error recovery": an emitter bug discards that function's partial bytes
// and metadata and compilation resumes at the next FunctionDecl, while a
// semantic error still aborts the whole compile — codegen never raises
// semantic errors itself, only internal ones, so every recovered panic
// here becomes an InternalError in bag rather than an abort).
func emitFunctionsWithRecovery(emitter *codegen.Emitter, mod *ir.Module, bag *diag.Bag) *codegen.Result {
	res := &codegen.Result{}
	for _, g := range mod.Globals {
		res.Globals = append(res.Globals, codegen.CompiledGlobal{
			Name: g.MangledName, SizeBits: g.SizeBits, IsZeroInit: g.IsZeroInit, InitInt: g.InitInt,
		})
	}
	for _, fn := range mod.Funcs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					diag.Logger.Sugar().Errorf("internal error compiling %s, function discarded: %v", fn.Name, r)
					bag.Add(diag.Diagnostic{Severity: diag.SeverityInternal, Internal: true,
						Message: "internal compiler error compiling " + fn.Name})
				}
			}()
			single := &ir.Module{Funcs: []*ir.Func{fn}}
			out := emitter.Emit(single)
			res.Funcs = append(res.Funcs, out.Funcs...)
		}()
	}
	return res
}

// attachEHMetadata builds the Itanium LSDA (Linux) or UNWIND_INFO/
// FuncInfo/ScopeTable xdata blob plus RUNTIME_FUNCTION pdata row (Windows)
// for one function's collected try/catch regions, and populates
// fn.EHData/EHRelocs/PData/PDataRelocs so internal/objfile has real bytes
// to place into .gcc_except_table/.xdata/.pdata (§8 "LSDA size
// consistency": the encoded tables' internal offsets stay self-consistent
// regardless of where the object writer finally places them).
func attachEHMetadata(fn *codegen.CompiledFunc, os TargetOS) {
	if os == Windows {
		unwind := ehframe.BuildUnwindInfo(*fn, "__ccc_eh_personality")
		blob := unwind.Encode()
		var relocs []codegen.Reloc
		if unwind.ExceptionHandler != "" {
			relocs = append(relocs, codegen.Reloc{
				Offset: len(blob), Symbol: unwind.ExceptionHandler, Type: codegen.RelAddr32NB,
			})
			blob = append(blob, 0, 0, 0, 0)
		}

		fi := ehframe.BuildFuncInfo(fn.EHRegions)
		fiBytes, fiRelocs := fi.Encode()
		base := len(blob)
		blob = append(blob, fiBytes...)
		for _, r := range fiRelocs {
			relocs = append(relocs, codegen.Reloc{Offset: base + r.Offset, Symbol: r.Symbol, Type: codegen.RelAddr32NB})
		}

		if scope := ehframe.BuildScopeTable(fn.EHRegions); len(scope) > 0 {
			blob = append(blob, scope.Encode()...)
		}

		fn.EHData = blob
		fn.EHRelocs = relocs

		rt := ehframe.BuildRuntimeFunction(*fn)
		pdata, pdataRelocs := rt.Encode()
		fn.PData = pdata
		for _, r := range pdataRelocs {
			fn.PDataRelocs = append(fn.PDataRelocs, codegen.Reloc{Offset: r.Offset, Symbol: r.Symbol, Type: codegen.RelAddr32NB})
		}
		return
	}

	lsda := ehframe.BuildLSDA(fn.EHRegions, uint64(len(fn.Code)))
	data, typeRelocs := lsda.EncodeWithRelocs()
	fn.EHData = data
	for _, r := range typeRelocs {
		fn.EHRelocs = append(fn.EHRelocs, codegen.Reloc{Offset: r.Offset, Symbol: r.Symbol, Type: codegen.RelPCRel32})
	}
}
