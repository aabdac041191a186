// Package diag implements the three error taxonomies of §7: user-facing
// Diagnostics, internal SubstitutionFailure (SFINAE), and InternalError
// (compiler bugs), plus the logging/accumulation plumbing around them.
package diag

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cxxcore/ccc/internal/token"
)

// Severity classifies a Diagnostic for exit-code purposes (§6: "0 = success,
// 1 = any diagnostic of severity >= error, 2 = internal error").
type Severity int

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
	SeverityInternal
)

// Diagnostic is a user-facing compile error: unknown identifier, type
// mismatch, ambiguous overload, template substitution failure surfaced to
// the user, signature mismatch, redefinition (§7).
type Diagnostic struct {
	Severity Severity
	Token    token.Token
	Message  string
	Internal bool // true when this wraps an InternalError ("internal compiler error" prefix, §7)
}

func (d Diagnostic) Error() string {
	prefix := ""
	if d.Internal {
		prefix = "internal compiler error: "
	}
	return fmt.Sprintf("%s%s (line %d, col %d)", prefix, d.Message, d.Token.Line, d.Token.Column)
}

// SubstitutionFailure is raised during template-overload SFINAE (§7: "not
// user-visible unless it is the only candidate"). It is a distinct type
// from Diagnostic so overload resolution can decide at the call site
// whether to surface it or silently discard it in favor of a better match.
type SubstitutionFailure struct {
	Candidate string
	Reason    string
}

func (s *SubstitutionFailure) Error() string {
	return fmt.Sprintf("substitution failure in %s: %s", s.Candidate, s.Reason)
}

// InternalError models a bug in the compiler itself: unreachable IR opcode,
// unresolved label, capacity overflow (§7). Raised inside a function body
// lowering triggers per-function recovery (§4.F); raised anywhere else
// aborts the compile with exit code 2 (§6).
type InternalError struct {
	cause error
}

func NewInternalError(format string, args ...any) *InternalError {
	return &InternalError{cause: pkgerrors.Errorf(format, args...)}
}

func WrapInternal(err error, context string) *InternalError {
	return &InternalError{cause: pkgerrors.Wrap(err, context)}
}

func (e *InternalError) Error() string { return "internal compiler error: " + e.cause.Error() }
func (e *InternalError) Unwrap() error { return e.cause }

// Bag accumulates Diagnostics across a translation unit (§7: "Diagnostics
// are accumulated"). It wraps go.uber.org/multierr so callers elsewhere in
// the pipeline (instantiate, ir, codegen) can each report into one sink and
// the driver can render/exit from the combined result.
type Bag struct {
	err error
}

func (b *Bag) Add(d Diagnostic) {
	b.err = multierr.Append(b.err, d)
}

func (b *Bag) AddError(err error) {
	b.err = multierr.Append(b.err, err)
}

// Errors returns every accumulated Diagnostic/error in insertion order.
func (b *Bag) Errors() []error { return multierr.Errors(b.err) }

func (b *Bag) HasErrors() bool { return b.err != nil }

// ExitCode implements §6's exit-code policy: 0 clean, 1 any diagnostic of
// severity >= error, 2 if any diagnostic is an internal error.
func (b *Bag) ExitCode() int {
	code := 0
	for _, e := range b.Errors() {
		if d, ok := e.(Diagnostic); ok {
			if d.Internal {
				return 2
			}
			if d.Severity >= SeverityError && code < 1 {
				code = 1
			}
			continue
		}
		if _, ok := e.(*InternalError); ok {
			return 2
		}
		code = 1
	}
	return code
}

// Logger is the package-level structured logger for internal-compiler-error
// and timing diagnostics (§6 show_timing) — never used for user-facing
// Diagnostics, which are values threaded through Bag instead of log lines.
var Logger *zap.Logger = zap.NewNop()

// InitLogger installs a production zap.Logger when debug is false, or a
// development logger (human-readable, debug level) when true. The
// compiler.Compile entry point calls it with Options.Debug and installs the
// result in the package-level Logger.
func InitLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
