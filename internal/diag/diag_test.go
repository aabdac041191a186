package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxxcore/ccc/internal/token"
)

func TestBagAccumulatesInOrder(t *testing.T) {
	var b Bag
	b.Add(Diagnostic{Severity: SeverityError, Token: token.Token{Line: 1}, Message: "first"})
	b.Add(Diagnostic{Severity: SeverityWarning, Token: token.Token{Line: 2}, Message: "second"})

	errs := b.Errors()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "first")
	assert.Contains(t, errs[1].Error(), "second")
	assert.True(t, b.HasErrors())
}

func TestExitCodeEscalatesToInternal(t *testing.T) {
	var b Bag
	b.Add(Diagnostic{Severity: SeverityWarning, Message: "harmless"})
	assert.Equal(t, 0, b.ExitCode())

	b.Add(Diagnostic{Severity: SeverityError, Message: "bad type"})
	assert.Equal(t, 1, b.ExitCode())

	b.AddError(NewInternalError("unreachable opcode %d", 7))
	assert.Equal(t, 2, b.ExitCode())
}

func TestDiagnosticInternalPrefixesMessage(t *testing.T) {
	d := Diagnostic{Message: "opcode missing", Internal: true, Token: token.Token{Line: 3, Column: 4}}
	assert.Contains(t, d.Error(), "internal compiler error:")
	assert.Contains(t, d.Error(), "line 3")
}

func TestSubstitutionFailureIsNotADiagnostic(t *testing.T) {
	sf := &SubstitutionFailure{Candidate: "f<T>", Reason: "no member named x"}
	var err error = sf
	_, isDiag := err.(Diagnostic)
	assert.False(t, isDiag)
	assert.Contains(t, sf.Error(), "f<T>")
}

func TestWrapInternalPreservesCause(t *testing.T) {
	base := NewInternalError("base failure")
	wrapped := WrapInternal(base, "during codegen")
	assert.Contains(t, wrapped.Error(), "during codegen")
	assert.Contains(t, wrapped.Error(), "base failure")
}
