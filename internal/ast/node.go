// Package ast defines the tagged-union AST node (§3, §9 Design notes) and
// the TypeSpecifierNode qualifier model used throughout the parser,
// template instantiator, and IR generator.
package ast

import (
	"github.com/cxxcore/ccc/internal/arena"
	"github.com/cxxcore/ccc/internal/token"
)

// Kind tags the grammar alternative a Node represents. There is no open
// inheritance hierarchy (§9): every alternative is one Kind value and
// dispatch is an exhaustive switch over it, never a virtual call.
type Kind int

const (
	KindInvalid Kind = iota

	// Declarations
	KindTranslationUnit
	KindVarDecl
	KindFuncDecl
	KindParamDecl
	KindStructDecl
	KindUnionDecl
	KindEnumDecl
	KindEnumeratorDecl
	KindTypedefDecl
	KindUsingDecl
	KindNamespaceDecl
	KindTemplateDecl
	KindTemplateTypeParam
	KindTemplateValueParam
	KindTemplateTemplateParam
	KindConceptDecl
	KindFriendDecl
	KindStaticAssertDecl
	KindExternBlockDecl
	KindDeductionGuideDecl
	KindFieldDecl
	KindMemberFuncDecl

	// Statements
	KindBlockStmt
	KindIfStmt
	KindForStmt
	KindWhileStmt
	KindDoWhileStmt
	KindRangeForStmt
	KindSwitchStmt
	KindCaseLabel
	KindDefaultLabel
	KindBreakStmt
	KindContinueStmt
	KindGotoStmt
	KindLabelStmt
	KindReturnStmt
	KindExprStmt
	KindDeclStmt
	KindTryStmt
	KindCatchClause
	KindThrowStmt
	KindSehTryStmt
	KindSehExceptClause
	KindSehFinallyClause
	KindSehLeaveStmt

	// Expressions
	KindIntLiteral
	KindFloatLiteral
	KindStringLiteral
	KindCharLiteral
	KindBoolLiteral
	KindNullptrLiteral
	KindIdentExpr
	KindQualifiedIdExpr
	KindUnaryExpr
	KindBinaryExpr
	KindAssignExpr
	KindConditionalExpr
	KindCallExpr
	KindMemberExpr
	KindSubscriptExpr
	KindCastExpr
	KindNewExpr
	KindDeleteExpr
	KindLambdaExpr
	KindRequiresExpr
	KindFoldExpr
	KindThisExpr
	KindTypeidExpr
	KindDynamicCastExpr
	KindSizeofExpr
	KindInitListExpr

	// Type specifiers
	KindTypeSpecifier
)

// Qualifier is a CV/reference qualifier bitset.
type Qualifier uint8

const (
	QualNone     Qualifier = 0
	QualConst    Qualifier = 1 << 0
	QualVolatile Qualifier = 1 << 1
)

// RefKind distinguishes value, lvalue-reference, and rvalue-reference.
type RefKind uint8

const (
	RefNone RefKind = iota
	RefLValue
	RefRValue
)

// BaseType enumerates the built-in scalar types; user-defined types are
// carried via TypeIndex into the semantic layer's type-info table instead.
type BaseType int

const (
	TypeVoid BaseType = iota
	TypeBool
	TypeChar
	TypeShort
	TypeInt
	TypeLong
	TypeLongLong
	TypeFloat
	TypeDouble
	TypeUserDefined
	TypeAuto
	TypeTemplateParam
)

// TypeIndex references an entry in the global user-defined type table
// (gTypeInfo, §3). Zero means "not a user-defined type".
type TypeIndex int32

// TypeSpecifier carries everything §3 calls for: the base type, an
// optional TypeIndex for user-defined types, sign/CV/reference qualifiers,
// a pointer-depth vector of per-level CV qualifiers, and an optional
// array-size expression handle.
type TypeSpecifier struct {
	Base           BaseType
	TypeIndex      TypeIndex
	Unsigned       bool
	CV             Qualifier
	Ref            RefKind
	PointerCV      []Qualifier // one entry per level of pointer indirection
	ArraySize      arena.Handle
	TemplateParam  arena.StringHandle // set when Base == TypeTemplateParam
}

// Node is the single tagged-union AST value (§9: "one node per grammar
// alternative ... no virtual dispatch"). Cross-node references are arena
// Handles, never pointers, so the value itself can be copied freely
// without creating ownership cycles (§9 arena+handle design note).
//
// Not every field applies to every Kind; unused fields are zero. This
// mirrors the teacher's generic Node{Kind, Nodes, X, Y, Body, Type} shape,
// generalized to carry a source Token (every declaration node owns one,
// §3) and handle-based children instead of raw pointers.
type Node struct {
	Kind Kind
	Tok  token.Token

	Name arena.StringHandle // declared/referenced identifier

	Type     TypeSpecifier
	HasType  bool

	Children []arena.Handle // ordered child list (params, statements, args, enumerators...)
	Lhs      arena.Handle   // left operand / condition / callee / init-clause
	Rhs      arena.Handle   // right operand / then-branch / base expr
	Else     arena.Handle   // else-branch / increment-clause
	Body     arena.Handle   // statement/block body

	// Declaration-specific flags, reused across Kinds with a local meaning
	// documented at each constructor below.
	IsStatic   bool
	IsVirtual  bool
	IsOverride bool
	IsFinal    bool
	IsPure     bool
	IsConst    bool
	IsConstexpr bool
	Access     Access

	IntValue    int64
	FloatValue  float64
	StringValue string
}

// Access is a member's access specifier.
type Access uint8

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

// Arena is the node arena backing a single translation unit's AST.
type Arena = arena.NodeArena[Node]

func NewArena() *Arena { return arena.NewNodeArena[Node]() }
