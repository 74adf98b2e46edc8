// Package loader materializes raw CLI metadata records into the in-memory
// type universe: the two-phase setup-then-fill protocol, cross-assembly
// reference resolution, field layout, vtable assignment, and generic
// instantiation.
//
// The PE/metadata byte parser is an external collaborator; it hands the
// loader pre-decoded table rows in the shapes below, one RawAssembly per
// file. The loader never touches bytes other than signature blobs and CIL
// method bodies.
package loader

import (
	"corejit/metadata"
)

// RawAssembly is the metadata reader's output for one assembly: every
// table row the core consumes, in table order.
type RawAssembly struct {
	Name    string
	Version [4]uint16

	ModuleName string
	MVID       [16]byte

	TypeDefs   []RawTypeDef
	TypeRefs   []RawTypeRef
	MethodDefs []RawMethodDef
	Fields     []RawField
	MemberRefs []RawMemberRef

	// TypeSpecs holds the signature blob of each TypeSpec row.
	TypeSpecs [][]byte

	InterfaceImpls []RawInterfaceImpl
	ClassLayouts   []RawClassLayout
	FieldLayouts   []RawFieldLayout

	// UserStrings maps a user-string heap offset to its decoded literal.
	UserStrings map[uint32]string

	// AssemblyRefs names the assemblies this one references, in
	// AssemblyRef table order.
	AssemblyRefs []string
}

// RawTypeDef is one TypeDef row with its attribute bits pre-decomposed.
type RawTypeDef struct {
	Namespace string
	Name      string

	Visibility metadata.Visibility

	IsInterface      bool
	IsAbstract       bool
	IsSealed         bool
	IsValueType      bool
	IsEnum           bool
	IsExplicitLayout bool

	// Extends is the parent's TypeDefOrRef token; nil token for Object
	// and interfaces.
	Extends metadata.Token

	// Row ranges into the Field and MethodDef tables (1-based, half-open).
	FieldFirst  int
	FieldCount  int
	MethodFirst int
	MethodCount int

	// DeclaringRow is the 1-based TypeDef row of the enclosing type for a
	// nested type, 0 otherwise.
	DeclaringRow int

	// GenericParamCount is the arity of a generic type definition.
	GenericParamCount int
}

// RawTypeRef is one TypeRef row.
type RawTypeRef struct {
	Namespace string
	Name      string

	// AssemblyRef is the index into AssemblyRefs the reference resolves
	// through, or -1 when the scope is the current assembly (a reference
	// to a forwarded local type).
	AssemblyRef int
}

// RawField is one Field row.
type RawField struct {
	Name      string
	Signature []byte

	Static        bool
	InitOnly      bool
	Literal       bool
	RTSpecialName bool

	Visibility metadata.FieldVisibility
}

// RawMethodDef is one MethodDef row.
type RawMethodDef struct {
	Name      string
	Signature []byte

	Static        bool
	Virtual       bool
	Abstract      bool
	Final         bool
	NewSlot       bool
	HideBySig     bool
	RTSpecialName bool

	Visibility metadata.MethodVisibility
	Impl       metadata.ImplFlags
	Codegen    metadata.CodegenFlags

	Body *RawBody
}

// RawBody is a method's decoded body header plus its raw CIL bytes.
type RawBody struct {
	CIL []byte

	MaxStack   int
	InitLocals bool

	// LocalsSig is the local-variable signature blob, empty when the
	// method declares no locals.
	LocalsSig []byte

	Clauses []RawClause
}

// RawClause is one exception-table entry. CatchType is meaningful only
// for catch clauses, FilterOffset only for filter clauses.
type RawClause struct {
	Kind metadata.ClauseKind

	TryOffset     int
	TryLength     int
	HandlerOffset int
	HandlerLength int
	FilterOffset  int

	CatchType metadata.Token
}

// RawMemberRef is one MemberRef row: an imported method or field.
type RawMemberRef struct {
	// Class is the TypeDefOrRef/TypeSpec token of the declaring type.
	Class metadata.Token

	Name      string
	Signature []byte
}

// RawInterfaceImpl is one InterfaceImpl row.
type RawInterfaceImpl struct {
	// ClassRow is the 1-based TypeDef row of the implementing type.
	ClassRow int

	// Interface is the TypeDefOrRef/TypeSpec token of the implemented
	// interface.
	Interface metadata.Token
}

// RawClassLayout is one ClassLayout row.
type RawClassLayout struct {
	ClassRow    int
	PackingSize int
	ClassSize   int
}

// RawFieldLayout is one FieldLayout row: an explicit field offset.
type RawFieldLayout struct {
	FieldRow int
	Offset   int
}
