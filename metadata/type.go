package metadata

import "sync"

// StackKind classifies a type's abstract-evaluation-stack representation.
// It is distinct from Kind: Kind describes what a
// *type* fundamentally is, StackKind describes how *values* of that type
// live on the JIT's evaluation stack.
type StackKind int

const (
	StackInt32 StackKind = iota
	StackInt64
	StackIntPtr
	StackFloat
	StackObject
	StackByRef
	StackValueType
)

// Kind enumerates what a Type fundamentally is: a type is exactly one of
// these, never two at once.
type Kind int

const (
	KindValueType Kind = iota
	KindObjectRef
	KindByRef
	KindGenericParam
)

// TypeFlags are the attribute bits carried alongside Kind.
type TypeFlags uint32

const (
	FlagInterface TypeFlags = 1 << iota
	FlagAbstract
	FlagGenericDefinition
	FlagArray
	FlagSZArray
	FlagSealed
	FlagExplicitLayout
	FlagEnum
	FlagPointer
)

func (f TypeFlags) Has(flag TypeFlags) bool { return f&flag != 0 }

// Visibility mirrors the CLI TypeAttributes visibility sub-field consumed
// by the accessibility rules.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityNotPublic
	VisibilityNestedPublic
	VisibilityNestedPrivate
	VisibilityNestedFamily
	VisibilityNestedAssembly
	VisibilityNestedFamANDAssem
	VisibilityNestedFamORAssem
)

// InterfaceImpl pairs an implemented interface with the vtable offset at
// which that interface's slots begin within the implementing type's
// vtable.
type InterfaceImpl struct {
	Interface   *Type
	VTableOffset int
}

// Type is the central metadata entity. Every Type is owned by its
// DeclaringModule's Assembly; array/byref derivatives are owned by their
// ElementType; generic instantiations are owned by their
// GenericDefinition. The type graph is a cycle-capable DAG addressed by
// pointer identity, never by ownership edges between types.
type Type struct {
	// Identity.
	DeclaringModule *Module
	Namespace       string
	Name            string
	Token           Token

	Kind  Kind
	Flags TypeFlags

	Parent *Type

	Interfaces []InterfaceImpl

	Fields  []*FieldInfo
	Methods []*MethodInfo

	// VirtualMethods is the derived, in-vtable-order list of virtual
	// methods visible on this type (inherited slots followed/overridden,
	// then any new virtual slots this type introduces).
	VirtualMethods []*MethodInfo

	Visibility Visibility

	// Generics. GenericArgs is non-empty only for an instantiation;
	// GenericParamPosition is meaningful only when Kind == KindGenericParam.
	GenericDefinition    *Type
	GenericArgs          []*Type
	GenericParamPosition int

	// instancesMu guards Instances: generic instantiations are created
	// lazily and appended to the definition's chain under the
	// definition's own monitor.
	instancesMu sync.Mutex
	Instances   []*Type

	// ElementType is set for array and by-ref types.
	ElementType *Type

	// DeclaringType is set for a nested type.
	DeclaringType *Type

	// Array/byref derivative caches. Monitor-guarded so two goroutines
	// requesting array-of(T) concurrently observe the same *Type.
	derivMu     sync.Mutex
	arrayType   *Type
	byRefType   *Type
	pointerType *Type

	// Layout, computed once during the loader's fill pass and frozen
	// thereafter.
	IsFilled bool

	StackSize      int
	StackAlign     int
	ManagedSize    int
	ManagedAlign   int
	StackType      StackKind
	ManagedPointerOffsets []int

	// VTable is sized to fit base (inherited+own virtual) slots plus the
	// slot runs reserved for each implemented interface.
	VTable []*MethodInfo
}

// IsValueType, IsObjectRef, IsByRef, IsGenericParam are convenience
// predicates over Kind, kept because callers read far better with them
// than with repeated `.Kind ==` comparisons.
func (t *Type) IsValueType() bool    { return t.Kind == KindValueType }
func (t *Type) IsObjectRef() bool    { return t.Kind == KindObjectRef }
func (t *Type) IsByRef() bool        { return t.Kind == KindByRef }
func (t *Type) IsGenericParam() bool { return t.Kind == KindGenericParam }
func (t *Type) IsInterface() bool    { return t.Flags.Has(FlagInterface) }
func (t *Type) IsArray() bool        { return t.Flags.Has(FlagArray) || t.Flags.Has(FlagSZArray) }
func (t *Type) IsEnum() bool         { return t.Flags.Has(FlagEnum) }

// FullName returns the dotted namespace-qualified name used in diagnostics.
func (t *Type) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}

	return t.Namespace + "." + t.Name
}

// IsSubtypeOf walks the Parent chain (ignoring interfaces) looking for
// ancestor. Used by compatible-with in the verify package.
func (t *Type) IsSubtypeOf(ancestor *Type) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}

	return false
}

// ImplementsInterface reports whether t directly or transitively (via its
// base chain) implements iface, and returns the vtable offset at which
// iface's slots begin on t if so.
func (t *Type) ImplementsInterface(iface *Type) (int, bool) {
	for cur := t; cur != nil; cur = cur.Parent {
		for _, impl := range cur.Interfaces {
			if impl.Interface == iface {
				return impl.VTableOffset, true
			}
		}
	}

	return 0, false
}
