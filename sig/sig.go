// Package sig decodes CLI binary signatures (field, method, local-variable,
// and type-spec blobs) into type-reference trees, and can re-encode a
// decoded reference back into the identical byte blob.
//
// The element-type constants below follow the fixed CLI signature
// encoding; their numeric values matter because blobs embed them
// directly.
package sig

// ElementType is a single CLI signature element-type tag.
type ElementType byte

const (
	ElementVoid    ElementType = 0x01
	ElementBoolean ElementType = 0x02
	ElementChar    ElementType = 0x03
	ElementI1      ElementType = 0x04
	ElementU1      ElementType = 0x05
	ElementI2      ElementType = 0x06
	ElementU2      ElementType = 0x07
	ElementI4      ElementType = 0x08
	ElementU4      ElementType = 0x09
	ElementI8      ElementType = 0x0A
	ElementU8      ElementType = 0x0B
	ElementR4      ElementType = 0x0C
	ElementR8      ElementType = 0x0D
	ElementString  ElementType = 0x0E
	ElementPtr     ElementType = 0x0F
	ElementByRef   ElementType = 0x10
	ElementValueType ElementType = 0x11
	ElementClass   ElementType = 0x12
	ElementVar     ElementType = 0x13
	ElementArray   ElementType = 0x14
	ElementGenericInst ElementType = 0x15
	ElementTypedByRef  ElementType = 0x16
	ElementI       ElementType = 0x18
	ElementU       ElementType = 0x19
	ElementFnPtr   ElementType = 0x1B
	ElementObject  ElementType = 0x1C
	ElementSZArray ElementType = 0x1D
	ElementMVar    ElementType = 0x1E
	ElementCModReqd ElementType = 0x1F
	ElementCModOpt  ElementType = 0x20
	ElementSentinel ElementType = 0x41
	ElementPinned   ElementType = 0x45
)

// CallingConvention is the low nibble of a method signature's leading byte.
type CallingConvention byte

const (
	CallDefault   CallingConvention = 0x00
	CallVarArg    CallingConvention = 0x05
	CallGeneric   CallingConvention = 0x10
)

const (
	flagHasThis      byte = 0x20
	flagExplicitThis byte = 0x40
	flagGeneric      byte = 0x10
)

// CustomMod preserves a CMOD_OPT/CMOD_REQD annotation attached to a type
// reference within a signature. Custom modifiers are carried through for
// round-trip encoding even though the verifier does not otherwise
// interpret them.
type CustomMod struct {
	Required bool
	Type     Token
}

// Token is the resolution-context-relative token embedded in a signature;
// kept distinct from metadata.Token so this package has no import-cycle
// dependency on the loader's resolution logic, only on metadata.Token's
// shape (they are bit-identical; sig.Token(t) round-trips through
// metadata.Token(t)).
type Token uint32

// MethodSig is a fully decoded method signature.
type MethodSig struct {
	Conv        CallingConvention
	HasThis     bool
	ExplicitThis bool
	GenericParamCount int

	RetMods []CustomMod
	RetType *TypeRef

	Params []*TypeRef
}

// TypeRef is a decoded signature type reference: a tree shaped exactly
// like the signature grammar, not yet materialized into a *metadata.Type
// (materialization is the loader's job, via ResolveType).
type TypeRef struct {
	Elem ElementType

	// Primitive forms carry no further data beyond Elem.

	// CLASS / VALUETYPE.
	TypeToken Token

	// SZARRAY / PTR / BYREF element.
	Inner *TypeRef

	// ARRAY shape.
	ArrayRank        int
	ArraySizes       []int
	ArrayLoBounds    []int

	// VAR / MVAR index.
	GenericParamIndex int

	// GENERICINST.
	GenericDef  *TypeRef
	GenericArgs []*TypeRef

	Mods []CustomMod
}
