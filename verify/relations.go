// Package verify implements the pure type-relation functions and
// accessibility rules the JIT's verification pass is built on: the
// underlying/reduced/verification/intermediate type canonicalizations and
// the compatible-with / assignable-to lattice over them.
//
// Everything in this package is a pure function over already-materialized
// metadata; nothing here mutates a Type or performs resolution.
package verify

import (
	"corejit/metadata"
)

// Relations bundles the Universe the canonicalization functions collapse
// into. A Relations value is cheap and stateless; the loader creates one
// per process and hands it to every JIT translator.
type Relations struct {
	U *metadata.Universe
}

// UnderlyingType returns t's element type if t is an enum, else t itself.
func (r Relations) UnderlyingType(t *metadata.Type) *metadata.Type {
	if t.IsEnum() && t.ElementType != nil {
		return t.ElementType
	}

	return t
}

// ReducedType applies UnderlyingType and then collapses each unsigned
// integer type to the signed type of the same width.
func (r Relations) ReducedType(t *metadata.Type) *metadata.Type {
	t = r.UnderlyingType(t)

	switch t {
	case r.U.Byte:
		return r.U.SByte
	case r.U.UInt16:
		return r.U.Int16
	case r.U.UInt32:
		return r.U.Int32
	case r.U.UInt64:
		return r.U.Int64
	case r.U.UIntPtr:
		return r.U.IntPtr
	}

	return t
}

// VerificationType applies ReducedType and then collapses Boolean to SByte
// and Char to Int16. For a by-ref type the canonicalization recurses into
// the referent: verification-type(U&) = verification-type(U)&.
func (r Relations) VerificationType(t *metadata.Type) *metadata.Type {
	if t.IsByRef() {
		return r.VerificationType(t.ElementType).ByRefOf()
	}

	t = r.ReducedType(t)

	switch t {
	case r.U.Boolean:
		return r.U.SByte
	case r.U.Char:
		return r.U.Int16
	}

	return t
}

// IntermediateType applies VerificationType and then promotes the small
// integer types to Int32, matching the evaluation stack's small-int
// promotion.
func (r Relations) IntermediateType(t *metadata.Type) *metadata.Type {
	t = r.VerificationType(t)

	switch t {
	case r.U.SByte, r.U.Int16:
		return r.U.Int32
	}

	return t
}

// directBase returns the type the compatibility rules treat as t's direct
// base: Array for array types, Object for interfaces and plain object
// references, ValueType for value types, else the declared parent.
func (r Relations) directBase(t *metadata.Type) *metadata.Type {
	switch {
	case t.IsArray():
		return r.U.Array
	case t.IsInterface():
		return r.U.Object
	case t.IsValueType():
		return r.U.ValueType
	default:
		return t.Parent
	}
}

// ArrayElementCompatible implements array-element-compatible-with: the
// underlying types are compatible-with, or they share the same
// verification type.
func (r Relations) ArrayElementCompatible(t, u *metadata.Type) bool {
	ut, uu := r.UnderlyingType(t), r.UnderlyingType(u)

	if r.CompatibleWith(ut, uu) {
		return true
	}

	return r.VerificationType(ut) == r.VerificationType(uu)
}

// PointerElementCompatible implements pointer-element-compatible-with:
// equal verification types, nothing weaker.
func (r Relations) PointerElementCompatible(t, u *metadata.Type) bool {
	return r.VerificationType(t) == r.VerificationType(u)
}

// CompatibleWith implements the compatible-with relation. It is reflexive
// and, for reference types, follows the inheritance and interface graphs;
// for arrays and by-refs it recurses into element compatibility.
func (r Relations) CompatibleWith(t, u *metadata.Type) bool {
	if t == u {
		return true
	}

	if t == nil || u == nil {
		return false
	}

	if t.IsObjectRef() {
		if r.directBase(t) == u {
			return true
		}

		// Interfaces implemented anywhere on t's base chain.
		if u.IsInterface() {
			if _, ok := t.ImplementsInterface(u); ok {
				return true
			}
		}

		// Walk the base chain.
		for cur := t.Parent; cur != nil; cur = cur.Parent {
			if cur == u {
				return true
			}
		}
	}

	if t.IsArray() && u.IsArray() {
		return r.ArrayElementCompatible(t.ElementType, u.ElementType)
	}

	if t.IsByRef() && u.IsByRef() {
		return r.PointerElementCompatible(t.ElementType, u.ElementType)
	}

	return false
}

// AssignableTo implements assignable-to: identity, equal intermediate
// types, compatible-with, or null assigned into any object reference
// (represented by a nil source type).
func (r Relations) AssignableTo(t, u *metadata.Type) bool {
	if t == nil {
		// The null stack entry. Assignable to any object reference type.
		return u != nil && (u.IsObjectRef() || u.IsInterface())
	}

	if t == u {
		return true
	}

	if r.IntermediateType(t) == r.IntermediateType(u) {
		return true
	}

	return r.CompatibleWith(t, u)
}

// VerifierAssignableTo implements verifier-assignable-to: assignable-to
// over verification types.
func (r Relations) VerifierAssignableTo(t, u *metadata.Type) bool {
	if t == nil {
		return r.AssignableTo(nil, u)
	}

	return r.AssignableTo(r.VerificationType(t), r.VerificationType(u))
}

// Merge computes the common verifier-assignable supertype of two stack
// entry types used when joining control-flow edges: U is s if t is
// verifier-assignable-to s, else t if s is verifier-assignable-to t. The
// boolean result is false when no merge exists.
func (r Relations) Merge(t, s *metadata.Type) (*metadata.Type, bool) {
	if r.VerifierAssignableTo(t, s) {
		return s, true
	}

	if r.VerifierAssignableTo(s, t) {
		return t, true
	}

	return nil, false
}
