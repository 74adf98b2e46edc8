// Package mir is the runtime's construction surface for the external code
// generator: module/function/prototype creation, instruction appending,
// zero-initialized (bss) definitions, external symbol import/export, and
// module linking with post-link function address resolution.
//
// The concrete representation is LLVM IR built with github.com/llir/llvm;
// the JIT translator never imports llir directly and speaks only the
// types and builder in this package.
package mir

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Type and Value are the MIR-level type and operand handles. They alias
// the underlying llir kinds so values flow through without conversion
// while keeping llir out of every other package's import graph.
type (
	Type  = types.Type
	Value = value.Value
)

// The fixed scalar types MIR instructions operate on.
var (
	I1  = types.I1
	I8  = types.I8
	I16 = types.I16
	I32 = types.I32
	I64 = types.I64
	F32 = types.Float
	F64 = types.Double

	// Ptr is the untyped byte pointer every object, byref, and vtable
	// reference lowers to.
	Ptr = types.NewPointer(types.I8)

	Void = types.Void
)

// RetPairType is the two-slot return convention: every compiled method
// returns the in-flight exception pointer (null on normal return) plus
// the declared return value.
func RetPairType(val Type) *types.StructType {
	if val == nil || val.Equal(types.Void) {
		// Void methods still return the exception slot; the value slot is
		// carried as a dummy word so every call site shares one shape.
		val = types.I64
	}

	return types.NewStruct(Ptr, val)
}

// FuncSig builds a function type from a return type and parameter types.
// A nil ret means void at the MIR level (used for runtime helpers that
// return nothing, not for managed methods, which always return a pair).
func FuncSig(ret Type, params ...Type) *types.FuncType {
	if ret == nil {
		ret = types.Void
	}

	return types.NewFunc(ret, params...)
}

// PointerTo wraps a type in a pointer.
func PointerTo(t Type) Type {
	return types.NewPointer(t)
}

// IsFloatType reports whether t is one of the two float scalars.
func IsFloatType(t Type) bool {
	return t.Equal(types.Float) || t.Equal(types.Double)
}
