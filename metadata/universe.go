package metadata

// Universe is the fixed set of primitive types every assembly sees without
// importing them explicitly: the CLI's built-in value types plus Object,
// String, and Array.
type Universe struct {
	Void    *Type
	Boolean *Type
	Char    *Type
	SByte   *Type
	Byte    *Type
	Int16   *Type
	UInt16  *Type
	Int32   *Type
	UInt32  *Type
	Int64   *Type
	UInt64  *Type
	IntPtr  *Type
	UIntPtr *Type
	Single  *Type
	Double  *Type

	Object *Type
	String *Type
	Array  *Type
	ValueType *Type
	Enum      *Type

	// Well-known exception types the JIT throws directly:
	// DivideByZeroException, NullReferenceException, IndexOutOfRangeException,
	// InvalidCastException, OutOfMemoryException, OverflowException,
	// ExecutionEngineException, ArithmeticException.
	Exception                  *Type
	SystemException            *Type
	DivideByZeroException      *Type
	NullReferenceException     *Type
	IndexOutOfRangeException   *Type
	InvalidCastException       *Type
	OutOfMemoryException       *Type
	OverflowException          *Type
	ExecutionEngineException   *Type
	ArithmeticException        *Type
}

func primitive(mod *Module, name string, stackType StackKind, size, align int) *Type {
	return &Type{
		DeclaringModule: mod,
		Namespace:       "System",
		Name:            name,
		Kind:            KindValueType,
		Visibility:      VisibilityPublic,
		StackType:       stackType,
		StackSize:       size,
		StackAlign:      size,
		ManagedSize:     size,
		ManagedAlign:    align,
		IsFilled:        true,
	}
}

// NewUniverse builds the fixed primitive-type set for the core library
// module. pointerSize is the target's native pointer width in bytes; only
// 64-bit targets are supported.
func NewUniverse(coreModule *Module, pointerSize int) *Universe {
	u := &Universe{
		Boolean: primitive(coreModule, "Boolean", StackInt32, 1, 1),
		Char:    primitive(coreModule, "Char", StackInt32, 2, 2),
		SByte:   primitive(coreModule, "SByte", StackInt32, 1, 1),
		Byte:    primitive(coreModule, "Byte", StackInt32, 1, 1),
		Int16:   primitive(coreModule, "Int16", StackInt32, 2, 2),
		UInt16:  primitive(coreModule, "UInt16", StackInt32, 2, 2),
		Int32:   primitive(coreModule, "Int32", StackInt32, 4, 4),
		UInt32:  primitive(coreModule, "UInt32", StackInt32, 4, 4),
		Int64:   primitive(coreModule, "Int64", StackInt64, 8, 8),
		UInt64:  primitive(coreModule, "UInt64", StackInt64, 8, 8),
		IntPtr:  primitive(coreModule, "IntPtr", StackIntPtr, pointerSize, pointerSize),
		UIntPtr: primitive(coreModule, "UIntPtr", StackIntPtr, pointerSize, pointerSize),
		Single:  primitive(coreModule, "Single", StackFloat, 4, 4),
		Double:  primitive(coreModule, "Double", StackFloat, 8, 8),
	}
	u.Void = &Type{DeclaringModule: coreModule, Namespace: "System", Name: "Void", Kind: KindValueType, IsFilled: true}

	u.Object = &Type{
		DeclaringModule: coreModule, Namespace: "System", Name: "Object",
		Kind: KindObjectRef, Visibility: VisibilityPublic,
		StackType: StackObject, StackSize: pointerSize, StackAlign: pointerSize,
		ManagedSize: pointerSize, ManagedAlign: pointerSize, IsFilled: true,
	}
	u.ValueType = &Type{DeclaringModule: coreModule, Namespace: "System", Name: "ValueType", Kind: KindValueType, Parent: u.Object, Visibility: VisibilityPublic}
	u.Enum = &Type{DeclaringModule: coreModule, Namespace: "System", Name: "Enum", Kind: KindValueType, Parent: u.ValueType, Visibility: VisibilityPublic}
	u.Array = &Type{
		DeclaringModule: coreModule, Namespace: "System", Name: "Array",
		Kind: KindObjectRef, Parent: u.Object, Visibility: VisibilityPublic,
		StackType: StackObject, StackSize: pointerSize, StackAlign: pointerSize,
	}
	u.String = &Type{
		DeclaringModule: coreModule, Namespace: "System", Name: "String",
		Kind: KindObjectRef, Parent: u.Object, Visibility: VisibilityPublic, Flags: FlagSealed,
		StackType: StackObject, StackSize: pointerSize, StackAlign: pointerSize,
	}

	exc := func(name string, parent *Type) *Type {
		return &Type{
			DeclaringModule: coreModule, Namespace: "System", Name: name,
			Kind: KindObjectRef, Parent: parent, Visibility: VisibilityPublic,
			StackType: StackObject, StackSize: pointerSize, StackAlign: pointerSize,
			ManagedSize: 2 * pointerSize, ManagedAlign: pointerSize, IsFilled: true,
		}
	}
	u.Exception = exc("Exception", u.Object)
	u.SystemException = exc("SystemException", u.Exception)
	u.DivideByZeroException = exc("DivideByZeroException", u.SystemException)
	u.NullReferenceException = exc("NullReferenceException", u.SystemException)
	u.IndexOutOfRangeException = exc("IndexOutOfRangeException", u.SystemException)
	u.InvalidCastException = exc("InvalidCastException", u.SystemException)
	u.OutOfMemoryException = exc("OutOfMemoryException", u.SystemException)
	u.OverflowException = exc("OverflowException", u.SystemException)
	u.ExecutionEngineException = exc("ExecutionEngineException", u.SystemException)
	u.ArithmeticException = exc("ArithmeticException", u.SystemException)

	return u
}

// ByElementName resolves one of the fixed "System.X" primitive/well-known
// names to its Universe member, used when the loader encounters a TypeRef
// to the core library by name rather than by primitive element-type code.
func (u *Universe) ByElementName(namespace, name string) (*Type, bool) {
	if namespace != "System" {
		return nil, false
	}

	switch name {
	case "Object":
		return u.Object, true
	case "String":
		return u.String, true
	case "Array":
		return u.Array, true
	case "ValueType":
		return u.ValueType, true
	case "Enum":
		return u.Enum, true
	case "Void":
		return u.Void, true
	case "Boolean":
		return u.Boolean, true
	case "Char":
		return u.Char, true
	case "SByte":
		return u.SByte, true
	case "Byte":
		return u.Byte, true
	case "Int16":
		return u.Int16, true
	case "UInt16":
		return u.UInt16, true
	case "Int32":
		return u.Int32, true
	case "UInt32":
		return u.UInt32, true
	case "Int64":
		return u.Int64, true
	case "UInt64":
		return u.UInt64, true
	case "IntPtr":
		return u.IntPtr, true
	case "UIntPtr":
		return u.UIntPtr, true
	case "Single":
		return u.Single, true
	case "Double":
		return u.Double, true
	case "Exception":
		return u.Exception, true
	case "SystemException":
		return u.SystemException, true
	case "DivideByZeroException":
		return u.DivideByZeroException, true
	case "NullReferenceException":
		return u.NullReferenceException, true
	case "IndexOutOfRangeException":
		return u.IndexOutOfRangeException, true
	case "InvalidCastException":
		return u.InvalidCastException, true
	case "OutOfMemoryException":
		return u.OutOfMemoryException, true
	case "OverflowException":
		return u.OverflowException, true
	case "ExecutionEngineException":
		return u.ExecutionEngineException, true
	case "ArithmeticException":
		return u.ArithmeticException, true
	}

	return nil, false
}
