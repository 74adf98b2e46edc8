package jit

import (
	"corejit/cil"
	"corejit/layout"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// arrayTypeOf materializes (and lays out, on first use) the SZArray type
// over an element type.
func (t *translation) arrayTypeOf(elem *metadata.Type) *metadata.Type {
	arr := elem.ArrayOf()
	if !arr.IsFilled {
		layout.FillArrayType(arr, t.loader.Universe)
	}
	return arr
}

func (t *translation) emitNewarr(in *cil.Instruction) *report.Diagnostic {
	elem, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	count, d := t.pop()
	if d != nil {
		return d
	}

	var count64 mir.Value
	switch count.kind {
	case metadata.StackInt32:
		count64 = t.b.SExt(count.v, mir.I64)
	case metadata.StackIntPtr, metadata.StackInt64:
		count64 = count.v
	default:
		return t.fail("newarr length of kind %v at offset %d", count.kind, t.offset)
	}

	arr := t.arrayTypeOf(elem)

	size := t.b.Add(
		mir.ConstI64(int64(layout.ArrayDataOffset)),
		t.b.Mul(count64, mir.ConstI64(int64(elemStackSize(elem)))),
	)

	obj, d := t.allocObject(arr, size)
	if d != nil {
		return d
	}

	t.b.Store(count64, t.b.GEPConst(obj, layout.ArrayLengthOffset))

	t.push(stackEntry{kind: metadata.StackObject, typ: arr, v: obj})
	return nil
}

func (t *translation) emitLdlen() *report.Diagnostic {
	arr, d := t.pop()
	if d != nil {
		return d
	}

	if arr.kind != metadata.StackObject {
		return t.fail("ldlen on a %v operand at offset %d", arr.kind, t.offset)
	}

	if d := t.emitNullCheck(arr.v); d != nil {
		return d
	}

	length := t.b.Load(mir.I64, t.b.GEPConst(arr.v, layout.ArrayLengthOffset))
	t.push(stackEntry{kind: metadata.StackIntPtr, typ: t.loader.Universe.UIntPtr, v: length})
	return nil
}

// elementAddress emits the null check, bounds check, and address
// computation shared by every element access: base + header + i × size.
// Int32 indices sign-extend to native width before the multiply.
func (t *translation) elementAddress(arr, idx stackEntry, elem *metadata.Type) (mir.Value, *report.Diagnostic) {
	if arr.kind != metadata.StackObject {
		return nil, t.fail("array access on a %v operand at offset %d", arr.kind, t.offset)
	}

	if d := t.emitNullCheck(arr.v); d != nil {
		return nil, d
	}

	var idx64 mir.Value
	switch idx.kind {
	case metadata.StackInt32:
		idx64 = t.b.SExt(idx.v, mir.I64)
	case metadata.StackIntPtr:
		idx64 = idx.v
	default:
		return nil, t.fail("array index of kind %v at offset %d", idx.kind, t.offset)
	}

	length := t.b.Load(mir.I64, t.b.GEPConst(arr.v, layout.ArrayLengthOffset))

	// One unsigned compare covers both negative and too-large indices.
	outOfRange := t.b.ICmp(mir.CmpGE, true, idx64, length)
	oobBlk := t.fn.NewBlock("oob")
	okBlk := t.fn.NewBlock("inbounds")
	t.b.CondBr(outOfRange, oobBlk, okBlk)

	t.b.SetBlock(oobBlk)
	if d := t.emitThrowNew(t.loader.Universe.IndexOutOfRangeException); d != nil {
		return nil, d
	}

	t.b.SetBlock(okBlk)

	byteOff := t.b.Add(
		mir.ConstI64(int64(layout.ArrayDataOffset)),
		t.b.Mul(idx64, mir.ConstI64(int64(elemStackSize(elem)))),
	)
	return t.b.GEP(arr.v, byteOff), nil
}

// ldelemType maps a typed ldelem/stelem variant to the element type it
// reads or writes; nil means "use the array's element type" (ldelem.ref,
// the token forms).
func (t *translation) ldelemType(op cil.Op) *metadata.Type {
	u := t.loader.Universe
	switch op {
	case cil.OpLdelemI1, cil.OpStelemI1:
		return u.SByte
	case cil.OpLdelemU1:
		return u.Byte
	case cil.OpLdelemI2, cil.OpStelemI2:
		return u.Int16
	case cil.OpLdelemU2:
		return u.UInt16
	case cil.OpLdelemI4, cil.OpStelemI4:
		return u.Int32
	case cil.OpLdelemU4:
		return u.UInt32
	case cil.OpLdelemI8, cil.OpStelemI8:
		return u.Int64
	case cil.OpLdelemI, cil.OpStelemI:
		return u.IntPtr
	case cil.OpLdelemR4, cil.OpStelemR4:
		return u.Single
	case cil.OpLdelemR8, cil.OpStelemR8:
		return u.Double
	default:
		return nil
	}
}

func (t *translation) emitLdelem(in *cil.Instruction) *report.Diagnostic {
	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	arr, idx := ops[0], ops[1]

	elem := t.ldelemType(in.Op)
	if in.Op == cil.OpLdelem {
		if elem, d = t.resolveType(in.Token); d != nil {
			return d
		}
	}
	if elem == nil {
		// ldelem.ref: the array's own element type.
		if arr.typ == nil || arr.typ.ElementType == nil {
			return t.fail("ldelem.ref on a non-array operand at offset %d", t.offset)
		}
		elem = arr.typ.ElementType
	}

	addr, d := t.elementAddress(arr, idx, elem)
	if d != nil {
		return d
	}

	t.pushLoadOf(elem, addr)
	return nil
}

func (t *translation) emitStelem(in *cil.Instruction) *report.Diagnostic {
	ops, d := t.popN(3)
	if d != nil {
		return d
	}
	arr, idx, val := ops[0], ops[1], ops[2]

	elem := t.ldelemType(in.Op)
	if in.Op == cil.OpStelem {
		if elem, d = t.resolveType(in.Token); d != nil {
			return d
		}
	}
	if elem == nil {
		if arr.typ == nil || arr.typ.ElementType == nil {
			return t.fail("stelem.ref on a non-array operand at offset %d", t.offset)
		}
		elem = arr.typ.ElementType
	}

	if elem.IsObjectRef() || elem.IsInterface() {
		// Reference element stores go through the object barrier with
		// the element's dynamic byte offset.
		if !t.rel.VerifierAssignableTo(val.typ, elem) && val.typ != nil {
			return t.fail("stelem of a %s into a %s[] at offset %d",
				typeName(val.typ), elem.FullName(), t.offset)
		}

		// Bounds/null checks come from elementAddress; recompute the
		// byte offset for the barrier call.
		if _, d := t.elementAddress(arr, idx, elem); d != nil {
			return d
		}

		var idx64 mir.Value
		if idx.kind == metadata.StackInt32 {
			idx64 = t.b.SExt(idx.v, mir.I64)
		} else {
			idx64 = idx.v
		}
		byteOff := t.b.Add(
			mir.ConstI64(int64(layout.ArrayDataOffset)),
			t.b.Mul(idx64, mir.ConstI64(8)),
		)
		t.b.Call(t.protoGCUpdate(), arr.v, byteOff, val.v)
		return nil
	}

	addr, d := t.elementAddress(arr, idx, elem)
	if d != nil {
		return d
	}

	return t.storeValueAt(addr, val, elem, arr)
}

func (t *translation) emitLdelema(in *cil.Instruction) *report.Diagnostic {
	elem, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	arr, idx := ops[0], ops[1]

	addr, d := t.elementAddress(arr, idx, elem)
	if d != nil {
		return d
	}

	t.push(stackEntry{kind: metadata.StackByRef, typ: elem.ByRefOf(), v: addr})
	return nil
}
