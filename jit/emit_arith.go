package jit

import (
	"corejit/cil"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// unifyNumeric applies the implicit-conversion matrix for binary numeric
// operands: Int32×Int32→Int32, Int32×IntPtr→IntPtr (sign-extending the
// Int32 side), IntPtr×IntPtr→IntPtr, Int64×Int64→Int64, Single/Double
// promotion within Float. Any other pairing fails verification.
func (t *translation) unifyNumeric(a, b stackEntry, intOnly bool) (mir.Value, mir.Value, stackEntry, *report.Diagnostic) {
	u := t.loader.Universe
	var out stackEntry

	switch {
	case a.kind == metadata.StackInt32 && b.kind == metadata.StackInt32:
		out = stackEntry{kind: metadata.StackInt32, typ: u.Int32}
		return a.v, b.v, out, nil

	case a.kind == metadata.StackInt32 && b.kind == metadata.StackIntPtr:
		out = stackEntry{kind: metadata.StackIntPtr, typ: u.IntPtr}
		return t.b.SExt(a.v, mir.I64), b.v, out, nil

	case a.kind == metadata.StackIntPtr && b.kind == metadata.StackInt32:
		out = stackEntry{kind: metadata.StackIntPtr, typ: u.IntPtr}
		return a.v, t.b.SExt(b.v, mir.I64), out, nil

	case a.kind == metadata.StackIntPtr && b.kind == metadata.StackIntPtr:
		out = stackEntry{kind: metadata.StackIntPtr, typ: u.IntPtr}
		return a.v, b.v, out, nil

	case a.kind == metadata.StackInt64 && b.kind == metadata.StackInt64:
		out = stackEntry{kind: metadata.StackInt64, typ: u.Int64}
		return a.v, b.v, out, nil

	case a.kind == metadata.StackFloat && b.kind == metadata.StackFloat:
		if intOnly {
			break
		}

		av, bv := a.v, b.v
		if a.wide != b.wide {
			// The Single operand widens; a double never narrows.
			if !a.wide {
				av = t.b.FPExt(av, mir.F64)
			}
			if !b.wide {
				bv = t.b.FPExt(bv, mir.F64)
			}
			out = stackEntry{kind: metadata.StackFloat, typ: u.Double, wide: true}
		} else if a.wide {
			out = stackEntry{kind: metadata.StackFloat, typ: u.Double, wide: true}
		} else {
			out = stackEntry{kind: metadata.StackFloat, typ: u.Single}
		}
		return av, bv, out, nil
	}

	return nil, nil, out, t.fail("invalid operand pair (%v, %v) for binary operation at offset %d",
		a.kind, b.kind, t.offset)
}

func (t *translation) emitBinary(op cil.Op, intOnly bool) *report.Diagnostic {
	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	a, b := ops[0], ops[1]

	av, bv, out, d := t.unifyNumeric(a, b, intOnly)
	if d != nil {
		return d
	}

	if out.kind == metadata.StackFloat {
		switch op {
		case cil.OpAdd:
			out.v = t.b.FAdd(av, bv)
		case cil.OpSub:
			out.v = t.b.FSub(av, bv)
		case cil.OpMul:
			out.v = t.b.FMul(av, bv)
		}
	} else {
		switch op {
		case cil.OpAdd:
			out.v = t.b.Add(av, bv)
		case cil.OpSub:
			out.v = t.b.Sub(av, bv)
		case cil.OpMul:
			out.v = t.b.Mul(av, bv)
		case cil.OpAnd:
			out.v = t.b.And(av, bv)
		case cil.OpOr:
			out.v = t.b.Or(av, bv)
		case cil.OpXor:
			out.v = t.b.Xor(av, bv)
		}
	}

	t.push(out)
	return nil
}

// emitDivide lowers div/rem with the runtime divide-by-zero guard on the
// denominator.
func (t *translation) emitDivide(op cil.Op, unsigned bool) *report.Diagnostic {
	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	a, b := ops[0], ops[1]

	intOnly := unsigned
	av, bv, out, d := t.unifyNumeric(a, b, intOnly)
	if d != nil {
		return d
	}

	if out.kind == metadata.StackFloat {
		// IEEE division by zero yields inf/nan, not an exception.
		switch op {
		case cil.OpDiv:
			out.v = t.b.FDiv(av, bv)
		case cil.OpRem:
			out.v = t.b.FRem(av, bv)
		}
		t.push(out)
		return nil
	}

	zero := mir.ConstI64(0)
	if out.kind == metadata.StackInt32 {
		zero = mir.ConstI32(0)
	}

	isZero := t.b.ICmp(mir.CmpEQ, false, bv, zero)
	throwBlk := t.fn.NewBlock("divzero")
	contBlk := t.fn.NewBlock("divok")
	t.b.CondBr(isZero, throwBlk, contBlk)

	t.b.SetBlock(throwBlk)
	if d := t.emitThrowNew(t.loader.Universe.DivideByZeroException); d != nil {
		return d
	}

	t.b.SetBlock(contBlk)

	switch op {
	case cil.OpDiv:
		out.v = t.b.SDiv(av, bv)
	case cil.OpDivUn:
		out.v = t.b.UDiv(av, bv)
	case cil.OpRem:
		out.v = t.b.SRem(av, bv)
	case cil.OpRemUn:
		out.v = t.b.URem(av, bv)
	}

	t.push(out)
	return nil
}

func (t *translation) emitShift(op cil.Op) *report.Diagnostic {
	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	val, amt := ops[0], ops[1]

	switch val.kind {
	case metadata.StackInt32, metadata.StackInt64, metadata.StackIntPtr:
	default:
		return t.fail("shift of a %v operand at offset %d", val.kind, t.offset)
	}

	// The shift amount coerces to the value's width.
	amtV := amt.v
	switch {
	case amt.kind == metadata.StackInt32 && val.kind != metadata.StackInt32:
		amtV = t.b.ZExt(amtV, mir.I64)
	case amt.kind != metadata.StackInt32 && val.kind == metadata.StackInt32:
		amtV = t.b.Trunc(amtV, mir.I32)
	case amt.kind != metadata.StackInt32 && amt.kind != metadata.StackIntPtr && amt.kind != metadata.StackInt64:
		return t.fail("shift amount must be an integer at offset %d", t.offset)
	}

	out := val
	switch op {
	case cil.OpShl:
		out.v = t.b.Shl(val.v, amtV)
	case cil.OpShr:
		out.v = t.b.AShr(val.v, amtV)
	case cil.OpShrUn:
		out.v = t.b.LShr(val.v, amtV)
	}

	t.push(out)
	return nil
}

func (t *translation) emitUnary(op cil.Op) *report.Diagnostic {
	e, d := t.pop()
	if d != nil {
		return d
	}

	switch op {
	case cil.OpNeg:
		switch e.kind {
		case metadata.StackInt32, metadata.StackInt64, metadata.StackIntPtr, metadata.StackFloat:
			e.v = t.b.Neg(e.v)
		default:
			return t.fail("neg of a %v operand at offset %d", e.kind, t.offset)
		}

	case cil.OpNot:
		switch e.kind {
		case metadata.StackInt32, metadata.StackInt64, metadata.StackIntPtr:
			e.v = t.b.Not(e.v)
		default:
			return t.fail("not of a %v operand at offset %d", e.kind, t.offset)
		}
	}

	t.push(e)
	return nil
}

// emitCheckedBinary lowers the .ovf arithmetic family through pair-
// returning runtime helpers so overflow surfaces as a managed
// OverflowException via the ordinary post-call check.
func (t *translation) emitCheckedBinary(op cil.Op) *report.Diagnostic {
	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	a, b := ops[0], ops[1]

	av, bv, out, d := t.unifyNumeric(a, b, true)
	if d != nil {
		return d
	}

	var name string
	switch op {
	case cil.OpAddOvf:
		name = "rt_add_ovf"
	case cil.OpSubOvf:
		name = "rt_sub_ovf"
	case cil.OpMulOvf:
		name = "rt_mul_ovf"
	case cil.OpAddOvfUn:
		name = "rt_add_ovf_un"
	case cil.OpSubOvfUn:
		name = "rt_sub_ovf_un"
	case cil.OpMulOvfUn:
		name = "rt_mul_ovf_un"
	}

	scalar := out.mirType()
	if out.kind == metadata.StackInt32 {
		name += "_i4"
	} else {
		name += "_i8"
	}

	helper := t.mod.DeclareProto(name, mir.RetPairType(scalar), scalar, scalar)
	pair := t.b.Call(helper, av, bv)
	val, d := t.afterCall(pair)
	if d != nil {
		return d
	}

	out.v = val
	t.push(out)
	return nil
}

/* -------------------------------------------------------------------------- */
/* Conversions                                                                */

// convTarget describes one conv.* destination shape.
type convTarget struct {
	kind     metadata.StackKind
	bits     int
	unsigned bool
	isFloat  bool
	wide     bool
}

func convTargetFor(op cil.Op) convTarget {
	switch op {
	case cil.OpConvI1, cil.OpConvOvfI1:
		return convTarget{kind: metadata.StackInt32, bits: 8}
	case cil.OpConvU1, cil.OpConvOvfU1:
		return convTarget{kind: metadata.StackInt32, bits: 8, unsigned: true}
	case cil.OpConvI2, cil.OpConvOvfI2:
		return convTarget{kind: metadata.StackInt32, bits: 16}
	case cil.OpConvU2, cil.OpConvOvfU2:
		return convTarget{kind: metadata.StackInt32, bits: 16, unsigned: true}
	case cil.OpConvI4, cil.OpConvOvfI4:
		return convTarget{kind: metadata.StackInt32, bits: 32}
	case cil.OpConvU4, cil.OpConvOvfU4:
		return convTarget{kind: metadata.StackInt32, bits: 32, unsigned: true}
	case cil.OpConvI8, cil.OpConvOvfI8:
		return convTarget{kind: metadata.StackInt64, bits: 64}
	case cil.OpConvU8, cil.OpConvOvfU8:
		return convTarget{kind: metadata.StackInt64, bits: 64, unsigned: true}
	case cil.OpConvI, cil.OpConvOvfI:
		return convTarget{kind: metadata.StackIntPtr, bits: 64}
	case cil.OpConvU, cil.OpConvOvfU:
		return convTarget{kind: metadata.StackIntPtr, bits: 64, unsigned: true}
	case cil.OpConvR4:
		return convTarget{kind: metadata.StackFloat, isFloat: true}
	case cil.OpConvR8, cil.OpConvRUn:
		return convTarget{kind: metadata.StackFloat, isFloat: true, wide: true}
	}
	return convTarget{}
}

func (t *translation) convResultType(tgt convTarget, op cil.Op) *metadata.Type {
	u := t.loader.Universe
	switch op {
	case cil.OpConvI1, cil.OpConvOvfI1:
		return u.SByte
	case cil.OpConvU1, cil.OpConvOvfU1:
		return u.Byte
	case cil.OpConvI2, cil.OpConvOvfI2:
		return u.Int16
	case cil.OpConvU2, cil.OpConvOvfU2:
		return u.UInt16
	case cil.OpConvI4, cil.OpConvOvfI4:
		return u.Int32
	case cil.OpConvU4, cil.OpConvOvfU4:
		return u.UInt32
	case cil.OpConvI8, cil.OpConvOvfI8:
		return u.Int64
	case cil.OpConvU8, cil.OpConvOvfU8:
		return u.UInt64
	case cil.OpConvI, cil.OpConvOvfI:
		return u.IntPtr
	case cil.OpConvU, cil.OpConvOvfU:
		return u.UIntPtr
	case cil.OpConvR4:
		return u.Single
	default:
		return u.Double
	}
}

func (t *translation) emitConv(op cil.Op, checked bool) *report.Diagnostic {
	e, d := t.pop()
	if d != nil {
		return d
	}

	tgt := convTargetFor(op)

	// Source normalizes to an integer of its stack width, or stays float.
	var src mir.Value
	srcIsFloat := e.kind == metadata.StackFloat

	switch e.kind {
	case metadata.StackInt32, metadata.StackInt64, metadata.StackIntPtr:
		src = e.v
	case metadata.StackFloat:
		src = e.v
	case metadata.StackObject, metadata.StackByRef:
		// conv.i/conv.u over a pointer reinterprets it as native int.
		if tgt.kind != metadata.StackIntPtr {
			return t.fail("conversion of a %v operand to a non-native integer at offset %d", e.kind, t.offset)
		}
		src = t.b.PtrToInt(e.v)
		srcIsFloat = false
	default:
		return t.fail("conversion of a %v operand at offset %d", e.kind, t.offset)
	}

	if tgt.isFloat {
		var out mir.Value
		fty := mir.F32
		if tgt.wide {
			fty = mir.F64
		}

		switch {
		case srcIsFloat && e.wide && !tgt.wide:
			out = t.b.FPTrunc(src, fty)
		case srcIsFloat && !e.wide && tgt.wide:
			out = t.b.FPExt(src, fty)
		case srcIsFloat:
			out = src
		case op == cil.OpConvRUn:
			out = t.b.UIToFP(src, fty)
		default:
			out = t.b.SIToFP(src, fty)
		}

		t.push(stackEntry{kind: metadata.StackFloat, typ: t.convResultType(tgt, op), wide: tgt.wide, v: out})
		return nil
	}

	// Float sources convert to a native-width integer first, then narrow:
	// the float-to-int instruction yields a full word.
	if srcIsFloat {
		if tgt.unsigned {
			src = t.b.FPToUI(src, mir.I64)
		} else {
			src = t.b.FPToSI(src, mir.I64)
		}
		e.kind = metadata.StackInt64
	}

	if checked {
		if d := t.emitOverflowCheck(src, e.kind, tgt); d != nil {
			return d
		}
	}

	out := t.narrowInteger(src, e.kind, tgt)
	t.push(stackEntry{kind: tgt.kind, typ: t.convResultType(tgt, op), v: out})
	return nil
}

// narrowInteger truncates/extends an integer to the target shape, then
// re-extends small targets back to their Int32 stack form with the
// target's signedness.
func (t *translation) narrowInteger(src mir.Value, srcKind metadata.StackKind, tgt convTarget) mir.Value {
	srcIs64 := srcKind != metadata.StackInt32

	switch tgt.bits {
	case 8, 16:
		nt := mir.I8
		if tgt.bits == 16 {
			nt = mir.I16
		}

		narrow := t.b.Trunc(src, nt)
		if tgt.unsigned {
			return t.b.ZExt(narrow, mir.I32)
		}
		return t.b.SExt(narrow, mir.I32)

	case 32:
		if srcIs64 {
			return t.b.Trunc(src, mir.I32)
		}
		return src

	default: // 64
		if srcIs64 {
			return src
		}
		if tgt.unsigned {
			return t.b.ZExt(src, mir.I64)
		}
		return t.b.SExt(src, mir.I64)
	}
}

// emitOverflowCheck guards a checked conversion with an inline range test
// that raises OverflowException.
func (t *translation) emitOverflowCheck(src mir.Value, srcKind metadata.StackKind, tgt convTarget) *report.Diagnostic {
	var lo, hi int64
	switch {
	case tgt.bits == 8 && tgt.unsigned:
		lo, hi = 0, 255
	case tgt.bits == 8:
		lo, hi = -128, 127
	case tgt.bits == 16 && tgt.unsigned:
		lo, hi = 0, 65535
	case tgt.bits == 16:
		lo, hi = -32768, 32767
	case tgt.bits == 32 && tgt.unsigned:
		lo, hi = 0, 4294967295
	case tgt.bits == 32:
		lo, hi = -2147483648, 2147483647
	default:
		if !tgt.unsigned {
			return nil // i64/native target over a signed word never overflows here
		}
		lo, hi = 0, 0 // unsigned target: reject negatives only
	}

	mk := func(v int64) mir.Value {
		if srcKind == metadata.StackInt32 {
			return mir.ConstI32(int32(v))
		}
		return mir.ConstI64(v)
	}

	var outOfRange mir.Value
	if tgt.bits == 64 || (tgt.bits == 32 && tgt.unsigned && srcKind == metadata.StackInt32) {
		// The unsigned 32-bit upper bound does not fit an i32 constant;
		// over an Int32 source only negative values are out of range.
		outOfRange = t.b.ICmp(mir.CmpLT, false, src, mk(0))
	} else {
		below := t.b.ICmp(mir.CmpLT, false, src, mk(lo))
		above := t.b.ICmp(mir.CmpGT, false, src, mk(hi))
		outOfRange = t.b.Or(below, above)
	}

	throwBlk := t.fn.NewBlock("ovf")
	contBlk := t.fn.NewBlock("ovfok")
	t.b.CondBr(outOfRange, throwBlk, contBlk)

	t.b.SetBlock(throwBlk)
	if d := t.emitThrowNew(t.loader.Universe.OverflowException); d != nil {
		return d
	}

	t.b.SetBlock(contBlk)
	return nil
}

/* -------------------------------------------------------------------------- */
/* Comparisons                                                                */

// popCompare pops two operands, applies the conversion matrix, and
// returns an i1 condition.
func (t *translation) popCompare(kind mir.CmpKind, un bool) (mir.Value, *report.Diagnostic) {
	ops, d := t.popN(2)
	if d != nil {
		return nil, d
	}
	a, b := ops[0], ops[1]

	// Reference and by-ref comparisons are pointer comparisons.
	refKind := func(k metadata.StackKind) bool {
		return k == metadata.StackObject || k == metadata.StackByRef
	}
	if refKind(a.kind) && refKind(b.kind) {
		return t.b.ICmp(kind, un, t.b.PtrToInt(a.v), t.b.PtrToInt(b.v)), nil
	}

	av, bv, out, d := t.unifyNumeric(a, b, false)
	if d != nil {
		return nil, d
	}

	if out.kind == metadata.StackFloat {
		return t.b.FCmp(kind, un, av, bv), nil
	}

	return t.b.ICmp(kind, un, av, bv), nil
}

func (t *translation) emitCompare(kind mir.CmpKind, un bool) *report.Diagnostic {
	cond, d := t.popCompare(kind, un)
	if d != nil {
		return d
	}

	t.push(stackEntry{
		kind: metadata.StackInt32,
		typ:  t.loader.Universe.Int32,
		v:    t.b.ZExt(cond, mir.I32),
	})
	return nil
}
