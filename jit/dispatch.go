package jit

import (
	"corejit/cil"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// translateInstruction lowers one decoded instruction. The boolean result
// is true when the instruction terminated the current block (every edge
// already emitted), so the main loop knows fall-through ended.
func (t *translation) translateInstruction(in *cil.Instruction) (bool, *report.Diagnostic) {
	u := t.loader.Universe

	switch in.Op {
	case cil.OpNop, cil.OpBreak:
		return false, nil

	/* ---- constants ---- */

	case cil.OpLdnull:
		t.push(stackEntry{kind: metadata.StackObject, typ: nil, v: mir.Null()})
		return false, nil

	case cil.OpLdcI4M1, cil.OpLdcI40, cil.OpLdcI41, cil.OpLdcI42, cil.OpLdcI43,
		cil.OpLdcI44, cil.OpLdcI45, cil.OpLdcI46, cil.OpLdcI47, cil.OpLdcI48:
		n := int32(in.Op) - int32(cil.OpLdcI40)
		t.push(stackEntry{kind: metadata.StackInt32, typ: u.Int32, v: mir.ConstI32(n)})
		return false, nil

	case cil.OpLdcI4S, cil.OpLdcI4:
		t.push(stackEntry{kind: metadata.StackInt32, typ: u.Int32, v: mir.ConstI32(int32(in.Int))})
		return false, nil

	case cil.OpLdcI8:
		t.push(stackEntry{kind: metadata.StackInt64, typ: u.Int64, v: mir.ConstI64(in.Int)})
		return false, nil

	case cil.OpLdcR4:
		t.push(stackEntry{kind: metadata.StackFloat, typ: u.Single, v: mir.ConstF32(in.Float)})
		return false, nil

	case cil.OpLdcR8:
		t.push(stackEntry{kind: metadata.StackFloat, typ: u.Double, wide: true, v: mir.ConstF64(in.Float)})
		return false, nil

	case cil.OpLdstr:
		return false, t.emitLdstr(in)

	/* ---- stack shuffling ---- */

	case cil.OpDup:
		e, d := t.pop()
		if d != nil {
			return false, d
		}

		if e.kind == metadata.StackValueType {
			// Duplicate the backing buffer, not just its address.
			copyBuf := t.prologue.Alloca(e.typ.StackSize)
			t.b.Memcpy(copyBuf, e.v, e.typ.StackSize)
			t.push(e)
			dupd := e
			dupd.v = copyBuf
			t.push(dupd)
		} else {
			t.push(e)
			t.push(e)
		}
		return false, nil

	case cil.OpPop:
		_, d := t.pop()
		return false, d

	/* ---- arguments and locals ---- */

	case cil.OpLdarg0, cil.OpLdarg1, cil.OpLdarg2, cil.OpLdarg3:
		return false, t.emitLdvar(t.args, int(in.Op)-int(cil.OpLdarg0))
	case cil.OpLdargS, cil.OpLdarg:
		return false, t.emitLdvar(t.args, int(in.Int))
	case cil.OpStargS, cil.OpStarg:
		return false, t.emitStvar(t.args, int(in.Int))
	case cil.OpLdargaS, cil.OpLdarga:
		return false, t.emitLdvara(t.args, int(in.Int))

	case cil.OpLdloc0, cil.OpLdloc1, cil.OpLdloc2, cil.OpLdloc3:
		return false, t.emitLdvar(t.locals, int(in.Op)-int(cil.OpLdloc0))
	case cil.OpLdlocS, cil.OpLdloc:
		return false, t.emitLdvar(t.locals, int(in.Int))
	case cil.OpStloc0, cil.OpStloc1, cil.OpStloc2, cil.OpStloc3:
		return false, t.emitStvar(t.locals, int(in.Op)-int(cil.OpStloc0))
	case cil.OpStlocS, cil.OpStloc:
		return false, t.emitStvar(t.locals, int(in.Int))
	case cil.OpLdlocaS, cil.OpLdloca:
		return false, t.emitLdvara(t.locals, int(in.Int))

	/* ---- arithmetic ---- */

	case cil.OpAdd, cil.OpSub, cil.OpMul:
		return false, t.emitBinary(in.Op, false)
	case cil.OpDiv, cil.OpRem:
		return false, t.emitDivide(in.Op, false)
	case cil.OpDivUn, cil.OpRemUn:
		return false, t.emitDivide(in.Op, true)
	case cil.OpAnd, cil.OpOr, cil.OpXor:
		return false, t.emitBinary(in.Op, true)
	case cil.OpShl, cil.OpShr, cil.OpShrUn:
		return false, t.emitShift(in.Op)
	case cil.OpNeg, cil.OpNot:
		return false, t.emitUnary(in.Op)

	case cil.OpAddOvf, cil.OpSubOvf, cil.OpMulOvf,
		cil.OpAddOvfUn, cil.OpSubOvfUn, cil.OpMulOvfUn:
		return false, t.emitCheckedBinary(in.Op)

	/* ---- conversions ---- */

	case cil.OpConvI1, cil.OpConvU1, cil.OpConvI2, cil.OpConvU2,
		cil.OpConvI4, cil.OpConvU4, cil.OpConvI8, cil.OpConvU8,
		cil.OpConvI, cil.OpConvU, cil.OpConvR4, cil.OpConvR8, cil.OpConvRUn:
		return false, t.emitConv(in.Op, false)

	case cil.OpConvOvfI1, cil.OpConvOvfU1, cil.OpConvOvfI2, cil.OpConvOvfU2,
		cil.OpConvOvfI4, cil.OpConvOvfU4, cil.OpConvOvfI8, cil.OpConvOvfU8,
		cil.OpConvOvfI, cil.OpConvOvfU:
		return false, t.emitConv(in.Op, true)

	/* ---- comparisons ---- */

	case cil.OpCeq:
		return false, t.emitCompare(mir.CmpEQ, false)
	case cil.OpCgt:
		return false, t.emitCompare(mir.CmpGT, false)
	case cil.OpCgtUn:
		return false, t.emitCompare(mir.CmpGT, true)
	case cil.OpClt:
		return false, t.emitCompare(mir.CmpLT, false)
	case cil.OpCltUn:
		return false, t.emitCompare(mir.CmpLT, true)

	/* ---- branches ---- */

	case cil.OpBr, cil.OpBrS:
		return true, t.emitBr(in.Targets[0])

	case cil.OpBrtrue, cil.OpBrtrueS:
		return true, t.emitBrBool(in, true)
	case cil.OpBrfalse, cil.OpBrfalseS:
		return true, t.emitBrBool(in, false)

	case cil.OpBeq, cil.OpBeqS:
		return true, t.emitBrCmp(in, mir.CmpEQ, false)
	case cil.OpBneUn, cil.OpBneUnS:
		return true, t.emitBrCmp(in, mir.CmpNE, true)
	case cil.OpBgt, cil.OpBgtS:
		return true, t.emitBrCmp(in, mir.CmpGT, false)
	case cil.OpBgtUn, cil.OpBgtUnS:
		return true, t.emitBrCmp(in, mir.CmpGT, true)
	case cil.OpBge, cil.OpBgeS:
		return true, t.emitBrCmp(in, mir.CmpGE, false)
	case cil.OpBgeUn, cil.OpBgeUnS:
		return true, t.emitBrCmp(in, mir.CmpGE, true)
	case cil.OpBlt, cil.OpBltS:
		return true, t.emitBrCmp(in, mir.CmpLT, false)
	case cil.OpBltUn, cil.OpBltUnS:
		return true, t.emitBrCmp(in, mir.CmpLT, true)
	case cil.OpBle, cil.OpBleS:
		return true, t.emitBrCmp(in, mir.CmpLE, false)
	case cil.OpBleUn, cil.OpBleUnS:
		return true, t.emitBrCmp(in, mir.CmpLE, true)

	case cil.OpSwitch:
		return true, t.emitSwitch(in)

	/* ---- calls and returns ---- */

	case cil.OpCall:
		return false, t.emitCall(in, false)
	case cil.OpCallvirt:
		return false, t.emitCall(in, true)
	case cil.OpNewobj:
		return false, t.emitNewobj(in)
	case cil.OpRet:
		return true, t.emitRet()

	case cil.OpTail:
		// Folds into the next call; the loader pre-validated placement.
		t.tailPending = true
		return false, nil

	case cil.OpLdftn:
		return false, t.emitLdftn(in)
	case cil.OpLdvirtftn:
		return false, t.emitLdvirtftn(in)

	case cil.OpConstrained, cil.OpReadonly, cil.OpVolatile, cil.OpUnaligned:
		// Decode-only prefixes: constrained. resolution happens at the
		// following callvirt via the receiver's static type; volatile and
		// unaligned are memory-model hints MIR does not express.
		return false, nil

	/* ---- object model ---- */

	case cil.OpLdfld:
		return false, t.emitLdfld(in, false)
	case cil.OpLdflda:
		return false, t.emitLdfld(in, true)
	case cil.OpStfld:
		return false, t.emitStfld(in)
	case cil.OpLdsfld:
		return false, t.emitLdsfld(in, false)
	case cil.OpLdsflda:
		return false, t.emitLdsfld(in, true)
	case cil.OpStsfld:
		return false, t.emitStsfld(in)

	case cil.OpBox:
		return false, t.emitBox(in)
	case cil.OpUnbox:
		return false, t.emitUnbox(in, false)
	case cil.OpUnboxAny:
		return false, t.emitUnbox(in, true)
	case cil.OpCastclass:
		return false, t.emitCast(in, false)
	case cil.OpIsinst:
		return false, t.emitCast(in, true)

	case cil.OpInitobj:
		return false, t.emitInitobj(in)
	case cil.OpSizeof:
		return false, t.emitSizeof(in)
	case cil.OpLdobj:
		return false, t.emitLdobj(in)
	case cil.OpStobj:
		return false, t.emitStobj(in)
	case cil.OpCpobj:
		return false, t.emitCpobj(in)

	/* ---- arrays ---- */

	case cil.OpNewarr:
		return false, t.emitNewarr(in)
	case cil.OpLdlen:
		return false, t.emitLdlen()
	case cil.OpLdelema:
		return false, t.emitLdelema(in)

	case cil.OpLdelem, cil.OpLdelemI1, cil.OpLdelemU1, cil.OpLdelemI2, cil.OpLdelemU2,
		cil.OpLdelemI4, cil.OpLdelemU4, cil.OpLdelemI8, cil.OpLdelemI,
		cil.OpLdelemR4, cil.OpLdelemR8, cil.OpLdelemRef:
		return false, t.emitLdelem(in)

	case cil.OpStelem, cil.OpStelemI, cil.OpStelemI1, cil.OpStelemI2,
		cil.OpStelemI4, cil.OpStelemI8, cil.OpStelemR4, cil.OpStelemR8, cil.OpStelemRef:
		return false, t.emitStelem(in)

	/* ---- indirect loads/stores ---- */

	case cil.OpLdindI1, cil.OpLdindU1, cil.OpLdindI2, cil.OpLdindU2,
		cil.OpLdindI4, cil.OpLdindU4, cil.OpLdindI8, cil.OpLdindI,
		cil.OpLdindR4, cil.OpLdindR8, cil.OpLdindRef:
		return false, t.emitLdind(in.Op)

	case cil.OpStindI1, cil.OpStindI2, cil.OpStindI4, cil.OpStindI8,
		cil.OpStindI, cil.OpStindR4, cil.OpStindR8, cil.OpStindRef:
		return false, t.emitStind(in.Op)

	/* ---- exceptions ---- */

	case cil.OpThrow:
		return true, t.emitThrow()
	case cil.OpRethrow:
		return true, t.emitRethrow()
	case cil.OpLeave, cil.OpLeaveS:
		return true, t.emitLeave(in.Targets[0])
	case cil.OpEndfinally:
		return true, t.emitEndfinally()
	}

	return false, t.fail("opcode %s at offset %d is not supported by this translator",
		in.Info.Name, in.Offset)
}

/* -------------------------------------------------------------------------- */
/* Simple branch lowerings                                                    */

func (t *translation) emitBr(target int) *report.Diagnostic {
	if d := t.checkRegionEdge(t.offset, target, false); d != nil {
		return d
	}

	snap, d := t.snapshotAt(target)
	if d != nil {
		return d
	}

	if target <= t.offset {
		// Loop back-edge: a cooperative preemption point.
		t.b.Call(t.protoSafepoint())
	}

	t.storeToSnapshot(snap)
	t.b.Br(t.blockAt(target))
	return nil
}

// emitCondEdges spills the (already popped) stack to both the branch
// target and the fall-through leader, then emits the conditional
// terminator.
func (t *translation) emitCondEdges(cond mir.Value, in *cil.Instruction) *report.Diagnostic {
	target, next := in.Targets[0], in.Next()

	if d := t.checkRegionEdge(t.offset, target, false); d != nil {
		return d
	}
	if d := t.checkRegionEdge(t.offset, next, false); d != nil {
		return d
	}

	tsnap, d := t.snapshotAt(target)
	if d != nil {
		return d
	}
	nsnap, d := t.snapshotAt(next)
	if d != nil {
		return d
	}

	if target <= t.offset {
		t.b.Call(t.protoSafepoint())
	}

	t.storeToSnapshot(tsnap)
	t.storeToSnapshot(nsnap)
	t.b.CondBr(cond, t.blockAt(target), t.blockAt(next))
	return nil
}

func (t *translation) emitBrBool(in *cil.Instruction, wantTrue bool) *report.Diagnostic {
	e, d := t.pop()
	if d != nil {
		return d
	}

	var cond mir.Value
	switch e.kind {
	case metadata.StackInt32:
		cond = t.b.ICmp(mir.CmpNE, false, e.v, mir.ConstI32(0))
	case metadata.StackInt64, metadata.StackIntPtr:
		cond = t.b.ICmp(mir.CmpNE, false, e.v, mir.ConstI64(0))
	case metadata.StackObject, metadata.StackByRef:
		cond = t.b.ICmp(mir.CmpNE, false, t.b.PtrToInt(e.v), mir.ConstI64(0))
	default:
		return t.fail("brtrue/brfalse on a %v operand at offset %d", e.kind, t.offset)
	}

	if !wantTrue {
		cond = t.b.Not(cond)
	}

	return t.emitCondEdges(cond, in)
}

func (t *translation) emitBrCmp(in *cil.Instruction, kind mir.CmpKind, un bool) *report.Diagnostic {
	cond, d := t.popCompare(kind, un)
	if d != nil {
		return d
	}

	return t.emitCondEdges(cond, in)
}

func (t *translation) emitSwitch(in *cil.Instruction) *report.Diagnostic {
	e, d := t.pop()
	if d != nil {
		return d
	}

	if e.kind != metadata.StackInt32 && e.kind != metadata.StackIntPtr {
		return t.fail("switch selector must be int32 or native int at offset %d", t.offset)
	}

	next := in.Next()
	targets := append([]int{next}, in.Targets...)

	cases := make([]mir.SwitchCase, len(in.Targets))
	for i, tgt := range targets {
		if d := t.checkRegionEdge(t.offset, tgt, false); d != nil {
			return d
		}

		snap, d := t.snapshotAt(tgt)
		if d != nil {
			return d
		}
		t.storeToSnapshot(snap)

		if i > 0 {
			cases[i-1] = mir.SwitchCase{Index: int64(i - 1), Dst: t.blockAt(tgt)}
		}
	}

	t.b.Switch(e.v, t.blockAt(next), cases)
	return nil
}

/* -------------------------------------------------------------------------- */
/* Return                                                                     */

func (t *translation) emitRet() *report.Diagnostic {
	// ret is a documented exit edge out of any enclosing region, so no
	// region-set check applies here.
	m := t.method

	if m.ReturnType == nil {
		if len(t.stack) != 0 {
			return t.fail("ret from a void method with %d values on the stack", len(t.stack))
		}
		t.b.RetPair(t.pairType, mir.Null(), nil)
		return nil
	}

	e, d := t.pop()
	if d != nil {
		return d
	}
	if len(t.stack) != 0 {
		return t.fail("ret leaves %d extra values on the stack", len(t.stack))
	}

	if !t.rel.VerifierAssignableTo(e.typ, m.ReturnType) {
		return t.fail("return value of type %s is not assignable to declared %s",
			typeName(e.typ), m.ReturnType.FullName())
	}

	if returnsLargeValue(m) {
		t.b.Memcpy(t.retBuf, e.v, m.ReturnType.StackSize)
		t.b.RetPair(t.pairType, mir.Null(), nil)
		return nil
	}

	t.b.RetPair(t.pairType, mir.Null(), t.coerceScalar(e, m.ReturnType))
	return nil
}

// coerceScalar adapts a stack entry's MIR value to the scalar shape of a
// declared (narrower or differently-classified) type.
func (t *translation) coerceScalar(e stackEntry, want *metadata.Type) mir.Value {
	wantType := scalarType(want)

	if e.mirType().Equal(wantType) {
		return e.v
	}

	switch {
	case e.kind == metadata.StackInt32 && wantType.Equal(mir.I64):
		return t.b.SExt(e.v, mir.I64)
	case (e.kind == metadata.StackInt64 || e.kind == metadata.StackIntPtr) && wantType.Equal(mir.I32):
		return t.b.Trunc(e.v, mir.I32)
	case e.kind == metadata.StackFloat && !e.wide && wantType.Equal(mir.F64):
		return t.b.FPExt(e.v, mir.F64)
	case e.kind == metadata.StackFloat && e.wide && wantType.Equal(mir.F32):
		return t.b.FPTrunc(e.v, mir.F32)
	}

	return e.v
}

func typeName(t *metadata.Type) string {
	if t == nil {
		return "null"
	}
	return t.FullName()
}
