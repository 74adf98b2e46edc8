package jit

import (
	"corejit/cil"
	"corejit/layout"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// calleeFunc declares (or finds) the MIR prototype for a target method.
func (t *translation) calleeFunc(m *metadata.MethodInfo) *mir.Func {
	ret, params := methodMIRSignature(m)
	return t.mod.DeclareProto(MethodSymbol(m), ret, params...)
}

// lowerArg adapts a stack entry to a callee parameter's MIR shape.
func (t *translation) lowerArg(e stackEntry, pt *metadata.Type) mir.Value {
	switch {
	case pt.StackType == metadata.StackValueType:
		return e.v // address of the caller's copy; the callee copies in

	case pt.IsInterface():
		// Interface parameters travel as the address of a fat pair.
		pair := t.prologue.Alloca(16)
		t.storeInterface(pair, e, pt)
		return pair

	default:
		return t.coerceScalar(e, pt)
	}
}

// emitCall lowers call/callvirt: argument collection, receiver dispatch
// (direct, class-virtual, or interface), the indirect or direct call, and
// the post-call exception check.
func (t *translation) emitCall(in *cil.Instruction, virtual bool) *report.Diagnostic {
	m, d := t.resolveMethod(in.Token)
	if d != nil {
		return d
	}

	args, d := t.popN(len(m.Params))
	if d != nil {
		return d
	}

	for i, a := range args {
		if !t.rel.VerifierAssignableTo(a.typ, m.Params[i].Type) && a.typ != nil {
			return t.fail("argument %d of type %s is not assignable to %s at offset %d",
				i, typeName(a.typ), m.Params[i].Type.FullName(), t.offset)
		}
	}

	var recv stackEntry
	if !m.IsStatic() {
		if recv, d = t.pop(); d != nil {
			return d
		}
	}

	tail := t.tailPending
	t.tailPending = false

	val, d := t.emitDispatchedCall(m, recv, args, virtual && m.IsVirtual(), tail)
	if d != nil {
		return d
	}

	t.pushCallResult(m, val)
	return nil
}

// pushCallResult pushes a completed call's value (if any) in its promoted
// stack form.
func (t *translation) pushCallResult(m *metadata.MethodInfo, val mir.Value) {
	if m.ReturnType == nil {
		return
	}

	if returnsLargeValue(m) {
		// val is the retbuf address threaded by emitDispatchedCall.
		t.push(stackEntry{kind: metadata.StackValueType, typ: m.ReturnType, v: val})
		return
	}

	e := entryFor(m.ReturnType, val)
	t.push(e)
}

// emitDispatchedCall emits the call itself and returns the value slot
// (or the retbuf address for large value returns).
func (t *translation) emitDispatchedCall(m *metadata.MethodInfo, recv stackEntry, args []stackEntry, virtual, tail bool) (mir.Value, *report.Diagnostic) {
	var mirArgs []mir.Value
	var retbuf mir.Value

	if returnsLargeValue(m) {
		retbuf = t.prologue.Alloca(m.ReturnType.StackSize)
		mirArgs = append(mirArgs, retbuf)
	}

	var thisV mir.Value
	if !m.IsStatic() {
		var d *report.Diagnostic
		if thisV, d = t.lowerThis(m, recv); d != nil {
			return nil, d
		}
		mirArgs = append(mirArgs, thisV)
	}

	for i, a := range args {
		mirArgs = append(mirArgs, t.lowerArg(a, m.Params[i].Type))
	}

	var pair mir.Value

	if virtual {
		fnptr, objV, d := t.virtualSlot(m, recv)
		if d != nil {
			return nil, d
		}

		if objV != nil {
			// Interface receiver: the true object pointer replaces the
			// fat pointer in the argument list.
			idx := 0
			if retbuf != nil {
				idx = 1
			}
			mirArgs[idx] = objV
		}

		ret, params := methodMIRSignature(m)
		pair = t.b.CallIndirect(mir.FuncSig(ret, params...), fnptr, mirArgs...)
	} else {
		// A non-virtual call to a virtual method stays statically bound.
		pair = t.b.Call(t.calleeFunc(m), mirArgs...)
	}

	if tail {
		mir.MarkTail(pair)
	}

	val, d := t.afterCall(pair)
	if d != nil {
		return nil, d
	}

	if retbuf != nil {
		return retbuf, nil
	}
	return val, nil
}

// lowerThis adapts the receiver entry to the callee's hidden this
// parameter: a byref to the payload for value-type methods, the object
// pointer otherwise.
func (t *translation) lowerThis(m *metadata.MethodInfo, recv stackEntry) (mir.Value, *report.Diagnostic) {
	if m.ThisByRef {
		switch recv.kind {
		case metadata.StackByRef, metadata.StackValueType:
			return recv.v, nil
		case metadata.StackObject:
			// Calling a value-type method on a boxed receiver: unbox to
			// the payload.
			if d := t.emitNullCheck(recv.v); d != nil {
				return nil, d
			}
			return t.b.GEPConst(recv.v, layout.ObjectHeaderSize), nil
		default:
			return nil, t.fail("value-type method call on a %v receiver at offset %d", recv.kind, t.offset)
		}
	}

	switch recv.kind {
	case metadata.StackObject:
		if recv.isNull() {
			// A null literal receiver still calls; the callee faults on
			// first dereference. Constructors are exempt upstream.
			return recv.v, nil
		}
		if d := t.emitNullCheck(recv.v); d != nil {
			return nil, d
		}
		return recv.v, nil
	case metadata.StackByRef, metadata.StackValueType:
		return recv.v, nil
	default:
		return nil, t.fail("method call on a %v receiver at offset %d", recv.kind, t.offset)
	}
}

// virtualSlot computes the function pointer for a virtual dispatch. For
// interface receivers it also returns the true object pointer (the second
// half of the fat pointer) to pass as this.
func (t *translation) virtualSlot(m *metadata.MethodInfo, recv stackEntry) (mir.Value, mir.Value, *report.Diagnostic) {
	const headerWords = 8 // vtable header: owning type pointer, then slots

	if recv.isInterface() {
		// The fat pointer's first half already addresses the interface's
		// slot run within the implementer's vtable.
		if d := t.emitNullCheck(recv.v); d != nil {
			return nil, nil, d
		}

		fnptr := t.b.Load(mir.Ptr, t.b.GEPConst(recv.aux, m.VTableSlot*8))
		return fnptr, recv.v, nil
	}

	if recv.kind != metadata.StackObject {
		return nil, nil, t.fail("virtual call on a %v receiver at offset %d", recv.kind, t.offset)
	}

	if d := t.emitNullCheck(recv.v); d != nil {
		return nil, nil, d
	}

	vtblHdr := t.b.Load(mir.Ptr, recv.v)

	if m.DeclaringType.IsInterface() {
		// Object receiver, interface-declared method: the slot run's
		// offset comes from the interface-impl lookup on the receiver's
		// runtime type.
		typePtr := t.b.Load(mir.Ptr, vtblHdr)
		off := t.b.Call(t.protoIfaceSlot(), typePtr, t.typeHandle(m.DeclaringType))

		slot := t.b.Add(off, mir.ConstI64(int64(m.VTableSlot)))
		byteOff := t.b.Add(t.b.Mul(slot, mir.ConstI64(8)), mir.ConstI64(headerWords))
		fnptr := t.b.Load(mir.Ptr, t.b.GEP(vtblHdr, byteOff))
		return fnptr, nil, nil
	}

	fnptr := t.b.Load(mir.Ptr, t.b.GEPConst(vtblHdr, headerWords+m.VTableSlot*8))
	return fnptr, nil, nil
}

// emitDirectCall is the newobj constructor invocation path: a statically
// bound call on a freshly allocated instance.
func (t *translation) emitDirectCall(m *metadata.MethodInfo, instance stackEntry, args []stackEntry, tail bool) (mir.Value, *report.Diagnostic) {
	return t.emitDispatchedCall(m, instance, args, false, tail)
}

/* -------------------------------------------------------------------------- */
/* Function-pointer loads                                                     */

func (t *translation) emitLdftn(in *cil.Instruction) *report.Diagnostic {
	m, d := t.resolveMethod(in.Token)
	if d != nil {
		return d
	}

	t.push(stackEntry{
		kind: metadata.StackIntPtr,
		typ:  t.loader.Universe.IntPtr,
		v:    t.b.PtrToInt(t.calleeFunc(m).Value()),
	})
	return nil
}

func (t *translation) emitLdvirtftn(in *cil.Instruction) *report.Diagnostic {
	m, d := t.resolveMethod(in.Token)
	if d != nil {
		return d
	}

	recv, d := t.pop()
	if d != nil {
		return d
	}

	fnptr, _, d := t.virtualSlot(m, recv)
	if d != nil {
		return d
	}

	t.push(stackEntry{
		kind: metadata.StackIntPtr,
		typ:  t.loader.Universe.IntPtr,
		v:    t.b.PtrToInt(fnptr),
	})
	return nil
}
