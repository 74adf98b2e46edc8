package jit

import (
	"corejit/cil"
	"corejit/layout"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
	"corejit/verify"
)

/* -------------------------------------------------------------------------- */
/* Token resolution                                                           */

func (t *translation) resolveType(tok metadata.Token) (*metadata.Type, *report.Diagnostic) {
	return t.loader.ResolveTypeTokenIn(t.asm, tok, t.method.DeclaringType.GenericArgs)
}

func (t *translation) resolveField(tok metadata.Token) (*metadata.FieldInfo, *report.Diagnostic) {
	f, ok := t.asm.ResolveFieldToken(tok)
	if !ok {
		return nil, report.New(report.NotFound, t.asm.Name, uint32(tok),
			"unresolvable field token at offset %d", t.offset)
	}

	if !verify.CanAccessField(t.method.DeclaringType, f) {
		return nil, t.fail("field %s.%s is not accessible from %s",
			f.DeclaringType.FullName(), f.Name, t.method.DeclaringType.FullName())
	}

	return f, nil
}

func (t *translation) resolveMethod(tok metadata.Token) (*metadata.MethodInfo, *report.Diagnostic) {
	m, ok := t.asm.ResolveMethodToken(tok)
	if !ok || m == nil {
		return nil, report.New(report.NotFound, t.asm.Name, uint32(tok),
			"unresolvable method token at offset %d", t.offset)
	}

	if !verify.CanAccessMethod(t.method.DeclaringType, m) {
		return nil, t.fail("method %s::%s is not accessible from %s",
			m.DeclaringType.FullName(), m.Name, t.method.DeclaringType.FullName())
	}

	return m, nil
}

/* -------------------------------------------------------------------------- */
/* Instance fields                                                            */

// fieldAddress computes the address of an instance field on a receiver,
// null-checking object receivers.
func (t *translation) fieldAddress(recv stackEntry, f *metadata.FieldInfo) (mir.Value, *report.Diagnostic) {
	switch recv.kind {
	case metadata.StackObject:
		if d := t.emitNullCheck(recv.v); d != nil {
			return nil, d
		}
		return t.b.GEPConst(recv.v, f.Offset), nil

	case metadata.StackByRef, metadata.StackValueType:
		// A by-ref or value-type receiver already addresses the payload;
		// field offsets on a value type are payload-relative.
		return t.b.GEPConst(recv.v, f.Offset), nil

	case metadata.StackIntPtr:
		return t.b.GEPConst(t.b.IntToPtr(recv.v), f.Offset), nil

	default:
		return nil, t.fail("field access through a %v receiver at offset %d", recv.kind, t.offset)
	}
}

func (t *translation) emitLdfld(in *cil.Instruction, wantAddr bool) *report.Diagnostic {
	f, d := t.resolveField(in.Token)
	if d != nil {
		return d
	}
	if f.IsStatic() {
		return t.fail("ldfld of static field %s at offset %d", f.Name, t.offset)
	}

	recv, d := t.pop()
	if d != nil {
		return d
	}

	addr, d := t.fieldAddress(recv, f)
	if d != nil {
		return d
	}

	if wantAddr {
		t.push(stackEntry{kind: metadata.StackByRef, typ: f.Type.ByRefOf(), v: addr})
		return nil
	}

	t.pushLoadOf(f.Type, addr)
	return nil
}

// pushLoadOf loads a value of the given declared type from an address and
// pushes its promoted stack form.
func (t *translation) pushLoadOf(ft *metadata.Type, addr mir.Value) {
	e := entryFor(ft, nil)

	switch e.kind {
	case metadata.StackValueType:
		buf := t.prologue.Alloca(ft.StackSize)
		t.b.Memcpy(buf, addr, ft.StackSize)
		e.v = buf

	case metadata.StackInt32:
		mem := narrowType(ft)
		raw := t.b.Load(mem, addr)
		switch {
		case mem.Equal(mir.I8), mem.Equal(mir.I16):
			if isUnsignedSmall(t.loader.Universe, ft) {
				e.v = t.b.ZExt(raw, mir.I32)
			} else {
				e.v = t.b.SExt(raw, mir.I32)
			}
		default:
			e.v = raw
		}

	default:
		if ft.IsInterface() {
			e.aux = t.b.Load(mir.Ptr, addr)
			e.v = t.b.Load(mir.Ptr, t.b.GEPConst(addr, 8))
		} else {
			e.v = t.b.Load(e.mirType(), addr)
		}
	}

	t.push(e)
}

func isUnsignedSmall(u *metadata.Universe, ft *metadata.Type) bool {
	return ft == u.Byte || ft == u.UInt16 || ft == u.Char || ft == u.Boolean
}

func (t *translation) emitStfld(in *cil.Instruction) *report.Diagnostic {
	f, d := t.resolveField(in.Token)
	if d != nil {
		return d
	}
	if f.IsStatic() {
		return t.fail("stfld of static field %s at offset %d", f.Name, t.offset)
	}

	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	recv, val := ops[0], ops[1]

	if !t.rel.VerifierAssignableTo(val.typ, f.Type) {
		return t.fail("cannot store a %s into field %s of type %s at offset %d",
			typeName(val.typ), f.Name, f.Type.FullName(), t.offset)
	}

	switch {
	case (f.Type.IsObjectRef() || f.Type.IsInterface()) && recv.kind == metadata.StackObject:
		// Heap-object slot: route through the gc-update barrier, which
		// takes the object and the byte offset.
		if d := t.emitNullCheck(recv.v); d != nil {
			return d
		}
		if f.Type.IsInterface() {
			addr := t.b.GEPConst(recv.v, f.Offset)
			t.storeInterface(addr, val, f.Type)
			// Barrier on the object half of the pair.
			t.b.Call(t.protoGCUpdate(), recv.v, mir.ConstI64(int64(f.Offset+8)), val.v)
			return nil
		}
		t.b.Call(t.protoGCUpdate(), recv.v, mir.ConstI64(int64(f.Offset)), val.v)
		return nil

	case f.Type.IsObjectRef() || f.Type.IsInterface():
		// Storing a reference through a by-ref: the gc-update-ref barrier
		// finds the owning object through the heap index.
		addr, d := t.fieldAddress(recv, f)
		if d != nil {
			return d
		}
		if f.Type.IsInterface() {
			t.storeInterface(addr, val, f.Type)
			t.b.Call(t.protoGCUpdateRef(), t.b.GEPConst(addr, 8), val.v)
			return nil
		}
		t.b.Call(t.protoGCUpdateRef(), addr, val.v)
		return nil

	default:
		addr, d := t.fieldAddress(recv, f)
		if d != nil {
			return d
		}
		return t.storeValueAt(addr, val, f.Type, recv)
	}
}

// storeValueAt writes a non-reference value into memory: primitives move
// with the appropriate narrowing, value types block-copy with barriers on
// their managed-pointer offsets.
func (t *translation) storeValueAt(addr mir.Value, val stackEntry, ft *metadata.Type, recv stackEntry) *report.Diagnostic {
	if val.kind == metadata.StackValueType {
		t.emitManagedCopy(addr, val.v, ft)
		return nil
	}

	t.b.Store(t.coerceToMem(val, narrowType(ft)), addr)
	return nil
}

// emitManagedCopy copies a value type: the non-pointer ranges memcpy, and
// each managed-pointer offset goes through a write barrier so the GC
// observes every reference store.
func (t *translation) emitManagedCopy(dst, src mir.Value, vt *metadata.Type) {
	offsets := vt.ManagedPointerOffsets
	if len(offsets) == 0 {
		t.b.Memcpy(dst, src, vt.ManagedSize)
		return
	}

	pos := 0
	for _, off := range offsets {
		if off > pos {
			t.b.Memcpy(t.b.GEPConst(dst, pos), t.b.GEPConst(src, pos), off-pos)
		}

		ref := t.b.Load(mir.Ptr, t.b.GEPConst(src, off))
		t.b.Call(t.protoGCUpdateRef(), t.b.GEPConst(dst, off), ref)
		pos = off + 8
	}

	if pos < vt.ManagedSize {
		t.b.Memcpy(t.b.GEPConst(dst, pos), t.b.GEPConst(src, pos), vt.ManagedSize-pos)
	}
}

/* -------------------------------------------------------------------------- */
/* Static fields                                                              */

func (t *translation) emitLdsfld(in *cil.Instruction, wantAddr bool) *report.Diagnostic {
	f, d := t.resolveField(in.Token)
	if d != nil {
		return d
	}
	if !f.IsStatic() {
		return t.fail("ldsfld of instance field %s at offset %d", f.Name, t.offset)
	}

	addr := t.staticHandle(f)

	if wantAddr {
		t.push(stackEntry{kind: metadata.StackByRef, typ: f.Type.ByRefOf(), v: addr})
		return nil
	}

	t.pushLoadOf(f.Type, addr)
	return nil
}

func (t *translation) emitStsfld(in *cil.Instruction) *report.Diagnostic {
	f, d := t.resolveField(in.Token)
	if d != nil {
		return d
	}
	if !f.IsStatic() {
		return t.fail("stsfld of instance field %s at offset %d", f.Name, t.offset)
	}

	if f.Attributes.Has(metadata.FieldInitOnly) && !t.method.Attributes.Has(metadata.MethodRTSpecialName) {
		return t.fail("init-only static field %s written outside an rt-special-name method", f.Name)
	}

	val, d := t.pop()
	if d != nil {
		return d
	}

	if !t.rel.VerifierAssignableTo(val.typ, f.Type) {
		return t.fail("cannot store a %s into static field %s at offset %d",
			typeName(val.typ), f.Name, t.offset)
	}

	addr := t.staticHandle(f)

	if f.Type.IsObjectRef() || f.Type.IsInterface() {
		// Static storage is a GC root block; the ref barrier keeps the
		// collector's remembered sets exact.
		if f.Type.IsInterface() {
			t.storeInterface(addr, val, f.Type)
			t.b.Call(t.protoGCUpdateRef(), t.b.GEPConst(addr, 8), val.v)
			return nil
		}
		t.b.Call(t.protoGCUpdateRef(), addr, val.v)
		return nil
	}

	return t.storeValueAt(addr, val, f.Type, stackEntry{})
}

/* -------------------------------------------------------------------------- */
/* Box / unbox / cast                                                         */

func (t *translation) emitBox(in *cil.Instruction) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	e, d := t.pop()
	if d != nil {
		return d
	}

	if !vt.IsValueType() {
		// Boxing a reference type is the identity operation.
		t.push(e)
		return nil
	}

	size := layout.ObjectHeaderSize + vt.ManagedSize
	obj, d := t.allocObject(vt, mir.ConstI64(int64(size)))
	if d != nil {
		return d
	}

	payload := t.b.GEPConst(obj, layout.ObjectHeaderSize)

	if e.kind == metadata.StackValueType {
		t.emitManagedCopy(payload, e.v, vt)
	} else {
		t.b.Store(t.coerceToMem(e, narrowType(vt)), payload)
	}

	t.push(stackEntry{kind: metadata.StackObject, typ: t.loader.Universe.Object, v: obj})
	return nil
}

func (t *translation) emitUnbox(in *cil.Instruction, any bool) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	e, d := t.pop()
	if d != nil {
		return d
	}

	if !vt.IsValueType() {
		if !any {
			return t.fail("unbox of a reference type %s at offset %d", vt.FullName(), t.offset)
		}
		// unbox.any of a reference type behaves as castclass.
		t.push(e)
		return t.emitCastTo(vt, false)
	}

	if d := t.emitNullCheck(e.v); d != nil {
		return d
	}

	// Type check: the box must hold exactly this value type.
	match := t.b.Call(t.protoIsInst(), e.v, t.typeHandle(vt))
	cond := t.b.ICmp(mir.CmpEQ, false, t.b.PtrToInt(match), mir.ConstI64(0))
	badBlk := t.fn.NewBlock("badunbox")
	okBlk := t.fn.NewBlock("unboxok")
	t.b.CondBr(cond, badBlk, okBlk)

	t.b.SetBlock(badBlk)
	if d := t.emitThrowNew(t.loader.Universe.InvalidCastException); d != nil {
		return d
	}

	t.b.SetBlock(okBlk)
	payload := t.b.GEPConst(e.v, layout.ObjectHeaderSize)

	if !any {
		// unbox: a controlled-mutability pointer into the box.
		t.push(stackEntry{kind: metadata.StackByRef, typ: vt.ByRefOf(), v: payload})
		return nil
	}

	t.pushLoadOf(vt, payload)
	return nil
}

func (t *translation) emitCast(in *cil.Instruction, isInst bool) *report.Diagnostic {
	target, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	return t.emitCastTo(target, isInst)
}

// emitCastTo lowers castclass/isinst over the stack top: a statically
// provable cast is a no-op, an interface target populates a fat pointer,
// and a failed castclass raises InvalidCastException while isinst yields
// null.
func (t *translation) emitCastTo(target *metadata.Type, isInst bool) *report.Diagnostic {
	e, d := t.pop()
	if d != nil {
		return d
	}

	if e.kind != metadata.StackObject {
		return t.fail("cast of a %v operand at offset %d", e.kind, t.offset)
	}

	if e.isNull() {
		// null survives both castclass and isinst.
		t.push(e)
		return nil
	}

	if target.IsInterface() {
		slice := t.b.Call(t.protoCastIface(), e.v, t.typeHandle(target))
		cond := t.b.ICmp(mir.CmpEQ, false, t.b.PtrToInt(slice), mir.ConstI64(0))

		if isInst {
			// Failed isinst to an interface yields a null fat pointer.
			failBlk := t.fn.NewBlock("isinstmiss")
			okBlk := t.fn.NewBlock("isinsthit")
			joinBlk := t.fn.NewBlock("isinstjoin")

			pair := t.prologue.Alloca(16)
			t.b.CondBr(cond, failBlk, okBlk)

			fb := mir.NewBuilder(t.fn, failBlk)
			fb.Store(mir.Null(), pair)
			fb.Store(mir.Null(), fb.GEPConst(pair, 8))
			fb.Br(joinBlk)

			ob := mir.NewBuilder(t.fn, okBlk)
			ob.Store(slice, pair)
			ob.Store(e.v, ob.GEPConst(pair, 8))
			ob.Br(joinBlk)

			t.b.SetBlock(joinBlk)
			t.push(stackEntry{
				kind: metadata.StackObject,
				typ:  target,
				aux:  t.b.Load(mir.Ptr, pair),
				v:    t.b.Load(mir.Ptr, t.b.GEPConst(pair, 8)),
			})
			return nil
		}

		badBlk := t.fn.NewBlock("badcast")
		okBlk := t.fn.NewBlock("castok")
		t.b.CondBr(cond, badBlk, okBlk)

		t.b.SetBlock(badBlk)
		if d := t.emitThrowNew(t.loader.Universe.InvalidCastException); d != nil {
			return d
		}

		t.b.SetBlock(okBlk)
		t.push(stackEntry{kind: metadata.StackObject, typ: target, aux: slice, v: e.v})
		return nil
	}

	// Statically provable upcast: no runtime test.
	if e.typ != nil && t.rel.VerifierAssignableTo(e.typ, target) {
		e.typ = target
		t.push(e)
		return nil
	}

	res := t.b.Call(t.protoIsInst(), e.v, t.typeHandle(target))

	if isInst {
		t.push(stackEntry{kind: metadata.StackObject, typ: target, v: res})
		return nil
	}

	cond := t.b.ICmp(mir.CmpEQ, false, t.b.PtrToInt(res), mir.ConstI64(0))
	badBlk := t.fn.NewBlock("badcast")
	okBlk := t.fn.NewBlock("castok")
	t.b.CondBr(cond, badBlk, okBlk)

	t.b.SetBlock(badBlk)
	if d := t.emitThrowNew(t.loader.Universe.InvalidCastException); d != nil {
		return d
	}

	t.b.SetBlock(okBlk)
	t.push(stackEntry{kind: metadata.StackObject, typ: target, v: e.v})
	return nil
}

/* -------------------------------------------------------------------------- */
/* ldstr / initobj / sizeof / ldobj / stobj / cpobj                           */

func (t *translation) emitLdstr(in *cil.Instruction) *report.Diagnostic {
	s, ok := t.asm.ResolveUserString(in.Token)
	if !ok {
		return report.New(report.NotFound, t.asm.Name, uint32(in.Token),
			"unresolvable string token at offset %d", t.offset)
	}

	data := t.mod.NewStringData(StringSymbol(t.asm.Name, in.Token.Row()), s)
	obj := t.b.Call(t.protoNewString(), data)

	// String interning happens in the runtime helper; allocation failure
	// still surfaces as OOM.
	isNull := t.b.ICmp(mir.CmpEQ, false, t.b.PtrToInt(obj), mir.ConstI64(0))
	oomBlk := t.fn.NewBlock("oom")
	okBlk := t.fn.NewBlock("strok")
	t.b.CondBr(isNull, oomBlk, okBlk)

	t.b.SetBlock(oomBlk)
	if d := t.emitThrowNew(t.loader.Universe.OutOfMemoryException); d != nil {
		return d
	}

	t.b.SetBlock(okBlk)
	t.push(stackEntry{kind: metadata.StackObject, typ: t.loader.Universe.String, v: obj})
	return nil
}

func (t *translation) emitInitobj(in *cil.Instruction) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	addr, d := t.popAddress()
	if d != nil {
		return d
	}

	if vt.IsValueType() {
		t.b.Call(t.protoMemzero(), addr.v, mir.ConstI64(int64(vt.ManagedSize)))
	} else {
		t.b.Store(mir.Null(), addr.v)
	}
	return nil
}

func (t *translation) emitSizeof(in *cil.Instruction) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	size := vt.ManagedSize
	if !vt.IsValueType() {
		size = 8
	}

	t.push(stackEntry{kind: metadata.StackInt32, typ: t.loader.Universe.UInt32, v: mir.ConstI32(int32(size))})
	return nil
}

func (t *translation) emitLdobj(in *cil.Instruction) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	addr, d := t.popAddress()
	if d != nil {
		return d
	}

	t.pushLoadOf(vt, addr.v)
	return nil
}

func (t *translation) emitStobj(in *cil.Instruction) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	addr, val := ops[0], ops[1]

	if addr.kind != metadata.StackByRef && addr.kind != metadata.StackIntPtr {
		return t.fail("stobj through a %v operand at offset %d", addr.kind, t.offset)
	}
	target := addr.v
	if addr.kind == metadata.StackIntPtr {
		target = t.b.IntToPtr(target)
	}

	if vt.IsObjectRef() || vt.IsInterface() {
		t.b.Call(t.protoGCUpdateRef(), target, val.v)
		return nil
	}

	return t.storeValueAt(target, val, vt, addr)
}

func (t *translation) emitCpobj(in *cil.Instruction) *report.Diagnostic {
	vt, d := t.resolveType(in.Token)
	if d != nil {
		return d
	}

	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	dst, src := ops[0], ops[1]

	for _, e := range []stackEntry{dst, src} {
		if e.kind != metadata.StackByRef && e.kind != metadata.StackIntPtr {
			return t.fail("cpobj operand of kind %v at offset %d", e.kind, t.offset)
		}
	}

	if vt.IsValueType() {
		t.emitManagedCopy(dst.v, src.v, vt)
	} else {
		ref := t.b.Load(mir.Ptr, src.v)
		t.b.Call(t.protoGCUpdateRef(), dst.v, ref)
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* newobj                                                                     */

func (t *translation) emitNewobj(in *cil.Instruction) *report.Diagnostic {
	ctor, d := t.resolveMethod(in.Token)
	if d != nil {
		return d
	}

	target := ctor.DeclaringType
	if target.IsArray() {
		return t.fail("newobj of an array type at offset %d; use newarr", t.offset)
	}

	args, d := t.popN(len(ctor.Params))
	if d != nil {
		return d
	}

	var instance stackEntry

	if target.IsValueType() {
		// A value-type construction zeroes a fresh stack slot and passes
		// its address as the by-ref this.
		buf := t.prologue.Alloca(target.StackSize)
		t.b.Call(t.protoMemzero(), buf, mir.ConstI64(int64(target.StackSize)))
		instance = stackEntry{kind: metadata.StackValueType, typ: target, v: buf}
	} else {
		obj, d := t.allocObject(target, mir.ConstI64(int64(target.ManagedSize)))
		if d != nil {
			return d
		}
		instance = stackEntry{kind: metadata.StackObject, typ: target, v: obj}
	}

	if _, d := t.emitDirectCall(ctor, instance, args, false); d != nil {
		return d
	}

	if target.IsValueType() && target.StackType != metadata.StackValueType {
		// Primitive-classified value types come back out of their slot
		// into a register entry.
		t.pushLoadOf(target, instance.v)
		return nil
	}

	t.push(instance)
	return nil
}
