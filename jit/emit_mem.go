package jit

import (
	"corejit/cil"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

func (t *translation) varAt(vars []*varSlot, idx int) (*varSlot, *report.Diagnostic) {
	if idx < 0 || idx >= len(vars) {
		return nil, t.fail("variable slot %d out of range at offset %d", idx, t.offset)
	}
	return vars[idx], nil
}

// emitLdvar loads an argument or local onto the stack, applying the
// small-int promotion on the way in.
func (t *translation) emitLdvar(vars []*varSlot, idx int) *report.Diagnostic {
	slot, d := t.varAt(vars, idx)
	if d != nil {
		return d
	}

	e := stackEntry{kind: slot.kind, typ: slot.typ, wide: slot.wide}

	if slot.kind == metadata.StackValueType {
		// A value-type load copies the slot into a fresh buffer so later
		// stores to the variable don't mutate the stack entry.
		buf := t.prologue.Alloca(slot.typ.StackSize)
		t.b.Memcpy(buf, slot.addr, slot.typ.StackSize)
		e.v = buf
	} else {
		e.v = t.b.Load(e.mirType(), slot.addr)
	}

	if e.typ != nil && e.typ.IsInterface() {
		// Interface variables hold the fat pointer in two adjacent words.
		e.aux = e.v
		e.v = t.b.Load(mir.Ptr, t.b.GEPConst(slot.addr, 8))
	}

	t.push(e)
	return nil
}

// emitStvar stores the stack top into an argument or local, moving,
// converting, or block-copying depending on the slot's class.
func (t *translation) emitStvar(vars []*varSlot, idx int) *report.Diagnostic {
	slot, d := t.varAt(vars, idx)
	if d != nil {
		return d
	}

	e, d := t.pop()
	if d != nil {
		return d
	}

	if !t.rel.VerifierAssignableTo(e.typ, slot.typ) && e.kind != slot.kind {
		return t.fail("cannot store a %s into a variable of type %s at offset %d",
			typeName(e.typ), typeName(slot.typ), t.offset)
	}

	switch slot.kind {
	case metadata.StackValueType:
		t.b.Memcpy(slot.addr, e.v, slot.typ.StackSize)

	default:
		if slot.typ != nil && slot.typ.IsInterface() {
			t.storeInterface(slot.addr, e, slot.typ)
			return nil
		}
		t.b.Store(t.coerceScalar(e, slot.typ), slot.addr)
	}

	return nil
}

// storeInterface writes an interface-typed value's two words into the
// destination pair: the fat pointer is never a single-word value.
func (t *translation) storeInterface(addr mir.Value, e stackEntry, iface *metadata.Type) {
	if e.isInterface() {
		t.b.Store(e.aux, addr)
		t.b.Store(e.v, t.b.GEPConst(addr, 8))
		return
	}

	// Converting an object reference into an interface value: resolve
	// the slot-run slice through the object's runtime type.
	slice := t.b.Call(t.protoCastIface(), e.v, t.typeHandle(iface))
	t.b.Store(slice, addr)
	t.b.Store(e.v, t.b.GEPConst(addr, 8))
}

// emitLdvara pushes a managed pointer to a variable's slot. Every slot is
// memory-backed, so the address always exists.
func (t *translation) emitLdvara(vars []*varSlot, idx int) *report.Diagnostic {
	slot, d := t.varAt(vars, idx)
	if d != nil {
		return d
	}

	if slot.typ.IsByRef() {
		return t.fail("cannot take the address of a by-ref variable at offset %d", t.offset)
	}

	t.push(stackEntry{
		kind: metadata.StackByRef,
		typ:  slot.typ.ByRefOf(),
		v:    slot.addr,
	})
	return nil
}

/* -------------------------------------------------------------------------- */
/* Indirect loads and stores                                                  */

// indShape describes what an ldind/stind variant reads or writes.
type indShape struct {
	mem      mir.Type
	kind     metadata.StackKind
	unsigned bool
	wide     bool
	isRef    bool
}

func indShapeFor(op cil.Op) indShape {
	switch op {
	case cil.OpLdindI1, cil.OpStindI1:
		return indShape{mem: mir.I8, kind: metadata.StackInt32}
	case cil.OpLdindU1:
		return indShape{mem: mir.I8, kind: metadata.StackInt32, unsigned: true}
	case cil.OpLdindI2, cil.OpStindI2:
		return indShape{mem: mir.I16, kind: metadata.StackInt32}
	case cil.OpLdindU2:
		return indShape{mem: mir.I16, kind: metadata.StackInt32, unsigned: true}
	case cil.OpLdindI4, cil.OpStindI4:
		return indShape{mem: mir.I32, kind: metadata.StackInt32}
	case cil.OpLdindU4:
		return indShape{mem: mir.I32, kind: metadata.StackInt32, unsigned: true}
	case cil.OpLdindI8, cil.OpStindI8:
		return indShape{mem: mir.I64, kind: metadata.StackInt64}
	case cil.OpLdindI, cil.OpStindI:
		return indShape{mem: mir.I64, kind: metadata.StackIntPtr}
	case cil.OpLdindR4, cil.OpStindR4:
		return indShape{mem: mir.F32, kind: metadata.StackFloat}
	case cil.OpLdindR8, cil.OpStindR8:
		return indShape{mem: mir.F64, kind: metadata.StackFloat, wide: true}
	default: // ldind.ref / stind.ref
		return indShape{mem: mir.Ptr, kind: metadata.StackObject, isRef: true}
	}
}

func (t *translation) popAddress() (stackEntry, *report.Diagnostic) {
	addr, d := t.pop()
	if d != nil {
		return addr, d
	}

	switch addr.kind {
	case metadata.StackByRef:
		return addr, nil
	case metadata.StackIntPtr:
		addr.v = t.b.IntToPtr(addr.v)
		return addr, nil
	default:
		return addr, t.fail("indirect access through a %v operand at offset %d", addr.kind, t.offset)
	}
}

func (t *translation) emitLdind(op cil.Op) *report.Diagnostic {
	addr, d := t.popAddress()
	if d != nil {
		return d
	}

	shape := indShapeFor(op)
	raw := t.b.Load(shape.mem, addr.v)

	e := stackEntry{kind: shape.kind, wide: shape.wide}

	switch {
	case shape.isRef:
		e.typ = t.loader.Universe.Object
		if addr.typ != nil && addr.typ.IsByRef() {
			e.typ = addr.typ.ElementType
		}
		e.v = raw
	case shape.mem.Equal(mir.I8) || shape.mem.Equal(mir.I16):
		if shape.unsigned {
			e.v = t.b.ZExt(raw, mir.I32)
		} else {
			e.v = t.b.SExt(raw, mir.I32)
		}
		e.typ = t.loader.Universe.Int32
	default:
		e.v = raw
		e.typ = t.universeTypeForKind(shape.kind, shape.wide)
	}

	t.push(e)
	return nil
}

func (t *translation) emitStind(op cil.Op) *report.Diagnostic {
	ops, d := t.popN(2)
	if d != nil {
		return d
	}
	addrE, val := ops[0], ops[1]

	if addrE.kind == metadata.StackIntPtr {
		addrE.v = t.b.IntToPtr(addrE.v)
	} else if addrE.kind != metadata.StackByRef {
		return t.fail("stind through a %v operand at offset %d", addrE.kind, t.offset)
	}

	shape := indShapeFor(op)

	if shape.isRef {
		// The by-ref may point into the heap; the barrier consults the
		// heap index to find any owning object.
		t.b.Call(t.protoGCUpdateRef(), addrE.v, val.v)
		return nil
	}

	t.b.Store(t.coerceToMem(val, shape.mem), addrE.v)
	return nil
}

// coerceToMem adapts a stack value to the narrower memory type a store
// writes.
func (t *translation) coerceToMem(e stackEntry, mem mir.Type) mir.Value {
	cur := e.mirType()
	if cur.Equal(mem) {
		return e.v
	}

	switch {
	case mem.Equal(mir.I8), mem.Equal(mir.I16), mem.Equal(mir.I32):
		return t.b.Trunc(e.v, mem)
	case mem.Equal(mir.I64) && e.kind == metadata.StackInt32:
		return t.b.SExt(e.v, mir.I64)
	case mem.Equal(mir.F32) && e.wide:
		return t.b.FPTrunc(e.v, mir.F32)
	case mem.Equal(mir.F64) && !e.wide && e.kind == metadata.StackFloat:
		return t.b.FPExt(e.v, mir.F64)
	}

	return e.v
}

func (t *translation) universeTypeForKind(k metadata.StackKind, wide bool) *metadata.Type {
	u := t.loader.Universe
	switch k {
	case metadata.StackInt32:
		return u.Int32
	case metadata.StackInt64:
		return u.Int64
	case metadata.StackIntPtr:
		return u.IntPtr
	case metadata.StackFloat:
		if wide {
			return u.Double
		}
		return u.Single
	default:
		return u.Object
	}
}
