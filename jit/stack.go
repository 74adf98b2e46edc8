package jit

import (
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// stackEntry is one slot of the abstract evaluation stack: a stack-type
// classification, the full metadata type for the verifier, and the MIR
// value currently holding it. Value-type entries hold the address of a
// stack-allocated backing buffer; interface-typed entries are fat
// pointers and carry the vtable-slice half in aux.
type stackEntry struct {
	kind metadata.StackKind

	// typ is nil only for the null constant, which is assignable to any
	// object reference.
	typ *metadata.Type

	// wide distinguishes Double from Single within the Float class, so a
	// double never implicitly narrows.
	wide bool

	v   mir.Value
	aux mir.Value
}

func (e stackEntry) isNull() bool {
	return e.kind == metadata.StackObject && e.typ == nil
}

func (e stackEntry) isInterface() bool {
	return e.typ != nil && e.typ.IsInterface() && e.aux != nil
}

// mirType returns the MIR scalar type an entry of this shape occupies.
func (e stackEntry) mirType() mir.Type {
	switch e.kind {
	case metadata.StackInt32:
		return mir.I32
	case metadata.StackInt64, metadata.StackIntPtr:
		return mir.I64
	case metadata.StackFloat:
		if e.wide {
			return mir.F64
		}
		return mir.F32
	default:
		return mir.Ptr
	}
}

func (t *translation) push(e stackEntry) {
	t.stack = append(t.stack, e)
}

func (t *translation) pop() (stackEntry, *report.Diagnostic) {
	if len(t.stack) == 0 {
		return stackEntry{}, t.fail("evaluation stack underflow at offset %d", t.offset)
	}

	e := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return e, nil
}

func (t *translation) popN(n int) ([]stackEntry, *report.Diagnostic) {
	if len(t.stack) < n {
		return nil, t.fail("evaluation stack underflow at offset %d (need %d entries)", t.offset, n)
	}

	out := t.stack[len(t.stack)-n:]
	t.stack = t.stack[:len(t.stack)-n]
	return out, nil
}

// entryFor classifies a metadata type into a stack entry shape with the
// promotion rules applied (small ints to Int32, floats keeping their
// sub-kind).
func entryFor(typ *metadata.Type, v mir.Value) stackEntry {
	e := stackEntry{typ: typ, v: v}

	switch typ.StackType {
	case metadata.StackInt32:
		e.kind = metadata.StackInt32
	case metadata.StackInt64:
		e.kind = metadata.StackInt64
	case metadata.StackIntPtr:
		e.kind = metadata.StackIntPtr
	case metadata.StackFloat:
		e.kind = metadata.StackFloat
		e.wide = typ.ManagedSize == 8
	case metadata.StackByRef:
		e.kind = metadata.StackByRef
	case metadata.StackValueType:
		e.kind = metadata.StackValueType
	default:
		e.kind = metadata.StackObject
	}

	return e
}

/* -------------------------------------------------------------------------- */
/* Snapshots                                                                  */

// snapSlot is one stack position of a snapshot: the agreed shape plus the
// memory slot every incoming edge stores through.
type snapSlot struct {
	kind metadata.StackKind
	typ  *metadata.Type
	wide bool

	slot    mir.Value
	auxSlot mir.Value
}

// snapshot is the recorded stack shape at a branch target or handler
// entry. Once the offset has been translated (sealed), incoming backward
// edges must match it exactly.
type snapshot struct {
	slots  []snapSlot
	sealed bool
}

// snapshotAt records (or merges into) the snapshot for a target offset.
// Forward targets widen pairwise to the common verifier-assignable
// supertype; backward (sealed) targets require an exact match because the
// emitted code already depends on the recorded types.
func (t *translation) snapshotAt(target int) (*snapshot, *report.Diagnostic) {
	snap, ok := t.snapshots[target]
	if !ok {
		slots := make([]snapSlot, len(t.stack))
		for i, e := range t.stack {
			slots[i] = snapSlot{
				kind: e.kind,
				typ:  e.typ,
				wide: e.wide,
				slot: t.prologue.AllocaScalar(e.mirType()),
			}
			if e.isInterface() {
				slots[i].auxSlot = t.prologue.AllocaScalar(mir.Ptr)
			}
		}

		snap = &snapshot{slots: slots}
		t.snapshots[target] = snap
		return snap, nil
	}

	if len(snap.slots) != len(t.stack) {
		return nil, t.fail("stack depth mismatch on edge to offset %d: %d vs %d",
			target, len(t.stack), len(snap.slots))
	}

	for i := range snap.slots {
		s, e := &snap.slots[i], t.stack[i]

		if s.kind != e.kind || s.wide != e.wide {
			return nil, t.fail("stack shape mismatch on edge to offset %d at depth %d", target, i)
		}

		if s.typ == e.typ {
			continue
		}

		if snap.sealed {
			if !typesIdentical(s.typ, e.typ) {
				return nil, t.fail("backward edge to offset %d changes stack type at depth %d", target, i)
			}
			continue
		}

		merged, ok := t.rel.Merge(e.typ, s.typ)
		if !ok {
			return nil, t.fail("no common supertype merging stacks at offset %d depth %d", target, i)
		}
		s.typ = merged
	}

	return snap, nil
}

func typesIdentical(a, b *metadata.Type) bool {
	return a == b
}

// storeToSnapshot spills the current stack into a snapshot's slots,
// preparing an edge into its offset.
func (t *translation) storeToSnapshot(snap *snapshot) {
	for i, e := range t.stack {
		t.b.Store(e.v, snap.slots[i].slot)
		if snap.slots[i].auxSlot != nil && e.aux != nil {
			t.b.Store(e.aux, snap.slots[i].auxSlot)
		}
	}
}

// loadFromSnapshot reconstitutes the abstract stack from a snapshot at
// the start of translating its offset.
func (t *translation) loadFromSnapshot(snap *snapshot) {
	t.stack = t.stack[:0]

	for i := range snap.slots {
		s := &snap.slots[i]
		e := stackEntry{kind: s.kind, typ: s.typ, wide: s.wide}
		e.v = t.b.Load(e.mirType(), s.slot)
		if s.auxSlot != nil {
			e.aux = t.b.Load(mir.Ptr, s.auxSlot)
		}
		t.stack = append(t.stack, e)
	}

	snap.sealed = true
}
