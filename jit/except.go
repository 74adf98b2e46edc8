package jit

import (
	"sort"

	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// dispatchInfo is the endfinally link table for one finally/fault clause:
// a selector slot written before entering the handler, and the
// continuation block each selector value dispatches to.
type dispatchInfo struct {
	slot    mir.Value
	cases   []*mir.Block
	emitted bool
}

func (t *translation) dispatchFor(clauseIdx int) *dispatchInfo {
	if di, ok := t.finallyDispatch[clauseIdx]; ok {
		return di
	}

	di := &dispatchInfo{slot: t.prologue.AllocaScalar(mir.I32)}
	t.finallyDispatch[clauseIdx] = di
	return di
}

// addDispatchCase registers a continuation and returns its selector value. A
// registration after the clause's endfinally has been emitted means the
// body orders a leave after its own finally, which is malformed.
func (t *translation) addDispatchCase(clauseIdx int, dst *mir.Block) (int, *report.Diagnostic) {
	di := t.dispatchFor(clauseIdx)
	if di.emitted {
		return 0, report.New(report.BadFormat, t.asm.Name, uint32(t.method.Token),
			"leave at offset %d routes through an already-closed finally", t.offset)
	}

	di.cases = append(di.cases, dst)
	return len(di.cases) - 1, nil
}

/* -------------------------------------------------------------------------- */
/* Region bookkeeping                                                         */

// regionsOf returns the protected-region membership of an offset: one tag
// per clause whose try (2i) or handler (2i+1) range contains it.
func (t *translation) regionsOf(off int) []int {
	var tags []int
	for i := range t.body.Clauses {
		c := &t.body.Clauses[i]
		if c.Contains(off) {
			tags = append(tags, 2*i)
		}
		if off >= c.HandlerOffset && off < c.HandlerOffset+c.HandlerLength {
			tags = append(tags, 2*i+1)
		}
	}
	return tags
}

// checkRegionEdge enforces the try-region control-flow rules: an ordinary
// branch or fall-through must stay within the same region set, except
// that it may enter a try region exactly at its start.
func (t *translation) checkRegionEdge(src, dst int, viaLeave bool) *report.Diagnostic {
	if viaLeave {
		return nil // leave is a documented exit edge
	}

	srcTags := t.regionsOf(src)
	dstTags := t.regionsOf(dst)

	srcSet := map[int]bool{}
	for _, tag := range srcTags {
		srcSet[tag] = true
	}

	for _, tag := range dstTags {
		if srcSet[tag] {
			delete(srcSet, tag)
			continue
		}

		// Entering a region: legal only for a try entered at its start.
		if tag%2 == 0 && t.body.Clauses[tag/2].TryOffset == dst {
			continue
		}

		return report.New(report.BadFormat, t.asm.Name, uint32(t.method.Token),
			"branch from offset %d to %d enters a protected region mid-way", src, dst)
	}

	if len(srcSet) != 0 {
		return report.New(report.BadFormat, t.asm.Name, uint32(t.method.Token),
			"branch from offset %d to %d exits a protected region without leave", src, dst)
	}

	return nil
}

/* -------------------------------------------------------------------------- */
/* Allocation and throw helpers                                               */

// allocObject emits a gc_new call followed by the OOM guard (unless the
// allocated type is OutOfMemoryException itself) and the vtable-header
// store.
func (t *translation) allocObject(typ *metadata.Type, size mir.Value) (mir.Value, *report.Diagnostic) {
	raw := t.b.Call(t.protoGCNew(), t.typeHandle(typ), size)

	if typ != t.loader.Universe.OutOfMemoryException {
		isNull := t.b.ICmp(mir.CmpEQ, false, t.b.PtrToInt(raw), mir.ConstI64(0))
		oomBlk := t.fn.NewBlock("oom")
		okBlk := t.fn.NewBlock("allocok")
		t.b.CondBr(isNull, oomBlk, okBlk)

		t.b.SetBlock(oomBlk)
		if d := t.emitThrowNew(t.loader.Universe.OutOfMemoryException); d != nil {
			return nil, d
		}

		t.b.SetBlock(okBlk)
	}

	t.b.Store(t.vtableHandle(typ), raw)
	return raw, nil
}

// emitThrowNew allocates an exception of the given well-known type and
// dispatches it; the current block is terminated.
func (t *translation) emitThrowNew(excType *metadata.Type) *report.Diagnostic {
	size := excType.ManagedSize
	if size < 16 {
		size = 16
	}

	obj, d := t.allocObject(excType, mir.ConstI64(int64(size)))
	if d != nil {
		return d
	}

	t.b.Store(obj, t.excSlot)
	return t.emitHandlerSearch(excType, obj)
}

// emitNullCheck guards an object dereference, raising
// NullReferenceException on a null receiver.
func (t *translation) emitNullCheck(obj mir.Value) *report.Diagnostic {
	isNull := t.b.ICmp(mir.CmpEQ, false, t.b.PtrToInt(obj), mir.ConstI64(0))
	nullBlk := t.fn.NewBlock("nullref")
	okBlk := t.fn.NewBlock("nonnull")
	t.b.CondBr(isNull, nullBlk, okBlk)

	t.b.SetBlock(nullBlk)
	if d := t.emitThrowNew(t.loader.Universe.NullReferenceException); d != nil {
		return d
	}

	t.b.SetBlock(okBlk)
	return nil
}

// afterCall threads the two-slot return of a call: the exception half is
// tested and, when set, dispatched to the enclosing handlers; the value
// half is returned for the fall-through path.
func (t *translation) afterCall(pair mir.Value) (mir.Value, *report.Diagnostic) {
	exc := t.b.ExtractException(pair)
	val := t.b.ExtractValue(pair)

	t.b.Store(exc, t.excSlot)

	faulted := t.b.ICmp(mir.CmpNE, false, t.b.PtrToInt(exc), mir.ConstI64(0))
	searchBlk := t.fn.NewBlock("excsearch")
	contBlk := t.fn.NewBlock("callok")
	t.b.CondBr(faulted, searchBlk, contBlk)

	t.b.SetBlock(searchBlk)
	if d := t.emitHandlerSearch(nil, exc); d != nil {
		return nil, d
	}

	t.b.SetBlock(contBlk)
	return val, nil
}

/* -------------------------------------------------------------------------- */
/* Handler search                                                             */

// enclosingClauses returns the indices of clauses whose try region covers
// an offset, innermost (smallest try) first.
func (t *translation) enclosingClauses(off int) []int {
	var idxs []int
	for i := range t.body.Clauses {
		if t.body.Clauses[i].Contains(off) {
			idxs = append(idxs, i)
		}
	}

	sort.Slice(idxs, func(a, b int) bool {
		return t.body.Clauses[idxs[a]].TryLength < t.body.Clauses[idxs[b]].TryLength
	})
	return idxs
}

// ensureCatchSnapshot guarantees a catch handler's entry snapshot exists
// (one slot holding the caught exception) before an edge targets it.
func (t *translation) ensureCatchSnapshot(c *metadata.ExceptionHandlingClause) *snapshot {
	if snap, ok := t.snapshots[c.HandlerOffset]; ok {
		return snap
	}

	snap := &snapshot{slots: []snapSlot{{
		kind: metadata.StackObject,
		typ:  c.CatchType,
		slot: t.prologue.AllocaScalar(mir.Ptr),
	}}}
	t.snapshots[c.HandlerOffset] = snap
	return snap
}

func (t *translation) ensureEmptySnapshot(off int) *snapshot {
	if snap, ok := t.snapshots[off]; ok {
		return snap
	}

	snap := &snapshot{}
	t.snapshots[off] = snap
	return snap
}

// emitHandlerSearch emits the static handler search for an exception in
// flight at the current offset: each enclosing catch gets a type test
// (elided when the thrown type is statically known), each enclosing
// finally/fault runs with a continuation that resumes the search, and an
// unmatched exception returns to the caller with the register set.
// The current block is terminated in every path.
func (t *translation) emitHandlerSearch(staticType *metadata.Type, exc mir.Value) *report.Diagnostic {
	for _, idx := range t.enclosingClauses(t.offset) {
		c := &t.body.Clauses[idx]

		switch c.Kind {
		case metadata.ClauseCatch:
			snap := t.ensureCatchSnapshot(c)
			handlerBlk := t.blockAt(c.HandlerOffset)

			if staticType != nil {
				// Exact-type throw resolved at compile time.
				if t.rel.VerifierAssignableTo(staticType, c.CatchType) {
					t.b.Store(exc, snap.slots[0].slot)
					t.b.Store(mir.Null(), t.excSlot)
					t.b.Br(handlerBlk)
					return nil
				}

				// Statically known not to match; also possible the static
				// type is a supertype of the catch type, in which case
				// the dynamic test below still applies.
				if !t.rel.VerifierAssignableTo(c.CatchType, staticType) {
					continue
				}
			}

			match := t.b.Call(t.protoIsInst(), exc, t.typeHandle(c.CatchType))
			cond := t.b.ICmp(mir.CmpNE, false, t.b.PtrToInt(match), mir.ConstI64(0))

			hitBlk := t.fn.NewBlock("catchhit")
			missBlk := t.fn.NewBlock("catchmiss")
			t.b.CondBr(cond, hitBlk, missBlk)

			t.b.SetBlock(hitBlk)
			t.b.Store(exc, snap.slots[0].slot)
			t.b.Store(mir.Null(), t.excSlot)
			t.b.Br(handlerBlk)

			t.b.SetBlock(missBlk)

		case metadata.ClauseFinally, metadata.ClauseFault:
			t.ensureEmptySnapshot(c.HandlerOffset)

			resume := t.fn.NewBlock("ehresume")
			sel, d := t.addDispatchCase(idx, resume)
			if d != nil {
				return d
			}

			t.b.Store(mir.ConstI32(int32(sel)), t.dispatchFor(idx).slot)
			t.b.Br(t.blockAt(c.HandlerOffset))

			// The resume block is reached from the finally's endfinally
			// switch; the in-flight exception is reloaded from the
			// register, which the finally left untouched.
			t.b.SetBlock(resume)
			exc = t.b.Load(mir.Ptr, t.excSlot)
		}
	}

	t.b.Br(t.retBlock)
	return nil
}

/* -------------------------------------------------------------------------- */
/* throw / rethrow / leave / endfinally                                       */

func (t *translation) emitThrow() *report.Diagnostic {
	e, d := t.pop()
	if d != nil {
		return d
	}

	if e.kind != metadata.StackObject {
		return t.fail("throw of a non-object operand at offset %d", t.offset)
	}

	if d := t.emitNullCheck(e.v); d != nil {
		return d
	}

	t.b.Store(e.v, t.excSlot)
	t.stack = t.stack[:0]
	return t.emitHandlerSearch(e.typ, e.v)
}

// emitRethrow re-dispatches the exception caught by the enclosing catch
// handler.
func (t *translation) emitRethrow() *report.Diagnostic {
	for i := range t.body.Clauses {
		c := &t.body.Clauses[i]
		if c.Kind != metadata.ClauseCatch {
			continue
		}
		if t.offset < c.HandlerOffset || t.offset >= c.HandlerOffset+c.HandlerLength {
			continue
		}

		snap := t.ensureCatchSnapshot(c)
		exc := t.b.Load(mir.Ptr, snap.slots[0].slot)
		t.b.Store(exc, t.excSlot)
		t.stack = t.stack[:0]
		return t.emitHandlerSearch(c.CatchType, exc)
	}

	return t.fail("rethrow outside a catch handler at offset %d", t.offset)
}

// emitLeave empties the evaluation stack, chains every finally between
// here and the target (innermost first), and transfers control.
func (t *translation) emitLeave(target int) *report.Diagnostic {
	t.stack = t.stack[:0]

	// Leaving a catch handler leaves the in-flight register clean.
	t.b.Store(mir.Null(), t.excSlot)

	// Finallys to run: clauses whose try or handler region encloses this
	// offset but not the target.
	var chain []int
	for i := range t.body.Clauses {
		c := &t.body.Clauses[i]
		if c.Kind != metadata.ClauseFinally {
			continue
		}

		encloses := func(off int) bool {
			return c.Contains(off) ||
				(off >= c.HandlerOffset && off < c.HandlerOffset+c.HandlerLength)
		}

		if encloses(t.offset) && !encloses(target) {
			chain = append(chain, i)
		}
	}

	sort.Slice(chain, func(a, b int) bool {
		return t.body.Clauses[chain[a]].TryLength < t.body.Clauses[chain[b]].TryLength
	})

	// The landing block needs a (possibly fresh, empty) snapshot whether
	// or not finallys intervene.
	if _, d := t.snapshotAt(target); d != nil {
		return d
	}

	if len(chain) == 0 {
		t.b.Br(t.blockAt(target))
		return nil
	}

	// Register each finally's continuation: the next finally inward-out,
	// the target for the last. Selectors are stored up front; an outer
	// finally cannot clobber an inner one's slot.
	for pos, idx := range chain {
		c := &t.body.Clauses[idx]
		t.ensureEmptySnapshot(c.HandlerOffset)

		var dest *mir.Block
		if pos == len(chain)-1 {
			dest = t.blockAt(target)
		} else {
			dest = t.blockAt(t.body.Clauses[chain[pos+1]].HandlerOffset)
		}

		sel, d := t.addDispatchCase(idx, dest)
		if d != nil {
			return d
		}
		t.b.Store(mir.ConstI32(int32(sel)), t.dispatchFor(idx).slot)
	}

	t.b.Br(t.blockAt(t.body.Clauses[chain[0]].HandlerOffset))
	return nil
}

// emitEndfinally dispatches through the clause's link table; the default
// path re-checks the exception register and propagates to the caller
// (covering unwind-synthesized entries with no registered continuation).
func (t *translation) emitEndfinally() *report.Diagnostic {
	if len(t.stack) != 0 {
		return t.fail("endfinally with a non-empty evaluation stack at offset %d", t.offset)
	}

	var clauseIdx = -1
	for i := range t.body.Clauses {
		c := &t.body.Clauses[i]
		if c.Kind != metadata.ClauseFinally && c.Kind != metadata.ClauseFault {
			continue
		}
		if t.offset >= c.HandlerOffset && t.offset < c.HandlerOffset+c.HandlerLength {
			if clauseIdx < 0 || c.HandlerLength < t.body.Clauses[clauseIdx].HandlerLength {
				clauseIdx = i
			}
		}
	}

	if clauseIdx < 0 {
		return t.fail("endfinally outside a finally/fault handler at offset %d", t.offset)
	}

	di := t.dispatchFor(clauseIdx)
	di.emitted = true

	// Default: nothing registered this entry, so the handler was reached
	// on unwind; re-check the register and propagate.
	defBlk := t.fn.NewBlock("ehdefault")

	sel := t.b.Load(mir.I32, di.slot)
	cases := make([]mir.SwitchCase, len(di.cases))
	for i, blk := range di.cases {
		cases[i] = mir.SwitchCase{Index: int64(i), Dst: blk}
	}
	t.b.Switch(sel, defBlk, cases)

	t.b.SetBlock(defBlk)
	t.b.Br(t.retBlock)
	return nil
}
