// Package jit translates verified CIL method bodies into MIR: a
// single-pass translator that simulates the abstract evaluation stack,
// resolves implicit conversions, threads exception-handling control flow,
// and lowers the object model (box/unbox, casts, virtual dispatch, array
// and field access) against the runtime's object layout.
package jit

import (
	"corejit/cil"
	"corejit/loader"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
	"corejit/verify"
)

// Translator compiles methods of one assembly into one MIR module. It is
// not safe for concurrent use; the driver serializes per-assembly JIT
// phases.
type Translator struct {
	Loader *loader.Loader
	Module *mir.Module
}

// varSlot is one argument or local: its declared type, promoted stack
// shape, and the memory slot backing it. Every variable is memory-backed
// so ldloca/ldarga are always satisfiable; the external code generator's
// register allocator promotes unaddressed slots back to registers.
type varSlot struct {
	typ  *metadata.Type
	kind metadata.StackKind
	wide bool
	addr mir.Value
}

// translation is the per-method state.
type translation struct {
	loader *loader.Loader
	rel    verify.Relations
	mod    *mir.Module

	method *metadata.MethodInfo
	asm    *metadata.Assembly
	body   *metadata.MethodBody

	fn       *mir.Func
	pairType mir.Type
	retBuf   mir.Value // caller-provided block for large value returns

	// prologue stays positioned in the entry block so allocas created
	// mid-translation land in the frame setup.
	prologue *mir.Builder
	b        *mir.Builder

	excSlot mir.Value

	args   []*varSlot
	locals []*varSlot

	stack  []stackEntry
	offset int

	// blocks maps a CIL offset that starts a basic block to its MIR
	// block; snapshots records the agreed stack shape at each of them.
	blocks    map[int]*mir.Block
	snapshots map[int]*snapshot

	// leaders is the set of offsets that must start a new block: branch
	// targets, conditional-branch fall-throughs, handler entries, and try
	// entries, discovered by the pre-scan.
	leaders map[int]bool

	// instrs is the decoded body, by offset, from the pre-scan.
	instrs map[int]*cil.Instruction
	order  []int

	// finallyDispatch assigns each finally/fault clause its selector
	// slot and registered continuations (see except.go).
	finallyDispatch map[int]*dispatchInfo

	retBlock *mir.Block // shared (exception, zero) return path

	tailPending bool
}

func (t *translation) fail(format string, args ...interface{}) *report.Diagnostic {
	return report.New(report.CheckFailed, t.asm.Name, uint32(t.method.Token), format, args...)
}

// CompileMethod translates one method body into the translator's module.
// Verification failures abort only this method; the returned diagnostic
// is check-failed and the method's function is left undefined.
func (tr *Translator) CompileMethod(m *metadata.MethodInfo) *report.Diagnostic {
	if m.Body == nil {
		return report.New(report.CheckFailed, m.DeclaringModule.Assembly.Name, uint32(m.Token),
			"method %s::%s has no IL body to compile", m.DeclaringType.FullName(), m.Name)
	}

	if !m.Body.InitLocals {
		// Uninitialized locals are rejected outright: zero-fill is
		// unconditional, so the verifier never reasons about definite
		// assignment.
		return report.New(report.CheckFailed, m.DeclaringModule.Assembly.Name, uint32(m.Token),
			"method %s::%s lacks the init-locals bit", m.DeclaringType.FullName(), m.Name)
	}

	t := &translation{
		loader:          tr.Loader,
		rel:             tr.Loader.Relations,
		mod:             tr.Module,
		method:          m,
		asm:             m.DeclaringModule.Assembly,
		body:            m.Body,
		blocks:          map[int]*mir.Block{},
		snapshots:       map[int]*snapshot{},
		leaders:         map[int]bool{},
		instrs:          map[int]*cil.Instruction{},
		finallyDispatch: map[int]*dispatchInfo{},
	}

	if d := t.prescan(); d != nil {
		return d
	}

	if d := t.declareFunction(); d != nil {
		return d
	}

	t.emitPrologue()

	if d := t.translate(); d != nil {
		return d
	}

	return nil
}

// DeclarePrototype forward-declares a method's two-slot prototype so
// call sites can reference it before (or without) its body being
// translated into this module.
func (tr *Translator) DeclarePrototype(m *metadata.MethodInfo) *mir.Func {
	ret, params := methodMIRSignature(m)
	return tr.Module.DeclareProto(MethodSymbol(m), ret, params...)
}

// methodMIRSignature maps a method's metadata signature onto the MIR
// calling convention: hidden return block first (large value returns),
// then `this`, then the declared parameters; the result is always the
// two-slot pair.
func methodMIRSignature(m *metadata.MethodInfo) (mir.Type, []mir.Type) {
	var params []mir.Type

	if returnsLargeValue(m) {
		params = append(params, mir.Ptr)
	}

	if !m.IsStatic() {
		params = append(params, mir.Ptr)
	}

	for _, p := range m.Params {
		params = append(params, scalarType(p.Type))
	}

	return mir.RetPairType(returnScalar(m)), params
}

// returnsLargeValue reports whether the method's return value travels
// through a caller-provided block rather than the pair's value slot.
func returnsLargeValue(m *metadata.MethodInfo) bool {
	return m.ReturnType != nil && m.ReturnType.StackType == metadata.StackValueType
}

// returnScalar is the MIR type of the pair's value slot.
func returnScalar(m *metadata.MethodInfo) mir.Type {
	if m.ReturnType == nil || returnsLargeValue(m) {
		return nil // dummy word
	}
	return scalarType(m.ReturnType)
}

// scalarType maps a metadata type to the MIR scalar that carries it as an
// argument, return value, or dereferenced load.
func scalarType(typ *metadata.Type) mir.Type {
	switch typ.StackType {
	case metadata.StackInt32:
		return mir.I32
	case metadata.StackInt64, metadata.StackIntPtr:
		return mir.I64
	case metadata.StackFloat:
		if typ.ManagedSize == 8 {
			return mir.F64
		}
		return mir.F32
	case metadata.StackValueType:
		return mir.Ptr // address of a caller-owned copy
	default:
		return mir.Ptr
	}
}

// narrowType is the MIR type of a type's in-memory form (fields, array
// elements, locals spilled to memory), which may be narrower than its
// stack form.
func narrowType(typ *metadata.Type) mir.Type {
	if typ.IsValueType() && typ.StackType == metadata.StackInt32 {
		switch typ.ManagedSize {
		case 1:
			return mir.I8
		case 2:
			return mir.I16
		}
	}
	return scalarType(typ)
}

/* -------------------------------------------------------------------------- */
/* Pre-scan                                                                   */

// prescan decodes the body once, recording instruction boundaries and
// the block-leader set (branch targets, try entries, handler entries).
func (t *translation) prescan() *report.Diagnostic {
	dec := cil.NewDecoder(t.asm.Name, t.body.CIL)

	boundaries := map[int]bool{}
	for dec.More() {
		in, d := dec.Decode()
		if d != nil {
			return d
		}

		t.instrs[in.Offset] = in
		t.order = append(t.order, in.Offset)
		boundaries[in.Offset] = true

		for _, tgt := range in.Targets {
			t.leaders[tgt] = true
		}

		// The continuation after a conditional branch is a leader too.
		if in.Info.Flow == cil.FlowCondBranch {
			t.leaders[in.Next()] = true
		}
	}

	for _, c := range t.body.Clauses {
		t.leaders[c.TryOffset] = true
		t.leaders[c.HandlerOffset] = true
		if c.Kind == metadata.ClauseFilter {
			return report.New(report.CheckFailed, t.asm.Name, uint32(t.method.Token),
				"filter clauses are not supported")
		}
	}

	for off := range t.leaders {
		if !boundaries[off] {
			return report.New(report.BadFormat, t.asm.Name, uint32(t.method.Token),
				"branch or clause targets offset %d outside instruction boundaries", off)
		}
	}

	return nil
}

/* -------------------------------------------------------------------------- */
/* Function shell                                                             */

func (t *translation) declareFunction() *report.Diagnostic {
	m := t.method
	ret, paramTypes := methodMIRSignature(m)
	t.pairType = ret

	params := make([]*mir.Param, len(paramTypes))
	idx := 0
	if returnsLargeValue(m) {
		params[idx] = &mir.Param{Name: "retbuf", Type: mir.Ptr}
		idx++
	}
	if !m.IsStatic() {
		params[idx] = &mir.Param{Name: "this", Type: mir.Ptr}
		idx++
	}
	for i := range m.Params {
		params[idx] = &mir.Param{Name: m.Params[i].Name, Type: paramTypes[idx]}
		idx++
	}

	t.fn = t.mod.NewFunc(MethodSymbol(m), ret, params...)
	return nil
}

// emitPrologue allocates the exception register, copies incoming
// arguments into their frame slots, reserves and zero-fills every local,
// and falls through into the first body block.
func (t *translation) emitPrologue() {
	entry := t.fn.NewBlock("entry")
	t.prologue = mir.NewBuilder(t.fn, entry)
	t.b = mir.NewBuilder(t.fn, entry)

	t.excSlot = t.prologue.AllocaScalar(mir.Ptr)
	t.prologue.Store(mir.Null(), t.excSlot)

	m := t.method
	paramIdx := 0
	if returnsLargeValue(m) {
		t.retBuf = t.fn.ParamValue(0)
		paramIdx = 1
	}

	if !m.IsStatic() {
		thisType := m.DeclaringType
		slot := &varSlot{typ: thisType, kind: metadata.StackObject}
		if m.ThisByRef {
			slot.typ = thisType.ByRefOf()
			slot.kind = metadata.StackByRef
		}
		slot.addr = t.prologue.AllocaScalar(mir.Ptr)
		t.prologue.Store(t.fn.ParamValue(paramIdx), slot.addr)
		t.args = append(t.args, slot)
		paramIdx++
	}

	for i := range m.Params {
		pt := m.Params[i].Type
		e := entryFor(pt, nil)
		slot := &varSlot{typ: pt, kind: e.kind, wide: e.wide}

		switch {
		case e.kind == metadata.StackValueType:
			// A value-type argument arrives by pointer; give it a local
			// copy so the callee owns its mutations.
			slot.addr = t.prologue.Alloca(pt.StackSize)
			t.prologue.Memcpy(slot.addr, t.fn.ParamValue(paramIdx), pt.StackSize)
		case pt.IsInterface():
			// Interface arguments arrive as the address of a fat pair.
			slot.addr = t.prologue.Alloca(16)
			t.prologue.Memcpy(slot.addr, t.fn.ParamValue(paramIdx), 16)
		default:
			slot.addr = t.prologue.AllocaScalar(e.mirType())
			t.prologue.Store(t.fn.ParamValue(paramIdx), slot.addr)
		}

		t.args = append(t.args, slot)
		paramIdx++
	}

	for _, lv := range t.body.Locals {
		e := entryFor(lv.Type, nil)
		slot := &varSlot{typ: lv.Type, kind: e.kind, wide: e.wide}

		switch {
		case e.kind == metadata.StackValueType:
			slot.addr = t.prologue.Alloca(lv.Type.StackSize)
			t.prologue.Call(t.protoMemzero(), slot.addr, mir.ConstI64(int64(lv.Type.StackSize)))
		case lv.Type.IsInterface():
			slot.addr = t.prologue.Alloca(16)
			t.prologue.Call(t.protoMemzero(), slot.addr, mir.ConstI64(16))
		default:
			slot.addr = t.prologue.AllocaScalar(e.mirType())
			t.prologue.Store(zeroFor(e), slot.addr)
		}

		t.locals = append(t.locals, slot)
	}

	// Shared exceptional-return path: propagate the in-flight exception
	// with a zeroed value slot.
	t.retBlock = t.fn.NewBlock("unwind")
	rb := mir.NewBuilder(t.fn, t.retBlock)
	exc := rb.Load(mir.Ptr, t.excSlot)
	rb.RetPair(t.pairType, exc, nil)

	first := t.blockAt(0)
	t.b.Br(first)
	t.b.SetBlock(first)
}

// zeroFor is the zero constant of an entry's MIR shape.
func zeroFor(e stackEntry) mir.Value {
	switch e.kind {
	case metadata.StackInt32:
		return mir.ConstI32(0)
	case metadata.StackInt64, metadata.StackIntPtr:
		return mir.ConstI64(0)
	case metadata.StackFloat:
		if e.wide {
			return mir.ConstF64(0)
		}
		return mir.ConstF32(0)
	default:
		return mir.Null()
	}
}

// blockAt returns (creating on demand) the MIR block starting at a CIL
// offset.
func (t *translation) blockAt(off int) *mir.Block {
	if blk, ok := t.blocks[off]; ok {
		return blk
	}

	blk := t.fn.NewBlock("il_" + itoa(off))
	t.blocks[off] = blk
	return blk
}

/* -------------------------------------------------------------------------- */
/* Main loop                                                                  */

// translate walks the body linearly. Block leaders re-establish the
// abstract stack from their snapshot; every other instruction mutates the
// running stack and appends MIR to the current block.
func (t *translation) translate() *report.Diagnostic {
	// Offset 0 starts with an empty stack.
	if _, d := t.snapshotAt(0); d != nil {
		return d
	}

	reachable := true

	for _, off := range t.order {
		in := t.instrs[off]
		t.offset = off

		if t.leaders[off] || off == 0 {
			snap, ok := t.snapshots[off]

			if reachable && off != 0 {
				// Fall-through edge into a leader: merge and spill.
				var d *report.Diagnostic
				if snap, d = t.snapshotAt(off); d != nil {
					return d
				}
				if d := t.checkRegionEdge(t.prevOffset(off), off, false); d != nil {
					return d
				}
				t.storeToSnapshot(snap)
				t.b.Br(t.blockAt(off))
			}

			if !ok && !reachable {
				snap = t.handlerSnapshot(off)
			}
			if snap == nil {
				snap = t.snapshots[off]
			}
			if snap == nil {
				return report.New(report.BadFormat, t.asm.Name, uint32(t.method.Token),
					"unreachable code at offset %d is not a branch target or handler entry", off)
			}

			t.b.SetBlock(t.blockAt(off))
			t.loadFromSnapshot(snap)
			reachable = true
		} else if !reachable {
			// Dead code between an unconditional transfer and the next
			// leader is skipped without translation.
			continue
		}

		endsFlow, d := t.translateInstruction(in)
		if d != nil {
			return d
		}

		reachable = !endsFlow
	}

	if reachable {
		return report.New(report.BadFormat, t.asm.Name, uint32(t.method.Token),
			"method body falls off the end without ret/branch/throw")
	}

	return nil
}

// prevOffset returns the offset of the instruction preceding off in
// program order (used for fall-through region checks).
func (t *translation) prevOffset(off int) int {
	prev := 0
	for _, o := range t.order {
		if o >= off {
			break
		}
		prev = o
	}
	return prev
}

// handlerSnapshot builds the entry snapshot for a clause handler reached
// only exceptionally: catch handlers start with the caught exception on
// the stack, finally/fault handlers with an empty stack.
func (t *translation) handlerSnapshot(off int) *snapshot {
	for i := range t.body.Clauses {
		c := &t.body.Clauses[i]
		if c.HandlerOffset != off {
			continue
		}

		if c.Kind == metadata.ClauseCatch {
			snap := &snapshot{slots: []snapSlot{{
				kind: metadata.StackObject,
				typ:  c.CatchType,
				slot: t.prologue.AllocaScalar(mir.Ptr),
			}}}
			t.snapshots[off] = snap
			return snap
		}

		snap := &snapshot{}
		t.snapshots[off] = snap
		return snap
	}

	return nil
}
