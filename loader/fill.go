package loader

import (
	"corejit/cil"
	"corejit/layout"
	"corejit/metadata"
	"corejit/report"
	"corejit/sig"
)

// fill is the second pass: decode every signature, compute layouts and
// vtables, resolve interface implementations and imported members, and
// freeze each type. Types fill in dependency order (parent and embedded
// value types first) via fillType's recursion.
func (ld *assemblyLoad) fill() *report.Diagnostic {
	ld.filling = make(map[*metadata.Type]bool)

	// Interface-impl rows attach before any vtable is built.
	for _, row := range ld.raw.InterfaceImpls {
		if row.ClassRow < 1 || row.ClassRow > len(ld.asm.DefinedTypes) {
			return report.New(report.BadFormat, ld.asm.Name, 0,
				"InterfaceImpl row names class row %d past the TypeDef table", row.ClassRow)
		}

		t := ld.asm.DefinedTypes[row.ClassRow-1]
		rc := &ResolveContext{Assembly: ld.asm, TypeArgs: t.GenericArgs}

		iface, d := ld.loader.resolveToken(row.Interface, rc)
		if d != nil {
			return d
		}

		t.Interfaces = append(t.Interfaces, metadata.InterfaceImpl{Interface: iface})
	}

	for _, t := range ld.asm.DefinedTypes {
		if d := ld.fillType(t); d != nil {
			return d
		}
	}

	// Imported members resolve against their (already filled) declaring
	// types by name plus signature.
	for i, row := range ld.raw.MemberRefs {
		mi, d := ld.resolveMemberRef(i, &row)
		if d != nil {
			return d
		}
		ld.asm.ImportedMembers[i] = mi
	}

	// Method bodies decode last: clause catch-types and local signatures
	// may reference any type in the assembly.
	if !ld.asm.ReflectionOnly {
		for i := range ld.raw.MethodDefs {
			if d := ld.fillBody(ld.asm.DefinedMethods[i], ld.raw.MethodDefs[i].Body); d != nil {
				return d
			}
		}
	} else {
		for i := range ld.raw.MethodDefs {
			if body := ld.raw.MethodDefs[i].Body; body != nil {
				// Reflection-only: keep the raw bytes, decode nothing.
				ld.asm.DefinedMethods[i].Body = &metadata.MethodBody{
					CIL:        body.CIL,
					MaxStack:   body.MaxStack,
					InitLocals: body.InitLocals,
				}
			}
		}
	}

	return nil
}

// fillType performs steps (a)-(g) of the fill protocol for one type.
func (ld *assemblyLoad) fillType(t *metadata.Type) *report.Diagnostic {
	if t.IsFilled {
		return nil
	}

	if t.DeclaringModule != ld.asm.Module {
		// A type from another assembly is already frozen by its own load.
		return nil
	}

	if ld.filling[t] {
		return report.New(report.BadFormat, ld.asm.Name, uint32(t.Token),
			"layout cycle: value type %s (transitively) embeds itself", t.FullName())
	}
	ld.filling[t] = true
	defer delete(ld.filling, t)

	if t.Parent != nil {
		if d := ld.fillType(t.Parent); d != nil {
			return d
		}
	}

	for i := range t.Interfaces {
		if d := ld.fillType(t.Interfaces[i].Interface); d != nil {
			return d
		}
	}

	rc := &ResolveContext{Assembly: ld.asm, TypeArgs: t.GenericArgs}
	row := &ld.raw.TypeDefs[int(t.Token.Row())-1]

	// (a) Field types.
	for i, f := range t.Fields {
		rawField := &ld.raw.Fields[row.FieldFirst-1+i]

		ref, d := sig.DecodeField(ld.asm.Name, rawField.Signature)
		if d != nil {
			return d
		}

		ft, d := ld.loader.ResolveType(ref, rc)
		if d != nil {
			return d
		}
		f.Type = ft

		// Embedded value types must be laid out before this type can be.
		if ft.IsValueType() && !f.IsStatic() {
			if d := ld.fillType(ft); d != nil {
				return d
			}
		}
	}

	if t.IsEnum() {
		// An enum's layout is its single instance field's.
		for _, f := range t.Fields {
			if !f.IsStatic() && !f.IsLiteral() {
				t.ElementType = f.Type
				break
			}
		}
		if t.ElementType == nil {
			return report.New(report.BadFormat, ld.asm.Name, uint32(t.Token),
				"enum %s has no instance field", t.FullName())
		}
	}

	// (b)(c) Method signatures and flags.
	for i, m := range t.Methods {
		rawMethod := &ld.raw.MethodDefs[row.MethodFirst-1+i]

		ms, d := sig.DecodeMethod(ld.asm.Name, rawMethod.Signature)
		if d != nil {
			return d
		}

		ret, d := ld.loader.ResolveType(ms.RetType, rc)
		if d != nil {
			return d
		}
		if ret != ld.loader.Universe.Void {
			m.ReturnType = ret
		}

		m.Params = make([]metadata.Param, len(ms.Params))
		for p, pref := range ms.Params {
			pt, d := ld.loader.ResolveType(pref, rc)
			if d != nil {
				return d
			}
			m.Params[p] = metadata.Param{Name: paramName(p), Type: pt}
		}
	}

	// (d) Field layout.
	if d := ld.layoutType(t, row); d != nil {
		return d
	}

	// (e)(f) Vtable and interface slot runs.
	if !t.IsByRef() {
		if d := layout.BuildVTable(t); d != nil {
			return d
		}
	}

	// (g) Freeze.
	t.IsFilled = true
	return nil
}

// layoutType dispatches to the layout rules, stamping explicit field
// offsets first when the type carries a class-layout record.
func (ld *assemblyLoad) layoutType(t *metadata.Type, row *RawTypeDef) *report.Diagnostic {
	var cl *layout.ClassLayout

	tdRow := int(t.Token.Row())
	for _, rawCL := range ld.raw.ClassLayouts {
		if rawCL.ClassRow == tdRow {
			cl = &layout.ClassLayout{PackingSize: rawCL.PackingSize, ClassSize: rawCL.ClassSize}
			break
		}
	}

	if t.Flags.Has(metadata.FlagExplicitLayout) {
		for _, fl := range ld.raw.FieldLayouts {
			if fl.FieldRow >= row.FieldFirst && fl.FieldRow < row.FieldFirst+row.FieldCount {
				ld.asm.DefinedFields[fl.FieldRow-1].Offset = fl.Offset
			}
		}
	}

	switch {
	case t.IsInterface():
		// An interface has no instance layout of its own; its stack form
		// is the two-word fat pointer, tracked by the JIT, while the
		// declared stack type stays Object for the underlying reference.
		t.StackType = metadata.StackObject
		t.StackSize = 8
		t.StackAlign = 8
		t.ManagedSize = 8
		t.ManagedAlign = 8
		return nil

	case t.IsValueType():
		return layout.FillValueType(t, cl)

	default:
		return layout.FillReferenceType(t)
	}
}

// fillBody decodes a method body's local signature and exception clauses
// and scans it once for a tail. prefix.
func (ld *assemblyLoad) fillBody(m *metadata.MethodInfo, raw *RawBody) *report.Diagnostic {
	if raw == nil {
		return nil
	}

	body := &metadata.MethodBody{
		CIL:        raw.CIL,
		MaxStack:   raw.MaxStack,
		InitLocals: raw.InitLocals,
	}

	rc := &ResolveContext{Assembly: ld.asm, TypeArgs: m.DeclaringType.GenericArgs}

	if len(raw.LocalsSig) > 0 {
		refs, d := sig.DecodeLocals(ld.asm.Name, raw.LocalsSig)
		if d != nil {
			return d
		}

		body.Locals = make([]metadata.LocalVariableInfo, len(refs))
		for i, ref := range refs {
			lt, d := ld.loader.ResolveType(ref, rc)
			if d != nil {
				return d
			}
			body.Locals[i] = metadata.LocalVariableInfo{Index: i, Type: lt}
		}
	}

	body.Clauses = make([]metadata.ExceptionHandlingClause, len(raw.Clauses))
	for i, rawClause := range raw.Clauses {
		clause := metadata.ExceptionHandlingClause{
			Kind:          rawClause.Kind,
			TryOffset:     rawClause.TryOffset,
			TryLength:     rawClause.TryLength,
			HandlerOffset: rawClause.HandlerOffset,
			HandlerLength: rawClause.HandlerLength,
			FilterOffset:  rawClause.FilterOffset,
		}

		if rawClause.Kind == metadata.ClauseCatch {
			ct, d := ld.loader.resolveToken(rawClause.CatchType, rc)
			if d != nil {
				return d
			}
			clause.CatchType = ct
		}

		body.Clauses[i] = clause
	}

	// One decode sweep: flags the method for tail-call lowering and
	// surfaces malformed bodies at load time instead of first JIT.
	dec := cil.NewDecoder(ld.asm.Name, raw.CIL)
	for dec.More() {
		in, d := dec.Decode()
		if d != nil {
			return d
		}
		if in.Op == cil.OpTail {
			m.IsTailCallCandidate = true
		}
	}

	m.Body = body
	return nil
}

// resolveMemberRef finds the imported method a MemberRef row names by
// matching name and signature against the declaring type's methods.
func (ld *assemblyLoad) resolveMemberRef(idx int, row *RawMemberRef) (*metadata.MethodInfo, *report.Diagnostic) {
	tok := metadata.NewToken(metadata.TableMemberRef, uint32(idx+1))
	rc := &ResolveContext{Assembly: ld.asm}

	decl, d := ld.loader.resolveToken(row.Class, rc)
	if d != nil {
		return nil, d
	}

	ms, d := sig.DecodeMethod(ld.asm.Name, row.Signature)
	if d != nil {
		return nil, d
	}

	mrc := &ResolveContext{Assembly: ld.asm, TypeArgs: decl.GenericArgs}

	var ret *metadata.Type
	retType, d := ld.loader.ResolveType(ms.RetType, mrc)
	if d != nil {
		return nil, d
	}
	if retType != ld.loader.Universe.Void {
		ret = retType
	}

	params := make([]*metadata.Type, len(ms.Params))
	for i, pref := range ms.Params {
		pt, d := ld.loader.ResolveType(pref, mrc)
		if d != nil {
			return nil, d
		}
		params[i] = pt
	}

	for cur := decl; cur != nil; cur = cur.Parent {
		for _, m := range cur.Methods {
			if m.Name != row.Name || len(m.Params) != len(params) || m.ReturnType != ret {
				continue
			}

			match := true
			for i := range params {
				if m.Params[i].Type != params[i] {
					match = false
					break
				}
			}

			if match {
				return m, nil
			}
		}
	}

	return nil, report.New(report.NotFound, ld.asm.Name, uint32(tok),
		"member %s::%s with matching signature not found", decl.FullName(), row.Name)
}

// fillInstantiation populates a lazily-created generic instantiation:
// member shells are copied from the definition with every generic
// parameter substituted, then laid out like any other type.
func (l *Loader) fillInstantiation(inst *metadata.Type) *report.Diagnostic {
	def := inst.GenericDefinition

	// Instantiation fill happens inside assembly load or a JIT phase,
	// both of which the driver serializes; the in-progress map exists for
	// recursion (Node<T> embedding Node<T>), not cross-thread safety.
	l.instMu.Lock()
	if inst.IsFilled || l.instFilling[inst] {
		l.instMu.Unlock()
		return nil
	}
	l.instFilling[inst] = true
	l.instMu.Unlock()

	defer func() {
		l.instMu.Lock()
		delete(l.instFilling, inst)
		l.instMu.Unlock()
	}()
	subst := func(t *metadata.Type) *metadata.Type {
		return substituteType(t, def.GenericArgs, inst.GenericArgs)
	}

	inst.Parent = subst(def.Parent)

	inst.Fields = make([]*metadata.FieldInfo, len(def.Fields))
	for i, f := range def.Fields {
		nf := *f
		nf.DeclaringType = inst
		nf.Type = subst(f.Type)
		inst.Fields[i] = &nf
	}

	inst.Methods = make([]*metadata.MethodInfo, len(def.Methods))
	for i, m := range def.Methods {
		nm := metadata.MethodInfo{
			DeclaringType:       inst,
			DeclaringModule:     m.DeclaringModule,
			Token:               m.Token,
			Name:                m.Name,
			ReturnType:          m.ReturnType,
			Params:              m.Params,
			Attributes:          m.Attributes,
			Visibility:          m.Visibility,
			Impl:                m.Impl,
			Codegen:             m.Codegen,
			Body:                m.Body,
			VTableSlot:          m.VTableSlot,
			ThisByRef:           m.ThisByRef,
			IsTailCallCandidate: m.IsTailCallCandidate,
		}
		nm.ReturnType = subst(m.ReturnType)
		nm.Params = make([]metadata.Param, len(m.Params))
		for p := range m.Params {
			nm.Params[p] = metadata.Param{Name: m.Params[p].Name, Type: subst(m.Params[p].Type)}
		}

		if body := m.Body; body != nil {
			nb := *body
			nb.Locals = make([]metadata.LocalVariableInfo, len(body.Locals))
			for li, lv := range body.Locals {
				nb.Locals[li] = metadata.LocalVariableInfo{Index: lv.Index, Type: subst(lv.Type)}
			}
			nb.Clauses = make([]metadata.ExceptionHandlingClause, len(body.Clauses))
			for ci, c := range body.Clauses {
				nc := c
				nc.CatchType = subst(c.CatchType)
				nb.Clauses[ci] = nc
			}
			nm.Body = &nb
		}

		inst.Methods[i] = &nm
	}

	inst.Interfaces = make([]metadata.InterfaceImpl, len(def.Interfaces))
	for i, impl := range def.Interfaces {
		inst.Interfaces[i] = metadata.InterfaceImpl{Interface: subst(impl.Interface)}
	}

	// Embedded value-type instantiations created by substitution must be
	// laid out before this one can be.
	for _, f := range inst.Fields {
		if f.Type.IsValueType() && !f.Type.IsFilled && f.Type.GenericDefinition != nil {
			if d := l.fillInstantiation(f.Type); d != nil {
				return d
			}
		}
	}

	var d *report.Diagnostic
	if inst.IsValueType() {
		d = layout.FillValueType(inst, nil)
	} else {
		d = layout.FillReferenceType(inst)
	}
	if d != nil {
		return d
	}

	if d := layout.BuildVTable(inst); d != nil {
		return d
	}

	inst.IsFilled = true
	return nil
}

// substituteType rewrites generic parameters (and derivatives over them)
// with the instantiation's arguments.
func substituteType(t *metadata.Type, params, args []*metadata.Type) *metadata.Type {
	if t == nil {
		return nil
	}

	if t.IsGenericParam() {
		for i, p := range params {
			if t == p {
				return args[i]
			}
		}
		return t
	}

	if t.ElementType != nil {
		elem := substituteType(t.ElementType, params, args)
		if elem != t.ElementType {
			switch {
			case t.IsByRef():
				return elem.ByRefOf()
			case t.IsArray():
				return elem.ArrayOf()
			case t.Flags.Has(metadata.FlagPointer):
				return elem.PointerOf()
			}
		}
		return t
	}

	if len(t.GenericArgs) > 0 && t.GenericDefinition != nil {
		sub := make([]*metadata.Type, len(t.GenericArgs))
		changed := false
		for i, a := range t.GenericArgs {
			sub[i] = substituteType(a, params, args)
			if sub[i] != a {
				changed = true
			}
		}
		if changed {
			return t.GenericDefinition.Instantiate(sub)
		}
	}

	return t
}

func paramName(i int) string {
	const names = "abcdefghijklmnop"
	if i < len(names) {
		return string(names[i])
	}
	return "p"
}
