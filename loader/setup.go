package loader

import (
	"strconv"

	"corejit/metadata"
	"corejit/report"
)

// setup is the first pass of the two-phase protocol: create a shell for
// every type, method, and field, resolve names and parents, and record
// member ownership — but defer every signature-derived type reference to
// the fill pass, because type graphs are cyclic.
func (ld *assemblyLoad) setup() *report.Diagnostic {
	raw, asm := ld.raw, ld.asm

	// Imported assemblies first: TypeRef resolution needs them.
	asm.References = make([]*metadata.Assembly, len(raw.AssemblyRefs))
	for i, name := range raw.AssemblyRefs {
		ref, ok := ld.loader.Assembly(name)
		if !ok {
			return report.New(report.NotFound, asm.Name, 0,
				"referenced assembly %s is not loaded", name)
		}
		asm.References[i] = ref
	}

	// Type shells.
	asm.DefinedTypes = make([]*metadata.Type, len(raw.TypeDefs))
	for i, row := range raw.TypeDefs {
		t := &metadata.Type{
			DeclaringModule: asm.Module,
			Namespace:       row.Namespace,
			Name:            row.Name,
			Token:           metadata.NewToken(metadata.TableTypeDef, uint32(i+1)),
			Visibility:      row.Visibility,
		}

		switch {
		case row.IsValueType || row.IsEnum:
			t.Kind = metadata.KindValueType
		default:
			t.Kind = metadata.KindObjectRef
		}

		if row.IsInterface {
			t.Flags |= metadata.FlagInterface
		}
		if row.IsAbstract {
			t.Flags |= metadata.FlagAbstract
		}
		if row.IsSealed {
			t.Flags |= metadata.FlagSealed
		}
		if row.IsEnum {
			t.Flags |= metadata.FlagEnum
		}
		if row.IsExplicitLayout {
			t.Flags |= metadata.FlagExplicitLayout
		}

		if row.GenericParamCount > 0 {
			t.Flags |= metadata.FlagGenericDefinition
			t.GenericArgs = make([]*metadata.Type, row.GenericParamCount)
			for p := 0; p < row.GenericParamCount; p++ {
				t.GenericArgs[p] = &metadata.Type{
					DeclaringModule:      asm.Module,
					Name:                 genericParamName(p),
					Kind:                 metadata.KindGenericParam,
					GenericParamPosition: p,
					DeclaringType:        t,
				}
			}
		}

		asm.DefinedTypes[i] = t
	}

	// Nesting links, now that every shell exists.
	for i, row := range raw.TypeDefs {
		if row.DeclaringRow > 0 {
			if row.DeclaringRow > len(asm.DefinedTypes) {
				return report.New(report.BadFormat, asm.Name, uint32(asm.DefinedTypes[i].Token),
					"nested type %s declares enclosing row %d past the TypeDef table",
					row.Name, row.DeclaringRow)
			}
			asm.DefinedTypes[i].DeclaringType = asm.DefinedTypes[row.DeclaringRow-1]
		}
	}

	// Imported type shells: resolved to their defining assembly's types
	// by name matching.
	asm.ImportedTypes = make([]*metadata.Type, len(raw.TypeRefs))
	for i, row := range raw.TypeRefs {
		t, d := ld.resolveTypeRefRow(i, row)
		if d != nil {
			return d
		}
		asm.ImportedTypes[i] = t
	}

	// Parent links (extends).
	for i, row := range raw.TypeDefs {
		t := asm.DefinedTypes[i]
		if row.Extends.IsNil() {
			// Only interfaces extend nothing; a classless extends falls
			// back to Object.
			if !t.IsInterface() {
				t.Parent = ld.loader.Universe.Object
			}
			continue
		}

		parent, ok := asm.ResolveTypeToken(row.Extends)
		if !ok {
			return report.New(report.NotFound, asm.Name, uint32(row.Extends),
				"type %s extends an unresolvable token", t.FullName())
		}
		t.Parent = parent
	}

	// Method and field shells, attached to their declaring types via the
	// row ranges.
	asm.DefinedMethods = make([]*metadata.MethodInfo, len(raw.MethodDefs))
	asm.DefinedFields = make([]*metadata.FieldInfo, len(raw.Fields))

	for i, row := range raw.TypeDefs {
		t := asm.DefinedTypes[i]

		for m := row.MethodFirst; m < row.MethodFirst+row.MethodCount; m++ {
			if m < 1 || m > len(raw.MethodDefs) {
				return report.New(report.BadFormat, asm.Name, uint32(t.Token),
					"type %s declares method row %d past the MethodDef table", t.FullName(), m)
			}

			mi := newMethodShell(asm, t, &raw.MethodDefs[m-1], m)
			asm.DefinedMethods[m-1] = mi
			t.Methods = append(t.Methods, mi)
		}

		for f := row.FieldFirst; f < row.FieldFirst+row.FieldCount; f++ {
			if f < 1 || f > len(raw.Fields) {
				return report.New(report.BadFormat, asm.Name, uint32(t.Token),
					"type %s declares field row %d past the Field table", t.FullName(), f)
			}

			fi := newFieldShell(asm, t, &raw.Fields[f-1], f)
			asm.DefinedFields[f-1] = fi
			t.Fields = append(t.Fields, fi)
		}
	}

	asm.DefinedTypeSpecs = make([]*metadata.Type, len(raw.TypeSpecs))
	asm.ImportedMembers = make([]*metadata.MethodInfo, len(raw.MemberRefs))

	return nil
}

// resolveTypeRefRow matches a TypeRef against the universe and the
// referenced assemblies' defined types.
func (ld *assemblyLoad) resolveTypeRefRow(row int, ref RawTypeRef) (*metadata.Type, *report.Diagnostic) {
	tok := metadata.NewToken(metadata.TableTypeRef, uint32(row+1))

	if t, ok := ld.loader.Universe.ByElementName(ref.Namespace, ref.Name); ok {
		return t, nil
	}

	search := func(a *metadata.Assembly) *metadata.Type {
		for _, t := range a.DefinedTypes {
			if t.Name == ref.Name && t.Namespace == ref.Namespace && t.DeclaringType == nil {
				return t
			}
		}
		return nil
	}

	if ref.AssemblyRef >= 0 {
		if ref.AssemblyRef >= len(ld.asm.References) {
			return nil, report.New(report.BadFormat, ld.asm.Name, uint32(tok),
				"TypeRef %s.%s names AssemblyRef %d past the table", ref.Namespace, ref.Name, ref.AssemblyRef)
		}

		if t := search(ld.asm.References[ref.AssemblyRef]); t != nil {
			return t, nil
		}

		return nil, report.New(report.NotFound, ld.asm.Name, uint32(tok),
			"type %s.%s not found in assembly %s", ref.Namespace, ref.Name,
			ld.asm.References[ref.AssemblyRef].Name)
	}

	if t := search(ld.asm); t != nil {
		return t, nil
	}

	return nil, report.New(report.NotFound, ld.asm.Name, uint32(tok),
		"type %s.%s not found in current assembly", ref.Namespace, ref.Name)
}

func newMethodShell(asm *metadata.Assembly, t *metadata.Type, row *RawMethodDef, rowIdx int) *metadata.MethodInfo {
	mi := &metadata.MethodInfo{
		DeclaringType:   t,
		DeclaringModule: asm.Module,
		Token:           metadata.NewToken(metadata.TableMethodDef, uint32(rowIdx)),
		Name:            row.Name,
		Visibility:      row.Visibility,
		Impl:            row.Impl,
		Codegen:         row.Codegen,
	}

	if row.Static {
		mi.Attributes |= metadata.MethodStatic
	}
	if row.Virtual {
		mi.Attributes |= metadata.MethodVirtual
	}
	if row.Abstract {
		mi.Attributes |= metadata.MethodAbstract
	}
	if row.Final {
		mi.Attributes |= metadata.MethodFinal
	}
	if row.NewSlot {
		mi.Attributes |= metadata.MethodNewSlot
	}
	if row.HideBySig {
		mi.Attributes |= metadata.MethodHideBySig
	}
	if row.RTSpecialName {
		mi.Attributes |= metadata.MethodRTSpecialName
	}

	if !row.Static && t.IsValueType() {
		// The hidden `this` of a value-type instance method is a byref to
		// the unboxed payload.
		mi.ThisByRef = true
	}

	return mi
}

func newFieldShell(asm *metadata.Assembly, t *metadata.Type, row *RawField, rowIdx int) *metadata.FieldInfo {
	fi := &metadata.FieldInfo{
		DeclaringType:   t,
		DeclaringModule: asm.Module,
		Token:           metadata.NewToken(metadata.TableField, uint32(rowIdx)),
		Name:            row.Name,
		Visibility:      row.Visibility,
	}

	if row.Static {
		fi.Attributes |= metadata.FieldStatic
	}
	if row.InitOnly {
		fi.Attributes |= metadata.FieldInitOnly
	}
	if row.Literal {
		fi.Attributes |= metadata.FieldLiteral
	}
	if row.RTSpecialName {
		fi.Attributes |= metadata.FieldRTSpecialName
	}

	return fi
}

// genericParamName produces the conventional !0, !1, ... display names.
func genericParamName(pos int) string {
	return "!" + strconv.Itoa(pos)
}
