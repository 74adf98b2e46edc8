package loader

import (
	"corejit/metadata"
	"corejit/report"
	"corejit/sig"
)

// ResolveContext is the scope a signature resolves against: the assembly
// whose tokens the signature embeds, plus the generic arguments in scope
// for the enclosing type (VAR) and method (MVAR).
type ResolveContext struct {
	Assembly *metadata.Assembly

	TypeArgs   []*metadata.Type
	MethodArgs []*metadata.Type
}

// ResolveType materializes a decoded signature type reference into a
// *metadata.Type, creating array/byref/pointer derivatives and generic
// instantiations on demand.
func (l *Loader) ResolveType(ref *sig.TypeRef, rc *ResolveContext) (*metadata.Type, *report.Diagnostic) {
	u := l.Universe

	switch ref.Elem {
	case sig.ElementVoid:
		return u.Void, nil
	case sig.ElementBoolean:
		return u.Boolean, nil
	case sig.ElementChar:
		return u.Char, nil
	case sig.ElementI1:
		return u.SByte, nil
	case sig.ElementU1:
		return u.Byte, nil
	case sig.ElementI2:
		return u.Int16, nil
	case sig.ElementU2:
		return u.UInt16, nil
	case sig.ElementI4:
		return u.Int32, nil
	case sig.ElementU4:
		return u.UInt32, nil
	case sig.ElementI8:
		return u.Int64, nil
	case sig.ElementU8:
		return u.UInt64, nil
	case sig.ElementR4:
		return u.Single, nil
	case sig.ElementR8:
		return u.Double, nil
	case sig.ElementI:
		return u.IntPtr, nil
	case sig.ElementU:
		return u.UIntPtr, nil
	case sig.ElementString:
		return u.String, nil
	case sig.ElementObject:
		return u.Object, nil

	case sig.ElementClass, sig.ElementValueType:
		t, d := l.resolveToken(metadata.Token(ref.TypeToken), rc)
		if d != nil {
			return nil, d
		}

		if ref.Elem == sig.ElementValueType && !t.IsValueType() {
			return nil, report.New(report.BadFormat, rc.Assembly.Name, uint32(ref.TypeToken),
				"signature declares %s as a value type but it is not one", t.FullName())
		}

		return t, nil

	case sig.ElementSZArray:
		elem, d := l.ResolveType(ref.Inner, rc)
		if d != nil {
			return nil, d
		}
		return elem.ArrayOf(), nil

	case sig.ElementArray:
		// Multi-dimensional arrays share the SZArray runtime shape; the
		// shape's sizes/bounds are a verification detail the JIT does not
		// consume beyond rank-1.
		elem, d := l.ResolveType(ref.Inner, rc)
		if d != nil {
			return nil, d
		}
		return elem.ArrayOf(), nil

	case sig.ElementByRef:
		elem, d := l.ResolveType(ref.Inner, rc)
		if d != nil {
			return nil, d
		}

		if elem.IsByRef() {
			return nil, report.New(report.BadFormat, rc.Assembly.Name, 0,
				"by-ref of by-ref (%s&&) is invalid", elem.ElementType.FullName())
		}

		return elem.ByRefOf(), nil

	case sig.ElementPtr:
		elem, d := l.ResolveType(ref.Inner, rc)
		if d != nil {
			return nil, d
		}
		return elem.PointerOf(), nil

	case sig.ElementVar:
		if ref.GenericParamIndex >= len(rc.TypeArgs) {
			return nil, report.New(report.BadFormat, rc.Assembly.Name, 0,
				"signature references type generic parameter %d but only %d are in scope",
				ref.GenericParamIndex, len(rc.TypeArgs))
		}
		return rc.TypeArgs[ref.GenericParamIndex], nil

	case sig.ElementMVar:
		if ref.GenericParamIndex >= len(rc.MethodArgs) {
			return nil, report.New(report.BadFormat, rc.Assembly.Name, 0,
				"signature references method generic parameter %d but only %d are in scope",
				ref.GenericParamIndex, len(rc.MethodArgs))
		}
		return rc.MethodArgs[ref.GenericParamIndex], nil

	case sig.ElementGenericInst:
		def, d := l.ResolveType(ref.GenericDef, rc)
		if d != nil {
			return nil, d
		}

		if !def.Flags.Has(metadata.FlagGenericDefinition) {
			return nil, report.New(report.BadFormat, rc.Assembly.Name, 0,
				"GENERICINST over non-generic type %s", def.FullName())
		}

		args := make([]*metadata.Type, len(ref.GenericArgs))
		for i, argRef := range ref.GenericArgs {
			arg, d := l.ResolveType(argRef, rc)
			if d != nil {
				return nil, d
			}
			args[i] = arg
		}

		inst := def.Instantiate(args)
		if d := l.fillInstantiation(inst); d != nil {
			return nil, d
		}
		return inst, nil
	}

	return nil, report.New(report.BadFormat, rc.Assembly.Name, 0,
		"unsupported signature element 0x%02x", byte(ref.Elem))
}

// ResolveTypeTokenIn materializes a TypeDefOrRef/TypeSpec token carried
// in a CIL instruction operand against its assembly; the JIT uses this
// for every type-token opcode (newarr, box, castclass, ...).
func (l *Loader) ResolveTypeTokenIn(asm *metadata.Assembly, tok metadata.Token, typeArgs []*metadata.Type) (*metadata.Type, *report.Diagnostic) {
	return l.resolveToken(tok, &ResolveContext{Assembly: asm, TypeArgs: typeArgs})
}

// resolveToken materializes a TypeDefOrRef/TypeSpec token against the
// resolving assembly, decoding TypeSpec blobs on first reference.
func (l *Loader) resolveToken(tok metadata.Token, rc *ResolveContext) (*metadata.Type, *report.Diagnostic) {
	asm := rc.Assembly

	if tok.Table() == metadata.TableTypeSpec {
		idx := int(tok.Row() - 1)
		if idx < 0 || idx >= len(asm.DefinedTypeSpecs) {
			return nil, report.New(report.NotFound, asm.Name, uint32(tok), "TypeSpec token out of range")
		}

		if asm.DefinedTypeSpecs[idx] != nil {
			return asm.DefinedTypeSpecs[idx], nil
		}

		// Materialize the spec's signature now; the blob was stashed on
		// the load by row index.
		blob := l.typeSpecBlob(asm, idx)
		if blob == nil {
			return nil, report.New(report.NotFound, asm.Name, uint32(tok), "TypeSpec blob missing")
		}

		ref, d := sig.DecodeTypeSpec(asm.Name, blob)
		if d != nil {
			return nil, d
		}

		t, d := l.ResolveType(ref, rc)
		if d != nil {
			return nil, d
		}

		asm.DefinedTypeSpecs[idx] = t
		return t, nil
	}

	t, ok := asm.ResolveTypeToken(tok)
	if !ok {
		return nil, report.New(report.NotFound, asm.Name, uint32(tok), "unresolvable type token")
	}
	return t, nil
}

func (l *Loader) typeSpecBlob(asm *metadata.Assembly, idx int) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	blobs := l.specBlobs[asm]
	if idx < len(blobs) {
		return blobs[idx]
	}
	return nil
}
