package sig

import (
	"fmt"

	"corejit/report"
)

// reader walks an immutable signature blob. It never mutates the blob and
// never looks anything up in metadata: resolution is left to the caller
// at materialization time.
type reader struct {
	blob     []byte
	pos      int
	assembly string // for diagnostics only
}

func (r *reader) bad(format string, args ...interface{}) *report.Diagnostic {
	return report.BadFormatf(r.assembly, format, args...)
}

func (r *reader) byte() (byte, *report.Diagnostic) {
	if r.pos >= len(r.blob) {
		return 0, r.bad("signature blob truncated at offset %d", r.pos)
	}
	b := r.blob[r.pos]
	r.pos++
	return b, nil
}

// compressed decodes a CLI compressed unsigned integer: 1, 2, or 4 bytes
// depending on the leading bit pattern of the first byte.
func (r *reader) compressed() (uint32, *report.Diagnostic) {
	b0, err := r.byte()
	if err != nil {
		return 0, err
	}

	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.byte()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		var rest [3]byte
		for i := range rest {
			b, err := r.byte()
			if err != nil {
				return 0, err
			}
			rest[i] = b
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	default:
		return 0, r.bad("illegal compressed-integer lead byte 0x%02x", b0)
	}
}

// signedCompressed decodes a CLI compressed signed integer (used for
// explicit array lower bounds), per the ECMA-335 zig-zag-ish scheme: same
// byte-count rules as compressed(), with the low bit as the sign flag
// after an arithmetic right shift.
func (r *reader) signedCompressed() (int32, *report.Diagnostic) {
	u, err := r.compressed()
	if err != nil {
		return 0, err
	}

	// Re-derive the original bit-width from the encoded magnitude so the
	// sign bit is extracted from the correct position.
	var v int32
	switch {
	case u < 0x80:
		v = int32(u << 25) >> 25
	case u < 0x4000:
		v = int32(u << 18) >> 18
	default:
		v = int32(u << 3) >> 3
	}
	return v, nil
}

func (r *reader) token() (Token, *report.Diagnostic) {
	u, err := r.compressed()
	if err != nil {
		return 0, err
	}
	// A TypeDefOrRef-coded token packs the table selector into the low 2
	// bits and the row into the remainder; unpack into a plain
	// metadata-shaped token (table in the high byte, row in the low three).
	const (
		codedTypeDef = 0
		codedTypeRef = 1
		codedTypeSpec = 2
	)
	table := u & 0x3
	row := u >> 2

	var hi uint32
	switch table {
	case codedTypeDef:
		hi = 0x02
	case codedTypeRef:
		hi = 0x01
	case codedTypeSpec:
		hi = 0x1B
	default:
		return 0, r.bad("illegal TypeDefOrRef coded-token selector %d", table)
	}

	return Token(hi<<24 | row), nil
}

// DecodeType decodes a single (possibly compound) type reference starting
// at the reader's current position.
func (r *reader) decodeType() (*TypeRef, *report.Diagnostic) {
	var mods []CustomMod
	for {
		save := r.pos
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		if ElementType(b) == ElementCModOpt || ElementType(b) == ElementCModReqd {
			tok, err := r.token()
			if err != nil {
				return nil, err
			}
			mods = append(mods, CustomMod{Required: ElementType(b) == ElementCModReqd, Type: tok})
			continue
		}
		r.pos = save
		break
	}

	elem, err := r.byte()
	if err != nil {
		return nil, err
	}
	et := ElementType(elem)

	switch et {
	case ElementVoid, ElementBoolean, ElementChar, ElementI1, ElementU1,
		ElementI2, ElementU2, ElementI4, ElementU4, ElementI8, ElementU8,
		ElementR4, ElementR8, ElementString, ElementI, ElementU,
		ElementObject, ElementTypedByRef:
		return &TypeRef{Elem: et, Mods: mods}, nil

	case ElementClass, ElementValueType:
		tok, err := r.token()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Elem: et, TypeToken: tok, Mods: mods}, nil

	case ElementSZArray:
		inner, err := r.decodeType()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Elem: et, Inner: inner, Mods: mods}, nil

	case ElementPtr, ElementByRef:
		inner, err := r.decodeType()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Elem: et, Inner: inner, Mods: mods}, nil

	case ElementArray:
		return r.decodeArray(mods)

	case ElementVar, ElementMVar:
		idx, err := r.compressed()
		if err != nil {
			return nil, err
		}
		return &TypeRef{Elem: et, GenericParamIndex: int(idx), Mods: mods}, nil

	case ElementGenericInst:
		genElem, err := r.byte()
		if err != nil {
			return nil, err
		}
		if ElementType(genElem) != ElementClass && ElementType(genElem) != ElementValueType {
			return nil, r.bad("GENERICINST must be followed by CLASS or VALUETYPE, got 0x%02x", genElem)
		}
		defTok, err := r.token()
		if err != nil {
			return nil, err
		}
		argc, err := r.compressed()
		if err != nil {
			return nil, err
		}
		args := make([]*TypeRef, argc)
		for i := range args {
			a, err := r.decodeType()
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return &TypeRef{
			Elem:        et,
			GenericDef:  &TypeRef{Elem: ElementType(genElem), TypeToken: defTok},
			GenericArgs: args,
			Mods:        mods,
		}, nil

	default:
		return nil, r.bad("illegal or unsupported signature element type 0x%02x", elem)
	}
}

func (r *reader) decodeArray(mods []CustomMod) (*TypeRef, *report.Diagnostic) {
	elemType, err := r.decodeType()
	if err != nil {
		return nil, err
	}

	rank, err := r.compressed()
	if err != nil {
		return nil, err
	}

	numSizes, err := r.compressed()
	if err != nil {
		return nil, err
	}
	sizes := make([]int, numSizes)
	for i := range sizes {
		s, err := r.compressed()
		if err != nil {
			return nil, err
		}
		sizes[i] = int(s)
	}

	numLoBounds, err := r.compressed()
	if err != nil {
		return nil, err
	}
	loBounds := make([]int, numLoBounds)
	for i := range loBounds {
		b, err := r.signedCompressed()
		if err != nil {
			return nil, err
		}
		loBounds[i] = int(b)
	}

	return &TypeRef{
		Elem:          ElementArray,
		Inner:         elemType,
		ArrayRank:     int(rank),
		ArraySizes:    sizes,
		ArrayLoBounds: loBounds,
		Mods:          mods,
	}, nil
}

// DecodeField decodes a field signature: FIELD (0x06) followed by a type.
func DecodeField(assembly string, blob []byte) (*TypeRef, *report.Diagnostic) {
	r := &reader{blob: blob, assembly: assembly}

	lead, err := r.byte()
	if err != nil {
		return nil, err
	}
	if lead != 0x06 {
		return nil, r.bad("field signature must begin with 0x06, got 0x%02x", lead)
	}

	return r.decodeType()
}

// DecodeMethod decodes a method signature: a calling-convention byte,
// optional generic-param count, param count, return type, and parameter
// types.
func DecodeMethod(assembly string, blob []byte) (*MethodSig, *report.Diagnostic) {
	r := &reader{blob: blob, assembly: assembly}

	lead, err := r.byte()
	if err != nil {
		return nil, err
	}

	ms := &MethodSig{
		Conv:         CallingConvention(lead & 0x0F),
		HasThis:      lead&flagHasThis != 0,
		ExplicitThis: lead&flagExplicitThis != 0,
	}

	if lead&flagGeneric != 0 {
		gc, err := r.compressed()
		if err != nil {
			return nil, err
		}
		ms.GenericParamCount = int(gc)
	}

	paramCount, err := r.compressed()
	if err != nil {
		return nil, err
	}

	ret, err := r.decodeType()
	if err != nil {
		return nil, err
	}
	ms.RetType = ret

	ms.Params = make([]*TypeRef, paramCount)
	for i := range ms.Params {
		p, err := r.decodeType()
		if err != nil {
			return nil, err
		}
		ms.Params[i] = p
	}

	return ms, nil
}

// DecodeLocals decodes a LOCAL_SIG blob (0x07 lead, count, then a type
// per local), used by the loader to fill MethodBody.Locals.
func DecodeLocals(assembly string, blob []byte) ([]*TypeRef, *report.Diagnostic) {
	r := &reader{blob: blob, assembly: assembly}

	lead, err := r.byte()
	if err != nil {
		return nil, err
	}
	if lead != 0x07 {
		return nil, r.bad("local-variable signature must begin with 0x07, got 0x%02x", lead)
	}

	count, err := r.compressed()
	if err != nil {
		return nil, err
	}

	out := make([]*TypeRef, count)
	for i := range out {
		t, err := r.decodeType()
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// DecodeTypeSpec decodes a bare TypeSpec blob (no leading calling
// convention byte, just one type).
func DecodeTypeSpec(assembly string, blob []byte) (*TypeRef, *report.Diagnostic) {
	r := &reader{blob: blob, assembly: assembly}
	return r.decodeType()
}

func init() {
	// Guard against accidental changes to the element-type constants
	// silently breaking the CMOD detection switch in decodeType.
	if ElementCModOpt == ElementCModReqd {
		panic(fmt.Sprintf("sig: ElementCModOpt and ElementCModReqd must differ"))
	}
}
