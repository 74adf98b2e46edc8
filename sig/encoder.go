package sig

// writer accumulates an encoded signature blob.
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) compressed(v uint32) {
	switch {
	case v <= 0x7F:
		w.byte(byte(v))
	case v <= 0x3FFF:
		w.byte(byte(v>>8) | 0x80)
		w.byte(byte(v))
	default:
		w.byte(byte(v>>24) | 0xC0)
		w.byte(byte(v >> 16))
		w.byte(byte(v >> 8))
		w.byte(byte(v))
	}
}

func (w *writer) signedCompressed(v int32) {
	u := uint32(v)
	switch {
	case v >= -64 && v <= 63:
		w.compressed(u & 0x7F)
	case v >= -8192 && v <= 8191:
		w.compressed(u & 0x3FFF)
	default:
		w.compressed(u & 0x1FFFFFFF)
	}
}

func (w *writer) token(t Token) {
	hi := byte(t >> 24)
	row := uint32(t) & 0x00FFFFFF

	var selector uint32
	switch hi {
	case 0x02:
		selector = 0
	case 0x01:
		selector = 1
	case 0x1B:
		selector = 2
	}

	w.compressed(row<<2 | selector)
}

func (w *writer) writeMods(mods []CustomMod) {
	for _, m := range mods {
		if m.Required {
			w.byte(byte(ElementCModReqd))
		} else {
			w.byte(byte(ElementCModOpt))
		}
		w.token(m.Type)
	}
}

func (w *writer) writeType(t *TypeRef) {
	w.writeMods(t.Mods)
	w.byte(byte(t.Elem))

	switch t.Elem {
	case ElementClass, ElementValueType:
		w.token(t.TypeToken)

	case ElementSZArray, ElementPtr, ElementByRef:
		w.writeType(t.Inner)

	case ElementArray:
		w.writeType(t.Inner)
		w.compressed(uint32(t.ArrayRank))
		w.compressed(uint32(len(t.ArraySizes)))
		for _, s := range t.ArraySizes {
			w.compressed(uint32(s))
		}
		w.compressed(uint32(len(t.ArrayLoBounds)))
		for _, b := range t.ArrayLoBounds {
			w.signedCompressed(int32(b))
		}

	case ElementVar, ElementMVar:
		w.compressed(uint32(t.GenericParamIndex))

	case ElementGenericInst:
		w.byte(byte(t.GenericDef.Elem))
		w.token(t.GenericDef.TypeToken)
		w.compressed(uint32(len(t.GenericArgs)))
		for _, a := range t.GenericArgs {
			w.writeType(a)
		}
	}
}

// EncodeField re-encodes a decoded field type reference into a FIELD
// (0x06) signature blob.
func EncodeField(t *TypeRef) []byte {
	w := &writer{}
	w.byte(0x06)
	w.writeType(t)
	return w.buf
}

// EncodeMethod re-encodes a decoded method signature into its blob.
func EncodeMethod(ms *MethodSig) []byte {
	w := &writer{}

	lead := byte(ms.Conv)
	if ms.HasThis {
		lead |= flagHasThis
	}
	if ms.ExplicitThis {
		lead |= flagExplicitThis
	}
	if ms.GenericParamCount > 0 {
		lead |= flagGeneric
	}
	w.byte(lead)

	if ms.GenericParamCount > 0 {
		w.compressed(uint32(ms.GenericParamCount))
	}

	w.compressed(uint32(len(ms.Params)))
	w.writeType(ms.RetType)
	for _, p := range ms.Params {
		w.writeType(p)
	}

	return w.buf
}

// EncodeLocals re-encodes a decoded local-variable signature.
func EncodeLocals(locals []*TypeRef) []byte {
	w := &writer{}
	w.byte(0x07)
	w.compressed(uint32(len(locals)))
	for _, l := range locals {
		w.writeType(l)
	}
	return w.buf
}

// EncodeTypeSpec re-encodes a decoded bare type reference.
func EncodeTypeSpec(t *TypeRef) []byte {
	w := &writer{}
	w.writeType(t)
	return w.buf
}
