package sig

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
)

func roundTripField(t *testing.T, ref *TypeRef) {
	t.Helper()

	blob := EncodeField(ref)
	decoded, d := DecodeField("test", blob)
	if d != nil {
		t.Fatalf("decode failed: %s\nencoded: % x", d, blob)
	}

	re := EncodeField(decoded)
	if !bytes.Equal(blob, re) {
		t.Errorf("field signature round trip not byte-identical:\n% x\n% x\ndecoded: %# v",
			blob, re, pretty.Formatter(decoded))
	}
}

func TestFieldSignatureRoundTrip(t *testing.T) {
	cases := []*TypeRef{
		{Elem: ElementI4},
		{Elem: ElementString},
		{Elem: ElementSZArray, Inner: &TypeRef{Elem: ElementR8}},
		{Elem: ElementByRef, Inner: &TypeRef{Elem: ElementI2}},
		{Elem: ElementPtr, Inner: &TypeRef{Elem: ElementU}},
		{Elem: ElementClass, TypeToken: Token(0x02000004)},
		{Elem: ElementValueType, TypeToken: Token(0x1B000002)},
		{Elem: ElementVar, GenericParamIndex: 1},
		{Elem: ElementMVar, GenericParamIndex: 0},
		{
			Elem:       ElementGenericInst,
			GenericDef: &TypeRef{Elem: ElementClass, TypeToken: Token(0x02000001)},
			GenericArgs: []*TypeRef{
				{Elem: ElementI4},
				{Elem: ElementSZArray, Inner: &TypeRef{Elem: ElementObject}},
			},
		},
		{
			Elem: ElementI4,
			Mods: []CustomMod{{Required: true, Type: Token(0x02000002)}},
		},
		{
			Elem:          ElementArray,
			Inner:         &TypeRef{Elem: ElementI4},
			ArrayRank:     2,
			ArraySizes:    []int{3, 4},
			ArrayLoBounds: []int{0, -1},
		},
	}

	for _, ref := range cases {
		roundTripField(t, ref)
	}
}

func TestMethodSignatureRoundTrip(t *testing.T) {
	ms := &MethodSig{
		HasThis: true,
		RetType: &TypeRef{Elem: ElementVoid},
		Params: []*TypeRef{
			{Elem: ElementI4},
			{Elem: ElementClass, TypeToken: Token(0x02000003)},
			{Elem: ElementByRef, Inner: &TypeRef{Elem: ElementR4}},
		},
	}

	blob := EncodeMethod(ms)
	decoded, d := DecodeMethod("test", blob)
	if d != nil {
		t.Fatalf("decode failed: %s", d)
	}

	if diff := cmp.Diff(ms, decoded); diff != "" {
		t.Errorf("decoded method signature differs (-want +got):\n%s", diff)
	}

	if re := EncodeMethod(decoded); !bytes.Equal(blob, re) {
		t.Errorf("method signature round trip not byte-identical:\n% x\n% x", blob, re)
	}
}

func TestLocalsSignatureRoundTrip(t *testing.T) {
	locals := []*TypeRef{
		{Elem: ElementI4},
		{Elem: ElementSZArray, Inner: &TypeRef{Elem: ElementString}},
	}

	blob := EncodeLocals(locals)
	decoded, d := DecodeLocals("test", blob)
	if d != nil {
		t.Fatalf("decode failed: %s", d)
	}

	if re := EncodeLocals(decoded); !bytes.Equal(blob, re) {
		t.Errorf("locals signature round trip not byte-identical:\n% x\n% x", blob, re)
	}
}

func TestCompressedIntegerEdges(t *testing.T) {
	// One byte for values below 0x80, two below 0x4000, four otherwise.
	for _, v := range []uint32{0, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFFFF} {
		w := &writer{}
		w.compressed(v)

		r := &reader{blob: w.buf, assembly: "test"}
		got, d := r.compressed()
		if d != nil {
			t.Fatalf("decode of %#x failed: %s", v, d)
		}
		if got != v {
			t.Errorf("compressed(%#x) round-tripped to %#x", v, got)
		}
	}
}

func TestTruncatedSignatureRejected(t *testing.T) {
	if _, d := DecodeField("test", []byte{0x06}); d == nil {
		t.Error("truncated field signature must be rejected")
	}

	if _, d := DecodeField("test", []byte{0x05, 0x08}); d == nil {
		t.Error("wrong lead byte must be rejected")
	}

	if _, d := DecodeMethod("test", []byte{0x00, 0x02, 0x08, 0x08}); d == nil {
		t.Error("method signature missing parameters must be rejected")
	}
}
