package loader

import (
	"testing"

	"corejit/config"
	"corejit/metadata"
	"corejit/report"
	"corejit/sig"
)

func i4() *sig.TypeRef { return &sig.TypeRef{Elem: sig.ElementI4} }

func fieldSig(t *sig.TypeRef) []byte { return sig.EncodeField(t) }

func methodSig(hasThis bool, ret *sig.TypeRef, params ...*sig.TypeRef) []byte {
	return sig.EncodeMethod(&sig.MethodSig{HasThis: hasThis, RetType: ret, Params: params})
}

// sampleAssembly builds a minimal in-memory assembly: a Point value type,
// an IGreet interface, and a Greeter class implementing it.
func sampleAssembly() *RawAssembly {
	voidRef := &sig.TypeRef{Elem: sig.ElementVoid}

	return &RawAssembly{
		Name:       "App",
		ModuleName: "App.dll",
		TypeDefs: []RawTypeDef{
			{
				Name: "Point", IsValueType: true, Visibility: metadata.VisibilityPublic,
				FieldFirst: 1, FieldCount: 2,
				MethodFirst: 1, MethodCount: 0,
			},
			{
				Name: "IGreet", IsInterface: true, IsAbstract: true, Visibility: metadata.VisibilityPublic,
				MethodFirst: 1, MethodCount: 1,
				FieldFirst: 3, FieldCount: 0,
			},
			{
				Name: "Greeter", Visibility: metadata.VisibilityPublic,
				MethodFirst: 2, MethodCount: 2,
				FieldFirst: 3, FieldCount: 1,
			},
		},
		Fields: []RawField{
			{Name: "x", Signature: fieldSig(i4()), Visibility: metadata.FieldPublic},
			{Name: "y", Signature: fieldSig(i4()), Visibility: metadata.FieldPublic},
			{Name: "count", Signature: fieldSig(i4()), Visibility: metadata.FieldPrivate},
		},
		MethodDefs: []RawMethodDef{
			{
				Name: "Greet", Virtual: true, Abstract: true, NewSlot: true,
				Visibility: metadata.MethodPublic,
				Signature:  methodSig(true, i4()),
			},
			{
				Name: "Greet", Virtual: true, NewSlot: true,
				Visibility: metadata.MethodPublic,
				Signature:  methodSig(true, i4()),
				Body:       &RawBody{CIL: []byte{0x16, 0x2A}, MaxStack: 1, InitLocals: true},
			},
			{
				Name: "Reset", Visibility: metadata.MethodPublic,
				Signature: methodSig(true, voidRef, i4()),
				Body:      &RawBody{CIL: []byte{0x2A}, MaxStack: 0, InitLocals: true},
			},
		},
		InterfaceImpls: []RawInterfaceImpl{
			{ClassRow: 3, Interface: metadata.NewToken(metadata.TableTypeDef, 2)},
		},
	}
}

func TestLoadAssembly(t *testing.T) {
	l := New(config.Default())

	asm, d := l.LoadAssembly(sampleAssembly(), false)
	if d != nil {
		t.Fatalf("load failed: %s", d)
	}

	point := asm.DefinedTypes[0]
	if !point.IsFilled {
		t.Fatal("Point not filled")
	}
	if point.ManagedSize != 8 || point.StackType != metadata.StackValueType {
		t.Errorf("Point layout = %d/%v, want 8/StackValueType", point.ManagedSize, point.StackType)
	}
	if point.Fields[1].Offset != 4 {
		t.Errorf("Point.y at %d, want 4", point.Fields[1].Offset)
	}

	greeter := asm.DefinedTypes[2]
	if greeter.Parent != l.Universe.Object {
		t.Error("Greeter should extend Object by default")
	}

	// Greeter's vtable: Greet occupies a virtual slot, then the IGreet
	// run re-lists it at the interface offset.
	impl := greeter.Interfaces[0]
	if impl.Interface != asm.DefinedTypes[1] {
		t.Fatal("interface impl not resolved to IGreet")
	}

	greet := greeter.Methods[0]
	if !greet.IsVirtual() || greeter.VTable[impl.VTableOffset] != greet {
		t.Errorf("IGreet slot run does not dispatch to Greeter.Greet")
	}

	// Instance method on a value type would take `this` by-ref; on a
	// class it must not.
	if greet.ThisByRef {
		t.Error("class instance method must not mark ThisByRef")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	l := New(config.Default())

	a1, d := l.LoadAssembly(sampleAssembly(), false)
	if d != nil {
		t.Fatalf("load failed: %s", d)
	}

	a2, d := l.LoadAssembly(sampleAssembly(), false)
	if d != nil {
		t.Fatalf("reload failed: %s", d)
	}

	if a1 != a2 {
		t.Error("loading the same assembly name twice must return the original")
	}
}

func TestMissingReferenceIsNotFound(t *testing.T) {
	l := New(config.Default())

	raw := sampleAssembly()
	raw.AssemblyRefs = []string{"Nowhere"}

	_, d := l.LoadAssembly(raw, false)
	if d == nil {
		t.Fatal("expected a not-found diagnostic")
	}
	if d.Kind != report.NotFound {
		t.Errorf("diagnostic kind = %s, want not-found", d.Kind)
	}
}

func TestValueTypeThisByRef(t *testing.T) {
	l := New(config.Default())

	raw := &RawAssembly{
		Name:       "VT",
		ModuleName: "VT.dll",
		TypeDefs: []RawTypeDef{{
			Name: "Wrapper", IsValueType: true, Visibility: metadata.VisibilityPublic,
			FieldFirst: 1, FieldCount: 1, MethodFirst: 1, MethodCount: 1,
		}},
		Fields: []RawField{
			{Name: "v", Signature: fieldSig(i4()), Visibility: metadata.FieldPublic},
		},
		MethodDefs: []RawMethodDef{{
			Name: "Get", Visibility: metadata.MethodPublic,
			Signature: methodSig(true, i4()),
			Body:      &RawBody{CIL: []byte{0x16, 0x2A}, MaxStack: 1, InitLocals: true},
		}},
	}

	asm, d := l.LoadAssembly(raw, false)
	if d != nil {
		t.Fatalf("load failed: %s", d)
	}

	if !asm.DefinedMethods[0].ThisByRef {
		t.Error("value-type instance method must take this by-ref")
	}
}

func TestLayoutCycleRejected(t *testing.T) {
	l := New(config.Default())

	// struct Self { Self s; } — illegal metadata.
	raw := &RawAssembly{
		Name:       "Cyc",
		ModuleName: "Cyc.dll",
		TypeDefs: []RawTypeDef{{
			Name: "Self", IsValueType: true, Visibility: metadata.VisibilityPublic,
			FieldFirst: 1, FieldCount: 1,
		}},
		Fields: []RawField{{
			Name: "s",
			Signature: fieldSig(&sig.TypeRef{
				Elem:      sig.ElementValueType,
				TypeToken: sig.Token(metadata.NewToken(metadata.TableTypeDef, 1)),
			}),
			Visibility: metadata.FieldPublic,
		}},
	}

	if _, d := l.LoadAssembly(raw, false); d == nil {
		t.Fatal("self-embedding value type must be rejected")
	}
}
