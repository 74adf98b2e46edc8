package verify

import (
	"testing"

	"corejit/metadata"
)

func testUniverse() (*metadata.Universe, Relations) {
	mod := &metadata.Module{Name: "System.Runtime", Assembly: &metadata.Assembly{Name: "System.Runtime"}}
	mod.Assembly.Module = mod
	u := metadata.NewUniverse(mod, 8)
	return u, Relations{U: u}
}

func TestReducedType(t *testing.T) {
	u, r := testUniverse()

	tests := []struct {
		name string
		in   *metadata.Type
		want *metadata.Type
	}{
		{"byte collapses to sbyte", u.Byte, u.SByte},
		{"uint16 collapses to int16", u.UInt16, u.Int16},
		{"uint32 collapses to int32", u.UInt32, u.Int32},
		{"uint64 collapses to int64", u.UInt64, u.Int64},
		{"uintptr collapses to intptr", u.UIntPtr, u.IntPtr},
		{"int32 is fixed", u.Int32, u.Int32},
		{"double is fixed", u.Double, u.Double},
		{"object is fixed", u.Object, u.Object},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.ReducedType(tt.in); got != tt.want {
				t.Errorf("ReducedType(%s) = %s, want %s", tt.in.Name, got.Name, tt.want.Name)
			}
		})
	}
}

func TestVerificationType(t *testing.T) {
	u, r := testUniverse()

	if got := r.VerificationType(u.Boolean); got != u.SByte {
		t.Errorf("VerificationType(Boolean) = %s, want SByte", got.Name)
	}

	if got := r.VerificationType(u.Char); got != u.Int16 {
		t.Errorf("VerificationType(Char) = %s, want Int16", got.Name)
	}

	// By-refs canonicalize through the referent.
	if got := r.VerificationType(u.Boolean.ByRefOf()); got != u.SByte.ByRefOf() {
		t.Errorf("VerificationType(Boolean&) = %s, want SByte&", got.Name)
	}
}

func TestIntermediateType(t *testing.T) {
	u, r := testUniverse()

	tests := []struct {
		in   *metadata.Type
		want *metadata.Type
	}{
		{u.SByte, u.Int32},
		{u.Byte, u.Int32},
		{u.Int16, u.Int32},
		{u.UInt16, u.Int32},
		{u.Boolean, u.Int32},
		{u.Char, u.Int32},
		{u.Int32, u.Int32},
		{u.Int64, u.Int64},
		{u.IntPtr, u.IntPtr},
		{u.Single, u.Single},
	}

	for _, tt := range tests {
		if got := r.IntermediateType(tt.in); got != tt.want {
			t.Errorf("IntermediateType(%s) = %s, want %s", tt.in.Name, got.Name, tt.want.Name)
		}
	}
}

// newClass declares a minimal filled object-reference type for relation
// tests.
func newClass(u *metadata.Universe, name string, parent *metadata.Type) *metadata.Type {
	return &metadata.Type{
		DeclaringModule: u.Object.DeclaringModule,
		Name:            name,
		Kind:            metadata.KindObjectRef,
		Parent:          parent,
		Visibility:      metadata.VisibilityPublic,
		StackType:       metadata.StackObject,
		StackSize:       8,
		StackAlign:      8,
		IsFilled:        true,
	}
}

func TestVerifierAssignableReflexiveTransitive(t *testing.T) {
	u, r := testUniverse()

	base := newClass(u, "Base", u.Object)
	mid := newClass(u, "Mid", base)
	leaf := newClass(u, "Leaf", mid)

	all := []*metadata.Type{
		u.Object, u.String, base, mid, leaf,
		u.Int32, u.Int64, u.IntPtr, u.Byte, u.Boolean, u.Double,
	}

	// Reflexive.
	for _, typ := range all {
		if !r.VerifierAssignableTo(typ, typ) {
			t.Errorf("VerifierAssignableTo(%s, %s) should be reflexive", typ.Name, typ.Name)
		}
	}

	// Transitive over every triple in the sample set.
	for _, a := range all {
		for _, b := range all {
			for _, c := range all {
				if r.VerifierAssignableTo(a, b) && r.VerifierAssignableTo(b, c) && !r.VerifierAssignableTo(a, c) {
					t.Errorf("VerifierAssignableTo not transitive: %s <= %s <= %s", a.Name, b.Name, c.Name)
				}
			}
		}
	}

	if !r.VerifierAssignableTo(leaf, base) {
		t.Error("Leaf should be assignable to Base through Mid")
	}

	if r.VerifierAssignableTo(base, leaf) {
		t.Error("Base must not be assignable to Leaf")
	}
}

func TestCompatibleWithInterfaces(t *testing.T) {
	u, r := testUniverse()

	iface := newClass(u, "IThing", u.Object)
	iface.Flags |= metadata.FlagInterface

	impl := newClass(u, "Thing", u.Object)
	impl.Interfaces = []metadata.InterfaceImpl{{Interface: iface, VTableOffset: 1}}

	sub := newClass(u, "SubThing", impl)

	if !r.CompatibleWith(impl, iface) {
		t.Error("Thing should be compatible with its directly implemented interface")
	}

	if !r.CompatibleWith(sub, iface) {
		t.Error("SubThing should inherit Thing's interface compatibility")
	}

	if !r.CompatibleWith(iface, u.Object) {
		t.Error("an interface should be compatible with Object")
	}
}

func TestArrayCompatibility(t *testing.T) {
	u, r := testUniverse()

	base := newClass(u, "Base", u.Object)
	leaf := newClass(u, "Leaf", base)

	if !r.CompatibleWith(leaf.ArrayOf(), base.ArrayOf()) {
		t.Error("Leaf[] should be compatible with Base[] (covariance)")
	}

	// Same verification type: Byte[] vs SByte[].
	if !r.CompatibleWith(u.Byte.ArrayOf(), u.SByte.ArrayOf()) {
		t.Error("Byte[] should be array-element compatible with SByte[]")
	}

	if r.CompatibleWith(u.Int32.ArrayOf(), u.Int64.ArrayOf()) {
		t.Error("Int32[] must not be compatible with Int64[]")
	}
}

func TestNullAssignability(t *testing.T) {
	u, r := testUniverse()

	if !r.VerifierAssignableTo(nil, u.String) {
		t.Error("null should be assignable to any object reference type")
	}

	if r.VerifierAssignableTo(nil, u.Int32) {
		t.Error("null must not be assignable to a value type")
	}
}

func TestMerge(t *testing.T) {
	u, r := testUniverse()

	base := newClass(u, "Base", u.Object)
	leaf := newClass(u, "Leaf", base)

	if merged, ok := r.Merge(leaf, base); !ok || merged != base {
		t.Errorf("Merge(Leaf, Base) = %v, want Base", merged)
	}

	if merged, ok := r.Merge(base, leaf); !ok || merged != base {
		t.Errorf("Merge(Base, Leaf) = %v, want Base", merged)
	}

	if _, ok := r.Merge(u.Int32, u.String); ok {
		t.Error("Merge(Int32, String) should fail")
	}
}
