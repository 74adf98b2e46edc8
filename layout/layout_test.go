package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"corejit/metadata"
)

func testUniverse() *metadata.Universe {
	mod := &metadata.Module{Name: "System.Runtime", Assembly: &metadata.Assembly{Name: "System.Runtime"}}
	mod.Assembly.Module = mod
	return metadata.NewUniverse(mod, 8)
}

func valueType(u *metadata.Universe, name string, fields ...*metadata.FieldInfo) *metadata.Type {
	t := &metadata.Type{
		DeclaringModule: u.Object.DeclaringModule,
		Name:            name,
		Kind:            metadata.KindValueType,
		Parent:          u.ValueType,
		Fields:          fields,
	}
	for _, f := range fields {
		f.DeclaringType = t
	}
	return t
}

func field(name string, ft *metadata.Type) *metadata.FieldInfo {
	return &metadata.FieldInfo{Name: name, Type: ft, Visibility: metadata.FieldPublic}
}

func TestAutoLayoutValueType(t *testing.T) {
	u := testUniverse()

	// struct { sbyte a; int64 b; int32 c } => a@0, b@8, c@16, size 24.
	vt := valueType(u, "Mixed",
		field("a", u.SByte),
		field("b", u.Int64),
		field("c", u.Int32),
	)

	if d := FillValueType(vt, nil); d != nil {
		t.Fatalf("FillValueType failed: %s", d)
	}

	wantOffsets := []int{0, 8, 16}
	for i, f := range vt.Fields {
		if f.Offset != wantOffsets[i] {
			t.Errorf("field %s at offset %d, want %d", f.Name, f.Offset, wantOffsets[i])
		}
	}

	if vt.ManagedSize != 24 || vt.ManagedAlign != 8 {
		t.Errorf("Mixed size/align = %d/%d, want 24/8", vt.ManagedSize, vt.ManagedAlign)
	}

	if vt.StackType != metadata.StackValueType {
		t.Errorf("Mixed stack type = %v, want StackValueType", vt.StackType)
	}
}

func TestManagedPointerOffsets(t *testing.T) {
	u := testUniverse()

	// struct Inner { object o; int32 n } => pointer at 0.
	inner := valueType(u, "Inner", field("o", u.Object), field("n", u.Int32))
	if d := FillValueType(inner, nil); d != nil {
		t.Fatalf("fill Inner: %s", d)
	}

	// struct Outer { int64 pad; Inner inner; string s }
	// => pointers at 8 (inner.o) and 24 (s).
	outer := valueType(u, "Outer",
		field("pad", u.Int64),
		field("inner", inner),
		field("s", u.String),
	)
	if d := FillValueType(outer, nil); d != nil {
		t.Fatalf("fill Outer: %s", d)
	}

	if diff := cmp.Diff([]int{8, 24}, outer.ManagedPointerOffsets); diff != "" {
		t.Errorf("Outer pointer offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestReferenceTypeLayout(t *testing.T) {
	u := testUniverse()

	cls := &metadata.Type{
		DeclaringModule: u.Object.DeclaringModule,
		Name:            "Node",
		Kind:            metadata.KindObjectRef,
		Parent:          u.Object,
		Fields: []*metadata.FieldInfo{
			field("next", nil), // self-referential, patched below
			field("value", u.Int32),
		},
	}
	cls.Fields[0].Type = cls

	if d := FillReferenceType(cls); d != nil {
		t.Fatalf("FillReferenceType failed: %s", d)
	}

	// Header pointer, then next@8, value@16.
	if cls.Fields[0].Offset != ObjectHeaderSize {
		t.Errorf("next at %d, want %d", cls.Fields[0].Offset, ObjectHeaderSize)
	}

	if cls.StackSize != 8 || cls.StackType != metadata.StackObject {
		t.Errorf("reference type stack shape = %d/%v", cls.StackSize, cls.StackType)
	}

	if diff := cmp.Diff([]int{8}, cls.ManagedPointerOffsets); diff != "" {
		t.Errorf("Node pointer offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitLayoutRejectsPointerOverlap(t *testing.T) {
	u := testUniverse()

	// union { object o @0; int64 bits @0 } — a pointer aliased with raw
	// integer bytes must be rejected.
	bad := valueType(u, "EvilUnion", field("o", u.Object), field("bits", u.Int64))
	bad.Flags |= metadata.FlagExplicitLayout
	bad.Fields[0].Offset = 0
	bad.Fields[1].Offset = 0

	d := FillValueType(bad, &ClassLayout{PackingSize: 8})
	if d == nil {
		t.Fatal("expected a bad-format diagnostic for pointer/non-pointer overlap")
	}

	// union { object a @0; object b @0 } — two fully aliased pointers are
	// permitted.
	ok := valueType(u, "RefUnion", field("a", u.Object), field("b", u.String))
	ok.Flags |= metadata.FlagExplicitLayout
	ok.Fields[0].Offset = 0
	ok.Fields[1].Offset = 0

	if d := FillValueType(ok, &ClassLayout{PackingSize: 8}); d != nil {
		t.Fatalf("aliased reference fields should be legal: %s", d)
	}
}

func virtualMethod(name string, ret *metadata.Type, attrs metadata.MethodAttributes) *metadata.MethodInfo {
	return &metadata.MethodInfo{
		Name:       name,
		ReturnType: ret,
		Attributes: metadata.MethodVirtual | attrs,
		Visibility: metadata.MethodPublic,
	}
}

func TestVTableOverrideAndInterfaceRuns(t *testing.T) {
	u := testUniverse()

	iface := &metadata.Type{
		DeclaringModule: u.Object.DeclaringModule,
		Name:            "IRun",
		Kind:            metadata.KindObjectRef,
		Flags:           metadata.FlagInterface,
	}
	ifaceRun := virtualMethod("Run", u.Int32, metadata.MethodNewSlot|metadata.MethodAbstract)
	ifaceRun.DeclaringType = iface
	iface.Methods = []*metadata.MethodInfo{ifaceRun}
	if d := BuildVTable(iface); d != nil {
		t.Fatalf("interface vtable: %s", d)
	}

	base := &metadata.Type{
		DeclaringModule: u.Object.DeclaringModule,
		Name:            "Base",
		Kind:            metadata.KindObjectRef,
		Parent:          u.Object,
	}
	baseToString := virtualMethod("Describe", u.String, metadata.MethodNewSlot)
	baseToString.DeclaringType = base
	base.Methods = []*metadata.MethodInfo{baseToString}
	if d := BuildVTable(base); d != nil {
		t.Fatalf("base vtable: %s", d)
	}

	derived := &metadata.Type{
		DeclaringModule: u.Object.DeclaringModule,
		Name:            "Derived",
		Kind:            metadata.KindObjectRef,
		Parent:          base,
		Interfaces:      []metadata.InterfaceImpl{{Interface: iface}},
	}
	override := virtualMethod("Describe", u.String, 0)
	override.DeclaringType = derived
	run := virtualMethod("Run", u.Int32, metadata.MethodNewSlot)
	run.DeclaringType = derived
	derived.Methods = []*metadata.MethodInfo{override, run}

	if d := BuildVTable(derived); d != nil {
		t.Fatalf("derived vtable: %s", d)
	}

	// Override replaced the inherited slot in place.
	if override.VTableSlot != baseToString.VTableSlot {
		t.Errorf("override slot %d != base slot %d", override.VTableSlot, baseToString.VTableSlot)
	}

	if derived.VirtualMethods[override.VTableSlot] != override {
		t.Error("inherited slot not replaced by override")
	}

	// The interface run starts after the virtual slots and holds Run.
	impl := derived.Interfaces[0]
	if impl.VTableOffset != len(derived.VirtualMethods) {
		t.Errorf("interface offset %d, want %d", impl.VTableOffset, len(derived.VirtualMethods))
	}

	if derived.VTable[impl.VTableOffset] != run {
		t.Error("interface slot does not hold the implementing method")
	}
}
