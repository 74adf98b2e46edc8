package verify

import (
	"testing"

	"corejit/metadata"
)

func accessFixture() (from, other *metadata.Type, sameAsm func(v metadata.FieldVisibility) *metadata.FieldInfo) {
	asmA := &metadata.Assembly{Name: "A"}
	modA := &metadata.Module{Name: "A.dll", Assembly: asmA}
	asmB := &metadata.Assembly{Name: "B"}
	modB := &metadata.Module{Name: "B.dll", Assembly: asmB}

	decl := &metadata.Type{DeclaringModule: modA, Name: "Decl", Kind: metadata.KindObjectRef, Visibility: metadata.VisibilityPublic}
	from = &metadata.Type{DeclaringModule: modA, Name: "From", Kind: metadata.KindObjectRef, Parent: decl, Visibility: metadata.VisibilityPublic}
	other = &metadata.Type{DeclaringModule: modB, Name: "Other", Kind: metadata.KindObjectRef, Visibility: metadata.VisibilityPublic}

	sameAsm = func(v metadata.FieldVisibility) *metadata.FieldInfo {
		return &metadata.FieldInfo{DeclaringType: decl, DeclaringModule: modA, Name: "f", Visibility: v}
	}
	return from, other, sameAsm
}

func TestFieldAccessRules(t *testing.T) {
	from, other, field := accessFixture()

	tests := []struct {
		name string
		vis  metadata.FieldVisibility
		f    *metadata.Type
		want bool
	}{
		{"private from subclass", metadata.FieldPrivate, from, false},
		{"family from subclass", metadata.FieldFamily, from, true},
		{"family from unrelated other-assembly type", metadata.FieldFamily, other, false},
		{"assembly from same assembly", metadata.FieldAssembly, from, true},
		{"assembly across assemblies", metadata.FieldAssembly, other, false},
		{"famorassem from subclass in same assembly",metadata.FieldFamORAssem, from, true},
		{"public from anywhere", metadata.FieldPublic, other, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessField(tt.f, field(tt.vis)); got != tt.want {
				t.Errorf("CanAccessField = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotPublicTypeInvisibleAcrossAssemblies(t *testing.T) {
	from, other, _ := accessFixture()

	hidden := &metadata.Type{
		DeclaringModule: from.DeclaringModule,
		Name:            "Hidden",
		Kind:            metadata.KindObjectRef,
		Visibility:      metadata.VisibilityNotPublic,
	}

	if !TypeVisibleFrom(from, hidden) {
		t.Error("not-public type must be visible within its own assembly")
	}

	if TypeVisibleFrom(other, hidden) {
		t.Error("not-public type must be invisible from another assembly")
	}
}

func TestPrivateVisibleToNested(t *testing.T) {
	from, _, _ := accessFixture()

	nested := &metadata.Type{
		DeclaringModule: from.DeclaringModule,
		Name:            "Inner",
		Kind:            metadata.KindObjectRef,
		DeclaringType:   from,
		Visibility:      metadata.VisibilityNestedPrivate,
	}

	f := &metadata.FieldInfo{
		DeclaringType:   from,
		DeclaringModule: from.DeclaringModule,
		Name:            "secret",
		Visibility:      metadata.FieldPrivate,
	}

	if !CanAccessField(nested, f) {
		t.Error("a nested type must access its enclosing type's private members")
	}
}
