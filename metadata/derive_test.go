package metadata

import (
	"sync"
	"testing"
)

func testType(name string) *Type {
	asm := &Assembly{Name: "Test"}
	mod := &Module{Name: "Test.dll", Assembly: asm}
	asm.Module = mod
	return &Type{DeclaringModule: mod, Name: name, Kind: KindObjectRef}
}

func TestDerivativesUnique(t *testing.T) {
	base := testType("Widget")

	if base.ArrayOf() != base.ArrayOf() {
		t.Error("ArrayOf must return the same type object on every request")
	}

	if base.ByRefOf() != base.ByRefOf() {
		t.Error("ByRefOf must return the same type object on every request")
	}

	if base.PointerOf() != base.PointerOf() {
		t.Error("PointerOf must return the same type object on every request")
	}

	arr := base.ArrayOf()
	if arr.ElementType != base || !arr.Flags.Has(FlagSZArray) {
		t.Error("array derivative malformed")
	}

	br := base.ByRefOf()
	if br.ElementType != base || br.Kind != KindByRef || br.StackType != StackByRef {
		t.Error("by-ref derivative malformed")
	}
}

func TestDerivativesUniqueUnderContention(t *testing.T) {
	base := testType("Widget")

	const goroutines = 16
	results := make([]*Type, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = base.ArrayOf()
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent ArrayOf requests observed different type objects")
		}
	}
}

func TestByRefOfByRefPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("T&& must be rejected")
		}
	}()

	testType("Widget").ByRefOf().ByRefOf()
}

func TestInstantiateDedupes(t *testing.T) {
	def := testType("List")
	def.Flags |= FlagGenericDefinition
	def.GenericArgs = []*Type{{Name: "!0", Kind: KindGenericParam}}

	int32T := testType("Int32")
	stringT := testType("String")

	a := def.Instantiate([]*Type{int32T})
	b := def.Instantiate([]*Type{int32T})
	c := def.Instantiate([]*Type{stringT})

	if a != b {
		t.Error("equal argument lists must share one instantiation")
	}
	if a == c {
		t.Error("distinct argument lists must not share an instantiation")
	}

	if a.GenericDefinition != def || a.Flags.Has(FlagGenericDefinition) {
		t.Error("instantiation carries wrong definition linkage")
	}

	if len(def.Instances) != 2 {
		t.Errorf("definition chain holds %d instances, want 2", len(def.Instances))
	}
}

func TestTokenPacking(t *testing.T) {
	tok := NewToken(TableMethodDef, 42)

	if tok.Table() != TableMethodDef || tok.Row() != 42 {
		t.Errorf("token %08x unpacked to table %#x row %d", uint32(tok), tok.Table(), tok.Row())
	}

	if !NewToken(TableTypeDef, 0).IsNil() {
		t.Error("row 0 must be the nil token")
	}
}
