package mir

import (
	"strings"
	"testing"
)

func buildSampleModule(ctx *Context, name string) *Module {
	m := ctx.NewModule(name)

	pair := RetPairType(I32)
	f := m.NewFunc("Sample_Add", pair, &Param{Name: "a", Type: I32}, &Param{Name: "b", Type: I32})

	entry := f.NewBlock("entry")
	b := NewBuilder(f, entry)
	sum := b.Add(f.ParamValue(0), f.ParamValue(1))
	b.RetPair(pair, Null(), sum)

	m.Finish()
	return m
}

func TestModuleTextDeterministic(t *testing.T) {
	a := buildSampleModule(NewContext(), "asm")
	b := buildSampleModule(NewContext(), "asm")

	if a.Text() != b.Text() {
		t.Errorf("identical construction produced different MIR text:\n%s\n----\n%s", a.Text(), b.Text())
	}
}

func TestTwoSlotReturnShape(t *testing.T) {
	ctx := NewContext()
	m := buildSampleModule(ctx, "asm")

	text := m.Text()
	if !strings.Contains(text, "{ i8*, i32 }") {
		t.Errorf("expected the two-slot {exception, value} return type in:\n%s", text)
	}
}

func TestLinkResolvesDefinedFunctions(t *testing.T) {
	ctx := NewContext()
	buildSampleModule(ctx, "asm")

	linked, diag := ctx.Link()
	if diag != nil {
		t.Fatalf("link failed: %s", diag)
	}

	if _, ok := linked.FuncAddr("Sample_Add"); !ok {
		t.Fatal("Sample_Add not resolvable post-link")
	}

	linked.SetBase(0x1000)
	addr, _ := linked.FuncAddr("Sample_Add")
	if addr < 0x1000 {
		t.Errorf("resolved address %x not rebased", addr)
	}

	if _, ok := linked.FuncAddr("missing"); ok {
		t.Error("undefined symbol should not resolve")
	}
}

func TestProtoDeclaredOnce(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("asm")

	p1 := m.DeclareProto("gc_new", Ptr, Ptr, I64)
	p2 := m.DeclareProto("gc_new", Ptr, Ptr, I64)

	if p1 != p2 {
		t.Error("re-declaring a prototype should return the original")
	}
}

func TestLinkEmptyContextFails(t *testing.T) {
	if _, diag := NewContext().Link(); diag == nil {
		t.Fatal("linking an empty context should be check-failed")
	}
}
