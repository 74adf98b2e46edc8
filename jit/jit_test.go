package jit

import (
	"strings"
	"testing"

	"corejit/config"
	"corejit/loader"
	"corejit/metadata"
	"corejit/mir"
	"corejit/sig"
)

func i4Ref() *sig.TypeRef   { return &sig.TypeRef{Elem: sig.ElementI4} }
func iRef() *sig.TypeRef    { return &sig.TypeRef{Elem: sig.ElementI} }
func voidRef() *sig.TypeRef { return &sig.TypeRef{Elem: sig.ElementVoid} }

func staticSig(ret *sig.TypeRef, params ...*sig.TypeRef) []byte {
	return sig.EncodeMethod(&sig.MethodSig{RetType: ret, Params: params})
}

func ctorSig() []byte {
	return sig.EncodeMethod(&sig.MethodSig{HasThis: true, RetType: voidRef()})
}

// programAssembly wraps one or more static methods of a Program class,
// with a TypeRef table seeded with the core types scenario bodies name.
type testMethod struct {
	name    string
	sig     []byte
	body    *loader.RawBody
	rtsn    bool
	hasThis bool
}

func programAssembly(methods ...testMethod) *loader.RawAssembly {
	raw := &loader.RawAssembly{
		Name:       "Scenario",
		ModuleName: "Scenario.dll",
		TypeRefs: []loader.RawTypeRef{
			{Namespace: "System", Name: "Int32", AssemblyRef: -1},                // 0x01000001
			{Namespace: "System", Name: "InvalidCastException", AssemblyRef: -1}, // 0x01000002
		},
		TypeDefs: []loader.RawTypeDef{{
			Name: "Program", Visibility: metadata.VisibilityPublic,
			MethodFirst: 1, MethodCount: len(methods),
			FieldFirst: 1, FieldCount: 0,
		}},
	}

	for _, m := range methods {
		raw.MethodDefs = append(raw.MethodDefs, loader.RawMethodDef{
			Name:          m.name,
			Static:        !m.hasThis,
			RTSpecialName: m.rtsn,
			Visibility:    metadata.MethodPublic,
			Signature:     m.sig,
			Body:          m.body,
		})
	}

	return raw
}

// compileProgram loads an assembly and JITs every method with a body,
// returning the module text.
func compileProgram(t *testing.T, raw *loader.RawAssembly) string {
	t.Helper()

	l := loader.New(config.Default())
	asm, d := l.LoadAssembly(raw, false)
	if d != nil {
		t.Fatalf("load failed: %s", d)
	}

	ctx := mir.NewContext()
	tr := &Translator{Loader: l, Module: ctx.NewModule(raw.Name)}

	for _, m := range asm.DefinedMethods {
		if m.Body == nil {
			continue
		}
		if d := tr.CompileMethod(m); d != nil {
			t.Fatalf("JIT of %s failed: %s", m.Name, d)
		}
	}

	return tr.Module.Text()
}

func body(cil []byte, maxStack int) *loader.RawBody {
	return &loader.RawBody{CIL: cil, MaxStack: maxStack, InitLocals: true}
}

func TestAddConstantsReturnsSum(t *testing.T) {
	// ldc.i4.2; ldc.i4.3; add; ret
	text := compileProgram(t, programAssembly(testMethod{
		name: "Main", sig: staticSig(i4Ref()),
		body: body([]byte{0x18, 0x19, 0x58, 0x2A}, 2),
	}))

	if !strings.Contains(text, "add i32") {
		t.Errorf("expected an i32 add in:\n%s", text)
	}

	// Two-slot return of the {exception, i32} pair.
	if !strings.Contains(text, "{ i8*, i32 }") {
		t.Errorf("expected the two-slot return pair in:\n%s", text)
	}
}

func TestDivideByZeroGuard(t *testing.T) {
	// ldc.i4.1; ldc.i4.0; div; ret
	text := compileProgram(t, programAssembly(testMethod{
		name: "Main", sig: staticSig(i4Ref()),
		body: body([]byte{0x17, 0x16, 0x5B, 0x2A}, 2),
	}))

	if !strings.Contains(text, "sdiv") {
		t.Errorf("expected a signed division in:\n%s", text)
	}

	// The denominator guard allocates a DivideByZeroException.
	if !strings.Contains(text, "ti_System_Runtime_System_DivideByZeroException") {
		t.Errorf("expected the DivideByZeroException type handle in:\n%s", text)
	}

	if !strings.Contains(text, "divzero") {
		t.Errorf("expected the divide-by-zero guard block in:\n%s", text)
	}
}

func TestNewarrLdlen(t *testing.T) {
	// ldc.i4.5; newarr Int32; ldlen; ret (IntPtr)
	text := compileProgram(t, programAssembly(testMethod{
		name: "Main", sig: staticSig(iRef()),
		body: body([]byte{0x1B, 0x8D, 0x01, 0x00, 0x00, 0x01, 0x8E, 0x2A}, 2),
	}))

	if !strings.Contains(text, "gc_new") {
		t.Errorf("expected a gc_new allocation in:\n%s", text)
	}

	// Every allocation is followed by the OOM guard.
	if !strings.Contains(text, "oom") {
		t.Errorf("expected the OOM guard block in:\n%s", text)
	}

	// The length store/read at the fixed header offset.
	if !strings.Contains(text, "i64 8") {
		t.Errorf("expected the length-field offset 8 in:\n%s", text)
	}
}

func TestNullReceiverFieldAccess(t *testing.T) {
	raw := programAssembly(testMethod{
		name: "Main", sig: staticSig(i4Ref()),
		// ldnull; ldfld 0x04000001; ret
		body: body([]byte{0x14, 0x7B, 0x01, 0x00, 0x00, 0x04, 0x2A}, 1),
	})

	// Give Program an instance field f so the token resolves.
	raw.TypeDefs[0].FieldCount = 1
	raw.Fields = []loader.RawField{{
		Name: "f", Signature: sig.EncodeField(i4Ref()), Visibility: metadata.FieldPublic,
	}}

	text := compileProgram(t, raw)

	if !strings.Contains(text, "nullref") {
		t.Errorf("expected the null-receiver guard block in:\n%s", text)
	}

	if !strings.Contains(text, "ti_System_Runtime_System_NullReferenceException") {
		t.Errorf("expected NullReferenceException in:\n%s", text)
	}
}

func TestNarrowingConversion(t *testing.T) {
	// ldc.i4.m1; conv.u1; ret
	text := compileProgram(t, programAssembly(testMethod{
		name: "Main", sig: staticSig(i4Ref()),
		body: body([]byte{0x15, 0xD2, 0x2A}, 1),
	}))

	// conv.u1 truncates to i8 then zero-extends back to the i32 stack
	// shape, producing 255 from -1.
	if !strings.Contains(text, "trunc") || !strings.Contains(text, "zext") {
		t.Errorf("expected trunc+zext narrowing in:\n%s", text)
	}
}

func TestTryCatchDispatch(t *testing.T) {
	ctorBody := body([]byte{0x2A}, 0)

	mainBody := body([]byte{
		0x73, 0x02, 0x00, 0x00, 0x06, // 0: newobj AppExc::.ctor (row 2)
		0x0A,             // 5: stloc.0
		0x06,             // 6: ldloc.0
		0x7A,             // 7: throw
		0x26, 0x1D, 0x2A, // 8: pop (the caught exception); 9: ldc.i4.7; 10: ret
	}, 1)
	// Local 0 is typed AppExc, so the thrown value keeps that exact static
	// type. The constructor call stays outside the try: an exception a
	// callee returns has no static type and is matched dynamically.
	mainBody.LocalsSig = sig.EncodeLocals([]*sig.TypeRef{
		{Elem: sig.ElementClass, TypeToken: sig.Token(0x02000002)},
	})
	mainBody.Clauses = []loader.RawClause{{
		Kind:      metadata.ClauseCatch,
		TryOffset: 6, TryLength: 2,
		HandlerOffset: 8, HandlerLength: 3,
		CatchType: metadata.NewToken(metadata.TableTypeRef, 2), // InvalidCastException
	}}

	raw := &loader.RawAssembly{
		Name:       "Scenario",
		ModuleName: "Scenario.dll",
		TypeRefs: []loader.RawTypeRef{
			{Namespace: "System", Name: "Int32", AssemblyRef: -1},
			{Namespace: "System", Name: "InvalidCastException", AssemblyRef: -1},
		},
		TypeDefs: []loader.RawTypeDef{
			{
				Name: "Program", Visibility: metadata.VisibilityPublic,
				MethodFirst: 1, MethodCount: 1,
			},
			{
				Name: "AppExc", Visibility: metadata.VisibilityPublic,
				Extends:     metadata.NewToken(metadata.TableTypeRef, 2),
				MethodFirst: 2, MethodCount: 1,
			},
		},
		MethodDefs: []loader.RawMethodDef{
			{
				Name: "Main", Static: true, Visibility: metadata.MethodPublic,
				Signature: staticSig(i4Ref()), Body: mainBody,
			},
			{
				Name: ".ctor", RTSpecialName: true, Visibility: metadata.MethodPublic,
				Signature: ctorSig(), Body: ctorBody,
			},
		},
	}

	text := compileProgram(t, raw)

	// The throw's static type is a subtype of the catch type, so the
	// dispatch is an unconditional branch to the handler, not a dynamic
	// isinst test.
	if strings.Contains(text, "rt_isinst") {
		t.Errorf("statically-resolvable catch should not emit a dynamic type test:\n%s", text)
	}

	if !strings.Contains(text, "il_8") {
		t.Errorf("expected the catch handler block il_8 in:\n%s", text)
	}
}

func TestJITDeterministic(t *testing.T) {
	build := func() string {
		return compileProgram(t, programAssembly(testMethod{
			name: "Main", sig: staticSig(i4Ref()),
			body: body([]byte{0x18, 0x19, 0x58, 0x2A}, 2),
		}))
	}

	if a, b := build(), build(); a != b {
		t.Error("identical metadata and body bytes must produce identical MIR text")
	}
}

func TestRejectsMissingInitLocals(t *testing.T) {
	raw := programAssembly(testMethod{
		name: "Main", sig: staticSig(i4Ref()),
		body: &loader.RawBody{CIL: []byte{0x16, 0x2A}, MaxStack: 1, InitLocals: false},
	})

	l := loader.New(config.Default())
	asm, d := l.LoadAssembly(raw, false)
	if d != nil {
		t.Fatalf("load failed: %s", d)
	}

	tr := &Translator{Loader: l, Module: mir.NewContext().NewModule("Scenario")}
	if d := tr.CompileMethod(asm.DefinedMethods[0]); d == nil {
		t.Fatal("a method without init-locals must be rejected")
	}
}

func TestStackMismatchRejected(t *testing.T) {
	// 0: br.s 3 (target 3); 2: ldc.i4.0 -- unreachable; 3: ret with an
	// empty-stack merge expecting a value: malformed.
	raw := programAssembly(testMethod{
		name: "Main", sig: staticSig(i4Ref()),
		body: body([]byte{0x2B, 0x01, 0x16, 0x2A}, 1),
	})

	l := loader.New(config.Default())
	asm, d := l.LoadAssembly(raw, false)
	if d != nil {
		t.Fatalf("load failed: %s", d)
	}

	tr := &Translator{Loader: l, Module: mir.NewContext().NewModule("Scenario")}
	if d := tr.CompileMethod(asm.DefinedMethods[0]); d == nil {
		t.Fatal("ret with an empty evaluation stack on an int method must be rejected")
	}
}

func TestBackEdgeEmitsSafepoint(t *testing.T) {
	// 0: ldc.i4.0; 1: pop; 2: br.s -4 => target 0: an infinite loop whose
	// back-edge must carry a safepoint.
	text := compileProgram(t, programAssembly(testMethod{
		name: "Spin", sig: staticSig(voidRef()),
		body: body([]byte{0x16, 0x26, 0x2B, 0xFC}, 1),
	}))

	if !strings.Contains(text, "rt_safepoint") {
		t.Errorf("expected a safepoint call on the loop back-edge in:\n%s", text)
	}
}
