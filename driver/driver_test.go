package driver

import (
	"testing"

	"corejit/config"
	"corejit/loader"
	"corejit/metadata"
	"corejit/sig"
)

func i4() *sig.TypeRef { return &sig.TypeRef{Elem: sig.ElementI4} }

func testAssembly(name string) *loader.RawAssembly {
	return &loader.RawAssembly{
		Name:       name,
		ModuleName: name + ".dll",
		TypeDefs: []loader.RawTypeDef{{
			Name: "Program", Visibility: metadata.VisibilityPublic,
			MethodFirst: 1, MethodCount: 1,
		}},
		MethodDefs: []loader.RawMethodDef{{
			Name: "Main", Static: true, Visibility: metadata.MethodPublic,
			Signature: sig.EncodeMethod(&sig.MethodSig{RetType: i4()}),
			Body: &loader.RawBody{
				CIL:        []byte{0x18, 0x19, 0x58, 0x2A}, // ldc.i4.2; ldc.i4.3; add; ret
				MaxStack:   2,
				InitLocals: true,
			},
		}},
	}
}

func TestCompileAssemblyProducesArtifacts(t *testing.T) {
	cfg := config.Default()
	l := loader.New(cfg)

	asm, diag := l.LoadAssembly(testAssembly("App"), false)
	if diag != nil {
		t.Fatalf("load: %s", diag)
	}

	d := New(cfg, l, nil)
	if diag := d.CompileAssembly(asm); diag != nil {
		t.Fatalf("compile: %s", diag)
	}

	m := asm.DefinedMethods[0]
	art, ok := m.Artifact().(*Artifact)
	if !ok || art == nil {
		t.Fatal("method has no artifact after compilation")
	}

	if art.Symbol == "" {
		t.Error("artifact missing its linker symbol")
	}

	// Driving the same assembly again is a no-op.
	if diag := d.CompileAssembly(asm); diag != nil {
		t.Fatalf("recompile: %s", diag)
	}
	if m.Artifact().(*Artifact) != art {
		t.Error("recompilation must not replace the artifact")
	}
}

func TestArtifactKeyDeterministic(t *testing.T) {
	cfg := config.Default()

	load := func() *metadata.MethodInfo {
		l := loader.New(cfg)
		asm, diag := l.LoadAssembly(testAssembly("App"), false)
		if diag != nil {
			t.Fatalf("load: %s", diag)
		}
		return asm.DefinedMethods[0]
	}

	if artifactKey(load()) != artifactKey(load()) {
		t.Error("equal metadata and body bytes must produce equal cache keys")
	}
}

func TestMIRTextStableAcrossDrivers(t *testing.T) {
	cfg := config.Default()

	build := func() string {
		l := loader.New(cfg)
		asm, diag := l.LoadAssembly(testAssembly("App"), false)
		if diag != nil {
			t.Fatalf("load: %s", diag)
		}

		d := New(cfg, l, nil)
		if diag := d.CompileAssembly(asm); diag != nil {
			t.Fatalf("compile: %s", diag)
		}

		text, ok := d.MIRText("App")
		if !ok {
			t.Fatal("module text unavailable")
		}
		return text
	}

	if build() != build() {
		t.Error("JIT output must be deterministic across driver instances")
	}
}

func TestReflectionOnlyRefusesJIT(t *testing.T) {
	cfg := config.Default()
	l := loader.New(cfg)

	asm, diag := l.LoadAssembly(testAssembly("RO"), true)
	if diag != nil {
		t.Fatalf("load: %s", diag)
	}

	d := New(cfg, l, nil)
	if diag := d.CompileAssembly(asm); diag == nil {
		t.Fatal("reflection-only assembly must refuse JIT compilation")
	}
}
