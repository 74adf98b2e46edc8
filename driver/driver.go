package driver

import (
	"sync"

	"corejit/abi"
	"corejit/config"
	"corejit/jit"
	"corejit/loader"
	"corejit/metadata"
	"corejit/mir"
	"corejit/report"
)

// Driver owns the process-wide MIR context and the per-assembly JIT
// phases. The context is not safe for concurrent module insertion, so
// every phase runs under the driver's mutex; module contents are built
// outside it (see mir.Context).
type Driver struct {
	Loader *loader.Loader
	GC     abi.GC

	cfg *config.Config
	ctx *mir.Context

	mu        sync.Mutex
	artifacts map[[32]byte]*Artifact
	compiled  map[string]bool // assemblies already driven

	linked *mir.Linked
	image  []byte

	modules map[string]*mir.Module

	vtables map[*metadata.Type][]uintptr
	statics map[*metadata.FieldInfo][]byte
}

// New creates a driver over a loader and collector.
func New(cfg *config.Config, l *loader.Loader, gc abi.GC) *Driver {
	return &Driver{
		Loader:    l,
		GC:        gc,
		cfg:       cfg,
		ctx:       mir.NewContext(),
		artifacts: map[[32]byte]*Artifact{},
		compiled:  map[string]bool{},
		modules:   map[string]*mir.Module{},
		vtables:   map[*metadata.Type][]uintptr{},
		statics:   map[*metadata.FieldInfo][]byte{},
	}
}

// CompileAssembly JIT-compiles every IL method of an assembly into one
// MIR module: prototypes first (so forward and mutual references
// resolve), then bodies, then the module transfers into the context for
// linking. A method that fails verification is skipped — its function
// pointer is never published — without aborting the assembly.
func (d *Driver) CompileAssembly(asm *metadata.Assembly) *report.Diagnostic {
	if asm.ReflectionOnly {
		return report.New(report.CheckFailed, asm.Name, 0,
			"assembly was loaded reflection-only and cannot be JIT compiled")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.compiled[asm.Name] {
		return nil
	}

	mod := d.ctx.NewModule(asm.Name)
	tr := &jit.Translator{Loader: d.Loader, Module: mod}

	// Pass 1: prototypes and externs, so every later body can reference
	// any method regardless of row order.
	for _, m := range asm.DefinedMethods {
		if m.Impl == metadata.ImplIL && !m.IsAbstract() {
			tr.DeclarePrototype(m)
		}
	}

	// Pass 2: bodies.
	var failed int
	for _, m := range asm.DefinedMethods {
		if m.Body == nil || m.IsAbstract() || m.Impl != metadata.ImplIL {
			continue
		}

		key := artifactKey(m)
		if art, ok := d.artifacts[key]; ok {
			m.SetArtifact(art)
			continue
		}

		if diag := tr.CompileMethod(m); diag != nil {
			report.ReportDiagnostic(diag)
			failed++
			continue
		}

		art := &Artifact{Method: m, Symbol: jit.MethodSymbol(m), Key: key}
		d.artifacts[key] = art
		m.SetArtifact(art)
	}

	mod.Finish()
	d.compiled[asm.Name] = true
	d.modules[asm.Name] = mod

	report.ReportInfo("JIT compiled assembly %s (%d methods, %d failed)",
		asm.Name, len(asm.DefinedMethods), failed)

	if d.cfg.JITVerbose {
		report.ReportInfo("MIR for %s:\n%s", asm.Name, mod.Text())
	}

	d.allocateStatics(asm)
	return nil
}

// Link renders every compiled module into one image, maps it executable,
// and resolves each artifact's address; vtables are published afterwards
// by PublishVTables. It is called once after the closure of assemblies
// has compiled.
func (d *Driver) Link() *report.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.linked != nil {
		return nil
	}

	linked, diag := d.ctx.Link()
	if diag != nil {
		return diag
	}

	base, image, diag := abi.PublishExecutable(linked.Object())
	if diag != nil {
		return diag
	}

	linked.SetBase(base)
	d.linked = linked
	d.image = image

	for _, art := range d.artifacts {
		if addr, ok := linked.FuncAddr(art.Symbol); ok {
			art.Addr = addr
		}
	}

	return nil
}

// FuncAddr resolves a compiled method's entry address post-link.
func (d *Driver) FuncAddr(m *metadata.MethodInfo) (uintptr, bool) {
	art, ok := m.Artifact().(*Artifact)
	if !ok || art == nil {
		return 0, false
	}
	return art.Addr, art.Addr != 0
}

// MIRText returns the MIR rendering of an assembly's module, used by the
// dump-mir command and the determinism tests.
func (d *Driver) MIRText(asmName string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mod, ok := d.modules[asmName]
	if !ok {
		return "", false
	}
	return mod.Text(), true
}
