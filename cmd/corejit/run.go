package main

import (
	"fmt"
	"path/filepath"
	"time"

	"corejit/config"
	"corejit/driver"
	"corejit/loader"
	"corejit/metadata"
	"corejit/report"
)

// metadataReader is the host-installed PE parser (an external
// collaborator; see loader.Reader). A host binary that embeds corejit
// assigns it before Execute.
var metadataReader loader.Reader

// hostGC is the host-installed collector implementing abi.GC.
var hostGC = defaultGC()

// loadClosure loads an assembly and (manifest-ordered) everything it
// references, returning the root assembly.
func loadClosure(l *loader.Loader, path string, reflectionOnly bool) (*metadata.Assembly, *report.Diagnostic) {
	if metadataReader == nil {
		return nil, report.New(report.CheckFailed, path, 0,
			"no metadata reader installed in this host build")
	}

	manifest, d := loader.ReadManifest(path)
	if d != nil {
		return nil, d
	}

	if manifest != nil {
		dir := filepath.Dir(path)
		for _, ref := range manifest.Module.References {
			if _, ok := l.Assembly(ref); ok {
				continue
			}

			if _, d := loadClosure(l, filepath.Join(dir, ref+".dll"), reflectionOnly); d != nil {
				return nil, d
			}
		}
	}

	raw, d := metadataReader.Read(path)
	if d != nil {
		return nil, d
	}

	return l.LoadAssembly(raw, reflectionOnly)
}

func execRun(cfg *config.Config, path string) {
	start := time.Now()
	phase := report.StartPhase("loading " + path)

	l := loader.New(cfg)
	asm, d := loadClosure(l, path, false)
	if d != nil {
		phase.Fail(d.Error())
		report.ReportDiagnostic(d)
		return
	}
	phase.Done(fmt.Sprintf("loaded %s (%d types)", asm.Name, len(asm.DefinedTypes)))

	drv := driver.New(cfg, l, hostGC)

	phase = report.StartPhase("JIT compiling")
	for _, ref := range asm.References {
		if d := drv.CompileAssembly(ref); d != nil {
			phase.Fail(d.Error())
			report.ReportDiagnostic(d)
			return
		}
	}
	if d := drv.CompileAssembly(asm); d != nil {
		phase.Fail(d.Error())
		report.ReportDiagnostic(d)
		return
	}

	if d := drv.Link(); d != nil {
		phase.Fail(d.Error())
		report.ReportDiagnostic(d)
		return
	}

	if d := drv.PublishVTables(asm); d != nil {
		report.ReportDiagnostic(d)
		return
	}
	phase.Done("JIT complete")

	entry := findEntryPoint(asm)
	if entry == nil {
		report.ReportFatal("assembly %s has no static Main method", asm.Name)
		return
	}

	addr, ok := drv.FuncAddr(entry)
	if !ok {
		report.ReportFatal("entry point %s::Main failed to compile", asm.Name)
		return
	}

	report.ReportInfo("entry point at %#x", addr)
	report.Summary([][]string{{
		asm.Name,
		fmt.Sprintf("%d", len(asm.DefinedTypes)),
		fmt.Sprintf("%d", len(asm.DefinedMethods)),
		time.Since(start).Round(time.Millisecond).String(),
	}})

	invokeEntry(addr)
}

func execDumpMIR(cfg *config.Config, path string) {
	l := loader.New(cfg)

	// Reflection-only is enough to materialize metadata, but MIR needs a
	// real compile; dump-mir therefore loads normally and compiles
	// without linking or publishing.
	asm, d := loadClosure(l, path, false)
	if d != nil {
		report.ReportDiagnostic(d)
		return
	}

	drv := driver.New(cfg, l, hostGC)
	if d := drv.CompileAssembly(asm); d != nil {
		report.ReportDiagnostic(d)
		return
	}

	if text, ok := drv.MIRText(asm.Name); ok {
		fmt.Print(text)
	}
}

func execVerify(cfg *config.Config, path string) {
	l := loader.New(cfg)
	asm, d := loadClosure(l, path, false)
	if d != nil {
		report.ReportDiagnostic(d)
		return
	}

	// A full translation pass is the verifier: failures surface as
	// diagnostics without publishing anything.
	drv := driver.New(cfg, l, hostGC)
	if d := drv.CompileAssembly(asm); d != nil {
		report.ReportDiagnostic(d)
		return
	}

	if report.AnyErrors() {
		report.ReportFatal("verification of %s failed", asm.Name)
		return
	}

	report.ReportInfo("%s verified", asm.Name)
}

// findEntryPoint locates the conventional static Main.
func findEntryPoint(asm *metadata.Assembly) *metadata.MethodInfo {
	for _, m := range asm.DefinedMethods {
		if m.Name == "Main" && m.IsStatic() {
			return m
		}
	}
	return nil
}
