package loader

import (
	"sync"

	"corejit/config"
	"corejit/metadata"
	"corejit/report"
	"corejit/util"
	"corejit/verify"
)

// Loader owns every loaded assembly and the process-wide primitive
// universe. Assemblies load exactly once; concurrent loads of distinct
// assemblies serialize on the loader's mutex during publication only.
type Loader struct {
	cfg *config.Config

	Universe  *metadata.Universe
	Relations verify.Relations

	coreModule *metadata.Module

	mu         sync.Mutex
	assemblies map[string]*metadata.Assembly

	// specBlobs retains each assembly's TypeSpec signature blobs so a
	// TypeSpec token first referenced from a CIL body (after load) can
	// still be materialized.
	specBlobs map[*metadata.Assembly][][]byte

	instMu      sync.Mutex
	instFilling map[*metadata.Type]bool
}

// New creates a loader with a fresh primitive universe.
func New(cfg *config.Config) *Loader {
	coreAsm := &metadata.Assembly{Name: "System.Runtime"}
	coreMod := &metadata.Module{Name: "System.Runtime.dll", Assembly: coreAsm}
	coreAsm.Module = coreMod

	u := metadata.NewUniverse(coreMod, util.PointerSize)

	return &Loader{
		cfg:        cfg,
		Universe:   u,
		Relations:  verify.Relations{U: u},
		coreModule: coreMod,
		assemblies:  map[string]*metadata.Assembly{coreAsm.Name: coreAsm},
		specBlobs:   map[*metadata.Assembly][][]byte{},
		instFilling: map[*metadata.Type]bool{},
	}
}

// Assembly returns a previously loaded assembly by name.
func (l *Loader) Assembly(name string) (*metadata.Assembly, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assemblies[name]
	return a, ok
}

// LoadAssembly materializes a raw assembly: the setup pass creates every
// type, method, and field shell; the fill pass decodes signatures,
// computes layouts and vtables, and freezes each type. Referenced
// assemblies must already be loaded (the host's load driver orders them);
// a missing reference is a NotFound diagnostic.
//
// When reflectionOnly is set the assembly's metadata is fully queryable
// but its method bodies keep only their raw CIL bytes and the driver will
// refuse to JIT it.
func (l *Loader) LoadAssembly(raw *RawAssembly, reflectionOnly bool) (*metadata.Assembly, *report.Diagnostic) {
	l.mu.Lock()
	if a, ok := l.assemblies[raw.Name]; ok {
		l.mu.Unlock()
		return a, nil
	}
	l.mu.Unlock()

	asm := &metadata.Assembly{
		Name:           raw.Name,
		Version:        raw.Version,
		ReflectionOnly: reflectionOnly,
		UserStrings:    raw.UserStrings,
	}
	asm.Module = &metadata.Module{Name: raw.ModuleName, MVID: raw.MVID, Assembly: asm}

	l.mu.Lock()
	l.specBlobs[asm] = raw.TypeSpecs
	l.mu.Unlock()

	ld := &assemblyLoad{
		loader: l,
		raw:    raw,
		asm:    asm,
	}

	if d := ld.setup(); d != nil {
		return nil, d
	}

	if d := ld.fill(); d != nil {
		return nil, d
	}

	// Publish only after every type is filled: readers that find the
	// assembly in the map may rely on its types being frozen.
	l.mu.Lock()
	l.assemblies[asm.Name] = asm
	l.mu.Unlock()

	report.ReportInfo("loaded assembly %s (%d types, %d methods)",
		asm.Name, len(asm.DefinedTypes), len(asm.DefinedMethods))

	return asm, nil
}

// assemblyLoad carries the state of one in-progress LoadAssembly call.
type assemblyLoad struct {
	loader *Loader
	raw    *RawAssembly
	asm    *metadata.Assembly

	// filling tracks types currently inside fillType, to reject
	// layout-cycle metadata (a value type embedding itself).
	filling map[*metadata.Type]bool
}
