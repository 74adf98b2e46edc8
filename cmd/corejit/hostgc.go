package main

import (
	"unsafe"

	"corejit/abi"
)

// invokeEntry transfers control to a published entry point. The real
// transfer is target-specific trampoline code provided by the external
// code generator's runtime; this host only owns the hand-off.
func invokeEntry(addr uintptr) {
	entryTrampoline(addr)
}

// entryTrampoline is provided by the code generator's runtime support
// library at link time; the pure-Go build ships a stub so the host still
// builds for verify/dump-mir workflows.
var entryTrampoline = func(addr uintptr) {}

// defaultGC returns the host's collector. Like the metadata reader, the
// collector is an external collaborator; embedding hosts install their
// own. The default is a conservative no-collect bump allocator adequate
// for verify/dump-mir runs that never execute managed code.
func defaultGC() abi.GC {
	return &bumpGC{}
}

// bumpGC satisfies the collector ABI without ever collecting.
type bumpGC struct {
	roots []unsafe.Pointer
}

func (g *bumpGC) New(typeInfo, size uintptr) unsafe.Pointer {
	block := make([]byte, size)
	return unsafe.Pointer(&block[0])
}

func (g *bumpGC) Update(object unsafe.Pointer, offset uintptr, newValue unsafe.Pointer) {
	*(*unsafe.Pointer)(unsafe.Add(object, offset)) = newValue
}

func (g *bumpGC) UpdateRef(address, newValue unsafe.Pointer) {
	*(*unsafe.Pointer)(address) = newValue
}

func (g *bumpGC) AddRoot(address unsafe.Pointer) {
	g.roots = append(g.roots, address)
}

func (g *bumpGC) HeapFindFast(address unsafe.Pointer) unsafe.Pointer {
	return nil
}
