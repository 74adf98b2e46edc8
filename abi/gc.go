// Package abi declares the runtime's contracts with its external
// collaborators: the garbage collector, the host threading layer, and the
// executable-memory publisher the driver uses to map linked code. Only
// the contracts live here; the collaborators themselves are host-provided.
package abi

import (
	"unsafe"
)

// GC is the collector ABI the JIT emits calls against and the driver uses
// directly for root registration. The collector must cooperate with the
// safepoint-based suspension protocol in this package.
type GC interface {
	// New allocates size bytes for an instance of the type identified by
	// typeInfo, returning nil (not panicking) on exhaustion; the JIT
	// follows every allocation with an OOM check.
	New(typeInfo, size uintptr) unsafe.Pointer

	// Update is the write barrier for a store into a heap object's slot
	// at a byte offset.
	Update(object unsafe.Pointer, offset uintptr, newValue unsafe.Pointer)

	// UpdateRef is the write barrier for a store through a by-ref that
	// may point into the heap; the collector consults its heap index to
	// find the owning object.
	UpdateRef(address, newValue unsafe.Pointer)

	// AddRoot registers one pointer-sized slot the collector must treat
	// as a root (the driver registers the reference slots of static
	// field storage).
	AddRoot(address unsafe.Pointer)

	// HeapFindFast maps an interior address to its containing object, or
	// nil when the address is not heap-managed.
	HeapFindFast(address unsafe.Pointer) unsafe.Pointer
}

// GCConfigSink receives the operator's [gc] configuration table verbatim;
// the runtime does not interpret it.
type GCConfigSink interface {
	Configure(heapInitialBytes uint64, safepointEveryBackedge int)
}
