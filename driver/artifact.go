// Package driver is the assembly-level JIT driver: it pre-declares every
// method prototype, drives per-method translation, links the finished
// modules, publishes vtables and static storage, and registers GC roots.
package driver

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"corejit/jit"
	"corejit/metadata"
)

// Artifact is the JIT product for one method: its linker symbol, its
// content-derived cache key, and (post-link) the entry address. Artifacts
// are created once per method on first compilation of its assembly and
// never invalidated.
type Artifact struct {
	Method *metadata.MethodInfo
	Symbol string
	Key    [32]byte
	Addr   uintptr
}

// artifactKey content-addresses a method: its body bytes, its symbol
// (which encodes assembly, type, name, and token), its declaring module's
// MVID, and the generic arguments of its declaring type. Equal inputs
// produce equal keys, which lets the driver skip recompiling a method
// whose artifact already exists. No MIR name is derived from the key.
func artifactKey(m *metadata.MethodInfo) [32]byte {
	h, _ := blake2b.New256(nil)

	h.Write([]byte(jit.MethodSymbol(m)))
	h.Write(m.DeclaringModule.MVID[:])

	if m.Body != nil {
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(m.Body.CIL)))
		h.Write(lenBuf[:])
		h.Write(m.Body.CIL)
	}

	for _, arg := range m.DeclaringType.GenericArgs {
		h.Write([]byte(jit.TypeSymbol(arg)))
	}

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
