package abi

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HostTarget describes the native target the JIT lowers MIR for, probed
// from the host rather than trusted from configuration.
type HostTarget struct {
	Arch        string
	PointerSize int

	// HasFastUnalignedAccess reports whether the narrowing/widening move
	// sequences the translator emits may assume cheap unaligned loads.
	HasFastUnalignedAccess bool
}

// ProbeHost inspects the running machine.
func ProbeHost() HostTarget {
	t := HostTarget{Arch: runtime.GOARCH, PointerSize: 8}

	switch runtime.GOARCH {
	case "amd64":
		t.HasFastUnalignedAccess = true
	case "arm64":
		t.HasFastUnalignedAccess = cpu.ARM64.HasASIMD
	}

	return t
}

// Supported reports whether the probed target is one the runtime can
// publish code for.
func (t HostTarget) Supported() bool {
	return t.Arch == "amd64" || t.Arch == "arm64"
}
