//go:build !linux

package abi

import (
	"corejit/report"
)

// PublishExecutable on non-Linux hosts: executable-page publication is
// wired per-OS; only the Linux path is implemented. verify/dump-mir
// workflows, which never map code, still work everywhere.
func PublishExecutable(image []byte) (uintptr, []byte, *report.Diagnostic) {
	return 0, nil, report.New(report.OutOfResources, "<abi>", 0,
		"executable page publication is not supported on this host OS")
}

// ReleaseExecutable matches the Linux signature.
func ReleaseExecutable(mem []byte) {}
