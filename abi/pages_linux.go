//go:build linux

package abi

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"corejit/report"
)

// PublishExecutable maps a fresh page range, copies a linked object image
// into it, and flips the protection to read+execute. The returned base is
// what the linker's symbol offsets rebase against.
func PublishExecutable(image []byte) (uintptr, []byte, *report.Diagnostic) {
	if len(image) == 0 {
		return 0, nil, report.New(report.CheckFailed, "<abi>", 0, "empty object image")
	}

	pageSize := unix.Getpagesize()
	size := (len(image) + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, nil, report.New(report.OutOfResources, "<abi>", 0,
			"mmap of %d bytes failed: %s", size, err)
	}

	copy(mem, image)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return 0, nil, report.New(report.OutOfResources, "<abi>", 0,
			"mprotect failed: %s", err)
	}

	return uintptr(unsafe.Pointer(&mem[0])), mem, nil
}

// ReleaseExecutable unmaps a previously published image.
func ReleaseExecutable(mem []byte) {
	_ = unix.Munmap(mem)
}
