package driver

import (
	"unsafe"

	"corejit/metadata"
	"corejit/report"
)

// allocateStatics reserves host storage for every static field of an
// assembly and registers its reference slots as GC roots (the block of a
// reference-typed field, and each managed-pointer offset of a value-type
// field): a reference written into static storage must keep its target
// alive. Called under d.mu.
func (d *Driver) allocateStatics(asm *metadata.Assembly) {
	for _, f := range asm.DefinedFields {
		if !f.IsStatic() || f.IsLiteral() {
			continue
		}

		size := 8
		if f.Type.IsValueType() {
			size = f.Type.ManagedSize
		}
		if f.Type.IsInterface() {
			size = 16
		}

		block := make([]byte, size)
		d.statics[f] = block

		if d.GC != nil && !f.Type.IsValueType() {
			d.GC.AddRoot(unsafe.Pointer(&block[0]))
		}
		if d.GC != nil && f.Type.IsValueType() {
			for _, off := range f.Type.ManagedPointerOffsets {
				d.GC.AddRoot(unsafe.Pointer(&block[off]))
			}
		}
	}
}

// PublishVTables resolves every virtual slot of every loaded type to its
// JITted entry address and records the finished buffer. Loaded vtables
// reference the emitted function addresses, so this runs strictly after
// Link.
func (d *Driver) PublishVTables(asm *metadata.Assembly) *report.Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.linked == nil {
		return report.New(report.CheckFailed, asm.Name, 0,
			"vtable publication before link")
	}

	for _, t := range asm.DefinedTypes {
		if t.IsInterface() || len(t.VTable) == 0 {
			continue
		}

		slots := make([]uintptr, len(t.VTable))
		for i, m := range t.VTable {
			if m == nil {
				continue // abstract hole, unreachable through dispatch
			}

			art, ok := m.Artifact().(*Artifact)
			if !ok || art == nil || art.Addr == 0 {
				if m.IsAbstract() {
					continue
				}
				return report.New(report.NotFound, asm.Name, uint32(m.Token),
					"vtable slot %d of %s references unpublished method %s",
					i, t.FullName(), m.Name)
			}

			slots[i] = art.Addr
		}

		d.vtables[t] = slots
	}

	return nil
}

// VTableOf returns a type's published slot array.
func (d *Driver) VTableOf(t *metadata.Type) ([]uintptr, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	slots, ok := d.vtables[t]
	return slots, ok
}

// StaticBlock returns the storage backing a static field.
func (d *Driver) StaticBlock(f *metadata.FieldInfo) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.statics[f]
	return b, ok
}
