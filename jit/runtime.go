package jit

import (
	"strings"

	"corejit/metadata"
	"corejit/mir"
)

// Runtime helper prototypes: the GC ABI, the cast/type runtime, and the
// small memory helpers the translator leans on. Every helper that can
// raise a managed exception returns the two-slot pair; the pure ones
// return a bare value.
const (
	symGCNew       = "gc_new"
	symGCUpdate    = "gc_update"
	symGCUpdateRef = "gc_update_ref"
	symGCAddRoot   = "gc_add_root"

	symIsInst     = "rt_isinst"
	symCastIface  = "rt_cast_obj_to_interface"
	symIfaceSlot  = "rt_iface_offset"
	symNewString  = "rt_new_string"
	symMemcpy     = "rt_memcpy"
	symMemzero    = "rt_memzero"
	symSafepoint  = "rt_safepoint"
)

func (t *translation) protoGCNew() *mir.Func {
	return t.mod.DeclareProto(symGCNew, mir.Ptr, mir.Ptr, mir.I64)
}

func (t *translation) protoGCUpdate() *mir.Func {
	return t.mod.DeclareProto(symGCUpdate, nil, mir.Ptr, mir.I64, mir.Ptr)
}

func (t *translation) protoGCUpdateRef() *mir.Func {
	return t.mod.DeclareProto(symGCUpdateRef, nil, mir.Ptr, mir.Ptr)
}

// rt_isinst(obj, type) returns obj if it is an instance of type, null
// otherwise. Pure with respect to managed state; never throws.
func (t *translation) protoIsInst() *mir.Func {
	return t.mod.DeclareProto(symIsInst, mir.Ptr, mir.Ptr, mir.Ptr)
}

// rt_cast_obj_to_interface(obj, iface) populates a fat pointer: it
// returns the vtable-slice address, or null when the object does not
// implement iface.
func (t *translation) protoCastIface() *mir.Func {
	return t.mod.DeclareProto(symCastIface, mir.Ptr, mir.Ptr, mir.Ptr)
}

// rt_iface_offset(type, iface) returns the vtable offset of iface's slot
// run on the concrete type.
func (t *translation) protoIfaceSlot() *mir.Func {
	return t.mod.DeclareProto(symIfaceSlot, mir.I64, mir.Ptr, mir.Ptr)
}

func (t *translation) protoNewString() *mir.Func {
	return t.mod.DeclareProto(symNewString, mir.Ptr, mir.Ptr)
}

func (t *translation) protoMemzero() *mir.Func {
	return t.mod.DeclareProto(symMemzero, nil, mir.Ptr, mir.I64)
}

func (t *translation) protoSafepoint() *mir.Func {
	return t.mod.DeclareProto(symSafepoint, nil)
}

/* -------------------------------------------------------------------------- */
/* Symbol naming                                                              */

// MethodSymbol is the deterministic linker name of a compiled method:
// assembly, declaring type, method name, and token row, sanitized to the
// generator's identifier alphabet. Determinism here is what makes JIT
// output reproducible (identical metadata in, identical MIR text out).
func MethodSymbol(m *metadata.MethodInfo) string {
	asm := "anon"
	if m.DeclaringModule != nil && m.DeclaringModule.Assembly != nil {
		asm = m.DeclaringModule.Assembly.Name
	}

	return sanitize(asm) + "_" + sanitize(m.DeclaringType.FullName()) + "_" +
		sanitize(m.Name) + "_" + itoa(int(m.Token.Row()))
}

// TypeSymbol names the runtime type-info block for a type.
func TypeSymbol(t *metadata.Type) string {
	asm := "anon"
	if t.DeclaringModule != nil && t.DeclaringModule.Assembly != nil {
		asm = t.DeclaringModule.Assembly.Name
	}

	return "ti_" + sanitize(asm) + "_" + sanitize(t.FullName())
}

// VTableSymbol names a type's published vtable buffer.
func VTableSymbol(t *metadata.Type) string {
	return "vt_" + TypeSymbol(t)[3:]
}

// StaticSymbol names a static field's storage.
func StaticSymbol(f *metadata.FieldInfo) string {
	return "st_" + TypeSymbol(f.DeclaringType)[3:] + "_" + sanitize(f.Name)
}

// StringSymbol names an ldstr literal's data block.
func StringSymbol(asm string, row uint32) string {
	return "str_" + sanitize(asm) + "_" + itoa(int(row))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

/* -------------------------------------------------------------------------- */
/* Runtime data references                                                    */

// typeHandle returns the address of a type's runtime type-info block,
// defining a placeholder in this module on first use. The driver
// publishes the real contents after linking.
func (t *translation) typeHandle(typ *metadata.Type) mir.Value {
	return t.mod.NewBSS(TypeSymbol(typ), 2*8)
}

// vtableHandle returns the address of a type's vtable buffer: the object
// vtable header (owning type pointer, then the virtual function array),
// sized to the type's slot count.
func (t *translation) vtableHandle(typ *metadata.Type) mir.Value {
	return t.mod.NewBSS(VTableSymbol(typ), (1+len(typ.VTable))*8)
}

// staticHandle returns the address of a static field's storage block.
func (t *translation) staticHandle(f *metadata.FieldInfo) mir.Value {
	size := f.Type.ManagedSize
	if !f.Type.IsValueType() {
		size = 8
	}
	return t.mod.NewBSS(StaticSymbol(f), size)
}

// elemStackSize is the per-element footprint used for array layout.
func elemStackSize(elem *metadata.Type) int {
	if elem.IsValueType() {
		return elem.StackSize
	}
	return 8
}

// fieldByteSize is the footprint of a field's stored form.
func fieldByteSize(ft *metadata.Type) int {
	if ft.IsValueType() {
		return ft.ManagedSize
	}
	return 8
}
