// Package layout computes the memory shape of materialized types: field
// placement, size and alignment, stack-type classification, the
// managed-pointer offset list that drives the write-barrier memcpy, and
// vtable construction. It is invoked exclusively from the loader's fill
// pass; once a type's IsFilled flag is set its layout fields are frozen.
package layout

import (
	"fmt"
	"sort"

	"corejit/metadata"
	"corejit/report"
	"corejit/util"
)

// Object layout constants. The object header is a single pointer to the
// object vtable header; arrays additionally carry their length immediately
// after the header, with element data following.
const (
	ObjectHeaderSize  = util.PointerSize
	ArrayLengthOffset = util.PointerSize
	ArrayDataOffset   = 2 * util.PointerSize
)

// ClassLayout carries a type's explicit class-layout record (packing size
// and declared total size), present only for explicit-layout value types.
type ClassLayout struct {
	PackingSize int
	ClassSize   int
}

// FillValueType computes the layout of a value type whose fields already
// have their types assigned. For an explicit-layout type the loader has
// already stamped each field's Offset from the FieldLayout table and cl is
// non-nil; otherwise fields are auto-placed at the next aligned offset.
func FillValueType(t *metadata.Type, cl *ClassLayout) *report.Diagnostic {
	if t.Flags.Has(metadata.FlagExplicitLayout) {
		return fillExplicit(t, cl)
	}

	size, align := 0, 1

	for _, f := range instanceFields(t) {
		fsize, falign := fieldSize(f.Type)
		size = util.AlignUp(size, falign)
		f.Offset = size
		size += fsize

		if falign > align {
			align = falign
		}
	}

	if size == 0 {
		// An empty struct still occupies one byte so distinct instances
		// have distinct addresses.
		size = 1
	}

	t.ManagedAlign = align
	t.ManagedSize = util.AlignUp(size, align)
	t.StackSize = t.ManagedSize
	t.StackAlign = align
	t.StackType = valueStackType(t)
	t.ManagedPointerOffsets = collectPointerOffsets(t, 0)

	return nil
}

// FillReferenceType computes the layout of an object-reference type: the
// managed size is the header plus auto-placed instance fields, while a
// stack-level value is always a single pointer.
func FillReferenceType(t *metadata.Type) *report.Diagnostic {
	size, align := ObjectHeaderSize, util.PointerAlign

	if t.Parent != nil && t.Parent.IsFilled && t.Parent.ManagedSize > ObjectHeaderSize {
		// Instance fields of the base class precede ours.
		size = t.Parent.ManagedSize
		if t.Parent.ManagedAlign > align {
			align = t.Parent.ManagedAlign
		}
	}

	for _, f := range instanceFields(t) {
		fsize, falign := fieldSize(f.Type)
		size = util.AlignUp(size, falign)
		f.Offset = size
		size += fsize

		if falign > align {
			align = falign
		}
	}

	t.ManagedAlign = align
	t.ManagedSize = util.AlignUp(size, align)
	t.StackSize = util.PointerSize
	t.StackAlign = util.PointerAlign
	t.StackType = metadata.StackObject
	t.ManagedPointerOffsets = collectPointerOffsets(t, 0)

	return nil
}

// FillArrayType stamps the layout of an array type: a stack-level array
// value is an object reference, its managed shape mirrors System.Array,
// and element data is GC-walked separately so the pointer-offset list
// stays empty.
func FillArrayType(t *metadata.Type, u *metadata.Universe) {
	t.Parent = u.Array
	t.StackType = metadata.StackObject
	t.StackSize = u.Array.StackSize
	t.StackAlign = u.Array.StackAlign
	t.ManagedSize = u.Array.StackSize
	t.ManagedAlign = u.Array.StackAlign
	t.IsFilled = true
}

// fieldSize returns the (size, align) a field of the given type occupies
// inside its owner's layout: value types are embedded, reference types
// and by-refs are a pointer.
func fieldSize(ft *metadata.Type) (int, int) {
	if ft.IsValueType() {
		return ft.ManagedSize, ft.ManagedAlign
	}

	return util.PointerSize, util.PointerAlign
}

// valueStackType classifies a value type for the evaluation stack: enums
// take their underlying primitive's class, every other value type is
// ValueType. The universe's primitives never reach this function; they
// are created pre-filled with their fixed classification.
func valueStackType(t *metadata.Type) metadata.StackKind {
	if t.IsEnum() && t.ElementType != nil {
		return t.ElementType.StackType
	}

	return metadata.StackValueType
}

// collectPointerOffsets walks t's instance fields, accumulating the byte
// offsets (relative to base) at which an object reference lives, directly
// or transitively through embedded value types.
func collectPointerOffsets(t *metadata.Type, base int) []int {
	var offs []int

	for _, f := range instanceFields(t) {
		switch {
		case f.Type.IsObjectRef() || f.Type.IsInterface():
			offs = append(offs, base+f.Offset)
		case f.Type.IsValueType():
			offs = append(offs, collectPointerOffsets(f.Type, base+f.Offset)...)
		}
	}

	if t.Parent != nil && t.IsObjectRef() {
		offs = append(offs, collectPointerOffsets(t.Parent, base)...)
	}

	sort.Ints(offs)
	return offs
}

func instanceFields(t *metadata.Type) []*metadata.FieldInfo {
	fields := make([]*metadata.FieldInfo, 0, len(t.Fields))

	for _, f := range t.Fields {
		if !f.IsStatic() && !f.IsLiteral() {
			fields = append(fields, f)
		}
	}

	return fields
}

// fillExplicit validates and applies an explicit-layout record: field
// offsets come from the metadata, the total size from the class-layout
// row, and no managed-pointer byte may overlap a non-pointer byte of
// another field.
func fillExplicit(t *metadata.Type, cl *ClassLayout) *report.Diagnostic {
	fields := instanceFields(t)

	size, align := 0, 1
	packing := util.PointerAlign
	if cl != nil && cl.PackingSize > 0 {
		packing = cl.PackingSize
	}

	for _, f := range fields {
		fsize, falign := fieldSize(f.Type)
		if falign > packing {
			falign = packing
		}

		if f.Offset%falign != 0 {
			return report.BadFormatf(assemblyName(t),
				"explicit layout of %s places field %s at misaligned offset %d",
				t.FullName(), f.Name, f.Offset)
		}

		if end := f.Offset + fsize; end > size {
			size = end
		}

		if falign > align {
			align = falign
		}
	}

	if d := validateExplicitOverlaps(t, fields); d != nil {
		return d
	}

	if cl != nil && cl.ClassSize > size {
		size = cl.ClassSize
	}

	if size == 0 {
		size = 1
	}

	t.ManagedAlign = align
	t.ManagedSize = util.AlignUp(size, align)
	t.StackSize = t.ManagedSize
	t.StackAlign = align
	t.StackType = valueStackType(t)
	t.ManagedPointerOffsets = collectPointerOffsets(t, 0)

	return nil
}

// validateExplicitOverlaps rejects a layout in which any byte holding a
// managed pointer in one field overlaps a byte of another field that is
// not a managed pointer at the identical offset. Two pointer fields fully
// aliased at the same offset remain legal, matching the union-of-references
// idiom.
func validateExplicitOverlaps(t *metadata.Type, fields []*metadata.FieldInfo) *report.Diagnostic {
	type span struct {
		f        *metadata.FieldInfo
		start    int
		end      int
		pointers []int // absolute offsets of managed pointers inside this field
	}

	spans := make([]span, len(fields))
	for i, f := range fields {
		fsize, _ := fieldSize(f.Type)
		s := span{f: f, start: f.Offset, end: f.Offset + fsize}

		if f.Type.IsObjectRef() || f.Type.IsInterface() {
			s.pointers = []int{f.Offset}
		} else if f.Type.IsValueType() {
			s.pointers = collectPointerOffsets(f.Type, f.Offset)
		}

		spans[i] = s
	}

	hasPointerAt := func(s span, off int) bool {
		return util.Contains(s.pointers, off)
	}

	for i := range spans {
		for j := range spans {
			if i == j || spans[i].start >= spans[j].end || spans[j].start >= spans[i].end {
				continue
			}

			for _, p := range spans[i].pointers {
				inOther := p+util.PointerSize > spans[j].start && p < spans[j].end
				if inOther && !hasPointerAt(spans[j], p) {
					return report.BadFormatf(assemblyName(t),
						"explicit layout of %s overlaps managed pointer in field %s with non-pointer bytes of field %s",
						t.FullName(), spans[i].f.Name, spans[j].f.Name)
				}
			}
		}
	}

	return nil
}

func assemblyName(t *metadata.Type) string {
	if t.DeclaringModule != nil && t.DeclaringModule.Assembly != nil {
		return t.DeclaringModule.Assembly.Name
	}

	return fmt.Sprintf("<unowned type %s>", t.Name)
}
