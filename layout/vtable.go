package layout

import (
	"corejit/metadata"
	"corejit/report"
)

// BuildVTable assigns vtable slots for a type whose parent (if any) has
// already been filled. Slots [0..N) hold the type's own and inherited
// virtual methods in inheritance order, overrides replacing inherited
// slots in place; a contiguous run of K slots then follows for each
// implemented interface of size K, with the run's start offset recorded on
// the InterfaceImpl entry.
func BuildVTable(t *metadata.Type) *report.Diagnostic {
	var slots []*metadata.MethodInfo

	if t.Parent != nil {
		slots = append(slots, t.Parent.VirtualMethods...)
	}

	for _, m := range t.Methods {
		if !m.IsVirtual() {
			continue
		}

		if !m.Attributes.Has(metadata.MethodNewSlot) {
			if slot := findOverrideSlot(slots, m); slot >= 0 {
				slots[slot] = m
				m.VTableSlot = slot
				continue
			}
		}

		m.VTableSlot = len(slots)
		slots = append(slots, m)
	}

	t.VirtualMethods = slots

	// Interface slot runs. The InterfaceImpl entries were recorded by the
	// loader's setup pass with their interfaces resolved; here each gets
	// its offset and its run of implementing methods.
	vtable := append([]*metadata.MethodInfo(nil), slots...)

	for i := range t.Interfaces {
		impl := &t.Interfaces[i]
		impl.VTableOffset = len(vtable)

		for _, im := range impl.Interface.VirtualMethods {
			target := findImplementation(t, im)
			if target == nil {
				if t.Flags.Has(metadata.FlagAbstract) {
					// An abstract class may leave interface slots for its
					// concrete subclasses; the slot stays nil and any
					// dispatch through it is a loader-rejected condition
					// on the subclass.
					vtable = append(vtable, nil)
					continue
				}

				return report.New(report.BadFormat, assemblyName(t), uint32(t.Token),
					"%s declares interface %s but provides no implementation of %s",
					t.FullName(), impl.Interface.FullName(), im.Name)
			}

			vtable = append(vtable, target)
		}
	}

	t.VTable = vtable
	return nil
}

// findOverrideSlot locates the inherited slot a non-newslot virtual method
// overrides, matching by name and signature. Returns -1 when the method
// introduces a new slot despite not being marked newslot (permitted: the
// flag is a hint, the match is authoritative).
func findOverrideSlot(slots []*metadata.MethodInfo, m *metadata.MethodInfo) int {
	for i, s := range slots {
		if s != nil && s.Name == m.Name && SignaturesMatch(s, m) {
			return i
		}
	}

	return -1
}

// findImplementation resolves the method on t (or the nearest ancestor)
// that implements interface method im, preferring the most-derived
// declaration.
func findImplementation(t *metadata.Type, im *metadata.MethodInfo) *metadata.MethodInfo {
	for cur := t; cur != nil; cur = cur.Parent {
		for _, m := range cur.Methods {
			if m.IsVirtual() && !m.IsAbstract() && m.Name == im.Name && SignaturesMatch(m, im) {
				return m
			}
		}
	}

	// An abstract implementation still satisfies the slot for dispatch
	// mapping purposes; a second pass accepts it if no concrete one won.
	for cur := t; cur != nil; cur = cur.Parent {
		for _, m := range cur.Methods {
			if m.IsVirtual() && m.Name == im.Name && SignaturesMatch(m, im) {
				return m
			}
		}
	}

	return nil
}

// SignaturesMatch reports whether two methods agree on parameter types and
// return type. Names are compared by the callers that need them; generic
// instantiations compare by the already-substituted parameter types.
func SignaturesMatch(a, b *metadata.MethodInfo) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}

	if a.ReturnType != b.ReturnType {
		return false
	}

	for i := range a.Params {
		if a.Params[i].Type != b.Params[i].Type {
			return false
		}
	}

	return true
}
