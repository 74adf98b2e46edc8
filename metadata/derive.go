package metadata

import "sync"

// ArrayOf returns the unique SZArray type with element type t, creating it
// on first request. Concurrent callers requesting array-of(t) observe the
// same *Type.
//
// The returned type is intentionally left with IsFilled == false: its
// layout is computed by layout.FillArrayType the first time it is needed,
// under the same publish-after-populate discipline used for ordinary
// types.
func (t *Type) ArrayOf() *Type {
	t.derivMu.Lock()
	defer t.derivMu.Unlock()

	if t.arrayType == nil {
		t.arrayType = &Type{
			DeclaringModule: t.DeclaringModule,
			Name:            t.Name + "[]",
			Kind:            KindObjectRef,
			Flags:           FlagSZArray,
			ElementType:     t,
		}
	}

	return t.arrayType
}

// ByRefOf returns the unique by-ref type T& for element type t. By-ref
// types never nest: calling ByRefOf on an existing by-ref
// type is a loader bug, caught by the assert rather than silently
// producing T&&.
func (t *Type) ByRefOf() *Type {
	t.derivMu.Lock()
	defer t.derivMu.Unlock()

	if t.byRefType == nil {
		if t.Kind == KindByRef {
			panic("ByRefOf called on an existing by-ref type: T& & is invalid")
		}

		t.byRefType = &Type{
			DeclaringModule: t.DeclaringModule,
			Name:            t.Name + "&",
			Kind:            KindByRef,
			ElementType:     t,
			StackType:       StackByRef,
			StackSize:       8,
			StackAlign:      8,
			ManagedSize:     8,
			ManagedAlign:    8,
			IsFilled:        true,
		}
	}

	return t.byRefType
}

// PointerOf returns the unique unmanaged pointer type T* for element type
// t. Unlike a by-ref, a pointer is an ordinary value of native-int width:
// the GC neither traces nor updates it.
func (t *Type) PointerOf() *Type {
	t.derivMu.Lock()
	defer t.derivMu.Unlock()

	if t.pointerType == nil {
		t.pointerType = &Type{
			DeclaringModule: t.DeclaringModule,
			Name:            t.Name + "*",
			Kind:            KindValueType,
			Flags:           FlagPointer,
			ElementType:     t,
			StackType:       StackIntPtr,
			StackSize:       8,
			StackAlign:      8,
			ManagedSize:     8,
			ManagedAlign:    8,
			IsFilled:        true,
		}
	}

	return t.pointerType
}

// Instantiate returns the generic instantiation of a generic type
// definition with the given type arguments, creating and appending it to
// the definition's instance chain under the definition's monitor if it
// does not already exist.
//
// Instantiation is linear in the number of existing instances, which is
// acceptable: a given generic definition is instantiated with a small
// number of distinct argument lists in any real program.
func (def *Type) Instantiate(args []*Type) *Type {
	def.instancesMu.Lock()
	defer def.instancesMu.Unlock()

	for _, inst := range def.Instances {
		if sameArgs(inst.GenericArgs, args) {
			return inst
		}
	}

	inst := &Type{
		DeclaringModule:   def.DeclaringModule,
		Namespace:         def.Namespace,
		Name:              def.Name,
		Token:             def.Token,
		Kind:              def.Kind,
		Flags:             def.Flags &^ FlagGenericDefinition,
		Parent:            def.Parent,
		Visibility:        def.Visibility,
		GenericDefinition: def,
		GenericArgs:       args,
		DeclaringType:     def.DeclaringType,
	}

	def.Instances = append(def.Instances, inst)
	return inst
}

// InstanceMonitor exposes the generic-definition's instantiation monitor,
// the lock Instantiate holds while it searches and extends the instance
// chain. The loader's instantiation fill does not take it; that fill is
// guarded by the loader's own mutex.
func (t *Type) InstanceMonitor() *sync.Mutex {
	return &t.instancesMu
}

func sameArgs(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
