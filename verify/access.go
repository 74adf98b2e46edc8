package verify

import (
	"corejit/metadata"
)

// TypeVisibleFrom implements the type-visibility half of the accessibility
// rules: whether type d may be named at all from code declared in type f.
func TypeVisibleFrom(f, d *metadata.Type) bool {
	switch d.Visibility {
	case metadata.VisibilityPublic:
		return true
	case metadata.VisibilityNotPublic:
		return sameAssembly(f, d)
	case metadata.VisibilityNestedPublic:
		return TypeVisibleFrom(f, d.DeclaringType)
	case metadata.VisibilityNestedPrivate:
		return enclosedBy(f, d.DeclaringType)
	case metadata.VisibilityNestedFamily:
		return isFamily(f, d.DeclaringType) && TypeVisibleFrom(f, d.DeclaringType)
	case metadata.VisibilityNestedAssembly:
		return sameAssembly(f, d) && TypeVisibleFrom(f, d.DeclaringType)
	case metadata.VisibilityNestedFamANDAssem:
		return isFamily(f, d.DeclaringType) && sameAssembly(f, d) && TypeVisibleFrom(f, d.DeclaringType)
	case metadata.VisibilityNestedFamORAssem:
		return (isFamily(f, d.DeclaringType) || sameAssembly(f, d)) && TypeVisibleFrom(f, d.DeclaringType)
	}

	return false
}

// CanAccessField reports whether code declared in type f may access field
// fld, per the member-access rules layered over type visibility.
func CanAccessField(f *metadata.Type, fld *metadata.FieldInfo) bool {
	d := fld.DeclaringType
	if !TypeVisibleFrom(f, d) {
		return false
	}

	switch fld.Visibility {
	case metadata.FieldPrivate:
		return enclosedBy(f, d)
	case metadata.FieldFamily:
		return isFamily(f, d)
	case metadata.FieldAssembly:
		return sameAssembly(f, d)
	case metadata.FieldFamANDAssem:
		return isFamily(f, d) && sameAssembly(f, d)
	case metadata.FieldFamORAssem:
		return isFamily(f, d) || sameAssembly(f, d)
	case metadata.FieldPublic:
		return true
	}

	return false
}

// CanAccessMethod mirrors CanAccessField for methods.
func CanAccessMethod(f *metadata.Type, m *metadata.MethodInfo) bool {
	d := m.DeclaringType
	if !TypeVisibleFrom(f, d) {
		return false
	}

	switch m.Visibility {
	case metadata.MethodPrivate:
		return enclosedBy(f, d)
	case metadata.MethodFamily:
		return isFamily(f, d)
	case metadata.MethodAssembly:
		return sameAssembly(f, d)
	case metadata.MethodFamANDAssem:
		return isFamily(f, d) && sameAssembly(f, d)
	case metadata.MethodFamORAssem:
		return isFamily(f, d) || sameAssembly(f, d)
	case metadata.MethodPublic:
		return true
	}

	return false
}

// isFamily reports the `family` (protected) relation: f is d or a subclass
// of d.
func isFamily(f, d *metadata.Type) bool {
	return f != nil && f.IsSubtypeOf(d)
}

// enclosedBy reports the `private` relation: f is d, or f is nested
// (transitively) within d.
func enclosedBy(f, d *metadata.Type) bool {
	for cur := f; cur != nil; cur = cur.DeclaringType {
		if cur == d {
			return true
		}
	}

	return false
}

func sameAssembly(f, d *metadata.Type) bool {
	if f == nil || d == nil || f.DeclaringModule == nil || d.DeclaringModule == nil {
		return false
	}

	return f.DeclaringModule.Assembly == d.DeclaringModule.Assembly
}
