package metadata

// Module corresponds to the single CLI Module table row every assembly
// carries. The runtime does not support multi-module
// assemblies; Module exists as a distinct type from Assembly because the
// metadata format distinguishes them, and because Type/MethodInfo/FieldInfo
// all carry a DeclaringModule back-reference independent of their owning
// Assembly.
type Module struct {
	Name string

	// MVID is the module version identifier from the Module table,
	// opaque to the runtime and used only for diagnostics and for keying
	// the JIT-artifact cache.
	MVID [16]byte

	Assembly *Assembly
}
