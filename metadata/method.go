package metadata

import "sync"

// MethodAttributes mirrors the subset of CLI MethodAttributes the loader
// and JIT care about.
type MethodAttributes uint32

const (
	MethodStatic MethodAttributes = 1 << iota
	MethodVirtual
	MethodAbstract
	MethodFinal
	MethodRTSpecialName // e.g. .ctor, .cctor
	MethodNewSlot
	MethodHideBySig
)

func (a MethodAttributes) Has(flag MethodAttributes) bool { return a&flag != 0 }

// MethodVisibility is the access-level sub-field of MethodAttributes.
type MethodVisibility int

const (
	MethodPrivate MethodVisibility = iota
	MethodFamANDAssem
	MethodAssembly
	MethodFamily
	MethodFamORAssem
	MethodPublic
)

// ImplFlags mirrors the subset of CLI MethodImplAttributes that changes how
// the loader produces a callable artifact for a method.
type ImplFlags uint32

const (
	ImplIL ImplFlags = iota
	ImplNative
	ImplRuntime
	ImplInternalCall
)

// CodegenFlags are hints the JIT honors when translating a method body;
// they do not change the method's observable semantics.
type CodegenFlags uint32

const (
	CodegenAggressiveInlining CodegenFlags = 1 << iota
	CodegenNoInlining
	CodegenUnmanaged
)

// Param describes one formal parameter. Index 0 is the
// implicit `this` for an instance method and is not present in Params;
// Params[i] corresponds to CIL argument slot i+1 for an instance method or
// slot i for a static one, except for value-type instance methods, see
// MethodInfo.ThisByRef.
type Param struct {
	Name string
	Type *Type
}

// MethodBody holds the decoded contents of a method's CIL body. A method
// with ImplFlags != ImplIL has no body.
type MethodBody struct {
	CIL []byte

	MaxStack   int
	InitLocals bool

	Locals  []LocalVariableInfo
	Clauses []ExceptionHandlingClause
}

// MethodInfo is a method declared on a Type.
type MethodInfo struct {
	DeclaringType   *Type
	DeclaringModule *Module
	Token           Token

	Name       string
	ReturnType *Type // nil means void
	Params     []Param

	Attributes MethodAttributes
	Visibility MethodVisibility
	Impl       ImplFlags
	Codegen    CodegenFlags

	Body *MethodBody

	// VTableSlot is the index within DeclaringType.VTable this method
	// occupies, valid only when Attributes.Has(MethodVirtual).
	VTableSlot int

	// ThisByRef is set for an instance method declared on a value type:
	// its implicit `this` argument is a managed pointer to the value
	// rather than a boxed object reference.
	ThisByRef bool

	// IsTailCallCandidate records that the method body contains at least
	// one `.tail` prefixed call, set by the loader's fill pass. The JIT
	// does not read it; it tracks the prefix per instruction while
	// translating.
	IsTailCallCandidate bool

	artifactMu sync.Mutex
	artifact   interface{}
}

func (m *MethodInfo) IsStatic() bool   { return m.Attributes.Has(MethodStatic) }
func (m *MethodInfo) IsVirtual() bool  { return m.Attributes.Has(MethodVirtual) }
func (m *MethodInfo) IsAbstract() bool { return m.Attributes.Has(MethodAbstract) }

// ParamCount returns the number of CIL argument slots this method expects,
// including the implicit `this` slot for an instance method.
func (m *MethodInfo) ParamCount() int {
	n := len(m.Params)
	if !m.IsStatic() {
		n++
	}
	return n
}

// Artifact returns the JIT-produced callable artifact for this method, or
// nil if it has not yet been JITted. The concrete type behind the
// interface{} is driver.Artifact; the metadata package cannot import
// driver without creating an import cycle (driver consumes metadata), so
// the relationship is expressed at the interface{} boundary.
func (m *MethodInfo) Artifact() interface{} {
	m.artifactMu.Lock()
	defer m.artifactMu.Unlock()
	return m.artifact
}

// SetArtifact publishes the JIT-produced artifact for this method. It is
// called at most once per method, under the driver's per-assembly JIT
// phase lock, but uses its own mutex as well so a lock-free fast path in
// Artifact() is safe to add later without revisiting callers.
func (m *MethodInfo) SetArtifact(a interface{}) {
	m.artifactMu.Lock()
	defer m.artifactMu.Unlock()
	m.artifact = a
}
