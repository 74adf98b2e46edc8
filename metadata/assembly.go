package metadata

// Assembly is the unit of loading and JIT compilation.
// Each slice is indexed by (row-1): DefinedTypes[i] is the type at
// TypeDef row i+1, and so on for the other tables. Imported entries are
// resolved lazily by the loader and may be nil until first referenced.
type Assembly struct {
	Name    string
	Version [4]uint16

	Module *Module

	// ReflectionOnly assemblies are loaded far enough to answer metadata
	// queries (types, members, signatures, layouts) but are never JITted:
	// no method body is decoded past its raw CIL bytes. This breaks the load cycle that would
	// otherwise arise when a tool needs to inspect an assembly built
	// against a newer runtime than the one hosting it.
	ReflectionOnly bool

	DefinedTypes []*Type
	ImportedTypes []*Type

	DefinedMethods []*MethodInfo
	ImportedMembers []*MethodInfo

	DefinedFields []*FieldInfo

	// DefinedTypeSpecs holds the materialized Type for every TypeSpec
	// table row: a TypeSpec describes a constructed type (array, byref,
	// pointer, generic instantiation) referenced by signature rather than
	// declared outright, so its materialization happens during signature
	// decoding rather than during the setup pass.
	DefinedTypeSpecs []*Type

	// UserStrings maps a UserString heap offset (the operand of an
	// ldstr instruction, carried in its token's row field) to the decoded
	// UTF-16 string literal.
	UserStrings map[uint32]string

	// References lists the assemblies this one's AssemblyRef table rows
	// resolve to, in table order, populated by the loader once each
	// reference has itself been loaded.
	References []*Assembly
}

// ResolveTypeToken looks up the Type named by a metadata token already
// known to belong to this assembly's TypeDef, TypeRef, or TypeSpec table.
// It does not itself perform cross-assembly resolution for TypeRef rows;
// that is the loader's job, recorded by populating ImportedTypes.
func (a *Assembly) ResolveTypeToken(tok Token) (*Type, bool) {
	row := tok.Row()
	if row == 0 {
		return nil, false
	}

	switch tok.Table() {
	case TableTypeDef:
		if idx := int(row - 1); idx >= 0 && idx < len(a.DefinedTypes) {
			return a.DefinedTypes[idx], true
		}
	case TableTypeRef:
		if idx := int(row - 1); idx >= 0 && idx < len(a.ImportedTypes) {
			return a.ImportedTypes[idx], true
		}
	case TableTypeSpec:
		if idx := int(row - 1); idx >= 0 && idx < len(a.DefinedTypeSpecs) {
			return a.DefinedTypeSpecs[idx], true
		}
	}

	return nil, false
}

// ResolveMethodToken mirrors ResolveTypeToken for the MethodDef/MemberRef
// tables.
func (a *Assembly) ResolveMethodToken(tok Token) (*MethodInfo, bool) {
	row := tok.Row()
	if row == 0 {
		return nil, false
	}

	switch tok.Table() {
	case TableMethodDef:
		if idx := int(row - 1); idx >= 0 && idx < len(a.DefinedMethods) {
			return a.DefinedMethods[idx], true
		}
	case TableMemberRef:
		if idx := int(row - 1); idx >= 0 && idx < len(a.ImportedMembers) {
			return a.ImportedMembers[idx], true
		}
	}

	return nil, false
}

// ResolveFieldToken mirrors ResolveTypeToken for the Field table.
func (a *Assembly) ResolveFieldToken(tok Token) (*FieldInfo, bool) {
	if tok.Table() != TableField {
		return nil, false
	}

	idx := int(tok.Row() - 1)
	if idx < 0 || idx >= len(a.DefinedFields) {
		return nil, false
	}

	return a.DefinedFields[idx], true
}

// ResolveUserString looks up an ldstr operand.
func (a *Assembly) ResolveUserString(tok Token) (string, bool) {
	if tok.Table() != TableUserString {
		return "", false
	}

	s, ok := a.UserStrings[tok.Row()]
	return s, ok
}
