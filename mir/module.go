package mir

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// Module is one unit of MIR handed to the code generator: the functions
// of a single assembly plus the prototypes, bss storage, and external
// symbols they reference.
type Module struct {
	ctx  *Context
	name string

	m *ir.Module

	funcs   map[string]*Func
	protos  map[string]*Func
	globals map[string]*ir.Global

	finished bool
}

func newModule(ctx *Context, name string) *Module {
	return &Module{
		ctx:     ctx,
		name:    name,
		m:       ir.NewModule(),
		funcs:   make(map[string]*Func),
		protos:  make(map[string]*Func),
		globals: make(map[string]*ir.Global),
	}
}

// Name returns the module's name.
func (m *Module) Name() string {
	return m.name
}

// NewFunc defines a function with the given return type (nil for void)
// and named parameters. Defining the same name twice is a caller bug.
func (m *Module) NewFunc(name string, ret Type, params ...*Param) *Func {
	if _, ok := m.funcs[name]; ok {
		panic(fmt.Sprintf("mir: duplicate function definition %q in module %s", name, m.name))
	}

	if ret == nil {
		ret = types.Void
	}

	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		irParams[i] = ir.NewParam(p.Name, p.Type)
	}

	f := &Func{mod: m, name: name, f: m.m.NewFunc(name, ret, irParams...)}
	m.funcs[name] = f
	return f
}

// DeclareProto declares (imports) a function prototype with no body: a
// forward reference to a function defined in another module or provided
// by the runtime's ABI. Declaring the same prototype twice returns the
// first declaration.
func (m *Module) DeclareProto(name string, ret Type, paramTypes ...Type) *Func {
	if f, ok := m.protos[name]; ok {
		return f
	}
	if f, ok := m.funcs[name]; ok {
		return f
	}

	if ret == nil {
		ret = types.Void
	}

	irParams := make([]*ir.Param, len(paramTypes))
	for i, t := range paramTypes {
		irParams[i] = ir.NewParam(fmt.Sprintf("a%d", i), t)
	}

	f := &Func{mod: m, name: name, f: m.m.NewFunc(name, ret, irParams...)}
	m.protos[name] = f
	return f
}

// NewBSS defines a zero-initialized global of size bytes, used for static
// field storage. Returns a pointer-typed value addressing the block.
func (m *Module) NewBSS(name string, size int) Value {
	if g, ok := m.globals[name]; ok {
		return g
	}

	arr := types.NewArray(uint64(size), types.I8)
	g := m.m.NewGlobalDef(name, constant.NewZeroInitializer(arr))
	m.globals[name] = g
	return g
}

// NewStringData defines a read-only global holding a string literal's
// UTF-16 code units plus a length prefix, the in-memory shape ldstr
// publishes. Returns the global's address.
func (m *Module) NewStringData(name, s string) Value {
	if g, ok := m.globals[name]; ok {
		return g
	}

	units := utf16Units(s)
	fields := make([]constant.Constant, 0, len(units)+2)
	// Length prefix as a native word, then the code units.
	fields = append(fields, constant.NewInt(types.I64, int64(len(units))))
	for _, u := range units {
		fields = append(fields, constant.NewInt(types.I16, int64(u)))
	}

	fieldTypes := make([]types.Type, len(fields))
	for i, f := range fields {
		fieldTypes[i] = f.Type()
	}
	st := types.NewStruct(fieldTypes...)

	g := m.m.NewGlobalDef(name, constant.NewStruct(st, fields...))
	g.Immutable = true
	m.globals[name] = g
	return g
}

// ExternData imports a data symbol defined outside this module (for
// example another assembly's static block). Returns its address.
func (m *Module) ExternData(name string) Value {
	if g, ok := m.globals[name]; ok {
		return g
	}

	g := m.m.NewGlobal(name, types.I8)
	g.Linkage = enum.LinkageExternal
	m.globals[name] = g
	return g
}

// Func looks up a function or prototype by name.
func (m *Module) Func(name string) (*Func, bool) {
	if f, ok := m.funcs[name]; ok {
		return f, true
	}
	f, ok := m.protos[name]
	return f, ok
}

// Text renders the module in the code generator's textual form. The
// rendering is deterministic for a fixed construction order, which is
// what makes per-method JIT output comparable across runs.
func (m *Module) Text() string {
	return m.m.String()
}

// Finish marks the module complete and transfers ownership into the
// context, after which it may be linked. No further definitions may be
// added.
func (m *Module) Finish() {
	if m.finished {
		return
	}

	m.finished = true
	m.ctx.adopt(m)
}

func utf16Units(s string) []uint16 {
	var units []uint16
	for _, r := range s {
		if r < 0x10000 {
			units = append(units, uint16(r))
			continue
		}

		r -= 0x10000
		units = append(units, 0xD800+uint16(r>>10), 0xDC00+uint16(r&0x3FF))
	}
	return units
}
