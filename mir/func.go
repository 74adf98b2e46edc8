package mir

import (
	"fmt"

	"github.com/llir/llvm/ir"
)

// Param names one formal parameter of a function under construction.
type Param struct {
	Name string
	Type Type
}

// Func is a function being built (or a declared prototype). Its value may
// be used as a callee or stored as a function pointer.
type Func struct {
	mod  *Module
	name string
	f    *ir.Func

	blocks int
}

// Name returns the function's linker-visible symbol name.
func (f *Func) Name() string {
	return f.name
}

// Value returns the function as a callable/storable operand.
func (f *Func) Value() Value {
	return f.f
}

// Sig returns the function's type.
func (f *Func) Sig() Type {
	return f.f.Sig
}

// ParamValue returns the i-th formal parameter as an operand.
func (f *Func) ParamValue(i int) Value {
	return f.f.Params[i]
}

// NewBlock appends a labeled basic block. Labels are namespaced per
// function and suffixed with a per-function counter so two blocks created
// from the same CIL offset (for example a handler entry and its
// re-dispatch) stay distinct while remaining deterministic.
func (f *Func) NewBlock(label string) *Block {
	b := f.f.NewBlock(fmt.Sprintf("%s.%d", label, f.blocks))
	f.blocks++
	return &Block{fn: f, b: b}
}

// Block is one basic block of a function under construction. Instruction
// appending goes through Builder; Block itself only identifies a position.
type Block struct {
	fn *Func
	b  *ir.Block
}

// HasTerminator reports whether the block already ends in a terminator
// instruction.
func (b *Block) HasTerminator() bool {
	return b.b.Term != nil
}

// Name returns the block's label.
func (b *Block) Name() string {
	return b.b.LocalName
}
