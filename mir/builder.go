package mir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
)

// Builder appends instructions to a current block. It is the only way the
// JIT translator mutates MIR; repositioning it with SetBlock is how the
// translator threads control flow.
type Builder struct {
	fn    *Func
	block *Block
}

// NewBuilder creates a builder positioned at the given block.
func NewBuilder(fn *Func, at *Block) *Builder {
	return &Builder{fn: fn, block: at}
}

// Fn returns the function being built.
func (b *Builder) Fn() *Func {
	return b.fn
}

// Block returns the current insertion block.
func (b *Builder) Block() *Block {
	return b.block
}

// SetBlock repositions the builder.
func (b *Builder) SetBlock(blk *Block) {
	b.block = blk
}

/* -------------------------------------------------------------------------- */
/* Constants                                                                  */

// ConstI32, ConstI64, ConstF32, ConstF64, Null are the constant operand
// constructors the translator uses for ldc and friends.

func ConstI32(v int32) Value { return constant.NewInt(types.I32, int64(v)) }
func ConstI64(v int64) Value { return constant.NewInt(types.I64, v) }
func ConstI8(v int8) Value   { return constant.NewInt(types.I8, int64(v)) }
func ConstI16(v int16) Value { return constant.NewInt(types.I16, int64(v)) }
func ConstBool(v bool) Value {
	if v {
		return constant.NewInt(types.I1, 1)
	}
	return constant.NewInt(types.I1, 0)
}
func ConstF32(v float64) Value { return constant.NewFloat(types.Float, v) }
func ConstF64(v float64) Value { return constant.NewFloat(types.Double, v) }

// Null is the null byte pointer.
func Null() Value { return constant.NewNull(Ptr) }

/* -------------------------------------------------------------------------- */
/* Arithmetic                                                                 */

func (b *Builder) Add(x, y Value) Value  { return b.block.b.NewAdd(x, y) }
func (b *Builder) Sub(x, y Value) Value  { return b.block.b.NewSub(x, y) }
func (b *Builder) Mul(x, y Value) Value  { return b.block.b.NewMul(x, y) }
func (b *Builder) SDiv(x, y Value) Value { return b.block.b.NewSDiv(x, y) }
func (b *Builder) UDiv(x, y Value) Value { return b.block.b.NewUDiv(x, y) }
func (b *Builder) SRem(x, y Value) Value { return b.block.b.NewSRem(x, y) }
func (b *Builder) URem(x, y Value) Value { return b.block.b.NewURem(x, y) }
func (b *Builder) And(x, y Value) Value  { return b.block.b.NewAnd(x, y) }
func (b *Builder) Or(x, y Value) Value   { return b.block.b.NewOr(x, y) }
func (b *Builder) Xor(x, y Value) Value  { return b.block.b.NewXor(x, y) }
func (b *Builder) Shl(x, y Value) Value  { return b.block.b.NewShl(x, y) }
func (b *Builder) AShr(x, y Value) Value { return b.block.b.NewAShr(x, y) }
func (b *Builder) LShr(x, y Value) Value { return b.block.b.NewLShr(x, y) }

func (b *Builder) FAdd(x, y Value) Value { return b.block.b.NewFAdd(x, y) }
func (b *Builder) FSub(x, y Value) Value { return b.block.b.NewFSub(x, y) }
func (b *Builder) FMul(x, y Value) Value { return b.block.b.NewFMul(x, y) }
func (b *Builder) FDiv(x, y Value) Value { return b.block.b.NewFDiv(x, y) }
func (b *Builder) FRem(x, y Value) Value { return b.block.b.NewFRem(x, y) }

// Neg lowers to fneg for a float operand and to a subtraction from zero
// of the operand's type for an integer.
func (b *Builder) Neg(x Value) Value {
	if IsFloatType(x.Type()) {
		return b.block.b.NewFNeg(x)
	}
	return b.block.b.NewSub(constant.NewInt(x.Type().(*types.IntType), 0), x)
}

// Not lowers to xor with all-ones.
func (b *Builder) Not(x Value) Value {
	return b.block.b.NewXor(x, constant.NewInt(x.Type().(*types.IntType), -1))
}

/* -------------------------------------------------------------------------- */
/* Comparisons                                                                */

// CmpKind is the comparison selector shared by integer and float
// comparisons; the translator picks signed/unsigned or ordered/unordered
// via the Un flag.
type CmpKind int

const (
	CmpEQ CmpKind = iota
	CmpNE
	CmpGT
	CmpGE
	CmpLT
	CmpLE
)

var signedPreds = map[CmpKind]enum.IPred{
	CmpEQ: enum.IPredEQ, CmpNE: enum.IPredNE,
	CmpGT: enum.IPredSGT, CmpGE: enum.IPredSGE,
	CmpLT: enum.IPredSLT, CmpLE: enum.IPredSLE,
}

var unsignedPreds = map[CmpKind]enum.IPred{
	CmpEQ: enum.IPredEQ, CmpNE: enum.IPredNE,
	CmpGT: enum.IPredUGT, CmpGE: enum.IPredUGE,
	CmpLT: enum.IPredULT, CmpLE: enum.IPredULE,
}

var orderedPreds = map[CmpKind]enum.FPred{
	CmpEQ: enum.FPredOEQ, CmpNE: enum.FPredUNE,
	CmpGT: enum.FPredOGT, CmpGE: enum.FPredOGE,
	CmpLT: enum.FPredOLT, CmpLE: enum.FPredOLE,
}

var unorderedPreds = map[CmpKind]enum.FPred{
	CmpEQ: enum.FPredUEQ, CmpNE: enum.FPredUNE,
	CmpGT: enum.FPredUGT, CmpGE: enum.FPredUGE,
	CmpLT: enum.FPredULT, CmpLE: enum.FPredULE,
}

// ICmp emits an integer (or pointer) comparison producing an i1.
func (b *Builder) ICmp(kind CmpKind, unsigned bool, x, y Value) Value {
	preds := signedPreds
	if unsigned {
		preds = unsignedPreds
	}
	return b.block.b.NewICmp(preds[kind], x, y)
}

// FCmp emits a float comparison; unordered selects the unordered
// predicate family used by the .un comparison opcodes.
func (b *Builder) FCmp(kind CmpKind, unordered bool, x, y Value) Value {
	preds := orderedPreds
	if unordered {
		preds = unorderedPreds
	}
	return b.block.b.NewFCmp(preds[kind], x, y)
}

/* -------------------------------------------------------------------------- */
/* Conversions                                                                */

func (b *Builder) SExt(x Value, to Type) Value    { return b.block.b.NewSExt(x, to) }
func (b *Builder) ZExt(x Value, to Type) Value    { return b.block.b.NewZExt(x, to) }
func (b *Builder) Trunc(x Value, to Type) Value   { return b.block.b.NewTrunc(x, to) }
func (b *Builder) SIToFP(x Value, to Type) Value  { return b.block.b.NewSIToFP(x, to) }
func (b *Builder) UIToFP(x Value, to Type) Value  { return b.block.b.NewUIToFP(x, to) }
func (b *Builder) FPToSI(x Value, to Type) Value  { return b.block.b.NewFPToSI(x, to) }
func (b *Builder) FPToUI(x Value, to Type) Value  { return b.block.b.NewFPToUI(x, to) }
func (b *Builder) FPExt(x Value, to Type) Value   { return b.block.b.NewFPExt(x, to) }
func (b *Builder) FPTrunc(x Value, to Type) Value { return b.block.b.NewFPTrunc(x, to) }
func (b *Builder) PtrToInt(x Value) Value         { return b.block.b.NewPtrToInt(x, types.I64) }
func (b *Builder) IntToPtr(x Value) Value         { return b.block.b.NewIntToPtr(x, Ptr) }

// Bitcast reinterprets a pointer as a differently-typed pointer.
func (b *Builder) Bitcast(x Value, to Type) Value { return b.block.b.NewBitCast(x, to) }

/* -------------------------------------------------------------------------- */
/* Memory                                                                     */

// Alloca reserves size bytes of stack storage in the function's frame and
// returns its byte-pointer address. Allocas are emitted wherever the
// builder currently sits; the translator performs them all in the
// prologue block.
func (b *Builder) Alloca(size int) Value {
	a := b.block.b.NewAlloca(types.NewArray(uint64(size), types.I8))
	return b.block.b.NewBitCast(a, Ptr)
}

// AllocaScalar reserves a single typed slot (used for spilled locals).
func (b *Builder) AllocaScalar(t Type) Value {
	return b.block.b.NewAlloca(t)
}

// Load reads a value of type t from a byte pointer.
func (b *Builder) Load(t Type, ptr Value) Value {
	typed := b.coercePtr(ptr, t)
	return b.block.b.NewLoad(t, typed)
}

// Store writes v through a byte pointer.
func (b *Builder) Store(v Value, ptr Value) {
	typed := b.coercePtr(ptr, v.Type())
	b.block.b.NewStore(v, typed)
}

// coercePtr bitcasts a pointer to point at t when its element type
// differs; MIR keeps object and byref operands as untyped byte pointers.
func (b *Builder) coercePtr(ptr Value, t Type) Value {
	pt, ok := ptr.Type().(*types.PointerType)
	if ok && pt.ElemType.Equal(t) {
		return ptr
	}
	return b.block.b.NewBitCast(ptr, types.NewPointer(t))
}

// GEP advances a byte pointer by a dynamic byte offset.
func (b *Builder) GEP(ptr Value, offset Value) Value {
	p := b.coercePtr(ptr, types.I8)
	return b.block.b.NewGetElementPtr(types.I8, p, offset)
}

// GEPConst advances a byte pointer by a fixed byte offset.
func (b *Builder) GEPConst(ptr Value, offset int) Value {
	return b.GEP(ptr, ConstI64(int64(offset)))
}

/* -------------------------------------------------------------------------- */
/* Calls and control flow                                                     */

// Call emits a direct call.
func (b *Builder) Call(callee *Func, args ...Value) Value {
	return b.block.b.NewCall(callee.f, args...)
}

// CallIndirect emits a call through a function-pointer operand of the
// given signature.
func (b *Builder) CallIndirect(sig Type, fnptr Value, args ...Value) Value {
	typed := b.block.b.NewBitCast(fnptr, types.NewPointer(sig))
	return b.block.b.NewCall(typed, args...)
}

// MarkTail flags the most recent call as a tail call. v must be the
// result of Call/CallIndirect.
func MarkTail(v Value) {
	if call, ok := v.(*ir.InstCall); ok {
		call.Tail = enum.TailMustTail
	}
}

// Br emits an unconditional branch.
func (b *Builder) Br(dst *Block) {
	b.block.b.NewBr(dst.b)
}

// CondBr emits a conditional branch on an i1 operand.
func (b *Builder) CondBr(cond Value, then, els *Block) {
	b.block.b.NewCondBr(cond, then.b, els.b)
}

// SwitchCase pairs one case value with its destination.
type SwitchCase struct {
	Index int64
	Dst   *Block
}

// Switch emits a multi-way branch over an integer operand.
func (b *Builder) Switch(v Value, def *Block, cases []SwitchCase) {
	irCases := make([]*ir.Case, len(cases))
	for i, c := range cases {
		irCases[i] = ir.NewCase(constant.NewInt(v.Type().(*types.IntType), c.Index), c.Dst.b)
	}
	b.block.b.NewSwitch(v, def.b, irCases...)
}

// RetPair emits the two-slot return: the exception pointer plus the
// return value. val may be nil for void methods; the value slot is then a
// zero word.
func (b *Builder) RetPair(pairType Type, exc, val Value) {
	st := pairType.(*types.StructType)
	if val == nil {
		val = constant.NewInt(st.Fields[1].(*types.IntType), 0)
	}

	agg := b.block.b.NewInsertValue(constant.NewUndef(st), exc, 0)
	agg = b.block.b.NewInsertValue(agg, val, 1)
	b.block.b.NewRet(agg)
}

// ExtractException and ExtractValue pull the two slots out of a call
// result.
func (b *Builder) ExtractException(pair Value) Value {
	return b.block.b.NewExtractValue(pair, 0)
}

func (b *Builder) ExtractValue(pair Value) Value {
	return b.block.b.NewExtractValue(pair, 1)
}

// Unreachable terminates a block that can never be reached (after a
// throw helper that cannot return).
func (b *Builder) Unreachable() {
	b.block.b.NewUnreachable()
}

// Memcpy copies n constant bytes between two byte pointers via the
// generator's memcpy intrinsic-equivalent helper.
func (b *Builder) Memcpy(dst, src Value, n int) {
	helper := b.fn.mod.DeclareProto("rt_memcpy", nil, Ptr, Ptr, I64)
	b.Call(helper, b.coercePtr(dst, types.I8), b.coercePtr(src, types.I8), ConstI64(int64(n)))
}

// Phi merges values arriving from predecessor blocks.
type PhiIncoming struct {
	V    Value
	From *Block
}

func (b *Builder) Phi(incs ...PhiIncoming) Value {
	irIncs := make([]*ir.Incoming, len(incs))
	for i, inc := range incs {
		irIncs[i] = ir.NewIncoming(inc.V, inc.From.b)
	}
	return b.block.b.NewPhi(irIncs...)
}
