// Package cil decodes the stack-machine bytecode the JIT consumes: a
// two-table opcode set (a 256-entry primary table plus a 256-entry table
// for the 0xFE-prefixed extended opcodes), inline-operand decoding, and
// the control-flow classification the translator's region checks rely on.
package cil

// Op is a decoded opcode identity: the high byte is the prefix (0x00 for
// unprefixed opcodes, 0xFE for extended ones) and the low byte is the
// opcode byte itself.
type Op uint16

// OperandKind describes the inline operand bytes following an opcode.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandInt8
	OperandUInt8
	OperandInt32
	OperandInt64
	OperandFloat32
	OperandFloat64
	OperandBranch8  // short relative branch target
	OperandBranch32 // long relative branch target
	OperandVar8     // short var/arg slot index
	OperandVar16    // long var/arg slot index
	OperandToken    // method/field/type/string/signature token
	OperandSwitch   // count-prefixed array of int32 offsets
)

// FlowKind classifies an opcode's effect on control flow.
type FlowKind int

const (
	FlowNext FlowKind = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
	FlowMeta // prefixes and other non-executing opcodes
)

// Opcode is one row of the opcode tables.
type Opcode struct {
	Name    string
	Operand OperandKind
	Flow    FlowKind
}

// The unprefixed opcodes the JIT supports, named by their CLI values.
const (
	OpNop       Op = 0x00
	OpBreak     Op = 0x01
	OpLdarg0    Op = 0x02
	OpLdarg1    Op = 0x03
	OpLdarg2    Op = 0x04
	OpLdarg3    Op = 0x05
	OpLdloc0    Op = 0x06
	OpLdloc1    Op = 0x07
	OpLdloc2    Op = 0x08
	OpLdloc3    Op = 0x09
	OpStloc0    Op = 0x0A
	OpStloc1    Op = 0x0B
	OpStloc2    Op = 0x0C
	OpStloc3    Op = 0x0D
	OpLdargS    Op = 0x0E
	OpLdargaS   Op = 0x0F
	OpStargS    Op = 0x10
	OpLdlocS    Op = 0x11
	OpLdlocaS   Op = 0x12
	OpStlocS    Op = 0x13
	OpLdnull    Op = 0x14
	OpLdcI4M1   Op = 0x15
	OpLdcI40    Op = 0x16
	OpLdcI41    Op = 0x17
	OpLdcI42    Op = 0x18
	OpLdcI43    Op = 0x19
	OpLdcI44    Op = 0x1A
	OpLdcI45    Op = 0x1B
	OpLdcI46    Op = 0x1C
	OpLdcI47    Op = 0x1D
	OpLdcI48    Op = 0x1E
	OpLdcI4S    Op = 0x1F
	OpLdcI4     Op = 0x20
	OpLdcI8     Op = 0x21
	OpLdcR4     Op = 0x22
	OpLdcR8     Op = 0x23
	OpDup       Op = 0x25
	OpPop       Op = 0x26
	OpJmp       Op = 0x27
	OpCall      Op = 0x28
	OpCalli     Op = 0x29
	OpRet       Op = 0x2A
	OpBrS       Op = 0x2B
	OpBrfalseS  Op = 0x2C
	OpBrtrueS   Op = 0x2D
	OpBeqS      Op = 0x2E
	OpBgeS      Op = 0x2F
	OpBgtS      Op = 0x30
	OpBleS      Op = 0x31
	OpBltS      Op = 0x32
	OpBneUnS    Op = 0x33
	OpBgeUnS    Op = 0x34
	OpBgtUnS    Op = 0x35
	OpBleUnS    Op = 0x36
	OpBltUnS    Op = 0x37
	OpBr        Op = 0x38
	OpBrfalse   Op = 0x39
	OpBrtrue    Op = 0x3A
	OpBeq       Op = 0x3B
	OpBge       Op = 0x3C
	OpBgt       Op = 0x3D
	OpBle       Op = 0x3E
	OpBlt       Op = 0x3F
	OpBneUn     Op = 0x40
	OpBgeUn     Op = 0x41
	OpBgtUn     Op = 0x42
	OpBleUn     Op = 0x43
	OpBltUn     Op = 0x44
	OpSwitch    Op = 0x45
	OpLdindI1   Op = 0x46
	OpLdindU1   Op = 0x47
	OpLdindI2   Op = 0x48
	OpLdindU2   Op = 0x49
	OpLdindI4   Op = 0x4A
	OpLdindU4   Op = 0x4B
	OpLdindI8   Op = 0x4C
	OpLdindI    Op = 0x4D
	OpLdindR4   Op = 0x4E
	OpLdindR8   Op = 0x4F
	OpLdindRef  Op = 0x50
	OpStindRef  Op = 0x51
	OpStindI1   Op = 0x52
	OpStindI2   Op = 0x53
	OpStindI4   Op = 0x54
	OpStindI8   Op = 0x55
	OpStindR4   Op = 0x56
	OpStindR8   Op = 0x57
	OpAdd       Op = 0x58
	OpSub       Op = 0x59
	OpMul       Op = 0x5A
	OpDiv       Op = 0x5B
	OpDivUn     Op = 0x5C
	OpRem       Op = 0x5D
	OpRemUn     Op = 0x5E
	OpAnd       Op = 0x5F
	OpOr        Op = 0x60
	OpXor       Op = 0x61
	OpShl       Op = 0x62
	OpShr       Op = 0x63
	OpShrUn     Op = 0x64
	OpNeg       Op = 0x65
	OpNot       Op = 0x66
	OpConvI1    Op = 0x67
	OpConvI2    Op = 0x68
	OpConvI4    Op = 0x69
	OpConvI8    Op = 0x6A
	OpConvR4    Op = 0x6B
	OpConvR8    Op = 0x6C
	OpConvU4    Op = 0x6D
	OpConvU8    Op = 0x6E
	OpCallvirt  Op = 0x6F
	OpCpobj     Op = 0x70
	OpLdobj     Op = 0x71
	OpLdstr     Op = 0x72
	OpNewobj    Op = 0x73
	OpCastclass Op = 0x74
	OpIsinst    Op = 0x75
	OpConvRUn   Op = 0x76
	OpUnbox     Op = 0x79
	OpThrow     Op = 0x7A
	OpLdfld     Op = 0x7B
	OpLdflda    Op = 0x7C
	OpStfld     Op = 0x7D
	OpLdsfld    Op = 0x7E
	OpLdsflda   Op = 0x7F
	OpStsfld    Op = 0x80
	OpStobj     Op = 0x81
	OpBox       Op = 0x8C
	OpNewarr    Op = 0x8D
	OpLdlen     Op = 0x8E
	OpLdelema   Op = 0x8F
	OpLdelemI1  Op = 0x90
	OpLdelemU1  Op = 0x91
	OpLdelemI2  Op = 0x92
	OpLdelemU2  Op = 0x93
	OpLdelemI4  Op = 0x94
	OpLdelemU4  Op = 0x95
	OpLdelemI8  Op = 0x96
	OpLdelemI   Op = 0x97
	OpLdelemR4  Op = 0x98
	OpLdelemR8  Op = 0x99
	OpLdelemRef Op = 0x9A
	OpStelemI   Op = 0x9B
	OpStelemI1  Op = 0x9C
	OpStelemI2  Op = 0x9D
	OpStelemI4  Op = 0x9E
	OpStelemI8  Op = 0x9F
	OpStelemR4  Op = 0xA0
	OpStelemR8  Op = 0xA1
	OpStelemRef Op = 0xA2
	OpLdelem    Op = 0xA3
	OpStelem    Op = 0xA4
	OpUnboxAny  Op = 0xA5
	OpConvOvfI1 Op = 0xB3
	OpConvOvfU1 Op = 0xB4
	OpConvOvfI2 Op = 0xB5
	OpConvOvfU2 Op = 0xB6
	OpConvOvfI4 Op = 0xB7
	OpConvOvfU4 Op = 0xB8
	OpConvOvfI8 Op = 0xB9
	OpConvOvfU8 Op = 0xBA
	OpLdtoken   Op = 0xD0
	OpConvU2    Op = 0xD1
	OpConvU1    Op = 0xD2
	OpConvI     Op = 0xD3
	OpConvOvfI  Op = 0xD4
	OpConvOvfU  Op = 0xD5
	OpAddOvf    Op = 0xD6
	OpAddOvfUn  Op = 0xD7
	OpMulOvf    Op = 0xD8
	OpMulOvfUn  Op = 0xD9
	OpSubOvf    Op = 0xDA
	OpSubOvfUn  Op = 0xDB
	OpEndfinally Op = 0xDC
	OpLeave     Op = 0xDD
	OpLeaveS    Op = 0xDE
	OpStindI    Op = 0xDF
	OpConvU     Op = 0xE0
)

// The 0xFE-prefixed extended opcodes, keyed as 0xFE00 | second byte.
const (
	OpArglist    Op = 0xFE00
	OpCeq        Op = 0xFE01
	OpCgt        Op = 0xFE02
	OpCgtUn     Op = 0xFE03
	OpClt        Op = 0xFE04
	OpCltUn     Op = 0xFE05
	OpLdftn      Op = 0xFE06
	OpLdvirtftn  Op = 0xFE07
	OpLdarg      Op = 0xFE09
	OpLdarga     Op = 0xFE0A
	OpStarg      Op = 0xFE0B
	OpLdloc      Op = 0xFE0C
	OpLdloca     Op = 0xFE0D
	OpStloc      Op = 0xFE0E
	OpLocalloc   Op = 0xFE0F
	OpEndfilter  Op = 0xFE11
	OpUnaligned  Op = 0xFE12
	OpVolatile   Op = 0xFE13
	OpTail       Op = 0xFE14
	OpInitobj    Op = 0xFE15
	OpConstrained Op = 0xFE16
	OpCpblk      Op = 0xFE17
	OpInitblk    Op = 0xFE18
	OpRethrow    Op = 0xFE1A
	OpSizeof     Op = 0xFE1C
	OpRefanytype Op = 0xFE1D
	OpReadonly   Op = 0xFE1E
)

// primary is the 256-entry table for unprefixed opcodes; extended is the
// 256-entry table for the 0xFE-prefixed ones. A zero-valued entry (empty
// name) marks an opcode the runtime does not support.
var primary [256]Opcode
var extended [256]Opcode

func def(op Op, name string, operand OperandKind, flow FlowKind) {
	row := Opcode{Name: name, Operand: operand, Flow: flow}
	if op>>8 == 0xFE {
		extended[byte(op)] = row
	} else {
		primary[byte(op)] = row
	}
}

func init() {
	def(OpNop, "nop", OperandNone, FlowNext)
	def(OpBreak, "break", OperandNone, FlowNext)

	def(OpLdarg0, "ldarg.0", OperandNone, FlowNext)
	def(OpLdarg1, "ldarg.1", OperandNone, FlowNext)
	def(OpLdarg2, "ldarg.2", OperandNone, FlowNext)
	def(OpLdarg3, "ldarg.3", OperandNone, FlowNext)
	def(OpLdloc0, "ldloc.0", OperandNone, FlowNext)
	def(OpLdloc1, "ldloc.1", OperandNone, FlowNext)
	def(OpLdloc2, "ldloc.2", OperandNone, FlowNext)
	def(OpLdloc3, "ldloc.3", OperandNone, FlowNext)
	def(OpStloc0, "stloc.0", OperandNone, FlowNext)
	def(OpStloc1, "stloc.1", OperandNone, FlowNext)
	def(OpStloc2, "stloc.2", OperandNone, FlowNext)
	def(OpStloc3, "stloc.3", OperandNone, FlowNext)
	def(OpLdargS, "ldarg.s", OperandVar8, FlowNext)
	def(OpLdargaS, "ldarga.s", OperandVar8, FlowNext)
	def(OpStargS, "starg.s", OperandVar8, FlowNext)
	def(OpLdlocS, "ldloc.s", OperandVar8, FlowNext)
	def(OpLdlocaS, "ldloca.s", OperandVar8, FlowNext)
	def(OpStlocS, "stloc.s", OperandVar8, FlowNext)

	def(OpLdnull, "ldnull", OperandNone, FlowNext)
	def(OpLdcI4M1, "ldc.i4.m1", OperandNone, FlowNext)
	def(OpLdcI40, "ldc.i4.0", OperandNone, FlowNext)
	def(OpLdcI41, "ldc.i4.1", OperandNone, FlowNext)
	def(OpLdcI42, "ldc.i4.2", OperandNone, FlowNext)
	def(OpLdcI43, "ldc.i4.3", OperandNone, FlowNext)
	def(OpLdcI44, "ldc.i4.4", OperandNone, FlowNext)
	def(OpLdcI45, "ldc.i4.5", OperandNone, FlowNext)
	def(OpLdcI46, "ldc.i4.6", OperandNone, FlowNext)
	def(OpLdcI47, "ldc.i4.7", OperandNone, FlowNext)
	def(OpLdcI48, "ldc.i4.8", OperandNone, FlowNext)
	def(OpLdcI4S, "ldc.i4.s", OperandInt8, FlowNext)
	def(OpLdcI4, "ldc.i4", OperandInt32, FlowNext)
	def(OpLdcI8, "ldc.i8", OperandInt64, FlowNext)
	def(OpLdcR4, "ldc.r4", OperandFloat32, FlowNext)
	def(OpLdcR8, "ldc.r8", OperandFloat64, FlowNext)

	def(OpDup, "dup", OperandNone, FlowNext)
	def(OpPop, "pop", OperandNone, FlowNext)
	def(OpJmp, "jmp", OperandToken, FlowCall)
	def(OpCall, "call", OperandToken, FlowCall)
	def(OpCalli, "calli", OperandToken, FlowCall)
	def(OpRet, "ret", OperandNone, FlowReturn)

	def(OpBrS, "br.s", OperandBranch8, FlowBranch)
	def(OpBrfalseS, "brfalse.s", OperandBranch8, FlowCondBranch)
	def(OpBrtrueS, "brtrue.s", OperandBranch8, FlowCondBranch)
	def(OpBeqS, "beq.s", OperandBranch8, FlowCondBranch)
	def(OpBgeS, "bge.s", OperandBranch8, FlowCondBranch)
	def(OpBgtS, "bgt.s", OperandBranch8, FlowCondBranch)
	def(OpBleS, "ble.s", OperandBranch8, FlowCondBranch)
	def(OpBltS, "blt.s", OperandBranch8, FlowCondBranch)
	def(OpBneUnS, "bne.un.s", OperandBranch8, FlowCondBranch)
	def(OpBgeUnS, "bge.un.s", OperandBranch8, FlowCondBranch)
	def(OpBgtUnS, "bgt.un.s", OperandBranch8, FlowCondBranch)
	def(OpBleUnS, "ble.un.s", OperandBranch8, FlowCondBranch)
	def(OpBltUnS, "blt.un.s", OperandBranch8, FlowCondBranch)
	def(OpBr, "br", OperandBranch32, FlowBranch)
	def(OpBrfalse, "brfalse", OperandBranch32, FlowCondBranch)
	def(OpBrtrue, "brtrue", OperandBranch32, FlowCondBranch)
	def(OpBeq, "beq", OperandBranch32, FlowCondBranch)
	def(OpBge, "bge", OperandBranch32, FlowCondBranch)
	def(OpBgt, "bgt", OperandBranch32, FlowCondBranch)
	def(OpBle, "ble", OperandBranch32, FlowCondBranch)
	def(OpBlt, "blt", OperandBranch32, FlowCondBranch)
	def(OpBneUn, "bne.un", OperandBranch32, FlowCondBranch)
	def(OpBgeUn, "bge.un", OperandBranch32, FlowCondBranch)
	def(OpBgtUn, "bgt.un", OperandBranch32, FlowCondBranch)
	def(OpBleUn, "ble.un", OperandBranch32, FlowCondBranch)
	def(OpBltUn, "blt.un", OperandBranch32, FlowCondBranch)
	def(OpSwitch, "switch", OperandSwitch, FlowCondBranch)

	def(OpLdindI1, "ldind.i1", OperandNone, FlowNext)
	def(OpLdindU1, "ldind.u1", OperandNone, FlowNext)
	def(OpLdindI2, "ldind.i2", OperandNone, FlowNext)
	def(OpLdindU2, "ldind.u2", OperandNone, FlowNext)
	def(OpLdindI4, "ldind.i4", OperandNone, FlowNext)
	def(OpLdindU4, "ldind.u4", OperandNone, FlowNext)
	def(OpLdindI8, "ldind.i8", OperandNone, FlowNext)
	def(OpLdindI, "ldind.i", OperandNone, FlowNext)
	def(OpLdindR4, "ldind.r4", OperandNone, FlowNext)
	def(OpLdindR8, "ldind.r8", OperandNone, FlowNext)
	def(OpLdindRef, "ldind.ref", OperandNone, FlowNext)
	def(OpStindRef, "stind.ref", OperandNone, FlowNext)
	def(OpStindI1, "stind.i1", OperandNone, FlowNext)
	def(OpStindI2, "stind.i2", OperandNone, FlowNext)
	def(OpStindI4, "stind.i4", OperandNone, FlowNext)
	def(OpStindI8, "stind.i8", OperandNone, FlowNext)
	def(OpStindR4, "stind.r4", OperandNone, FlowNext)
	def(OpStindR8, "stind.r8", OperandNone, FlowNext)
	def(OpStindI, "stind.i", OperandNone, FlowNext)

	def(OpAdd, "add", OperandNone, FlowNext)
	def(OpSub, "sub", OperandNone, FlowNext)
	def(OpMul, "mul", OperandNone, FlowNext)
	def(OpDiv, "div", OperandNone, FlowNext)
	def(OpDivUn, "div.un", OperandNone, FlowNext)
	def(OpRem, "rem", OperandNone, FlowNext)
	def(OpRemUn, "rem.un", OperandNone, FlowNext)
	def(OpAnd, "and", OperandNone, FlowNext)
	def(OpOr, "or", OperandNone, FlowNext)
	def(OpXor, "xor", OperandNone, FlowNext)
	def(OpShl, "shl", OperandNone, FlowNext)
	def(OpShr, "shr", OperandNone, FlowNext)
	def(OpShrUn, "shr.un", OperandNone, FlowNext)
	def(OpNeg, "neg", OperandNone, FlowNext)
	def(OpNot, "not", OperandNone, FlowNext)

	def(OpConvI1, "conv.i1", OperandNone, FlowNext)
	def(OpConvI2, "conv.i2", OperandNone, FlowNext)
	def(OpConvI4, "conv.i4", OperandNone, FlowNext)
	def(OpConvI8, "conv.i8", OperandNone, FlowNext)
	def(OpConvR4, "conv.r4", OperandNone, FlowNext)
	def(OpConvR8, "conv.r8", OperandNone, FlowNext)
	def(OpConvU4, "conv.u4", OperandNone, FlowNext)
	def(OpConvU8, "conv.u8", OperandNone, FlowNext)
	def(OpConvRUn, "conv.r.un", OperandNone, FlowNext)
	def(OpConvU2, "conv.u2", OperandNone, FlowNext)
	def(OpConvU1, "conv.u1", OperandNone, FlowNext)
	def(OpConvI, "conv.i", OperandNone, FlowNext)
	def(OpConvU, "conv.u", OperandNone, FlowNext)
	def(OpConvOvfI1, "conv.ovf.i1", OperandNone, FlowNext)
	def(OpConvOvfU1, "conv.ovf.u1", OperandNone, FlowNext)
	def(OpConvOvfI2, "conv.ovf.i2", OperandNone, FlowNext)
	def(OpConvOvfU2, "conv.ovf.u2", OperandNone, FlowNext)
	def(OpConvOvfI4, "conv.ovf.i4", OperandNone, FlowNext)
	def(OpConvOvfU4, "conv.ovf.u4", OperandNone, FlowNext)
	def(OpConvOvfI8, "conv.ovf.i8", OperandNone, FlowNext)
	def(OpConvOvfU8, "conv.ovf.u8", OperandNone, FlowNext)
	def(OpConvOvfI, "conv.ovf.i", OperandNone, FlowNext)
	def(OpConvOvfU, "conv.ovf.u", OperandNone, FlowNext)

	def(OpCallvirt, "callvirt", OperandToken, FlowCall)
	def(OpCpobj, "cpobj", OperandToken, FlowNext)
	def(OpLdobj, "ldobj", OperandToken, FlowNext)
	def(OpLdstr, "ldstr", OperandToken, FlowNext)
	def(OpNewobj, "newobj", OperandToken, FlowCall)
	def(OpCastclass, "castclass", OperandToken, FlowCall)
	def(OpIsinst, "isinst", OperandToken, FlowCall)
	def(OpUnbox, "unbox", OperandToken, FlowCall)
	def(OpThrow, "throw", OperandNone, FlowThrow)
	def(OpLdfld, "ldfld", OperandToken, FlowNext)
	def(OpLdflda, "ldflda", OperandToken, FlowNext)
	def(OpStfld, "stfld", OperandToken, FlowNext)
	def(OpLdsfld, "ldsfld", OperandToken, FlowNext)
	def(OpLdsflda, "ldsflda", OperandToken, FlowNext)
	def(OpStsfld, "stsfld", OperandToken, FlowNext)
	def(OpStobj, "stobj", OperandToken, FlowNext)
	def(OpBox, "box", OperandToken, FlowCall)
	def(OpNewarr, "newarr", OperandToken, FlowCall)
	def(OpLdlen, "ldlen", OperandNone, FlowNext)
	def(OpLdelema, "ldelema", OperandToken, FlowNext)
	def(OpLdelemI1, "ldelem.i1", OperandNone, FlowNext)
	def(OpLdelemU1, "ldelem.u1", OperandNone, FlowNext)
	def(OpLdelemI2, "ldelem.i2", OperandNone, FlowNext)
	def(OpLdelemU2, "ldelem.u2", OperandNone, FlowNext)
	def(OpLdelemI4, "ldelem.i4", OperandNone, FlowNext)
	def(OpLdelemU4, "ldelem.u4", OperandNone, FlowNext)
	def(OpLdelemI8, "ldelem.i8", OperandNone, FlowNext)
	def(OpLdelemI, "ldelem.i", OperandNone, FlowNext)
	def(OpLdelemR4, "ldelem.r4", OperandNone, FlowNext)
	def(OpLdelemR8, "ldelem.r8", OperandNone, FlowNext)
	def(OpLdelemRef, "ldelem.ref", OperandNone, FlowNext)
	def(OpStelemI, "stelem.i", OperandNone, FlowNext)
	def(OpStelemI1, "stelem.i1", OperandNone, FlowNext)
	def(OpStelemI2, "stelem.i2", OperandNone, FlowNext)
	def(OpStelemI4, "stelem.i4", OperandNone, FlowNext)
	def(OpStelemI8, "stelem.i8", OperandNone, FlowNext)
	def(OpStelemR4, "stelem.r4", OperandNone, FlowNext)
	def(OpStelemR8, "stelem.r8", OperandNone, FlowNext)
	def(OpStelemRef, "stelem.ref", OperandNone, FlowNext)
	def(OpLdelem, "ldelem", OperandToken, FlowNext)
	def(OpStelem, "stelem", OperandToken, FlowNext)
	def(OpUnboxAny, "unbox.any", OperandToken, FlowCall)
	def(OpLdtoken, "ldtoken", OperandToken, FlowNext)

	def(OpAddOvf, "add.ovf", OperandNone, FlowNext)
	def(OpAddOvfUn, "add.ovf.un", OperandNone, FlowNext)
	def(OpMulOvf, "mul.ovf", OperandNone, FlowNext)
	def(OpMulOvfUn, "mul.ovf.un", OperandNone, FlowNext)
	def(OpSubOvf, "sub.ovf", OperandNone, FlowNext)
	def(OpSubOvfUn, "sub.ovf.un", OperandNone, FlowNext)

	def(OpEndfinally, "endfinally", OperandNone, FlowBranch)
	def(OpLeave, "leave", OperandBranch32, FlowBranch)
	def(OpLeaveS, "leave.s", OperandBranch8, FlowBranch)

	def(OpArglist, "arglist", OperandNone, FlowNext)
	def(OpCeq, "ceq", OperandNone, FlowNext)
	def(OpCgt, "cgt", OperandNone, FlowNext)
	def(OpCgtUn, "cgt.un", OperandNone, FlowNext)
	def(OpClt, "clt", OperandNone, FlowNext)
	def(OpCltUn, "clt.un", OperandNone, FlowNext)
	def(OpLdftn, "ldftn", OperandToken, FlowNext)
	def(OpLdvirtftn, "ldvirtftn", OperandToken, FlowNext)
	def(OpLdarg, "ldarg", OperandVar16, FlowNext)
	def(OpLdarga, "ldarga", OperandVar16, FlowNext)
	def(OpStarg, "starg", OperandVar16, FlowNext)
	def(OpLdloc, "ldloc", OperandVar16, FlowNext)
	def(OpLdloca, "ldloca", OperandVar16, FlowNext)
	def(OpStloc, "stloc", OperandVar16, FlowNext)
	def(OpLocalloc, "localloc", OperandNone, FlowNext)
	def(OpEndfilter, "endfilter", OperandNone, FlowBranch)
	def(OpUnaligned, "unaligned.", OperandUInt8, FlowMeta)
	def(OpVolatile, "volatile.", OperandNone, FlowMeta)
	def(OpTail, "tail.", OperandNone, FlowMeta)
	def(OpInitobj, "initobj", OperandToken, FlowNext)
	def(OpConstrained, "constrained.", OperandToken, FlowMeta)
	def(OpCpblk, "cpblk", OperandNone, FlowNext)
	def(OpInitblk, "initblk", OperandNone, FlowNext)
	def(OpRethrow, "rethrow", OperandNone, FlowThrow)
	def(OpSizeof, "sizeof", OperandToken, FlowNext)
	def(OpRefanytype, "refanytype", OperandNone, FlowNext)
	def(OpReadonly, "readonly.", OperandNone, FlowMeta)
}

// Lookup returns the opcode table row for op, or false if the opcode is
// not one the runtime supports.
func Lookup(op Op) (Opcode, bool) {
	var row Opcode
	if op>>8 == 0xFE {
		row = extended[byte(op)]
	} else if op>>8 == 0 {
		row = primary[byte(op)]
	}

	return row, row.Name != ""
}
