package cil

import (
	"encoding/binary"
	"math"

	"corejit/metadata"
	"corejit/report"
)

// Instruction is one decoded CIL instruction.
type Instruction struct {
	// Offset is the byte offset of the opcode within the method body.
	Offset int

	// Size is the total encoded size including operand bytes, so
	// Offset+Size is the offset of the next instruction.
	Size int

	Op   Op
	Info Opcode

	// Operand values; which is meaningful depends on Info.Operand.
	Int     int64
	Float   float64
	Token   metadata.Token
	Targets []int // absolute branch targets (one entry except for switch)
}

// Next returns the offset of the instruction following this one.
func (in *Instruction) Next() int {
	return in.Offset + in.Size
}

// Decoder walks a method body's CIL byte stream one instruction at a time.
type Decoder struct {
	body     []byte
	pos      int
	assembly string
}

// NewDecoder creates a decoder over a method body's CIL bytes. The
// assembly name is carried for diagnostics only.
func NewDecoder(assembly string, body []byte) *Decoder {
	return &Decoder{body: body, assembly: assembly}
}

// More reports whether undecoded bytes remain.
func (d *Decoder) More() bool {
	return d.pos < len(d.body)
}

// Pos returns the offset the next Decode call will start at.
func (d *Decoder) Pos() int {
	return d.pos
}

// Seek repositions the decoder at an absolute body offset.
func (d *Decoder) Seek(offset int) {
	d.pos = offset
}

func (d *Decoder) bad(format string, args ...interface{}) *report.Diagnostic {
	return report.BadFormatf(d.assembly, format, args...)
}

func (d *Decoder) take(n int) ([]byte, *report.Diagnostic) {
	if d.pos+n > len(d.body) {
		return nil, d.bad("method body truncated at offset %d (need %d bytes)", d.pos, n)
	}

	b := d.body[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Decode decodes the instruction at the current position. A prefix byte
// (0xFE) folds with the following byte into a single extended opcode.
func (d *Decoder) Decode() (*Instruction, *report.Diagnostic) {
	start := d.pos

	b, err := d.take(1)
	if err != nil {
		return nil, err
	}

	op := Op(b[0])
	if b[0] == 0xFE {
		b2, err := d.take(1)
		if err != nil {
			return nil, err
		}
		op = 0xFE00 | Op(b2[0])
	}

	info, ok := Lookup(op)
	if !ok {
		return nil, d.bad("unsupported opcode 0x%04x at offset %d", uint16(op), start)
	}

	in := &Instruction{Offset: start, Op: op, Info: info}

	switch info.Operand {
	case OperandNone:

	case OperandInt8:
		ob, err := d.take(1)
		if err != nil {
			return nil, err
		}
		in.Int = int64(int8(ob[0]))

	case OperandUInt8:
		ob, err := d.take(1)
		if err != nil {
			return nil, err
		}
		in.Int = int64(ob[0])

	case OperandVar8:
		ob, err := d.take(1)
		if err != nil {
			return nil, err
		}
		in.Int = int64(ob[0])

	case OperandVar16:
		ob, err := d.take(2)
		if err != nil {
			return nil, err
		}
		in.Int = int64(binary.LittleEndian.Uint16(ob))

	case OperandInt32:
		ob, err := d.take(4)
		if err != nil {
			return nil, err
		}
		in.Int = int64(int32(binary.LittleEndian.Uint32(ob)))

	case OperandInt64:
		ob, err := d.take(8)
		if err != nil {
			return nil, err
		}
		in.Int = int64(binary.LittleEndian.Uint64(ob))

	case OperandFloat32:
		ob, err := d.take(4)
		if err != nil {
			return nil, err
		}
		in.Float = float64(math.Float32frombits(binary.LittleEndian.Uint32(ob)))

	case OperandFloat64:
		ob, err := d.take(8)
		if err != nil {
			return nil, err
		}
		in.Float = math.Float64frombits(binary.LittleEndian.Uint64(ob))

	case OperandBranch8:
		ob, err := d.take(1)
		if err != nil {
			return nil, err
		}
		// Branch targets are relative to the next instruction.
		in.Targets = []int{d.pos + int(int8(ob[0]))}

	case OperandBranch32:
		ob, err := d.take(4)
		if err != nil {
			return nil, err
		}
		in.Targets = []int{d.pos + int(int32(binary.LittleEndian.Uint32(ob)))}

	case OperandToken:
		ob, err := d.take(4)
		if err != nil {
			return nil, err
		}
		in.Token = metadata.Token(binary.LittleEndian.Uint32(ob))

	case OperandSwitch:
		cb, err := d.take(4)
		if err != nil {
			return nil, err
		}
		count := int(binary.LittleEndian.Uint32(cb))
		if count < 0 || d.pos+count*4 > len(d.body) {
			return nil, d.bad("switch at offset %d declares %d targets past end of body", start, count)
		}

		raw, _ := d.take(count * 4)
		base := d.pos // relative to the instruction after all operands
		in.Targets = make([]int, count)
		for i := 0; i < count; i++ {
			in.Targets[i] = base + int(int32(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}

	in.Size = d.pos - start

	for _, tgt := range in.Targets {
		if tgt < 0 || tgt > len(d.body) {
			return nil, d.bad("%s at offset %d branches outside the method body (target %d)", info.Name, start, tgt)
		}
	}

	return in, nil
}
