package cil

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"corejit/metadata"
)

func decodeAll(t *testing.T, body []byte) []*Instruction {
	t.Helper()

	d := NewDecoder("test", body)
	var out []*Instruction
	for d.More() {
		in, diag := d.Decode()
		if diag != nil {
			t.Fatalf("decode failed at offset %d: %s", d.Pos(), diag)
		}
		out = append(out, in)
	}
	return out
}

func TestDecodeSimpleBody(t *testing.T) {
	// ldc.i4.2; ldc.i4.3; add; ret
	ins := decodeAll(t, []byte{0x18, 0x19, 0x58, 0x2A})

	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.Info.Name
	}

	if diff := cmp.Diff([]string{"ldc.i4.2", "ldc.i4.3", "add", "ret"}, names); diff != "" {
		t.Errorf("mnemonics mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePrefixFolding(t *testing.T) {
	// ceq is 0xFE 0x01.
	ins := decodeAll(t, []byte{0x16, 0x16, 0xFE, 0x01, 0x2A})

	if ins[2].Op != OpCeq || ins[2].Info.Name != "ceq" {
		t.Errorf("0xFE01 decoded as %s (op 0x%04x), want ceq", ins[2].Info.Name, uint16(ins[2].Op))
	}

	if ins[2].Size != 2 {
		t.Errorf("ceq size = %d, want 2", ins[2].Size)
	}
}

func TestDecodeBranchTargets(t *testing.T) {
	// 0: br.s +2 (target 4); 2: ldc.i4.0; 3: ret; 4: ldc.i4.1; 5: ret
	ins := decodeAll(t, []byte{0x2B, 0x02, 0x16, 0x2A, 0x17, 0x2A})

	if got := ins[0].Targets[0]; got != 4 {
		t.Errorf("br.s target = %d, want 4", got)
	}

	// Backward: 0: ldc.i4.0; 1: br.s -3 (target 0, relative to next=3)...
	ins = decodeAll(t, []byte{0x16, 0x2B, 0xFD, 0x2A})
	if got := ins[1].Targets[0]; got != 0 {
		t.Errorf("backward br.s target = %d, want 0", got)
	}
}

func TestDecodeSwitch(t *testing.T) {
	// switch with 2 targets, offsets relative to the byte after the operand
	// array (offset 13): +1 => 14, +3 => 16.
	body := []byte{
		0x45, // switch
		0x02, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
		0x2A,       // 13: ret
		0x16, 0x2A, // 14: ldc.i4.0; ret
		0x17, 0x2A, // 16: ldc.i4.1; ret
	}

	d := NewDecoder("test", body)
	in, diag := d.Decode()
	if diag != nil {
		t.Fatalf("decode switch: %s", diag)
	}

	if diff := cmp.Diff([]int{14, 16}, in.Targets); diff != "" {
		t.Errorf("switch targets mismatch (-want +got):\n%s", diff)
	}

	if in.Size != 13 {
		t.Errorf("switch size = %d, want 13", in.Size)
	}
}

func TestDecodeTokenOperand(t *testing.T) {
	// newarr with a TypeDef token 0x02000003.
	ins := decodeAll(t, []byte{0x8D, 0x03, 0x00, 0x00, 0x02, 0x2A})

	tok := ins[0].Token
	if tok.Table() != metadata.TableTypeDef || tok.Row() != 3 {
		t.Errorf("token = %08x, want TypeDef row 3", uint32(tok))
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	d := NewDecoder("test", []byte{0x20, 0x01, 0x02}) // ldc.i4 missing bytes
	if _, diag := d.Decode(); diag == nil {
		t.Fatal("expected bad-format for truncated operand")
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	d := NewDecoder("test", []byte{0xF7})
	if _, diag := d.Decode(); diag == nil {
		t.Fatal("expected bad-format for unsupported opcode")
	}
}

func TestBranchOutsideBodyRejected(t *testing.T) {
	d := NewDecoder("test", []byte{0x2B, 0x7F}) // br.s way past the end
	if _, diag := d.Decode(); diag == nil {
		t.Fatal("expected bad-format for out-of-body branch target")
	}
}
