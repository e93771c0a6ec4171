package wasm

import "testing"

func TestOpcodeTableShapes(t *testing.T) {
	for op := 0; op < 256; op++ {
		info := opTable[op]
		if info.name == "" {
			if info.shape != shapeNone {
				t.Errorf("opcode 0x%02x has a shape but no name", op)
			}
			continue
		}
		if byte(op) == OpElse || byte(op) == OpEnd {
			t.Errorf("control marker 0x%02x must not be in opTable", op)
		}
	}
	if !IsKnownOpcode(OpI32Add) || IsKnownOpcode(OpEnd) || IsKnownOpcode(0xFF) {
		t.Error("IsKnownOpcode mismatch")
	}
	if OpcodeName(OpElse) != "else" || OpcodeName(OpEnd) != "end" {
		t.Error("control marker names")
	}
}

func TestMiscTable(t *testing.T) {
	for sub := range miscTable {
		if miscTable[sub].name == "" {
			t.Errorf("misc sub-opcode %d has no name", sub)
		}
	}
	if _, ok := lookupMisc(uint32(len(miscTable))); ok {
		t.Error("lookupMisc past the table")
	}
	if info, _ := lookupMisc(MiscMemoryInit); info.operands != 1 || info.reserved != 1 {
		t.Errorf("memory.init = %+v", info)
	}
}

func TestImmMatches(t *testing.T) {
	tests := []struct {
		name string
		in   Instruction
		want bool
	}{
		{"plain", Op(OpI32Add), true},
		{"plain with imm", Instruction{Opcode: OpI32Add, Imm: I32Imm{}}, false},
		{"memory.size", Op(OpMemorySize), true},
		{"const", I32Const(1), true},
		{"const wrong type", Instruction{Opcode: OpI32Const, Imm: I64Imm{}}, false},
		{"block", Instruction{Opcode: OpBlock, Imm: BlockImm{Type: BlockTypeEmpty}}, true},
		{"if as block", Instruction{Opcode: OpIf, Imm: BlockImm{}}, false},
		{"misc", Misc(MiscTableCopy, 0, 0), true},
		{"misc missing operand", Misc(MiscTableCopy, 0), false},
		{"misc unknown", Misc(42), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := immMatches(tt.in); got != tt.want {
				t.Errorf("immMatches = %v, want %v", got, tt.want)
			}
		})
	}
}
