package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-codec/wasm"
)

func ptrTo[T any](v T) *T { return &v }

// scenarioModule has one (i32)->funcref type, one function used as the start
// function, and a body computing local.get 0 * 2 with one extra i32 local.
func scenarioModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{{
			Params:  []wasm.ValType{wasm.ValI32},
			Results: []wasm.ValType{wasm.ValFuncRef},
		}},
		Funcs: []uint32{0},
		Start: ptrTo(uint32(0)),
		Code: []wasm.FuncBody{{
			Locals: []wasm.LocalEntry{{Count: 1, Type: wasm.ValI32}},
			Body: []wasm.Instruction{
				wasm.LocalGet(0),
				wasm.I32Const(2),
				wasm.Op(wasm.OpI32Mul),
			},
		}},
	}
}

var scenarioBytes = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7F, 0x01, 0x70,
	0x03, 0x02, 0x01, 0x00,
	0x08, 0x01, 0x00,
	0x0A, 0x0B, 0x01, 0x09, 0x01, 0x01, 0x7F, 0x20, 0x00, 0x41, 0x02, 0x6C, 0x0B,
}

func TestEncodeScenarioModule(t *testing.T) {
	got := scenarioModule().Encode()
	if !bytes.Equal(got, scenarioBytes) {
		t.Errorf("encoded:\n got % X\nwant % X", got, scenarioBytes)
	}
}

func TestEncodeEmptyModule(t *testing.T) {
	got := wasm.EncodeModule(&wasm.Module{})
	want := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestComputeSizeBreakdown(t *testing.T) {
	sb := wasm.ComputeSize(scenarioModule())

	if sb.Total != len(scenarioBytes) {
		t.Errorf("Total = %d, want %d", sb.Total, len(scenarioBytes))
	}
	checks := []struct {
		id      wasm.SectionID
		section int
		payload int
	}{
		{wasm.SectionType, 8, 6},
		{wasm.SectionFunction, 4, 2},
		{wasm.SectionStart, 3, 1},
		{wasm.SectionCode, 13, 11},
		{wasm.SectionImport, 0, 0},
		{wasm.SectionData, 0, 0},
	}
	for _, c := range checks {
		if sb.Sections[c.id] != c.section || sb.Payloads[c.id] != c.payload {
			t.Errorf("%s: got (%d, %d), want (%d, %d)",
				c.id, sb.Sections[c.id], sb.Payloads[c.id], c.section, c.payload)
		}
	}
	if len(sb.Code) != 1 || sb.Code[0] != 10 {
		t.Errorf("Code = %v, want [10]", sb.Code)
	}
}

func TestEncodeDoesNotMutate(t *testing.T) {
	m := scenarioModule()
	before := m.Encode()
	_ = wasm.ComputeSize(m)
	after := m.Encode()
	if !bytes.Equal(before, after) {
		t.Error("encoding twice produced different output")
	}
}

func TestSizeOfInstructionMatchesEncoding(t *testing.T) {
	for _, in := range sampleInstructions() {
		enc := wasm.EncodeInstructions([]wasm.Instruction{in})
		if got := wasm.SizeOfInstruction(in); got != len(enc) {
			t.Errorf("%s: SizeOfInstruction = %d, encoded %d bytes (% x)", in, got, len(enc), enc)
		}
	}

	expr := sampleInstructions()
	if got, want := wasm.SizeOfExpression(expr), len(wasm.EncodeExpression(expr)); got != want {
		t.Errorf("SizeOfExpression = %d, encoded %d", got, want)
	}
}

func TestEncodeIfElse(t *testing.T) {
	in := wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.IfImm{
		Type: wasm.BlockTypeI32,
		Then: []wasm.Instruction{wasm.Call(10)},
		Else: []wasm.Instruction{wasm.Call(11), wasm.GlobalGet(0), wasm.Op(wasm.OpI32Mul)},
	}}
	want := []byte{0x04, 0x7F, 0x10, 0x0A, 0x05, 0x10, 0x0B, 0x23, 0x00, 0x6C, 0x0B}
	if got := wasm.EncodeInstructions([]wasm.Instruction{in}); !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestEncodeIfElseMarker(t *testing.T) {
	tests := []struct {
		name string
		els  []wasm.Instruction
		want []byte
	}{
		{"no else", nil, []byte{0x04, 0x40, 0x01, 0x0B}},
		{"empty else", []wasm.Instruction{}, []byte{0x04, 0x40, 0x01, 0x05, 0x0B}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.IfImm{
				Type: wasm.BlockTypeEmpty,
				Then: []wasm.Instruction{wasm.Op(wasm.OpNop)},
				Else: tt.els,
			}}
			got := wasm.EncodeInstructions([]wasm.Instruction{in})
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % x, want % x", got, tt.want)
			}
			if wasm.SizeOfInstruction(in) != len(tt.want) {
				t.Errorf("size = %d, want %d", wasm.SizeOfInstruction(in), len(tt.want))
			}
		})
	}
}

func TestEncodeReservedBytes(t *testing.T) {
	tests := []struct {
		in   wasm.Instruction
		want []byte
	}{
		{wasm.Op(wasm.OpMemorySize), []byte{0x3F, 0x00}},
		{wasm.Op(wasm.OpMemoryGrow), []byte{0x40, 0x00}},
		{wasm.Misc(wasm.MiscMemoryCopy), []byte{0xFC, 0x0A, 0x00, 0x00}},
		{wasm.Misc(wasm.MiscMemoryFill), []byte{0xFC, 0x0B, 0x00}},
		{wasm.Misc(wasm.MiscMemoryInit, 3), []byte{0xFC, 0x08, 0x03, 0x00}},
		{wasm.Misc(wasm.MiscTableCopy, 1, 2), []byte{0xFC, 0x0E, 0x01, 0x02}},
	}
	for _, tt := range tests {
		if got := wasm.EncodeInstructions([]wasm.Instruction{tt.in}); !bytes.Equal(got, tt.want) {
			t.Errorf("%s: got % x, want % x", tt.in, got, tt.want)
		}
	}
}

func TestEncodeFloatBitsExact(t *testing.T) {
	nan := wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{Bits: 0x7FC00001}}
	got := wasm.EncodeInstructions([]wasm.Instruction{nan})
	want := []byte{0x43, 0x01, 0x00, 0xC0, 0x7F}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestEncodeCustomSectionPlacement(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		CustomSections: []wasm.CustomSection{
			{Name: "tail", Data: []byte{0x01}, After: wasm.SectionType},
			{Name: "head", Data: []byte{0x02}, After: wasm.SectionCustom},
		},
	}
	want := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x00, 0x06, 0x04, 'h', 'e', 'a', 'd', 0x02,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x00, 0x06, 0x04, 't', 'a', 'i', 'l', 0x01,
	}
	got := m.Encode()
	if !bytes.Equal(got, want) {
		t.Errorf("got % x\nwant % x", got, want)
	}
	if sb := wasm.ComputeSize(m); sb.Total != len(want) || len(sb.Custom) != 2 || sb.Custom[0] != 8 {
		t.Errorf("breakdown = %+v", sb)
	}
}

func TestEncodePanicsOnUnknownImmediate(t *testing.T) {
	type bogus struct{}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown immediate type")
		}
	}()
	wasm.SizeOfInstruction(wasm.Instruction{Opcode: wasm.OpNop, Imm: bogus{}})
}

// sampleInstructions covers every immediate shape.
func sampleInstructions() []wasm.Instruction {
	return []wasm.Instruction{
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpNop),
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeEmpty}},
		{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{
			Type: wasm.BlockTypeI64,
			Body: []wasm.Instruction{wasm.I64Const(-1)},
		}},
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{
			Type: wasm.BlockTypeIndex(200),
			Body: []wasm.Instruction{{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: 0}}},
		}},
		{Opcode: wasm.OpIf, Imm: wasm.IfImm{
			Type: wasm.BlockTypeF64,
			Then: []wasm.Instruction{wasm.F64Const(1.5)},
			Else: []wasm.Instruction{wasm.F64Const(-2.25)},
		}},
		{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 3}},
		{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1, 200}, Default: 2}},
		wasm.Op(wasm.OpReturn),
		wasm.Call(1000),
		{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 5, TableIdx: 1}},
		wasm.Op(wasm.OpDrop),
		wasm.Op(wasm.OpSelect),
		{Opcode: wasm.OpSelectType, Imm: wasm.SelectTypeImm{Types: []wasm.ValType{wasm.ValExternRef}}},
		wasm.LocalGet(128),
		wasm.LocalSet(1),
		{Opcode: wasm.OpLocalTee, Imm: wasm.LocalImm{LocalIdx: 2}},
		wasm.GlobalGet(0),
		{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: 1}},
		{Opcode: wasm.OpTableGet, Imm: wasm.TableImm{TableIdx: 0}},
		{Opcode: wasm.OpTableSet, Imm: wasm.TableImm{TableIdx: 1}},
		{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2, Offset: 16}},
		{Opcode: wasm.OpI64Store32, Imm: wasm.MemoryImm{Align: 2, Offset: 1 << 20}},
		wasm.Op(wasm.OpMemorySize),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.I32Const(-123456),
		wasm.I64Const(1 << 40),
		wasm.F32Const(3.25),
		wasm.F64Const(-0.5),
		wasm.Op(wasm.OpI32Add),
		wasm.Op(wasm.OpF64ReinterpretI64),
		wasm.Op(wasm.OpI64Extend32S),
		{Opcode: wasm.OpRefNull, Imm: wasm.RefNullImm{Type: wasm.ValFuncRef}},
		wasm.Op(wasm.OpRefIsNull),
		{Opcode: wasm.OpRefFunc, Imm: wasm.RefFuncImm{FuncIdx: 7}},
		wasm.Misc(wasm.MiscI32TruncSatF32S),
		wasm.Misc(wasm.MiscI64TruncSatF64U),
		wasm.Misc(wasm.MiscMemoryInit, 0),
		wasm.Misc(wasm.MiscDataDrop, 0),
		wasm.Misc(wasm.MiscMemoryCopy),
		wasm.Misc(wasm.MiscMemoryFill),
		wasm.Misc(wasm.MiscTableInit, 0, 1),
		wasm.Misc(wasm.MiscElemDrop, 0),
		wasm.Misc(wasm.MiscTableCopy, 0, 1),
		wasm.Misc(wasm.MiscTableGrow, 0),
		wasm.Misc(wasm.MiscTableSize, 1),
		wasm.Misc(wasm.MiscTableFill, 0),
	}
}
