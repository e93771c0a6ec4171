package wasm

import "math"

// Instruction is a single decoded instruction. The concrete type of Imm is
// fixed by Opcode (see OpcodeName and the *Imm types below); opcodes without
// immediates carry a nil Imm.
type Instruction struct {
	Imm    any
	Opcode byte
}

// BlockType is the signature of a structured instruction, encoded as s33:
// negative values name the empty type or a single result type, non-negative
// values are type section indices.
type BlockType int64

// Block types for the empty signature and single results.
const (
	BlockTypeEmpty     BlockType = -0x40
	BlockTypeI32       BlockType = -0x01
	BlockTypeI64       BlockType = -0x02
	BlockTypeF32       BlockType = -0x03
	BlockTypeF64       BlockType = -0x04
	BlockTypeFuncRef   BlockType = -0x10
	BlockTypeExternRef BlockType = -0x11
)

// BlockTypeOf returns the block type with a single result of type v.
func BlockTypeOf(v ValType) BlockType {
	return BlockType(int64(v) - 0x80)
}

// BlockTypeIndex returns the block type referring to a type section entry.
func BlockTypeIndex(typeIdx uint32) BlockType {
	return BlockType(typeIdx)
}

// IsEmpty reports whether the block has no parameters and no results.
func (b BlockType) IsEmpty() bool {
	return b == BlockTypeEmpty
}

// ValType returns the single result type, if b is one.
func (b BlockType) ValType() (ValType, bool) {
	if b >= 0 || b == BlockTypeEmpty || b < -0x40 {
		return 0, false
	}
	v := ValType(int64(b) + 0x80)
	return v, v.Valid()
}

// TypeIndex returns the type section index, if b is one.
func (b BlockType) TypeIndex() (uint32, bool) {
	if b < 0 || b > math.MaxUint32 {
		return 0, false
	}
	return uint32(b), true
}

func (b BlockType) valid() bool {
	if b.IsEmpty() {
		return true
	}
	if _, ok := b.TypeIndex(); ok {
		return true
	}
	_, ok := b.ValType()
	return ok
}

// BlockImm holds the signature and body of block and loop.
type BlockImm struct {
	Body []Instruction
	Type BlockType
}

// IfImm holds the signature and both branches of if. A nil Else means no
// else marker was present; a non-nil empty Else encodes as an explicit
// empty else branch.
type IfImm struct {
	Then []Instruction
	Else []Instruction
	Type BlockType
}

// BranchImm holds the label index for br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the label table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the function index for call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds type and table indices for call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds the table index for table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// MemoryImm is the memarg of loads and stores. Align is a power-of-two exponent.
type MemoryImm struct {
	Align  uint32
	Offset uint32
}

// I32Imm holds the constant for i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm holds the constant for i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm holds the raw IEEE 754 bits for f32.const.
type F32Imm struct {
	Bits uint32
}

// Value returns the constant as a float32.
func (f F32Imm) Value() float32 { return math.Float32frombits(f.Bits) }

// F64Imm holds the raw IEEE 754 bits for f64.const.
type F64Imm struct {
	Bits uint64
}

// Value returns the constant as a float64.
func (f F64Imm) Value() float64 { return math.Float64frombits(f.Bits) }

// RefNullImm holds the reference type for ref.null.
type RefNullImm struct {
	Type ValType
}

// RefFuncImm holds the function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the result types of typed select.
type SelectTypeImm struct {
	Types []ValType
}

// MiscImm holds the sub-opcode and index operands of 0xFC instructions.
// Reserved zero bytes are not stored.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// Constructors for frequently built instructions.

// I32Const returns i32.const v.
func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: v}}
}

// I64Const returns i64.const v.
func I64Const(v int64) Instruction {
	return Instruction{Opcode: OpI64Const, Imm: I64Imm{Value: v}}
}

// F32Const returns f32.const v.
func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpF32Const, Imm: F32Imm{Bits: math.Float32bits(v)}}
}

// F64Const returns f64.const v.
func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Imm: F64Imm{Bits: math.Float64bits(v)}}
}

// LocalGet returns local.get idx.
func LocalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: idx}}
}

// LocalSet returns local.set idx.
func LocalSet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Imm: LocalImm{LocalIdx: idx}}
}

// GlobalGet returns global.get idx.
func GlobalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpGlobalGet, Imm: GlobalImm{GlobalIdx: idx}}
}

// Call returns call funcIdx.
func Call(funcIdx uint32) Instruction {
	return Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: funcIdx}}
}

// Op returns an instruction without immediates.
func Op(opcode byte) Instruction {
	return Instruction{Opcode: opcode}
}

// Misc returns a 0xFC-prefixed instruction.
func Misc(sub uint32, operands ...uint32) Instruction {
	return Instruction{Opcode: OpPrefixMisc, Imm: MiscImm{SubOpcode: sub, Operands: operands}}
}

// GetCallTarget returns the call target if this is a call instruction
func (i Instruction) GetCallTarget() (uint32, bool) {
	if i.Opcode == OpCall {
		if imm, ok := i.Imm.(CallImm); ok {
			return imm.FuncIdx, true
		}
	}
	return 0, false
}

// Walk visits every instruction in instrs depth-first, descending into
// block, loop and if bodies. Returning false from fn skips the children of
// that instruction.
func Walk(instrs []Instruction, fn func(Instruction) bool) {
	for _, in := range instrs {
		if !fn(in) {
			continue
		}
		switch imm := in.Imm.(type) {
		case BlockImm:
			Walk(imm.Body, fn)
		case IfImm:
			Walk(imm.Then, fn)
			Walk(imm.Else, fn)
		}
	}
}
