package wasm

import "fmt"

// immShape is the operand layout following an opcode byte.
type immShape uint8

const (
	shapeNone immShape = iota
	shapeBlock
	shapeIf
	shapeBranch
	shapeBrTable
	shapeCall
	shapeCallIndirect
	shapeLocal
	shapeGlobal
	shapeTable
	shapeMemArg
	shapeMemReserved
	shapeI32
	shapeI64
	shapeF32
	shapeF64
	shapeRefNull
	shapeRefFunc
	shapeSelectType
	shapeMisc
)

type opInfo struct {
	name  string
	shape immShape
}

// opTable is indexed by opcode byte; an empty name marks an unknown opcode.
// else and end are handled by the sequence reader and are absent here.
var opTable = [256]opInfo{
	OpUnreachable:  {"unreachable", shapeNone},
	OpNop:          {"nop", shapeNone},
	OpBlock:        {"block", shapeBlock},
	OpLoop:         {"loop", shapeBlock},
	OpIf:           {"if", shapeIf},
	OpBr:           {"br", shapeBranch},
	OpBrIf:         {"br_if", shapeBranch},
	OpBrTable:      {"br_table", shapeBrTable},
	OpReturn:       {"return", shapeNone},
	OpCall:         {"call", shapeCall},
	OpCallIndirect: {"call_indirect", shapeCallIndirect},

	OpDrop:       {"drop", shapeNone},
	OpSelect:     {"select", shapeNone},
	OpSelectType: {"select", shapeSelectType},

	OpLocalGet:  {"local.get", shapeLocal},
	OpLocalSet:  {"local.set", shapeLocal},
	OpLocalTee:  {"local.tee", shapeLocal},
	OpGlobalGet: {"global.get", shapeGlobal},
	OpGlobalSet: {"global.set", shapeGlobal},
	OpTableGet:  {"table.get", shapeTable},
	OpTableSet:  {"table.set", shapeTable},

	OpI32Load:    {"i32.load", shapeMemArg},
	OpI64Load:    {"i64.load", shapeMemArg},
	OpF32Load:    {"f32.load", shapeMemArg},
	OpF64Load:    {"f64.load", shapeMemArg},
	OpI32Load8S:  {"i32.load8_s", shapeMemArg},
	OpI32Load8U:  {"i32.load8_u", shapeMemArg},
	OpI32Load16S: {"i32.load16_s", shapeMemArg},
	OpI32Load16U: {"i32.load16_u", shapeMemArg},
	OpI64Load8S:  {"i64.load8_s", shapeMemArg},
	OpI64Load8U:  {"i64.load8_u", shapeMemArg},
	OpI64Load16S: {"i64.load16_s", shapeMemArg},
	OpI64Load16U: {"i64.load16_u", shapeMemArg},
	OpI64Load32S: {"i64.load32_s", shapeMemArg},
	OpI64Load32U: {"i64.load32_u", shapeMemArg},
	OpI32Store:   {"i32.store", shapeMemArg},
	OpI64Store:   {"i64.store", shapeMemArg},
	OpF32Store:   {"f32.store", shapeMemArg},
	OpF64Store:   {"f64.store", shapeMemArg},
	OpI32Store8:  {"i32.store8", shapeMemArg},
	OpI32Store16: {"i32.store16", shapeMemArg},
	OpI64Store8:  {"i64.store8", shapeMemArg},
	OpI64Store16: {"i64.store16", shapeMemArg},
	OpI64Store32: {"i64.store32", shapeMemArg},
	OpMemorySize: {"memory.size", shapeMemReserved},
	OpMemoryGrow: {"memory.grow", shapeMemReserved},

	OpI32Const: {"i32.const", shapeI32},
	OpI64Const: {"i64.const", shapeI64},
	OpF32Const: {"f32.const", shapeF32},
	OpF64Const: {"f64.const", shapeF64},

	OpI32Eqz: {"i32.eqz", shapeNone},
	OpI32Eq:  {"i32.eq", shapeNone},
	OpI32Ne:  {"i32.ne", shapeNone},
	OpI32LtS: {"i32.lt_s", shapeNone},
	OpI32LtU: {"i32.lt_u", shapeNone},
	OpI32GtS: {"i32.gt_s", shapeNone},
	OpI32GtU: {"i32.gt_u", shapeNone},
	OpI32LeS: {"i32.le_s", shapeNone},
	OpI32LeU: {"i32.le_u", shapeNone},
	OpI32GeS: {"i32.ge_s", shapeNone},
	OpI32GeU: {"i32.ge_u", shapeNone},
	OpI64Eqz: {"i64.eqz", shapeNone},
	OpI64Eq:  {"i64.eq", shapeNone},
	OpI64Ne:  {"i64.ne", shapeNone},
	OpI64LtS: {"i64.lt_s", shapeNone},
	OpI64LtU: {"i64.lt_u", shapeNone},
	OpI64GtS: {"i64.gt_s", shapeNone},
	OpI64GtU: {"i64.gt_u", shapeNone},
	OpI64LeS: {"i64.le_s", shapeNone},
	OpI64LeU: {"i64.le_u", shapeNone},
	OpI64GeS: {"i64.ge_s", shapeNone},
	OpI64GeU: {"i64.ge_u", shapeNone},
	OpF32Eq:  {"f32.eq", shapeNone},
	OpF32Ne:  {"f32.ne", shapeNone},
	OpF32Lt:  {"f32.lt", shapeNone},
	OpF32Gt:  {"f32.gt", shapeNone},
	OpF32Le:  {"f32.le", shapeNone},
	OpF32Ge:  {"f32.ge", shapeNone},
	OpF64Eq:  {"f64.eq", shapeNone},
	OpF64Ne:  {"f64.ne", shapeNone},
	OpF64Lt:  {"f64.lt", shapeNone},
	OpF64Gt:  {"f64.gt", shapeNone},
	OpF64Le:  {"f64.le", shapeNone},
	OpF64Ge:  {"f64.ge", shapeNone},

	OpI32Clz:    {"i32.clz", shapeNone},
	OpI32Ctz:    {"i32.ctz", shapeNone},
	OpI32Popcnt: {"i32.popcnt", shapeNone},
	OpI32Add:    {"i32.add", shapeNone},
	OpI32Sub:    {"i32.sub", shapeNone},
	OpI32Mul:    {"i32.mul", shapeNone},
	OpI32DivS:   {"i32.div_s", shapeNone},
	OpI32DivU:   {"i32.div_u", shapeNone},
	OpI32RemS:   {"i32.rem_s", shapeNone},
	OpI32RemU:   {"i32.rem_u", shapeNone},
	OpI32And:    {"i32.and", shapeNone},
	OpI32Or:     {"i32.or", shapeNone},
	OpI32Xor:    {"i32.xor", shapeNone},
	OpI32Shl:    {"i32.shl", shapeNone},
	OpI32ShrS:   {"i32.shr_s", shapeNone},
	OpI32ShrU:   {"i32.shr_u", shapeNone},
	OpI32Rotl:   {"i32.rotl", shapeNone},
	OpI32Rotr:   {"i32.rotr", shapeNone},
	OpI64Clz:    {"i64.clz", shapeNone},
	OpI64Ctz:    {"i64.ctz", shapeNone},
	OpI64Popcnt: {"i64.popcnt", shapeNone},
	OpI64Add:    {"i64.add", shapeNone},
	OpI64Sub:    {"i64.sub", shapeNone},
	OpI64Mul:    {"i64.mul", shapeNone},
	OpI64DivS:   {"i64.div_s", shapeNone},
	OpI64DivU:   {"i64.div_u", shapeNone},
	OpI64RemS:   {"i64.rem_s", shapeNone},
	OpI64RemU:   {"i64.rem_u", shapeNone},
	OpI64And:    {"i64.and", shapeNone},
	OpI64Or:     {"i64.or", shapeNone},
	OpI64Xor:    {"i64.xor", shapeNone},
	OpI64Shl:    {"i64.shl", shapeNone},
	OpI64ShrS:   {"i64.shr_s", shapeNone},
	OpI64ShrU:   {"i64.shr_u", shapeNone},
	OpI64Rotl:   {"i64.rotl", shapeNone},
	OpI64Rotr:   {"i64.rotr", shapeNone},

	OpF32Abs:      {"f32.abs", shapeNone},
	OpF32Neg:      {"f32.neg", shapeNone},
	OpF32Ceil:     {"f32.ceil", shapeNone},
	OpF32Floor:    {"f32.floor", shapeNone},
	OpF32Trunc:    {"f32.trunc", shapeNone},
	OpF32Nearest:  {"f32.nearest", shapeNone},
	OpF32Sqrt:     {"f32.sqrt", shapeNone},
	OpF32Add:      {"f32.add", shapeNone},
	OpF32Sub:      {"f32.sub", shapeNone},
	OpF32Mul:      {"f32.mul", shapeNone},
	OpF32Div:      {"f32.div", shapeNone},
	OpF32Min:      {"f32.min", shapeNone},
	OpF32Max:      {"f32.max", shapeNone},
	OpF32Copysign: {"f32.copysign", shapeNone},
	OpF64Abs:      {"f64.abs", shapeNone},
	OpF64Neg:      {"f64.neg", shapeNone},
	OpF64Ceil:     {"f64.ceil", shapeNone},
	OpF64Floor:    {"f64.floor", shapeNone},
	OpF64Trunc:    {"f64.trunc", shapeNone},
	OpF64Nearest:  {"f64.nearest", shapeNone},
	OpF64Sqrt:     {"f64.sqrt", shapeNone},
	OpF64Add:      {"f64.add", shapeNone},
	OpF64Sub:      {"f64.sub", shapeNone},
	OpF64Mul:      {"f64.mul", shapeNone},
	OpF64Div:      {"f64.div", shapeNone},
	OpF64Min:      {"f64.min", shapeNone},
	OpF64Max:      {"f64.max", shapeNone},
	OpF64Copysign: {"f64.copysign", shapeNone},

	OpI32WrapI64:        {"i32.wrap_i64", shapeNone},
	OpI32TruncF32S:      {"i32.trunc_f32_s", shapeNone},
	OpI32TruncF32U:      {"i32.trunc_f32_u", shapeNone},
	OpI32TruncF64S:      {"i32.trunc_f64_s", shapeNone},
	OpI32TruncF64U:      {"i32.trunc_f64_u", shapeNone},
	OpI64ExtendI32S:     {"i64.extend_i32_s", shapeNone},
	OpI64ExtendI32U:     {"i64.extend_i32_u", shapeNone},
	OpI64TruncF32S:      {"i64.trunc_f32_s", shapeNone},
	OpI64TruncF32U:      {"i64.trunc_f32_u", shapeNone},
	OpI64TruncF64S:      {"i64.trunc_f64_s", shapeNone},
	OpI64TruncF64U:      {"i64.trunc_f64_u", shapeNone},
	OpF32ConvertI32S:    {"f32.convert_i32_s", shapeNone},
	OpF32ConvertI32U:    {"f32.convert_i32_u", shapeNone},
	OpF32ConvertI64S:    {"f32.convert_i64_s", shapeNone},
	OpF32ConvertI64U:    {"f32.convert_i64_u", shapeNone},
	OpF32DemoteF64:      {"f32.demote_f64", shapeNone},
	OpF64ConvertI32S:    {"f64.convert_i32_s", shapeNone},
	OpF64ConvertI32U:    {"f64.convert_i32_u", shapeNone},
	OpF64ConvertI64S:    {"f64.convert_i64_s", shapeNone},
	OpF64ConvertI64U:    {"f64.convert_i64_u", shapeNone},
	OpF64PromoteF32:     {"f64.promote_f32", shapeNone},
	OpI32ReinterpretF32: {"i32.reinterpret_f32", shapeNone},
	OpI64ReinterpretF64: {"i64.reinterpret_f64", shapeNone},
	OpF32ReinterpretI32: {"f32.reinterpret_i32", shapeNone},
	OpF64ReinterpretI64: {"f64.reinterpret_i64", shapeNone},
	OpI32Extend8S:       {"i32.extend8_s", shapeNone},
	OpI32Extend16S:      {"i32.extend16_s", shapeNone},
	OpI64Extend8S:       {"i64.extend8_s", shapeNone},
	OpI64Extend16S:      {"i64.extend16_s", shapeNone},
	OpI64Extend32S:      {"i64.extend32_s", shapeNone},

	OpRefNull:   {"ref.null", shapeRefNull},
	OpRefIsNull: {"ref.is_null", shapeNone},
	OpRefFunc:   {"ref.func", shapeRefFunc},

	OpPrefixMisc: {"misc", shapeMisc},
}

type miscInfo struct {
	name     string
	operands int // LEB128 u32 index operands
	reserved int // trailing 0x00 bytes
}

var miscTable = [...]miscInfo{
	MiscI32TruncSatF32S: {"i32.trunc_sat_f32_s", 0, 0},
	MiscI32TruncSatF32U: {"i32.trunc_sat_f32_u", 0, 0},
	MiscI32TruncSatF64S: {"i32.trunc_sat_f64_s", 0, 0},
	MiscI32TruncSatF64U: {"i32.trunc_sat_f64_u", 0, 0},
	MiscI64TruncSatF32S: {"i64.trunc_sat_f32_s", 0, 0},
	MiscI64TruncSatF32U: {"i64.trunc_sat_f32_u", 0, 0},
	MiscI64TruncSatF64S: {"i64.trunc_sat_f64_s", 0, 0},
	MiscI64TruncSatF64U: {"i64.trunc_sat_f64_u", 0, 0},
	MiscMemoryInit:      {"memory.init", 1, 1},
	MiscDataDrop:        {"data.drop", 1, 0},
	MiscMemoryCopy:      {"memory.copy", 0, 2},
	MiscMemoryFill:      {"memory.fill", 0, 1},
	MiscTableInit:       {"table.init", 2, 0},
	MiscElemDrop:        {"elem.drop", 1, 0},
	MiscTableCopy:       {"table.copy", 2, 0},
	MiscTableGrow:       {"table.grow", 1, 0},
	MiscTableSize:       {"table.size", 1, 0},
	MiscTableFill:       {"table.fill", 1, 0},
}

func lookupMisc(sub uint32) (miscInfo, bool) {
	if sub >= uint32(len(miscTable)) {
		return miscInfo{}, false
	}
	return miscTable[sub], true
}

// OpcodeName returns the text name of a single-byte opcode.
func OpcodeName(op byte) string {
	switch op {
	case OpElse:
		return "else"
	case OpEnd:
		return "end"
	}
	if name := opTable[op].name; name != "" {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", op)
}

// MiscName returns the text name of a 0xFC sub-opcode.
func MiscName(sub uint32) string {
	if info, ok := lookupMisc(sub); ok {
		return info.name
	}
	return fmt.Sprintf("misc.unknown(%d)", sub)
}

// IsKnownOpcode reports whether op starts an instruction this codec decodes.
func IsKnownOpcode(op byte) bool {
	return opTable[op].name != ""
}

// immMatches reports whether imm is the immediate type the opcode expects.
func immMatches(in Instruction) bool {
	switch opTable[in.Opcode].shape {
	case shapeNone, shapeMemReserved:
		return in.Imm == nil
	case shapeBlock:
		_, ok := in.Imm.(BlockImm)
		return ok
	case shapeIf:
		_, ok := in.Imm.(IfImm)
		return ok
	case shapeBranch:
		_, ok := in.Imm.(BranchImm)
		return ok
	case shapeBrTable:
		_, ok := in.Imm.(BrTableImm)
		return ok
	case shapeCall:
		_, ok := in.Imm.(CallImm)
		return ok
	case shapeCallIndirect:
		_, ok := in.Imm.(CallIndirectImm)
		return ok
	case shapeLocal:
		_, ok := in.Imm.(LocalImm)
		return ok
	case shapeGlobal:
		_, ok := in.Imm.(GlobalImm)
		return ok
	case shapeTable:
		_, ok := in.Imm.(TableImm)
		return ok
	case shapeMemArg:
		_, ok := in.Imm.(MemoryImm)
		return ok
	case shapeI32:
		_, ok := in.Imm.(I32Imm)
		return ok
	case shapeI64:
		_, ok := in.Imm.(I64Imm)
		return ok
	case shapeF32:
		_, ok := in.Imm.(F32Imm)
		return ok
	case shapeF64:
		_, ok := in.Imm.(F64Imm)
		return ok
	case shapeRefNull:
		_, ok := in.Imm.(RefNullImm)
		return ok
	case shapeRefFunc:
		_, ok := in.Imm.(RefFuncImm)
		return ok
	case shapeSelectType:
		_, ok := in.Imm.(SelectTypeImm)
		return ok
	case shapeMisc:
		imm, ok := in.Imm.(MiscImm)
		if !ok {
			return false
		}
		info, known := lookupMisc(imm.SubOpcode)
		return known && len(imm.Operands) == info.operands
	}
	return false
}
