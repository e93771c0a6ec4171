package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-codec/wasm/internal/binary"
)

// preambleSize is the magic number plus the version.
const preambleSize = 8

// SizeBreakdown is the exact encoded size of a module and its parts.
// Sections and Payloads are indexed by SectionID; absent sections are 0.
type SizeBreakdown struct {
	Sections [numSections]int // id byte + size prefix + payload
	Payloads [numSections]int
	Custom   []int // full size of each custom section, in Module order
	Code     []int // each body including its own size prefix
	Total    int

	bodies        []int // code body sizes without the prefix
	customPayload []int
}

// ComputeSize measures m without encoding it. EncodeModule allocates
// exactly Total bytes.
func ComputeSize(m *Module) *SizeBreakdown {
	sb := &SizeBreakdown{Total: preambleSize}

	sb.Payloads[SectionType] = sizeVec(len(m.Types), func(i int) int {
		return sizeFuncType(m.Types[i])
	})
	sb.Payloads[SectionImport] = sizeVec(len(m.Imports), func(i int) int {
		return sizeImport(m.Imports[i])
	})
	sb.Payloads[SectionFunction] = sizeVec(len(m.Funcs), func(i int) int {
		return sizeU32(m.Funcs[i])
	})
	sb.Payloads[SectionTable] = sizeVec(len(m.Tables), func(i int) int {
		return sizeTableType(m.Tables[i])
	})
	sb.Payloads[SectionMemory] = sizeVec(len(m.Memories), func(i int) int {
		return sizeLimits(m.Memories[i])
	})
	sb.Payloads[SectionGlobal] = sizeVec(len(m.Globals), func(i int) int {
		return 2 + SizeOfExpression(m.Globals[i].Init)
	})
	sb.Payloads[SectionExport] = sizeVec(len(m.Exports), func(i int) int {
		e := m.Exports[i]
		return sizeName(e.Name) + 1 + sizeU32(e.Idx)
	})
	if m.Start != nil {
		sb.Payloads[SectionStart] = sizeU32(*m.Start)
	}
	sb.Payloads[SectionElement] = sizeVec(len(m.Elements), func(i int) int {
		return sizeElement(m.Elements[i])
	})
	if m.DataCount != nil {
		sb.Payloads[SectionDataCount] = sizeU32(*m.DataCount)
	}

	if len(m.Code) > 0 {
		sb.Code = make([]int, len(m.Code))
		sb.bodies = make([]int, len(m.Code))
		payload := sizeU32(uint32(len(m.Code)))
		for i := range m.Code {
			body := sizeFuncBody(m.Code[i])
			sb.bodies[i] = body
			sb.Code[i] = sizeU32(uint32(body)) + body
			payload += sb.Code[i]
		}
		sb.Payloads[SectionCode] = payload
	}

	sb.Payloads[SectionData] = sizeVec(len(m.Data), func(i int) int {
		return sizeDataSegment(m.Data[i])
	})

	for _, id := range canonicalOrder {
		if !sectionPresent(m, id) {
			sb.Payloads[id] = 0
			continue
		}
		sb.Sections[id] = sizeSection(sb.Payloads[id])
		sb.Total += sb.Sections[id]
	}

	if len(m.CustomSections) > 0 {
		sb.Custom = make([]int, len(m.CustomSections))
		sb.customPayload = make([]int, len(m.CustomSections))
		for i, cs := range m.CustomSections {
			payload := sizeName(cs.Name) + len(cs.Data)
			sb.customPayload[i] = payload
			sb.Custom[i] = sizeSection(payload)
			sb.Payloads[SectionCustom] += payload
			sb.Sections[SectionCustom] += sb.Custom[i]
			sb.Total += sb.Custom[i]
		}
	}

	return sb
}

// sectionPresent reports whether the encoder emits section id for m.
func sectionPresent(m *Module, id SectionID) bool {
	switch id {
	case SectionType:
		return len(m.Types) > 0
	case SectionImport:
		return len(m.Imports) > 0
	case SectionFunction:
		return len(m.Funcs) > 0
	case SectionTable:
		return len(m.Tables) > 0
	case SectionMemory:
		return len(m.Memories) > 0
	case SectionGlobal:
		return len(m.Globals) > 0
	case SectionExport:
		return len(m.Exports) > 0
	case SectionStart:
		return m.Start != nil
	case SectionElement:
		return len(m.Elements) > 0
	case SectionDataCount:
		return m.DataCount != nil
	case SectionCode:
		return len(m.Code) > 0
	case SectionData:
		return len(m.Data) > 0
	}
	return false
}

func sizeSection(payload int) int {
	return 1 + sizeU32(uint32(payload)) + payload
}

func sizeU32(v uint32) int { return binary.SizeUvarint(uint64(v)) }

func sizeName(s string) int {
	return sizeU32(uint32(len(s))) + len(s)
}

func sizeVec(n int, item func(i int) int) int {
	total := sizeU32(uint32(n))
	for i := 0; i < n; i++ {
		total += item(i)
	}
	return total
}

func sizeFuncType(ft FuncType) int {
	return 1 + sizeU32(uint32(len(ft.Params))) + len(ft.Params) +
		sizeU32(uint32(len(ft.Results))) + len(ft.Results)
}

func sizeLimits(l Limits) int {
	n := 1 + sizeU32(l.Min)
	if l.Max != nil {
		n += sizeU32(*l.Max)
	}
	return n
}

func sizeTableType(t TableType) int {
	return 1 + sizeLimits(t.Limits)
}

func sizeImport(imp Import) int {
	n := sizeName(imp.Module) + sizeName(imp.Name) + 1
	switch imp.Desc.Kind {
	case KindFunc:
		n += sizeU32(imp.Desc.TypeIdx)
	case KindTable:
		n += sizeTableType(imp.Desc.Table)
	case KindMemory:
		n += sizeLimits(imp.Desc.Memory)
	case KindGlobal:
		n += 2
	default:
		panic(fmt.Sprintf("wasm: import %q.%q has unknown kind 0x%02x", imp.Module, imp.Name, imp.Desc.Kind))
	}
	return n
}

func sizeElement(e Element) int {
	n := sizeU32(e.Flags)
	if e.hasTableIdx() {
		n += sizeU32(e.TableIdx)
	}
	if e.IsActive() {
		n += SizeOfExpression(e.Offset)
	}
	if e.hasKind() {
		n++
	}
	if e.UsesExprs() {
		n += sizeVec(len(e.Init), func(i int) int { return SizeOfExpression(e.Init[i]) })
	} else {
		n += sizeVec(len(e.FuncIdxs), func(i int) int { return sizeU32(e.FuncIdxs[i]) })
	}
	return n
}

func sizeDataSegment(d DataSegment) int {
	n := sizeU32(d.Flags)
	if d.Flags == 2 {
		n += sizeU32(d.MemIdx)
	}
	if d.IsActive() {
		n += SizeOfExpression(d.Offset)
	}
	return n + sizeU32(uint32(len(d.Init))) + len(d.Init)
}

func sizeFuncBody(f FuncBody) int {
	n := sizeVec(len(f.Locals), func(i int) int { return sizeU32(f.Locals[i].Count) + 1 })
	return n + SizeOfExpression(f.Body)
}

// SizeOfExpression returns the encoded size of instrs plus the final end.
func SizeOfExpression(instrs []Instruction) int {
	return sizeInstructions(instrs) + 1
}

func sizeInstructions(instrs []Instruction) int {
	n := 0
	for _, in := range instrs {
		n += SizeOfInstruction(in)
	}
	return n
}

// SizeOfInstruction returns the encoded size of a single instruction,
// including nested bodies and their end bytes. It panics on an immediate
// type this package does not define.
func SizeOfInstruction(in Instruction) int {
	switch imm := in.Imm.(type) {
	case nil:
		if in.Opcode == OpMemorySize || in.Opcode == OpMemoryGrow {
			return 2
		}
		return 1
	case BlockImm:
		return 1 + binary.SizeSvarint(int64(imm.Type)) + sizeInstructions(imm.Body) + 1
	case IfImm:
		n := 1 + binary.SizeSvarint(int64(imm.Type)) + sizeInstructions(imm.Then)
		if imm.Else != nil {
			n += 1 + sizeInstructions(imm.Else)
		}
		return n + 1
	case BranchImm:
		return 1 + sizeU32(imm.LabelIdx)
	case BrTableImm:
		return 1 + sizeVec(len(imm.Labels), func(i int) int { return sizeU32(imm.Labels[i]) }) +
			sizeU32(imm.Default)
	case CallImm:
		return 1 + sizeU32(imm.FuncIdx)
	case CallIndirectImm:
		return 1 + sizeU32(imm.TypeIdx) + sizeU32(imm.TableIdx)
	case LocalImm:
		return 1 + sizeU32(imm.LocalIdx)
	case GlobalImm:
		return 1 + sizeU32(imm.GlobalIdx)
	case TableImm:
		return 1 + sizeU32(imm.TableIdx)
	case MemoryImm:
		return 1 + sizeU32(imm.Align) + sizeU32(imm.Offset)
	case I32Imm:
		return 1 + binary.SizeSvarint(int64(imm.Value))
	case I64Imm:
		return 1 + binary.SizeSvarint(imm.Value)
	case F32Imm:
		return 5
	case F64Imm:
		return 9
	case RefNullImm:
		return 2
	case RefFuncImm:
		return 1 + sizeU32(imm.FuncIdx)
	case SelectTypeImm:
		return 1 + sizeU32(uint32(len(imm.Types))) + len(imm.Types)
	case MiscImm:
		n := 1 + sizeU32(imm.SubOpcode)
		for _, op := range imm.Operands {
			n += sizeU32(op)
		}
		if info, ok := lookupMisc(imm.SubOpcode); ok {
			n += info.reserved
		}
		return n
	default:
		panic(fmt.Sprintf("wasm: %s has unsupported immediate %T", OpcodeName(in.Opcode), in.Imm))
	}
}
