package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-codec/wasm/internal/binary"
)

// SizeMismatchError is the panic value raised when the encoder and the size
// calculator disagree. It indicates a defect in this package, not bad input.
type SizeMismatchError struct {
	Detail string
	Total  int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("wasm: encoder disagrees with computed size %d: %s", e.Total, e.Detail)
}

// Encode serializes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	return EncodeModule(m)
}

// EncodeModule serializes m into a single buffer of exactly
// ComputeSize(m).Total bytes. m is not modified.
func EncodeModule(m *Module) []byte {
	sb := ComputeSize(m)
	w := binary.NewWriter(sb.Total)

	defer func() {
		if r := recover(); r != nil {
			if oe, ok := r.(*binary.OverrunError); ok {
				panic(&SizeMismatchError{Total: sb.Total, Detail: oe.Error()})
			}
			panic(r)
		}
	}()

	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	enc := encoder{w: w, m: m, sb: sb}
	enc.customsAt(0)
	for i, id := range canonicalOrder {
		if sectionPresent(m, id) {
			enc.section(id)
		}
		enc.customsAt(i + 1)
	}
	enc.customsAt(len(canonicalOrder) + 1)

	if w.Len() != sb.Total {
		panic(&SizeMismatchError{
			Total:  sb.Total,
			Detail: fmt.Sprintf("wrote %d bytes", w.Len()),
		})
	}
	return w.Bytes()
}

type encoder struct {
	w  *binary.Writer
	m  *Module
	sb *SizeBreakdown
}

// customsAt writes the custom sections anchored at canonical position pos.
// Position 0 precedes all standard sections; anchors that name no standard
// section are written last.
func (e *encoder) customsAt(pos int) {
	last := len(canonicalOrder) + 1
	for i, cs := range e.m.CustomSections {
		at := sectionOrder(cs.After)
		if at == 0 && cs.After != SectionCustom {
			at = last
		}
		if at != pos {
			continue
		}
		e.w.Byte(byte(SectionCustom))
		e.w.WriteU32(uint32(e.sb.customPayload[i]))
		e.w.WriteName(cs.Name)
		e.w.WriteBytes(cs.Data)
	}
}

func (e *encoder) section(id SectionID) {
	w, m := e.w, e.m
	w.Byte(byte(id))
	w.WriteU32(uint32(e.sb.Payloads[id]))
	start := w.Len()

	switch id {
	case SectionType:
		w.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			writeFuncType(w, ft)
		}
	case SectionImport:
		w.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			writeImport(w, imp)
		}
	case SectionFunction:
		w.WriteU32(uint32(len(m.Funcs)))
		for _, idx := range m.Funcs {
			w.WriteU32(idx)
		}
	case SectionTable:
		w.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(w, t)
		}
	case SectionMemory:
		w.WriteU32(uint32(len(m.Memories)))
		for _, l := range m.Memories {
			writeLimits(w, l)
		}
	case SectionGlobal:
		w.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(w, g.Type)
			writeExpression(w, g.Init)
		}
	case SectionExport:
		w.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			w.WriteName(exp.Name)
			w.Byte(exp.Kind)
			w.WriteU32(exp.Idx)
		}
	case SectionStart:
		w.WriteU32(*m.Start)
	case SectionElement:
		w.WriteU32(uint32(len(m.Elements)))
		for _, el := range m.Elements {
			writeElement(w, el)
		}
	case SectionDataCount:
		w.WriteU32(*m.DataCount)
	case SectionCode:
		w.WriteU32(uint32(len(m.Code)))
		for i, body := range m.Code {
			w.WriteU32(uint32(e.sb.bodies[i]))
			bodyStart := w.Len()
			writeFuncBody(w, body)
			if got := w.Len() - bodyStart; got != e.sb.bodies[i] {
				panic(&SizeMismatchError{
					Total:  e.sb.Total,
					Detail: fmt.Sprintf("code body %d: computed %d bytes, wrote %d", i, e.sb.bodies[i], got),
				})
			}
		}
	case SectionData:
		w.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			writeDataSegment(w, d)
		}
	}

	if got := w.Len() - start; got != e.sb.Payloads[id] {
		panic(&SizeMismatchError{
			Total:  e.sb.Total,
			Detail: fmt.Sprintf("%s section: computed %d bytes, wrote %d", id, e.sb.Payloads[id], got),
		})
	}
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeFuncType(w *binary.Writer, ft FuncType) {
	w.Byte(FuncTypeByte)
	writeValTypes(w, ft.Params)
	writeValTypes(w, ft.Results)
}

func writeLimits(w *binary.Writer, l Limits) {
	if l.Max != nil {
		w.Byte(LimitsHasMax)
		w.WriteU32(l.Min)
		w.WriteU32(*l.Max)
		return
	}
	w.Byte(LimitsNoMax)
	w.WriteU32(l.Min)
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}

func writeImport(w *binary.Writer, imp Import) {
	w.WriteName(imp.Module)
	w.WriteName(imp.Name)
	w.Byte(imp.Desc.Kind)
	switch imp.Desc.Kind {
	case KindFunc:
		w.WriteU32(imp.Desc.TypeIdx)
	case KindTable:
		writeTableType(w, imp.Desc.Table)
	case KindMemory:
		writeLimits(w, imp.Desc.Memory)
	case KindGlobal:
		writeGlobalType(w, imp.Desc.Global)
	}
}

func writeElement(w *binary.Writer, el Element) {
	w.WriteU32(el.Flags)
	if el.hasTableIdx() {
		w.WriteU32(el.TableIdx)
	}
	if el.IsActive() {
		writeExpression(w, el.Offset)
	}
	if el.hasKind() {
		if el.UsesExprs() {
			w.Byte(byte(el.RefType))
		} else {
			w.Byte(el.ElemKind)
		}
	}
	if el.UsesExprs() {
		w.WriteU32(uint32(len(el.Init)))
		for _, expr := range el.Init {
			writeExpression(w, expr)
		}
		return
	}
	w.WriteU32(uint32(len(el.FuncIdxs)))
	for _, idx := range el.FuncIdxs {
		w.WriteU32(idx)
	}
}

func writeDataSegment(w *binary.Writer, d DataSegment) {
	w.WriteU32(d.Flags)
	if d.Flags == 2 {
		w.WriteU32(d.MemIdx)
	}
	if d.IsActive() {
		writeExpression(w, d.Offset)
	}
	w.WriteU32(uint32(len(d.Init)))
	w.WriteBytes(d.Init)
}

func writeFuncBody(w *binary.Writer, f FuncBody) {
	w.WriteU32(uint32(len(f.Locals)))
	for _, l := range f.Locals {
		w.WriteU32(l.Count)
		w.Byte(byte(l.Type))
	}
	writeExpression(w, f.Body)
}

func writeExpression(w *binary.Writer, instrs []Instruction) {
	writeInstructions(w, instrs)
	w.Byte(OpEnd)
}

func writeInstructions(w *binary.Writer, instrs []Instruction) {
	for _, in := range instrs {
		writeInstruction(w, in)
	}
}

func writeInstruction(w *binary.Writer, in Instruction) {
	w.Byte(in.Opcode)
	switch imm := in.Imm.(type) {
	case nil:
		if in.Opcode == OpMemorySize || in.Opcode == OpMemoryGrow {
			w.Byte(0x00)
		}
	case BlockImm:
		w.WriteS64(int64(imm.Type))
		writeInstructions(w, imm.Body)
		w.Byte(OpEnd)
	case IfImm:
		w.WriteS64(int64(imm.Type))
		writeInstructions(w, imm.Then)
		if imm.Else != nil {
			w.Byte(OpElse)
			writeInstructions(w, imm.Else)
		}
		w.Byte(OpEnd)
	case BranchImm:
		w.WriteU32(imm.LabelIdx)
	case BrTableImm:
		w.WriteU32(uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			w.WriteU32(l)
		}
		w.WriteU32(imm.Default)
	case CallImm:
		w.WriteU32(imm.FuncIdx)
	case CallIndirectImm:
		w.WriteU32(imm.TypeIdx)
		w.WriteU32(imm.TableIdx)
	case LocalImm:
		w.WriteU32(imm.LocalIdx)
	case GlobalImm:
		w.WriteU32(imm.GlobalIdx)
	case TableImm:
		w.WriteU32(imm.TableIdx)
	case MemoryImm:
		w.WriteU32(imm.Align)
		w.WriteU32(imm.Offset)
	case I32Imm:
		w.WriteS32(imm.Value)
	case I64Imm:
		w.WriteS64(imm.Value)
	case F32Imm:
		w.WriteU32LE(imm.Bits)
	case F64Imm:
		w.WriteU64LE(imm.Bits)
	case RefNullImm:
		w.Byte(byte(imm.Type))
	case RefFuncImm:
		w.WriteU32(imm.FuncIdx)
	case SelectTypeImm:
		writeValTypes(w, imm.Types)
	case MiscImm:
		w.WriteU32(imm.SubOpcode)
		for _, op := range imm.Operands {
			w.WriteU32(op)
		}
		if info, ok := lookupMisc(imm.SubOpcode); ok {
			for i := 0; i < info.reserved; i++ {
				w.Byte(0x00)
			}
		}
	default:
		panic(fmt.Sprintf("wasm: %s has unsupported immediate %T", OpcodeName(in.Opcode), in.Imm))
	}
}

// EncodeInstructions encodes instrs without a trailing end.
func EncodeInstructions(instrs []Instruction) []byte {
	w := binary.NewWriter(sizeInstructions(instrs))
	writeInstructions(w, instrs)
	return w.Bytes()
}

// EncodeExpression encodes instrs followed by end.
func EncodeExpression(instrs []Instruction) []byte {
	w := binary.NewWriter(SizeOfExpression(instrs))
	writeExpression(w, instrs)
	return w.Bytes()
}
