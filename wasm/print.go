package wasm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// String renders the instruction in text-format syntax. Nested bodies are
// not included; use PrintExpression for a full listing.
func (i Instruction) String() string {
	name := OpcodeName(i.Opcode)
	switch imm := i.Imm.(type) {
	case nil:
		return name
	case BlockImm:
		return name + blockTypeSuffix(imm.Type)
	case IfImm:
		return name + blockTypeSuffix(imm.Type)
	case BranchImm:
		return name + " " + u32(imm.LabelIdx)
	case BrTableImm:
		var b strings.Builder
		b.WriteString(name)
		for _, l := range imm.Labels {
			b.WriteByte(' ')
			b.WriteString(u32(l))
		}
		b.WriteByte(' ')
		b.WriteString(u32(imm.Default))
		return b.String()
	case CallImm:
		return name + " " + u32(imm.FuncIdx)
	case CallIndirectImm:
		return fmt.Sprintf("%s %d (type %d)", name, imm.TableIdx, imm.TypeIdx)
	case LocalImm:
		return name + " " + u32(imm.LocalIdx)
	case GlobalImm:
		return name + " " + u32(imm.GlobalIdx)
	case TableImm:
		return name + " " + u32(imm.TableIdx)
	case MemoryImm:
		return fmt.Sprintf("%s offset=%d align=%d", name, imm.Offset, uint64(1)<<min(imm.Align, 63))
	case I32Imm:
		return name + " " + strconv.FormatInt(int64(imm.Value), 10)
	case I64Imm:
		return name + " " + strconv.FormatInt(imm.Value, 10)
	case F32Imm:
		return name + " " + strconv.FormatFloat(float64(imm.Value()), 'g', -1, 32)
	case F64Imm:
		return name + " " + strconv.FormatFloat(imm.Value(), 'g', -1, 64)
	case RefNullImm:
		return name + " " + heapType(imm.Type)
	case RefFuncImm:
		return name + " " + u32(imm.FuncIdx)
	case SelectTypeImm:
		return name + " (result " + joinSpaced(imm.Types) + ")"
	case MiscImm:
		var b strings.Builder
		b.WriteString(MiscName(imm.SubOpcode))
		for _, op := range imm.Operands {
			b.WriteByte(' ')
			b.WriteString(u32(op))
		}
		return b.String()
	default:
		return fmt.Sprintf("%s %v", name, imm)
	}
}

func u32(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

func blockTypeSuffix(bt BlockType) string {
	if bt.IsEmpty() {
		return ""
	}
	if idx, ok := bt.TypeIndex(); ok {
		return " (type " + u32(idx) + ")"
	}
	if vt, ok := bt.ValType(); ok {
		return " (result " + vt.String() + ")"
	}
	return fmt.Sprintf(" (blocktype %d)", int64(bt))
}

func heapType(v ValType) string {
	switch v {
	case ValFuncRef:
		return "func"
	case ValExternRef:
		return "extern"
	}
	return v.String()
}

func joinSpaced(types []ValType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// PrintExpression writes one instruction per line, indenting nested bodies
// by two spaces per level and closing them with explicit else and end lines.
func PrintExpression(w io.Writer, instrs []Instruction, indent int) error {
	p := printer{w: w}
	p.seq(instrs, indent)
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(indent int, s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", indent), s)
}

func (p *printer) seq(instrs []Instruction, indent int) {
	for _, in := range instrs {
		p.line(indent, in.String())
		switch imm := in.Imm.(type) {
		case BlockImm:
			p.seq(imm.Body, indent+1)
			p.line(indent, "end")
		case IfImm:
			p.seq(imm.Then, indent+1)
			if imm.Else != nil {
				p.line(indent, "else")
				p.seq(imm.Else, indent+1)
			}
			p.line(indent, "end")
		}
	}
}
