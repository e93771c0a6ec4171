package wasm

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-codec/errors"
)

// maxPages is the largest memory size in 64 KiB pages.
const maxPages = 65536

// Validate checks cross-section consistency that decoding alone does not
// guarantee: matching counts, index ranges, unique export names and
// immediates that fit their opcodes. It does not type-check instruction
// sequences. All problems are reported together.
func (m *Module) Validate() error {
	v := &validator{
		m:        m,
		numTypes: len(m.Types),
		numFuncs: m.NumImportedFuncs() + len(m.Funcs),
		numTabs:  m.NumImportedTables() + len(m.Tables),
		numMems:  m.NumImportedMemories() + len(m.Memories),
		numGlobs: m.NumImportedGlobals() + len(m.Globals),
	}
	v.validateCounts()
	v.validateTypeIndices()
	v.validateLimits()
	v.validateGlobals()
	v.validateExports()
	v.validateStart()
	v.validateElements()
	v.validateData()
	v.validateCode()
	return v.err
}

type validator struct {
	m        *Module
	err      error
	numTypes int
	numFuncs int
	numTabs  int
	numMems  int
	numGlobs int
}

func (v *validator) add(err *errors.Error) {
	v.err = multierr.Append(v.err, err)
}

func (v *validator) checkIndex(idx uint32, length int, path ...string) {
	if uint64(idx) >= uint64(length) {
		v.add(errors.OutOfBounds(errors.PhaseValidate, path, int(idx), length))
	}
}

func (v *validator) validateCounts() {
	m := v.m
	if len(m.Funcs) != len(m.Code) {
		v.add(errors.New(errors.PhaseValidate, errors.KindCountMismatch).
			Section(SectionCode.String()).
			Value(len(m.Code)).
			Detail("%d functions declared, %d bodies", len(m.Funcs), len(m.Code)).
			Build())
	}
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		v.add(errors.New(errors.PhaseValidate, errors.KindCountMismatch).
			Section(SectionDataCount.String()).
			Value(*m.DataCount).
			Detail("data count %d, %d segments", *m.DataCount, len(m.Data)).
			Build())
	}
}

func (v *validator) validateTypeIndices() {
	imported := v.m.NumImportedFuncs()
	for i, typeIdx := range v.m.Funcs {
		v.checkIndex(typeIdx, v.numTypes, fmt.Sprintf("func[%d]", imported+i), "type")
	}
	for i, imp := range v.m.Imports {
		if imp.Desc.Kind == KindFunc {
			v.checkIndex(imp.Desc.TypeIdx, v.numTypes, fmt.Sprintf("import[%d]", i), "type")
		}
	}
}

func (v *validator) validateLimits() {
	check := func(l Limits, bound uint32, path string) {
		if l.Max != nil && *l.Max < l.Min {
			v.add(errors.New(errors.PhaseValidate, errors.KindInvalidInput).
				Path(path).
				Detail("limits max %d below min %d", *l.Max, l.Min).
				Build())
		}
		if bound > 0 && (l.Min > bound || (l.Max != nil && *l.Max > bound)) {
			v.add(errors.New(errors.PhaseValidate, errors.KindInvalidInput).
				Path(path).
				Detail("limits exceed %d pages", bound).
				Build())
		}
	}
	for i, mem := range v.m.Memories {
		check(mem, maxPages, fmt.Sprintf("memory[%d]", i))
	}
	for i, t := range v.m.Tables {
		check(t.Limits, 0, fmt.Sprintf("table[%d]", i))
	}
	for i, imp := range v.m.Imports {
		switch imp.Desc.Kind {
		case KindMemory:
			check(imp.Desc.Memory, maxPages, fmt.Sprintf("import[%d]", i))
		case KindTable:
			check(imp.Desc.Table.Limits, 0, fmt.Sprintf("import[%d]", i))
		}
	}
}

func (v *validator) validateGlobals() {
	for i, g := range v.m.Globals {
		v.validateInstructions(g.Init, 0, fmt.Sprintf("global[%d]", i))
	}
}

func (v *validator) validateExports() {
	seen := make(map[string]int, len(v.m.Exports))
	for i, exp := range v.m.Exports {
		path := fmt.Sprintf("export[%d]", i)
		if prev, dup := seen[exp.Name]; dup {
			v.add(errors.New(errors.PhaseValidate, errors.KindDuplicateExport).
				Path(path).
				Value(exp.Name).
				Detail("name %q already exported by export[%d]", exp.Name, prev).
				Build())
		} else {
			seen[exp.Name] = i
		}
		switch exp.Kind {
		case KindFunc:
			v.checkIndex(exp.Idx, v.numFuncs, path, "func")
		case KindTable:
			v.checkIndex(exp.Idx, v.numTabs, path, "table")
		case KindMemory:
			v.checkIndex(exp.Idx, v.numMems, path, "memory")
		case KindGlobal:
			v.checkIndex(exp.Idx, v.numGlobs, path, "global")
		default:
			v.add(errors.New(errors.PhaseValidate, errors.KindInvalidFlag).
				Path(path).
				Value(exp.Kind).
				Detail("invalid export kind 0x%02x", exp.Kind).
				Build())
		}
	}
}

func (v *validator) validateStart() {
	if v.m.Start != nil {
		v.checkIndex(*v.m.Start, v.numFuncs, "start")
	}
}

func (v *validator) validateElements() {
	for i, el := range v.m.Elements {
		path := fmt.Sprintf("elem[%d]", i)
		if el.IsActive() {
			v.checkIndex(el.TableIdx, v.numTabs, path, "table")
			v.validateInstructions(el.Offset, 0, path, "offset")
		}
		for _, idx := range el.FuncIdxs {
			v.checkIndex(idx, v.numFuncs, path, "func")
		}
		for j, expr := range el.Init {
			v.validateInstructions(expr, 0, path, fmt.Sprintf("init[%d]", j))
		}
	}
}

func (v *validator) validateData() {
	for i, d := range v.m.Data {
		path := fmt.Sprintf("data[%d]", i)
		if d.IsActive() {
			v.checkIndex(d.MemIdx, v.numMems, path, "memory")
			v.validateInstructions(d.Offset, 0, path, "offset")
		}
	}
}

func (v *validator) validateCode() {
	imported := v.m.NumImportedFuncs()
	for i, body := range v.m.Code {
		path := fmt.Sprintf("func[%d]", imported+i)
		numLocals := body.NumLocals()
		if i < len(v.m.Funcs) && int(v.m.Funcs[i]) < v.numTypes {
			numLocals += uint64(len(v.m.Types[v.m.Funcs[i]].Params))
		}
		v.validateInstructions(body.Body, numLocals, path)
	}
}

// validateInstructions checks immediates in instrs and every nested body.
func (v *validator) validateInstructions(instrs []Instruction, numLocals uint64, path ...string) {
	n := 0
	Walk(instrs, func(in Instruction) bool {
		at := append(append([]string(nil), path...), fmt.Sprintf("instr[%d]", n))
		n++
		if !IsKnownOpcode(in.Opcode) || !immMatches(in) {
			v.add(errors.New(errors.PhaseValidate, errors.KindInvalidImmediate).
				Path(at...).
				Value(in.Imm).
				Detail("%s cannot carry immediate %T", OpcodeName(in.Opcode), in.Imm).
				Build())
			return false
		}
		v.validateImmediate(in, numLocals, at)
		return true
	})
}

func (v *validator) validateImmediate(in Instruction, numLocals uint64, at []string) {
	m := v.m
	switch imm := in.Imm.(type) {
	case BlockImm:
		v.validateBlockType(imm.Type, at)
	case IfImm:
		v.validateBlockType(imm.Type, at)
	case CallImm:
		v.checkIndex(imm.FuncIdx, v.numFuncs, at...)
	case CallIndirectImm:
		v.checkIndex(imm.TypeIdx, v.numTypes, at...)
		v.checkIndex(imm.TableIdx, v.numTabs, at...)
	case LocalImm:
		if uint64(imm.LocalIdx) >= numLocals {
			v.add(errors.OutOfBounds(errors.PhaseValidate, at, int(imm.LocalIdx), int(numLocals)))
		}
	case GlobalImm:
		v.checkIndex(imm.GlobalIdx, v.numGlobs, at...)
	case TableImm:
		v.checkIndex(imm.TableIdx, v.numTabs, at...)
	case RefFuncImm:
		v.checkIndex(imm.FuncIdx, v.numFuncs, at...)
	case MiscImm:
		switch imm.SubOpcode {
		case MiscMemoryInit, MiscDataDrop:
			v.checkIndex(imm.Operands[0], len(m.Data), at...)
		case MiscTableInit:
			v.checkIndex(imm.Operands[0], len(m.Elements), at...)
			v.checkIndex(imm.Operands[1], v.numTabs, at...)
		case MiscElemDrop:
			v.checkIndex(imm.Operands[0], len(m.Elements), at...)
		case MiscTableCopy:
			v.checkIndex(imm.Operands[0], v.numTabs, at...)
			v.checkIndex(imm.Operands[1], v.numTabs, at...)
		case MiscTableGrow, MiscTableSize, MiscTableFill:
			v.checkIndex(imm.Operands[0], v.numTabs, at...)
		}
	}
}

func (v *validator) validateBlockType(bt BlockType, at []string) {
	if idx, ok := bt.TypeIndex(); ok {
		v.checkIndex(idx, v.numTypes, at...)
		return
	}
	if !bt.valid() {
		v.add(errors.New(errors.PhaseValidate, errors.KindInvalidImmediate).
			Path(at...).
			Value(int64(bt)).
			Detail("invalid block type %d", int64(bt)).
			Build())
	}
}
