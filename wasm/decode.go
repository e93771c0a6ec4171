package wasm

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm/internal/binary"
)

// maxNestingDepth bounds block, loop and if nesting while decoding.
const maxNestingDepth = 1 << 14

// DecodeConfig controls optional decoder behaviour. The zero value decodes
// sections in any order and skips validation.
type DecodeConfig struct {
	// Logger receives per-section debug events. Nil uses Logger().
	Logger *zap.Logger
	// RequireOrder rejects standard sections that are out of canonical order.
	RequireOrder bool
	// Validate runs Module.Validate on the decoded module.
	Validate bool
}

// DecodeModule parses a WebAssembly binary module.
func DecodeModule(data []byte) (*Module, error) {
	return DecodeModuleWithConfig(data, nil)
}

// DecodeModuleWithConfig parses a WebAssembly binary module. Decoding stops at
// the first structural error; no partial module is returned.
func DecodeModuleWithConfig(data []byte, cfg *DecodeConfig) (*Module, error) {
	if cfg == nil {
		cfg = &DecodeConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	if err := checkPreamble(data); err != nil {
		return nil, err
	}

	d := &decoder{data: data, log: log}
	m := &Module{}

	var seen [numSections]bool
	lastOrder := 0
	after := SectionCustom
	// customs decoded since the last standard section
	trailing := 0

	pos := preambleSize
	for pos < len(data) {
		idOff := pos
		b := data[pos]
		r := binary.NewReaderAt(data, pos+1)
		if int(b) >= numSections {
			return nil, errors.New(errors.PhaseDecode, errors.KindUnknownSection).
				Offset(idOff).
				Value(b).
				Detail("unknown section id 0x%02x", b).
				Build()
		}
		id := SectionID(b)
		r.SetSection(id.String())

		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		start := r.Position()
		end := start + int(size)
		if end > len(data) {
			return nil, errors.New(errors.PhaseDecode, errors.KindTruncated).
				Section(id.String()).
				Offset(start).
				Value(size).
				Detail("section declares %d bytes, %d remain", size, len(data)-start).
				Build()
		}

		if id != SectionCustom {
			if seen[id] {
				return nil, errors.New(errors.PhaseDecode, errors.KindDuplicateSection).
					Section(id.String()).
					Offset(idOff).
					Value(id).
					Detail("%s section appears more than once", id).
					Build()
			}
			seen[id] = true
			order := sectionOrder(id)
			if cfg.RequireOrder && order < lastOrder {
				return nil, errors.New(errors.PhaseDecode, errors.KindSectionOrder).
					Section(id.String()).
					Offset(idOff).
					Value(id).
					Detail("%s section follows %s section", id, canonicalOrder[lastOrder-1]).
					Build()
			}
			lastOrder = max(lastOrder, order)
		}

		log.Debug("decoding section",
			zap.Stringer("section", id),
			zap.Int("offset", idOff),
			zap.Uint32("size", size))

		sr := binary.NewReaderAt(data[:end], start)
		sr.SetSection(id.String())
		if err := d.section(sr, id, m, after); err != nil {
			return nil, d.bounded(err, id.String(), nil, start, size, end)
		}
		if sr.Position() != end {
			return nil, errors.LengthMismatch(id.String(), start, int(size), sr.Position()-start)
		}

		if id != SectionCustom {
			after = id
			trailing = len(m.CustomSections)
		}
		pos = end
	}

	// Customs after the last standard section anchor to the end of the module.
	for i := trailing; i < len(m.CustomSections); i++ {
		m.CustomSections[i].After = SectionData
	}

	log.Debug("decoded module",
		zap.Int("bytes", len(data)),
		zap.Int("types", len(m.Types)),
		zap.Int("funcs", len(m.Funcs)),
		zap.Int("custom", len(m.CustomSections)))

	if cfg.Validate {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func checkPreamble(data []byte) error {
	if len(data) < preambleSize {
		return errors.New(errors.PhaseDecode, errors.KindInvalidPreamble).
			Offset(0).
			Detail("need %d bytes, have %d", preambleSize, len(data)).
			Build()
	}
	// Both reads are covered by the length check above.
	r := binary.NewReader(data)
	magic, _ := r.ReadU32LE()
	if magic != Magic {
		return errors.New(errors.PhaseDecode, errors.KindInvalidPreamble).
			Offset(0).
			Value(magic).
			Detail("bad magic % x", data[:4]).
			Build()
	}
	version, _ := r.ReadU32LE()
	if version != Version {
		return errors.New(errors.PhaseDecode, errors.KindInvalidPreamble).
			Offset(4).
			Value(version).
			Detail("unsupported version %d", version).
			Build()
	}
	return nil
}

// DecodeExpression decodes a single expression terminated by end. The
// terminator is consumed and not included in the result.
func DecodeExpression(data []byte) ([]Instruction, error) {
	r := binary.NewReader(data)
	instrs, _, err := readSeq(r, false, 0)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindLengthMismatch).
			Offset(r.Position()).
			Value(r.Len()).
			Detail("%d trailing bytes after end", r.Len()).
			Build()
	}
	return instrs, nil
}

// DecodeInstructions decodes a raw instruction stream with no terminator.
func DecodeInstructions(data []byte) ([]Instruction, error) {
	r := binary.NewReader(data)
	var out []Instruction
	for r.Len() > 0 {
		off := r.Position()
		op, _ := r.ReadByte()
		if op == OpEnd || op == OpElse {
			return nil, unexpectedControl(r, off, op)
		}
		in, err := readInstruction(r, op, off, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

type decoder struct {
	data []byte
	log  *zap.Logger
}

// bounded turns a read past a section or body boundary into a length
// mismatch. Reads past the real end of input stay truncation errors.
func (d *decoder) bounded(err error, section string, path []string, start int, size uint32, end int) error {
	var e *errors.Error
	if end >= len(d.data) || !stderrors.As(err, &e) || e.Kind != errors.KindTruncated {
		return err
	}
	return errors.New(errors.PhaseDecode, errors.KindLengthMismatch).
		Section(section).
		Path(path...).
		Offset(start).
		Value(size).
		Cause(err).
		Detail("declared %d bytes, contents extend past %d", size, end).
		Build()
}

func (d *decoder) section(r *binary.Reader, id SectionID, m *Module, after SectionID) error {
	var err error
	switch id {
	case SectionCustom:
		err = decodeCustomSection(r, m, after)
	case SectionType:
		m.Types, err = readVec(r, readFuncType)
	case SectionImport:
		m.Imports, err = readVec(r, readImport)
	case SectionFunction:
		m.Funcs, err = readVec(r, (*binary.Reader).ReadU32)
	case SectionTable:
		m.Tables, err = readVec(r, readTableType)
	case SectionMemory:
		m.Memories, err = readVec(r, readLimits)
	case SectionGlobal:
		m.Globals, err = readVec(r, readGlobal)
	case SectionExport:
		m.Exports, err = readVec(r, readExport)
	case SectionStart:
		var idx uint32
		idx, err = r.ReadU32()
		m.Start = &idx
	case SectionElement:
		m.Elements, err = readVec(r, readElement)
	case SectionCode:
		err = d.decodeCodeSection(r, m)
	case SectionData:
		m.Data, err = readVec(r, readDataSegment)
	case SectionDataCount:
		var n uint32
		n, err = r.ReadU32()
		m.DataCount = &n
	}
	return err
}

func decodeCustomSection(r *binary.Reader, m *Module, after SectionID) error {
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(r.Len())
	if err != nil {
		return err
	}
	m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: data, After: after})
	return nil
}

func (d *decoder) decodeCodeSection(r *binary.Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	m.Code = make([]FuncBody, 0, min(int(count), r.Len()))
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		start := r.Position()
		end := start + int(size)
		if end > start+r.Len() {
			return errors.New(errors.PhaseDecode, errors.KindTruncated).
				Section(r.Section()).
				Path(fmt.Sprintf("func[%d]", i)).
				Offset(start).
				Value(size).
				Detail("body declares %d bytes, %d remain", size, r.Len()).
				Build()
		}

		path := []string{fmt.Sprintf("func[%d]", i)}
		br := binary.NewReaderAt(d.data[:end], start)
		br.SetSection(r.Section())
		body, err := readFuncBody(br)
		if err != nil {
			if e, ok := err.(*errors.Error); ok && e.Path == nil {
				e.Path = path
			}
			return d.bounded(err, r.Section(), path, start, size, end)
		}
		if br.Position() != end {
			e := errors.LengthMismatch(r.Section(), start, int(size), br.Position()-start)
			e.Path = path
			return e
		}
		m.Code = append(m.Code, body)

		if err := r.Skip(int(size)); err != nil {
			return err
		}
	}
	d.log.Debug("decoded code bodies", zap.Int("count", len(m.Code)))
	return nil
}

// readVec reads a LEB128 count followed by that many items. The initial
// capacity is capped by the remaining input so a hostile count cannot force
// a large allocation.
func readVec[T any](r *binary.Reader, item func(*binary.Reader) (T, error)) ([]T, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	out := make([]T, 0, min(int(count), r.Len()))
	for i := uint32(0); i < count; i++ {
		v, err := item(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readValType(r *binary.Reader) (ValType, error) {
	off := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	v := ValType(b)
	if !v.Valid() {
		return 0, invalidFlag(r, off, "value type", b)
	}
	return v, nil
}

func readRefType(r *binary.Reader) (ValType, error) {
	off := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	v := ValType(b)
	if !v.IsRef() {
		return 0, invalidFlag(r, off, "reference type", b)
	}
	return v, nil
}

func readFuncType(r *binary.Reader) (FuncType, error) {
	off := r.Position()
	tag, err := r.ReadByte()
	if err != nil {
		return FuncType{}, err
	}
	if tag != FuncTypeByte {
		return FuncType{}, invalidFlag(r, off, "func type tag", tag)
	}
	params, err := readVec(r, readValType)
	if err != nil {
		return FuncType{}, err
	}
	results, err := readVec(r, readValType)
	if err != nil {
		return FuncType{}, err
	}
	return FuncType{Params: params, Results: results}, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	off := r.Position()
	flag, err := r.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flag != LimitsNoMax && flag != LimitsHasMax {
		return Limits{}, invalidFlag(r, off, "limits flag", flag)
	}
	lim := Limits{}
	if lim.Min, err = r.ReadU32(); err != nil {
		return Limits{}, err
	}
	if flag == LimitsHasMax {
		maxPages, err := r.ReadU32()
		if err != nil {
			return Limits{}, err
		}
		lim.Max = &maxPages
	}
	return lim, nil
}

func readTableType(r *binary.Reader) (TableType, error) {
	elem, err := readRefType(r)
	if err != nil {
		return TableType{}, err
	}
	lim, err := readLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: lim}, nil
}

func readGlobalType(r *binary.Reader) (GlobalType, error) {
	vt, err := readValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	off := r.Position()
	mut, err := r.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, invalidFlag(r, off, "mutability", mut)
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

func readImport(r *binary.Reader) (Import, error) {
	var imp Import
	var err error
	if imp.Module, err = r.ReadName(); err != nil {
		return Import{}, err
	}
	if imp.Name, err = r.ReadName(); err != nil {
		return Import{}, err
	}
	off := r.Position()
	if imp.Desc.Kind, err = r.ReadByte(); err != nil {
		return Import{}, err
	}
	switch imp.Desc.Kind {
	case KindFunc:
		imp.Desc.TypeIdx, err = r.ReadU32()
	case KindTable:
		imp.Desc.Table, err = readTableType(r)
	case KindMemory:
		imp.Desc.Memory, err = readLimits(r)
	case KindGlobal:
		imp.Desc.Global, err = readGlobalType(r)
	default:
		return Import{}, invalidFlag(r, off, "import kind", imp.Desc.Kind)
	}
	if err != nil {
		return Import{}, err
	}
	return imp, nil
}

func readGlobal(r *binary.Reader) (Global, error) {
	gt, err := readGlobalType(r)
	if err != nil {
		return Global{}, err
	}
	init, _, err := readSeq(r, false, 0)
	if err != nil {
		return Global{}, err
	}
	return Global{Type: gt, Init: init}, nil
}

func readExport(r *binary.Reader) (Export, error) {
	name, err := r.ReadName()
	if err != nil {
		return Export{}, err
	}
	off := r.Position()
	kind, err := r.ReadByte()
	if err != nil {
		return Export{}, err
	}
	if kind > KindGlobal {
		return Export{}, invalidFlag(r, off, "export kind", kind)
	}
	idx, err := r.ReadU32()
	if err != nil {
		return Export{}, err
	}
	return Export{Name: name, Kind: kind, Idx: idx}, nil
}

func readExpression(r *binary.Reader) ([]Instruction, error) {
	instrs, _, err := readSeq(r, false, 0)
	return instrs, err
}

func readElement(r *binary.Reader) (Element, error) {
	off := r.Position()
	flags, err := r.ReadU32()
	if err != nil {
		return Element{}, err
	}
	if flags > 7 {
		return Element{}, invalidFlag(r, off, "element flags", flags)
	}
	el := Element{Flags: flags}
	if el.hasTableIdx() {
		if el.TableIdx, err = r.ReadU32(); err != nil {
			return Element{}, err
		}
	}
	if el.IsActive() {
		if el.Offset, err = readExpression(r); err != nil {
			return Element{}, err
		}
	}
	if el.hasKind() {
		if el.UsesExprs() {
			if el.RefType, err = readRefType(r); err != nil {
				return Element{}, err
			}
		} else {
			kindOff := r.Position()
			if el.ElemKind, err = r.ReadByte(); err != nil {
				return Element{}, err
			}
			if el.ElemKind != ElemKindFuncRef {
				return Element{}, invalidFlag(r, kindOff, "element kind", el.ElemKind)
			}
		}
	}
	if el.UsesExprs() {
		el.Init, err = readVec(r, readExpression)
	} else {
		el.FuncIdxs, err = readVec(r, (*binary.Reader).ReadU32)
	}
	if err != nil {
		return Element{}, err
	}
	return el, nil
}

func readDataSegment(r *binary.Reader) (DataSegment, error) {
	off := r.Position()
	flags, err := r.ReadU32()
	if err != nil {
		return DataSegment{}, err
	}
	if flags > 2 {
		return DataSegment{}, invalidFlag(r, off, "data flags", flags)
	}
	seg := DataSegment{Flags: flags}
	if flags == 2 {
		if seg.MemIdx, err = r.ReadU32(); err != nil {
			return DataSegment{}, err
		}
	}
	if seg.IsActive() {
		if seg.Offset, err = readExpression(r); err != nil {
			return DataSegment{}, err
		}
	}
	n, err := r.ReadU32()
	if err != nil {
		return DataSegment{}, err
	}
	if seg.Init, err = r.ReadBytes(int(n)); err != nil {
		return DataSegment{}, err
	}
	return seg, nil
}

func readLocalEntry(r *binary.Reader) (LocalEntry, error) {
	count, err := r.ReadU32()
	if err != nil {
		return LocalEntry{}, err
	}
	vt, err := readValType(r)
	if err != nil {
		return LocalEntry{}, err
	}
	return LocalEntry{Count: count, Type: vt}, nil
}

func readFuncBody(r *binary.Reader) (FuncBody, error) {
	locals, err := readVec(r, readLocalEntry)
	if err != nil {
		return FuncBody{}, err
	}
	body, err := readExpression(r)
	if err != nil {
		return FuncBody{}, err
	}
	return FuncBody{Locals: locals, Body: body}, nil
}

// readSeq reads instructions up to end, or up to else when allowElse is set,
// and reports which terminator it consumed.
func readSeq(r *binary.Reader, allowElse bool, depth int) ([]Instruction, byte, error) {
	if depth > maxNestingDepth {
		return nil, 0, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Section(r.Section()).
			Offset(r.Position()).
			Detail("blocks nested deeper than %d", maxNestingDepth).
			Build()
	}
	var out []Instruction
	for {
		off := r.Position()
		op, err := r.ReadByte()
		if err != nil {
			return nil, 0, err
		}
		switch {
		case op == OpEnd:
			return out, op, nil
		case op == OpElse && allowElse:
			return out, op, nil
		case op == OpElse:
			return nil, 0, unexpectedControl(r, off, op)
		}
		in, err := readInstruction(r, op, off, depth)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, in)
	}
}

func readInstruction(r *binary.Reader, op byte, off, depth int) (Instruction, error) {
	info := opTable[op]
	if info.name == "" {
		return Instruction{}, errors.New(errors.PhaseDecode, errors.KindUnknownOpcode).
			Section(r.Section()).
			Offset(off).
			Value(op).
			Detail("unknown opcode 0x%02x", op).
			Build()
	}

	in := Instruction{Opcode: op}
	var err error
	switch info.shape {
	case shapeNone:
	case shapeMemReserved:
		err = readReserved(r, "memory index")
	case shapeBlock:
		var imm BlockImm
		if imm.Type, err = readBlockType(r); err != nil {
			break
		}
		imm.Body, _, err = readSeq(r, false, depth+1)
		in.Imm = imm
	case shapeIf:
		in.Imm, err = readIf(r, depth)
	case shapeBranch:
		var imm BranchImm
		imm.LabelIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeBrTable:
		var imm BrTableImm
		if imm.Labels, err = readVec(r, (*binary.Reader).ReadU32); err != nil {
			break
		}
		imm.Default, err = r.ReadU32()
		in.Imm = imm
	case shapeCall:
		var imm CallImm
		imm.FuncIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeCallIndirect:
		var imm CallIndirectImm
		if imm.TypeIdx, err = r.ReadU32(); err != nil {
			break
		}
		imm.TableIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeLocal:
		var imm LocalImm
		imm.LocalIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeGlobal:
		var imm GlobalImm
		imm.GlobalIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeTable:
		var imm TableImm
		imm.TableIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeMemArg:
		var imm MemoryImm
		if imm.Align, err = r.ReadU32(); err != nil {
			break
		}
		imm.Offset, err = r.ReadU32()
		in.Imm = imm
	case shapeI32:
		var imm I32Imm
		imm.Value, err = r.ReadS32()
		in.Imm = imm
	case shapeI64:
		var imm I64Imm
		imm.Value, err = r.ReadS64()
		in.Imm = imm
	case shapeF32:
		var imm F32Imm
		imm.Bits, err = r.ReadU32LE()
		in.Imm = imm
	case shapeF64:
		var imm F64Imm
		imm.Bits, err = r.ReadU64LE()
		in.Imm = imm
	case shapeRefNull:
		var imm RefNullImm
		imm.Type, err = readRefType(r)
		in.Imm = imm
	case shapeRefFunc:
		var imm RefFuncImm
		imm.FuncIdx, err = r.ReadU32()
		in.Imm = imm
	case shapeSelectType:
		var imm SelectTypeImm
		imm.Types, err = readVec(r, readValType)
		in.Imm = imm
	case shapeMisc:
		in.Imm, err = readMisc(r)
	}
	if err != nil {
		return Instruction{}, err
	}
	return in, nil
}

func readBlockType(r *binary.Reader) (BlockType, error) {
	off := r.Position()
	v, err := r.ReadS33()
	if err != nil {
		return 0, err
	}
	bt := BlockType(v)
	if !bt.valid() {
		return 0, invalidFlag(r, off, "block type", v)
	}
	return bt, nil
}

func readIf(r *binary.Reader, depth int) (IfImm, error) {
	var imm IfImm
	var err error
	if imm.Type, err = readBlockType(r); err != nil {
		return IfImm{}, err
	}
	then, term, err := readSeq(r, true, depth+1)
	if err != nil {
		return IfImm{}, err
	}
	imm.Then = then
	if term == OpElse {
		els, _, err := readSeq(r, false, depth+1)
		if err != nil {
			return IfImm{}, err
		}
		if els == nil {
			els = []Instruction{}
		}
		imm.Else = els
	}
	return imm, nil
}

func readMisc(r *binary.Reader) (MiscImm, error) {
	off := r.Position()
	sub, err := r.ReadU32()
	if err != nil {
		return MiscImm{}, err
	}
	info, ok := lookupMisc(sub)
	if !ok {
		return MiscImm{}, errors.New(errors.PhaseDecode, errors.KindUnknownSubOpcode).
			Section(r.Section()).
			Offset(off).
			Value(sub).
			Detail("unknown 0xfc sub-opcode %d", sub).
			Build()
	}
	imm := MiscImm{SubOpcode: sub}
	if info.operands > 0 {
		imm.Operands = make([]uint32, info.operands)
		for i := range imm.Operands {
			if imm.Operands[i], err = r.ReadU32(); err != nil {
				return MiscImm{}, err
			}
		}
	}
	for i := 0; i < info.reserved; i++ {
		if err := readReserved(r, "reserved byte"); err != nil {
			return MiscImm{}, err
		}
	}
	return imm, nil
}

func readReserved(r *binary.Reader, field string) error {
	off := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b != 0x00 {
		return invalidFlag(r, off, field, b)
	}
	return nil
}

func invalidFlag(r *binary.Reader, off int, field string, value any) error {
	e := errors.InvalidFlag(off, field, value)
	e.Section = r.Section()
	return e
}

func unexpectedControl(r *binary.Reader, off int, op byte) error {
	return errors.New(errors.PhaseDecode, errors.KindUnexpectedControl).
		Section(r.Section()).
		Offset(off).
		Value(op).
		Detail("unexpected %s", OpcodeName(op)).
		Build()
}
