// Package builder assembles core modules programmatically.
//
// A Builder owns one wasm.Module and keeps its index spaces consistent:
// imports are numbered before local definitions, function types are
// deduplicated, and every added function gets a matching code body.
package builder

import (
	"fmt"

	"github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm"
)

// Builder incrementally constructs a module.
type Builder struct {
	m *wasm.Module
}

// New returns a Builder over an empty module.
func New() *Builder {
	return &Builder{m: &wasm.Module{}}
}

// AddType returns the index of the signature, adding it if needed.
func (b *Builder) AddType(params, results []wasm.ValType) uint32 {
	return b.m.AddType(wasm.FuncType{Params: params, Results: results})
}

// ImportFunction adds a function import and returns its function index.
// Imports must precede local functions so existing indices stay stable.
func (b *Builder) ImportFunction(module, name string, params, results []wasm.ValType) (uint32, error) {
	if len(b.m.Funcs) > 0 {
		return 0, errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Path("import", module, name).
			Detail("function import after %d local functions", len(b.m.Funcs)).
			Build()
	}
	typeIdx := b.AddType(params, results)
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module: module,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: typeIdx},
	})
	return uint32(b.m.NumImportedFuncs() - 1), nil
}

// ImportMemory adds a memory import and returns its memory index.
func (b *Builder) ImportMemory(module, name string, limits wasm.Limits) (uint32, error) {
	if len(b.m.Memories) > 0 {
		return 0, errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			Path("import", module, name).
			Detail("memory import after local memory").
			Build()
	}
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module: module,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindMemory, Memory: limits},
	})
	return uint32(b.m.NumImportedMemories() - 1), nil
}

// AddFunction adds a function with its body and returns its index in the
// function index space. A non-empty name also exports it.
func (b *Builder) AddFunction(name string, params, results []wasm.ValType, body []wasm.Instruction) uint32 {
	typeIdx := b.AddType(params, results)
	b.m.Funcs = append(b.m.Funcs, typeIdx)
	b.m.Code = append(b.m.Code, wasm.FuncBody{Body: body})

	idx := uint32(b.m.NumImportedFuncs() + len(b.m.Funcs) - 1)
	if name != "" {
		b.Export(name, wasm.KindFunc, idx)
	}
	return idx
}

// SetBody replaces the body of a local function.
func (b *Builder) SetBody(funcIdx uint32, body []wasm.Instruction) error {
	code, err := b.code(funcIdx)
	if err != nil {
		return err
	}
	code.Body = body
	return nil
}

// AddLocal declares a local of type vt in a local function and returns the
// local index, counting parameters first. Consecutive locals of the same
// type share one run.
func (b *Builder) AddLocal(funcIdx uint32, vt wasm.ValType) (uint32, error) {
	code, err := b.code(funcIdx)
	if err != nil {
		return 0, err
	}
	idx := code.NumLocals()
	if ft := b.m.GetFuncType(funcIdx); ft != nil {
		idx += uint64(len(ft.Params))
	}
	if n := len(code.Locals); n > 0 && code.Locals[n-1].Type == vt {
		code.Locals[n-1].Count++
	} else {
		code.Locals = append(code.Locals, wasm.LocalEntry{Count: 1, Type: vt})
	}
	return uint32(idx), nil
}

func (b *Builder) code(funcIdx uint32) (*wasm.FuncBody, error) {
	imported := uint32(b.m.NumImportedFuncs())
	if funcIdx < imported {
		err := errors.InvalidInput(errors.PhaseBuild, "function is imported")
		err.Path = []string{fmt.Sprintf("func[%d]", funcIdx)}
		return nil, err
	}
	local := int(funcIdx - imported)
	if local >= len(b.m.Code) {
		return nil, errors.OutOfBounds(errors.PhaseBuild, []string{fmt.Sprintf("func[%d]", funcIdx)},
			int(funcIdx), int(imported)+len(b.m.Code))
	}
	return &b.m.Code[local], nil
}

// AddMemory adds a linear memory and returns its memory index.
func (b *Builder) AddMemory(min uint32, max *uint32) uint32 {
	b.m.Memories = append(b.m.Memories, wasm.Limits{Min: min, Max: max})
	return uint32(b.m.NumImportedMemories() + len(b.m.Memories) - 1)
}

// ExportMemory exports memory idx under name.
func (b *Builder) ExportMemory(name string, idx uint32) {
	b.Export(name, wasm.KindMemory, idx)
}

// AddTable adds a table and returns its table index.
func (b *Builder) AddTable(elemType wasm.ValType, min uint32, max *uint32) uint32 {
	b.m.Tables = append(b.m.Tables, wasm.TableType{
		ElemType: elemType,
		Limits:   wasm.Limits{Min: min, Max: max},
	})
	return uint32(b.m.NumImportedTables() + len(b.m.Tables) - 1)
}

// AddGlobal adds a global with a constant initializer and returns its index.
func (b *Builder) AddGlobal(vt wasm.ValType, mutable bool, init []wasm.Instruction) uint32 {
	b.m.Globals = append(b.m.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: vt, Mutable: mutable},
		Init: init,
	})
	return uint32(b.m.NumImportedGlobals() + len(b.m.Globals) - 1)
}

// Export adds an export entry.
func (b *Builder) Export(name string, kind byte, idx uint32) {
	b.m.Exports = append(b.m.Exports, wasm.Export{Name: name, Kind: kind, Idx: idx})
}

// AddData adds an active data segment at a constant offset in memory memIdx.
func (b *Builder) AddData(memIdx uint32, offset int32, data []byte) uint32 {
	seg := wasm.DataSegment{
		MemIdx: memIdx,
		Offset: []wasm.Instruction{wasm.I32Const(offset)},
		Init:   data,
	}
	if memIdx != 0 {
		seg.Flags = 2
	}
	b.m.Data = append(b.m.Data, seg)
	return uint32(len(b.m.Data) - 1)
}

// AddPassiveData adds a passive data segment for memory.init and records
// the data count the bulk memory instructions require.
func (b *Builder) AddPassiveData(data []byte) uint32 {
	b.m.Data = append(b.m.Data, wasm.DataSegment{Flags: 1, Init: data})
	n := uint32(len(b.m.Data))
	b.m.DataCount = &n
	return n - 1
}

// AddElement adds an active element segment placing function references in
// table tableIdx at a constant offset.
func (b *Builder) AddElement(tableIdx uint32, offset int32, funcIdxs ...uint32) uint32 {
	el := wasm.Element{
		TableIdx: tableIdx,
		Offset:   []wasm.Instruction{wasm.I32Const(offset)},
		FuncIdxs: funcIdxs,
	}
	if tableIdx != 0 {
		el.Flags = 2
	}
	b.m.Elements = append(b.m.Elements, el)
	return uint32(len(b.m.Elements) - 1)
}

// SetStart marks funcIdx as the start function.
func (b *Builder) SetStart(funcIdx uint32) {
	b.m.Start = &funcIdx
}

// AddCustomSection appends a custom section after all standard sections.
func (b *Builder) AddCustomSection(name string, data []byte) {
	b.m.CustomSections = append(b.m.CustomSections, wasm.CustomSection{
		Name:  name,
		Data:  data,
		After: wasm.SectionData,
	})
}

// Module returns the module under construction. Later builder calls keep
// modifying it.
func (b *Builder) Module() *wasm.Module {
	if b.m.DataCount != nil {
		n := uint32(len(b.m.Data))
		b.m.DataCount = &n
	}
	return b.m
}

// Encode validates the module and returns its binary form.
func (b *Builder) Encode() ([]byte, error) {
	m := b.Module()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m.Encode(), nil
}
