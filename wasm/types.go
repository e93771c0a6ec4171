package wasm

import (
	"fmt"
	"strings"
)

// Module is a decoded WebAssembly core module. A section whose item list is
// empty (or whose pointer is nil) is absent from the encoded stream.
type Module struct {
	Start          *uint32
	DataCount      *uint32
	Types          []FuncType
	Imports        []Import
	Funcs          []uint32 // type index per locally defined function
	Tables         []TableType
	Memories       []Limits
	Globals        []Global
	Exports        []Export
	Elements       []Element
	Code           []FuncBody
	Data           []DataSegment
	CustomSections []CustomSection
}

// ValType is a value type byte.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(v))
	}
}

// IsNumeric reports whether v is one of i32, i64, f32, f64.
func (v ValType) IsNumeric() bool {
	return v == ValI32 || v == ValI64 || v == ValF32 || v == ValF64
}

// IsRef reports whether v is funcref or externref.
func (v ValType) IsRef() bool {
	return v == ValFuncRef || v == ValExternRef
}

// Valid reports whether v is a known value type.
func (v ValType) Valid() bool {
	return v.IsNumeric() || v.IsRef()
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (f FuncType) String() string {
	return "(" + joinValTypes(f.Params) + ") -> (" + joinValTypes(f.Results) + ")"
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

func joinValTypes(types []ValType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// Limits is a resizable range. A nil Max means unbounded.
type Limits struct {
	Max *uint32
	Min uint32
}

// TableType describes a table of references.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Import is a single entry of the import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// ImportDesc is keyed by Kind; only the matching field is meaningful.
type ImportDesc struct {
	Table   TableType
	Memory  Limits
	Global  GlobalType
	TypeIdx uint32
	Kind    byte
}

// Global is a module-defined global with its initializer expression.
// Init does not include the terminating end.
type Global struct {
	Init []Instruction
	Type GlobalType
}

// Export is a single entry of the export section.
type Export struct {
	Name string
	Idx  uint32
	Kind byte
}

// Element is an element segment. Flags selects one of eight encodings:
//
//	bit 0: passive (bit 1 clear) or declarative (bit 1 set)
//	bit 1: explicit table index when active
//	bit 2: initializers are expressions instead of function indices
type Element struct {
	Offset   []Instruction
	FuncIdxs []uint32
	Init     [][]Instruction
	Flags    uint32
	TableIdx uint32
	ElemKind byte
	RefType  ValType
}

// IsActive reports whether the segment is copied into a table at instantiation.
func (e Element) IsActive() bool { return e.Flags&0x01 == 0 }

// IsPassive reports whether the segment is only available to table.init.
func (e Element) IsPassive() bool { return e.Flags&0x03 == 0x01 }

// IsDeclarative reports whether the segment only forward-declares references.
func (e Element) IsDeclarative() bool { return e.Flags&0x03 == 0x03 }

// UsesExprs reports whether Init holds expressions rather than FuncIdxs.
func (e Element) UsesExprs() bool { return e.Flags&0x04 != 0 }

func (e Element) hasTableIdx() bool { return e.Flags&0x03 == 0x02 }

func (e Element) hasKind() bool { return e.Flags&0x03 != 0 }

// DataSegment is a data segment.
//
//	Flags 0: active in memory 0
//	Flags 1: passive
//	Flags 2: active in MemIdx
type DataSegment struct {
	Offset []Instruction
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// IsActive reports whether the segment is copied into memory at instantiation.
func (d DataSegment) IsActive() bool { return d.Flags != 1 }

// LocalEntry is a run of Count locals of the same type.
type LocalEntry struct {
	Count uint32
	Type  ValType
}

// FuncBody is a code section entry. Body does not include the final end.
type FuncBody struct {
	Locals []LocalEntry
	Body   []Instruction
}

// NumLocals returns the total number of declared locals.
func (f FuncBody) NumLocals() uint64 {
	var n uint64
	for _, l := range f.Locals {
		n += uint64(l.Count)
	}
	return n
}

// CustomSection is a named opaque section. After records the standard
// section it followed so the encoder can put it back in place. SectionData
// anchors a section to the end of the module.
type CustomSection struct {
	Name  string
	Data  []byte
	After SectionID
}

// NumImportedFuncs returns the number of imported functions.
func (m *Module) NumImportedFuncs() int {
	return m.countImports(KindFunc)
}

// NumImportedTables returns the number of imported tables.
func (m *Module) NumImportedTables() int {
	return m.countImports(KindTable)
}

// NumImportedMemories returns the number of imported memories.
func (m *Module) NumImportedMemories() int {
	return m.countImports(KindMemory)
}

// NumImportedGlobals returns the number of imported globals.
func (m *Module) NumImportedGlobals() int {
	return m.countImports(KindGlobal)
}

func (m *Module) countImports(kind byte) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			n++
		}
	}
	return n
}

// GetFuncType returns the signature of a function in the combined
// import-then-local index space, or nil if out of range.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	var typeIdx uint32
	imported := uint32(0)
	found := false
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if imported == funcIdx {
			typeIdx = imp.Desc.TypeIdx
			found = true
			break
		}
		imported++
	}
	if !found {
		local := funcIdx - imported
		if funcIdx < imported || int(local) >= len(m.Funcs) {
			return nil
		}
		typeIdx = m.Funcs[local]
	}
	if int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// AddType returns the index of ft, appending it if no identical type exists.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// ExportByName returns the export with the given name.
func (m *Module) ExportByName(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}
