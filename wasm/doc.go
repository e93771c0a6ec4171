// Package wasm decodes and encodes WebAssembly binary modules.
//
// The codec covers the MVP instruction set plus sign extension, reference
// types, non-trapping float-to-int conversions and bulk memory. A decoded
// module re-encodes to the same bytes when the input was produced by a
// conforming encoder.
//
// # Decoding
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.DecodeModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Decoding stops at the first structural problem. Errors are *errors.Error
// values and match the package sentinels:
//
//	if errors.Is(err, wasm.ErrSectionLengthMismatch) { ... }
//
// DecodeModuleWithConfig adds canonical order enforcement, a validation pass
// and a per-call logger.
//
// # Encoding
//
// Encoding measures the module first and writes into a single buffer of the
// computed size:
//
//	sizes := wasm.ComputeSize(module)
//	encoded := module.Encode() // len(encoded) == sizes.Total
//
// A disagreement between the two passes is a bug in this package and panics
// with *SizeMismatchError.
//
// # Module Structure
//
//	module.Types          []FuncType      // function signatures
//	module.Imports        []Import        // imported definitions
//	module.Funcs          []uint32        // type index per local function
//	module.Tables         []TableType     // table definitions
//	module.Memories       []Limits        // memory definitions
//	module.Globals        []Global        // global definitions
//	module.Exports        []Export        // exported definitions
//	module.Start          *uint32         // start function
//	module.Elements       []Element       // element segments
//	module.DataCount      *uint32         // data count section
//	module.Code           []FuncBody      // function bodies
//	module.Data           []DataSegment   // data segments
//	module.CustomSections []CustomSection // custom sections, in order
//
// # Instructions
//
// Bodies are trees: block, loop and if carry their nested sequences in the
// immediate, and the closing end bytes are implicit.
//
//	for _, in := range module.Code[0].Body {
//	    fmt.Println(in)
//	}
//
// PrintExpression renders a whole body with indentation.
//
// # Validation
//
// Module.Validate checks counts, index ranges and export names. It does not
// type-check instruction sequences.
package wasm
