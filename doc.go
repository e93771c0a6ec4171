// Package wasmcodec reads, writes and builds WebAssembly core modules.
//
// The codec works on the binary format directly: a module decodes into a
// section model that can be inspected, edited and encoded back to bytes.
// Decoding a module the encoder produced yields an identical model, and
// re-encoding a decoded module reproduces its bytes when the input was
// already canonical.
//
// # Architecture Overview
//
//	wasmcodec/         Root package with the Memory interface shared by hosts
//	├── wasm/          Section model, decoder, encoder, size computation,
//	│                  validation and instruction printing
//	├── builder/       Programmatic module construction
//	├── engine/        Compiles and runs encoded modules on wazero
//	├── errors/        Structured error types with phase and kind
//	└── cmd/wasmdump/  Command line inspector and runner
//
// # Quick Start
//
// Decode, modify and re-encode a module:
//
//	m, err := wasm.DecodeModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m.CustomSections = nil
//	out := m.Encode()
//
// Build a module and run it:
//
//	b := builder.New()
//	b.AddFunction("add", []wasm.ValType{wasm.ValI32, wasm.ValI32},
//	    []wasm.ValType{wasm.ValI32}, []wasm.Instruction{
//	        wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI32Add),
//	    })
//
//	eng, _ := engine.NewWazeroEngine(ctx)
//	defer eng.Close(ctx)
//	cm, err := eng.Compile(ctx, b.Module())
//
// # Supported Features
//
// The instruction set covers the MVP plus the extensions most toolchains
// emit by default:
//
//   - Sign extension and non-trapping float-to-int conversion
//   - Bulk memory and table operations (the 0xFC prefix)
//   - Reference types: funcref and externref values, typed select
//
// SIMD, threads, exception handling and GC opcodes are rejected by the
// decoder as unknown.
//
// # Errors
//
// All packages return *errors.Error values tagged with the phase that
// failed (decode, validate, build, load, runtime) and a kind.
// Use errors.Is with errors.Sentinel to match them.
package wasmcodec
