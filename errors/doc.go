// Package errors provides structured error types for the wasm-codec library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the section name, item path, byte offset and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindUnknownOpcode).
//		Section("code").
//		Path("func[3]").
//		Offset(120).
//		Detail("opcode 0x%02x", op).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Truncated(offset, 4, 1)
//	err := errors.LengthMismatch("type", offset, declared, actual)
//
// Is compares Phase and Kind only, so a Sentinel works as an errors.Is target:
//
//	if errors.Is(err, errors.Sentinel(errors.PhaseDecode, errors.KindTruncated)) { ... }
package errors
