// Package engine runs encoded core modules on wazero.
//
// The engine is the execution side of the codec: a *wasm.Module is
// validated, encoded, and handed to wazero, which compiles it with its own
// decoder and validator. That makes the engine an independent check that
// encoder output is a well-formed module.
//
// # Types
//
//	WazeroEngine   - owns a wazero runtime and the host modules defined on it
//	CompiledModule - a compiled module; lists exports, creates instances
//	Instance       - a running module with exported functions and memory
//
// # Usage
//
//	eng, err := engine.NewWazeroEngine(ctx)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	cm, err := eng.Compile(ctx, mod)
//	if err != nil {
//	    return err
//	}
//	inst, err := cm.Instantiate(ctx)
//	if err != nil {
//	    return err
//	}
//	results, err := inst.Call(ctx, "add", 1, 2)
//
// Arguments and results are raw stack values; ParseArgs and FormatResults
// convert them to and from text using the export's signature.
//
// # Thread Safety
//
// WazeroEngine and CompiledModule are safe for concurrent use.
// Instance is NOT thread-safe and should be used by a single goroutine.
package engine
