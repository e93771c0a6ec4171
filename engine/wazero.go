package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm"
)

// WazeroEngine compiles and runs encoded modules on a wazero runtime.
type WazeroEngine struct {
	runtime wazero.Runtime
	hosts   map[string]*hostModule
	hostsMu sync.Mutex
}

type hostModule struct {
	builder      wazero.HostModuleBuilder
	instantiated bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps memory per instance in 64 KiB pages.
	// 0 means the wazero default (65536 pages).
	MemoryLimitPages uint32

	// EnableThreads enables the threads proposal (shared memory, atomics).
	EnableThreads bool
}

// HostFunc implements an imported function. Parameters arrive in stack and
// results are written back to it.
type HostFunc func(ctx context.Context, mod api.Module, stack []uint64)

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.EnableThreads {
			runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime, hosts: make(map[string]*hostModule)}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// DefineHostFunction registers module.name as an importable host function.
// Host modules are instantiated on the first Instantiate call and cannot
// gain functions afterwards.
func (e *WazeroEngine) DefineHostFunction(module, name string, params, results []wasm.ValType, fn HostFunc) error {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	h := e.hosts[module]
	if h == nil {
		h = &hostModule{builder: e.runtime.NewHostModuleBuilder(module)}
		e.hosts[module] = h
	}
	if h.instantiated {
		return errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Path(module, name).
			Detail("host module %q is already instantiated", module).
			Build()
	}
	h.builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(fn), toValueTypes(params), toValueTypes(results)).
		Export(name)
	return nil
}

func (e *WazeroEngine) initHostModules(ctx context.Context) error {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	for name, h := range e.hosts {
		if h.instantiated {
			continue
		}
		if _, err := h.builder.Instantiate(ctx); err != nil {
			return fmt.Errorf("instantiate host module %q: %w", name, err)
		}
		h.instantiated = true
		Logger().Debug("host module instantiated", zap.String("module", name))
	}
	return nil
}

// Check compiles raw bytes and discards the result. It is an independent
// structural and semantic check of an encoded module.
func (e *WazeroEngine) Check(ctx context.Context, data []byte) error {
	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return errors.Load("wazero rejected module", err)
	}
	return compiled.Close(ctx)
}

// Compile validates and encodes m, then compiles it.
func (e *WazeroEngine) Compile(ctx context.Context, m *wasm.Module) (*CompiledModule, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "module failed validation")
	}
	return e.CompileBytes(ctx, m.Encode())
}

// CompileBytes compiles an encoded module.
func (e *WazeroEngine) CompileBytes(ctx context.Context, data []byte) (*CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	Logger().Debug("compiled module",
		zap.Int("size", len(data)),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return &CompiledModule{engine: e, compiled: compiled, data: data}, nil
}

// FunctionExport describes an exported function.
type FunctionExport struct {
	Name    string
	Params  []wasm.ValType
	Results []wasm.ValType
}

func (f FunctionExport) String() string {
	return f.Name + wasm.FuncType{Params: f.Params, Results: f.Results}.String()
}

// CompiledModule is a compiled WASM module
type CompiledModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
	data     []byte
}

// Bytes returns the encoded module that was compiled.
func (c *CompiledModule) Bytes() []byte {
	return c.data
}

// Exports lists exported functions sorted by name.
func (c *CompiledModule) Exports() []FunctionExport {
	defs := c.compiled.ExportedFunctions()
	out := make([]FunctionExport, 0, len(defs))
	for name, def := range defs {
		out = append(out, FunctionExport{
			Name:    name,
			Params:  fromValueTypes(def.ParamTypes()),
			Results: fromValueTypes(def.ResultTypes()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Export returns the exported function named name.
func (c *CompiledModule) Export(name string) (FunctionExport, bool) {
	def, ok := c.compiled.ExportedFunctions()[name]
	if !ok {
		return FunctionExport{}, false
	}
	return FunctionExport{
		Name:    name,
		Params:  fromValueTypes(def.ParamTypes()),
		Results: fromValueTypes(def.ResultTypes()),
	}, true
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	Name string
}

// Instantiate creates an anonymous instance.
func (c *CompiledModule) Instantiate(ctx context.Context) (*Instance, error) {
	return c.InstantiateWithConfig(ctx, nil)
}

// InstantiateWithConfig creates an instance with custom configuration
func (c *CompiledModule) InstantiateWithConfig(ctx context.Context, cfg *InstanceConfig) (*Instance, error) {
	if err := c.engine.initHostModules(ctx); err != nil {
		return nil, err
	}

	modConfig := wazero.NewModuleConfig()
	if cfg != nil && cfg.Name != "" {
		modConfig = modConfig.WithName(cfg.Name)
	} else {
		modConfig = modConfig.WithName("") // anonymous for parallel instantiation
	}

	mod, err := c.engine.runtime.InstantiateModule(ctx, c.compiled, modConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}

	inst := &Instance{
		module:    mod,
		funcCache: make(map[string]api.Function),
	}
	if mem := mod.Memory(); mem != nil {
		inst.memory = &WazeroMemory{mem: mem}
	}
	return inst, nil
}

func (c *CompiledModule) Close(ctx context.Context) error {
	return c.compiled.Close(ctx)
}

// Instance is a running module. It is not safe for concurrent use.
type Instance struct {
	module    api.Module
	memory    *WazeroMemory
	funcCache map[string]api.Function
}

func (i *Instance) function(name string) api.Function {
	if fn, ok := i.funcCache[name]; ok {
		return fn
	}
	fn := i.module.ExportedFunction(name)
	if fn != nil {
		i.funcCache[name] = fn
	}
	return fn
}

// Call invokes an exported function with raw stack values.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := i.function(name)
	if fn == nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Path(name).
			Detail("no exported function %q", name).
			Build()
	}
	if want := len(fn.Definition().ParamTypes()); want != len(args) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Path(name).
			Value(len(args)).
			Detail("%s takes %d arguments, got %d", name, want, len(args)).
			Build()
	}

	Logger().Debug("call", zap.String("func", name), zap.Int("args", len(args)))
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return results, nil
}

// Memory returns the default memory, or nil if the module has none.
func (i *Instance) Memory() *WazeroMemory {
	return i.memory
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *Instance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

func (i *Instance) Close(ctx context.Context) error {
	var err error
	if i.module != nil {
		err = i.module.Close(ctx)
		i.module = nil
	}
	i.funcCache = nil
	i.memory = nil
	return err
}

// Value type bytes are shared between the binary format and wazero.
func toValueTypes(types []wasm.ValType) []api.ValueType {
	out := make([]api.ValueType, len(types))
	for i, t := range types {
		out[i] = api.ValueType(t)
	}
	return out
}

func fromValueTypes(types []api.ValueType) []wasm.ValType {
	if len(types) == 0 {
		return nil
	}
	out := make([]wasm.ValType, len(types))
	for i, t := range types {
		out[i] = wasm.ValType(t)
	}
	return out
}
