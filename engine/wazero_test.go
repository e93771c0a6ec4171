package engine

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	wasmcodec "github.com/wippyai/wasm-codec"
	"github.com/wippyai/wasm-codec/builder"
	"github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm"
)

var (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
	f64 = wasm.ValF64
)

func newEngine(t *testing.T, cfg *Config) *WazeroEngine {
	t.Helper()
	ctx := context.Background()
	eng, err := NewWazeroEngineWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })
	return eng
}

func arithModule() *wasm.Module {
	b := builder.New()
	b.AddFunction("add", []wasm.ValType{i32, i32}, []wasm.ValType{i32}, []wasm.Instruction{
		wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI32Add),
	})
	b.AddFunction("mul64", []wasm.ValType{i64, i64}, []wasm.ValType{i64}, []wasm.Instruction{
		wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI64Mul),
	})
	b.AddFunction("half", []wasm.ValType{f64}, []wasm.ValType{f64}, []wasm.Instruction{
		wasm.LocalGet(0), wasm.F64Const(2), wasm.Op(wasm.OpF64Div),
	})
	b.AddFunction("trap", nil, nil, []wasm.Instruction{wasm.Op(wasm.OpUnreachable)})
	mem := b.AddMemory(1, nil)
	b.ExportMemory("memory", mem)
	b.AddData(mem, 16, []byte{0x2A, 0, 0, 0})
	return b.Module()
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{EnableThreads: true}, "threads"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			require.NoError(t, err)
			require.NotNil(t, eng.runtime)
			require.NoError(t, eng.Close(ctx))
		})
	}
}

func TestCompileAndCall(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)

	cm, err := eng.Compile(ctx, arithModule())
	require.NoError(t, err)
	defer cm.Close(ctx)

	exports := cm.Exports()
	names := make([]string, len(exports))
	for i, e := range exports {
		names[i] = e.Name
	}
	require.Equal(t, []string{"add", "half", "mul64", "trap"}, names)
	require.Equal(t, []wasm.ValType{i32, i32}, exports[0].Params)
	require.Equal(t, []wasm.ValType{i32}, exports[0].Results)
	require.Nil(t, exports[3].Params)
	require.Equal(t, "add(i32, i32) -> (i32)", exports[0].String())

	inst, err := cm.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	res, err := inst.Call(ctx, "add", api.EncodeI32(-3), api.EncodeI32(10))
	require.NoError(t, err)
	require.Equal(t, int32(7), api.DecodeI32(res[0]))

	res, err = inst.Call(ctx, "mul64", api.EncodeI64(1<<20), api.EncodeI64(1<<20))
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40), res[0])

	res, err = inst.Call(ctx, "half", api.EncodeF64(5))
	require.NoError(t, err)
	require.Equal(t, 2.5, api.DecodeF64(res[0]))

	require.Equal(t, uint32(65536), inst.MemorySize())
	v, err := inst.Memory().ReadU32(16)
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)

	var mem wasmcodec.Memory = inst.Memory()
	require.NoError(t, mem.Write(100, []byte("wasm")))
	got, err := mem.Read(100, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("wasm"), got)
	require.NoError(t, mem.WriteU32(200, 7))
	v, err = mem.ReadU32(200)
	require.NoError(t, err)
	require.Equal(t, uint32(7), v)

	_, err = mem.Read(65535, 2)
	require.Error(t, err)
	require.Error(t, mem.WriteU32(65534, 1))
}

func TestCallErrors(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)

	cm, err := eng.Compile(ctx, arithModule())
	require.NoError(t, err)
	inst, err := cm.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.Call(ctx, "missing")
	require.True(t, stderrors.Is(err, errors.Sentinel(errors.PhaseRuntime, errors.KindNotFound)))

	_, err = inst.Call(ctx, "add", 1)
	require.True(t, stderrors.Is(err, errors.Sentinel(errors.PhaseRuntime, errors.KindTypeMismatch)))

	_, err = inst.Call(ctx, "trap")
	require.Error(t, err)
	require.Contains(t, err.Error(), "call trap")
}

func TestCompileRejectsInvalidModule(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)

	m := arithModule()
	m.Code[0].Body = append(m.Code[0].Body, wasm.Call(40))
	_, err := eng.Compile(ctx, m)
	require.Error(t, err)

	var we *errors.Error
	require.ErrorAs(t, err, &we)
	require.Equal(t, errors.PhaseLoad, we.Phase)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)

	data := arithModule().Encode()
	require.NoError(t, eng.Check(ctx, data))

	// A type mismatch the codec does not detect.
	b := builder.New()
	b.AddFunction("bad", nil, []wasm.ValType{i32}, []wasm.Instruction{wasm.I64Const(1)})
	err := eng.Check(ctx, b.Module().Encode())
	require.Error(t, err)
	require.True(t, stderrors.Is(err, errors.Sentinel(errors.PhaseLoad, errors.KindInvalidInput)))

	require.Error(t, eng.Check(ctx, data[:len(data)-1]))
}

func TestWazeroEngine_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, &Config{MemoryLimitPages: 1})

	b := builder.New()
	b.AddMemory(1, nil)
	cm, err := eng.Compile(ctx, b.Module())
	require.NoError(t, err)
	inst, err := cm.Instantiate(ctx)
	require.NoError(t, err)
	require.NoError(t, inst.Close(ctx))

	b = builder.New()
	b.AddMemory(2, nil)
	cm, err = eng.Compile(ctx, b.Module())
	if err == nil {
		_, err = cm.Instantiate(ctx)
	}
	require.Error(t, err)
}

func TestHostFunctions(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)

	var seen []int32
	err := eng.DefineHostFunction("env", "record", []wasm.ValType{i32}, []wasm.ValType{i32},
		func(_ context.Context, _ api.Module, stack []uint64) {
			v := api.DecodeI32(stack[0])
			seen = append(seen, v)
			stack[0] = api.EncodeI32(v * 2)
		})
	require.NoError(t, err)

	b := builder.New()
	record, err := b.ImportFunction("env", "record", []wasm.ValType{i32}, []wasm.ValType{i32})
	require.NoError(t, err)
	b.AddFunction("run", []wasm.ValType{i32}, []wasm.ValType{i32}, []wasm.Instruction{
		wasm.LocalGet(0), wasm.Call(record), wasm.I32Const(1), wasm.Op(wasm.OpI32Add),
	})

	cm, err := eng.Compile(ctx, b.Module())
	require.NoError(t, err)

	for n := 0; n < 2; n++ {
		inst, err := cm.Instantiate(ctx)
		require.NoError(t, err)
		res, err := inst.Call(ctx, "run", api.EncodeI32(20))
		require.NoError(t, err)
		require.Equal(t, int32(41), api.DecodeI32(res[0]))
		require.NoError(t, inst.Close(ctx))
	}
	require.Equal(t, []int32{20, 20}, seen)

	err = eng.DefineHostFunction("env", "late", nil, nil, func(context.Context, api.Module, []uint64) {})
	require.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name  string
		types []wasm.ValType
		args  []string
		want  []uint64
	}{
		{"i32 negative", []wasm.ValType{i32}, []string{"-1"}, []uint64{api.EncodeI32(-1)}},
		{"i32 unsigned", []wasm.ValType{i32}, []string{"0xFFFFFFFF"}, []uint64{api.EncodeI32(-1)}},
		{"i64", []wasm.ValType{i64}, []string{"-9223372036854775808"}, []uint64{1 << 63}},
		{"i64 unsigned", []wasm.ValType{i64}, []string{"18446744073709551615"}, []uint64{math.MaxUint64}},
		{"f32", []wasm.ValType{wasm.ValF32}, []string{"1.5"}, []uint64{api.EncodeF32(1.5)}},
		{"f64", []wasm.ValType{f64}, []string{"-0.25"}, []uint64{api.EncodeF64(-0.25)}},
		{"mixed", []wasm.ValType{i32, f64}, []string{"7", "1e3"}, []uint64{7, api.EncodeF64(1000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.types, tt.args)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseArgs([]wasm.ValType{i32}, nil)
	require.True(t, stderrors.Is(err, errors.Sentinel(errors.PhaseRuntime, errors.KindTypeMismatch)))

	_, err = ParseArgs([]wasm.ValType{i32}, []string{"ten"})
	require.True(t, stderrors.Is(err, errors.Sentinel(errors.PhaseRuntime, errors.KindInvalidInput)))

	_, err = ParseArgs([]wasm.ValType{wasm.ValExternRef}, []string{"0"})
	require.Error(t, err)
}

func TestFormatResults(t *testing.T) {
	got := FormatResults(
		[]wasm.ValType{i32, i64, wasm.ValF32, f64, wasm.ValFuncRef},
		[]uint64{api.EncodeI32(-7), api.EncodeI64(-8), api.EncodeF32(0.5), api.EncodeF64(2), 0},
	)
	require.Equal(t, []string{"-7", "-8", "0.5", "2", "null"}, got)
	require.Equal(t, []string{"0x0000002a"}, FormatResults(nil, []uint64{42}))
}

func TestLoggerDefaultsToNop(t *testing.T) {
	require.NotNil(t, Logger())

	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	ctx := context.Background()
	eng := newEngine(t, nil)
	_, err := eng.Compile(ctx, arithModule())
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("compiled module").Len())
}
