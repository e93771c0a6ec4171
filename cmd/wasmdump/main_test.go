package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-codec/builder"
	"github.com/wippyai/wasm-codec/engine"
	"github.com/wippyai/wasm-codec/wasm"
)

var i32 = wasm.ValI32

func sampleModule() *wasm.Module {
	b := builder.New()
	b.AddFunction("add", []wasm.ValType{i32, i32}, []wasm.ValType{i32}, []wasm.Instruction{
		wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI32Add),
	})
	fn := b.AddFunction("answer", nil, []wasm.ValType{i32}, nil)
	tmp, _ := b.AddLocal(fn, i32)
	_ = b.SetBody(fn, []wasm.Instruction{
		wasm.I32Const(42), wasm.LocalSet(tmp),
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeEmpty}},
		wasm.LocalGet(tmp),
	})
	b.AddMemory(1, nil)
	b.AddCustomSection("producers", []byte{0})
	return b.Module()
}

func writeModule(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wasm")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInfoCommand(t *testing.T) {
	data := sampleModule().Encode()
	path := writeModule(t, data)

	out, err := execute(t, "info", path)
	require.NoError(t, err)
	require.Contains(t, out, path+": "+strconv.Itoa(len(data))+" bytes")
	require.Contains(t, out, "  type       2\n")
	require.Contains(t, out, "  code       2\n")
	require.Contains(t, out, `"producers" after data, 1 bytes`)
	require.Contains(t, out, "add func 0 (i32, i32) -> (i32)")
}

func TestSizesCommand(t *testing.T) {
	m := sampleModule()
	path := writeModule(t, m.Encode())

	out, err := execute(t, "sizes", "--bodies", path)
	require.NoError(t, err)
	require.Contains(t, out, "section")
	require.Contains(t, out, "func[1]")
	require.Contains(t, out, `custom "producers"`)
	require.Contains(t, out, strconv.Itoa(wasm.ComputeSize(m).Total))
}

func TestPrintCommand(t *testing.T) {
	path := writeModule(t, sampleModule().Encode())

	out, err := execute(t, "print", "--func", "1", path)
	require.NoError(t, err)
	require.Equal(t, `func[1] () -> (i32)
  locals: i32
  i32.const 42
  local.set 0
  block
  end
  local.get 0
`, out)

	_, err = execute(t, "print", "--func", "7", path)
	require.Error(t, err)
}

func TestRoundtripCommand(t *testing.T) {
	data := sampleModule().Encode()
	out, err := execute(t, "roundtrip", writeModule(t, data))
	require.NoError(t, err)
	require.Equal(t, "identical: "+strconv.Itoa(len(data))+" bytes\n", out)

	// An empty table section decodes fine but is dropped on re-encoding.
	padded := append([]byte{}, data[:8]...)
	padded = append(padded, 0x04, 0x01, 0x00)
	padded = append(padded, data[8:]...)
	out, err = execute(t, "roundtrip", writeModule(t, padded))
	require.ErrorIs(t, err, errRoundtripMismatch)
	require.Contains(t, out, "first difference at offset 0x8")
}

func TestRoundtripOutput(t *testing.T) {
	data := sampleModule().Encode()
	dst := filepath.Join(t.TempDir(), "out.wasm")
	_, err := execute(t, "roundtrip", "-o", dst, writeModule(t, data))
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "check", writeModule(t, sampleModule().Encode()))
	require.NoError(t, err)
	require.Contains(t, out, "validate: ok")
	require.Contains(t, out, "wazero:   ok")

	bad := sampleModule()
	bad.Code[0].Body = append(bad.Code[0].Body, wasm.Call(9))
	out, err = execute(t, "check", writeModule(t, bad.Encode()))
	require.Error(t, err)
	require.Contains(t, out, "validate: 1 problem(s)")
}

func TestRunCommand(t *testing.T) {
	path := writeModule(t, sampleModule().Encode())

	out, err := execute(t, "run", path, "add", "2", "-5")
	require.NoError(t, err)
	require.Equal(t, "-3\n", out)

	out, err = execute(t, "run", path, "answer")
	require.NoError(t, err)
	require.Equal(t, "42\n", out)

	_, err = execute(t, "run", path, "add", "2")
	require.Error(t, err)
	_, err = execute(t, "run", path, "missing")
	require.Error(t, err)
}

func TestRawCommand(t *testing.T) {
	out, err := execute(t, "raw", "--no-code", writeModule(t, sampleModule().Encode()))
	require.NoError(t, err)
	require.Contains(t, out, `"producers"`)
	require.Contains(t, out, "Code: ([]wasm.FuncBody) <nil>")
}

func TestDecodeFlags(t *testing.T) {
	data := sampleModule().Encode()
	_, err := execute(t, "info", "--require-order", writeModule(t, data))
	require.NoError(t, err)

	// Memory section ahead of the type section.
	reordered := append([]byte{}, data[:8]...)
	reordered = append(reordered, 0x05, 0x03, 0x01, 0x00, 0x01)
	reordered = append(reordered, 0x01, 0x04, 0x01, 0x60, 0x00, 0x00)
	_, err = execute(t, "info", writeModule(t, reordered))
	require.NoError(t, err)
	_, err = execute(t, "info", "--require-order", writeModule(t, reordered))
	require.Error(t, err)

	_, err = execute(t, "info", writeModule(t, data[:len(data)-2]))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wasmdump.toml")
	require.NoError(t, os.WriteFile(path, []byte("validate = true\nmemory_limit_pages = 16\n"), 0o644))

	v := viper.New()
	require.NoError(t, loadConfig(v, path))
	require.True(t, v.GetBool("validate"))
	require.Equal(t, uint32(16), v.GetUint32("memory_limit_pages"))
	require.False(t, v.GetBool("require_order"))

	t.Setenv("WASMDUMP_REQUIRE_ORDER", "true")
	v = viper.New()
	require.NoError(t, loadConfig(v, path))
	require.True(t, v.GetBool("require_order"))

	require.Error(t, loadConfig(viper.New(), filepath.Join(dir, "missing.toml")))
}

func TestConfigFileFlag(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "wasmdump.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("validate = true\n"), 0o644))

	bad := sampleModule()
	bad.Exports = append(bad.Exports, bad.Exports[0])
	path := writeModule(t, bad.Encode())

	_, err := execute(t, "info", path)
	require.NoError(t, err)
	_, err = execute(t, "--config", cfg, "info", path)
	require.Error(t, err)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBrowseModel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng, err := engine.NewWazeroEngine(ctx)
	require.NoError(t, err)
	defer eng.Close(ctx)

	m := sampleModule()
	cm, err := eng.Compile(ctx, m)
	require.NoError(t, err)

	model := newBrowseModel("sample.wasm", m, cm)
	defer model.close()
	require.Len(t, model.funcs, 2)
	require.Contains(t, model.View(), "add")

	// Disassembly of the selected function.
	model.Update(key("down"))
	model.Update(key("d"))
	require.Equal(t, stateShowCode, model.state)
	require.Contains(t, model.View(), "i32.const 42")
	model.Update(key("esc"))
	require.Equal(t, stateSelectFunc, model.state)

	// A function without parameters is called immediately.
	_, cmd := model.Update(key("enter"))
	require.NotNil(t, cmd)
	model.Update(cmd())
	require.Equal(t, stateShowResult, model.state)
	require.NoError(t, model.err)
	require.Equal(t, "42", model.result)
	model.Update(key("enter"))

	// Arguments are prompted for.
	model.selected = 0
	model.Update(key("enter"))
	require.Equal(t, stateInputArgs, model.state)
	require.Len(t, model.inputs, 2)
	model.inputs[0].SetValue("40")
	model.inputs[1].SetValue("2")
	_, cmd = model.Update(key("enter"))
	model.Update(cmd())
	require.Equal(t, "42", model.result)
	require.True(t, strings.Contains(model.View(), "42"))
}
