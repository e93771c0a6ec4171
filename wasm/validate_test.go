package wasm_test

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	werrors "github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm"
)

func TestValidateRichModule(t *testing.T) {
	if err := richModule().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := scenarioModule().Validate(); err != nil {
		t.Fatalf("Validate scenario: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *wasm.Module)
		kind   werrors.Kind
		path   string
	}{
		{
			"code count",
			func(m *wasm.Module) { m.Code = m.Code[:2] },
			werrors.KindCountMismatch, "",
		},
		{
			"data count",
			func(m *wasm.Module) { m.DataCount = ptrTo(uint32(9)) },
			werrors.KindCountMismatch, "",
		},
		{
			"function type index",
			func(m *wasm.Module) { m.Funcs[0] = 3 },
			werrors.KindOutOfBounds, "func[1].type",
		},
		{
			"import type index",
			func(m *wasm.Module) { m.Imports[0].Desc.TypeIdx = 40 },
			werrors.KindOutOfBounds, "import[0].type",
		},
		{
			"start index",
			func(m *wasm.Module) { m.Start = ptrTo(uint32(4)) },
			werrors.KindOutOfBounds, "start",
		},
		{
			"duplicate export",
			func(m *wasm.Module) { m.Exports[1].Name = "main" },
			werrors.KindDuplicateExport, "export[1]",
		},
		{
			"export kind",
			func(m *wasm.Module) { m.Exports[0].Kind = 9 },
			werrors.KindInvalidFlag, "export[0]",
		},
		{
			"export index",
			func(m *wasm.Module) { m.Exports[2].Idx = 1 },
			werrors.KindOutOfBounds, "export[2].memory",
		},
		{
			"element function",
			func(m *wasm.Module) { m.Elements[1].FuncIdxs[0] = 4 },
			werrors.KindOutOfBounds, "elem[1].func",
		},
		{
			"data memory",
			func(m *wasm.Module) { m.Data[2].MemIdx = 1 },
			werrors.KindOutOfBounds, "data[2].memory",
		},
		{
			"local index",
			func(m *wasm.Module) { m.Code[1].Body[len(m.Code[1].Body)-1] = wasm.LocalGet(5) },
			werrors.KindOutOfBounds, "func[2].instr[14]",
		},
		{
			"call target",
			func(m *wasm.Module) { m.Code[0].Body[0] = wasm.Call(99) },
			werrors.KindOutOfBounds, "func[1].instr[0]",
		},
		{
			"immediate shape",
			func(m *wasm.Module) { m.Code[0].Body[0] = wasm.Instruction{Opcode: wasm.OpI32Add, Imm: wasm.I32Imm{}} },
			werrors.KindInvalidImmediate, "func[1].instr[0]",
		},
		{
			"misc operand count",
			func(m *wasm.Module) { m.Code[0].Body[2] = wasm.Misc(wasm.MiscDataDrop) },
			werrors.KindInvalidImmediate, "func[1].instr[3]",
		},
		{
			"data index",
			func(m *wasm.Module) { m.Code[0].Body[2] = wasm.Misc(wasm.MiscDataDrop, 3) },
			werrors.KindOutOfBounds, "func[1].instr[3]",
		},
		{
			"block type index",
			func(m *wasm.Module) {
				m.Code[0].Body[1] = wasm.Instruction{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeIndex(7)}}
			},
			werrors.KindOutOfBounds, "func[1].instr[1]",
		},
		{
			"global init",
			func(m *wasm.Module) { m.Globals[0].Init = []wasm.Instruction{wasm.GlobalGet(10)} },
			werrors.KindOutOfBounds, "global[0].instr[0]",
		},
		{
			"memory limits",
			func(m *wasm.Module) { m.Imports[2].Desc.Memory.Max = ptrTo(uint32(0)) },
			werrors.KindInvalidInput, "import[2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := richModule()
			tt.mutate(m)
			err := m.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}

			found := false
			for _, e := range multierr.Errors(err) {
				var we *werrors.Error
				if !errors.As(e, &we) {
					t.Fatalf("unexpected error type %T", e)
				}
				if we.Phase != werrors.PhaseValidate {
					t.Errorf("Phase = %s, want validate", we.Phase)
				}
				if we.Kind == tt.kind && strings.Join(we.Path, ".") == tt.path {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s error at %q in: %v", tt.kind, tt.path, err)
			}
		})
	}
}

func TestValidateAggregates(t *testing.T) {
	m := richModule()
	m.Start = ptrTo(uint32(50))
	m.Exports[3].Name = "main"
	m.Code = nil

	errs := multierr.Errors(m.Validate())
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
}
