package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-codec/errors"
	"github.com/wippyai/wasm-codec/wasm"
)

func newPrintCmd(a *app) *cobra.Command {
	var funcIdx int
	cmd := &cobra.Command{
		Use:   "print FILE",
		Short: "Disassemble function bodies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := a.load(args[0])
			if err != nil {
				return err
			}
			if funcIdx >= 0 {
				return printFunc(cmd.OutOrStdout(), m, uint32(funcIdx))
			}
			imported := m.NumImportedFuncs()
			for i := range m.Code {
				if err := printFunc(cmd.OutOrStdout(), m, uint32(imported+i)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&funcIdx, "func", -1, "function index to print (default all)")
	return cmd
}

// printFunc writes the signature, locals and body of a local function.
// funcIdx counts imported functions first.
func printFunc(w io.Writer, m *wasm.Module, funcIdx uint32) error {
	imported := uint32(m.NumImportedFuncs())
	if funcIdx < imported || int(funcIdx-imported) >= len(m.Code) {
		return errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Path(fmt.Sprintf("func[%d]", funcIdx)).
			Detail("no function body at index %d", funcIdx).
			Build()
	}
	body := m.Code[funcIdx-imported]

	sig := "(?)"
	if ft := m.GetFuncType(funcIdx); ft != nil {
		sig = ft.String()
	}
	if _, err := fmt.Fprintf(w, "func[%d] %s\n", funcIdx, sig); err != nil {
		return err
	}
	if len(body.Locals) > 0 {
		if _, err := fmt.Fprintf(w, "  locals: %s\n", formatLocals(body.Locals)); err != nil {
			return err
		}
	}
	return wasm.PrintExpression(w, body.Body, 1)
}

func formatLocals(locals []wasm.LocalEntry) string {
	parts := make([]string, len(locals))
	for i, l := range locals {
		if l.Count == 1 {
			parts[i] = l.Type.String()
		} else {
			parts[i] = fmt.Sprintf("%s x%d", l.Type, l.Count)
		}
	}
	return strings.Join(parts, ", ")
}
