package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-codec/wasm"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Summarize sections, imports and exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, m, err := a.load(args[0])
			if err != nil {
				return err
			}
			return writeInfo(cmd.OutOrStdout(), args[0], len(data), m)
		},
	}
}

// sectionCount returns the number of entries a standard section holds and
// whether the section is present at all.
func sectionCount(m *wasm.Module, id wasm.SectionID) (int, bool) {
	switch id {
	case wasm.SectionType:
		return len(m.Types), len(m.Types) > 0
	case wasm.SectionImport:
		return len(m.Imports), len(m.Imports) > 0
	case wasm.SectionFunction:
		return len(m.Funcs), len(m.Funcs) > 0
	case wasm.SectionTable:
		return len(m.Tables), len(m.Tables) > 0
	case wasm.SectionMemory:
		return len(m.Memories), len(m.Memories) > 0
	case wasm.SectionGlobal:
		return len(m.Globals), len(m.Globals) > 0
	case wasm.SectionExport:
		return len(m.Exports), len(m.Exports) > 0
	case wasm.SectionStart:
		return 1, m.Start != nil
	case wasm.SectionElement:
		return len(m.Elements), len(m.Elements) > 0
	case wasm.SectionDataCount:
		if m.DataCount == nil {
			return 0, false
		}
		return int(*m.DataCount), true
	case wasm.SectionCode:
		return len(m.Code), len(m.Code) > 0
	case wasm.SectionData:
		return len(m.Data), len(m.Data) > 0
	}
	return 0, false
}

var kindNames = map[byte]string{
	wasm.KindFunc:   "func",
	wasm.KindTable:  "table",
	wasm.KindMemory: "memory",
	wasm.KindGlobal: "global",
}

func kindName(k byte) string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%02x)", k)
}

func writeInfo(w io.Writer, name string, size int, m *wasm.Module) error {
	p := &linePrinter{w: w}
	p.printf("%s: %d bytes\n", name, size)

	p.printf("sections:\n")
	for _, id := range wasm.CanonicalOrder() {
		n, ok := sectionCount(m, id)
		if !ok {
			continue
		}
		if id == wasm.SectionStart {
			p.printf("  %-10s func %d\n", id, *m.Start)
			continue
		}
		p.printf("  %-10s %d\n", id, n)
	}
	for _, cs := range m.CustomSections {
		p.printf("  %-10s %q after %s, %d bytes\n", wasm.SectionCustom, cs.Name, cs.After, len(cs.Data))
	}

	if len(m.Imports) > 0 {
		p.printf("imports:\n")
		for _, imp := range m.Imports {
			desc := kindName(imp.Desc.Kind)
			if imp.Desc.Kind == wasm.KindFunc {
				if int(imp.Desc.TypeIdx) < len(m.Types) {
					desc += " " + m.Types[imp.Desc.TypeIdx].String()
				}
			}
			p.printf("  %s.%s %s\n", imp.Module, imp.Name, desc)
		}
	}

	if len(m.Exports) > 0 {
		p.printf("exports:\n")
		for _, exp := range m.Exports {
			desc := fmt.Sprintf("%s %d", kindName(exp.Kind), exp.Idx)
			if exp.Kind == wasm.KindFunc {
				if ft := m.GetFuncType(exp.Idx); ft != nil {
					desc += " " + ft.String()
				}
			}
			p.printf("  %s %s\n", exp.Name, desc)
		}
	}
	return p.err
}

// linePrinter remembers the first write error.
type linePrinter struct {
	w   io.Writer
	err error
}

func (p *linePrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
