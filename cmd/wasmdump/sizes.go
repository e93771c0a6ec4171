package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-codec/wasm"
)

func newSizesCmd(a *app) *cobra.Command {
	var bodies bool
	cmd := &cobra.Command{
		Use:   "sizes FILE",
		Short: "Show encoded size per section",
		Long: `Show the encoded size of each section as computed by the size calculator.

The payload column excludes the section id and size prefix; the total
column includes them. The final row is the whole module including the
8-byte preamble, which equals the size the encoder allocates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := a.load(args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), renderSizes(m, bodies)+"\n")
			return err
		},
	}
	cmd.Flags().BoolVar(&bodies, "bodies", false, "also list each function body")
	return cmd
}

func renderSizes(m *wasm.Module, bodies bool) string {
	sb := wasm.ComputeSize(m)
	pct := func(n int) string {
		if sb.Total == 0 {
			return "0.0%"
		}
		return fmt.Sprintf("%.1f%%", float64(n)*100/float64(sb.Total))
	}

	var rows [][]string
	add := func(name string, payload, total int) {
		rows = append(rows, []string{name, strconv.Itoa(payload), strconv.Itoa(total), pct(total)})
	}

	cs := 0
	emitCustoms := func(after wasm.SectionID) {
		for ; cs < len(m.CustomSections) && m.CustomSections[cs].After == after; cs++ {
			add(fmt.Sprintf("custom %q", m.CustomSections[cs].Name), len(m.CustomSections[cs].Data), sb.Custom[cs])
		}
	}

	emitCustoms(wasm.SectionCustom)
	for _, id := range wasm.CanonicalOrder() {
		if sb.Sections[id] > 0 {
			add(id.String(), sb.Payloads[id], sb.Sections[id])
		}
		if id == wasm.SectionCode && bodies {
			imported := m.NumImportedFuncs()
			for i, n := range sb.Code {
				add(fmt.Sprintf("  func[%d]", imported+i), n, n)
			}
		}
		emitCustoms(id)
	}
	for ; cs < len(m.CustomSections); cs++ {
		add(fmt.Sprintf("custom %q", m.CustomSections[cs].Name), len(m.CustomSections[cs].Data), sb.Custom[cs])
	}
	rows = append(rows, []string{"total", "", strconv.Itoa(sb.Total), "100.0%"})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Headers("section", "payload", "total", "share").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderStyle
			case col > 0:
				return NumberStyle
			default:
				return CellStyle
			}
		})
	return t.Render()
}
