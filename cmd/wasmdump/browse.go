package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-codec/engine"
	"github.com/wippyai/wasm-codec/wasm"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse FILE",
		Short: "Browse exported functions interactively",
		Long: `Open an interactive browser over the exported functions of FILE.

Select a function with the arrow keys, press enter to call it (arguments
are prompted for), or d to show its disassembly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse needs an interactive terminal")
			}
			_, m, err := a.load(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, err := engine.NewWazeroEngineWithConfig(ctx, a.engineConfig())
			if err != nil {
				return err
			}
			defer eng.Close(context.WithoutCancel(ctx))

			cm, err := eng.Compile(ctx, m)
			if err != nil {
				return err
			}

			model := newBrowseModel(args[0], m, cm)
			defer model.close()
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}

type browseState int

const (
	stateSelectFunc browseState = iota
	stateInputArgs
	stateShowResult
	stateShowCode
)

type browseModel struct {
	err      error
	module   *wasm.Module
	compiled *engine.CompiledModule
	instance *engine.Instance
	filename string
	result   string
	code     string
	funcs    []engine.FunctionExport
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    browseState
}

type callResultMsg struct {
	err    error
	result string
}

func newBrowseModel(filename string, m *wasm.Module, cm *engine.CompiledModule) *browseModel {
	return &browseModel{
		filename: filename,
		module:   m,
		compiled: cm,
		funcs:    cm.Exports(),
		state:    stateSelectFunc,
	}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) close() {
	if m.instance != nil {
		_ = m.instance.Close(context.Background())
		m.instance = nil
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "d":
			if m.state == stateSelectFunc && len(m.funcs) > 0 {
				m.code = m.disassemble(m.funcs[m.selected].Name)
				m.state = stateShowCode
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, textinput.Blink

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult, stateShowCode:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "esc":
			if m.state != stateSelectFunc {
				m.reset()
				return m, nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *browseModel) reset() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = ""
	m.code = ""
	m.err = nil
}

func (m *browseModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i, p := range f.Params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *browseModel) callFunction() tea.Msg {
	ctx := context.Background()

	if m.instance == nil {
		inst, err := m.compiled.Instantiate(ctx)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance = inst
	}

	f := m.funcs[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = strings.TrimSpace(input.Value())
	}
	vals, err := engine.ParseArgs(f.Params, args)
	if err != nil {
		return callResultMsg{err: err}
	}

	res, err := m.instance.Call(ctx, f.Name, vals...)
	if err != nil {
		return callResultMsg{err: err}
	}
	out := engine.FormatResults(f.Results, res)
	if len(out) == 0 {
		return callResultMsg{result: "(no results)"}
	}
	return callResultMsg{result: strings.Join(out, " ")}
}

func (m *browseModel) disassemble(name string) string {
	exp, ok := m.module.ExportByName(name)
	if !ok || exp.Kind != wasm.KindFunc {
		return "export not found"
	}
	var buf bytes.Buffer
	if err := printFunc(&buf, m.module, exp.Idx); err != nil {
		return err.Error()
	}
	return buf.String()
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("wasmdump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.funcs) == 0 {
			b.WriteString("No exported functions.\n\n")
			b.WriteString(HelpStyle.Render("q quit"))
			break
		}
		b.WriteString("Exported functions:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(SelectedStyle.Render("> " + formatExport(f)))
			} else {
				b.WriteString("  " + formatExport(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("↑/↓ select • enter call • d disassemble • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", FuncStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(TypeStyle.Render(f.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", FuncStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(ResultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(HelpStyle.Render("enter continue • q quit"))

	case stateShowCode:
		b.WriteString(m.code)
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

func formatExport(f engine.FunctionExport) string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = TypeStyle.Render(p.String())
	}
	results := make([]string, len(f.Results))
	for i, r := range f.Results {
		results[i] = TypeStyle.Render(r.String())
	}
	s := FuncStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")"
	if len(results) > 0 {
		s += " -> " + strings.Join(results, ", ")
	}
	return s
}
