package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/bridge"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateEdit modelState = iota
	stateStep
	stateDone
)

// input fields
const (
	fieldLabel = iota
	fieldZ
	fieldR
)

type stepRecord struct {
	err    error
	output string
	step   bridge.Step
}

type interactiveModel struct {
	err      error
	bridge   *bridge.Bridge
	session  *bridge.Session
	out      *bytes.Buffer
	cfg      bridge.Config
	ops      []string
	steps    []stepRecord
	inputs   []textinput.Model
	focusIdx int
	state    modelState
}

type openedMsg struct {
	err     error
	bridge  *bridge.Bridge
	session *bridge.Session
}

type stepMsg stepRecord

func newInteractiveModel(cfg bridge.Config, script bridge.Script) *interactiveModel {
	out := &bytes.Buffer{}
	cfg.Stdout = out

	m := &interactiveModel{
		cfg: cfg,
		out: out,
		ops: declaredOps(bridge.Declare()),
	}

	values := []string{script.Label, strconv.FormatInt(int64(script.Z), 10), strconv.FormatUint(script.R, 10)}
	prompts := []string{"label: ", "z: ", "r: "}
	placeholders := []string{"string", "s32", "u64"}
	m.inputs = make([]textinput.Model, len(values))
	for i := range values {
		ti := textinput.New()
		ti.Prompt = prompts[i]
		ti.Placeholder = placeholders[i]
		ti.SetValue(values[i])
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateEdit {
				m.shutdown()
				return m, tea.Quit
			}

		case "tab":
			if m.state == stateEdit {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "enter":
			switch m.state {
			case stateEdit:
				script, err := m.script()
				if err != nil {
					m.err = err
					return m, nil
				}
				m.err = nil
				return m, m.open(script)

			case stateStep:
				return m, m.next

			case stateDone:
				m.shutdown()
				m.state = stateEdit
			}

		case "esc":
			if m.state != stateEdit {
				m.shutdown()
				m.state = stateEdit
			}
		}

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.bridge = msg.bridge
		m.session = msg.session
		m.steps = nil
		m.state = stateStep
		return m, nil

	case stepMsg:
		m.steps = append(m.steps, stepRecord(msg))
		if msg.err != nil || m.session.Done() {
			m.state = stateDone
		}
		return m, nil
	}

	if m.state == stateEdit {
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

func (m *interactiveModel) script() (bridge.Script, error) {
	z, err := strconv.ParseInt(m.inputs[fieldZ].Value(), 10, 64)
	if err != nil || z < math.MinInt32 || z > math.MaxInt32 {
		return bridge.Script{}, fmt.Errorf("z must be an s32")
	}
	r, err := strconv.ParseUint(m.inputs[fieldR].Value(), 10, 64)
	if err != nil {
		return bridge.Script{}, fmt.Errorf("r must be a u64")
	}
	return bridge.Script{Label: m.inputs[fieldLabel].Value(), Z: int32(z), R: r}, nil
}

func (m *interactiveModel) open(script bridge.Script) tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		b, err := bridge.New(context.Background(), cfg)
		if err != nil {
			return openedMsg{err: err}
		}
		return openedMsg{bridge: b, session: b.NewSession(script)}
	}
}

func (m *interactiveModel) next() tea.Msg {
	m.out.Reset()
	step, err := m.session.Next(context.Background())
	return stepMsg{step: step, output: m.out.String(), err: err}
}

func (m *interactiveModel) shutdown() {
	ctx := context.Background()
	if m.session != nil {
		m.session.Close(ctx)
		m.session = nil
	}
	if m.bridge != nil {
		m.bridge.Close(ctx)
		m.bridge = nil
	}
	m.steps = nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Bridge Demo"))
	b.WriteString("\n\n")
	for _, op := range m.ops {
		b.WriteString("  ")
		b.WriteString(op)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch m.state {
	case stateEdit:
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter start • ctrl+c quit"))

	case stateStep, stateDone:
		m.writeSteps(&b)
		b.WriteString("\n")
		if m.state == stateStep {
			b.WriteString(helpStyle.Render("enter run " + m.session.Step().String() + " • esc back • q quit"))
		} else {
			b.WriteString(helpStyle.Render("enter edit values • q quit"))
		}
	}

	return b.String()
}

func (m *interactiveModel) writeSteps(b *strings.Builder) {
	for _, s := range m.steps {
		b.WriteString(funcStyle.Render(s.step.String()))
		b.WriteString("\n")
		if s.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  Error: %v", s.err)))
			b.WriteString("\n")
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(s.output, "\n"), "\n") {
			if line != "" {
				b.WriteString(resultStyle.Render("  " + line))
				b.WriteString("\n")
			}
		}
	}
	if m.state == stateStep {
		b.WriteString(selectedStyle.Render("> " + m.session.Step().String()))
		b.WriteString("\n")
	}
}

func declaredOps(d *bridge.Declarations) []string {
	var ops []string
	for _, op := range d.Exports {
		ops = append(ops, "export "+formatOp(op))
	}
	for _, op := range d.Imports {
		ops = append(ops, "import "+formatOp(op))
	}
	return ops
}

func formatOp(op bridge.Operation) string {
	var params []string
	for _, p := range op.Params {
		params = append(params, p.Name+": "+typeStyle.Render(witTypeStr(p.Type)))
	}
	result := ""
	if len(op.Results) > 0 {
		result = " -> " + typeStyle.Render(witTypeStr(op.Results[0]))
	}
	return funcStyle.Render(op.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.Own:
			return "own<" + witTypeStr(k.Type) + ">"
		case *wit.Borrow:
			return "borrow<" + witTypeStr(k.Type) + ">"
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func runInteractive(cfg bridge.Config, script bridge.Script) error {
	m := newInteractiveModel(cfg, script)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	m.shutdown()
	return err
}
