package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"
	"golang.org/x/term"

	"github.com/wippyai/bridge-runtime/bridge"
	"github.com/wippyai/bridge-runtime/config"
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
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	bridge   *bridge.Bridge
	target   *target
	opts     targetOptions
	cfg      config.Config
	result   string
	funcs    []funcInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(cfg config.Config, opts targetOptions) *interactiveModel {
	return &interactiveModel{
		cfg:    cfg,
		opts:   opts,
		bridge: bridge.New(bridge.WithConfig(cfg)),
		state:  stateSelectFunc,
	}
}

type loadedMsg struct {
	err    error
	target *target
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	tgt, err := openTarget(context.Background(), m.bridge, m.opts)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{target: tgt}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg.String()); handled {
			return m, cmd
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.target = msg.target
		m.funcs = msg.target.functions()

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
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

// handleKey applies navigation keys. Keys it does not consume are passed on
// to the focused input.
func (m *interactiveModel) handleKey(key string) (tea.Cmd, bool) {
	if key == "ctrl+c" || (key == "q" && m.state != stateInputArgs) {
		m.bridge.Close(context.Background())
		return tea.Quit, true
	}

	switch m.state {
	case stateSelectFunc:
		switch key {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.funcs)-1 {
				m.selected++
			}
		case "enter":
			if len(m.funcs) == 0 {
				return nil, true
			}
			m.prepareInputs()
			if len(m.inputs) == 0 {
				return m.callFunction, true
			}
			m.state = stateInputArgs
		}
		return nil, true

	case stateInputArgs:
		switch key {
		case "enter":
			return m.callFunction, true
		case "esc":
			m.state = stateSelectFunc
			m.inputs = nil
			return nil, true
		case "tab":
			if len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}
			return nil, true
		}
		return nil, false

	default:
		if key == "enter" || key == "esc" {
			m.state = stateSelectFunc
			m.result = ""
			m.err = nil
		}
		return nil, true
	}
}

// prepareInputs builds one field per declared parameter, or a single
// free-form field when the function has no declared signature.
func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	if !f.declared {
		ti := textinput.New()
		ti.Placeholder = "space separated JSON values"
		ti.Prompt = "args: "
		ti.Width = 40
		ti.Focus()
		m.inputs = []textinput.Model{ti}
		m.focusIdx = 0
		return
	}

	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.target == nil {
		return callResultMsg{err: fmt.Errorf("module not loaded")}
	}

	f := m.funcs[m.selected]
	var args []any
	if f.declared {
		args = make([]any, len(m.inputs))
		for i, input := range m.inputs {
			v, err := convertArg(input.Value(), f.params[i].witType)
			if err != nil {
				return callResultMsg{err: fmt.Errorf("%s: %w", f.params[i].name, err)}
			}
			args[i] = v
		}
	} else if len(m.inputs) == 1 {
		args = parseArgs(strings.Fields(m.inputs[0].Value()))
	}

	result, err := callWithRetry(context.Background(), m.cfg, m.target.mod.Func(f.name), args, nil)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: fmt.Sprintf("%v", result)}
}

// convertArg parses a field according to its declared type.
func convertArg(s string, t wit.Type) (any, error) {
	switch t.(type) {
	case wit.String, wit.Char:
		return s, nil
	case wit.U8, wit.U16, wit.U32, wit.U64, wit.S8, wit.S16, wit.S32, wit.S64:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case wit.F32, wit.F64:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case wit.Bool:
		return strconv.ParseBool(strings.TrimSpace(s))
	default:
		return parseArg(s), nil
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.target == nil {
		return "Loading module..."
	}

	header := titleStyle.Render("Bridge Runner") + " " + m.target.path + " " +
		typeStyle.Render(m.target.label) + "\n\n"

	switch m.state {
	case stateInputArgs:
		return header + m.viewInputs()
	case stateShowResult:
		return header + m.viewResult()
	default:
		return header + m.viewFuncs()
	}
}

func (m *interactiveModel) viewFuncs() string {
	if len(m.funcs) == 0 {
		return "No callable functions found. Declare some with -sig.\n\n" + helpStyle.Render("q quit")
	}

	lines := []string{"Select a function to call:", ""}
	for i, f := range m.funcs {
		if i == m.selected {
			lines = append(lines, selectedStyle.Render("> "+f.String()))
			continue
		}
		lines = append(lines, "  "+formatFunc(f))
	}
	lines = append(lines, "", helpStyle.Render("↑/↓ select • enter call • q quit"))
	return strings.Join(lines, "\n")
}

func (m *interactiveModel) viewInputs() string {
	f := m.funcs[m.selected]
	lines := []string{"Calling " + funcStyle.Render(f.name), ""}
	for i, input := range m.inputs {
		line := input.View()
		if f.declared {
			line += " " + typeStyle.Render(f.params[i].typeStr)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", helpStyle.Render("tab next field • enter call • esc back"))
	return strings.Join(lines, "\n")
}

func (m *interactiveModel) viewResult() string {
	f := m.funcs[m.selected]
	body := resultStyle.Render(m.result)
	if m.err != nil {
		body = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}
	return "Result of " + funcStyle.Render(f.name) + ":\n\n" + body + "\n\n" +
		helpStyle.Render("enter continue • q quit")
}

func formatFunc(f funcInfo) string {
	if !f.declared {
		return funcStyle.Render(f.name) + "(...)"
	}
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = p.name + ": " + typeStyle.Render(p.typeStr)
	}
	result := ""
	if f.resultType != "" {
		result = " -> " + typeStyle.Render(f.resultType)
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(cfg config.Config, opts targetOptions) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(cfg, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
