package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// defaultProgram is loaded into the editor on start.
const defaultProgram = `{
  answer: 6 * 7,
  greeting: "hello",
  ratio: 1.0 / 4.0
}`

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

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))
)

func renderEntry(e Entry) string {
	if e.Level == LevelError {
		return errorStyle.Render(e.String())
	}
	return resultStyle.Render(e.String())
}

type guestRunner interface {
	interpreter
	Init(ctx context.Context) error
}

type replState int

const (
	stateLoading replState = iota
	stateReady
	stateFailed
)

type replModel struct {
	ctx     context.Context
	guest   guestRunner
	session *session
	err     error
	title   string
	editor  textarea.Model
	output  viewport.Model
	state   replState
	running bool
	width   int
}

type readyMsg struct {
	err error
}

type runResultMsg struct {
	err error
	out string
}

func newReplModel(ctx context.Context, guest guestRunner, s *session, title string) *replModel {
	editor := textarea.New()
	editor.Placeholder = "Insert code here..."
	editor.SetValue(defaultProgram)
	editor.ShowLineNumbers = true
	editor.SetWidth(80)
	editor.SetHeight(10)
	editor.Focus()

	return &replModel{
		ctx:     ctx,
		guest:   guest,
		session: s,
		title:   title,
		editor:  editor,
		output:  viewport.New(80, 8),
		state:   stateLoading,
		width:   80,
	}
}

func (m *replModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.load)
}

func (m *replModel) load() tea.Msg {
	return readyMsg{err: m.guest.Init(m.ctx)}
}

func (m *replModel) run(source string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.guest.InterpretJSON(m.ctx, source)
		return runResultMsg{out: out, err: err}
	}
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case readyMsg:
		if msg.err != nil {
			m.state = stateFailed
			m.err = msg.err
			return m, nil
		}
		m.state = stateReady
		return m, nil

	case runResultMsg:
		m.running = false
		m.session.Record(msg.out, msg.err)
		m.refreshOutput()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			if m.state != stateReady || m.running || isBlank(m.editor.Value()) {
				return m, nil
			}
			m.running = true
			return m, m.run(m.editor.Value())
		case "ctrl+l":
			m.editor.Reset()
			return m, nil
		case "ctrl+k":
			m.session.Clear()
			m.refreshOutput()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
		if m.state == stateFailed {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *replModel) resize(width, height int) {
	m.width = width
	inner := max(width-2, 20)
	m.editor.SetWidth(inner)
	editorHeight := max(height/2-3, 3)
	m.editor.SetHeight(editorHeight)
	m.output.Width = inner
	m.output.Height = max(height-editorHeight-8, 3)
	m.refreshOutput()
}

func (m *replModel) refreshOutput() {
	lines := make([]string, 0, len(m.session.Entries()))
	for _, e := range m.session.Entries() {
		lines = append(lines, renderEntry(e))
	}
	m.output.SetContent(strings.Join(lines, "\n"))
	m.output.GotoBottom()
}

func (m *replModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Focus Playground"))
	b.WriteString(" " + helpStyle.Render(m.title) + "\n\n")

	switch m.state {
	case stateLoading:
		b.WriteString("Loading interpreter...\n")
		b.WriteString(helpStyle.Render("ctrl+c: quit"))
		return b.String()
	case stateFailed:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Interpreter failed to load: %v", m.err)) + "\n\n")
		b.WriteString(helpStyle.Render("ctrl+c: quit"))
		return b.String()
	}

	b.WriteString(paneStyle.Render(m.editor.View()) + "\n")
	status := "Output"
	if m.running {
		status += " (running...)"
	}
	b.WriteString(typeStyle.Render(status) + "\n")
	b.WriteString(paneStyle.Render(m.output.View()) + "\n")
	b.WriteString(helpStyle.Render("ctrl+r: run • ctrl+l: clear editor • ctrl+k: clear output • pgup/pgdown: scroll • ctrl+c: quit"))
	return b.String()
}
