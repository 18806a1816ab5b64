// Package tui is the terminal frontend: the source, the terminal history and an input line.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guseggert/pyconsole/console"
	"github.com/guseggert/pyconsole/transport"
)

// startedMsg reports the outcome of opening a run.
type startedMsg struct {
	stream transport.Stream
	err    error
}

type chunkMsg struct {
	stream transport.Stream
	chunk  string
}

type streamDoneMsg struct {
	stream transport.Stream
	err    error
}

type submittedMsg struct{}

// SourceChangedMsg replaces the source text, e.g. after the file was edited elsewhere.
type SourceChangedMsg struct {
	Source string
}

// Model is the bubbletea model for one console session.
type Model struct {
	ctx     context.Context
	session *console.Session
	theme   Theme

	// stream is the open run, read one chunk per message
	stream transport.Stream

	history  viewport.Model
	input    textinput.Model
	template int
	status   string
	width    int
	height   int
}

func New(ctx context.Context, session *console.Session, theme Theme) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "type help for commands"
	input.Focus()

	m := Model{
		ctx:      ctx,
		session:  session,
		theme:    theme,
		history:  viewport.New(80, 10),
		input:    input,
		template: -1,
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startedMsg:
		m.refresh()
		if msg.err != nil {
			if !errors.Is(msg.err, console.ErrRunInProgress) {
				m.status = msg.err.Error()
			}
			return m, nil
		}
		m.stream = msg.stream
		m.status = ""
		return m, m.next(msg.stream)

	case chunkMsg:
		if msg.stream != m.stream {
			return m, nil
		}
		m.session.Receive(msg.chunk)
		m.refresh()
		return m, m.next(msg.stream)

	case streamDoneMsg:
		if msg.stream != m.stream {
			return m, nil
		}
		if errors.Is(msg.err, io.EOF) {
			m.session.Finish(nil)
		} else {
			m.session.Finish(msg.err)
			m.status = msg.err.Error()
		}
		msg.stream.Close()
		m.stream = nil
		m.refresh()
		return m, nil

	case submittedMsg:
		m.refresh()
		return m, nil

	case SourceChangedMsg:
		m.session.SetSource(msg.Source)
		m.status = "source reloaded"
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if m.stream != nil {
			m.stream.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Run):
		if m.session.State() != console.Idle {
			return m, nil
		}
		return m, m.start()

	case key.Matches(msg, keys.Template):
		m.template = (m.template + 1) % len(console.Templates)
		t := console.Templates[m.template]
		if err := m.session.ApplyTemplate(t.Name); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "template: " + t.Name
		return m, nil

	case key.Matches(msg, keys.Theme):
		m.theme = m.theme.toggle()
		m.refresh()
		return m, nil

	case key.Matches(msg, keys.Scroll):
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case key.Matches(msg, keys.Submit):
		line := m.input.Value()
		m.input.Reset()
		return m, m.submit(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.session.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) start() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		stream, err := session.Start(ctx)
		return startedMsg{stream: stream, err: err}
	}
}

func (m Model) next(stream transport.Stream) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		chunk, err := stream.Next(ctx)
		if err != nil {
			return streamDoneMsg{stream: stream, err: err}
		}
		return chunkMsg{stream: stream, chunk: chunk}
	}
}

// submit runs off the event loop, since a line may go over the network.
func (m Model) submit(line string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		session.Submit(ctx, line)
		return submittedMsg{}
	}
}

// refresh re-renders the history into the viewport, keeping it scrolled to the end.
func (m *Model) refresh() {
	lines := m.session.History().Snapshot()
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = m.theme.renderLine(l)
	}
	m.history.SetContent(strings.Join(rendered, "\n"))
	m.history.GotoBottom()
}

func (m *Model) layout() {
	// title, input and help take a line each; the source gets a third of the rest
	rest := m.height - 3
	sourceHeight := rest / 3
	m.history.Width = m.width
	m.history.Height = max(rest-sourceHeight-2, 1)
	m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)
	m.refresh()
}

func (m Model) sourceView() string {
	src := m.session.Source()
	if src == "" {
		src = "(empty, press ctrl+t for a template)"
	}
	height := max((m.height-3)/3-2, 1)
	lines := strings.Split(src, "\n")
	if len(lines) > height && m.height > 0 {
		lines = append(lines[:height-1], fmt.Sprintf("... %d more lines", len(lines)-height+1))
	}
	style := m.theme.Source
	if m.width > 0 {
		style = style.Width(m.width - 2)
	}
	return style.Render(strings.ReplaceAll(strings.Join(lines, "\n"), "\t", "    "))
}

func (m Model) helpView() string {
	var parts []string
	for _, b := range keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.Help.Render(strings.Join(parts, " • "))
}

func (m Model) View() string {
	title := m.theme.Title.Render("pyconsole") + " " + m.theme.State.Render(m.session.State().String())
	if m.status != "" {
		title += " " + m.theme.Help.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.sourceView(),
		m.history.View(),
		m.input.View(),
		m.helpView(),
	)
}
