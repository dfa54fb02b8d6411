// Package chat implements the interactive terminal client using bubbletea.
// The conversation machine runs model turns in tea.Cmd goroutines; its events
// arrive through a buffered channel and trigger a re-render from a fresh
// snapshot.
package chat

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"specarch/cmd/specarch/ui"
	"specarch/internal/conversation"
	"specarch/internal/document"
	"specarch/internal/usage"
)

const eventBuffer = 256

// Bridge returns an observer for the machine and the channel the UI reads
// events from. Events are dropped when the buffer is full; every event makes
// the UI re-read the whole state, so the view still converges.
func Bridge() (conversation.Observer, <-chan conversation.Event) {
	ch := make(chan conversation.Event, eventBuffer)
	return func(ev conversation.Event) {
		select {
		case ch <- ev:
		default:
		}
	}, ch
}

type (
	eventMsg      conversation.Event
	submitDoneMsg struct{ err error }
)

// Model is the bubbletea model for the chat client.
type Model struct {
	ctx     context.Context
	machine *conversation.Machine
	events  <-chan conversation.Event
	logger  *zap.Logger
	usage   *usage.Tracker

	input    textarea.Model
	editor   textarea.Model
	chatView viewport.Model
	docView  viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	state    conversation.State
	status   string
	showDocs bool
	editing  document.Name
	width    int
	height   int
	ready    bool
}

// New builds the chat model. events must be the channel returned by Bridge
// for the observer installed on machine.
func New(ctx context.Context, machine *conversation.Machine, events <-chan conversation.Event, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textarea.New()
	input.Placeholder = "Describe the system you want to specify... (/help for commands)"
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.CharLimit = 0
	input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("ctrl+j"))
	input.Focus()

	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.CharLimit = 0
	editor.MaxHeight = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styles := ui.DefaultStyles()
	sp.Style = styles.Spinner

	m := Model{
		ctx:      ctx,
		machine:  machine,
		events:   events,
		logger:   logger,
		input:    input,
		editor:   editor,
		chatView: viewport.New(80, 20),
		docView:  viewport.New(60, 20),
		spinner:  sp,
		styles:   styles,
		state:    machine.Snapshot(),
		showDocs: true,
	}
	m.renderer = newRenderer(styles, 76)
	return m
}

// WithUsage shows the token counts of tracker in the header and /usage.
func (m Model) WithUsage(tracker *usage.Tracker) Model {
	m.usage = tracker
	return m
}

func newRenderer(styles ui.Styles, width int) *glamour.TermRenderer {
	style := "light"
	if styles.Theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.waitForEvent())
}

// waitForEvent blocks on the next machine event.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return nil
			}
			return eventMsg(ev)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// submit runs one turn in the background.
func (m Model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{err: m.machine.Submit(m.ctx, text)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case eventMsg:
		m.onEvent(conversation.Event(msg))
		return m, m.waitForEvent()

	case submitDoneMsg:
		m.onSubmitDone(msg.err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}
	}

	var cmd tea.Cmd
	if m.editing != "" {
		m.editor, cmd = m.editor.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	cmds = append(cmds, cmd)

	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) onEvent(ev conversation.Event) {
	switch ev.Kind {
	case conversation.EventError:
		m.logger.Warn("turn failed", zap.Error(ev.Err))
	case conversation.EventPhaseChanged:
		m.status = ""
	}
	m.refresh()
}

func (m *Model) onSubmitDone(err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrBusy),
		errors.Is(err, conversation.ErrBlankInput),
		errors.Is(err, conversation.ErrNoSession):
		// rejected without any state change
		m.logger.Debug("submit rejected", zap.Error(err))
	case errors.Is(err, conversation.ErrFinalized):
		m.status = "The specification process is finalized."
	default:
		// already rendered inline as an error message
	}
	m.refresh()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.machine.Abort()
		return m, tea.Quit, true
	case "ctrl+x":
		m.machine.Abort()
		return m, nil, true
	case "ctrl+d":
		m.showDocs = !m.showDocs
		m.layout()
		m.refresh()
		return m, nil, true
	case "tab":
		if m.editing == "" {
			m.cycleDocument()
			return m, nil, true
		}
	}

	if m.editing != "" {
		switch msg.String() {
		case "ctrl+s":
			m.saveEdit()
			return m, nil, true
		case "esc":
			m.cancelEdit()
			return m, nil, true
		}
		return m, nil, false
	}

	if msg.String() == "enter" {
		text := m.input.Value()
		m.input.Reset()
		model, cmd := m.handleInput(text)
		return model, cmd, true
	}
	return m, nil, false
}

// handleInput routes a submitted line to a slash command or the machine.
func (m Model) handleInput(text string) (tea.Model, tea.Cmd) {
	c, err := parseCommand(text)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = ""

	switch c.kind {
	case cmdNone:
		return m, tea.Batch(m.submit(c.text), m.spinner.Tick)
	case cmdDoc:
		_ = m.machine.SetActiveDocument(c.doc)
		m.showDocs = true
		m.layout()
	case cmdDocs:
		m.showDocs = !m.showDocs
		m.layout()
	case cmdThink:
		m.machine.SetThinkingMode(c.enabled)
	case cmdEdit:
		name := c.doc
		if name == "" {
			name = m.state.ActiveDocument
		}
		m.startEdit(name)
	case cmdAbort:
		m.machine.Abort()
	case cmdHelp:
		m.status = helpText
	case cmdUsage:
		m.status = m.usageReport()
	case cmdQuit:
		m.machine.Abort()
		return m, tea.Quit
	}
	m.refresh()
	return m, nil
}

func (m *Model) cycleDocument() {
	names := document.All()
	next := names[0]
	for i, n := range names {
		if n == m.state.ActiveDocument {
			next = names[(i+1)%len(names)]
			break
		}
	}
	_ = m.machine.SetActiveDocument(next)
	m.showDocs = true
	m.layout()
	m.refresh()
}

func (m *Model) startEdit(name document.Name) {
	if err := m.machine.ToggleEditing(name); err != nil {
		m.status = err.Error()
		return
	}
	_ = m.machine.SetActiveDocument(name)
	m.editing = name
	m.state = m.machine.Snapshot()
	m.editor.SetValue(m.state.Documents[name])
	m.editor.Focus()
	m.input.Blur()
	m.status = "Editing " + name.FileName() + " (ctrl+s to save, esc to cancel)"
	m.layout()
}

func (m *Model) saveEdit() {
	name := m.editing
	if err := m.machine.UpdateDocumentContent(name, m.editor.Value()); err != nil {
		m.status = err.Error()
		return
	}
	m.finishEdit()
	m.status = "Saved " + name.FileName()
}

func (m *Model) cancelEdit() {
	m.finishEdit()
	m.status = ""
}

func (m *Model) finishEdit() {
	_ = m.machine.ToggleEditing(m.editing)
	m.editing = ""
	m.editor.Blur()
	m.input.Focus()
	m.layout()
	m.refresh()
}
