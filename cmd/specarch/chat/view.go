package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"specarch/internal/conversation"
	"specarch/internal/document"
	"specarch/internal/phase"
)

const (
	headerHeight = 1
	inputHeight  = 5
	footerHeight = 2
)

// layout sizes the viewports for the current window and panel state.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	bodyHeight := m.height - headerHeight - inputHeight - footerHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	chatWidth := m.width
	if m.showDocs || m.editing != "" {
		chatWidth = m.width / 2
		docWidth := m.width - chatWidth - 2
		m.docView.Width = docWidth
		m.docView.Height = bodyHeight - 3
		m.editor.SetWidth(docWidth)
		m.editor.SetHeight(bodyHeight - 3)
		m.renderer = newRenderer(m.styles, max(docWidth-4, 20))
	}
	m.chatView.Width = chatWidth
	m.chatView.Height = bodyHeight
	m.input.SetWidth(m.width - 2)
}

// refresh pulls a fresh snapshot and re-renders both panes.
func (m *Model) refresh() {
	m.state = m.machine.Snapshot()
	atBottom := m.chatView.AtBottom()
	m.chatView.SetContent(m.renderMessages())
	if atBottom || m.state.Loading {
		m.chatView.GotoBottom()
	}
	m.docView.SetContent(m.renderDocument(m.state.ActiveDocument))
}

func (m Model) renderMessages() string {
	var b strings.Builder
	last := len(m.state.Messages) - 1
	for i, msg := range m.state.Messages {
		streaming := m.state.Loading && i == last
		b.WriteString(m.renderMessage(msg, streaming))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg conversation.Message, streaming bool) string {
	switch {
	case msg.Error:
		return m.styles.Error.Render(msg.Content)
	case msg.Role == conversation.RoleUser:
		return m.styles.UserLabel.Render("You") + "\n" + m.styles.Body.Render(msg.Content)
	}

	var body string
	if streaming {
		// partial markdown renders badly
		body = msg.Content
		if body == "" {
			body = m.spinner.View() + " thinking..."
		}
	} else {
		body = m.safeRenderMarkdown(msg.Content)
	}

	out := m.styles.Model.Render(body)
	if len(msg.Sources) > 0 {
		var src strings.Builder
		src.WriteString("Sources:")
		for i, s := range msg.Sources {
			title := s.Title
			if title == "" {
				title = s.URI
			}
			fmt.Fprintf(&src, "\n  [%d] %s - %s", i+1, title, s.URI)
		}
		out += "\n" + m.styles.Source.Render(src.String())
	}
	return out
}

// safeRenderMarkdown falls back to raw text when glamour fails or panics.
func (m Model) safeRenderMarkdown(content string) (rendered string) {
	if m.renderer == nil || strings.TrimSpace(content) == "" {
		return content
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Sugar().Warnf("markdown render panic: %v", r)
			rendered = content
		}
	}()
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func (m Model) renderDocument(name document.Name) string {
	content := m.state.Documents[name]
	if strings.TrimSpace(content) == "" {
		return m.styles.Muted.Render(name.FileName() + " has not been generated yet.")
	}
	return m.safeRenderMarkdown(content)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(document.All()))
	for _, n := range document.All() {
		label := n.FileName()
		if m.state.Documents[n] != "" {
			label += " ✓"
		}
		if n == m.state.ActiveDocument {
			tabs = append(tabs, m.styles.DocTabActive.Render(label))
		} else {
			tabs = append(tabs, m.styles.DocTab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderHeader() string {
	thinking := "off"
	if m.state.ThinkingMode {
		thinking = "on"
	}
	title := m.styles.Header.Render("specarch")
	badge := m.styles.Phase.Render(m.state.Phase.Title())
	info := " thinking: " + thinking
	if m.usage != nil {
		info += fmt.Sprintf(" · tokens: %d", m.usage.Stats().Total.Total)
	}
	info = m.styles.Muted.Render(info)
	return lipgloss.JoinHorizontal(lipgloss.Top, title, " ", badge, info)
}

func (m Model) usageReport() string {
	if m.usage == nil {
		return "Token usage is not tracked."
	}
	stats := m.usage.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "Token usage (%d turns): %d in, %d out", stats.Turns, stats.Total.Input, stats.Total.Output)
	for _, p := range phase.All() {
		if c, ok := stats.ByPhase[p]; ok {
			fmt.Fprintf(&b, "\n  %-26s %8d in %8d out", p.Title(), c.Input, c.Output)
		}
	}
	return b.String()
}

func (m Model) renderFooter() string {
	if m.status != "" {
		return m.styles.Warning.Render(m.status)
	}
	if m.state.Loading {
		return m.styles.Footer.Render(m.spinner.View() + " generating... (ctrl+x to abort)")
	}
	if m.state.LastError != nil {
		return m.styles.Error.Render("last error: " + m.state.LastError.Error())
	}
	return m.styles.Footer.Render("enter send · ctrl+j newline · tab next doc · ctrl+d docs · /help · ctrl+c quit")
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	body := m.chatView.View()
	if m.showDocs || m.editing != "" {
		var pane string
		if m.editing != "" {
			pane = m.styles.Title.Render("Editing "+m.editing.FileName()) + "\n" + m.editor.View()
		} else {
			pane = m.renderTabs() + "\n" + m.docView.View()
		}
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.styles.DocPane.Render(pane))
	}

	return strings.Join([]string{
		m.renderHeader(),
		body,
		m.styles.RenderDivider(m.width),
		m.input.View(),
		m.renderFooter(),
	}, "\n")
}
