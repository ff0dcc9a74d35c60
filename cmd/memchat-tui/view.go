package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"memchat/internal/conversation"
)

const (
	appTitle       = "AI Chat with Memory"
	tokenShowChars = 8
	emptyTimeline  = "Start a conversation with the AI assistant!\nThe AI will remember our conversations."
)

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	helpText    lipgloss.Style
	user        lipgloss.Style
	assistant   lipgloss.Style
	errorLabel  lipgloss.Style
	errorBody   lipgloss.Style
}

func newTheme() uiTheme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")
	red := lipgloss.Color("#ff5c7a")

	return uiTheme{
		root: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		title: lipgloss.NewStyle().Foreground(mint).Bold(true),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		footer: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(pink).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		helpText:   lipgloss.NewStyle().Foreground(muted),
		user:       lipgloss.NewStyle().Foreground(mint).Bold(true),
		assistant:  lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorLabel: lipgloss.NewStyle().Foreground(red).Bold(true),
		errorBody:  lipgloss.NewStyle().Foreground(red),
	}
}

func (m model) View() string {
	out := lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderContent(),
		m.renderInput(),
		m.renderFooter(),
	)
	return m.theme.root.Render(out)
}

func (m model) renderHeader() string {
	contentWidth := maxInt(40, m.width-4)
	session := m.state.Session
	meta := fmt.Sprintf(
		"Backend: %s · Session: %s · Exchanges: %d",
		m.cfg.apiBase,
		shortToken(session),
		session.ExchangeCount,
	)
	meta = truncate.StringWithTail(meta, uint(maxInt(10, contentWidth-len(appTitle)-6)), "…")
	line := lipgloss.JoinHorizontal(lipgloss.Left, m.theme.title.Render(appTitle), "  ", m.theme.helpText.Render(meta))
	return m.theme.header.Width(contentWidth).Render(line)
}

func (m model) renderContent() string {
	contentWidth := maxInt(40, m.width-4)
	return m.theme.panel.Width(contentWidth).Render(m.timeline.View())
}

func (m model) renderInput() string {
	contentWidth := maxInt(40, m.width-4)
	inputView := m.input.View()
	if m.state.Busy {
		inputView = m.spinner.View() + " sending... " + inputView
	}
	return m.theme.inputPanel.Width(contentWidth).Render(inputView)
}

func (m model) renderFooter() string {
	contentWidth := maxInt(40, m.width-4)
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	hints := m.theme.helpText.Render("Keys: Enter send · Ctrl+L clear · PgUp/PgDn scroll · /session · /logs · /quit · Esc or Ctrl+C quit")
	return m.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}

// renderTimeline refreshes the viewport from the revealed part of the
// conversation and keeps it scrolled to the newest message.
func (m *model) renderTimeline() {
	if m.showLogs {
		m.timeline.SetContent(m.logText())
	} else {
		m.timeline.SetContent(m.timelineText())
	}
	m.timeline.GotoBottom()
}

func (m *model) logText() string {
	if len(m.logs) == 0 {
		return m.theme.helpText.Render("No log lines yet. /logs returns to the chat.")
	}
	return m.theme.helpText.Render(strings.Join(m.logs, "\n"))
}

func (m *model) timelineText() string {
	visible := m.state.Messages[:minInt(m.revealed, len(m.state.Messages))]
	if len(visible) == 0 && !m.waiting() {
		return m.theme.helpText.Render(emptyTimeline)
	}
	width := maxInt(20, m.timeline.Width-2)
	var b strings.Builder
	for _, msg := range visible {
		b.WriteString(m.messageHeader(msg))
		b.WriteString("\n")
		b.WriteString(m.messageBody(msg, width))
		b.WriteString("\n\n")
	}
	if m.waiting() {
		b.WriteString(m.theme.assistant.Render(m.spinner.View() + " assistant is typing"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *model) messageHeader(msg conversation.Message) string {
	stamp := msg.Timestamp.Local().Format("15:04:05")
	switch {
	case msg.Role == conversation.RoleUser:
		return m.theme.user.Render(stamp + " [you]")
	case msg.IsError:
		return m.theme.errorLabel.Render(fmt.Sprintf("%s [error/%s]", stamp, msg.Kind))
	default:
		return m.theme.assistant.Render(stamp + " [assistant]")
	}
}

func (m *model) messageBody(msg conversation.Message, width int) string {
	switch {
	case msg.IsError:
		return m.theme.errorBody.Render(wordwrap.String(msg.Content, width))
	case msg.Role == conversation.RoleAssistant && m.markdown != nil:
		rendered, err := m.markdown.Render(msg.Content)
		if err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	return wordwrap.String(msg.Content, width)
}

func shortToken(session conversation.SessionState) string {
	if !session.HasToken {
		return "new"
	}
	return truncate.StringWithTail(session.Token, tokenShowChars+1, "…")
}

func compactSingleLine(text string, limit int) string {
	compact := strings.Join(strings.Fields(text), " ")
	if limit <= 0 {
		return ""
	}
	if len(compact) <= limit {
		return compact
	}
	if limit <= 3 {
		return compact[:limit]
	}
	return compact[:limit-3] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
