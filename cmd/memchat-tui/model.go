package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"memchat/internal/conversation"
)

const (
	healthTimeout = 5 * time.Second
	maxLogLines   = 50
)

type healthChecker interface {
	Health(ctx context.Context) error
}

type model struct {
	cfg    appConfig
	ctrl   *conversation.Controller
	health healthChecker
	events *uiLogObserver

	state      conversation.State
	revealed   int
	revealGen  int
	typing     bool
	statusLine string
	logs       []string
	showLogs   bool

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer

	theme uiTheme
}

type healthDoneMsg struct {
	err error
}

type replyDoneMsg struct {
	message conversation.Message
	err     error
}

// revealMsg uncovers messages up to upTo once the typing delay has passed.
// gen ties it to the timeline it was scheduled for, so a reveal that outlives
// a clear is ignored.
type revealMsg struct {
	gen  int
	upTo int
}

func newModel(cfg appConfig, ctrl *conversation.Controller, health healthChecker) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Type your message..."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	m := model{
		cfg:        cfg,
		ctrl:       ctrl,
		health:     health,
		statusLine: "ready",
		logs:       []string{},
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
	}
	m.syncState()
	m.revealed = len(m.state.Messages)
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, textinput.Blink}
	if m.cfg.healthCheck && m.health != nil {
		cmds = append(cmds, m.healthCmd())
	}
	if m.events != nil {
		cmds = append(cmds, m.events.wait())
	}
	return tea.Batch(cmds...)
}

func (m model) healthCmd() tea.Cmd {
	probe := m.health
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		return healthDoneMsg{err: probe.Health(ctx)}
	}
}

// completeCmd runs the exchange off the UI loop; it is the only place the
// program waits on the network.
func (m model) completeCmd(ex *conversation.Exchange) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		msg, err := ctrl.Complete(context.Background(), ex)
		return replyDoneMsg{message: msg, err: err}
	}
}

func revealAfter(delay time.Duration, reveal revealMsg) tea.Cmd {
	if delay <= 0 {
		return func() tea.Msg { return reveal }
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return reveal })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case logLineMsg:
		m.appendLog(string(msg))
		if m.showLogs {
			m.renderTimeline()
		}
		if m.events != nil {
			cmds = append(cmds, m.events.wait())
		}
	case healthDoneMsg:
		if msg.err != nil {
			kind := conversation.Classify(msg.err)
			m.appendLog("health check failed: " + msg.err.Error())
			m.statusLine = "service check failed: " + kind.Text()
			break
		}
		m.statusLine = "connected to " + m.cfg.apiBase
		m.appendLog(m.statusLine)
	case replyDoneMsg:
		m.syncState()
		if msg.err != nil {
			m.logError(msg.err)
		} else if msg.message.IsError {
			m.appendLog(fmt.Sprintf("exchange failed (%s)", msg.message.Kind))
			m.statusLine = "error: " + string(msg.message.Kind)
		} else {
			m.statusLine = fmt.Sprintf("reply received · exchanges=%d", m.state.Session.ExchangeCount)
		}
		m.typing = true
		cmds = append(cmds, revealAfter(m.cfg.typingDelay, revealMsg{gen: m.revealGen, upTo: len(m.state.Messages)}))
	case revealMsg:
		if msg.gen != m.revealGen {
			break
		}
		m.syncState()
		m.advanceReveal(msg.upTo)
		m.typing = m.revealed < len(m.state.Messages)
		m.renderTimeline()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTimeline()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.waiting() {
			m.renderTimeline()
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.ctrl.Close()
			return m, tea.Quit
		case "ctrl+l":
			m.clear()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		case "enter":
			return m, m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) submit() tea.Cmd {
	raw := m.input.Value()
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "/") {
		m.input.Reset()
		return m.handleSlash(trimmed)
	}
	ex, ok := m.ctrl.Submit(raw)
	if !ok {
		if m.ctrl.Busy() {
			m.statusLine = "still waiting for the previous reply"
		}
		return nil
	}
	m.input.Reset()
	m.syncState()
	m.advanceReveal(m.revealed)
	m.statusLine = "sending..."
	m.renderTimeline()
	return m.completeCmd(ex)
}

func (m *model) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(raw)
	switch strings.ToLower(parts[0]) {
	case "/clear":
		m.clear()
		return nil
	case "/quit", "/exit":
		m.ctrl.Close()
		return tea.Quit
	case "/logs":
		m.showLogs = !m.showLogs
		m.renderTimeline()
		return nil
	case "/session":
		session := m.ctrl.Session()
		if !session.HasToken {
			m.statusLine = "no session yet"
		} else {
			m.statusLine = fmt.Sprintf("session=%s exchanges=%d", session.Token, session.ExchangeCount)
		}
		m.appendLog(m.statusLine)
		return nil
	default:
		m.statusLine = "unknown command: " + parts[0] + " (try /clear, /session, /logs, /quit)"
		return nil
	}
}

func (m *model) clear() {
	if err := m.ctrl.Clear(); err != nil {
		if errors.Is(err, conversation.ErrBusy) {
			m.statusLine = "cannot clear while a request is in flight"
			return
		}
		m.logError(err)
		return
	}
	m.syncState()
	m.revealed = 0
	m.revealGen++
	m.typing = false
	m.statusLine = "conversation cleared"
	m.appendLog(m.statusLine)
	m.renderTimeline()
}

func (m *model) syncState() {
	m.state = m.ctrl.State()
	if m.revealed > len(m.state.Messages) {
		m.revealed = len(m.state.Messages)
	}
}

// advanceReveal shows messages up to upTo, then any user messages that
// directly follow. A reply still behind the typing delay stays hidden along
// with everything after it.
func (m *model) advanceReveal(upTo int) {
	n := clampInt(maxInt(m.revealed, upTo), 0, len(m.state.Messages))
	for n < len(m.state.Messages) && m.state.Messages[n].Role == conversation.RoleUser {
		n++
	}
	m.revealed = n
}

func (m model) waiting() bool {
	return m.state.Busy || m.typing
}

func (m *model) resize() {
	contentWidth := maxInt(40, m.width-4)
	m.input.Width = maxInt(20, contentWidth-6)
	m.timeline.Width = maxInt(20, contentWidth-4)
	m.timeline.Height = maxInt(4, m.height-12)
	m.markdown = nil
	if m.cfg.markdown {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(maxInt(20, m.timeline.Width-2)),
		)
		if err != nil {
			m.appendLog("markdown disabled: " + err.Error())
			return
		}
		m.markdown = renderer
	}
}

func (m *model) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *model) logError(err error) {
	if err == nil {
		return
	}
	m.appendLog("error: " + err.Error())
	m.statusLine = "error: " + compactSingleLine(err.Error(), 160)
}
