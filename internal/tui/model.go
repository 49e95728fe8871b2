// Package tui is the interactive terminal front end of the widget. The model
// renders a render.Document and forwards form submissions to the controller
// as commands, so the backend round trips never block the event loop.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chat-widget/internal/domain"
	"chat-widget/internal/render"
	"chat-widget/internal/usecase"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	timeStyle    = lipgloss.NewStyle().Faint(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle   = lipgloss.NewStyle().Width(10)
	messagesPane = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))
)

const (
	defaultWidth  = 80
	defaultHeight = 12
	// rows used by everything around the messages pane
	chromeHeight = 12
)

// Controller is the part of usecase.Controller the TUI drives.
type Controller interface {
	Start(ctx context.Context) bool
	CreateChatbot(ctx context.Context, in usecase.CreateInput) error
	SendMessage(ctx context.Context, question string) error
}

type field int

const (
	fieldCompany field = iota
	fieldURL
	fieldMessage
	fieldCount
)

type documentChangedMsg struct{}

type startedMsg struct{ ready bool }

// actionDoneMsg reports a finished handler. Failures already reached the
// document, so the error is kept for tests and logs only.
type actionDoneMsg struct{ err error }

type Model struct {
	ctx     context.Context
	ctrl    Controller
	doc     *render.Document
	changes <-chan struct{}

	company  textinput.Model
	site     textinput.Model
	message  textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	focus    field

	snap        render.DocumentSnapshot
	formClears  int
	inputClears int
	focusesSeen int
	lastErr     error
}

func New(ctx context.Context, ctrl Controller, doc *render.Document) Model {
	changes := make(chan struct{}, 1)
	doc.OnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	company := textinput.New()
	company.Placeholder = "Company name"
	company.Prompt = ""
	company.CharLimit = 200
	site := textinput.New()
	site.Placeholder = "https://example.com"
	site.Prompt = ""
	site.CharLimit = 2048
	message := textinput.New()
	message.Placeholder = "Ask me anything about the company..."
	message.CharLimit = 1000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		doc:      doc,
		changes:  changes,
		company:  company,
		site:     site,
		message:  message,
		spinner:  sp,
		viewport: viewport.New(defaultWidth, defaultHeight),
		snap:     doc.Snapshot(),
	}
	m.formClears = m.snap.CreateFormClears
	m.inputClears = m.snap.MessageInputClears
	m.focusesSeen = m.snap.Focuses
	m.setFocus(fieldCompany)
	m.refreshMessages()
	return m
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return documentChangedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForChange(m.changes),
		func() tea.Msg { return startedMsg{ready: ctrl.Start(ctx)} },
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			m.setFocus((m.focus + 1) % fieldCount)
			return m, textinput.Blink
		case "shift+tab", "up":
			m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, textinput.Blink
		case "enter":
			return m, m.submit()
		}
		return m, m.updateFocused(msg)

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.refreshMessages()
		return m, nil

	case documentChangedMsg:
		m.syncDocument()
		return m, waitForChange(m.changes)

	case startedMsg:
		if msg.ready {
			m.setFocus(fieldMessage)
		}
		return m, nil

	case actionDoneMsg:
		m.lastErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if len(m.snap.TypingIDs()) > 0 {
			m.refreshMessages()
		}
		return m, cmd
	}

	return m, m.updateFocused(msg)
}

// submit turns Enter into a controller call. Disabled controls swallow it,
// like a disabled button.
func (m *Model) submit() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	if m.focus == fieldMessage {
		if !m.snap.Controls[render.ControlSend].Enabled {
			return nil
		}
		question := m.message.Value()
		return func() tea.Msg {
			return actionDoneMsg{err: ctrl.SendMessage(ctx, question)}
		}
	}
	if !m.snap.Controls[render.ControlCreate].Enabled {
		return nil
	}
	in := usecase.CreateInput{CompanyName: m.company.Value(), WebsiteURL: m.site.Value()}
	return func() tea.Msg {
		return actionDoneMsg{err: ctrl.CreateChatbot(ctx, in)}
	}
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case fieldCompany:
		m.company, cmd = m.company.Update(msg)
	case fieldURL:
		m.site, cmd = m.site.Update(msg)
	case fieldMessage:
		m.message, cmd = m.message.Update(msg)
	}
	return cmd
}

func (m *Model) setFocus(f field) {
	m.focus = f
	inputs := []*textinput.Model{&m.company, &m.site, &m.message}
	for i, in := range inputs {
		if field(i) == f {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

// syncDocument applies the document's one-shot commands (clears and focus)
// and redraws the message list.
func (m *Model) syncDocument() {
	m.snap = m.doc.Snapshot()
	if m.snap.CreateFormClears != m.formClears {
		m.formClears = m.snap.CreateFormClears
		m.company.Reset()
		m.site.Reset()
		m.setFocus(fieldMessage)
	}
	if m.snap.MessageInputClears != m.inputClears {
		m.inputClears = m.snap.MessageInputClears
		m.message.Reset()
	}
	if m.snap.Focuses != m.focusesSeen {
		m.focusesSeen = m.snap.Focuses
		m.setFocus(fieldMessage)
	}
	m.refreshMessages()
}

func (m *Model) refreshMessages() {
	width := m.viewport.Width
	if width <= 0 {
		width = defaultWidth
	}
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, n := range m.snap.Nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		if n.Typing {
			b.WriteString(botStyle.Render("🤖 Bot:") + " " + m.spinner.View() + " typing...")
			continue
		}
		b.WriteString(wrap.Render(formatMessage(n.Message)))
	}
	m.viewport.SetContent(b.String())
	if m.snap.ScrollIndex >= 0 {
		m.viewport.GotoBottom()
	}
}

func formatMessage(msg domain.ChatMessage) string {
	label := userStyle.Render("👤 You:")
	if msg.Role == domain.RoleBot {
		label = botStyle.Render("🤖 Bot:")
	}
	line := label + " " + render.SanitizeTerminal(msg.Text)
	if rt := msg.ResponseTime; rt != nil {
		line += " " + timeStyle.Render(fmt.Sprintf("(Response time: %dms)", rt.Milliseconds()))
	}
	return line
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("AI Company Assistant"))
	if s := m.snap.ChatStatus; s != "" {
		b.WriteString("  " + statusStyle.Render("● "+render.SanitizeTerminal(s)))
	}
	b.WriteString("\n")

	if banner := m.snap.Banner; banner.Visible {
		style := okStyle
		if banner.Kind == render.BannerError {
			style = errStyle
		}
		b.WriteString(style.Render(render.SanitizeTerminal(banner.Text)))
	}
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Company") + m.company.View() + "\n")
	b.WriteString(labelStyle.Render("Website") + m.site.View())
	if m.snap.Controls[render.ControlCreate].Loading {
		b.WriteString("  " + m.spinner.View() + " Analyzing website...")
	}
	b.WriteString("\n\n")

	b.WriteString(messagesPane.Render(m.viewport.View()))
	b.WriteString("\n")
	b.WriteString(m.message.View())
	if !m.snap.Controls[render.ControlSend].Enabled {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("tab: next field • enter: submit • esc: quit"))
	return b.String()
}

// Run shows the widget until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, doc *render.Document) error {
	p := tea.NewProgram(New(ctx, ctrl, doc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
