package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"chat-widget/internal/domain"
)

// Terminal writes the conversation as styled lines. Output is append-only, so
// removals and input resets have nothing to draw.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer

	userStyle    lipgloss.Style
	botStyle     lipgloss.Style
	timeStyle    lipgloss.Style
	okStyle      lipgloss.Style
	errStyle     lipgloss.Style
	statusStyle  lipgloss.Style
	loadingStyle lipgloss.Style
}

var _ View = (*Terminal)(nil)

func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:            w,
		userStyle:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		botStyle:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		timeStyle:    r.NewStyle().Faint(true),
		okStyle:      r.NewStyle().Foreground(lipgloss.Color("42")),
		errStyle:     r.NewStyle().Foreground(lipgloss.Color("196")),
		statusStyle:  r.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		loadingStyle: r.NewStyle().Faint(true),
	}
}

func (t *Terminal) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.w, s)
}

func (t *Terminal) AppendMessage(msg domain.ChatMessage) {
	label := t.userStyle.Render(icon(msg.Role) + " You:")
	if msg.Role == domain.RoleBot {
		label = t.botStyle.Render(icon(msg.Role) + " Bot:")
	}
	line := label + " " + SanitizeTerminal(msg.Text)
	if rt := msg.ResponseTime; rt != nil {
		line += " " + t.timeStyle.Render(fmt.Sprintf("(Response time: %dms)", rt.Milliseconds()))
	}
	t.println(line)
}

func (t *Terminal) AddTypingIndicator(string) {
	t.println(t.loadingStyle.Render(icon(domain.RoleBot) + " typing..."))
}

func (t *Terminal) RemoveTypingIndicator(string) {}

func (t *Terminal) ShowStatus(text string, kind BannerKind) {
	style := t.okStyle
	if kind == BannerError {
		style = t.errStyle
	}
	t.println(style.Render(SanitizeTerminal(text)))
}

func (t *Terminal) HideStatus() {}

func (t *Terminal) SetChatStatus(text string) {
	t.println(t.statusStyle.Render("● " + SanitizeTerminal(text)))
}

func (t *Terminal) SetLoading(c Control, loading bool) {
	if loading && c == ControlCreate {
		t.println(t.loadingStyle.Render("Analyzing website..."))
	}
}

func (t *Terminal) SetEnabled(Control, bool) {}

func (t *Terminal) ClearCreateForm() {}

func (t *Terminal) ClearMessageInput() {}

func (t *Terminal) FocusMessageInput() {}

// SanitizeTerminal drops escape sequences and control characters so text from
// users or the backend cannot drive the terminal.
func SanitizeTerminal(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
