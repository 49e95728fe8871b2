package render

import (
	"bytes"
	"html/template"
	"sync"

	"chat-widget/internal/domain"
)

// Node is one entry of the message list: a message or a typing placeholder.
type Node struct {
	ID      string
	Typing  bool
	Message domain.ChatMessage
}

type Banner struct {
	Text    string
	Kind    BannerKind
	Visible bool
}

type ControlState struct {
	Loading bool
	Enabled bool
}

// DocumentSnapshot is a copy of the document state, safe to read freely.
type DocumentSnapshot struct {
	Nodes              []Node
	Banner             Banner
	ChatStatus         string
	Controls           map[Control]ControlState
	ScrollIndex        int
	CreateFormClears   int
	MessageInputClears int
	Focuses            int
}

// Messages returns the real messages in display order, without placeholders.
func (s DocumentSnapshot) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if !n.Typing {
			out = append(out, n.Message)
		}
	}
	return out
}

// TypingIDs returns the ids of the placeholders still present.
func (s DocumentSnapshot) TypingIDs() []string {
	var ids []string
	for _, n := range s.Nodes {
		if n.Typing {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Document is an in-memory widget page. It backs the TUI and stands in for a
// live page in tests.
type Document struct {
	mu                 sync.Mutex
	nodes              []Node
	banner             Banner
	chatStatus         string
	controls           map[Control]ControlState
	scrollIndex        int
	createFormClears   int
	messageInputClears int
	focuses            int
	onChange           []func()
}

var _ View = (*Document)(nil)

func NewDocument() *Document {
	return &Document{
		controls: map[Control]ControlState{
			ControlCreate: {Enabled: true},
			ControlSend:   {Enabled: true},
		},
		scrollIndex: -1,
	}
}

// OnChange registers fn to run after every mutation, outside the lock.
func (d *Document) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = append(d.onChange, fn)
}

func (d *Document) mutate(fn func()) {
	d.mu.Lock()
	fn()
	hooks := append([]func(){}, d.onChange...)
	d.mu.Unlock()
	for _, h := range hooks {
		h()
	}
}

func (d *Document) scrollToLatest() {
	d.scrollIndex = len(d.nodes) - 1
}

func (d *Document) AppendMessage(msg domain.ChatMessage) {
	d.mutate(func() {
		d.nodes = append(d.nodes, Node{Message: msg})
		d.scrollToLatest()
	})
}

func (d *Document) AddTypingIndicator(id string) {
	d.mutate(func() {
		d.nodes = append(d.nodes, Node{ID: id, Typing: true, Message: domain.BotMessage("")})
		d.scrollToLatest()
	})
}

// RemoveTypingIndicator drops the placeholder with id; unknown ids are ignored.
func (d *Document) RemoveTypingIndicator(id string) {
	d.mutate(func() {
		for i, n := range d.nodes {
			if n.Typing && n.ID == id {
				d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
				break
			}
		}
		if d.scrollIndex >= len(d.nodes) {
			d.scrollToLatest()
		}
	})
}

func (d *Document) ShowStatus(text string, kind BannerKind) {
	d.mutate(func() {
		d.banner = Banner{Text: text, Kind: kind, Visible: true}
	})
}

func (d *Document) HideStatus() {
	d.mutate(func() {
		d.banner.Visible = false
	})
}

func (d *Document) SetChatStatus(text string) {
	d.mutate(func() {
		d.chatStatus = text
	})
}

func (d *Document) SetLoading(c Control, loading bool) {
	d.mutate(func() {
		d.controls[c] = ControlState{Loading: loading, Enabled: !loading}
	})
}

func (d *Document) SetEnabled(c Control, enabled bool) {
	d.mutate(func() {
		st := d.controls[c]
		st.Enabled = enabled
		d.controls[c] = st
	})
}

func (d *Document) ClearCreateForm() {
	d.mutate(func() { d.createFormClears++ })
}

func (d *Document) ClearMessageInput() {
	d.mutate(func() { d.messageInputClears++ })
}

func (d *Document) FocusMessageInput() {
	d.mutate(func() { d.focuses++ })
}

func (d *Document) Snapshot() DocumentSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	controls := make(map[Control]ControlState, len(d.controls))
	for k, v := range d.controls {
		controls[k] = v
	}
	return DocumentSnapshot{
		Nodes:              append([]Node(nil), d.nodes...),
		Banner:             d.banner,
		ChatStatus:         d.chatStatus,
		Controls:           controls,
		ScrollIndex:        d.scrollIndex,
		CreateFormClears:   d.createFormClears,
		MessageInputClears: d.messageInputClears,
		Focuses:            d.focuses,
	}
}

type htmlNode struct {
	ID      string
	Typing  bool
	Role    string
	Icon    string
	Text    string
	HasTime bool
	TimeMs  int64
}

var messagesTemplate = template.Must(template.New("messages").Parse(
	`{{range .}}{{if .Typing}}<div id="{{.ID}}" class="message bot-message"><div class="message-icon">{{.Icon}}</div><div class="message-content"><div class="typing-indicator"><span></span><span></span><span></span></div></div></div>
{{else}}<div class="message {{.Role}}-message"><div class="message-icon">{{.Icon}}</div><div class="message-content"><p>{{.Text}}</p>{{if .HasTime}}<span class="message-time">Response time: {{.TimeMs}}ms</span>{{end}}</div></div>
{{end}}{{end}}`))

// HTML renders the message list. All message text is escaped, so markup
// typed by a user or returned by the backend shows up as literal text.
func (d *Document) HTML() (string, error) {
	snap := d.Snapshot()
	nodes := make([]htmlNode, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		hn := htmlNode{
			ID:     n.ID,
			Typing: n.Typing,
			Role:   string(n.Message.Role),
			Icon:   icon(n.Message.Role),
			Text:   n.Message.Text,
		}
		if rt := n.Message.ResponseTime; rt != nil {
			hn.HasTime = true
			hn.TimeMs = rt.Milliseconds()
		}
		nodes = append(nodes, hn)
	}
	var buf bytes.Buffer
	if err := messagesTemplate.Execute(&buf, nodes); err != nil {
		return "", err
	}
	return buf.String(), nil
}
