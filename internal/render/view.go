// Package render holds the presentation side of the widget. Business logic
// talks to a View and never to a concrete screen.
package render

import "chat-widget/internal/domain"

// Control names an actionable element whose state the controller toggles.
type Control int

const (
	ControlCreate Control = iota
	ControlSend
)

func (c Control) String() string {
	switch c {
	case ControlCreate:
		return "create"
	case ControlSend:
		return "send"
	default:
		return "unknown"
	}
}

// BannerKind selects the presentation of the status banner.
type BannerKind int

const (
	BannerSuccess BannerKind = iota
	BannerError
)

func (k BannerKind) String() string {
	if k == BannerError {
		return "error"
	}
	return "success"
}

// View is the rendering surface of the widget. Implementations must be safe
// for use from multiple goroutines and must keep the latest message in view
// after every insertion.
type View interface {
	AppendMessage(msg domain.ChatMessage)
	AddTypingIndicator(id string)
	RemoveTypingIndicator(id string)
	ShowStatus(text string, kind BannerKind)
	HideStatus()
	SetChatStatus(text string)
	SetLoading(c Control, loading bool)
	SetEnabled(c Control, enabled bool)
	ClearCreateForm()
	ClearMessageInput()
	FocusMessageInput()
}

func icon(role domain.Role) string {
	if role == domain.RoleBot {
		return "🤖"
	}
	return "👤"
}
