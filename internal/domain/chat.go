package domain

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ChatMessage is a single rendered entry in the conversation. ResponseTime is
// set only on bot replies whose round trip was measured.
type ChatMessage struct {
	Role         Role
	Text         string
	ResponseTime *time.Duration
}

// UserMessage returns a user-authored message.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Text: text}
}

// BotMessage returns a bot-authored message without timing.
func BotMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleBot, Text: text}
}

// TimedBotMessage returns a bot reply annotated with the measured round trip.
func TimedBotMessage(text string, elapsed time.Duration) ChatMessage {
	return ChatMessage{Role: RoleBot, Text: text, ResponseTime: &elapsed}
}
