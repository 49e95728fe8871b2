package domain

import "time"

// TurnOutcome records how a chat exchange ended.
type TurnOutcome string

const (
	OutcomeAnswered  TurnOutcome = "answered"
	OutcomeRejected  TurnOutcome = "rejected"
	OutcomeTransport TurnOutcome = "transport_error"
)

// Turn is one question/answer exchange, as offered to the transcript store.
type Turn struct {
	ID                 string
	CompanyName        string
	Question           string
	Answer             string
	Outcome            TurnOutcome
	ClientElapsed      time.Duration
	ServerResponseTime int64
	Cached             bool
	CreatedAt          time.Time
}
