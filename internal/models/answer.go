package models

// Answer is the result of a buffered query: the generated text plus the
// passages it was grounded on, best first.
type Answer struct {
	Text       string        `json:"text"`
	Sources    []SourceChunk `json:"sources"`
	TokensUsed int           `json:"tokens_used"`
}

// QueryEventType tags events on a streaming query.
type QueryEventType string

const (
	EventSources QueryEventType = "sources" // emitted once, before any token
	EventToken   QueryEventType = "token"
	EventDone    QueryEventType = "done"  // terminal
	EventError   QueryEventType = "error" // terminal
)

// QueryEvent is one message on a streaming query. A stream carries exactly
// one terminal event (done or error), always last.
type QueryEvent struct {
	Type    QueryEventType `json:"type"`
	Sources []SourceChunk  `json:"sources,omitempty"`
	Token   string         `json:"token,omitempty"`
	Answer  *Answer        `json:"answer,omitempty"`
	Error   string         `json:"error,omitempty"`
}
