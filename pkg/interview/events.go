package interview

import (
	"encoding/json"
)

type EventType string

const (
	EventStart           EventType = "start"
	EventQuestion        EventType = "question"
	EventWaiting         EventType = "waiting"
	EventReferenceAnswer EventType = "reference_answer"
	EventThinking        EventType = "thinking"
	EventEnd             EventType = "end"
	EventError           EventType = "error"
)

// Event is one message on the interview stream. Each kind carries only its own fields.
type Event interface {
	EventType() EventType
}

type header struct {
	Type      EventType `json:"type"`
	SessionId string    `json:"sessionId"`
}

func (h header) EventType() EventType { return h.Type }

type StartEvent struct {
	header
	ResultId       string                 `json:"resultId"`
	TotalQuestions int                    `json:"totalQuestions,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// QuestionEvent streams interviewer text. IsStreaming=false carries the complete text.
type QuestionEvent struct {
	header
	Content        string `json:"content"`
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions,omitempty"`
	IsStreaming    bool   `json:"isStreaming"`
}

type ReferenceAnswerEvent struct {
	header
	Content        string `json:"content"`
	QuestionNumber int    `json:"questionNumber"`
	IsStreaming    bool   `json:"isStreaming"`
}

type WaitingEvent struct {
	header
	QuestionNumber int `json:"questionNumber"`
	ElapsedMinutes int `json:"elapsedMinutes"`
}

type ThinkingEvent struct {
	header
	QuestionNumber int `json:"questionNumber"`
}

type EndEvent struct {
	header
	ResultId       string                 `json:"resultId,omitempty"`
	Content        string                 `json:"content,omitempty"`
	ElapsedMinutes int                    `json:"elapsedMinutes"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type ErrorEvent struct {
	header
	Error    string                 `json:"error"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func NewStartEvent(sessionID, resultID string, totalQuestions int, metadata map[string]interface{}) StartEvent {
	return StartEvent{header: header{EventStart, sessionID}, ResultId: resultID, TotalQuestions: totalQuestions, Metadata: metadata}
}

func NewQuestionEvent(sessionID, content string, number, total int, streaming bool) QuestionEvent {
	return QuestionEvent{header: header{EventQuestion, sessionID}, Content: content, QuestionNumber: number, TotalQuestions: total, IsStreaming: streaming}
}

func NewReferenceAnswerEvent(sessionID, content string, number int, streaming bool) ReferenceAnswerEvent {
	return ReferenceAnswerEvent{header: header{EventReferenceAnswer, sessionID}, Content: content, QuestionNumber: number, IsStreaming: streaming}
}

func NewWaitingEvent(sessionID string, number, elapsed int) WaitingEvent {
	return WaitingEvent{header: header{EventWaiting, sessionID}, QuestionNumber: number, ElapsedMinutes: elapsed}
}

func NewThinkingEvent(sessionID string, number int) ThinkingEvent {
	return ThinkingEvent{header: header{EventThinking, sessionID}, QuestionNumber: number}
}

func NewEndEvent(sessionID, resultID, content string, elapsed int, metadata map[string]interface{}) EndEvent {
	return EndEvent{header: header{EventEnd, sessionID}, ResultId: resultID, Content: content, ElapsedMinutes: elapsed, Metadata: metadata}
}

func NewErrorEvent(sessionID, message string, metadata map[string]interface{}) ErrorEvent {
	return ErrorEvent{header: header{EventError, sessionID}, Error: message, Metadata: metadata}
}

// Sink receives the events of one client connection.
type Sink interface {
	Send(event Event) error
}

type SinkFunc func(event Event) error

func (f SinkFunc) Send(event Event) error { return f(event) }

// Encode renders an event as the JSON object sent to clients.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
