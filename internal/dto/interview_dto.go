package dto

import "time"

// Websocket actions sent by the client.
const (
	InterviewActionStart  = "start"
	InterviewActionAnswer = "answer"
	InterviewActionAttach = "attach"
	InterviewActionEnd    = "end"
)

// InterviewClientMessage is the envelope of every client websocket message.
type InterviewClientMessage struct {
	Action         string `json:"action"`
	SessionId      string `json:"sessionId,omitempty"`
	JobKind        string `json:"jobKind,omitempty"`
	Position       string `json:"position,omitempty"`
	JobDescription string `json:"jobDescription,omitempty"`
	ResumeText     string `json:"resumeText,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	Content        string `json:"content,omitempty"`
}

type StartInterviewRequest struct {
	JobKind        string `json:"jobKind" validate:"required,max=64"`
	Position       string `json:"position" validate:"max=200"`
	JobDescription string `json:"jobDescription" validate:"max=20000"`
	ResumeText     string `json:"resumeText" validate:"max=60000"`
	IdempotencyKey string `json:"idempotencyKey" validate:"max=128"`
}

type AnswerRequest struct {
	SessionId string `json:"sessionId" validate:"required"`
	Content   string `json:"content" validate:"required,max=20000"`
}

type SessionTurnResponse struct {
	Speaker        string    `json:"speaker"`
	Text           string    `json:"text"`
	QuestionNumber int       `json:"questionNumber,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// SessionStateResponse is the diagnostic view of a live session. Reference answers are omitted.
type SessionStateResponse struct {
	SessionId         string                `json:"sessionId"`
	JobKind           string                `json:"jobKind"`
	State             string                `json:"state"`
	Active            bool                  `json:"active"`
	QuestionCount     int                   `json:"questionCount"`
	TotalQuestions    int                   `json:"totalQuestions"`
	ElapsedMinutes    int                   `json:"elapsedMinutes"`
	TargetMinutes     int                   `json:"targetMinutes"`
	ResultId          string                `json:"resultId"`
	EndReason         string                `json:"endReason,omitempty"`
	PersistenceErrors []string              `json:"persistenceErrors,omitempty"`
	History           []SessionTurnResponse `json:"history"`
}

type TranscriptEntryResponse struct {
	Role            string    `json:"role"`
	Text            string    `json:"text"`
	ReferenceAnswer string    `json:"referenceAnswer,omitempty"`
	QuestionNumber  int       `json:"questionNumber,omitempty"`
	Pending         bool      `json:"pending"`
	Timestamp       time.Time `json:"timestamp"`
}

type SessionResultResponse struct {
	Id            string                    `json:"id"`
	SessionId     string                    `json:"sessionId,omitempty"`
	JobKind       string                    `json:"jobKind"`
	Status        string                    `json:"status"`
	QuestionCount int                       `json:"questionCount"`
	Transcript    []TranscriptEntryResponse `json:"transcript"`
	Output        map[string]interface{}    `json:"output,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	CompletedAt   *time.Time                `json:"completedAt,omitempty"`
}
