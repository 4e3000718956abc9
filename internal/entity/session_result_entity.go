package entity

import (
	"time"

	"github.com/google/uuid"
)

type ResultStatus string

const (
	ResultStatusInProgress ResultStatus = "in_progress"
	ResultStatusCompleted  ResultStatus = "completed"
	ResultStatusAbandoned  ResultStatus = "abandoned"
	ResultStatusFailed     ResultStatus = "failed"
)

const (
	TranscriptRoleInterviewer = "interviewer"
	TranscriptRoleCandidate   = "candidate"
)

// TranscriptEntry is the durable mirror of one session turn.
type TranscriptEntry struct {
	Role            string    `json:"role"`
	Text            string    `json:"text"`
	ReferenceAnswer string    `json:"reference_answer,omitempty"`
	QuestionNumber  int       `json:"question_number,omitempty"`
	Pending         bool      `json:"pending"`
	Timestamp       time.Time `json:"timestamp"`
}

// SessionResult is the durable output of an interview or quiz job.
type SessionResult struct {
	Id                  uuid.UUID
	UserId              uuid.UUID
	SessionId           string
	JobKind             string
	Status              ResultStatus
	QuestionCount       int
	Transcript          []TranscriptEntry
	Output              map[string]interface{}
	ConsumptionRecordId *uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           *time.Time
	CompletedAt         *time.Time
}
