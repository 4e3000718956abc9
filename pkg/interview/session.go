// Package interview holds the in-memory state of running practice interviews.
package interview

import (
	"sync"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/pkg/generation"
	"ai-interview-be/pkg/ledger"

	"github.com/google/uuid"
)

// End reasons reported in the terminal event.
const (
	ReasonCompleted      = "completed"
	ReasonTimeout        = "timeout"
	ReasonQuestionLimit  = "question_limit"
	ReasonCandidateEnded = "candidate_ended"
	ReasonAbandoned      = "abandoned"
	ReasonFailed         = "failed"
)

type Turn struct {
	Speaker         generation.Speaker
	Text            string
	ReferenceAnswer string
	QuestionNumber  int
	Timestamp       time.Time
}

// Session is owned by the orchestrator. Fields are only touched while holding the turn lock.
type Session struct {
	ID             string
	UserID         uuid.UUID
	Kind           config.JobKind
	Position       string
	JobDescription string
	ResumeText     string

	History        []Turn
	TurnCount      int
	QuestionCount  int
	StartedAt      time.Time
	TargetDuration time.Duration
	LastActivity   time.Time
	Active         bool
	State          State
	EndReason      string

	ResultID uuid.UUID
	RecordID uuid.UUID
	Ticket   *ledger.Ticket

	PersistenceErrors []string

	turn sync.Mutex
}

func NewSession(id string, userID uuid.UUID, kind config.JobKind, startedAt time.Time) *Session {
	return &Session{
		ID:             id,
		UserID:         userID,
		Kind:           kind,
		StartedAt:      startedAt,
		LastActivity:   startedAt,
		TargetDuration: time.Duration(kind.MaxDurationMinutes) * time.Minute,
		Active:         true,
		State:          StateCreated,
	}
}

// Acquire takes the single-writer turn lock without blocking.
func (s *Session) Acquire() error {
	if !s.turn.TryLock() {
		return ErrTurnInProgress
	}
	return nil
}

// AcquireWait blocks until the turn lock is free.
func (s *Session) AcquireWait() {
	s.turn.Lock()
}

func (s *Session) Release() {
	s.turn.Unlock()
}

// Transition moves the state machine. Terminal states deactivate the session.
func (s *Session) Transition(to State) error {
	if err := checkTransition(s.State, to); err != nil {
		return err
	}
	s.State = to
	if to.Terminal() {
		s.Active = false
	}
	return nil
}

// AppendTurn adds to the append-only history of an active session.
func (s *Session) AppendTurn(turn Turn) error {
	if !s.Active {
		return ErrSessionInactive
	}
	s.History = append(s.History, turn)
	s.TurnCount++
	return nil
}

func (s *Session) ElapsedMinutes(now time.Time) int {
	return int(now.Sub(s.StartedAt) / time.Minute)
}

// TimedOut is evaluated at the start of a turn, so its precision is the turn cadence.
func (s *Session) TimedOut(now time.Time) bool {
	return s.TargetDuration > 0 && now.Sub(s.StartedAt) >= s.TargetDuration
}

func (s *Session) QuestionLimitReached() bool {
	return s.Kind.TotalQuestions > 0 && s.QuestionCount >= s.Kind.TotalQuestions
}

// LastInterviewerTurn returns the most recent interviewer turn, if any.
func (s *Session) LastInterviewerTurn() (Turn, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Speaker == generation.SpeakerInterviewer {
			return s.History[i], true
		}
	}
	return Turn{}, false
}

func (s *Session) NotePersistenceError(err error) {
	s.PersistenceErrors = append(s.PersistenceErrors, err.Error())
}

func (s *Session) GenerationHistory() []generation.Turn {
	out := make([]generation.Turn, len(s.History))
	for i, t := range s.History {
		out[i] = generation.Turn{Speaker: t.Speaker, Text: t.Text}
	}
	return out
}
