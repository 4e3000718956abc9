package events

import "time"

// Domain event types. Each is published on the subject events.<TYPE>.
const (
	TypeSessionCompleted = "SESSION_COMPLETED"
	TypeQuizCompleted    = "QUIZ_COMPLETED"
	TypeRefundFailed     = "CONSUMPTION_REFUND_FAILED"
	TypeTopUpSettled     = "CREDIT_TOPUP_SETTLED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// UserID reads the user_id field most payloads carry.
func (e BaseEvent) UserID() string {
	id, _ := e.Data["user_id"].(string)
	return id
}
