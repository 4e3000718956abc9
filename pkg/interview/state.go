package interview

import "fmt"

type State string

const (
	StateCreated          State = "created"
	StateOpeningDelivered State = "opening_delivered"
	StateAwaitingAnswer   State = "awaiting_answer"
	StateGenerating       State = "generating"
	StateEnding           State = "ending"
	StateTimedOut         State = "timed_out"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

var transitions = map[State][]State{
	StateCreated:          {StateOpeningDelivered, StateFailed},
	StateOpeningDelivered: {StateAwaitingAnswer, StateFailed},
	StateAwaitingAnswer:   {StateGenerating, StateTimedOut, StateEnding, StateCompleted},
	StateGenerating:       {StateAwaitingAnswer, StateEnding, StateFailed},
	StateEnding:           {StateCompleted},
	StateTimedOut:         {StateCompleted},
}

// Terminal states have no outgoing transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
