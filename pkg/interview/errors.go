package interview

import "errors"

var (
	ErrSessionNotFound   = errors.New("interview session not found")
	ErrSessionInactive   = errors.New("interview session is no longer active")
	ErrTurnInProgress    = errors.New("another turn is already being processed for this session")
	ErrInvalidTransition = errors.New("invalid session state transition")
)
