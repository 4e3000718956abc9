package interview

import "time"

// Store is the registry of live sessions, keyed by session id.
type Store interface {
	Save(session *Session)
	Get(id string) (*Session, bool)
	// Touch restarts the idle expiry of a session.
	Touch(id string)
	// Expire schedules eviction after the given grace period.
	Expire(id string, after time.Duration)
	Delete(id string)
}
