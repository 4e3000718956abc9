package memory

import (
	"time"

	"ai-interview-be/pkg/interview"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps live interview sessions in process memory. Idle sessions expire
// after idleTTL; finished ones are kept for a short grace period for diagnostic reads.
type SessionRepository struct {
	cache   *cache.Cache
	idleTTL time.Duration
}

var _ interview.Store = (*SessionRepository)(nil)

func NewSessionRepository(idleTTL, cleanupInterval time.Duration) *SessionRepository {
	return &SessionRepository{
		cache:   cache.New(idleTTL, cleanupInterval),
		idleTTL: idleTTL,
	}
}

// OnEvicted registers a callback for sessions removed by expiry or Delete.
func (r *SessionRepository) OnEvicted(fn func(session *interview.Session)) {
	r.cache.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*interview.Session); ok {
			fn(s)
		}
	})
}

func (r *SessionRepository) Save(session *interview.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*interview.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*interview.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Touch(sessionID string) {
	if x, found := r.cache.Get(sessionID); found {
		_ = r.cache.Replace(sessionID, x, cache.DefaultExpiration)
	}
}

func (r *SessionRepository) Expire(sessionID string, after time.Duration) {
	if x, found := r.cache.Get(sessionID); found {
		_ = r.cache.Replace(sessionID, x, after)
	}
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Sweep evicts expired sessions now instead of waiting for the janitor.
func (r *SessionRepository) Sweep() {
	r.cache.DeleteExpired()
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
