package memory

import (
	"testing"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/pkg/interview"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository_SaveGetDelete(t *testing.T) {
	repo := NewSessionRepository(time.Minute, time.Minute)
	s := interview.NewSession("s-1", uuid.New(), config.JobKind{Name: "mock"}, time.Now())

	repo.Save(s)
	got, ok := repo.Get("s-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	repo.Delete("s-1")
	_, ok = repo.Get("s-1")
	assert.False(t, ok)
}

func TestSessionRepository_ExpireEvicts(t *testing.T) {
	repo := NewSessionRepository(time.Hour, time.Hour)
	var evicted []string
	repo.OnEvicted(func(s *interview.Session) { evicted = append(evicted, s.ID) })

	repo.Save(interview.NewSession("done", uuid.New(), config.JobKind{}, time.Now()))
	repo.Save(interview.NewSession("live", uuid.New(), config.JobKind{}, time.Now()))

	repo.Expire("done", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	repo.Sweep()

	_, ok := repo.Get("done")
	assert.False(t, ok)
	_, ok = repo.Get("live")
	assert.True(t, ok)
	assert.Equal(t, []string{"done"}, evicted)
	assert.Equal(t, 1, repo.Count())
}
