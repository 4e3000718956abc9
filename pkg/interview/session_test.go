package interview

import (
	"encoding/json"
	"testing"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/pkg/generation"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(maxMinutes int) *Session {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return NewSession("s-1", uuid.New(), config.JobKind{Name: "mock", MaxDurationMinutes: maxMinutes, TotalQuestions: 2}, start)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateCreated, StateOpeningDelivered, true},
		{StateOpeningDelivered, StateAwaitingAnswer, true},
		{StateAwaitingAnswer, StateGenerating, true},
		{StateAwaitingAnswer, StateTimedOut, true},
		{StateGenerating, StateAwaitingAnswer, true},
		{StateGenerating, StateEnding, true},
		{StateEnding, StateCompleted, true},
		{StateTimedOut, StateCompleted, true},
		{StateCreated, StateGenerating, false},
		{StateGenerating, StateTimedOut, false},
		{StateCompleted, StateAwaitingAnswer, false},
		{StateFailed, StateAwaitingAnswer, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSession_TerminalDeactivates(t *testing.T) {
	s := newSession(30)
	require.NoError(t, s.Transition(StateOpeningDelivered))
	require.NoError(t, s.Transition(StateAwaitingAnswer))
	require.NoError(t, s.Transition(StateTimedOut))
	require.NoError(t, s.Transition(StateCompleted))

	assert.False(t, s.Active)
	assert.ErrorIs(t, s.Transition(StateAwaitingAnswer), ErrInvalidTransition)
	assert.ErrorIs(t, s.AppendTurn(Turn{Text: "late"}), ErrSessionInactive)
}

func TestSession_TimedOut(t *testing.T) {
	s := newSession(60)
	assert.False(t, s.TimedOut(s.StartedAt.Add(59*time.Minute)))
	assert.True(t, s.TimedOut(s.StartedAt.Add(60*time.Minute)))
	assert.True(t, s.TimedOut(s.StartedAt.Add(61*time.Minute)))
	assert.Equal(t, 61, s.ElapsedMinutes(s.StartedAt.Add(61*time.Minute+30*time.Second)))
}

func TestSession_TurnLock(t *testing.T) {
	s := newSession(30)
	require.NoError(t, s.Acquire())
	assert.ErrorIs(t, s.Acquire(), ErrTurnInProgress)
	s.Release()
	assert.NoError(t, s.Acquire())
}

func TestSession_History(t *testing.T) {
	s := newSession(30)
	require.NoError(t, s.AppendTurn(Turn{Speaker: generation.SpeakerInterviewer, Text: "Q1"}))
	require.NoError(t, s.AppendTurn(Turn{Speaker: generation.SpeakerCandidate, Text: "A1"}))

	last, ok := s.LastInterviewerTurn()
	require.True(t, ok)
	assert.Equal(t, "Q1", last.Text)
	assert.Equal(t, 2, s.TurnCount)
	assert.Len(t, s.GenerationHistory(), 2)

	s.QuestionCount = 2
	assert.True(t, s.QuestionLimitReached())
}

func TestEncode_TaggedShapes(t *testing.T) {
	raw, err := Encode(NewQuestionEvent("s-1", "Why Go?", 1, 10, false))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "question", got["type"])
	assert.Equal(t, "s-1", got["sessionId"])
	assert.Equal(t, false, got["isStreaming"])
	assert.NotContains(t, got, "error")

	raw, err = Encode(NewEndEvent("s-1", "r-1", "bye", 61, map[string]interface{}{"reason": ReasonTimeout}))
	require.NoError(t, err)
	got = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "end", got["type"])
	assert.Equal(t, "timeout", got["metadata"].(map[string]interface{})["reason"])
	assert.NotContains(t, got, "isStreaming")
}
