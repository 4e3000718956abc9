package service

import (
	"context"
	"testing"

	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/events"
	pktNats "ai-interview-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedNotification struct {
	userID    uuid.UUID
	eventType string
	data      map[string]interface{}
}

type notificationRecorder struct {
	sent []capturedNotification
}

func (r *notificationRecorder) SendNotification(userID uuid.UUID, eventType string, data map[string]interface{}) {
	r.sent = append(r.sent, capturedNotification{userID: userID, eventType: eventType, data: data})
}

type fakeSubscriber struct {
	subject, durable string
	handler          pktNats.EventHandler
}

func (f *fakeSubscriber) Subscribe(subject, durableName string, handler pktNats.EventHandler) error {
	f.subject, f.durable, f.handler = subject, durableName, handler
	return nil
}

func TestNotificationService_ForwardsUserEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	rec := &notificationRecorder{}
	svc := NewNotificationService(sub, rec, logger.NewNopLogger())
	require.NoError(t, svc.Start())
	assert.Equal(t, "events.>", sub.subject)

	userID := uuid.New()
	resultID := uuid.NewString()

	tests := []struct {
		name     string
		event    events.BaseEvent
		wantSent bool
		wantMsg  string
	}{
		{
			name: "quiz completed",
			event: events.BaseEvent{Type: events.TypeQuizCompleted, Data: map[string]interface{}{
				"user_id": userID.String(), "topic": "Go", "question_count": 5,
				"entity_type": "session_result", "entity_id": resultID,
			}},
			wantSent: true,
			wantMsg:  "Your quiz on Go with 5 questions is ready.",
		},
		{
			name:  "refund failure stays with operators",
			event: events.BaseEvent{Type: events.TypeRefundFailed, Data: map[string]interface{}{"user_id": userID.String()}},
		},
		{
			name:  "missing user",
			event: events.BaseEvent{Type: events.TypeTopUpSettled, Data: map[string]interface{}{"credits": 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.sent = nil
			require.NoError(t, sub.handler(context.Background(), tt.event))
			if !tt.wantSent {
				assert.Empty(t, rec.sent)
				return
			}
			require.Len(t, rec.sent, 1)
			got := rec.sent[0]
			assert.Equal(t, userID, got.userID)
			assert.Equal(t, tt.event.Type, got.eventType)
			assert.Equal(t, tt.wantMsg, got.data["message"])
			assert.Equal(t, "/session_results/"+resultID, got.data["action_url"])
		})
	}
}
