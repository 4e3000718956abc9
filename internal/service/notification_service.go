package service

import (
	"context"
	"fmt"
	"strings"

	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/events"
	pktNats "ai-interview-be/pkg/nats"

	"github.com/google/uuid"
)

const notificationModule = "NOTIFICATION"

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	SendNotification(userID uuid.UUID, eventType string, data map[string]interface{})
}

// EventSubscriber is satisfied by *nats.Subscriber.
type EventSubscriber interface {
	Subscribe(subject, durableName string, handler pktNats.EventHandler) error
}

type notificationTemplate struct {
	Title   string
	Message string
}

// Only user-facing events are listed; operator alerts stay on the bus and in email.
var notificationTemplates = map[string]notificationTemplate{
	events.TypeSessionCompleted: {
		Title:   "Interview finished",
		Message: "Your {job_kind} interview ended after {question_count} questions.",
	},
	events.TypeQuizCompleted: {
		Title:   "Quiz ready",
		Message: "Your quiz on {topic} with {question_count} questions is ready.",
	},
	events.TypeTopUpSettled: {
		Title:   "Credits added",
		Message: "{credits} credits were added to your balance.",
	},
}

type NotificationService struct {
	subscriber EventSubscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() error {
	if err := s.subscriber.Subscribe(pktNats.SubjectPrefix+">", "notify-worker", s.handleEvent); err != nil {
		s.logger.Error(notificationModule, "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info(notificationModule, "Notification service started, listening to events.>", nil)
	return nil
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	typeCode := strings.TrimPrefix(event.EventType(), pktNats.SubjectPrefix)
	tmpl, ok := notificationTemplates[typeCode]
	if !ok {
		return nil
	}

	payload := event.Payload()
	raw, _ := payload["user_id"].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn(notificationModule, fmt.Sprintf("No user_id in payload for event %s", typeCode), nil)
		return nil
	}

	if s.delivery != nil {
		s.delivery.SendNotification(userID, typeCode, buildNotification(tmpl, payload))
	}
	return nil
}

func buildNotification(tmpl notificationTemplate, payload map[string]interface{}) map[string]interface{} {
	msg := tmpl.Message
	for k, v := range payload {
		msg = strings.ReplaceAll(msg, fmt.Sprintf("{%s}", k), fmt.Sprintf("%v", v))
	}

	out := map[string]interface{}{
		"title":   tmpl.Title,
		"message": msg,
	}
	for k, v := range payload {
		out[k] = v
	}
	entityType, _ := payload["entity_type"].(string)
	entityID, _ := payload["entity_id"].(string)
	if entityType != "" && entityID != "" {
		out["action_url"] = fmt.Sprintf("/%ss/%s", entityType, entityID)
	}
	return out
}
