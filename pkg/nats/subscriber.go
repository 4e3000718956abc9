package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event. A returned error redelivers the message.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber consumes domain events through durable JetStream consumers.
type Subscriber struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	logger   logger.ILogger
	consumes []jetstream.ConsumeContext
	owned    bool
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, err := Connect(url)
	if err != nil {
		return nil, err
	}
	s, err := NewSubscriberWithConn(nc, log)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func NewSubscriberWithConn(nc *nats.Conn, log logger.ILogger) (*Subscriber, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// Subscribe registers a handler for a subject pattern under a durable consumer name.
func (s *Subscriber) Subscribe(subject, durableName string, handler EventHandler) error {
	ctx := context.Background()

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := decode(msg.Subject(), msg.Data())
		if err != nil {
			s.logger.Error("NATS", "Dropping undecodable event", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Term()
			return
		}

		if err := handler(context.Background(), event); err != nil {
			s.logger.Warn("NATS", "Handler failed, event will be redelivered", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.consumes = append(s.consumes, cc)

	s.logger.Info("NATS", "Subscribed", map[string]interface{}{"subject": subject, "durable": durableName})
	return nil
}

func decode(subject string, data []byte) (events.BaseEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return events.BaseEvent{}, fmt.Errorf("unmarshal event data: %w", err)
	}

	occurredAt := time.Now()
	if raw, ok := payload["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			occurredAt = t
		}
	}
	return events.BaseEvent{Type: EventType(subject), Data: payload, OccurredAt: occurredAt}, nil
}

func (s *Subscriber) Close() {
	for _, cc := range s.consumes {
		cc.Stop()
	}
	if s.owned && s.nc != nil {
		s.nc.Close()
	}
}
