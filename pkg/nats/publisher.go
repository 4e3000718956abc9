package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-interview-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName    = "EVENTS"
	SubjectPrefix = "events."
)

// Connect opens a connection that keeps retrying while the server is unavailable.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("ai-interview-be"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Subject maps an event type to its subject on the EVENTS stream.
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// EventType is the inverse of Subject.
func EventType(subject string) string {
	return strings.TrimPrefix(subject, SubjectPrefix)
}

// Publisher handles sending domain events to the NATS bus.
type Publisher struct {
	nc    *nats.Conn
	js    jetstream.JetStream
	owned bool
}

// NewPublisher dials url and makes sure the EVENTS stream exists.
func NewPublisher(url string) (*Publisher, error) {
	nc, err := Connect(url)
	if err != nil {
		return nil, err
	}
	p, err := NewPublisherWithConn(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewPublisherWithConn reuses an existing connection, which the caller keeps owning.
func NewPublisherWithConn(nc *nats.Conn) (*Publisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Events are consumed by several durable consumers, so the stream keeps messages by limits
	// rather than as a work queue.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %s: %w", StreamName, err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends the event payload to events.<TYPE>. The occurrence time travels in the payload.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	payload := make(map[string]interface{}, len(event.Payload())+1)
	for k, v := range event.Payload() {
		payload[k] = v
	}
	if _, ok := payload["occurred_at"]; !ok {
		payload["occurred_at"] = event.Timestamp().UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := Subject(event.EventType())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.owned && p.nc != nil {
		p.nc.Close()
	}
}
