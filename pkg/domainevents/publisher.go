// Package domainevents publishes the lifecycle events other services react to.
package domainevents

import (
	"context"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/pkg/mailer"
	pkgEvents "ai-interview-be/pkg/events"
	"ai-interview-be/pkg/ledger"

	"github.com/google/uuid"
)

// Bus is satisfied by *nats.Publisher.
type Bus interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// SessionSummary describes a finished interview.
type SessionSummary struct {
	SessionID      string
	ResultID       uuid.UUID
	UserID         uuid.UUID
	JobKind        string
	Reason         string
	QuestionCount  int
	ElapsedMinutes int
}

// Publisher abstracts event publishing for the interview domain.
type Publisher interface {
	ledger.AlertPublisher
	PublishSessionCompleted(ctx context.Context, summary SessionSummary)
	PublishQuizCompleted(ctx context.Context, userID, resultID uuid.UUID, topic string, questionCount int)
	PublishTopUpSettled(ctx context.Context, topUp *entity.CreditTopUp)
}

// NatsPublisher publishes best-effort: failures are logged, never returned.
type NatsPublisher struct {
	bus           Bus
	mailer        mailer.IEmailService
	operatorEmail string
	logger        logger.ILogger
	now           func() time.Time
}

var _ Publisher = (*NatsPublisher)(nil)

// NewNatsPublisher accepts a nil bus or mailer; the corresponding channel is then skipped.
func NewNatsPublisher(bus Bus, mail mailer.IEmailService, operatorEmail string, log logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		bus:           bus,
		mailer:        mail,
		operatorEmail: operatorEmail,
		logger:        log,
		now:           time.Now,
	}
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if p.bus == nil {
		return
	}

	now := p.now()
	data["occurred_at"] = now.UTC().Format(time.RFC3339Nano)
	evt := pkgEvents.BaseEvent{Type: eventType, Data: data, OccurredAt: now}

	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish "+eventType+" event", map[string]interface{}{"error": err.Error()})
	}
}

// PublishSessionCompleted emits SESSION_COMPLETED for every terminated interview.
func (p *NatsPublisher) PublishSessionCompleted(ctx context.Context, s SessionSummary) {
	p.publish(ctx, pkgEvents.TypeSessionCompleted, map[string]interface{}{
		"session_id":      s.SessionID,
		"result_id":       s.ResultID.String(),
		"user_id":         s.UserID.String(),
		"job_kind":        s.JobKind,
		"reason":          s.Reason,
		"question_count":  s.QuestionCount,
		"elapsed_minutes": s.ElapsedMinutes,
		"entity_type":     "session_result",
		"entity_id":       s.ResultID.String(),
	})
}

func (p *NatsPublisher) PublishQuizCompleted(ctx context.Context, userID, resultID uuid.UUID, topic string, questionCount int) {
	p.publish(ctx, pkgEvents.TypeQuizCompleted, map[string]interface{}{
		"result_id":      resultID.String(),
		"user_id":        userID.String(),
		"topic":          topic,
		"question_count": questionCount,
		"entity_type":    "session_result",
		"entity_id":      resultID.String(),
	})
}

func (p *NatsPublisher) PublishTopUpSettled(ctx context.Context, topUp *entity.CreditTopUp) {
	p.publish(ctx, pkgEvents.TypeTopUpSettled, map[string]interface{}{
		"order_id":     topUp.Id.String(),
		"user_id":      topUp.UserId.String(),
		"package_id":   topUp.PackageId,
		"credits":      topUp.Credits,
		"gross_amount": topUp.GrossAmount,
		"entity_type":  "credit_topup",
		"entity_id":    topUp.Id.String(),
	})
}

// PublishRefundFailed escalates a refund the ledger could not complete, on the bus and by
// email to the operator.
func (p *NatsPublisher) PublishRefundFailed(ctx context.Context, f ledger.RefundFailure) {
	p.publish(ctx, pkgEvents.TypeRefundFailed, map[string]interface{}{
		"record_id":   f.RecordID.String(),
		"user_id":     f.UserID.String(),
		"work_type":   f.WorkType,
		"bucket":      string(f.Bucket),
		"reason":      f.Reason,
		"error":       f.Error,
		"attempts":    f.Attempts,
		"started_at":  f.StartedAt,
		"failed_at":   f.FailedAt,
		"severity":    "critical",
		"entity_type": "consumption_record",
		"entity_id":   f.RecordID.String(),
	})

	if p.mailer == nil {
		return
	}
	err := p.mailer.SendRefundFailureAlert(p.operatorEmail, mailer.RefundAlert{
		RecordID:  f.RecordID.String(),
		UserID:    f.UserID.String(),
		WorkType:  f.WorkType,
		Bucket:    string(f.Bucket),
		Reason:    f.Reason,
		Error:     f.Error,
		Attempts:  f.Attempts,
		StartedAt: f.StartedAt,
		FailedAt:  f.FailedAt,
	})
	if err != nil {
		p.logger.Error("EVENTS", "Failed to email refund failure alert", map[string]interface{}{
			"record_id": f.RecordID,
			"error":     err.Error(),
		})
	}
}
