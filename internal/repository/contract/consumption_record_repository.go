package contract

import (
	"context"
	"time"

	"ai-interview-be/internal/entity"

	"github.com/google/uuid"
)

type ConsumptionRecordRepository interface {
	Create(ctx context.Context, record *entity.ConsumptionRecord) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.ConsumptionRecord, error)
	// FindActiveByIdempotencyKey ignores failed attempts.
	FindActiveByIdempotencyKey(ctx context.Context, userId uuid.UUID, key string) (*entity.ConsumptionRecord, error)
	// MarkSuccess moves a pending record to success. It reports false when the record was not pending.
	MarkSuccess(ctx context.Context, id uuid.UUID, output map[string]interface{}, at time.Time) (bool, error)
	// MarkRefunded moves a pending record to failed with refunded=true. It reports false when the record was not pending.
	MarkRefunded(ctx context.Context, id uuid.UUID, errorInfo string, at time.Time) (bool, error)
	FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.ConsumptionRecord, error)
	FindPendingStartedBefore(ctx context.Context, before time.Time) ([]*entity.ConsumptionRecord, error)
}
