package contract

import (
	"context"
	"time"

	"ai-interview-be/internal/entity"

	"github.com/google/uuid"
)

type CreditTopUpRepository interface {
	Create(ctx context.Context, topUp *entity.CreditTopUp) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.CreditTopUp, error)
	// MarkPaid and MarkFailed only move pending orders and report whether they did.
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
}
