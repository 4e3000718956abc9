package contract

import (
	"context"

	"ai-interview-be/internal/entity"

	"github.com/google/uuid"
)

type CreditTransactionRepository interface {
	Create(ctx context.Context, tx *entity.CreditTransaction) error
	FindAllByUser(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.CreditTransaction, error)
}
