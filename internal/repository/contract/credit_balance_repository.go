package contract

import (
	"context"

	"ai-interview-be/internal/entity"

	"github.com/google/uuid"
)

type CreditBalanceRepository interface {
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error)
	// CreateIfAbsent inserts the row unless one exists for the user and reports whether it inserted.
	CreateIfAbsent(ctx context.Context, balance *entity.CreditBalance) (bool, error)
	// DecrementIfPositive atomically takes one unit from the bucket and reports whether it could.
	DecrementIfPositive(ctx context.Context, userId uuid.UUID, bucket entity.BalanceBucket) (bool, error)
	Increment(ctx context.Context, userId uuid.UUID, bucket entity.BalanceBucket, amount int) error
}
