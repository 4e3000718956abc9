package contract

import (
	"context"

	"ai-interview-be/internal/entity"

	"github.com/google/uuid"
)

type SessionResultRepository interface {
	Create(ctx context.Context, result *entity.SessionResult) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.SessionResult, error)
	// FindByIdForUpdate locks the row for the rest of the transaction.
	FindByIdForUpdate(ctx context.Context, id uuid.UUID) (*entity.SessionResult, error)
	Update(ctx context.Context, result *entity.SessionResult) error
	FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.SessionResult, error)
}
