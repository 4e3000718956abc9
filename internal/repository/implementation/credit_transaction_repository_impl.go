package implementation

import (
	"context"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/mapper"
	"ai-interview-be/internal/model"
	"ai-interview-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreditTransactionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConsumptionMapper
}

func NewCreditTransactionRepository(db *gorm.DB) contract.CreditTransactionRepository {
	return &CreditTransactionRepositoryImpl{
		db:     db,
		mapper: mapper.NewConsumptionMapper(),
	}
}

func (r *CreditTransactionRepositoryImpl) Create(ctx context.Context, tx *entity.CreditTransaction) error {
	m := r.mapper.TransactionToModel(tx)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*tx = *r.mapper.TransactionToEntity(m)
	return nil
}

func (r *CreditTransactionRepositoryImpl) FindAllByUser(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.CreditTransaction, error) {
	var models []*model.CreditTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.CreditTransaction, len(models))
	for i, m := range models {
		out[i] = r.mapper.TransactionToEntity(m)
	}
	return out, nil
}
