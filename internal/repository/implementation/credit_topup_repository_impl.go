package implementation

import (
	"context"
	"errors"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/mapper"
	"ai-interview-be/internal/model"
	"ai-interview-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreditTopUpRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConsumptionMapper
}

func NewCreditTopUpRepository(db *gorm.DB) contract.CreditTopUpRepository {
	return &CreditTopUpRepositoryImpl{
		db:     db,
		mapper: mapper.NewConsumptionMapper(),
	}
}

func (r *CreditTopUpRepositoryImpl) Create(ctx context.Context, topUp *entity.CreditTopUp) error {
	m := r.mapper.TopUpToModel(topUp)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*topUp = *r.mapper.TopUpToEntity(m)
	return nil
}

func (r *CreditTopUpRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.CreditTopUp, error) {
	var m model.CreditTopUp
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.TopUpToEntity(&m), nil
}

func (r *CreditTopUpRepositoryImpl) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, map[string]interface{}{
		"status":  string(entity.TopUpStatusPaid),
		"paid_at": at,
	})
}

func (r *CreditTopUpRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, map[string]interface{}{
		"status": string(entity.TopUpStatusFailed),
	})
}

func (r *CreditTopUpRepositoryImpl) transition(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CreditTopUp{}).
		Where("id = ? AND status = ?", id, string(entity.TopUpStatusPending)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
