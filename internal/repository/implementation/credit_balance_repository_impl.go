package implementation

import (
	"context"
	"errors"
	"fmt"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/mapper"
	"ai-interview-be/internal/model"
	"ai-interview-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditBalanceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConsumptionMapper
}

func NewCreditBalanceRepository(db *gorm.DB) contract.CreditBalanceRepository {
	return &CreditBalanceRepositoryImpl{
		db:     db,
		mapper: mapper.NewConsumptionMapper(),
	}
}

func bucketColumn(bucket entity.BalanceBucket) (string, error) {
	switch bucket {
	case entity.BalanceBucketFree:
		return "free_balance", nil
	case entity.BalanceBucketPurchased:
		return "purchased_balance", nil
	}
	return "", fmt.Errorf("unknown balance bucket %q", bucket)
}

func (r *CreditBalanceRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.CreditBalance, error) {
	var m model.UserCreditBalance
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.BalanceToEntity(&m), nil
}

func (r *CreditBalanceRepositoryImpl) CreateIfAbsent(ctx context.Context, balance *entity.CreditBalance) (bool, error) {
	m := &model.UserCreditBalance{
		UserId:           balance.UserId,
		FreeBalance:      balance.FreeBalance,
		PurchasedBalance: balance.PurchasedBalance,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CreditBalanceRepositoryImpl) DecrementIfPositive(ctx context.Context, userId uuid.UUID, bucket entity.BalanceBucket) (bool, error) {
	col, err := bucketColumn(bucket)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Model(&model.UserCreditBalance{}).
		Where("user_id = ? AND "+col+" > 0", userId).
		Update(col, gorm.Expr(col+" - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CreditBalanceRepositoryImpl) Increment(ctx context.Context, userId uuid.UUID, bucket entity.BalanceBucket, amount int) error {
	col, err := bucketColumn(bucket)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&model.UserCreditBalance{}).
		Where("user_id = ?", userId).
		Update(col, gorm.Expr(col+" + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("credit balance for user %s not found", userId)
	}
	return nil
}
