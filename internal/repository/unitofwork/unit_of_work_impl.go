package unitofwork

import (
	"context"
	"fmt"

	"ai-interview-be/internal/repository/contract"
	"ai-interview-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

// Rollback is safe to defer after a successful Commit.
func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) CreditBalanceRepository() contract.CreditBalanceRepository {
	return implementation.NewCreditBalanceRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ConsumptionRecordRepository() contract.ConsumptionRecordRepository {
	return implementation.NewConsumptionRecordRepository(u.getDB())
}

func (u *UnitOfWorkImpl) CreditTransactionRepository() contract.CreditTransactionRepository {
	return implementation.NewCreditTransactionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) CreditTopUpRepository() contract.CreditTopUpRepository {
	return implementation.NewCreditTopUpRepository(u.getDB())
}

func (u *UnitOfWorkImpl) SessionResultRepository() contract.SessionResultRepository {
	return implementation.NewSessionResultRepository(u.getDB())
}
