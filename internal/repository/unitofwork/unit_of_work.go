package unitofwork

import (
	"context"

	"ai-interview-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CreditBalanceRepository() contract.CreditBalanceRepository
	ConsumptionRecordRepository() contract.ConsumptionRecordRepository
	CreditTransactionRepository() contract.CreditTransactionRepository
	CreditTopUpRepository() contract.CreditTopUpRepository
	SessionResultRepository() contract.SessionResultRepository
}
