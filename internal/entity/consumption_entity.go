package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConsumptionStatus is the lifecycle state of one billable unit of work.
type ConsumptionStatus string

const (
	ConsumptionStatusPending ConsumptionStatus = "pending"
	ConsumptionStatusSuccess ConsumptionStatus = "success"
	ConsumptionStatusFailed  ConsumptionStatus = "failed"
)

// BalanceBucket names the balance a unit was charged against.
type BalanceBucket string

const (
	BalanceBucketFree      BalanceBucket = "free"
	BalanceBucketPurchased BalanceBucket = "purchased"
)

type ConsumptionRecord struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	WorkType       string
	Status         ConsumptionStatus
	IdempotencyKey *string
	ResultId       *uuid.UUID
	ChargedBucket  BalanceBucket
	InputSnapshot  map[string]interface{}
	OutputSnapshot map[string]interface{}
	ErrorInfo      *string
	StartedAt      time.Time
	CompletedAt    *time.Time
	FailedAt       *time.Time
	Refunded       bool
	RefundedAt     *time.Time
}

// Closed reports whether the record reached a terminal state that needs no further action.
func (r *ConsumptionRecord) Closed() bool {
	switch r.Status {
	case ConsumptionStatusSuccess:
		return true
	case ConsumptionStatusFailed:
		return r.Refunded
	}
	return false
}

type CreditBalance struct {
	UserId           uuid.UUID
	FreeBalance      int
	PurchasedBalance int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (b *CreditBalance) Total() int {
	return b.FreeBalance + b.PurchasedBalance
}

type CreditTransactionType string

const (
	CreditTransactionGrant  CreditTransactionType = "grant"
	CreditTransactionSpend  CreditTransactionType = "spend"
	CreditTransactionRefund CreditTransactionType = "refund"
	CreditTransactionTopUp  CreditTransactionType = "topup"
)

type CreditTransaction struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	TransactionType CreditTransactionType
	Bucket          BalanceBucket
	Amount          int
	RelatedId       *uuid.UUID
	Notes           string
	CreatedAt       time.Time
}
