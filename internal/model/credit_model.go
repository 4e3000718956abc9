package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserCreditBalance struct {
	UserId           uuid.UUID `gorm:"type:uuid;primaryKey"`
	FreeBalance      int       `gorm:"not null;default:0;check:free_balance >= 0"`
	PurchasedBalance int       `gorm:"not null;default:0;check:purchased_balance >= 0"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (UserCreditBalance) TableName() string {
	return "user_credit_balances"
}

// ConsumptionRecord rows are never deleted. The partial unique index on
// (user_id, idempotency_key) for non-failed rows is created by cmd/migrate.
type ConsumptionRecord struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index"`
	WorkType       string         `gorm:"type:varchar(50);not null;index"`
	Status         string         `gorm:"type:varchar(20);not null;default:'pending';index"`
	IdempotencyKey *string        `gorm:"type:varchar(128)"`
	ResultId       *uuid.UUID     `gorm:"type:uuid;index"`
	ChargedBucket  string         `gorm:"type:varchar(20);not null"`
	InputSnapshot  datatypes.JSON `gorm:"type:jsonb"`
	OutputSnapshot datatypes.JSON `gorm:"type:jsonb"`
	ErrorInfo      *string        `gorm:"type:text"`
	StartedAt      time.Time      `gorm:"not null;default:now()"`
	CompletedAt    *time.Time
	FailedAt       *time.Time
	Refunded       bool `gorm:"not null;default:false"`
	RefundedAt     *time.Time
}

func (ConsumptionRecord) TableName() string {
	return "consumption_records"
}

type CreditTransaction struct {
	Id              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId          uuid.UUID  `gorm:"type:uuid;not null;index"`
	TransactionType string     `gorm:"type:varchar(20);not null"`
	Bucket          string     `gorm:"type:varchar(20);not null"`
	Amount          int        `gorm:"not null"`
	RelatedId       *uuid.UUID `gorm:"type:uuid;index"`
	Notes           string     `gorm:"type:text"`
	CreatedAt       time.Time  `gorm:"default:now();not null"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

type CreditTopUp struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId      uuid.UUID `gorm:"type:uuid;not null;index"`
	PackageId   string    `gorm:"type:varchar(50);not null"`
	Credits     int       `gorm:"not null"`
	GrossAmount int64     `gorm:"not null"`
	Status      string    `gorm:"type:varchar(20);not null;default:'pending'"`
	SnapToken   string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	PaidAt      *time.Time
}

func (CreditTopUp) TableName() string {
	return "credit_topups"
}
