package entity

import (
	"time"

	"github.com/google/uuid"
)

type TopUpStatus string

const (
	TopUpStatusPending TopUpStatus = "pending"
	TopUpStatusPaid    TopUpStatus = "paid"
	TopUpStatusFailed  TopUpStatus = "failed"
)

// CreditTopUp is one purchase of credits through the payment gateway. Id doubles as the order id.
type CreditTopUp struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	PackageId   string
	Credits     int
	GrossAmount int64
	Status      TopUpStatus
	SnapToken   string
	CreatedAt   time.Time
	PaidAt      *time.Time
}
