package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByIdempotencyKey struct {
	Key string
}

func (s ByIdempotencyKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("idempotency_key = ?", s.Key)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// NotFailed excludes refunded attempts, which may be retried under the same key.
type NotFailed struct{}

func (s NotFailed) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status <> ?", "failed")
}

type StartedBefore struct {
	Time time.Time
}

func (s StartedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("started_at < ?", s.Time)
}

// ForUpdate row-locks the selected rows until the surrounding transaction ends.
type ForUpdate struct{}

func (s ForUpdate) Apply(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
