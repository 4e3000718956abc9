package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionResult struct {
	Id                  uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId              uuid.UUID      `gorm:"type:uuid;not null;index"`
	SessionId           string         `gorm:"type:varchar(64);index"`
	JobKind             string         `gorm:"type:varchar(50);not null"`
	Status              string         `gorm:"type:varchar(20);not null;default:'in_progress'"`
	QuestionCount       int            `gorm:"not null;default:0"`
	Transcript          datatypes.JSON `gorm:"type:jsonb;default:'[]'"`
	Output              datatypes.JSON `gorm:"type:jsonb"`
	ConsumptionRecordId *uuid.UUID     `gorm:"type:uuid;index"`
	CreatedAt           time.Time      `gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime"`
	CompletedAt         *time.Time
}

func (SessionResult) TableName() string {
	return "session_results"
}
