package database

import (
	"fmt"

	"ai-interview-be/internal/model"

	"gorm.io/gorm"
)

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&model.UserCreditBalance{},
		&model.ConsumptionRecord{},
		&model.CreditTransaction{},
		&model.CreditTopUp{},
		&model.SessionResult{},
	}
}

var setupSQL = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
}

var postMigrationSQL = []string{
	// A failed (refunded) attempt frees its idempotency key for a retry.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_consumption_records_user_idempotency
	 ON consumption_records (user_id, idempotency_key)
	 WHERE status <> 'failed' AND idempotency_key IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_consumption_records_pending_started
	 ON consumption_records (started_at)
	 WHERE status = 'pending';`,
}

// Migrate creates or updates the schema. It is safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("post-migration: %w", err)
		}
	}
	return nil
}
