package implementation

import (
	"context"
	"errors"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/mapper"
	"ai-interview-be/internal/model"
	"ai-interview-be/internal/repository/contract"
	"ai-interview-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConsumptionRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConsumptionMapper
}

func NewConsumptionRecordRepository(db *gorm.DB) contract.ConsumptionRecordRepository {
	return &ConsumptionRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewConsumptionMapper(),
	}
}

func (r *ConsumptionRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ConsumptionRecordRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.ConsumptionRecord, error) {
	var m model.ConsumptionRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RecordToEntity(&m), nil
}

func (r *ConsumptionRecordRepositoryImpl) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConsumptionRecord, error) {
	var models []*model.ConsumptionRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.RecordsToEntities(models), nil
}

func (r *ConsumptionRecordRepositoryImpl) Create(ctx context.Context, record *entity.ConsumptionRecord) error {
	m := r.mapper.RecordToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return contract.ErrDuplicateKey
		}
		return err
	}
	*record = *r.mapper.RecordToEntity(m)
	return nil
}

func (r *ConsumptionRecordRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.ConsumptionRecord, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *ConsumptionRecordRepositoryImpl) FindActiveByIdempotencyKey(ctx context.Context, userId uuid.UUID, key string) (*entity.ConsumptionRecord, error) {
	return r.findOne(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.ByIdempotencyKey{Key: key},
		specification.NotFailed{},
	)
}

func (r *ConsumptionRecordRepositoryImpl) MarkSuccess(ctx context.Context, id uuid.UUID, output map[string]interface{}, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       string(entity.ConsumptionStatusSuccess),
		"completed_at": at,
	}
	if output != nil {
		updates["output_snapshot"] = r.mapper.SnapshotToJSON(output)
	}
	res := r.db.WithContext(ctx).Model(&model.ConsumptionRecord{}).
		Where("id = ? AND status = ?", id, string(entity.ConsumptionStatusPending)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ConsumptionRecordRepositoryImpl) MarkRefunded(ctx context.Context, id uuid.UUID, errorInfo string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.ConsumptionRecord{}).
		Where("id = ? AND status = ?", id, string(entity.ConsumptionStatusPending)).
		Updates(map[string]interface{}{
			"status":      string(entity.ConsumptionStatusFailed),
			"error_info":  errorInfo,
			"failed_at":   at,
			"refunded":    true,
			"refunded_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ConsumptionRecordRepositoryImpl) FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.ConsumptionRecord, error) {
	return r.findAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "started_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
}

func (r *ConsumptionRecordRepositoryImpl) FindPendingStartedBefore(ctx context.Context, before time.Time) ([]*entity.ConsumptionRecord, error) {
	return r.findAll(ctx,
		specification.ByStatus{Status: string(entity.ConsumptionStatusPending)},
		specification.StartedBefore{Time: before},
		specification.OrderBy{Field: "started_at", Desc: false},
	)
}
