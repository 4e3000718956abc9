package implementation

import (
	"context"
	"errors"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/mapper"
	"ai-interview-be/internal/model"
	"ai-interview-be/internal/repository/contract"
	"ai-interview-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionResultRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ResultMapper
}

func NewSessionResultRepository(db *gorm.DB) contract.SessionResultRepository {
	return &SessionResultRepositoryImpl{
		db:     db,
		mapper: mapper.NewResultMapper(),
	}
}

func (r *SessionResultRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SessionResultRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.SessionResult, error) {
	var m model.SessionResult
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SessionResultRepositoryImpl) Create(ctx context.Context, result *entity.SessionResult) error {
	m := r.mapper.ToModel(result)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return contract.ErrDuplicateKey
		}
		return err
	}
	*result = *r.mapper.ToEntity(m)
	return nil
}

func (r *SessionResultRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.SessionResult, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *SessionResultRepositoryImpl) FindByIdForUpdate(ctx context.Context, id uuid.UUID) (*entity.SessionResult, error) {
	return r.findOne(ctx, specification.ByID{ID: id}, specification.ForUpdate{})
}

func (r *SessionResultRepositoryImpl) Update(ctx context.Context, result *entity.SessionResult) error {
	m := r.mapper.ToModel(result)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*result = *r.mapper.ToEntity(m)
	return nil
}

func (r *SessionResultRepositoryImpl) FindAllByUser(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*entity.SessionResult, error) {
	var models []*model.SessionResult
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.SessionResult, len(models))
	for i, m := range models {
		out[i] = r.mapper.ToEntity(m)
	}
	return out, nil
}
