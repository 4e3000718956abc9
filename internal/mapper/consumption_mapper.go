package mapper

import (
	"encoding/json"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/model"

	"gorm.io/datatypes"
)

type ConsumptionMapper struct{}

func NewConsumptionMapper() *ConsumptionMapper {
	return &ConsumptionMapper{}
}

func (m *ConsumptionMapper) RecordToEntity(r *model.ConsumptionRecord) *entity.ConsumptionRecord {
	if r == nil {
		return nil
	}

	return &entity.ConsumptionRecord{
		Id:             r.Id,
		UserId:         r.UserId,
		WorkType:       r.WorkType,
		Status:         entity.ConsumptionStatus(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		ResultId:       r.ResultId,
		ChargedBucket:  entity.BalanceBucket(r.ChargedBucket),
		InputSnapshot:  jsonToMap(r.InputSnapshot),
		OutputSnapshot: jsonToMap(r.OutputSnapshot),
		ErrorInfo:      r.ErrorInfo,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		FailedAt:       r.FailedAt,
		Refunded:       r.Refunded,
		RefundedAt:     r.RefundedAt,
	}
}

func (m *ConsumptionMapper) RecordToModel(r *entity.ConsumptionRecord) *model.ConsumptionRecord {
	if r == nil {
		return nil
	}

	return &model.ConsumptionRecord{
		Id:             r.Id,
		UserId:         r.UserId,
		WorkType:       r.WorkType,
		Status:         string(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		ResultId:       r.ResultId,
		ChargedBucket:  string(r.ChargedBucket),
		InputSnapshot:  mapToJSON(r.InputSnapshot),
		OutputSnapshot: mapToJSON(r.OutputSnapshot),
		ErrorInfo:      r.ErrorInfo,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		FailedAt:       r.FailedAt,
		Refunded:       r.Refunded,
		RefundedAt:     r.RefundedAt,
	}
}

func (m *ConsumptionMapper) RecordsToEntities(rs []*model.ConsumptionRecord) []*entity.ConsumptionRecord {
	out := make([]*entity.ConsumptionRecord, len(rs))
	for i, r := range rs {
		out[i] = m.RecordToEntity(r)
	}
	return out
}

func (m *ConsumptionMapper) BalanceToEntity(b *model.UserCreditBalance) *entity.CreditBalance {
	if b == nil {
		return nil
	}
	return &entity.CreditBalance{
		UserId:           b.UserId,
		FreeBalance:      b.FreeBalance,
		PurchasedBalance: b.PurchasedBalance,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func (m *ConsumptionMapper) TransactionToModel(t *entity.CreditTransaction) *model.CreditTransaction {
	if t == nil {
		return nil
	}
	return &model.CreditTransaction{
		Id:              t.Id,
		UserId:          t.UserId,
		TransactionType: string(t.TransactionType),
		Bucket:          string(t.Bucket),
		Amount:          t.Amount,
		RelatedId:       t.RelatedId,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
	}
}

func (m *ConsumptionMapper) TransactionToEntity(t *model.CreditTransaction) *entity.CreditTransaction {
	if t == nil {
		return nil
	}
	return &entity.CreditTransaction{
		Id:              t.Id,
		UserId:          t.UserId,
		TransactionType: entity.CreditTransactionType(t.TransactionType),
		Bucket:          entity.BalanceBucket(t.Bucket),
		Amount:          t.Amount,
		RelatedId:       t.RelatedId,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
	}
}

func (m *ConsumptionMapper) TopUpToModel(t *entity.CreditTopUp) *model.CreditTopUp {
	if t == nil {
		return nil
	}
	return &model.CreditTopUp{
		Id:          t.Id,
		UserId:      t.UserId,
		PackageId:   t.PackageId,
		Credits:     t.Credits,
		GrossAmount: t.GrossAmount,
		Status:      string(t.Status),
		SnapToken:   t.SnapToken,
		CreatedAt:   t.CreatedAt,
		PaidAt:      t.PaidAt,
	}
}

func (m *ConsumptionMapper) TopUpToEntity(t *model.CreditTopUp) *entity.CreditTopUp {
	if t == nil {
		return nil
	}
	return &entity.CreditTopUp{
		Id:          t.Id,
		UserId:      t.UserId,
		PackageId:   t.PackageId,
		Credits:     t.Credits,
		GrossAmount: t.GrossAmount,
		Status:      entity.TopUpStatus(t.Status),
		SnapToken:   t.SnapToken,
		CreatedAt:   t.CreatedAt,
		PaidAt:      t.PaidAt,
	}
}

func (m *ConsumptionMapper) SnapshotToJSON(snapshot map[string]interface{}) datatypes.JSON {
	return mapToJSON(snapshot)
}

func jsonToMap(raw datatypes.JSON) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func mapToJSON(in map[string]interface{}) datatypes.JSON {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
