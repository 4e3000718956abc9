package mapper

import (
	"encoding/json"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/model"

	"gorm.io/datatypes"
)

type ResultMapper struct{}

func NewResultMapper() *ResultMapper {
	return &ResultMapper{}
}

func (m *ResultMapper) ToEntity(r *model.SessionResult) *entity.SessionResult {
	if r == nil {
		return nil
	}

	transcript := []entity.TranscriptEntry{}
	if len(r.Transcript) > 0 {
		_ = json.Unmarshal(r.Transcript, &transcript)
	}

	var updatedAt *time.Time
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		updatedAt = &t
	}

	return &entity.SessionResult{
		Id:                  r.Id,
		UserId:              r.UserId,
		SessionId:           r.SessionId,
		JobKind:             r.JobKind,
		Status:              entity.ResultStatus(r.Status),
		QuestionCount:       r.QuestionCount,
		Transcript:          transcript,
		Output:              jsonToMap(r.Output),
		ConsumptionRecordId: r.ConsumptionRecordId,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           updatedAt,
		CompletedAt:         r.CompletedAt,
	}
}

func (m *ResultMapper) ToModel(r *entity.SessionResult) *model.SessionResult {
	if r == nil {
		return nil
	}

	var updatedAt time.Time
	if r.UpdatedAt != nil {
		updatedAt = *r.UpdatedAt
	}

	return &model.SessionResult{
		Id:                  r.Id,
		UserId:              r.UserId,
		SessionId:           r.SessionId,
		JobKind:             r.JobKind,
		Status:              string(r.Status),
		QuestionCount:       r.QuestionCount,
		Transcript:          m.TranscriptToJSON(r.Transcript),
		Output:              mapToJSON(r.Output),
		ConsumptionRecordId: r.ConsumptionRecordId,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           updatedAt,
		CompletedAt:         r.CompletedAt,
	}
}

func (m *ResultMapper) TranscriptToJSON(entries []entity.TranscriptEntry) datatypes.JSON {
	if entries == nil {
		entries = []entity.TranscriptEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
