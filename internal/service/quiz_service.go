package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-interview-be/internal/config"
	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/ledger"
	"ai-interview-be/pkg/recovery"

	"github.com/google/uuid"
)

const quizModule = "QUIZ"

const (
	QuizStatusQueued    = "queued"
	QuizStatusCompleted = "completed"

	defaultQuizDifficulty = "medium"
	defaultQuizQuestions  = 10
)

type IQuizService interface {
	// Generate debits one unit and queues the job. Replayed is set when an earlier request with
	// the same idempotency key already succeeded; nothing is queued then.
	Generate(ctx context.Context, userId uuid.UUID, req dto.GenerateQuizRequest) (*dto.GenerateQuizResponse, error)
	GetResult(ctx context.Context, userId uuid.UUID, resultId uuid.UUID) (*dto.SessionResultResponse, error)
}

type quizService struct {
	ledger    ConsumptionLedger
	writer    *recovery.Writer
	publisher IPublisherService
	kind      config.JobKind
	logger    logger.ILogger
}

func NewQuizService(consumption ConsumptionLedger, writer *recovery.Writer, publisher IPublisherService, kind config.JobKind, log logger.ILogger) IQuizService {
	return &quizService{
		ledger:    consumption,
		writer:    writer,
		publisher: publisher,
		kind:      kind,
		logger:    log,
	}
}

func (s *quizService) Generate(ctx context.Context, userId uuid.UUID, req dto.GenerateQuizRequest) (*dto.GenerateQuizResponse, error) {
	if req.Difficulty == "" {
		req.Difficulty = defaultQuizDifficulty
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = s.kind.TotalQuestions
		if req.QuestionCount <= 0 {
			req.QuestionCount = defaultQuizQuestions
		}
	}

	resultID := uuid.New()
	begin, err := s.ledger.Begin(ctx, ledger.BeginRequest{
		UserID:         userId,
		WorkType:       s.kind.WorkType,
		IdempotencyKey: req.IdempotencyKey,
		ResultID:       &resultID,
		Input: map[string]interface{}{
			"topic":          req.Topic,
			"difficulty":     req.Difficulty,
			"question_count": req.QuestionCount,
		},
	})
	if err != nil {
		return nil, err
	}
	if begin.AlreadySettled {
		resp := &dto.GenerateQuizResponse{Status: QuizStatusCompleted, Replayed: true}
		if begin.Prior.ResultId != nil {
			resp.ResultId = begin.Prior.ResultId.String()
		}
		return resp, nil
	}
	ticket := begin.Ticket

	err = s.writer.Open(ctx, &entity.SessionResult{
		Id:                  resultID,
		UserId:              userId,
		JobKind:             s.kind.Name,
		ConsumptionRecordId: &ticket.RecordID,
	})
	if err != nil {
		s.abort(ctx, ticket, err)
		return nil, fmt.Errorf("open quiz result: %w", err)
	}

	payload, err := json.Marshal(dto.QuizJobMessage{
		ResultId:      resultID.String(),
		RecordId:      ticket.RecordID.String(),
		UserId:        userId.String(),
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
		QuestionCount: req.QuestionCount,
		SourceText:    req.SourceText,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, payload)
	}
	if err != nil {
		s.abort(ctx, ticket, err)
		if ferr := s.writer.Finalize(ctx, resultID, entity.ResultStatusFailed, map[string]interface{}{"error": err.Error()}); ferr != nil {
			s.logger.Warn(quizModule, "Failed to finalize unqueued quiz", map[string]interface{}{"result_id": resultID, "error": ferr.Error()})
		}
		return nil, fmt.Errorf("queue quiz job: %w", err)
	}

	s.logger.Info(quizModule, "Quiz job queued", map[string]interface{}{
		"user_id":   userId,
		"result_id": resultID,
		"record_id": ticket.RecordID,
		"questions": req.QuestionCount,
	})
	return &dto.GenerateQuizResponse{ResultId: resultID.String(), Status: QuizStatusQueued}, nil
}

func (s *quizService) abort(ctx context.Context, ticket *ledger.Ticket, cause error) {
	if err := s.ledger.Abort(ctx, ticket, cause.Error()); err != nil {
		s.logger.Error(quizModule, "Abort failed", map[string]interface{}{
			"record_id": ticket.RecordID,
			"error":     err.Error(),
		})
	}
}

func (s *quizService) GetResult(ctx context.Context, userId uuid.UUID, resultId uuid.UUID) (*dto.SessionResultResponse, error) {
	result, err := s.writer.Load(ctx, resultId)
	if err != nil {
		return nil, err
	}
	if result.UserId != userId {
		return nil, recovery.ErrResultNotFound
	}
	return toSessionResultResponse(result), nil
}
