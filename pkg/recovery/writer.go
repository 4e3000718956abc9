// Package recovery keeps the durable result of a session in step with the live conversation
// using a placeholder-then-update protocol.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var (
	ErrResultNotFound = errors.New("session result not found")
	ErrEntryNotFound  = errors.New("transcript entry not found")
)

// Writer assumes turns within one result are serialized by the caller.
type Writer struct {
	factory unitofwork.RepositoryFactory
	logger  logger.ILogger
	now     func() time.Time
}

func NewWriter(factory unitofwork.RepositoryFactory, log logger.ILogger) *Writer {
	return &Writer{factory: factory, logger: log, now: time.Now}
}

// Open persists the empty result row before any generation happens.
func (w *Writer) Open(ctx context.Context, result *entity.SessionResult) error {
	ctx = context.WithoutCancel(ctx)
	if result.Id == uuid.Nil {
		result.Id = uuid.New()
	}
	if result.Status == "" {
		result.Status = entity.ResultStatusInProgress
	}
	if result.Transcript == nil {
		result.Transcript = []entity.TranscriptEntry{}
	}
	result.CreatedAt = w.now()
	if err := w.factory.NewUnitOfWork(ctx).SessionResultRepository().Create(ctx, result); err != nil {
		return fmt.Errorf("create result placeholder: %w", err)
	}
	return nil
}

// AppendTurn adds a complete entry, used for turns that need no generation.
func (w *Writer) AppendTurn(ctx context.Context, resultID uuid.UUID, entry entity.TranscriptEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = w.now()
	}
	return w.mutate(ctx, resultID, func(r *entity.SessionResult) error {
		r.Transcript = append(r.Transcript, entry)
		return nil
	})
}

// Reserve writes a pending interviewer entry, bumps the question counter and returns the
// entry's index for the later fills.
func (w *Writer) Reserve(ctx context.Context, resultID uuid.UUID) (int, error) {
	index := -1
	err := w.mutate(ctx, resultID, func(r *entity.SessionResult) error {
		r.QuestionCount++
		r.Transcript = append(r.Transcript, entity.TranscriptEntry{
			Role:           entity.TranscriptRoleInterviewer,
			QuestionNumber: r.QuestionCount,
			Pending:        true,
			Timestamp:      w.now(),
		})
		index = len(r.Transcript) - 1
		return nil
	})
	return index, err
}

// FillPrimary sets the finalized question text of a reserved entry.
func (w *Writer) FillPrimary(ctx context.Context, resultID uuid.UUID, index int, text string) error {
	return w.mutateEntry(ctx, resultID, index, func(e *entity.TranscriptEntry) {
		e.Text = text
		e.Pending = false
	})
}

// FillSecondary attaches the reference answer to the same entry.
func (w *Writer) FillSecondary(ctx context.Context, resultID uuid.UUID, index int, text string) error {
	return w.mutateEntry(ctx, resultID, index, func(e *entity.TranscriptEntry) {
		e.ReferenceAnswer = text
	})
}

// FillClosing turns a reserved entry into the closing remark. The reservation no longer counts
// as a question.
func (w *Writer) FillClosing(ctx context.Context, resultID uuid.UUID, index int, text string) error {
	return w.mutate(ctx, resultID, func(r *entity.SessionResult) error {
		if index < 0 || index >= len(r.Transcript) {
			return fmt.Errorf("%w: index %d of %d", ErrEntryNotFound, index, len(r.Transcript))
		}
		e := &r.Transcript[index]
		if e.QuestionNumber > 0 && r.QuestionCount > 0 {
			r.QuestionCount--
		}
		e.Text = text
		e.QuestionNumber = 0
		e.Pending = false
		return nil
	})
}

// Finalize records the terminal status and output of the result.
func (w *Writer) Finalize(ctx context.Context, resultID uuid.UUID, status entity.ResultStatus, output map[string]interface{}) error {
	return w.mutate(ctx, resultID, func(r *entity.SessionResult) error {
		now := w.now()
		r.Status = status
		r.CompletedAt = &now
		if output != nil {
			if r.Output == nil {
				r.Output = make(map[string]interface{}, len(output))
			}
			for k, v := range output {
				r.Output[k] = v
			}
		}
		return nil
	})
}

func (w *Writer) Load(ctx context.Context, resultID uuid.UUID) (*entity.SessionResult, error) {
	result, err := w.factory.NewUnitOfWork(ctx).SessionResultRepository().FindById(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrResultNotFound
	}
	return result, nil
}

func (w *Writer) mutateEntry(ctx context.Context, resultID uuid.UUID, index int, fn func(e *entity.TranscriptEntry)) error {
	return w.mutate(ctx, resultID, func(r *entity.SessionResult) error {
		if index < 0 || index >= len(r.Transcript) {
			return fmt.Errorf("%w: index %d of %d", ErrEntryNotFound, index, len(r.Transcript))
		}
		fn(&r.Transcript[index])
		return nil
	})
}

// mutate runs fn against a locked copy of the result and writes it back. Writes outlive the
// request that triggered them.
func (w *Writer) mutate(ctx context.Context, resultID uuid.UUID, fn func(r *entity.SessionResult) error) error {
	ctx = context.WithoutCancel(ctx)
	uow := w.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	repo := uow.SessionResultRepository()
	result, err := repo.FindByIdForUpdate(ctx, resultID)
	if err != nil {
		return err
	}
	if result == nil {
		return ErrResultNotFound
	}
	if err := fn(result); err != nil {
		return err
	}
	if err := repo.Update(ctx, result); err != nil {
		return fmt.Errorf("update result %s: %w", resultID, err)
	}
	return uow.Commit()
}
