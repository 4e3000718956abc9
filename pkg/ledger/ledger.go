// Package ledger meters billable work: a unit is debited before the work starts and is either
// settled or refunded afterwards, with at most one charge per idempotency key.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/contract"
	"ai-interview-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const module = "LEDGER"

type Config struct {
	FreeCredits   int
	RefundRetries int
	RefundBackoff time.Duration
}

// RefundFailure describes a ticket whose compensation could not be applied.
type RefundFailure struct {
	RecordID  uuid.UUID
	UserID    uuid.UUID
	WorkType  string
	Bucket    entity.BalanceBucket
	Reason    string
	Error     string
	Attempts  int
	StartedAt time.Time
	FailedAt  time.Time
}

// AlertPublisher reports conditions that need an operator.
type AlertPublisher interface {
	PublishRefundFailed(ctx context.Context, failure RefundFailure)
}

// Ticket is a debited, in-flight unit of work.
type Ticket struct {
	RecordID  uuid.UUID
	UserID    uuid.UUID
	WorkType  string
	ResultID  *uuid.UUID
	Bucket    entity.BalanceBucket
	StartedAt time.Time
}

type BeginRequest struct {
	UserID         uuid.UUID
	WorkType       string
	IdempotencyKey string
	ResultID       *uuid.UUID
	Input          map[string]interface{}
}

// BeginResult holds either a fresh Ticket or, for a replay of a settled key, the prior record.
type BeginResult struct {
	Ticket         *Ticket
	AlreadySettled bool
	Prior          *entity.ConsumptionRecord
}

type Ledger struct {
	factory unitofwork.RepositoryFactory
	cfg     Config
	logger  logger.ILogger
	alerts  AlertPublisher
	now     func() time.Time
	sleep   func(time.Duration)
}

type Option func(*Ledger)

func WithAlertPublisher(p AlertPublisher) Option {
	return func(l *Ledger) { l.alerts = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Ledger) { l.sleep = sleep }
}

func New(factory unitofwork.RepositoryFactory, cfg Config, log logger.ILogger, opts ...Option) *Ledger {
	if cfg.RefundRetries < 1 {
		cfg.RefundRetries = 1
	}
	l := &Ledger{
		factory: factory,
		cfg:     cfg,
		logger:  log,
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Begin debits one unit and opens a pending record. A key that already settled returns the
// prior record without touching the balance.
func (l *Ledger) Begin(ctx context.Context, req BeginRequest) (*BeginResult, error) {
	if req.UserID == uuid.Nil || req.WorkType == "" {
		return nil, ErrInvalidRequest
	}

	uow := l.factory.NewUnitOfWork(ctx)

	// Must happen before any balance mutation
	if req.IdempotencyKey != "" {
		if res, err := l.checkPrior(ctx, uow, req.UserID, req.IdempotencyKey); res != nil || err != nil {
			return res, err
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := l.ensureBalance(ctx, uow, req.UserID); err != nil {
		return nil, err
	}

	bucket, err := l.debit(ctx, uow, req.UserID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	record := &entity.ConsumptionRecord{
		Id:            uuid.New(),
		UserId:        req.UserID,
		WorkType:      req.WorkType,
		Status:        entity.ConsumptionStatusPending,
		ResultId:      req.ResultID,
		ChargedBucket: bucket,
		InputSnapshot: req.Input,
		StartedAt:     now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		record.IdempotencyKey = &key
	}

	if err := uow.ConsumptionRecordRepository().Create(ctx, record); err != nil {
		if errors.Is(err, contract.ErrDuplicateKey) {
			// Lost the race to a concurrent request with the same key
			uow.Rollback()
			if res, perr := l.checkPrior(ctx, l.factory.NewUnitOfWork(ctx), req.UserID, req.IdempotencyKey); res != nil || perr != nil {
				return res, perr
			}
			return nil, ErrDuplicateInProgress
		}
		return nil, fmt.Errorf("create consumption record: %w", err)
	}

	if err := uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:              uuid.New(),
		UserId:          req.UserID,
		TransactionType: entity.CreditTransactionSpend,
		Bucket:          bucket,
		Amount:          -1,
		RelatedId:       &record.Id,
		Notes:           req.WorkType,
		CreatedAt:       now,
	}); err != nil {
		return nil, fmt.Errorf("journal spend: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	l.logger.Info(module, "Debited consumption ticket", map[string]interface{}{
		"record_id": record.Id,
		"user_id":   req.UserID,
		"work_type": req.WorkType,
		"bucket":    bucket,
	})

	return &BeginResult{Ticket: &Ticket{
		RecordID:  record.Id,
		UserID:    req.UserID,
		WorkType:  req.WorkType,
		ResultID:  req.ResultID,
		Bucket:    bucket,
		StartedAt: now,
	}}, nil
}

func (l *Ledger) checkPrior(ctx context.Context, uow unitofwork.UnitOfWork, userID uuid.UUID, key string) (*BeginResult, error) {
	prior, err := uow.ConsumptionRecordRepository().FindActiveByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if prior == nil {
		return nil, nil
	}
	if prior.Status == entity.ConsumptionStatusSuccess {
		return &BeginResult{AlreadySettled: true, Prior: prior}, nil
	}
	return nil, ErrDuplicateInProgress
}

func (l *Ledger) ensureBalance(ctx context.Context, uow unitofwork.UnitOfWork, userID uuid.UUID) error {
	created, err := uow.CreditBalanceRepository().CreateIfAbsent(ctx, &entity.CreditBalance{
		UserId:      userID,
		FreeBalance: l.cfg.FreeCredits,
	})
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}
	if !created || l.cfg.FreeCredits == 0 {
		return nil
	}
	return uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:              uuid.New(),
		UserId:          userID,
		TransactionType: entity.CreditTransactionGrant,
		Bucket:          entity.BalanceBucketFree,
		Amount:          l.cfg.FreeCredits,
		Notes:           "initial free credits",
		CreatedAt:       l.now(),
	})
}

// debit takes from the free bucket first.
func (l *Ledger) debit(ctx context.Context, uow unitofwork.UnitOfWork, userID uuid.UUID) (entity.BalanceBucket, error) {
	for _, bucket := range []entity.BalanceBucket{entity.BalanceBucketFree, entity.BalanceBucketPurchased} {
		ok, err := uow.CreditBalanceRepository().DecrementIfPositive(ctx, userID, bucket)
		if err != nil {
			return "", fmt.Errorf("debit %s balance: %w", bucket, err)
		}
		if ok {
			return bucket, nil
		}
	}
	return "", ErrInsufficientBalance
}

// Settle closes the ticket as successful. It runs even if ctx was cancelled.
func (l *Ledger) Settle(ctx context.Context, ticket *Ticket, output map[string]interface{}) error {
	ctx = context.WithoutCancel(ctx)
	ok, err := l.factory.NewUnitOfWork(ctx).ConsumptionRecordRepository().MarkSuccess(ctx, ticket.RecordID, output, l.now())
	if err != nil {
		return fmt.Errorf("settle consumption: %w", err)
	}
	if !ok {
		return ErrTicketClosed
	}
	l.logger.Info(module, "Settled consumption ticket", map[string]interface{}{
		"record_id": ticket.RecordID,
		"user_id":   ticket.UserID,
	})
	return nil
}

// Abort refunds the ticket and marks it failed. Aborting an already refunded ticket is a no-op.
// When the refund keeps failing the condition is escalated and ErrRefundFailed returned.
func (l *Ledger) Abort(ctx context.Context, ticket *Ticket, errorInfo string) error {
	ctx = context.WithoutCancel(ctx)

	var lastErr error
	attempts := 0
	for attempts < l.cfg.RefundRetries {
		attempts++
		err := l.refund(ctx, ticket.RecordID, errorInfo)
		if err == nil {
			l.logger.Info(module, "Refunded consumption ticket", map[string]interface{}{
				"record_id": ticket.RecordID,
				"user_id":   ticket.UserID,
				"reason":    errorInfo,
			})
			return nil
		}
		if errors.Is(err, ErrTicketClosed) || errors.Is(err, ErrRecordNotFound) {
			return err
		}
		lastErr = err
		l.logger.Warn(module, "Refund attempt failed", map[string]interface{}{
			"record_id": ticket.RecordID,
			"attempt":   attempts,
			"error":     err.Error(),
		})
		if attempts < l.cfg.RefundRetries {
			l.sleep(l.cfg.RefundBackoff * time.Duration(attempts))
		}
	}

	failure := RefundFailure{
		RecordID:  ticket.RecordID,
		UserID:    ticket.UserID,
		WorkType:  ticket.WorkType,
		Bucket:    ticket.Bucket,
		Reason:    errorInfo,
		Error:     lastErr.Error(),
		Attempts:  attempts,
		StartedAt: ticket.StartedAt,
		FailedAt:  l.now(),
	}
	l.logger.Error(module, "CRITICAL: refund failed, balance requires operator reconciliation", map[string]interface{}{
		"record_id": failure.RecordID,
		"user_id":   failure.UserID,
		"work_type": failure.WorkType,
		"bucket":    failure.Bucket,
		"reason":    failure.Reason,
		"attempts":  failure.Attempts,
		"error":     failure.Error,
	})
	if l.alerts != nil {
		l.alerts.PublishRefundFailed(ctx, failure)
	}
	return fmt.Errorf("%w: record %s: %v", ErrRefundFailed, ticket.RecordID, lastErr)
}

func (l *Ledger) refund(ctx context.Context, recordID uuid.UUID, errorInfo string) error {
	uow := l.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	records := uow.ConsumptionRecordRepository()
	record, err := records.FindById(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNotFound
	}

	now := l.now()
	ok, err := records.MarkRefunded(ctx, recordID, errorInfo, now)
	if err != nil {
		return err
	}
	if !ok {
		if record.Status == entity.ConsumptionStatusFailed && record.Refunded {
			return nil
		}
		return ErrTicketClosed
	}

	if err := uow.CreditBalanceRepository().Increment(ctx, record.UserId, record.ChargedBucket, 1); err != nil {
		return err
	}
	if err := uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:              uuid.New(),
		UserId:          record.UserId,
		TransactionType: entity.CreditTransactionRefund,
		Bucket:          record.ChargedBucket,
		Amount:          1,
		RelatedId:       &record.Id,
		Notes:           errorInfo,
		CreatedAt:       now,
	}); err != nil {
		return err
	}
	return uow.Commit()
}

// ListStalePending returns pending records older than olderThan, oldest first.
func (l *Ledger) ListStalePending(ctx context.Context, olderThan time.Duration) ([]*entity.ConsumptionRecord, error) {
	return l.factory.NewUnitOfWork(ctx).ConsumptionRecordRepository().FindPendingStartedBefore(ctx, l.now().Add(-olderThan))
}

// ForceAbort refunds a stuck record by id.
func (l *Ledger) ForceAbort(ctx context.Context, recordID uuid.UUID, reason string) error {
	record, err := l.factory.NewUnitOfWork(ctx).ConsumptionRecordRepository().FindById(ctx, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNotFound
	}
	return l.Abort(ctx, TicketFromRecord(record), reason)
}

// Ticket rebuilds the handle of a pending record, for work resumed in another process step.
func (l *Ledger) Ticket(ctx context.Context, recordID uuid.UUID) (*Ticket, error) {
	record, err := l.factory.NewUnitOfWork(ctx).ConsumptionRecordRepository().FindById(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	if record.Status != entity.ConsumptionStatusPending {
		return nil, fmt.Errorf("%w: record %s is %s", ErrTicketClosed, recordID, record.Status)
	}
	return TicketFromRecord(record), nil
}

func TicketFromRecord(record *entity.ConsumptionRecord) *Ticket {
	return &Ticket{
		RecordID:  record.Id,
		UserID:    record.UserId,
		WorkType:  record.WorkType,
		ResultID:  record.ResultId,
		Bucket:    record.ChargedBucket,
		StartedAt: record.StartedAt,
	}
}

// Balance returns the user's buckets, granting the free allowance on first access.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (*entity.CreditBalance, error) {
	uow := l.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := l.ensureBalance(ctx, uow, userID); err != nil {
		return nil, err
	}
	balance, err := uow.CreditBalanceRepository().FindByUserId(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return balance, nil
}

func (l *Ledger) Records(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.ConsumptionRecord, error) {
	return l.factory.NewUnitOfWork(ctx).ConsumptionRecordRepository().FindAllByUser(ctx, userID, limit, offset)
}

func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]*entity.CreditTransaction, error) {
	return l.factory.NewUnitOfWork(ctx).CreditTransactionRepository().FindAllByUser(ctx, userID, limit)
}

// ApplyTopUp credits a paid order to the purchased bucket. It reports false when the order
// was already applied or is no longer pending.
func (l *Ledger) ApplyTopUp(ctx context.Context, orderID uuid.UUID) (*entity.CreditTopUp, bool, error) {
	uow := l.factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, false, err
	}
	defer uow.Rollback()

	topUp, err := uow.CreditTopUpRepository().FindById(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if topUp == nil {
		return nil, false, ErrTopUpNotFound
	}

	now := l.now()
	ok, err := uow.CreditTopUpRepository().MarkPaid(ctx, orderID, now)
	if err != nil || !ok {
		return topUp, false, err
	}
	if err := l.ensureBalance(ctx, uow, topUp.UserId); err != nil {
		return nil, false, err
	}
	if err := uow.CreditBalanceRepository().Increment(ctx, topUp.UserId, entity.BalanceBucketPurchased, topUp.Credits); err != nil {
		return nil, false, err
	}
	if err := uow.CreditTransactionRepository().Create(ctx, &entity.CreditTransaction{
		Id:              uuid.New(),
		UserId:          topUp.UserId,
		TransactionType: entity.CreditTransactionTopUp,
		Bucket:          entity.BalanceBucketPurchased,
		Amount:          topUp.Credits,
		RelatedId:       &topUp.Id,
		Notes:           topUp.PackageId,
		CreatedAt:       now,
	}); err != nil {
		return nil, false, err
	}
	if err := uow.Commit(); err != nil {
		return nil, false, err
	}

	topUp.Status = entity.TopUpStatusPaid
	topUp.PaidAt = &now
	l.logger.Info(module, "Applied credit top-up", map[string]interface{}{
		"order_id": orderID,
		"user_id":  topUp.UserId,
		"credits":  topUp.Credits,
	})
	return topUp, true, nil
}
