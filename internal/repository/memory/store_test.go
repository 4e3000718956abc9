package memory

import (
	"context"
	"testing"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_RollbackUndoesWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	uow := store.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	created, err := uow.CreditBalanceRepository().CreateIfAbsent(ctx, &entity.CreditBalance{UserId: userID, FreeBalance: 2})
	require.NoError(t, err)
	require.True(t, created)
	ok, err := uow.CreditBalanceRepository().DecrementIfPositive(ctx, userID, entity.BalanceBucketFree)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, uow.Rollback())

	balance, err := store.NewUnitOfWork(ctx).CreditBalanceRepository().FindByUserId(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, balance)
}

func TestUnitOfWork_CommitKeepsWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	uow := store.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.CreditBalanceRepository().CreateIfAbsent(ctx, &entity.CreditBalance{UserId: userID, FreeBalance: 1})
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback())

	balance, err := store.NewUnitOfWork(ctx).CreditBalanceRepository().FindByUserId(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, balance)
	assert.Equal(t, 1, balance.FreeBalance)
}

func TestConsumptionRecords_UniqueActiveKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.NewUnitOfWork(ctx).ConsumptionRecordRepository()
	userID := uuid.New()
	key := "k-1"

	first := &entity.ConsumptionRecord{UserId: userID, WorkType: "quiz", Status: entity.ConsumptionStatusPending, IdempotencyKey: &key, StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, first))

	dup := &entity.ConsumptionRecord{UserId: userID, WorkType: "quiz", Status: entity.ConsumptionStatusPending, IdempotencyKey: &key, StartedAt: time.Now()}
	assert.ErrorIs(t, repo.Create(ctx, dup), contract.ErrDuplicateKey)

	ok, err := repo.MarkRefunded(ctx, first.Id, "boom", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	// Failed attempts free the key
	retry := &entity.ConsumptionRecord{UserId: userID, WorkType: "quiz", Status: entity.ConsumptionStatusPending, IdempotencyKey: &key, StartedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, retry))

	active, err := repo.FindActiveByIdempotencyKey(ctx, userID, key)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, retry.Id, active.Id)

	ok, err = repo.MarkRefunded(ctx, first.Id, "again", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionResults_ReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.NewUnitOfWork(ctx).SessionResultRepository()

	result := &entity.SessionResult{Id: uuid.New(), UserId: uuid.New(), Status: entity.ResultStatusInProgress}
	require.NoError(t, repo.Create(ctx, result))

	loaded, err := repo.FindById(ctx, result.Id)
	require.NoError(t, err)
	loaded.Transcript = append(loaded.Transcript, entity.TranscriptEntry{Text: "not saved"})

	again, err := repo.FindById(ctx, result.Id)
	require.NoError(t, err)
	assert.Empty(t, again.Transcript)
}
