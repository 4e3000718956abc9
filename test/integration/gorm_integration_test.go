package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/unitofwork"
	"ai-interview-be/pkg/database"
	"ai-interview-be/pkg/ledger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err, "connect to DB")
	require.NoError(t, database.Migrate(gormDB), "migrate")
	return gormDB
}

func newLedger(db *gorm.DB) *ledger.Ledger {
	return ledger.New(unitofwork.NewRepositoryFactory(db), ledger.Config{
		FreeCredits:   2,
		RefundRetries: 2,
		RefundBackoff: 10 * time.Millisecond,
	}, logger.NewNopLogger())
}

func TestGormConnection(t *testing.T) {
	gormDB := openDB(t)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())

	// Migrating twice must be a no-op
	assert.NoError(t, database.Migrate(gormDB))
}

func TestLedger_GormSaga(t *testing.T) {
	db := openDB(t)
	l := newLedger(db)
	ctx := context.Background()
	userID := uuid.New()

	t.Run("settle keeps the charge", func(t *testing.T) {
		res, err := l.Begin(ctx, ledger.BeginRequest{UserID: userID, WorkType: "quiz", IdempotencyKey: "settle-" + userID.String()})
		require.NoError(t, err)
		require.NotNil(t, res.Ticket)
		require.NoError(t, l.Settle(ctx, res.Ticket, map[string]interface{}{"questions": 5}))

		balance, err := l.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, balance.Total())

		// Replaying the settled key returns the prior record without charging
		replay, err := l.Begin(ctx, ledger.BeginRequest{UserID: userID, WorkType: "quiz", IdempotencyKey: "settle-" + userID.String()})
		require.NoError(t, err)
		assert.True(t, replay.AlreadySettled)
		require.NotNil(t, replay.Prior)
		assert.Equal(t, res.Ticket.RecordID, replay.Prior.Id)
	})

	t.Run("pending key is rejected by the partial index", func(t *testing.T) {
		key := "pending-" + userID.String()
		res, err := l.Begin(ctx, ledger.BeginRequest{UserID: userID, WorkType: "quiz", IdempotencyKey: key})
		require.NoError(t, err)

		_, err = l.Begin(ctx, ledger.BeginRequest{UserID: userID, WorkType: "quiz", IdempotencyKey: key})
		assert.ErrorIs(t, err, ledger.ErrDuplicateInProgress)

		require.NoError(t, l.Abort(ctx, res.Ticket, "backend unavailable"))

		// A refunded attempt frees the key
		retry, err := l.Begin(ctx, ledger.BeginRequest{UserID: userID, WorkType: "quiz", IdempotencyKey: key})
		require.NoError(t, err)
		require.NotNil(t, retry.Ticket)
		assert.NotEqual(t, res.Ticket.RecordID, retry.Ticket.RecordID)
		require.NoError(t, l.Abort(ctx, retry.Ticket, "cleanup"))
	})

	t.Run("abort is idempotent", func(t *testing.T) {
		res, err := l.Begin(ctx, ledger.BeginRequest{UserID: userID, WorkType: "mock_interview"})
		require.NoError(t, err)
		require.NoError(t, l.Abort(ctx, res.Ticket, "first"))
		assert.ErrorIs(t, l.Abort(ctx, res.Ticket, "second"), ledger.ErrTicketClosed)

		balance, err := l.Balance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, balance.Total())
	})

	t.Run("journal records every movement", func(t *testing.T) {
		txs, err := l.Transactions(ctx, userID, 50)
		require.NoError(t, err)
		counts := map[entity.CreditTransactionType]int{}
		for _, tx := range txs {
			counts[tx.TransactionType]++
		}
		assert.Equal(t, 1, counts[entity.CreditTransactionGrant])
		assert.Equal(t, 4, counts[entity.CreditTransactionSpend])
		assert.Equal(t, 3, counts[entity.CreditTransactionRefund])
	})
}

func TestSessionResultRepository_Gorm(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)

	result := &entity.SessionResult{
		Id:        uuid.New(),
		UserId:    uuid.New(),
		SessionId: uuid.NewString(),
		JobKind:   "backend_engineer",
		Status:    entity.ResultStatusInProgress,
		Transcript: []entity.TranscriptEntry{
			{Role: entity.TranscriptRoleInterviewer, Text: "Tell me about yourself.", QuestionNumber: 1, Timestamp: time.Now()},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, uow.SessionResultRepository().Create(ctx, result))

	result.Status = entity.ResultStatusCompleted
	result.QuestionCount = 1
	result.Transcript = append(result.Transcript, entity.TranscriptEntry{Role: entity.TranscriptRoleCandidate, Text: "I build APIs.", Timestamp: time.Now()})
	require.NoError(t, uow.SessionResultRepository().Update(ctx, result))

	loaded, err := uow.SessionResultRepository().FindById(ctx, result.Id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entity.ResultStatusCompleted, loaded.Status)
	assert.Len(t, loaded.Transcript, 2)
	assert.Equal(t, "I build APIs.", loaded.Transcript[1].Text)

	list, err := uow.SessionResultRepository().FindAllByUser(ctx, result.UserId, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
