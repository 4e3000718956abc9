package service

import (
	"context"
	"testing"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/memory"
	"ai-interview-be/pkg/ledger"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServerKey = "SB-Mid-server-test"

type fakeSnap struct {
	requests []*snap.Request
	err      *midtrans.Error
}

func (f *fakeSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &snap.Response{Token: "snap-token", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token"}, nil
}

type creditFixture struct {
	svc       ICreditService
	ledger    *ledger.Ledger
	store     *memory.Store
	snap      *fakeSnap
	publisher *recordingPublisher
	userID    uuid.UUID
}

func newCreditFixture(t *testing.T) *creditFixture {
	t.Helper()
	log := logger.NewNopLogger()
	store := memory.NewStore()
	l := ledger.New(store, ledger.Config{FreeCredits: 1, RefundRetries: 1}, log, ledger.WithSleep(func(time.Duration) {}))
	snapClient := &fakeSnap{}
	publisher := &recordingPublisher{}
	cfg := config.MidtransConfig{
		ServerKey: testServerKey,
		Packages:  []config.CreditPackage{{Id: "starter", Credits: 10, GrossAmount: 50000}},
	}
	return &creditFixture{
		svc:       NewCreditService(l, store, snapClient, cfg, publisher, log),
		ledger:    l,
		store:     store,
		snap:      snapClient,
		publisher: publisher,
		userID:    uuid.New(),
	}
}

func notification(orderID, status string) *dto.MidtransNotificationRequest {
	req := &dto.MidtransNotificationRequest{
		OrderId:           orderID,
		StatusCode:        "200",
		GrossAmount:       "50000.00",
		TransactionStatus: status,
	}
	req.SignatureKey = NotificationSignature(req.OrderId, req.StatusCode, req.GrossAmount, testServerKey)
	return req
}

func TestCredit_CheckoutCreatesPendingOrder(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()

	res, err := f.svc.Checkout(ctx, f.userID, &dto.CheckoutRequest{PackageId: "starter"})
	require.NoError(t, err)
	assert.Equal(t, "snap-token", res.SnapToken)
	assert.Equal(t, 10, res.Credits)

	require.Len(t, f.snap.requests, 1)
	assert.Equal(t, res.OrderId, f.snap.requests[0].TransactionDetails.OrderID)
	assert.Equal(t, int64(50000), f.snap.requests[0].TransactionDetails.GrossAmt)

	topUp, err := f.store.NewUnitOfWork(ctx).CreditTopUpRepository().FindById(ctx, uuid.MustParse(res.OrderId))
	require.NoError(t, err)
	require.NotNil(t, topUp)
	assert.Equal(t, entity.TopUpStatusPending, topUp.Status)
	assert.Equal(t, f.userID, topUp.UserId)
}

func TestCredit_CheckoutRejections(t *testing.T) {
	f := newCreditFixture(t)

	_, err := f.svc.Checkout(context.Background(), f.userID, &dto.CheckoutRequest{PackageId: "platinum"})
	var verr *dto.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, f.snap.requests)

	f.snap.err = &midtrans.Error{Message: "gateway down", StatusCode: 500}
	_, err = f.svc.Checkout(context.Background(), f.userID, &dto.CheckoutRequest{PackageId: "starter"})
	assert.ErrorContains(t, err, "gateway down")
}

func TestCredit_SettlementCreditsOnce(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()
	res, err := f.svc.Checkout(ctx, f.userID, &dto.CheckoutRequest{PackageId: "starter"})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleNotification(ctx, notification(res.OrderId, "settlement")))
	require.NoError(t, f.svc.HandleNotification(ctx, notification(res.OrderId, "settlement")))

	balance, err := f.svc.GetBalance(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance.PurchasedBalance)
	assert.Equal(t, 1, balance.FreeBalance)
	assert.Equal(t, 11, balance.Total)
	assert.Equal(t, 1, f.publisher.topUps)
}

func TestCredit_Notifications(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(req *dto.MidtransNotificationRequest)
		status        string
		wantErr       error
		wantPurchased int
		wantOrder     entity.TopUpStatus
	}{
		{name: "capture accepted", status: "capture", wantPurchased: 10, wantOrder: entity.TopUpStatusPaid},
		{
			name:      "capture under review",
			status:    "capture",
			mutate:    func(req *dto.MidtransNotificationRequest) { req.FraudStatus = "challenge" },
			wantOrder: entity.TopUpStatusPending,
		},
		{name: "expired", status: "expire", wantOrder: entity.TopUpStatusFailed},
		{name: "pending", status: "pending", wantOrder: entity.TopUpStatusPending},
		{
			name:   "bad signature",
			status: "settlement",
			mutate: func(req *dto.MidtransNotificationRequest) {
				req.SignatureKey = NotificationSignature(req.OrderId, req.StatusCode, req.GrossAmount, "other-key")
			},
			wantErr:   ErrInvalidSignature,
			wantOrder: entity.TopUpStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCreditFixture(t)
			ctx := context.Background()
			res, err := f.svc.Checkout(ctx, f.userID, &dto.CheckoutRequest{PackageId: "starter"})
			require.NoError(t, err)

			req := notification(res.OrderId, tt.status)
			if tt.mutate != nil {
				tt.mutate(req)
			}
			err = f.svc.HandleNotification(ctx, req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			balance, err := f.svc.GetBalance(ctx, f.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPurchased, balance.PurchasedBalance)

			topUp, err := f.store.NewUnitOfWork(ctx).CreditTopUpRepository().FindById(ctx, uuid.MustParse(res.OrderId))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, topUp.Status)
		})
	}
}

func TestCredit_UnknownOrder(t *testing.T) {
	f := newCreditFixture(t)
	err := f.svc.HandleNotification(context.Background(), notification(uuid.NewString(), "settlement"))
	assert.ErrorIs(t, err, ledger.ErrTopUpNotFound)
}

func TestCredit_RecordsReflectConsumption(t *testing.T) {
	f := newCreditFixture(t)
	ctx := context.Background()

	begin, err := f.ledger.Begin(ctx, ledger.BeginRequest{UserID: f.userID, WorkType: "interview"})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Abort(ctx, begin.Ticket, "backend unavailable"))

	records, err := f.svc.GetRecords(ctx, f.userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Status)
	assert.Equal(t, "free", records[0].Bucket)
	assert.True(t, records[0].Refunded)
	assert.Equal(t, "backend unavailable", records[0].ErrorInfo)
}
