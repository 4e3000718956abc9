package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"ai-interview-be/internal/config"
	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/entity"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/repository/unitofwork"
	"ai-interview-be/pkg/domainevents"
	"ai-interview-be/pkg/ledger"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

const creditModule = "CREDIT"

var (
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrUnknownPackage   = errors.New("unknown credit package")
)

// SnapClient is the part of the midtrans snap client used for checkout.
type SnapClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// CreditLedger is the read and top-up side of the ledger.
type CreditLedger interface {
	Balance(ctx context.Context, userID uuid.UUID) (*entity.CreditBalance, error)
	Records(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.ConsumptionRecord, error)
	ApplyTopUp(ctx context.Context, orderID uuid.UUID) (*entity.CreditTopUp, bool, error)
}

type ICreditService interface {
	GetBalance(ctx context.Context, userId uuid.UUID) (*dto.CreditBalanceResponse, error)
	GetRecords(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*dto.ConsumptionRecordResponse, error)
	Checkout(ctx context.Context, userId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	HandleNotification(ctx context.Context, req *dto.MidtransNotificationRequest) error
}

type creditService struct {
	ledger     CreditLedger
	uowFactory unitofwork.RepositoryFactory
	snap       SnapClient
	cfg        config.MidtransConfig
	publisher  domainevents.Publisher
	logger     logger.ILogger
	now        func() time.Time
}

func NewCreditService(
	credits CreditLedger,
	uowFactory unitofwork.RepositoryFactory,
	snapClient SnapClient,
	cfg config.MidtransConfig,
	publisher domainevents.Publisher,
	log logger.ILogger,
) ICreditService {
	return &creditService{
		ledger:     credits,
		uowFactory: uowFactory,
		snap:       snapClient,
		cfg:        cfg,
		publisher:  publisher,
		logger:     log,
		now:        time.Now,
	}
}

// NewSnapClient builds the midtrans snap client for the configured environment.
func NewSnapClient(cfg config.MidtransConfig) SnapClient {
	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(cfg.ServerKey, env)
	return &client
}

func (s *creditService) GetBalance(ctx context.Context, userId uuid.UUID) (*dto.CreditBalanceResponse, error) {
	balance, err := s.ledger.Balance(ctx, userId)
	if err != nil {
		return nil, err
	}
	return &dto.CreditBalanceResponse{
		FreeBalance:      balance.FreeBalance,
		PurchasedBalance: balance.PurchasedBalance,
		Total:            balance.Total(),
	}, nil
}

func (s *creditService) GetRecords(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*dto.ConsumptionRecordResponse, error) {
	records, err := s.ledger.Records(ctx, userId, limit, offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConsumptionRecordResponse, 0, len(records))
	for _, r := range records {
		item := &dto.ConsumptionRecordResponse{
			Id:          r.Id.String(),
			WorkType:    r.WorkType,
			Status:      string(r.Status),
			Bucket:      string(r.ChargedBucket),
			Refunded:    r.Refunded,
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			FailedAt:    r.FailedAt,
		}
		if r.ResultId != nil {
			item.ResultId = r.ResultId.String()
		}
		if r.ErrorInfo != nil {
			item.ErrorInfo = *r.ErrorInfo
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *creditService) Checkout(ctx context.Context, userId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	pkg, ok := s.cfg.Package(req.PackageId)
	if !ok {
		return nil, dto.NewValidationError("packageId", ErrUnknownPackage.Error())
	}

	topUp := &entity.CreditTopUp{
		Id:          uuid.New(),
		UserId:      userId,
		PackageId:   pkg.Id,
		Credits:     pkg.Credits,
		GrossAmount: pkg.GrossAmount,
		Status:      entity.TopUpStatusPending,
		CreatedAt:   s.now(),
	}

	snapResp, midErr := s.snap.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  topUp.Id.String(),
			GrossAmt: pkg.GrossAmount,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    pkg.Id,
				Price: pkg.GrossAmount,
				Qty:   1,
				Name:  fmt.Sprintf("%d interview credits", pkg.Credits),
			},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	})
	if midErr != nil {
		return nil, fmt.Errorf("midtrans error: %s", midErr.GetMessage())
	}
	topUp.SnapToken = snapResp.Token

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.CreditTopUpRepository().Create(ctx, topUp); err != nil {
		return nil, fmt.Errorf("save top-up order: %w", err)
	}

	s.logger.Info(creditModule, "Top-up checkout created", map[string]interface{}{
		"order_id": topUp.Id,
		"user_id":  userId,
		"package":  pkg.Id,
		"credits":  pkg.Credits,
	})
	return &dto.CheckoutResponse{
		OrderId:     topUp.Id.String(),
		SnapToken:   snapResp.Token,
		RedirectURL: snapResp.RedirectURL,
		Credits:     pkg.Credits,
		GrossAmount: pkg.GrossAmount,
	}, nil
}

// NotificationSignature is SHA512(order_id + status_code + gross_amount + server_key), hex encoded.
func NotificationSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (s *creditService) HandleNotification(ctx context.Context, req *dto.MidtransNotificationRequest) error {
	if s.cfg.ServerKey == "" {
		return errors.New("payment server key not configured")
	}
	expected := NotificationSignature(req.OrderId, req.StatusCode, req.GrossAmount, s.cfg.ServerKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(req.SignatureKey)) != 1 {
		s.logger.Warn(creditModule, "Rejected notification with bad signature", map[string]interface{}{
			"order_id": req.OrderId,
		})
		return ErrInvalidSignature
	}

	orderID, err := uuid.Parse(req.OrderId)
	if err != nil {
		return dto.NewValidationError("order_id", "must be a valid UUID")
	}

	switch req.TransactionStatus {
	case "capture":
		if req.FraudStatus != "" && req.FraudStatus != "accept" {
			s.logger.Warn(creditModule, "Captured payment held for fraud review", map[string]interface{}{
				"order_id":     orderID,
				"fraud_status": req.FraudStatus,
			})
			return nil
		}
		return s.settle(ctx, orderID)
	case "settlement":
		return s.settle(ctx, orderID)
	case "deny", "cancel", "expire", "failure":
		return s.fail(ctx, orderID, req.TransactionStatus)
	default:
		s.logger.Info(creditModule, "Notification needs no action", map[string]interface{}{
			"order_id": orderID,
			"status":   req.TransactionStatus,
		})
		return nil
	}
}

func (s *creditService) settle(ctx context.Context, orderID uuid.UUID) error {
	topUp, applied, err := s.ledger.ApplyTopUp(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledger.ErrTopUpNotFound) {
			s.logger.Warn(creditModule, "Notification for unknown order", map[string]interface{}{"order_id": orderID})
		}
		return err
	}
	if !applied {
		s.logger.Info(creditModule, "Top-up already resolved", map[string]interface{}{
			"order_id": orderID,
			"status":   topUp.Status,
		})
		return nil
	}
	s.publisher.PublishTopUpSettled(ctx, topUp)
	return nil
}

func (s *creditService) fail(ctx context.Context, orderID uuid.UUID, status string) error {
	changed, err := s.uowFactory.NewUnitOfWork(ctx).CreditTopUpRepository().MarkFailed(ctx, orderID)
	if err != nil {
		return err
	}
	s.logger.Info(creditModule, "Top-up payment failed", map[string]interface{}{
		"order_id": orderID,
		"status":   status,
		"changed":  changed,
	})
	return nil
}
