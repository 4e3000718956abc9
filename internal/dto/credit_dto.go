package dto

import "time"

type CreditBalanceResponse struct {
	FreeBalance      int `json:"freeBalance"`
	PurchasedBalance int `json:"purchasedBalance"`
	Total            int `json:"total"`
}

type ConsumptionRecordResponse struct {
	Id          string     `json:"id"`
	WorkType    string     `json:"workType"`
	Status      string     `json:"status"`
	Bucket      string     `json:"bucket"`
	ResultId    string     `json:"resultId,omitempty"`
	Refunded    bool       `json:"refunded"`
	ErrorInfo   string     `json:"errorInfo,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
}

type CheckoutRequest struct {
	PackageId string `json:"packageId" validate:"required"`
}

type CheckoutResponse struct {
	OrderId     string `json:"orderId"`
	SnapToken   string `json:"snapToken"`
	RedirectURL string `json:"redirectUrl"`
	Credits     int    `json:"credits"`
	GrossAmount int64  `json:"grossAmount"`
}

// MidtransNotificationRequest is the subset of the payment webhook body we rely on.
type MidtransNotificationRequest struct {
	OrderId           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}
