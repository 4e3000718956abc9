package ledger

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateInProgress means a request with the same idempotency key is still pending.
	ErrDuplicateInProgress = errors.New("request with this idempotency key is already in progress")
	// ErrTicketClosed is returned when a ticket has already reached a terminal state.
	ErrTicketClosed = errors.New("consumption ticket already closed")
	// ErrRefundFailed means the compensating refund could not be applied after all retries.
	// The balance is stuck until an operator reconciles it.
	ErrRefundFailed   = errors.New("refund failed")
	ErrRecordNotFound = errors.New("consumption record not found")
	ErrInvalidRequest = errors.New("invalid consumption request")
	ErrTopUpNotFound  = errors.New("top-up order not found")
)
