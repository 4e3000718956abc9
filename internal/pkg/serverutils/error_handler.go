package serverutils

import (
	"errors"

	"ai-interview-be/internal/dto"
	"ai-interview-be/pkg/interview"
	"ai-interview-be/pkg/ledger"
	"ai-interview-be/pkg/recovery"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var verr *dto.ValidationError
	var ferr *fiber.Error
	switch {
	case errors.As(err, &verr):
		return fiber.StatusBadRequest
	case errors.As(err, &ferr):
		return ferr.Code
	case errors.Is(err, ledger.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return fiber.StatusPaymentRequired
	case errors.Is(err, ledger.ErrDuplicateInProgress), errors.Is(err, interview.ErrTurnInProgress),
		errors.Is(err, interview.ErrSessionInactive), errors.Is(err, interview.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, interview.ErrSessionNotFound), errors.Is(err, recovery.ErrResultNotFound),
		errors.Is(err, ledger.ErrRecordNotFound), errors.Is(err, ledger.ErrTopUpNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware turns errors returned by handlers into the standard envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		resp := ErrorResponse(code, err.Error())
		var verr *dto.ValidationError
		if errors.As(err, &verr) {
			resp.Message = "Validation failed"
			resp.Errors = verr.Fields
		}
		if code == fiber.StatusInternalServerError {
			resp.Message = "Internal server error"
		}
		return ctx.Status(code).JSON(resp)
	}
}
