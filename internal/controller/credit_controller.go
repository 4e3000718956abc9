package controller

import (
	"errors"

	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/pkg/serverutils"
	"ai-interview-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICreditController interface {
	RegisterRoutes(r fiber.Router)
	GetBalance(ctx *fiber.Ctx) error
	GetRecords(ctx *fiber.Ctx) error
	Checkout(ctx *fiber.Ctx) error
	Webhook(ctx *fiber.Ctx) error
}

type creditController struct {
	service service.ICreditService
	logger  logger.ILogger
}

func NewCreditController(service service.ICreditService, log logger.ILogger) ICreditController {
	return &creditController{service: service, logger: log}
}

func (c *creditController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/credits")
	h.Post("/notification", c.Webhook)

	// Protected Routes
	h.Get("/balance", serverutils.JwtMiddleware, c.GetBalance)
	h.Get("/records", serverutils.JwtMiddleware, c.GetRecords)
	h.Post("/checkout", serverutils.JwtMiddleware, c.Checkout)
}

func (c *creditController) GetBalance(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetBalance(ctx.Context(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get balance", res))
}

func (c *creditController) GetRecords(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	limit := ctx.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := ctx.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	res, err := c.service.GetRecords(ctx.Context(), userId, limit, offset)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get records", res))
}

func (c *creditController) Checkout(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CheckoutRequest
	if err := ctx.BodyParser(&req); err != nil {
		return dto.NewValidationError("body", "must be a JSON object")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Checkout(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Checkout created", res))
}

// Webhook receives payment notifications. It is unauthenticated; the signature is the check.
func (c *creditController) Webhook(ctx *fiber.Ctx) error {
	var req dto.MidtransNotificationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return dto.NewValidationError("body", "must be a JSON object")
	}

	if err := c.service.HandleNotification(ctx.Context(), &req); err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			return ctx.Status(fiber.StatusForbidden).JSON(serverutils.ErrorResponse(fiber.StatusForbidden, err.Error()))
		}
		c.logger.Error("CreditController", "Payment notification failed", map[string]interface{}{
			"order_id": req.OrderId,
			"error":    err.Error(),
		})
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("OK", fiber.Map{"orderId": req.OrderId}))
}
