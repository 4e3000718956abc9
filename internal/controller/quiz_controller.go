package controller

import (
	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/pkg/serverutils"
	"ai-interview-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IQuizController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	GetResult(ctx *fiber.Ctx) error
}

type quizController struct {
	service service.IQuizService
}

func NewQuizController(service service.IQuizService) IQuizController {
	return &quizController{service: service}
}

func (c *quizController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/quiz")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/generate", c.Generate)
	h.Get("/results/:id", c.GetResult)
}

// Generate queues a quiz job. Progress arrives on the progress websocket.
func (c *quizController) Generate(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.GenerateQuizRequest
	if err := ctx.BodyParser(&req); err != nil {
		return dto.NewValidationError("body", "must be a JSON object")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Generate(ctx.Context(), userId, req)
	if err != nil {
		return err
	}
	if res.Replayed {
		return ctx.JSON(serverutils.SuccessResponse("Quiz already generated", res))
	}

	resp := serverutils.SuccessResponse("Quiz generation queued", res)
	resp.Code = fiber.StatusAccepted
	return ctx.Status(fiber.StatusAccepted).JSON(resp)
}

func (c *quizController) GetResult(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	resultId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return dto.NewValidationError("id", "must be a valid UUID")
	}

	res, err := c.service.GetResult(ctx.Context(), userId, resultId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get quiz", res))
}
