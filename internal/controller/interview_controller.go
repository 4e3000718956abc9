package controller

import (
	"context"
	"encoding/json"
	"sync"

	"ai-interview-be/internal/dto"
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/pkg/serverutils"
	"ai-interview-be/internal/service"
	"ai-interview-be/pkg/interview"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const interviewReadLimit = 128 * 1024

type IInterviewController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	GetResult(ctx *fiber.Ctx) error
}

type interviewController struct {
	service service.IInterviewService
	logger  logger.ILogger
}

func NewInterviewController(service service.IInterviewService, log logger.ILogger) IInterviewController {
	return &interviewController{service: service, logger: log}
}

func (c *interviewController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/interview")
	h.Get("/ws", serverutils.QueryTokenMiddleware, c.Stream)
	h.Get("/sessions/:id", serverutils.JwtMiddleware, c.GetSession)
	h.Get("/results/:id", serverutils.JwtMiddleware, c.GetResult)
}

// Stream upgrades to the interview websocket. Actions on one connection run one at a time.
func (c *interviewController) Stream(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()
		conn.SetReadLimit(interviewReadLimit)

		stream := newInterviewStream(c.service, userId, conn.WriteMessage)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Warn("InterviewController", "Interview socket closed", map[string]interface{}{
						"user_id": userId,
						"error":   err.Error(),
					})
				}
				return
			}
			if stream.handle(context.Background(), raw) {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	})(ctx)
}

// interviewStream is the sink of one websocket connection.
type interviewStream struct {
	service service.IInterviewService
	userId  uuid.UUID
	write   func(messageType int, data []byte) error

	mu       sync.Mutex
	terminal bool
}

func newInterviewStream(svc service.IInterviewService, userId uuid.UUID, write func(int, []byte) error) *interviewStream {
	return &interviewStream{service: svc, userId: userId, write: write}
}

func (s *interviewStream) Send(event interview.Event) error {
	data, err := interview.Encode(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch event.EventType() {
	case interview.EventEnd, interview.EventError:
		s.terminal = true
	}
	return s.write(websocket.TextMessage, data)
}

func (s *interviewStream) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// handle runs one client message and reports whether the connection should close.
func (s *interviewStream) handle(ctx context.Context, raw []byte) bool {
	var msg dto.InterviewClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.reject(msg.SessionId, dto.NewValidationError("message", "must be a JSON object"))
		return true
	}

	if err := s.dispatch(ctx, msg); err != nil {
		s.reject(msg.SessionId, err)
		return true
	}
	return s.ended()
}

func (s *interviewStream) dispatch(ctx context.Context, msg dto.InterviewClientMessage) error {
	switch msg.Action {
	case dto.InterviewActionStart:
		req := dto.StartInterviewRequest{
			JobKind:        msg.JobKind,
			Position:       msg.Position,
			JobDescription: msg.JobDescription,
			ResumeText:     msg.ResumeText,
			IdempotencyKey: msg.IdempotencyKey,
		}
		if err := serverutils.ValidateRequest(req); err != nil {
			return err
		}
		return s.service.Start(ctx, s.userId, req, s)

	case dto.InterviewActionAnswer:
		req := dto.AnswerRequest{SessionId: msg.SessionId, Content: msg.Content}
		if err := serverutils.ValidateRequest(req); err != nil {
			return err
		}
		return s.service.Answer(ctx, s.userId, req, s)

	case dto.InterviewActionAttach, dto.InterviewActionEnd:
		if msg.SessionId == "" {
			return dto.NewValidationError("sessionId", "is required")
		}
		if msg.Action == dto.InterviewActionAttach {
			return s.service.Attach(ctx, s.userId, msg.SessionId, s)
		}
		return s.service.End(ctx, s.userId, msg.SessionId, s)
	}
	return dto.NewValidationError("action", "must be one of [start answer attach end]")
}

func (s *interviewStream) reject(sessionId string, err error) {
	code := serverutils.StatusFor(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		message = "Internal server error"
	}
	s.Send(interview.NewErrorEvent(sessionId, message, map[string]interface{}{"code": code}))
}

func (c *interviewController) GetSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSession(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *interviewController) GetResult(ctx *fiber.Ctx) error {
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
	return ctx.JSON(serverutils.SuccessResponse("Success get result", res))
}
