package handler

import (
	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/internal/pkg/serverutils"
	internalWS "ai-interview-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NotificationHandler serves the per-user channel carrying job progress and notifications.
type NotificationHandler struct {
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewNotificationHandler(hub *internalWS.Hub, log logger.ILogger) *NotificationHandler {
	return &NotificationHandler{
		hub:    hub,
		logger: log,
	}
}

func (h *NotificationHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/progress/ws", serverutils.QueryTokenMiddleware, h.ServeWs)
}

// ServeWs upgrades an authenticated request and hands the connection to the hub.
func (h *NotificationHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	userID, err := serverutils.CurrentUserID(c)
	if err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("NotificationHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("NotificationHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}
