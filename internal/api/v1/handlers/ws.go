package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"teamboard/internal/middleware"
	board "teamboard/internal/websocket"
	"teamboard/pkg/logger"
)

const (
	localProjectID = "projectID"
	localBoardUser = "boardUser"
)

// BoardUpgrade authenticates a websocket upgrade for /ws/projects/:projectId.
// Browsers cannot set headers on websocket requests, so the token may also be
// passed as the "token" query parameter.
func (h *Handler) BoardUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	// token dari query, atau header Authorization
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c.Get(fiber.HeaderAuthorization))
	}
	if token == "" {
		return message(c, fiber.StatusUnauthorized, "No token, authorization denied")
	}
	userID, err := h.deps.Issuer.Verify(token)
	if err != nil {
		logger.SecurityLogger.Warn("Rejected websocket token", zap.String("ip", c.IP()))
		return message(c, fiber.StatusUnauthorized, "Token is not valid")
	}

	// projectID dipakai sebagai key room setelah handler selesai, jadi harus disalin
	projectID := utils.CopyString(c.Params("projectId"))

	// hanya owner dan member yang boleh berlangganan
	if _, err := h.deps.Projects.Get(c.UserContext(), projectID, userID); err != nil {
		return respondError(c, err)
	}
	c.Locals(localProjectID, projectID)
	c.Locals(localBoardUser, userID)
	return c.Next()
}

// BoardFeed streams board events until the client disconnects or loses
// access to the project. Inbound messages are ignored.
func (h *Handler) BoardFeed(conn *websocket.Conn) {
	projectID, _ := conn.Locals(localProjectID).(string)
	userID, _ := conn.Locals(localBoardUser).(string)
	client := &board.Client{Conn: conn, Project: projectID, User: userID}
	h.deps.Hub.Register(client)
	defer h.deps.Hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
