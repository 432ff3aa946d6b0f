package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// MessageHandler handles contacts, history and sending.
type MessageHandler struct {
	chatService    service.ChatService
	authMiddleware *middleware.AuthMiddleware
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(chatService service.ChatService, authMiddleware *middleware.AuthMiddleware) *MessageHandler {
	return &MessageHandler{
		chatService:    chatService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *MessageHandler) RegisterRoutes(api *gin.RouterGroup) {
	messages := api.Group("/messages")
	messages.Use(h.authMiddleware.RequireAuth())
	{
		messages.GET("/users", h.ListUsers)
		messages.GET("/:id", h.GetMessages)
		messages.POST("/send/:id", h.SendMessage)
	}

	api.GET("/presence", h.authMiddleware.RequireAuth(), h.Presence)
}

// ListUsers returns every user except the caller.
func (h *MessageHandler) ListUsers(c *gin.Context) {
	users, err := h.chatService.ListContacts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to list users")
		return
	}
	response.Success(c, users)
}

// GetMessages returns a page of the conversation with :id.
//
// Query params: cursor, limit (default 50, max 100), direction (backward
// or forward, default backward).
func (h *MessageHandler) GetMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	direction := c.DefaultQuery("direction", "backward")
	if direction != "backward" && direction != "forward" {
		response.BadRequest(c, "direction must be backward or forward")
		return
	}

	page, err := h.chatService.GetHistory(
		c.Request.Context(),
		middleware.GetUserID(c),
		c.Param("id"),
		c.Query("cursor"),
		limit,
		direction,
	)
	if err != nil {
		writeError(c, err, "failed to get messages")
		return
	}
	response.Success(c, page)
}

// SendMessage stores a message to :id and pushes it if the recipient is
// online.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid send message request")
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.chatService.SendMessage(ctx, middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		writeError(c, err, "failed to send message")
		return
	}
	response.Created(c, msg)
}

// Presence returns the ids of connected users.
func (h *MessageHandler) Presence(c *gin.Context) {
	response.Success(c, gin.H{"online": h.chatService.Online()})
}
