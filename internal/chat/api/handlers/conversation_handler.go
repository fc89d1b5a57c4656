package handlers

import (
	"fmt"

	"marketplace_chat_service/internal/chat/app"
	"marketplace_chat_service/internal/chat/domain"
	errprocess "marketplace_chat_service/pkg/err"
	"marketplace_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ConversationHandler 處理聊天相關的 HTTP 請求
type ConversationHandler struct {
	conversations *app.ConversationUseCase
	reports       *app.ReportUseCase
}

// NewConversationHandler create ConversationHandler
func NewConversationHandler(conversations *app.ConversationUseCase, reports *app.ReportUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		reports:       reports,
	}
}

// CreateRequest body of /chat/create
type CreateRequest struct {
	Participants []string `json:"participants"`
}

// ConversationRequest body of /chat/join and /chat/leave
type ConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

// CreateResponse result of /chat/create
type CreateResponse struct {
	ConversationID string `json:"conversation_id"`
}

// JoinResponse result of /chat/join
type JoinResponse struct {
	ConversationID string                  `json:"conversation_id"`
	Participants   []string                `json:"participants"`
	Presence       domain.PresenceSnapshot `json:"presence"`
}

// ListResponse result of /chat/list
type ListResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

// Create start a conversation
// @Summary Create conversation
// @Description The caller becomes the creator; restricted plans are subject to a weekly quota
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body CreateRequest true "other participants"
// @Success 201 {object} CreateResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse "quota exceeded"
// @Router /chat/create [post]
func (h *ConversationHandler) Create(c *fiber.Ctx) error {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errprocess.NewBadRequest("invalid request"))
	}

	conv, err := h.conversations.Create(c.UserContext(), middlewares.MemberID(c), req.Participants)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(CreateResponse{ConversationID: conv.ID})
}

// Join REST pre-check before opening the websocket
// @Summary Join conversation
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body ConversationRequest true "conversation"
// @Success 200 {object} JoinResponse
// @Failure 404 {object} ErrorResponse
// @Router /chat/join [post]
func (h *ConversationHandler) Join(c *fiber.Ctx) error {
	var req ConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errprocess.NewBadRequest("invalid request"))
	}

	conv, err := h.conversations.Join(c.UserContext(), req.ConversationID, middlewares.MemberID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(JoinResponse{
		ConversationID: conv.ID,
		Participants:   conv.Participants,
		Presence:       h.conversations.Presence(conv.ID),
	})
}

// Leave mark activity when a participant leaves
// @Summary Leave conversation
// @Tags Chat
// @Accept json
// @Param request body ConversationRequest true "conversation"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /chat/leave [post]
func (h *ConversationHandler) Leave(c *fiber.Ctx) error {
	var req ConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errprocess.NewBadRequest("invalid request"))
	}

	if err := h.conversations.Leave(c.UserContext(), req.ConversationID, middlewares.MemberID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// List conversations of the caller
// @Summary List conversations
// @Tags Chat
// @Produce json
// @Success 200 {object} ListResponse
// @Router /chat/list [get]
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	convs, err := h.conversations.List(c.UserContext(), middlewares.MemberID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ListResponse{Conversations: convs})
}

// Export download the transcript of a conversation the caller takes part in
// @Summary Export transcript
// @Tags Chat
// @Produce html
// @Param conversation_id query string true "conversation"
// @Success 200 {string} string "HTML document"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /chat/export [get]
func (h *ConversationHandler) Export(c *fiber.Ctx) error {
	conversationID := c.Query("conversation_id")
	doc, err := h.reports.Export(c.UserContext(), conversationID, middlewares.MemberID(c))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="conversation-%s.html"`, conversationID))
	return c.SendString(doc)
}
