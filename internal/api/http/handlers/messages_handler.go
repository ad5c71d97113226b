package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/meetup-service/internal/api/dto"
	"github.com/spec-kit/meetup-service/internal/auth"
	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/service"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

// MessagesHandler exposes the per-match message thread.
type MessagesHandler struct {
	threads *service.ThreadService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(threadService *service.ThreadService) *MessagesHandler {
	return &MessagesHandler{threads: threadService}
}

// List GET /matches/:id/messages.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	matchID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid match id", nil)
	}

	limit := parseQueryInt(c.Query("limit"), 0)
	offset := parseQueryInt(c.Query("offset"), 0)

	messages, err := h.threads.ListMessages(c.UserContext(), matchID, user.ID, limit, offset)
	if err != nil {
		return err
	}

	items := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		items = append(items, messageResponse(msg))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Send POST /matches/:id/messages.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	matchID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid match id", nil)
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	msg, err := h.threads.AppendMessage(c.UserContext(), matchID, user, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(*msg)})
}

func parseQueryInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func messageResponse(msg domain.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:             msg.ID,
		MatchID:        msg.MatchID,
		SenderUserID:   msg.SenderUserID,
		SenderUsername: msg.SenderUsername,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}
}
