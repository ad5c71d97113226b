package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/meetup-service/internal/api/dto"
	"github.com/spec-kit/meetup-service/internal/auth"
	"github.com/spec-kit/meetup-service/internal/service"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

// RequestsHandler manages matching request endpoints.
type RequestsHandler struct {
	matching *service.MatchService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(matchService *service.MatchService) *RequestsHandler {
	return &RequestsHandler{matching: matchService}
}

// Submit POST /requests. Runs the matcher: the caller either queues or is
// paired with the oldest compatible waiting request.
func (h *RequestsHandler) Submit(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.SubmitRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	outcome, err := h.matching.RequestMatch(c.UserContext(), user.ID, service.MatchRequestInput{
		Area:      req.Area,
		TimeSlot:  req.TimeSlot,
		GroupSize: req.GroupSize,
	})
	if err != nil {
		return err
	}

	resp := dto.MatchOutcomeResponse{
		Status:    "queued",
		RequestID: outcome.RequestID,
	}
	if outcome.Matched {
		resp.Status = "matched"
		matchID := outcome.MatchID
		resp.MatchID = &matchID
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// GetPending GET /requests/pending.
func (h *RequestsHandler) GetPending(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}

	pending, err := h.matching.GetPendingRequest(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	if pending == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.PendingRequestResponse{
		RequestID: pending.ID,
		Area:      pending.Area,
		TimeSlot:  pending.TimeSlot,
		GroupSize: pending.GroupSize,
		CreatedAt: pending.CreatedAt,
	}})
}

// Cancel DELETE /requests/:id. Only a still-pending request owned by the
// caller is removed; anything else reports cancelled=false.
func (h *RequestsHandler) Cancel(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid request id", nil)
	}

	cancelled, err := h.matching.CancelRequest(c.UserContext(), user.ID, requestID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CancelResponse{Cancelled: cancelled}})
}
