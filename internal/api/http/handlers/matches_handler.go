package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/meetup-service/internal/api/dto"
	"github.com/spec-kit/meetup-service/internal/auth"
	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/service"
	apperrors "github.com/spec-kit/meetup-service/pkg/util"
)

// MatchesHandler exposes the match registry read side.
type MatchesHandler struct {
	matching *service.MatchService
}

// NewMatchesHandler constructs handler.
func NewMatchesHandler(matchService *service.MatchService) *MatchesHandler {
	return &MatchesHandler{matching: matchService}
}

// List GET /matches. Newest first.
func (h *MatchesHandler) List(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}

	views, err := h.matching.MatchesForUser(c.UserContext(), user.ID)
	if err != nil {
		return err
	}

	items := make([]dto.MatchViewResponse, 0, len(views))
	for _, view := range views {
		items = append(items, matchViewResponse(view))
	}
	return c.JSON(fiber.Map{"data": items})
}

func matchViewResponse(view domain.MatchView) dto.MatchViewResponse {
	return dto.MatchViewResponse{
		MatchID:              view.MatchID,
		Area:                 view.Area,
		TimeSlot:             view.TimeSlot,
		CounterpartUserID:    view.CounterpartUserID,
		CounterpartUsername:  view.CounterpartUsername,
		CounterpartGroupSize: view.CounterpartGroupSize,
		MyGroupSize:          view.MyGroupSize,
		MatchedAt:            view.MatchedAt,
	}
}
