package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/service"
	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// ActivitySummaryHandler exposes aggregate activity counts for administrators.
type ActivitySummaryHandler struct {
	service service.ActivitySummaryService
	logger  zerolog.Logger
}

// NewActivitySummaryHandler constructs the handler.
func NewActivitySummaryHandler(service service.ActivitySummaryService, logger zerolog.Logger) *ActivitySummaryHandler {
	return &ActivitySummaryHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_summary_handler").Logger(),
	}
}

// Register attaches the summary route to the activities group.
func (h *ActivitySummaryHandler) Register(router fiber.Router) {
	router.Get("/summary", h.get)
}

func (h *ActivitySummaryHandler) get(c *fiber.Ctx) error {
	days, err := parseQueryInt(c, "days")
	if err != nil || days < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid days parameter")
	}

	summary, err := h.service.Summary(c.UserContext(), days)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build activity summary")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load activity summary")
	}

	return utils.SendSuccess(c, "activity summary", summary)
}
