package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/service"
	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// ContactHandler handles public contact form submissions. Every accepted
// submission is also recorded as a guest activity by the service.
type ContactHandler struct {
	service service.ContactService
	logger  zerolog.Logger
}

// NewContactHandler constructs a contact handler.
func NewContactHandler(service service.ContactService, logger zerolog.Logger) *ContactHandler {
	return &ContactHandler{
		service: service,
		logger:  logger.With().Str("component", "contact_handler").Logger(),
	}
}

// Register wires contact routes.
func (h *ContactHandler) Register(router fiber.Router) {
	router.Post("/", h.submit)
}

func (h *ContactHandler) submit(c *fiber.Ctx) error {
	var payload dto.ContactMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Submit(c.UserContext(), requestContextFromFiber(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContactSpam):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		case errors.Is(err, service.ErrContactDuplicate):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(service.ContactDuplicateWindow.Seconds())))
			return utils.SendError(c, fiber.StatusTooManyRequests, "duplicate submission")
		case isValidationError(err):
			return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to process contact submission")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to submit contact form")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "contact submission accepted", response)
}
