package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/repository"
	"github.com/noah-isme/gema-activity-log/internal/service"
	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// UserHandler manages back-office accounts.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires user routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/:id<int>", h.get)
	router.Delete("/:id<int>", h.delete)
}

func (h *UserHandler) create(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.service.Create(c.UserContext(), requestContextFromFiber(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to create user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to create user")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	user, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("user_id", id).Msg("failed to load user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch user")
	}

	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *UserHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.service.Delete(c.UserContext(), requestContextFromFiber(c), id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("user_id", id).Msg("failed to delete user")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete user")
	}

	return utils.SendSuccess(c, "user deleted", nil)
}
