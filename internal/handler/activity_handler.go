package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/service"
	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// ActivityHandler exposes the activity trail to operators.
type ActivityHandler struct {
	query     service.ActivityQueryService
	writer    service.ActivityService
	registry  *service.EntityRegistry
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewActivityHandler constructs the activity handler.
func NewActivityHandler(query service.ActivityQueryService, writer service.ActivityService, registry *service.EntityRegistry, validator *validator.Validate, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		query:     query,
		writer:    writer,
		registry:  registry,
		validator: validator,
		logger:    logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires activity routes under /activities.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/:id<int>", h.get)
	router.Get("/:id<int>/entity", h.entity)
	router.Patch("/:id<int>/metadata", h.amendMetadata)
}

// RegisterEntityRoutes wires the per-entity history under /entities.
func (h *ActivityHandler) RegisterEntityRoutes(router fiber.Router) {
	router.Get("/:path/:id/activities", h.entityHistory)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	req, err := h.parseListRequest(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.query.List(c.UserContext(), req)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.Fail(c, fiber.StatusBadRequest, "invalid filters", validationDetails(err))
		case errors.Is(err, service.ErrInvalidAction), errors.Is(err, service.ErrInvalidCursor):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to list activities")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activities")
		}
	}

	return utils.SendSuccess(c, "activities retrieved", response)
}

func (h *ActivityHandler) parseListRequest(c *fiber.Ctx) (dto.ActivityListRequest, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid page parameter")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid page_size parameter")
	}
	userID, err := parseQueryUint(c, "user_id")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid user_id parameter")
	}
	entityID, err := parseQueryUint(c, "entity_id")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid entity_id parameter")
	}
	since, err := parseQueryTime(c, "since")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid since parameter, expected RFC3339")
	}
	until, err := parseQueryTime(c, "until")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid until parameter, expected RFC3339")
	}
	useCursor, err := parseQueryBool(c, "use_cursor")
	if err != nil {
		return dto.ActivityListRequest{}, errors.New("invalid use_cursor parameter")
	}

	return dto.ActivityListRequest{
		Page:            page,
		PageSize:        pageSize,
		Cursor:          strings.TrimSpace(c.Query("cursor")),
		UseCursor:       useCursor != nil && *useCursor,
		ActorType:       c.Query("actor_type"),
		UserID:          userID,
		ActorIdentifier: c.Query("actor_identifier"),
		EntityKind:      c.Query("entity_kind"),
		EntityPath:      c.Query("entity_path"),
		EntityID:        entityID,
		Action:          c.Query("action"),
		Since:           since,
		Until:           until,
	}, nil
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	activity, err := h.query.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("activity_id", id).Msg("failed to load activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activity")
	}

	return utils.SendSuccess(c, "activity retrieved", activity)
}

// entity follows the record's weak reference to the current instance.
func (h *ActivityHandler) entity(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	activity, err := h.query.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("activity_id", id).Msg("failed to load activity")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activity")
	}

	if activity.Entity.ID == nil {
		return utils.SendError(c, fiber.StatusNotFound, "entity not found")
	}

	instance, ok := h.registry.Resolve(c.UserContext(), activity.Entity.Path, *activity.Entity.ID)
	if !ok {
		return utils.SendError(c, fiber.StatusNotFound, "entity not found")
	}

	return utils.SendSuccess(c, "entity resolved", dto.EntityResolveResponse{
		EntityPath: activity.Entity.Path,
		EntityID:   *activity.Entity.ID,
		Entity:     instance,
	})
}

func (h *ActivityHandler) create(c *fiber.Ctx) error {
	var payload dto.ActivityCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	activity, err := h.writer.Create(c.UserContext(), requestContextFromFiber(c), payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
		case errors.Is(err, service.ErrInvalidAction):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to record activity")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to record activity")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity recorded", activity)
}

func (h *ActivityHandler) amendMetadata(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	var payload dto.ActivityMetadataPatchRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	activity, err := h.writer.AmendMetadata(c.UserContext(), id, payload)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
		case errors.Is(err, service.ErrRecordNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("activity_id", id).Msg("failed to amend activity metadata")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to amend activity")
		}
	}

	return utils.SendSuccess(c, "activity metadata updated", activity)
}

func (h *ActivityHandler) entityHistory(c *fiber.Ctx) error {
	path := strings.TrimSpace(c.Params("path"))
	if !service.ValidEntityPath(path) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity path")
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity id")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit parameter")
	}

	items, err := h.query.ForEntity(c.UserContext(), path, id, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("entity_path", path).Uint("entity_id", id).Msg("failed to load entity history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch entity history")
	}

	return utils.SendSuccess(c, "entity history retrieved", items)
}
