package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/middleware"
	"github.com/noah-isme/gema-activity-log/internal/repository"
	"github.com/noah-isme/gema-activity-log/internal/service"
	"github.com/noah-isme/gema-activity-log/internal/utils"
)

// ProductHandler serves the catalogue. Reads are public; writes need a staff account.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler constructs a product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("component", "product_handler").Logger(),
	}
}

// Register wires product routes.
func (h *ProductHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleStaff}

	router.Get("/", h.list)
	router.Get("/:id<int>", h.get)
	router.Post("/", middleware.WithAuth(h.create, staff))
	router.Put("/:id<int>", middleware.WithAuth(h.update, staff))
	router.Delete("/:id<int>", middleware.WithAuth(h.delete, staff))
	router.Post("/status", middleware.WithAuth(h.setStatus, staff))
}

func (h *ProductHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page parameter")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size parameter")
	}
	active, err := parseQueryBool(c, "active")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid active parameter")
	}

	response, err := h.service.List(c.UserContext(), service.ProductListParams{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Active:   active,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list products")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch products")
	}

	return utils.OK(c, response.Items, "products retrieved", response.Pagination)
}

func (h *ProductHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid product id")
	}

	product, err := h.service.Get(c.UserContext(), requestContextFromFiber(c), id)
	if err != nil {
		return h.productError(c, err, "failed to fetch product")
	}

	return utils.SendSuccess(c, "product retrieved", product)
}

func (h *ProductHandler) create(c *fiber.Ctx) error {
	var payload dto.ProductCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	product, err := h.service.Create(c.UserContext(), requestContextFromFiber(c), payload)
	if err != nil {
		return h.productError(c, err, "failed to create product")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "product created", product)
}

func (h *ProductHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid product id")
	}

	var payload dto.ProductUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	product, err := h.service.Update(c.UserContext(), requestContextFromFiber(c), id, payload)
	if err != nil {
		return h.productError(c, err, "failed to update product")
	}

	return utils.SendSuccess(c, "product updated", product)
}

func (h *ProductHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid product id")
	}

	if err := h.service.Delete(c.UserContext(), requestContextFromFiber(c), id); err != nil {
		return h.productError(c, err, "failed to delete product")
	}

	return utils.SendSuccess(c, "product deleted", nil)
}

func (h *ProductHandler) setStatus(c *fiber.Ctx) error {
	var payload dto.ProductBulkStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.SetStatus(c.UserContext(), requestContextFromFiber(c), payload)
	if err != nil {
		return h.productError(c, err, "failed to change product status")
	}

	return utils.SendSuccess(c, "product status updated", result)
}

func (h *ProductHandler) productError(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid payload", validationDetails(err))
	case errors.Is(err, repository.ErrProductNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "product not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
