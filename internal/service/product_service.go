package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

// ProductListParams narrows a product listing.
type ProductListParams struct {
	Page     int
	PageSize int
	Search   string
	Active   *bool
}

// ProductService manages the catalogue and logs every change.
type ProductService interface {
	Create(ctx context.Context, req RequestContext, payload dto.ProductCreateRequest) (dto.ProductResponse, error)
	Get(ctx context.Context, req RequestContext, id uint) (dto.ProductResponse, error)
	List(ctx context.Context, params ProductListParams) (dto.ProductListResponse, error)
	Update(ctx context.Context, req RequestContext, id uint, payload dto.ProductUpdateRequest) (dto.ProductResponse, error)
	Delete(ctx context.Context, req RequestContext, id uint) error
	SetStatus(ctx context.Context, req RequestContext, payload dto.ProductBulkStatusRequest) (dto.ProductBulkStatusResponse, error)
}

type productService struct {
	repo      repository.ProductRepository
	validator *validator.Validate
	activity  ActivityLogger
	logger    zerolog.Logger
}

// NewProductService constructs the catalogue service.
func NewProductService(repo repository.ProductRepository, validator *validator.Validate, activity ActivityLogger, logger zerolog.Logger) ProductService {
	return &productService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "product_service").Logger(),
	}
}

func (s *productService) Create(ctx context.Context, req RequestContext, payload dto.ProductCreateRequest) (dto.ProductResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProductResponse{}, err
	}

	product := models.Product{
		SKU:         strings.TrimSpace(payload.SKU),
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
		Price:       payload.Price,
		Stock:       payload.Stock,
		IsActive:    true,
	}
	if payload.IsActive != nil {
		product.IsActive = *payload.IsActive
	}

	if err := s.repo.Create(ctx, &product); err != nil {
		return dto.ProductResponse{}, err
	}

	s.activity.EntityChange(ctx, req, models.ActionCreate, product, EntityChangeOptions{})
	s.logger.Info().Uint("product_id", product.ID).Str("sku", product.SKU).Msg("product created")

	return dto.NewProductResponse(product), nil
}

// Get loads a product and records the view. Anonymous views are logged as
// guest activity keyed by the visitor's session or address.
func (s *productService) Get(ctx context.Context, req RequestContext, id uint) (dto.ProductResponse, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, err
	}

	if req.Authenticated() {
		s.activity.EntityChange(ctx, req, models.ActionView, product, EntityChangeOptions{})
	} else {
		s.activity.GuestActivity(ctx, req, GuestActivity{
			Action:     models.ActionView,
			EntityKind: models.EntityKindOf(product),
			EntityPath: models.EntityPathOf(product),
			EntityID:   entityIDPtr(product.ID),
			EntityName: product.DisplayName(),
		})
	}
	return dto.NewProductResponse(product), nil
}

func (s *productService) List(ctx context.Context, params ProductListParams) (dto.ProductListResponse, error) {
	pageSize := clampPageSize(params.PageSize, 20, 100)
	page := params.Page
	if page <= 0 {
		page = 1
	}

	products, total, err := s.repo.List(ctx, repository.ProductFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(params.Search),
		Active:   params.Active,
	})
	if err != nil {
		return dto.ProductListResponse{}, err
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for _, product := range products {
		items = append(items, dto.NewProductResponse(product))
	}

	return dto.ProductListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *productService) Update(ctx context.Context, req RequestContext, id uint, payload dto.ProductUpdateRequest) (dto.ProductResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProductResponse{}, err
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, err
	}
	previous := product

	if payload.Name != nil {
		product.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Description != nil {
		product.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.Price != nil {
		product.Price = *payload.Price
	}
	if payload.Stock != nil {
		product.Stock = *payload.Stock
	}
	if payload.IsActive != nil {
		product.IsActive = *payload.IsActive
	}

	if err := s.repo.Update(ctx, &product); err != nil {
		return dto.ProductResponse{}, err
	}

	s.activity.EntityChange(ctx, req, models.ActionUpdate, product, EntityChangeOptions{Previous: previous})
	return dto.NewProductResponse(product), nil
}

func (s *productService) Delete(ctx context.Context, req RequestContext, id uint) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.EntityChange(ctx, req, models.ActionDelete, product, EntityChangeOptions{})
	s.logger.Info().Uint("product_id", id).Msg("product deleted")
	return nil
}

// SetStatus toggles the active flag on several products and writes one bulk
// record summarising the outcome. Missing products count as failures.
func (s *productService) SetStatus(ctx context.Context, req RequestContext, payload dto.ProductBulkStatusRequest) (dto.ProductBulkStatusResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProductBulkStatusResponse{}, err
	}

	response := dto.ProductBulkStatusResponse{Updated: []uint{}, Failed: []uint{}}
	touched := make([]models.Entity, 0, len(payload.IDs))

	for _, id := range payload.IDs {
		product, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if !errors.Is(err, repository.ErrProductNotFound) {
				s.logger.Warn().Err(err).Uint("product_id", id).Msg("failed to load product for status change")
			}
			response.Failed = append(response.Failed, id)
			continue
		}

		product.IsActive = payload.IsActive
		if err := s.repo.Update(ctx, &product); err != nil {
			s.logger.Warn().Err(err).Uint("product_id", id).Msg("failed to change product status")
			response.Failed = append(response.Failed, id)
			continue
		}

		response.Updated = append(response.Updated, id)
		touched = append(touched, product)
	}

	if len(touched) > 0 {
		action := models.ActionDeactivate
		if payload.IsActive {
			action = models.ActionActivate
		}
		s.activity.BulkOperation(ctx, req, BulkOperation{
			Action:       action,
			Entities:     touched,
			Name:         "Product status change",
			SuccessCount: len(response.Updated),
			ErrorCount:   len(response.Failed),
			Extra:        map[string]interface{}{"failed_ids": response.Failed},
		})
	}

	return response, nil
}
