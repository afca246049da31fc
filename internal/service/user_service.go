package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/models"
	"github.com/noah-isme/gema-activity-log/internal/repository"
)

// UserService manages back-office accounts.
type UserService interface {
	Create(ctx context.Context, req RequestContext, payload dto.UserCreateRequest) (dto.UserResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	Delete(ctx context.Context, req RequestContext, id uint) error
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	activity  ActivityLogger
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo repository.UserRepository, validator *validator.Validate, activity ActivityLogger, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, req RequestContext, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Email:    strings.ToLower(strings.TrimSpace(payload.Email)),
		Username: strings.TrimSpace(payload.Username),
		FullName: strings.TrimSpace(payload.FullName),
		Role:     payload.Role,
	}
	if user.Role == "" {
		user.Role = "staff"
	}

	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.activity.EntityChange(ctx, req, models.ActionCreate, user, EntityChangeOptions{})
	return dto.NewUserResponse(user), nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// Delete removes the account. Activity records the user authored survive with
// their actor reference cleared.
func (s *userService) Delete(ctx context.Context, req RequestContext, id uint) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.EntityChange(ctx, req, models.ActionDelete, user, EntityChangeOptions{})
	s.logger.Info().Uint("user_id", id).Msg("user deleted")
	return nil
}
