package dto

import (
	"time"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// ProductCreateRequest captures the payload for creating a product.
type ProductCreateRequest struct {
	SKU         string `json:"sku" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Price       int64  `json:"price" validate:"gte=0"`
	Stock       int    `json:"stock" validate:"gte=0"`
	IsActive    *bool  `json:"is_active"`
}

// ProductUpdateRequest captures a partial product update.
type ProductUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	IsActive    *bool   `json:"is_active"`
}

// ProductBulkStatusRequest toggles the active flag of several products at once.
type ProductBulkStatusRequest struct {
	IDs      []uint `json:"ids" validate:"required,min=1,max=500"`
	IsActive bool   `json:"is_active"`
}

// ProductBulkStatusResponse summarises a bulk status change.
type ProductBulkStatusResponse struct {
	Updated []uint `json:"updated"`
	Failed  []uint `json:"failed"`
}

// ProductResponse serializes a product.
type ProductResponse struct {
	ID          uint      `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProductResponse converts a model into a DTO.
func NewProductResponse(product models.Product) ProductResponse {
	return ProductResponse{
		ID:          product.ID,
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Stock:       product.Stock,
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

// ProductListResponse wraps a page of products.
type ProductListResponse struct {
	Items      []ProductResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// ContactMessageRequest is the public contact form payload.
type ContactMessageRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Subject  string `json:"subject" validate:"omitempty,max=255"`
	Message  string `json:"message" validate:"required,max=5000"`
	Source   string `json:"source" validate:"omitempty,max=64"`
	Campaign string `json:"campaign" validate:"omitempty,max=64"`
	Honeypot string `json:"website"`
}

// ContactMessageResponse acknowledges a stored contact message.
type ContactMessageResponse struct {
	ID        uint      `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// UserCreateRequest provisions a back-office user.
type UserCreateRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,max=150"`
	FullName string `json:"full_name" validate:"omitempty,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=admin staff"`
}

// UserResponse serializes a user.
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FullName:  user.FullName,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}
