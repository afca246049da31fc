package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// ContactMessageRepository stores inquiries from the public contact form.
type ContactMessageRepository interface {
	Create(ctx context.Context, message *models.ContactMessage) error
}

type contactMessageRepository struct {
	db *gorm.DB
}

// NewContactMessageRepository constructs the repository.
func NewContactMessageRepository(db *gorm.DB) ContactMessageRepository {
	return &contactMessageRepository{db: db}
}

func (r *contactMessageRepository) Create(ctx context.Context, message *models.ContactMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}
