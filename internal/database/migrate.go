package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-log/internal/models"
)

// Migrate creates or updates the tables owned by the service. Users must be
// migrated before activity records so the actor foreign key can be created.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ContactMessage{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
