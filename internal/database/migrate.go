package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/kec-cse/sap-points/internal/models"
)

// Migrate creates or updates the SAP tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.EventSubmission{},
		&models.EventAttachment{},
		&models.ActivitySubmission{},
		&models.ReviewLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
