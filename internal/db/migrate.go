package db

import (
	"gorm.io/gorm"

	"github.com/savoro/savoro-backend/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Catalog (owned by the catalog collaborator; migrated here so the
		// service runs standalone in dev).
		&types.Category{},
		&types.Product{},

		// Identity
		&types.User{},

		// Recommendation core
		&types.Interaction{},
		&types.Rating{},
		&types.Recommendation{},
	)
}
