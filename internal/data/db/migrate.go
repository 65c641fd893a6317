package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	types "github.com/yungbote/progressfacts/internal/domain/history"
)

func AutoMigrateAll(db *gorm.DB) error {
	models := []any{
		// Document rows behind the canonical aggregate and profiles.
		&docstore.DocumentRow{},
	}
	// Per-event history read by backfill.
	models = append(models, types.Models()...)
	return db.AutoMigrate(models...)
}
