package db

import (
	"fmt"

	"github.com/zulandar/sponsormatch/internal/config"
	"github.com/zulandar/sponsormatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Expression{},
		&models.Match{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.PairLock{},
		&models.RolePairConfig{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedRolePairs upserts one RolePairConfig row per configured channel.
func SeedRolePairs(db *gorm.DB, cfg *config.Config) error {
	for _, ch := range cfg.Channels {
		rp := models.RolePairConfig{
			Kind:      ch.Kind,
			ASideRole: cfg.Roles.ASide,
			BSideRole: cfg.Roles.BSide,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"a_side_role", "b_side_role"}),
		}).Create(&rp)
		if result.Error != nil {
			return fmt.Errorf("db: seed role pair %q: %w", ch.Kind, result.Error)
		}
	}
	return nil
}

// RolePairs returns the seeded role pairs ordered by kind.
func RolePairs(db *gorm.DB) ([]models.RolePairConfig, error) {
	var pairs []models.RolePairConfig
	if err := db.Order("kind").Find(&pairs).Error; err != nil {
		return nil, fmt.Errorf("db: list role pairs: %w", err)
	}
	return pairs, nil
}
