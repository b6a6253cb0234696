package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: analyses table
		{
			ID: "001_analyses",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Analysis{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("analyses")
			},
		},

		// Migration 002: lookup by algorithm, newest first
		{
			ID: "002_analyses_algorithm_created",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_analyses_algorithm_created
					ON analyses (algorithm, created_at_epoch DESC)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_analyses_algorithm_created").Error
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
