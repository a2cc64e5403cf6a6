package database

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mx-space/blockdraft/internal/config"
	"github.com/mx-space/blockdraft/internal/models"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	db, err := Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), resolveLogLevel(cfg))
	if err != nil {
		return nil, err
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// Open connects through any gorm dialector. Tests pass an in-memory sqlite.
func Open(dialector gorm.Dialector, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Info
	}
	return logger.Warn
}

// Migrate creates or updates the draft tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.DraftModel{},
		&models.DraftHistoryModel{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "mysql" {
		// older deployments created the block columns as TEXT
		for _, stmt := range []string{
			"ALTER TABLE `drafts` MODIFY COLUMN `blocks` LONGTEXT NULL",
			"ALTER TABLE `draft_histories` MODIFY COLUMN `blocks` LONGTEXT NULL",
		} {
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
