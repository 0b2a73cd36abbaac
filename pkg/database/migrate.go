package database

import (
	"fmt"

	"anoa.com/loyaltyledger/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.L.Info("migrations applied", zap.Int("models", len(models)))
	return nil
}
