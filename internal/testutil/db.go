// Package testutil opens throwaway databases for service and repository tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to t. A single
// connection serializes access, so concurrent tests see one writer at a time.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entity.Models()...))
	return db
}

// SeedCatalog writes the catalog's badges and rewards.
func SeedCatalog(t *testing.T, db *gorm.DB, cat *catalog.Catalog) {
	t.Helper()

	if badges := cat.BadgeEntities(); len(badges) > 0 {
		require.NoError(t, db.Create(&badges).Error)
	}

	rewards, err := cat.RewardEntities()
	require.NoError(t, err)
	if len(rewards) > 0 {
		require.NoError(t, db.Create(&rewards).Error)
	}
}

// Day returns midnight UTC of the given date plus hour hours.
func Day(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}
