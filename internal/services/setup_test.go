package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/tourforge/backend/internal/config"
	"github.com/tourforge/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	return db
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		APIUrl:            "http://localhost:8080",
		FrontendURL:       "http://localhost:3000",
		StoragePath:       t.TempDir(),
		DownloadURLSecret: "test-secret",
		DownloadURLLease:  600 * time.Second,
		PublishLockTTL:    time.Minute,
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
