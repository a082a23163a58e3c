package database

import (
	"time"

	"gym-backend/internal/config"
	"gym-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		zap.S().Fatalf("could not connect to database: %v", err)
	}

	if err := Migrate(DB); err != nil {
		zap.S().Fatalf("AutoMigrate failed: %v", err)
	}

	zap.S().Info("database connected, migration complete")
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductStock{},
		&models.Sale{},
		&models.Notice{},
		&models.AuditLog{},
	)
}

// Close releases the underlying connection pool.
func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
