package pkg

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/edupulse/assessment-delivery/internal/config"
	"github.com/edupulse/assessment-delivery/internal/models"
)

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the delivery schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Assessment{},
		&models.Section{},
		&models.Question{},
		&models.Submission{},
		&models.SubmissionAnswer{},
	)
}
