package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Migration struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time
}

// RunMigrations applies the raw SQL files in dir that AutoMigrate cannot
// express (trigram search indexes). Postgres only; each file runs once.
func RunMigrations(db *gorm.DB, dir string) error {
	if db.Dialector.Name() != "postgres" {
		log.Infof("⏭️  Skipping SQL migrations for %s", db.Dialector.Name())
		return nil
	}
	if err := db.AutoMigrate(&Migration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		filename := filepath.Base(file)

		var applied int64
		if err := db.Model(&Migration{}).Where("version = ?", filename).Count(&applied).Error; err != nil {
			return err
		}
		if applied > 0 {
			log.Infof("⏭️  Skipping migration: %s (already applied)", filename)
			continue
		}

		sqlContent, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		log.Infof("▶️  Applying migration: %s", filename)
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(sqlContent)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
			return tx.Create(&Migration{Version: filename, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return err
		}
		log.Infof("✅ Applied migration: %s", filename)
	}

	return nil
}
