package database

import (
	"fmt"
	"time"

	"github.com/Kyz7/blog/internal/config"
	"github.com/Kyz7/blog/internal/models"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Connect opens the database selected by DB_DRIVER. The returned handle is
// owned by the caller and passed down explicitly.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
		return gorm.Open(postgres.Open(dsn), gormConfig())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// OpenSQLite opens path (or ":memory:") with foreign keys enforced.
// A single connection keeps in-memory databases shared across queries.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)"), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.RevokedToken{},
		&models.Category{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return EnsureDefaultCategory(db)
}

// EnsureDefaultCategory creates the category that receives posts of deleted categories.
func EnsureDefaultCategory(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Category{}).Where("slug = ?", models.DefaultCategorySlug).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := db.Create(&models.Category{
		Name:        "Uncategorized",
		Slug:        models.DefaultCategorySlug,
		Description: "Posts without a category",
	}).Error; err != nil {
		return fmt.Errorf("failed to create default category: %w", err)
	}
	log.Info("✅ Default category created")
	return nil
}
