package database_test

import (
	"bytes"
	"testing"

	"github.com/Kyz7/blog/internal/config"
	"github.com/Kyz7/blog/internal/database"
	"github.com/Kyz7/blog/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrate(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	t.Run("Success - Creates the default category once", func(t *testing.T) {
		require.NoError(t, database.Migrate(db))
		require.NoError(t, database.Migrate(db))

		var count int64
		db.Model(&models.Category{}).Where("slug = ?", models.DefaultCategorySlug).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Success - Foreign keys are enforced", func(t *testing.T) {
		err := db.Create(&models.RevokedToken{Token: "orphan", UserID: 4242}).Error
		assert.Error(t, err)
	})

	t.Run("Success - SQL migrations are skipped outside postgres", func(t *testing.T) {
		assert.NoError(t, database.RunMigrations(db, t.TempDir()))
		assert.False(t, db.Migrator().HasTable(&database.Migration{}))
	})
}

func TestEnsureDefaultCategory(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, db.AutoMigrate(&models.Category{}))

	var buf bytes.Buffer
	writer := logrus.New()
	writer.SetOutput(&buf)
	quiet := db.Session(&gorm.Session{Logger: logger.New(writer, logger.Config{LogLevel: logger.Error})})

	t.Run("Success - Fresh database logs no lookup errors", func(t *testing.T) {
		require.NoError(t, database.EnsureDefaultCategory(quiet))
		assert.NotContains(t, buf.String(), "record not found")

		var category models.Category
		require.NoError(t, db.Where("slug = ?", models.DefaultCategorySlug).First(&category).Error)
		assert.Equal(t, "Uncategorized", category.Name)
	})
}

func TestConnect(t *testing.T) {
	t.Run("Success - SQLite driver", func(t *testing.T) {
		db, err := database.Connect(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", db.Dialector.Name())
		assert.NoError(t, database.Close(db))
	})

	t.Run("Error - Unknown driver", func(t *testing.T) {
		_, err := database.Connect(&config.Config{DBDriver: "oracle"})
		assert.Error(t, err)
	})
}
