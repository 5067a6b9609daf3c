package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/utils"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(ctx context.Context, page utils.Page) ([]models.Category, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	categories := []models.Category{}
	err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&categories).Error
	return categories, total, err
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var c models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Category")
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) Create(ctx context.Context, name, description string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("Validation failed", map[string]string{"name": "name is required"})
	}

	c := models.Category{Name: name, Description: strings.TrimSpace(description)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Category{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperror.Conflict("A category with this name already exists")
		}

		slug, err := utils.UniqueSlug(tx, &models.Category{}, name)
		if err != nil {
			return err
		}
		c.Slug = slug
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a category after moving its posts to the default category.
// It returns how many posts were reassigned.
func (s *Service) Delete(ctx context.Context, id uint) (string, int64, error) {
	var name string
	var moved int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Category
		if err := tx.First(&c, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Category")
			}
			return err
		}
		if c.Slug == models.DefaultCategorySlug {
			return apperror.Validation("The default category cannot be deleted", nil)
		}
		name = c.Name

		fallback, err := defaultCategory(tx)
		if err != nil {
			return err
		}

		result := tx.Model(&models.Post{}).Where("category_id = ?", c.ID).Update("category_id", fallback.ID)
		if result.Error != nil {
			return result.Error
		}
		moved = result.RowsAffected

		return tx.Delete(&c).Error
	})
	return name, moved, err
}

func defaultCategory(tx *gorm.DB) (*models.Category, error) {
	c := models.Category{
		Name:        "Uncategorized",
		Slug:        models.DefaultCategorySlug,
		Description: "Posts without a category",
	}
	if err := tx.Where("slug = ?", models.DefaultCategorySlug).FirstOrCreate(&c).Error; err != nil {
		return nil, fmt.Errorf("default category: %w", err)
	}
	return &c, nil
}
