package tag

import (
	"context"
	"errors"
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

func (s *Service) List(ctx context.Context, page utils.Page) ([]models.Tag, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Tag{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	tags := []models.Tag{}
	err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&tags).Error
	return tags, total, err
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var t models.Tag
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Tag")
		}
		return nil, err
	}
	return &t, nil
}

func (s *Service) Create(ctx context.Context, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("Validation failed", map[string]string{"name": "name is required"})
	}

	t := models.Tag{Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Tag{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperror.Conflict("A tag with this name already exists")
		}

		slug, err := utils.UniqueSlug(tx, &models.Tag{}, name)
		if err != nil {
			return err
		}
		t.Slug = slug
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes the tag and detaches it from every post.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tag
		if err := tx.First(&t, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Tag")
			}
			return err
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", t.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&t).Error
	})
}
